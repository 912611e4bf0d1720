// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, relay stats, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

func (s *Server) newUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
}

// WebSocketHandler upgrades a GET request to a WebSocket and registers the
// connection with the hub exactly like a TCP client.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	log.Printf("Client %s connected over WebSocket.", r.RemoteAddr)
	client := NewClient(newWSTransport(conn, r.RemoteAddr, s.cfg.WriteTimeout))
	if !s.hub.Register(client) {
		client.close()
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Relay server is running!")
}

// StatsHandler reports the hub's registry and pool counters as JSON.
func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.hub.Stats()); err != nil {
		log.Printf("Error writing stats: %v", err)
	}
}

// TestPageHandler serves a minimal page for poking the WebSocket gateway
// from a browser.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPage)
}

const testPage = `<!DOCTYPE html>
<html>
<head><title>Relay WebSocket Test</title></head>
<body>
<div id="messages" style="border:1px solid #ccc;height:300px;overflow-y:scroll"></div>
<input id="input" type="text" placeholder="message or /nick name">
<button id="send">Send</button>
<script>
const messages = document.getElementById('messages');
const input = document.getElementById('input');
const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
function add(text) {
    const line = document.createElement('div');
    line.textContent = text;
    messages.appendChild(line);
    messages.scrollTop = messages.scrollHeight;
}
ws.onopen = () => add('connected');
ws.onclose = () => add('disconnected');
ws.onmessage = (e) => add(e.data);
document.getElementById('send').onclick = () => {
    if (input.value) { ws.send(input.value); add('you: ' + input.value); input.value = ''; }
};
</script>
</body>
</html>`
