// Package server wires HTTP handlers into a ServeMux for the relay's HTTP
// surface via routing helpers.
package server

import (
	"net/http"

	"github.com/rs/cors"
)

// SetupRoutes configures the HTTP routes: health check, stats, WebSocket
// gateway and test page. The mux is wrapped in CORS handling for the
// configured origins so browser dashboards can read /stats.
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/stats", s.StatsHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	mux.HandleFunc("/test", TestPageHandler)

	return cors.New(cors.Options{
		AllowOriginFunc: s.origins.allows,
		AllowedMethods:  []string{http.MethodGet},
	}).Handler(mux)
}
