// Package server coordinates client registration, message relay, and
// connection cleanup for the relay via the Hub type.
package server

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/Tyrowin/framerelay/internal/pool"
)

// eventBuffer bounds the queue between client workers and the hub. A full
// buffer blocks the workers rather than growing without limit.
const eventBuffer = 256

// Hub is the only owner of the client registry. Registrations, worker events
// and remote announcements all arrive on channels and are applied by Run, so
// the registry needs no lock.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	events     chan Event
	remote     chan string
	stats      chan chan Stats
	workers    *pool.Pool
	rateLimit  RateLimitConfig
	federation Federation
	nextNick   uint64
	removed    uint64
	dropped    uint64
	ctx        context.Context
	cancel     context.CancelFunc
	started    chan struct{}
	done       chan struct{}
}

// NewHub creates a hub that runs client workers on the given pool.
func NewHub(workers *pool.Pool, rateLimit RateLimitConfig) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:   make(map[string]*Client),
		register:  make(chan *Client),
		events:    make(chan Event, eventBuffer),
		remote:    make(chan string, eventBuffer),
		stats:     make(chan chan Stats),
		workers:   workers,
		rateLimit: rateLimit,
		ctx:       ctx,
		cancel:    cancel,
		started:   make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// SetFederation attaches a federation link. It must be called before Run.
func (h *Hub) SetFederation(f Federation) {
	h.federation = f
}

// Register hands a new connection to the hub. It returns false if the hub
// has already stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// DeliverRemote queues an announcement from another relay instance for every
// local client.
func (h *Hub) DeliverRemote(text string) bool {
	if h.ctx.Err() != nil {
		return false
	}
	select {
	case h.remote <- text:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Stats asks the running hub for a snapshot. A hub whose Run has not started
// or has returned reports zero values.
func (h *Hub) Stats() Stats {
	if !h.running() {
		return Stats{}
	}
	reply := make(chan Stats, 1)
	select {
	case h.stats <- reply:
	case <-h.ctx.Done():
		return Stats{}
	}
	return <-reply
}

func (h *Hub) running() bool {
	select {
	case <-h.started:
		return h.ctx.Err() == nil
	default:
		return false
	}
}

func (h *Hub) emit(event Event) bool {
	select {
	case h.events <- event:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Run starts the hub's main event loop, handling client registration, worker
// events and remote announcements. This method should be called in a
// separate goroutine as it runs until Shutdown.
func (h *Hub) Run() {
	close(h.started)
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.handleRegister(client)

		case event := <-h.events:
			h.handleEvent(event)

		case text := <-h.remote:
			h.broadcast("", text)

		case reply := <-h.stats:
			reply <- h.snapshot()
		}
	}
}

// handleRegister assigns the next nickname, records the client and queues
// its read loop on the pool.
func (h *Hub) handleRegister(client *Client) {
	if client == nil {
		log.Printf("Received nil client registration; skipping")
		return
	}

	if stale, exists := h.clients[client.id]; exists {
		log.Printf("Replacing stale record for %s", client.id)
		h.removeClient(stale)
	}

	client.nick = strconv.FormatUint(h.nextNick, 10)
	h.nextNick++
	client.limiter = newRateLimiter(h.rateLimit)
	h.clients[client.id] = client
	log.Printf("Client registered from %s as %s (session %s). Total clients: %d",
		client.id, client.nick, client.session, len(h.clients))

	nick := client.nick
	emit := func(event Event) bool {
		event.source = client
		return h.emit(event)
	}
	if err := h.workers.Execute(func() { client.serve(nick, emit) }); err != nil {
		log.Printf("Could not schedule reader for %s: %v", client.id, err)
		h.removeClient(client)
	}
}

func (h *Hub) handleEvent(event Event) {
	if event.Text != "" {
		h.broadcast(event.Origin, event.Text)
		h.publish(event.Text)
	}

	switch event.Kind {
	case EventNickChanged:
		if client, ok := h.clients[event.Origin]; ok && client == event.source {
			client.nick = event.Nick
		}
	case EventDisconnected:
		if client, ok := h.clients[event.Origin]; ok && client == event.source {
			h.removeClient(client)
		}
	}
}

// broadcast writes text to every client except origin. Clients whose write
// fails are dropped from the registry.
func (h *Hub) broadcast(origin, text string) {
	for id, client := range h.clients {
		if id == origin {
			continue
		}
		if err := client.write(text); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Write to %s failed: %v", id, err)
			}
			h.dropped++
			h.removeClient(client)
		}
	}
}

func (h *Hub) publish(text string) {
	if h.federation == nil {
		return
	}
	if err := h.federation.Publish(text); err != nil {
		log.Printf("Federation publish failed: %v", err)
	}
}

// removeClient deletes the record and closes its connection. Closing the
// connection also ends the client's read loop.
func (h *Hub) removeClient(client *Client) {
	if current, ok := h.clients[client.id]; !ok || current != client {
		return
	}
	delete(h.clients, client.id)
	h.removed++
	client.close()
	log.Printf("Client unregistered from %s (%s). Total clients: %d", client.id, client.nick, len(h.clients))
}

func (h *Hub) snapshot() Stats {
	return Stats{
		Clients:       len(h.clients),
		ActiveWorkers: h.workers.Active(),
		QueuedJobs:    h.workers.Queued(),
		Removed:       h.removed,
		Dropped:       h.dropped,
	}
}

// shutdownClients closes every remaining connection.
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	count := len(h.clients)
	for id, client := range h.clients {
		delete(h.clients, id)
		client.close()
	}

	log.Printf("Closed %d client connections", count)
}

// Shutdown stops the hub and waits for Run to return, or until the timeout
// is reached. A hub that was never run is only cancelled.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()

	select {
	case <-h.started:
	default:
		log.Println("Hub was never started; nothing to wait for")
		return nil
	}

	select {
	case <-h.done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached")
		return context.DeadlineExceeded
	}
}
