// Package server assembles the relay: TCP listener, hub, worker pool,
// optional HTTP surface and optional federation, with start and shutdown.
package server

import (
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Tyrowin/framerelay/internal/pool"
	"github.com/gorilla/websocket"
)

// Server is one relay instance.
type Server struct {
	cfg        Config
	origins    *originPolicy
	upgrader   *websocket.Upgrader
	workers    *pool.Pool
	hub        *Hub
	listener   net.Listener
	httpLn     net.Listener
	httpServer *http.Server
	federation Federation
	wg         sync.WaitGroup
}

// New validates cfg and builds a server. Nothing listens until Start.
func New(cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sanitized := sanitize(*cfg)

	workers, err := pool.New(sanitized.PoolSize)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     sanitized,
		origins: newOriginPolicy(sanitized.AllowedOrigins),
		workers: workers,
		hub:     NewHub(workers, sanitized.RateLimit),
	}
	s.upgrader = s.newUpgrader()
	return s, nil
}

// Start binds the relay address (and the HTTP address when configured),
// connects federation when configured, and starts serving. It returns
// without blocking.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	s.listener = ln

	if s.cfg.HTTPAddr != "" {
		httpLn, err := net.Listen("tcp", s.cfg.HTTPAddr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen on %s: %w", s.cfg.HTTPAddr, err)
		}
		s.httpLn = httpLn
	}

	if s.cfg.NATSURL != "" {
		federation, err := DialNATS(s.cfg.NATSURL, s.cfg.NATSSubject, s.hub.DeliverRemote)
		if err != nil {
			s.closeListeners()
			return err
		}
		s.federation = federation
		s.hub.SetFederation(federation)
	}

	go s.hub.Run()
	log.Println("Hub started and ready to relay messages")

	s.wg.Add(1)
	go s.acceptLoop(ln)
	log.Printf("Opened server at: %s", ln.Addr())

	if s.httpLn != nil {
		s.httpServer = CreateServer(s.httpLn.Addr().String(), s.SetupRoutes())
		s.wg.Add(1)
		go s.serveHTTP()
	}

	return nil
}

func (s *Server) serveHTTP() {
	defer s.wg.Done()

	log.Printf("HTTP server listening on %s", s.httpLn.Addr())
	if err := s.httpServer.Serve(s.httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("HTTP server error: %v", err)
	}
}

// Addr returns the bound relay address. Only valid after Start.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// HTTPAddr returns the bound HTTP address, or nil when HTTP is disabled.
func (s *Server) HTTPAddr() net.Addr {
	if s.httpLn == nil {
		return nil
	}
	return s.httpLn.Addr()
}

// Hub returns the relay loop for inspection.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) closeListeners() {
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing listener: %v", err)
		}
	}
	if s.httpLn != nil && s.httpServer == nil {
		_ = s.httpLn.Close()
	}
}

// Shutdown stops accepting, stops the HTTP server, stops the hub (closing
// every client connection), closes the pool and the federation link. Jobs
// still running on the pool are not waited for. Shutting down a server that
// never started only releases the pool.
func (s *Server) Shutdown(timeout time.Duration) error {
	if s.listener == nil {
		s.hub.cancel()
		s.workers.Close()
		return nil
	}
	s.closeListeners()

	var errs []error
	if s.httpServer != nil {
		if err := ShutdownServer(s.httpServer, timeout); err != nil {
			errs = append(errs, err)
		}
	}

	if err := s.hub.Shutdown(timeout); err != nil {
		errs = append(errs, err)
	}
	s.workers.Close()

	if s.federation != nil {
		if err := s.federation.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close federation: %w", err))
		}
	}

	s.wg.Wait()
	return errors.Join(errs...)
}
