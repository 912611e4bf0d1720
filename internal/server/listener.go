package server

import (
	"errors"
	"log"
	"net"
	"time"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// acceptLoop accepts TCP connections until the listener is closed and hands
// each one to the hub. Registration never waits on the worker pool.
func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			backoff = nextBackoff(backoff)
			log.Printf("Accept error: %v; retrying in %v", err, backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		log.Printf("Client %s connected.", conn.RemoteAddr())
		client := NewClient(newTCPTransport(conn, s.cfg.WriteTimeout))
		if !s.hub.Register(client) {
			client.close()
			return
		}
	}
}

func nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return minAcceptBackoff
	}
	current *= 2
	if current > maxAcceptBackoff {
		current = maxAcceptBackoff
	}
	return current
}
