// Package server implements the framed TCP relay: a listener that accepts
// connections, a hub that owns the client registry and fans announcements
// out, and client workers that run on a bounded pool and turn incoming
// frames into hub events.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, transports, routing, and HTTP handlers to keep
// the codebase maintainable and testable as the project grows.
package server
