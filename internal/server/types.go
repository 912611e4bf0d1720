// Package server defines the events exchanged between client workers and the
// hub, the announcement formats, and shared utility helpers.
package server

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// EventKind tells the hub how to treat an Event beyond broadcasting it.
type EventKind int

const (
	// EventChat carries a "<nick>: <text>" line.
	EventChat EventKind = iota
	// EventNickChanged carries a rename notice; the hub updates the record.
	EventNickChanged
	// EventDisconnected carries a disconnect notice; the hub removes the record.
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventChat:
		return "chat"
	case EventNickChanged:
		return "nick"
	case EventDisconnected:
		return "disconnect"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is sent from a client worker to the hub. Text is broadcast verbatim
// to every client except Origin.
type Event struct {
	Kind    EventKind
	Origin  string
	Nick    string
	OldNick string
	Text    string

	// source is the record that emitted the event. A record replaced under
	// the same address must not be touched by its predecessor's events.
	source *Client
}

func chatEvent(origin, nick, text string) Event {
	return Event{
		Kind:   EventChat,
		Origin: origin,
		Nick:   nick,
		Text:   fmt.Sprintf("%s: %s", nick, text),
	}
}

func nickEvent(origin, oldNick, newNick string) Event {
	return Event{
		Kind:    EventNickChanged,
		Origin:  origin,
		Nick:    newNick,
		OldNick: oldNick,
		Text:    fmt.Sprintf("SERVER: %s is now known as %s", oldNick, newNick),
	}
}

func disconnectEvent(origin, nick string) Event {
	return Event{
		Kind:   EventDisconnected,
		Origin: origin,
		Nick:   nick,
		Text:   fmt.Sprintf("SERVER: %s has disconnected", nick),
	}
}

// Stats is a point-in-time view of the relay, served on /stats.
type Stats struct {
	Clients       int    `json:"clients"`
	ActiveWorkers int    `json:"active_workers"`
	QueuedJobs    int    `json:"queued_jobs"`
	Removed       uint64 `json:"removed"`
	Dropped       uint64 `json:"dropped"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
