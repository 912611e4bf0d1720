// Package server manages individual relay clients: the registry record the
// hub keeps for each connection and the read loop that turns incoming
// payloads into hub events.
package server

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Tyrowin/framerelay/internal/frame"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// nickCommand prefixes a rename request.
const nickCommand = "/nick "

// ErrInvalidUTF8 marks a payload that cannot be relayed as text. It ends the
// sender's connection.
var ErrInvalidUTF8 = errors.New("payload is not valid UTF-8")

// Client is the hub's record of one connection. The nick field belongs to
// the hub; the read loop keeps its own copy.
type Client struct {
	transport Transport
	id        string
	session   string
	nick      string
	limiter   *rateLimiter
}

// NewClient wraps a transport in a client record keyed by its remote address.
func NewClient(transport Transport) *Client {
	return &Client{
		transport: transport,
		id:        transport.RemoteAddr(),
		session:   uuid.NewString(),
	}
}

// ID returns the registry key of the client.
func (c *Client) ID() string {
	return c.id
}

// serve is the client worker. It reads until the connection fails, emitting
// one event per accepted payload and a final disconnect event. emit reports
// false once the hub has stopped.
func (c *Client) serve(nick string, emit func(Event) bool) {
	defer c.close()

	for {
		payload, err := c.transport.ReadPayload()
		if err != nil {
			c.logReadError(err)
			emit(disconnectEvent(c.id, nick))
			return
		}

		event, ok, err := parsePayload(c.id, nick, payload)
		if err != nil {
			log.Printf("Closing %s (%s): %v", c.id, nick, err)
			emit(disconnectEvent(c.id, nick))
			return
		}
		if !ok {
			continue
		}

		switch event.Kind {
		case EventNickChanged:
			log.Printf("%s/%s changed nickname to %s", c.id, nick, event.Nick)
			nick = event.Nick
		case EventChat:
			if !c.checkRateLimit() {
				continue
			}
		}

		if !emit(event) {
			return
		}
	}
}

// parsePayload turns one unpadded payload from a client named nick into an
// event. ok is false when there is nothing to relay: a blank chat line or a
// "/nick " with no name is dropped rather than broadcast.
func parsePayload(origin, nick string, payload []byte) (Event, bool, error) {
	raw := frame.Unpad(payload)
	if !utf8.Valid(raw) {
		return Event{}, false, ErrInvalidUTF8
	}

	if bytes.HasPrefix(raw, []byte(nickCommand)) {
		newNick := strings.TrimFunc(string(raw[len(nickCommand):]), isPadding)
		if newNick == "" {
			return Event{}, false, nil
		}
		return nickEvent(origin, nick, newNick), true, nil
	}

	text := string(frame.Decode(raw))
	if strings.TrimSpace(text) == "" {
		return Event{}, false, nil
	}
	return chatEvent(origin, nick, text), true, nil
}

func isPadding(r rune) bool {
	return r == 0 || unicode.IsSpace(r)
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the chat line should be relayed
func (c *Client) checkRateLimit() bool {
	if c.limiter != nil && !c.limiter.allow() {
		log.Printf("Rate limit exceeded for %s; discarding message", c.id)
		return false
	}
	return true
}

// logReadError logs why the read loop is ending.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Printf("Message from %s exceeded maximum size of %d bytes", c.id, frame.Size)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		log.Printf("Client %s disconnected: %v", c.id, err)
	case frame.IsClosed(err) || isExpectedCloseError(err):
		log.Printf("Closing connection with: %s", c.id)
	default:
		log.Printf("Read error from %s: %v", c.id, err)
	}
}

// write sends one announcement to the client. Only the hub calls it.
func (c *Client) write(line string) error {
	return c.transport.WritePayload([]byte(frame.Truncate(line)))
}

func (c *Client) close() {
	if err := c.transport.Close(); err != nil && !isExpectedCloseError(err) {
		log.Printf("Error closing connection with %s: %v", c.id, err)
	}
}
