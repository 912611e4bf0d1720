// Package server links relay instances over NATS so that announcements made
// on one instance reach the clients of every other instance.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Federation carries local announcements to other relay instances.
type Federation interface {
	Publish(text string) error
	Close() error
}

// envelope is the NATS message body.
type envelope struct {
	Instance string `json:"instance"`
	Text     string `json:"text"`
}

// NATSFederation publishes announcements on a subject and hands announcements
// from other instances to a deliver callback.
type NATSFederation struct {
	conn     *nats.Conn
	sub      *nats.Subscription
	subject  string
	instance string
}

// DialNATS connects to url and subscribes to subject. deliver is called for
// every announcement published by a different instance.
func DialNATS(url, subject string, deliver func(text string) bool) (*NATSFederation, error) {
	instance := uuid.NewString()

	conn, err := nats.Connect(url,
		nats.Name("framerelay-"+instance),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats at %s: %w", url, err)
	}

	f := &NATSFederation{conn: conn, subject: subject, instance: instance}

	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		text, ok := f.decode(msg.Data)
		if !ok {
			return
		}
		deliver(text)
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	f.sub = sub

	log.Printf("Federating announcements on %s as instance %s", subject, instance)
	return f, nil
}

// Publish sends one announcement to the other instances.
func (f *NATSFederation) Publish(text string) error {
	data, err := encodeEnvelope(f.instance, text)
	if err != nil {
		return err
	}
	return f.conn.Publish(f.subject, data)
}

// Close drains the subscription and the connection.
func (f *NATSFederation) Close() error {
	if err := f.sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed {
		log.Printf("NATS unsubscribe failed: %v", err)
	}
	return f.conn.Drain()
}

// decode returns the text of a message from another instance. Messages that
// do not parse, are empty or echo this instance are skipped.
func (f *NATSFederation) decode(data []byte) (string, bool) {
	return decodeEnvelope(f.instance, data)
}

func encodeEnvelope(instance, text string) ([]byte, error) {
	data, err := json.Marshal(envelope{Instance: instance, Text: text})
	if err != nil {
		return nil, fmt.Errorf("encode announcement: %w", err)
	}
	return data, nil
}

func decodeEnvelope(self string, data []byte) (string, bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("Invalid federation message: %v", err)
		return "", false
	}
	if env.Instance == self || env.Text == "" {
		return "", false
	}
	return env.Text, true
}
