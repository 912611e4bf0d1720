// Package frame implements the relay's fixed-size wire format: every message
// is exactly Size bytes, a UTF-8 payload followed by zero padding.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// Size is the length of every frame on the wire.
const Size = 1024

// ErrTooLarge is returned when a payload does not fit in one frame.
var ErrTooLarge = fmt.Errorf("frame: payload exceeds %d bytes", Size)

// padding is trimmed from the tail of a frame when decoding.
const padding = "\x00 \t\r\n\v\f"

// Encode copies payload into a new zero-padded frame.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) > Size {
		return nil, ErrTooLarge
	}
	buf := make([]byte, Size)
	copy(buf, payload)
	return buf, nil
}

// Decode strips trailing zero padding and whitespace from a frame.
func Decode(frame []byte) []byte {
	return bytes.TrimRight(frame, padding)
}

// Unpad strips only the trailing zero padding, leaving whitespace intact.
func Unpad(frame []byte) []byte {
	return bytes.TrimRight(frame, "\x00")
}

// Read reads exactly one frame from r. A stream that ends part-way through a
// frame yields io.ErrUnexpectedEOF.
func Read(r io.Reader) ([]byte, error) {
	buf := make([]byte, Size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Write encodes payload and writes the whole frame to w.
func Write(w io.Writer, payload []byte) error {
	buf, err := Encode(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("frame: write: %w", err)
	}
	return nil
}

// Truncate shortens s to at most Size bytes without splitting a rune.
func Truncate(s string) string {
	if len(s) <= Size {
		return s
	}
	cut := Size
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// IsClosed reports whether err means the peer went away rather than sending
// a malformed frame.
func IsClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
