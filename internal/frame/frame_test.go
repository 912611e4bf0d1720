package frame_test

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Tyrowin/framerelay/internal/frame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRoundTrip verifies that encoding then decoding returns the payload.
func TestRoundTrip(t *testing.T) {
	payloads := []string{
		"hello",
		"/nick alice",
		"héllo wörld ✓",
		strings.Repeat("x", frame.Size),
	}

	for _, p := range payloads {
		buf, err := frame.Encode([]byte(p))
		require.NoError(t, err)
		assert.Len(t, buf, frame.Size)
		assert.Equal(t, p, string(frame.Decode(buf)))
	}
}

// TestEncodeRejectsOversizedPayload verifies the payload length bound.
func TestEncodeRejectsOversizedPayload(t *testing.T) {
	_, err := frame.Encode(make([]byte, frame.Size+1))
	assert.ErrorIs(t, err, frame.ErrTooLarge)
}

// TestDecodeTrimsPaddingAndWhitespace verifies that only the tail is trimmed.
func TestDecodeTrimsPaddingAndWhitespace(t *testing.T) {
	buf, err := frame.Encode([]byte("  hi there \n"))
	require.NoError(t, err)

	assert.Equal(t, "  hi there", string(frame.Decode(buf)))
	assert.Equal(t, "  hi there \n", string(frame.Unpad(buf)))
}

// TestReadWrite verifies that frames survive a stream boundary intact.
func TestReadWrite(t *testing.T) {
	var stream bytes.Buffer
	require.NoError(t, frame.Write(&stream, []byte("first")))
	require.NoError(t, frame.Write(&stream, []byte("second")))
	assert.Equal(t, 2*frame.Size, stream.Len())

	got, err := frame.Read(&stream)
	require.NoError(t, err)
	assert.Equal(t, "first", string(frame.Decode(got)))

	got, err = frame.Read(&stream)
	require.NoError(t, err)
	assert.Equal(t, "second", string(frame.Decode(got)))

	_, err = frame.Read(&stream)
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, frame.IsClosed(err))
}

// TestReadPartialFrame verifies that a truncated stream is reported as closed.
func TestReadPartialFrame(t *testing.T) {
	_, err := frame.Read(bytes.NewReader([]byte("short")))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.True(t, frame.IsClosed(err))
}

// TestTruncateKeepsRunesWhole verifies that truncation never splits a rune.
func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", frame.Truncate("short"))

	long := strings.Repeat("a", frame.Size-1) + "é" + "tail"
	got := frame.Truncate(long)
	assert.LessOrEqual(t, len(got), frame.Size)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", frame.Size-1), got)
}
