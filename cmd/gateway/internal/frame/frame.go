// Package frame holds the strategies that decide where one message ends on a
// raw TCP stream whose protocol the gateway does not understand.
//
// IdleReader is the default. It assumes a sender pauses after each logical
// message and will truncate a message whose sender pauses longer than the
// idle window mid-message, or that does not finish within the read timeout.
// LengthPrefixedReader and DelimiterReader are exact but require the peers to
// follow their convention.
package frame

import (
	"errors"
	"net"
	"time"
)

// ChunkSize is the size of a single socket read.
const ChunkSize = 8 << 10

// DefaultMaxSize bounds a frame when a reader's MaxSize is zero.
const DefaultMaxSize = 64 << 20

var (
	// ErrFrameTooLarge is returned when a frame exceeds the reader's MaxSize.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
	// ErrIncompleteFrame is returned when the stream ends or stalls mid-frame.
	ErrIncompleteFrame = errors.New("incomplete frame")
)

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func maxSize(n int) int {
	if n <= 0 {
		return DefaultMaxSize
	}
	return n
}

// timedReader applies a fresh read deadline before every Read, which gives
// each blocking read its own timeout rather than one for the whole frame.
type timedReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r *timedReader) Read(p []byte) (int, error) {
	if err := r.conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
		return 0, err
	}
	return r.conn.Read(p)
}
