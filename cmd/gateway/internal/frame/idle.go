package frame

import (
	"bytes"
	"errors"
	"io"
	"net"
	"time"
)

// DefaultIdleWindow is how long IdleReader waits for more bytes after a chunk
// before it considers the message complete.
const DefaultIdleWindow = 10 * time.Millisecond

// IdleReader ends a frame when no more data shows up within IdleWindow after a
// successful read. The first read of a frame waits up to the full timeout.
// A timeout or EOF terminates the frame with the bytes read so far; neither is
// an error.
//
// Sockets have no portable "bytes available" query, so availability is probed
// with a short read deadline. Data that arrives later than IdleWindow after the
// previous chunk is not part of the frame.
type IdleReader struct {
	IdleWindow time.Duration
	MaxSize    int
}

func NewIdleReader(idleWindow time.Duration, maxBytes int) *IdleReader {
	if idleWindow <= 0 {
		idleWindow = DefaultIdleWindow
	}
	return &IdleReader{IdleWindow: idleWindow, MaxSize: maxBytes}
}

func (r *IdleReader) ReadFrame(conn net.Conn, timeout time.Duration) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, ChunkSize)
	limit := maxSize(r.MaxSize)
	wait := timeout

	for {
		if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
			return nil, err
		}

		n, err := conn.Read(chunk)
		if n > 0 {
			if buf.Len()+n > limit {
				return nil, ErrFrameTooLarge
			}
			buf.Write(chunk[:n])
			wait = r.IdleWindow
		}
		if err != nil {
			if errors.Is(err, io.EOF) || isTimeout(err) {
				return buf.Bytes(), nil
			}
			return nil, err
		}
	}
}
