package frame

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// DelimiterReader reads until Delimiter has been seen. The frame holds every
// byte received up to and including the read that completed the delimiter, so
// nothing the peer sent in the same burst is dropped.
type DelimiterReader struct {
	Delimiter []byte
	MaxSize   int
}

func NewDelimiterReader(delim string, maxBytes int) *DelimiterReader {
	return &DelimiterReader{Delimiter: []byte(delim), MaxSize: maxBytes}
}

func (r *DelimiterReader) ReadFrame(conn net.Conn, timeout time.Duration) ([]byte, error) {
	if len(r.Delimiter) == 0 {
		return nil, errors.New("empty frame delimiter")
	}

	tr := &timedReader{conn: conn, timeout: timeout}
	var buf bytes.Buffer
	chunk := make([]byte, ChunkSize)
	limit := maxSize(r.MaxSize)

	for {
		n, err := tr.Read(chunk)
		if n > 0 {
			if buf.Len()+n > limit {
				return nil, ErrFrameTooLarge
			}
			// The delimiter may straddle the previous chunk boundary.
			from := buf.Len() - len(r.Delimiter) + 1
			if from < 0 {
				from = 0
			}
			buf.Write(chunk[:n])
			if bytes.Contains(buf.Bytes()[from:], r.Delimiter) {
				return buf.Bytes(), nil
			}
		}
		if err != nil {
			if buf.Len() == 0 && (errors.Is(err, io.EOF) || isTimeout(err)) {
				return []byte{}, nil
			}
			return nil, fmt.Errorf("%w: %d bytes without delimiter: %w", ErrIncompleteFrame, buf.Len(), err)
		}
	}
}
