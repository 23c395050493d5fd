package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// HeaderSize is the length of the big-endian payload length prefix.
const HeaderSize = 4

// LengthPrefixedReader reads a 4-byte big-endian payload length followed by
// the payload. The returned frame keeps the header so it is forwarded as is.
type LengthPrefixedReader struct {
	MaxSize int
}

func (r *LengthPrefixedReader) ReadFrame(conn net.Conn, timeout time.Duration) ([]byte, error) {
	tr := &timedReader{conn: conn, timeout: timeout}

	header := make([]byte, HeaderSize)
	n, err := io.ReadFull(tr, header)
	if err != nil {
		// Nothing sent at all is an empty message, not a broken one.
		if n == 0 && (errors.Is(err, io.EOF) || isTimeout(err)) {
			return []byte{}, nil
		}
		return nil, fmt.Errorf("%w: reading length header: %w", ErrIncompleteFrame, err)
	}

	size := binary.BigEndian.Uint32(header)
	if uint64(size)+HeaderSize > uint64(maxSize(r.MaxSize)) {
		return nil, fmt.Errorf("%w: declared payload %d bytes", ErrFrameTooLarge, size)
	}

	frame := make([]byte, HeaderSize+int(size))
	copy(frame, header)
	if _, err := io.ReadFull(tr, frame[HeaderSize:]); err != nil {
		return nil, fmt.Errorf("%w: reading %d byte payload: %w", ErrIncompleteFrame, size, err)
	}
	return frame, nil
}
