package core

import (
	"context"
	"net"
	"time"
)

// UpstreamResolver defines how to find the upstream address.
// It is purely a lookup mechanism and knows nothing about the network.
type UpstreamResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// ConnectionHandler takes full ownership of an accepted connection,
// including closing it.
type ConnectionHandler interface {
	HandleConnection(conn net.Conn)
}

// FrameReader decides where one logical message on a raw byte stream ends.
// The gateway does not know the protocol it carries, so this is always a
// heuristic or an operator-chosen convention, never a guarantee.
type FrameReader interface {
	// ReadFrame reads one message from conn. timeout bounds each blocking read.
	ReadFrame(conn net.Conn, timeout time.Duration) ([]byte, error)
}
