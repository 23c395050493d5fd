package tcp_proxy

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/hasirciogluhq/xgateway/cmd/gateway/internal/core"
	"github.com/hasirciogluhq/xgateway/cmd/gateway/internal/logger"
)

// DefaultTimeout bounds every read, write and the upstream dial.
const DefaultTimeout = 5 * time.Second

// Forwarder relays exactly one request/response exchange per inbound
// connection to the upstream, without looking at the bytes.
type Forwarder struct {
	Resolver core.UpstreamResolver
	Frames   core.FrameReader
	Timeout  time.Duration
}

func (f *Forwarder) timeout() time.Duration {
	if f.Timeout <= 0 {
		return DefaultTimeout
	}
	return f.Timeout
}

// HandleConnection implements core.ConnectionHandler.
// It takes full ownership of the connection lifecycle.
func (f *Forwarder) HandleConnection(clientConn net.Conn) {
	defer clientConn.Close()

	log := logger.With("conn_id", uuid.NewString(), "remote_addr", clientConn.RemoteAddr())
	timeout := f.timeout()

	// 1. Resolve Upstream
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	upstreamAddr, err := f.Resolver.Resolve(ctx)
	cancel()
	if err != nil {
		log.Error("Resolution failed", "error", err)
		return
	}

	// 2. Dial Upstream
	dialer := net.Dialer{Timeout: timeout}
	upstreamConn, err := dialer.Dial("tcp", upstreamAddr)
	if err != nil {
		log.Error("Dial failed", "upstream_addr", upstreamAddr, "error", err)
		return
	}
	// Deferred after the client close, so it runs first.
	defer upstreamConn.Close()

	setNoDelay(clientConn)
	setNoDelay(upstreamConn)

	// 3. Relay one exchange
	start := time.Now()
	if err := f.relay(log, clientConn, upstreamConn, timeout); err != nil {
		log.Error("Forwarding failed", "upstream_addr", upstreamAddr, "error", err)
		return
	}
	log.Info("Response forwarded to client", "upstream_addr", upstreamAddr, "elapsed", time.Since(start))
}

func (f *Forwarder) relay(log *slog.Logger, clientConn, upstreamConn net.Conn, timeout time.Duration) error {
	request, err := f.Frames.ReadFrame(clientConn, timeout)
	if err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	log.Info("Request received", "bytes", len(request))
	log.Debug("Request line", "line", firstLine(request))

	// An empty request is still forwarded.
	if err := writeFull(upstreamConn, request, timeout); err != nil {
		return fmt.Errorf("failed to forward request: %w", err)
	}

	response, err := f.Frames.ReadFrame(upstreamConn, timeout)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	log.Info("Received response from upstream", "bytes", len(response))

	if err := writeFull(clientConn, response, timeout); err != nil {
		return fmt.Errorf("failed to forward response: %w", err)
	}
	return nil
}

// writeFull writes all of p or fails. net.Conn writes are unbuffered, so
// nothing is left to flush afterwards.
func writeFull(conn net.Conn, p []byte, timeout time.Duration) error {
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	_, err := conn.Write(p)
	return err
}

func setNoDelay(conn net.Conn) {
	// Disable Nagle's algorithm for lower latency
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
}

// firstLine returns the start of the payload up to the first CRLF, capped
// so binary payloads do not flood the log.
func firstLine(p []byte) string {
	const maxLen = 120
	if i := bytes.Index(p, []byte("\r\n")); i >= 0 {
		p = p[:i]
	}
	if len(p) > maxLen {
		p = p[:maxLen]
	}
	return string(p)
}
