package core

import (
	"context"
	"errors"
	"net"
	"sync/atomic"

	"github.com/hasirciogluhq/xgateway/cmd/gateway/internal/logger"
)

// Server is the generic TCP gateway server.
// It depends ONLY on interfaces, not concrete implementations.
type Server struct {
	Listener          net.Listener
	ConnectionHandler ConnectionHandler
	Pool              *WorkerPool

	shuttingDown atomic.Bool
}

// Serve accepts connections until the listener fails or Shutdown is called.
// It returns nil after Shutdown.
func (s *Server) Serve() error {
	if s.Pool == nil {
		s.Pool = NewWorkerPool(1)
	}

	for {
		conn, err := s.Listener.Accept()
		if err != nil {
			if s.shuttingDown.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Error("Accept failed", "error", err)
			return err
		}

		logger.Info("Connection accepted",
			"remote_addr", conn.RemoteAddr(),
			"running", s.Pool.Running(),
			"pending", s.Pool.Pending())

		if err := s.Pool.Submit(func() { s.handleConnection(conn) }); err != nil {
			logger.Warn("Rejecting connection", "remote_addr", conn.RemoteAddr(), "error", err)
			conn.Close()
		}
	}
}

func (s *Server) handleConnection(clientConn net.Conn) {
	// Delegate the entire lifecycle to the handler
	s.ConnectionHandler.HandleConnection(clientConn)
}

// Shutdown closes the listener and drains the worker pool.
// Handlers still running when ctx expires are abandoned, not interrupted.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shuttingDown.Store(true)
	err := s.Listener.Close()
	if s.Pool != nil {
		s.Pool.Close()
		if waitErr := s.Pool.Wait(ctx); waitErr != nil {
			return waitErr
		}
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
