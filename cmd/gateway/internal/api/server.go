package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hasirciogluhq/xgateway/cmd/gateway/internal/core"
	"github.com/hasirciogluhq/xgateway/cmd/gateway/internal/logger"
)

// HealthServer reports liveness and readiness of the gateway over HTTP.
//
// The gateway is ready while it accepts connections and the upstream
// address resolves. In kubernetes discovery a deleted Service therefore
// turns the gateway not-ready without restarting it.
type HealthServer struct {
	server   *http.Server
	resolver core.UpstreamResolver
	timeout  time.Duration
	serving  atomic.Bool
}

// NewHealthServer builds a health server on addr that probes resolver with
// the given timeout on every readiness check.
func NewHealthServer(addr string, resolver core.UpstreamResolver, timeout time.Duration) *HealthServer {
	hs := &HealthServer{
		resolver: resolver,
		timeout:  timeout,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", hs.handleHealth)
	mux.HandleFunc("/ready", hs.handleReady)

	hs.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: timeout,
	}
	return hs
}

func (s *HealthServer) Start() {
	go func() {
		logger.Info("Health server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health server error", "error", err)
		}
	}()
}

func (s *HealthServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// SetServing records whether the listener is accepting connections.
func (s *HealthServer) SetServing(serving bool) {
	s.serving.Store(serving)
}

func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

func (s *HealthServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.serving.Load() {
		http.Error(w, "not serving", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	upstream, err := s.resolver.Resolve(ctx)
	if err != nil {
		logger.Warn("Readiness check failed", "error", err)
		http.Error(w, "upstream unresolved: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "ready %s", upstream)
}
