package factory

import (
	"fmt"

	"github.com/hasirciogluhq/xgateway/cmd/gateway/internal/config"
	"github.com/hasirciogluhq/xgateway/cmd/gateway/internal/core"
	"github.com/hasirciogluhq/xgateway/cmd/gateway/internal/frame"
	"github.com/hasirciogluhq/xgateway/cmd/gateway/internal/logger"
	tcp_proxy "github.com/hasirciogluhq/xgateway/cmd/gateway/internal/proxy/tcp"
)

// ForwarderFactory creates the connection handler and its framing strategy
type ForwarderFactory struct {
	cfg *config.Config
}

// NewForwarderFactory creates a new forwarder factory
func NewForwarderFactory(cfg *config.Config) *ForwarderFactory {
	return &ForwarderFactory{cfg: cfg}
}

// Create creates a connection handler that relays to the resolved upstream
func (f *ForwarderFactory) Create(resolver core.UpstreamResolver) (core.ConnectionHandler, error) {
	frames, err := f.createFrameReader()
	if err != nil {
		return nil, err
	}

	logger.Info("Creating TCP Forwarder",
		"frame_mode", f.cfg.FrameMode,
		"timeout", f.cfg.Timeout)

	return &tcp_proxy.Forwarder{
		Resolver: resolver,
		Frames:   frames,
		Timeout:  f.cfg.Timeout,
	}, nil
}

func (f *ForwarderFactory) createFrameReader() (core.FrameReader, error) {
	switch f.cfg.FrameMode {
	case config.FrameModeIdle:
		logger.Warn("Idle framing can truncate senders that pause mid-message",
			"idle_window", f.cfg.FrameIdleWindow)
		return frame.NewIdleReader(f.cfg.FrameIdleWindow, f.cfg.FrameMaxBytes), nil
	case config.FrameModeLength:
		return &frame.LengthPrefixedReader{MaxSize: f.cfg.FrameMaxBytes}, nil
	case config.FrameModeDelimiter:
		return frame.NewDelimiterReader(f.cfg.FrameDelimiter, f.cfg.FrameMaxBytes), nil
	default:
		return nil, fmt.Errorf("unknown frame mode: %s", f.cfg.FrameMode)
	}
}
