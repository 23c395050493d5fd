package static

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Resolver always yields the one configured upstream.
type Resolver struct {
	addr string
}

// NewResolver creates a resolver for host:port.
// Example: NewResolver("10.0.0.5", 8080)
func NewResolver(host string, port int) (*Resolver, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("upstream host is empty")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid upstream port: %d", port)
	}
	return &Resolver{addr: net.JoinHostPort(host, strconv.Itoa(port))}, nil
}

func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return r.addr, nil
}
