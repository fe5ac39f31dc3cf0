package device

import (
	"context"
	"net"
	"time"
)

// Probe answers whether the device currently has network connectivity.
type Probe interface {
	Online(ctx context.Context) bool
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) bool

func (f ProbeFunc) Online(ctx context.Context) bool { return f(ctx) }

// DialProbe reports online when any host accepts a TCP connection.
type DialProbe struct {
	Hosts   []string
	Timeout time.Duration
}

func (d DialProbe) Online(ctx context.Context) bool {
	dialer := net.Dialer{Timeout: d.Timeout}
	for _, h := range d.Hosts {
		conn, err := dialer.DialContext(ctx, "tcp", h)
		if err == nil {
			_ = conn.Close()
			return true
		}
	}
	return false
}
