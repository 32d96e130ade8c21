package broker

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"
)

// Conn is an established broker connection.
type Conn interface {
	// Subscribe registers h for topic. h is invoked on transport goroutines.
	Subscribe(ctx context.Context, topic Topic, h Handler) error
	// Unsubscribe removes the subscription for topic.
	Unsubscribe(ctx context.Context, topic Topic) error
	// Close tears the connection down.
	Close() error
}

// Dialer opens broker connections for a node list.
type Dialer interface {
	Dial(ctx context.Context, nodes []*url.URL, opts Options) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, nodes []*url.URL, opts Options) (Conn, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, nodes []*url.URL, opts Options) (Conn, error) {
	return f(ctx, nodes, opts)
}

// TransportDialer dispatches on Options.Transport.
type TransportDialer struct {
	Logger *zap.Logger
	// Memory backs the memory transport; nil disables it.
	Memory *MemoryNetwork
}

// NewTransportDialer creates a dialer for all network transports.
func NewTransportDialer(logger *zap.Logger, memory *MemoryNetwork) *TransportDialer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransportDialer{Logger: logger, Memory: memory}
}

// Dial implements Dialer.
func (d *TransportDialer) Dial(ctx context.Context, nodes []*url.URL, opts Options) (Conn, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("no nodes to dial")
	}
	logger := d.Logger.With(zap.String("transport", string(opts.Transport)))
	switch opts.Transport {
	case TransportMQTT:
		return dialMQTT(ctx, nodes, opts, logger)
	case TransportNATS:
		return dialNATS(ctx, nodes, opts, logger)
	case TransportGossipSub:
		return dialGossipSub(ctx, nodes, opts, logger)
	case TransportMemory:
		if d.Memory == nil {
			return nil, fmt.Errorf("memory transport is not enabled")
		}
		return d.Memory.Dial(ctx, nodes, opts)
	default:
		return nil, fmt.Errorf("unknown transport %q", opts.Transport)
	}
}

// waitDone blocks until done closes or ctx ends.
func waitDone(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
