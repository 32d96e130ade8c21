package broker

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type natsConn struct {
	nc      *nats.Conn
	logger  *zap.Logger
	timeout time.Duration

	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

func dialNATS(ctx context.Context, nodes []*url.URL, o Options, logger *zap.Logger) (Conn, error) {
	servers := make([]string, 0, len(nodes))
	for _, n := range nodes {
		servers = append(servers, o.NATSEndpoint(n))
	}

	natsOpts := []nats.Option{
		nats.Name("subbridge"),
		nats.Timeout(o.Timeout()),
		nats.DontRandomize(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	}
	if o.MaxReconnectionAttempts > 0 {
		natsOpts = append(natsOpts, nats.MaxReconnects(o.MaxReconnectionAttempts))
	}

	type result struct {
		nc  *nats.Conn
		err error
	}
	done := make(chan result, 1)
	go func() {
		nc, err := nats.Connect(strings.Join(servers, ","), natsOpts...)
		done <- result{nc, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("nats connect: %w", r.err)
		}
		logger.Info("NATS connected", zap.String("url", r.nc.ConnectedUrl()))
		return &natsConn{
			nc:      r.nc,
			logger:  logger,
			timeout: o.Timeout(),
			subs:    make(map[string]*nats.Subscription),
		}, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.nc != nil {
				r.nc.Close()
			}
		}()
		return nil, fmt.Errorf("nats connect: %w", ctx.Err())
	}
}

func (c *natsConn) Subscribe(ctx context.Context, topic Topic, h Handler) error {
	subject := topic.NATSSubject()
	sub, err := c.nc.Subscribe(subject, func(m *nats.Msg) {
		h(Event{Topic: topicFromNATSSubject(m.Subject), Payload: string(m.Data)})
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}
	// A flush round-trip makes the server acknowledge the interest.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.nc.FlushWithContext(ctx); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[topic.String()] = sub
	c.mu.Unlock()
	return nil
}

func (c *natsConn) Unsubscribe(_ context.Context, topic Topic) error {
	c.mu.Lock()
	sub, ok := c.subs[topic.String()]
	delete(c.subs, topic.String())
	c.mu.Unlock()
	if !ok {
		return nil
	}
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", topic, err)
	}
	return nil
}

func (c *natsConn) Close() error {
	c.nc.Close()
	c.logger.Info("NATS disconnected")
	return nil
}
