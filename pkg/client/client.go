package client

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DeBrosOfficial/subbridge/pkg/broker"
	"github.com/DeBrosOfficial/subbridge/pkg/errors"
)

// Client is a broker client bound to an immutable node list. The broker
// connection is opened on the first Subscribe and, with automatic
// disconnect enabled, dropped once no topic is left.
type Client struct {
	config *ClientConfig
	dialer broker.Dialer
	logger *zap.Logger

	// connMu serializes connection and broker subscription changes. It is
	// held across network calls.
	connMu sync.Mutex
	conn   broker.Conn
	closed bool

	// handlersMu guards handlers only and is never held across network
	// calls, so transport goroutines can always dispatch. handlers maps a
	// topic to the handlers attached to it, keyed by subscriber id.
	handlersMu sync.RWMutex
	handlers   map[string]map[string]broker.Handler

	startTime time.Time
}

// NewClient creates a client from a validated configuration.
func NewClient(config *ClientConfig, dialer broker.Dialer, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config:    config,
		dialer:    dialer,
		logger:    logger,
		handlers:  make(map[string]map[string]broker.Handler),
		startTime: time.Now(),
	}
}

// Config returns a snapshot copy of the client's configuration
func (c *Client) Config() *ClientConfig {
	cp := *c.config
	cp.Nodes = append(cp.Nodes[:0:0], c.config.Nodes...)
	return &cp
}

// Info implements NetworkClient.
func (c *Client) Info() Info {
	c.connMu.Lock()
	connected := c.conn != nil
	closed := c.closed
	c.connMu.Unlock()

	return Info{
		Nodes:           c.config.NodeStrings(),
		QuorumSize:      c.config.QuorumSize,
		QuorumThreshold: c.config.QuorumThreshold,
		BrokerOptions:   c.config.BrokerOptions,
		Connected:       connected,
		Topics:          c.topics(),
		Closed:          closed,
	}
}

func (c *Client) topics() []string {
	c.handlersMu.RLock()
	defer c.handlersMu.RUnlock()
	out := make([]string, 0, len(c.handlers))
	for t := range c.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// dedupe drops repeated topics while keeping first-seen order.
func dedupe(topics []broker.Topic) []broker.Topic {
	seen := make(map[string]bool, len(topics))
	out := make([]broker.Topic, 0, len(topics))
	for _, t := range topics {
		if seen[t.String()] {
			continue
		}
		seen[t.String()] = true
		out = append(out, t)
	}
	return out
}

// ensureConnected dials the broker if needed. connMu must be held.
func (c *Client) ensureConnected(ctx context.Context) (bool, error) {
	if c.conn != nil {
		return false, nil
	}
	dialCtx, cancel := context.WithTimeout(ctx, c.config.BrokerOptions.Timeout())
	defer cancel()

	conn, err := c.dialer.Dial(dialCtx, c.config.Nodes, c.config.BrokerOptions)
	if err != nil {
		return false, err
	}
	c.conn = conn
	c.logger.Debug("Connected to broker",
		zap.Strings("nodes", c.config.NodeStrings()),
		zap.String("transport", string(c.config.BrokerOptions.Transport)))
	return true, nil
}

// disconnectIfIdle closes the connection when automatic disconnect is on
// and nothing is subscribed. connMu must be held.
func (c *Client) disconnectIfIdle() {
	if c.conn == nil || !c.config.BrokerOptions.AutomaticDisconnect {
		return
	}
	c.handlersMu.RLock()
	idle := len(c.handlers) == 0
	c.handlersMu.RUnlock()
	if !idle {
		return
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Warn("Failed to close idle broker connection", zap.Error(err))
	}
	c.conn = nil
	c.logger.Debug("Disconnected idle broker connection")
}

// dispatch fans a transport event out to the handlers of topic.
func (c *Client) dispatch(topic string) broker.Handler {
	return func(ev broker.Event) {
		c.handlersMu.RLock()
		hs := make([]broker.Handler, 0, len(c.handlers[topic]))
		for _, h := range c.handlers[topic] {
			hs = append(hs, h)
		}
		c.handlersMu.RUnlock()
		for _, h := range hs {
			h(ev)
		}
	}
}

// Subscribe implements NetworkClient. The broker subscription for a topic
// is made when its first handler is attached. Subscribing again with the
// same id replaces that subscriber's handler.
func (c *Client) Subscribe(ctx context.Context, topics []broker.Topic, id string, handler broker.Handler) error {
	topics = dedupe(topics)
	names := broker.Strings(topics)
	if len(topics) == 0 {
		return errors.NewValidationError("topics", ErrNoTopics.Error(), nil)
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.closed {
		return errors.NewBrokerError("subscribe", names, ErrClientClosed)
	}
	if _, err := c.ensureConnected(ctx); err != nil {
		c.logger.Warn("Failed to connect to broker", zap.Strings("topics", names), zap.Error(err))
		return errors.NewBrokerError("connect", names, err)
	}

	subCtx, cancel := context.WithTimeout(ctx, c.config.BrokerOptions.Timeout())
	defer cancel()

	var added []broker.Topic
	for _, t := range topics {
		if c.attached(t.String()) > 0 {
			continue
		}
		if err := c.conn.Subscribe(subCtx, t, c.dispatch(t.String())); err != nil {
			c.rollback(added)
			c.disconnectIfIdle()
			c.logger.Warn("Broker subscribe failed", zap.Strings("topics", names), zap.Error(err))
			return errors.NewBrokerError("subscribe", names, err)
		}
		added = append(added, t)
	}

	c.handlersMu.Lock()
	for _, t := range topics {
		hs, ok := c.handlers[t.String()]
		if !ok {
			hs = make(map[string]broker.Handler)
			c.handlers[t.String()] = hs
		}
		hs[id] = handler
	}
	c.handlersMu.Unlock()

	c.logger.Debug("Subscribed", zap.Strings("topics", names), zap.String("subscriber", id))
	return nil
}

// attached returns the number of handlers on topic.
func (c *Client) attached(topic string) int {
	c.handlersMu.RLock()
	defer c.handlersMu.RUnlock()
	return len(c.handlers[topic])
}

// rollback undoes broker subscriptions made by a failed Subscribe call.
func (c *Client) rollback(added []broker.Topic) {
	for _, t := range added {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.BrokerOptions.Timeout())
		if err := c.conn.Unsubscribe(ctx, t); err != nil {
			c.logger.Warn("Failed to roll back subscription", zap.String("topic", t.String()), zap.Error(err))
		}
		cancel()
	}
}

// Unsubscribe implements NetworkClient. It detaches the handler of
// subscriber id from each topic and drops the broker subscription once no
// handler is left on it. Topics id is not attached to are ignored. When the
// broker refuses to drop a subscription the handler stays attached and the
// topic is reported in the returned BrokerError.
func (c *Client) Unsubscribe(ctx context.Context, topics []broker.Topic, id string) error {
	topics = dedupe(topics)
	names := broker.Strings(topics)

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.closed {
		return errors.NewBrokerError("unsubscribe", names, ErrClientClosed)
	}
	if c.conn == nil {
		return nil
	}

	unsubCtx, cancel := context.WithTimeout(ctx, c.config.BrokerOptions.Timeout())
	defer cancel()

	var failed []string
	var firstErr error
	for _, t := range topics {
		c.handlersMu.RLock()
		hs := c.handlers[t.String()]
		_, mine := hs[id]
		last := len(hs) == 1
		c.handlersMu.RUnlock()
		if !mine {
			continue
		}
		if last {
			if err := c.conn.Unsubscribe(unsubCtx, t); err != nil {
				failed = append(failed, t.String())
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
		}
		c.handlersMu.Lock()
		delete(hs, id)
		if len(hs) == 0 {
			delete(c.handlers, t.String())
		}
		c.handlersMu.Unlock()
	}

	c.disconnectIfIdle()

	if firstErr != nil {
		c.logger.Warn("Broker unsubscribe failed", zap.Strings("topics", failed), zap.Error(firstErr))
		return errors.NewBrokerError("unsubscribe", failed, firstErr)
	}
	c.logger.Debug("Unsubscribed", zap.Strings("topics", names), zap.String("subscriber", id))
	return nil
}

// Close implements NetworkClient. It is idempotent.
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	c.handlersMu.Lock()
	c.handlers = make(map[string]map[string]broker.Handler)
	c.handlersMu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.logger.Debug("Client closed", zap.Duration("uptime", time.Since(c.startTime)))
	return err
}
