package broker

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/cskr/pubsub"
)

// MemoryNetwork is an in-process broker. Every Conn dialled from the same
// network sees every Publish. Topics are matched exactly; wildcard filters
// are rejected at subscribe time.
type MemoryNetwork struct {
	bus *pubsub.PubSub
}

// NewMemoryNetwork creates an in-process broker whose per-subscriber
// channels hold capacity messages.
func NewMemoryNetwork(capacity int) *MemoryNetwork {
	if capacity <= 0 {
		capacity = 64
	}
	return &MemoryNetwork{bus: pubsub.New(capacity)}
}

// Publish delivers payload to every subscriber of topic.
func (n *MemoryNetwork) Publish(topic, payload string) {
	n.bus.Pub(Event{Topic: topic, Payload: payload}, topic)
}

// Shutdown closes every subscriber channel.
func (n *MemoryNetwork) Shutdown() {
	n.bus.Shutdown()
}

// Dial implements Dialer. Node URLs are ignored.
func (n *MemoryNetwork) Dial(_ context.Context, _ []*url.URL, _ Options) (Conn, error) {
	return &memoryConn{net: n, subs: make(map[string]chan interface{})}, nil
}

type memoryConn struct {
	net *MemoryNetwork

	mu     sync.Mutex
	subs   map[string]chan interface{}
	closed bool
}

func (c *memoryConn) Subscribe(_ context.Context, topic Topic, h Handler) error {
	if topic.HasWildcard() {
		return fmt.Errorf("memory broker does not support wildcard topic %s", topic)
	}
	name := topic.String()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection closed")
	}
	if _, ok := c.subs[name]; ok {
		return nil
	}

	ch := c.net.bus.Sub(name)
	c.subs[name] = ch
	go func() {
		// The channel is closed by the bus once it has no topics left.
		for msg := range ch {
			if ev, ok := msg.(Event); ok {
				h(ev)
			}
		}
	}()
	return nil
}

func (c *memoryConn) Unsubscribe(_ context.Context, topic Topic) error {
	name := topic.String()

	c.mu.Lock()
	ch, ok := c.subs[name]
	delete(c.subs, name)
	c.mu.Unlock()

	if ok {
		c.net.bus.Unsub(ch, name)
	}
	return nil
}

func (c *memoryConn) Close() error {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[string]chan interface{})
	c.closed = true
	c.mu.Unlock()

	for name, ch := range subs {
		c.net.bus.Unsub(ch, name)
	}
	return nil
}
