package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/DeBrosOfficial/subbridge/pkg/broker"
	"github.com/DeBrosOfficial/subbridge/pkg/errors"
)

// fakeConn records broker calls and fails on selected topics.
type fakeConn struct {
	mu       sync.Mutex
	subs     map[string]broker.Handler
	failSub  map[string]bool
	failUnsb map[string]bool
	closed   bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		subs:     make(map[string]broker.Handler),
		failSub:  make(map[string]bool),
		failUnsb: make(map[string]bool),
	}
}

func (f *fakeConn) Subscribe(_ context.Context, topic broker.Topic, h broker.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSub[topic.String()] {
		return fmt.Errorf("refused %s", topic)
	}
	f.subs[topic.String()] = h
	return nil
}

func (f *fakeConn) Unsubscribe(_ context.Context, topic broker.Topic) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUnsb[topic.String()] {
		return fmt.Errorf("refused %s", topic)
	}
	delete(f.subs, topic.String())
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) deliver(topic, payload string) {
	f.mu.Lock()
	h := f.subs[topic]
	f.mu.Unlock()
	if h != nil {
		h(broker.Event{Topic: topic, Payload: payload})
	}
}

func (f *fakeConn) subscribed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
	setup func(*fakeConn)
}

func (d *fakeDialer) Dial(context.Context, []*url.URL, broker.Options) (broker.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	if d.setup != nil {
		d.setup(c)
	}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func mustTopics(t *testing.T, names ...string) []broker.Topic {
	t.Helper()
	topics, err := broker.ParseTopics(names)
	if err != nil {
		t.Fatalf("ParseTopics: %v", err)
	}
	return topics
}

func newTestClient(t *testing.T, d broker.Dialer) *Client {
	t.Helper()
	b, err := NewBuilder().Node("http://localhost:14265")
	if err != nil {
		t.Fatalf("Node: %v", err)
	}
	c, err := b.WithDialer(d).WithLogger(zap.NewNop()).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return c
}

func TestClientConnectsLazily(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)

	if d.last() != nil {
		t.Fatalf("expected no dial before subscribe")
	}
	if c.Info().Connected {
		t.Fatalf("expected disconnected client")
	}

	if err := c.Subscribe(context.Background(), mustTopics(t, "x"), "s1", func(broker.Event) {}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if d.last() == nil || !c.Info().Connected {
		t.Fatalf("expected connection after subscribe")
	}
}

func TestClientDispatchesToEveryHandler(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)

	var mu sync.Mutex
	got := map[string]int{}
	h := func(name string) broker.Handler {
		return func(ev broker.Event) {
			mu.Lock()
			got[name+":"+ev.Payload]++
			mu.Unlock()
		}
	}

	ctx := context.Background()
	if err := c.Subscribe(ctx, mustTopics(t, "x", "x", "y"), "a", h("a")); err != nil {
		t.Fatalf("Subscribe a: %v", err)
	}
	if err := c.Subscribe(ctx, mustTopics(t, "x"), "b", h("b")); err != nil {
		t.Fatalf("Subscribe b: %v", err)
	}

	conn := d.last()
	if n := conn.subscribed(); n != 2 {
		t.Fatalf("expected 2 broker subscriptions, got %d", n)
	}
	conn.deliver("x", "1")
	conn.deliver("y", "2")

	mu.Lock()
	defer mu.Unlock()
	if got["a:1"] != 1 || got["b:1"] != 1 || got["a:2"] != 1 || got["b:2"] != 0 {
		t.Fatalf("unexpected dispatch counts: %v", got)
	}
}

func TestClientSubscribeFailureRollsBack(t *testing.T) {
	d := &fakeDialer{setup: func(c *fakeConn) { c.failSub["bad"] = true }}
	c := newTestClient(t, d)

	err := c.Subscribe(context.Background(), mustTopics(t, "good", "bad"), "s1", func(broker.Event) {})
	if !errors.IsBroker(err) {
		t.Fatalf("expected broker error, got %v", err)
	}
	if n := d.last().subscribed(); n != 0 {
		t.Fatalf("expected rollback, %d subscriptions left", n)
	}
	if topics := c.Info().Topics; len(topics) != 0 {
		t.Fatalf("expected no topics, got %v", topics)
	}
	if !d.last().closed {
		t.Fatalf("expected idle connection to be closed")
	}
}

func TestClientDialFailure(t *testing.T) {
	c := newTestClient(t, &fakeDialer{err: fmt.Errorf("unreachable")})

	err := c.Subscribe(context.Background(), mustTopics(t, "x"), "s1", func(broker.Event) {})
	var be *errors.BrokerError
	if !errors.As(err, &be) {
		t.Fatalf("expected BrokerError, got %v", err)
	}
	if be.Op != "connect" {
		t.Fatalf("expected connect op, got %q", be.Op)
	}
}

func TestClientAutomaticDisconnect(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	ctx := context.Background()

	if err := c.Subscribe(ctx, mustTopics(t, "x", "y"), "s1", func(broker.Event) {}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := c.Unsubscribe(ctx, mustTopics(t, "x"), "s1"); err != nil {
		t.Fatalf("Unsubscribe x: %v", err)
	}
	if !c.Info().Connected {
		t.Fatalf("expected connection while y is subscribed")
	}
	if err := c.Unsubscribe(ctx, mustTopics(t, "y", "never"), "s1"); err != nil {
		t.Fatalf("Unsubscribe y: %v", err)
	}
	if c.Info().Connected {
		t.Fatalf("expected automatic disconnect")
	}
	if !d.last().closed {
		t.Fatalf("expected broker connection closed")
	}
}

func TestClientKeepsConnectionWithoutAutomaticDisconnect(t *testing.T) {
	d := &fakeDialer{}
	opts := broker.DefaultOptions()
	opts.AutomaticDisconnect = false

	b, err := NewBuilder().Node("http://localhost:14265")
	if err != nil {
		t.Fatalf("Node: %v", err)
	}
	c, err := b.BrokerOptions(opts).WithDialer(d).WithLogger(zap.NewNop()).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ctx := context.Background()
	if err := c.Subscribe(ctx, mustTopics(t, "x"), "s1", func(broker.Event) {}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := c.Unsubscribe(ctx, mustTopics(t, "x"), "s1"); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if !c.Info().Connected {
		t.Fatalf("expected connection to stay open")
	}
}

func TestClientUnsubscribeFailureKeepsTopic(t *testing.T) {
	d := &fakeDialer{setup: func(c *fakeConn) { c.failUnsb["x"] = true }}
	c := newTestClient(t, d)
	ctx := context.Background()

	if err := c.Subscribe(ctx, mustTopics(t, "x", "y"), "s1", func(broker.Event) {}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	err := c.Unsubscribe(ctx, mustTopics(t, "x", "y"), "s1")
	var be *errors.BrokerError
	if !errors.As(err, &be) {
		t.Fatalf("expected BrokerError, got %v", err)
	}
	if len(be.Topics) != 1 || be.Topics[0] != "x" {
		t.Fatalf("expected failed topic x, got %v", be.Topics)
	}
	if topics := c.Info().Topics; len(topics) != 1 || topics[0] != "x" {
		t.Fatalf("expected x to remain, got %v", topics)
	}
}

func TestClientSharedTopicKeepsOtherSubscribers(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	ctx := context.Background()

	var mu sync.Mutex
	got := map[string]int{}
	h := func(name string) broker.Handler {
		return func(ev broker.Event) {
			mu.Lock()
			got[name]++
			mu.Unlock()
		}
	}

	if err := c.Subscribe(ctx, mustTopics(t, "x"), "a", h("a")); err != nil {
		t.Fatalf("Subscribe a: %v", err)
	}
	if err := c.Subscribe(ctx, mustTopics(t, "x"), "b", h("b")); err != nil {
		t.Fatalf("Subscribe b: %v", err)
	}
	if err := c.Unsubscribe(ctx, mustTopics(t, "x"), "b"); err != nil {
		t.Fatalf("Unsubscribe b: %v", err)
	}

	conn := d.last()
	if n := conn.subscribed(); n != 1 {
		t.Fatalf("expected broker subscription to stay, got %d", n)
	}
	conn.deliver("x", "1")

	mu.Lock()
	if got["a"] != 1 || got["b"] != 0 {
		t.Fatalf("unexpected dispatch counts: %v", got)
	}
	mu.Unlock()

	if err := c.Unsubscribe(ctx, mustTopics(t, "x"), "a"); err != nil {
		t.Fatalf("Unsubscribe a: %v", err)
	}
	if n := conn.subscribed(); n != 0 {
		t.Fatalf("expected broker subscription dropped, got %d", n)
	}
	if c.Info().Connected {
		t.Fatalf("expected automatic disconnect")
	}
}

func TestClientResubscribeReplacesHandler(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	ctx := context.Background()

	var first, second int
	if err := c.Subscribe(ctx, mustTopics(t, "x"), "a", func(broker.Event) { first++ }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := c.Subscribe(ctx, mustTopics(t, "x"), "a", func(broker.Event) { second++ }); err != nil {
		t.Fatalf("second Subscribe: %v", err)
	}
	d.last().deliver("x", "1")
	if first != 0 || second != 1 {
		t.Fatalf("expected only the latest handler, got first=%d second=%d", first, second)
	}
}

func TestClientSharedTopicUnsubscribeFailureKeepsHandler(t *testing.T) {
	d := &fakeDialer{setup: func(c *fakeConn) { c.failUnsb["x"] = true }}
	c := newTestClient(t, d)
	ctx := context.Background()

	var got int
	if err := c.Subscribe(ctx, mustTopics(t, "x", "y"), "a", func(broker.Event) { got++ }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	err := c.Unsubscribe(ctx, mustTopics(t, "x", "y"), "a")
	var be *errors.BrokerError
	if !errors.As(err, &be) || len(be.Topics) != 1 || be.Topics[0] != "x" {
		t.Fatalf("expected failure on x only, got %v", err)
	}

	d.last().deliver("x", "1")
	if got != 1 {
		t.Fatalf("expected handler on x to stay attached, got %d events", got)
	}

	conn := d.last()
	conn.mu.Lock()
	conn.failUnsb["x"] = false
	conn.mu.Unlock()
	if err := c.Unsubscribe(ctx, mustTopics(t, "x"), "a"); err != nil {
		t.Fatalf("retry Unsubscribe: %v", err)
	}
	if topics := c.Info().Topics; len(topics) != 0 {
		t.Fatalf("expected no topics, got %v", topics)
	}
}

func TestClientClose(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)

	if err := c.Subscribe(context.Background(), mustTopics(t, "x"), "s1", func(broker.Event) {}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if !d.last().closed {
		t.Fatalf("expected broker connection closed")
	}
	err := c.Subscribe(context.Background(), mustTopics(t, "x"), "s1", func(broker.Event) {})
	if !errors.Is(err, ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
}

func TestClientWithMemoryNetwork(t *testing.T) {
	network := broker.NewMemoryNetwork(8)
	defer network.Shutdown()

	opts := broker.DefaultOptions()
	opts.Transport = broker.TransportMemory

	b, err := NewBuilder().Node("http://localhost:14265")
	if err != nil {
		t.Fatalf("Node: %v", err)
	}
	c, err := b.BrokerOptions(opts).
		WithDialer(broker.NewTransportDialer(zap.NewNop(), network)).
		WithLogger(zap.NewNop()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Close()

	got := make(chan broker.Event, 1)
	if err := c.Subscribe(context.Background(), mustTopics(t, "milestones/latest"), "s1", func(ev broker.Event) {
		got <- ev
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	network.Publish("milestones/latest", `{"index":1}`)
	select {
	case ev := <-got:
		if ev.Payload != `{"index":1}` {
			t.Fatalf("unexpected payload %q", ev.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
}
