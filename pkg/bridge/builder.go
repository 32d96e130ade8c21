package bridge

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/DeBrosOfficial/subbridge/pkg/broker"
	"github.com/DeBrosOfficial/subbridge/pkg/client"
	"github.com/DeBrosOfficial/subbridge/pkg/logging"
	"github.com/DeBrosOfficial/subbridge/pkg/tasks"
)

// ClientBuilder accumulates client configuration. Setters are cheap and
// safe for concurrent use; node URLs are only validated by Build.
type ClientBuilder struct {
	rt *Runtime

	mu              sync.Mutex
	nodes           []string
	quorumSize      *uint8
	quorumThreshold *uint8
	brokerOptions   *broker.Options
}

type builderState struct {
	nodes           []string
	quorumSize      *uint8
	quorumThreshold *uint8
	brokerOptions   *broker.Options
}

// NewClientBuilder returns an empty builder.
func (rt *Runtime) NewClientBuilder() *ClientBuilder {
	return &ClientBuilder{rt: rt}
}

// AddNode appends a node URL.
func (b *ClientBuilder) AddNode(url string) *ClientBuilder {
	b.mu.Lock()
	b.nodes = append(b.nodes, url)
	b.mu.Unlock()
	return b
}

// AddNodes appends node URLs in order.
func (b *ClientBuilder) AddNodes(urls []string) *ClientBuilder {
	b.mu.Lock()
	b.nodes = append(b.nodes, urls...)
	b.mu.Unlock()
	return b
}

// SetQuorumSize overwrites the quorum size.
func (b *ClientBuilder) SetQuorumSize(n uint8) *ClientBuilder {
	b.mu.Lock()
	b.quorumSize = &n
	b.mu.Unlock()
	return b
}

// SetQuorumThreshold overwrites the quorum threshold.
func (b *ClientBuilder) SetQuorumThreshold(n uint8) *ClientBuilder {
	b.mu.Lock()
	b.quorumThreshold = &n
	b.mu.Unlock()
	return b
}

// SetBrokerOptions parses broker options from JSON text. On error the
// previously set options are kept.
func (b *ClientBuilder) SetBrokerOptions(text string) error {
	opts, err := broker.ParseOptions(text)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.brokerOptions = &opts
	b.mu.Unlock()
	return nil
}

// Nodes returns the accumulated node URLs.
func (b *ClientBuilder) Nodes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.nodes...)
}

func (b *ClientBuilder) snapshot() builderState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return builderState{
		nodes:           append([]string(nil), b.nodes...),
		quorumSize:      b.quorumSize,
		quorumThreshold: b.quorumThreshold,
		brokerOptions:   b.brokerOptions,
	}
}

// construct builds a client from st. Nodes are applied first, then quorum
// size, quorum threshold and broker options.
func (rt *Runtime) construct(st builderState) (*client.Client, error) {
	cb := client.NewBuilder()
	if _, err := cb.Nodes(st.nodes); err != nil {
		return nil, err
	}
	if st.quorumSize != nil {
		cb.QuorumSize(*st.quorumSize)
	}
	if st.quorumThreshold != nil {
		cb.QuorumThreshold(*st.quorumThreshold)
	}
	if st.brokerOptions != nil {
		cb.BrokerOptions(*st.brokerOptions)
	}
	return cb.WithDialer(rt.dialer).WithLogger(rt.logger.Named(logging.ComponentClient)).Build()
}

func (b *ClientBuilder) build(context.Context) (string, error) {
	st := b.snapshot()
	c, err := b.rt.construct(st)
	if err != nil {
		b.rt.logger.ComponentWarn(logging.ComponentBridge, "Client build failed", zap.Error(err))
		return "", err
	}
	handle := b.rt.Register(c)
	b.rt.logger.ComponentInfo(logging.ComponentBridge, "Client built",
		zap.String("handle", handle), zap.Strings("nodes", st.nodes))
	return handle, nil
}

// BuildAsync builds and registers a client on the worker pool and reports
// the handle to cb on the completion loop.
func (b *ClientBuilder) BuildAsync(cb func(handle string, err error)) {
	tasks.Schedule(b.rt.runner, "build", b.build, cb)
}

// Build builds and registers a client, waiting for the worker pool. The
// builder may be built again; each call yields a new client and handle.
// If ctx ends first, a client the worker still registers is dropped again.
func (b *ClientBuilder) Build(ctx context.Context) (string, error) {
	f := tasks.Schedule(b.rt.runner, "build", b.build, nil)
	handle, err := f.Get(ctx)
	if err != nil && ctx.Err() != nil {
		b.rt.dropAbandoned(f)
	}
	return handle, err
}

// dropAbandoned drops the client of a build nobody waits for anymore once
// the build finishes.
func (rt *Runtime) dropAbandoned(f *tasks.Future[string]) {
	tasks.Wait(rt.runner, "drop abandoned build", func(context.Context) (struct{}, error) {
		<-f.Done()
		handle, err := f.Get(context.Background())
		if err != nil {
			return struct{}{}, nil
		}
		rt.logger.ComponentDebug(logging.ComponentBridge, "Dropping client of abandoned build", zap.String("handle", handle))
		return struct{}{}, rt.DropClient(handle)
	}, nil)
}
