// Package bridge exposes broker clients to hosts that must never block
// their control goroutine. Clients live in a handle registry; every
// blocking operation runs on a worker pool and reports through a callback
// invoked on the runtime's single completion loop.
package bridge

import (
	"time"

	"go.uber.org/zap"

	"github.com/DeBrosOfficial/subbridge/pkg/broker"
	"github.com/DeBrosOfficial/subbridge/pkg/client"
	"github.com/DeBrosOfficial/subbridge/pkg/errors"
	"github.com/DeBrosOfficial/subbridge/pkg/logging"
	"github.com/DeBrosOfficial/subbridge/pkg/registry"
	"github.com/DeBrosOfficial/subbridge/pkg/tasks"
)

// Runtime is the composition root: it owns the client registry and the
// worker pool shared by builders and subscribers.
type Runtime struct {
	clients     *registry.Registry[client.NetworkClient]
	runner      *tasks.Runner
	dialer      broker.Dialer
	logger      *logging.ColoredLogger
	pollTimeout time.Duration
}

type runtimeOptions struct {
	workers     int
	dialer      broker.Dialer
	logger      *logging.ColoredLogger
	pollTimeout time.Duration
	idGenerator func() string
}

// Option configures a Runtime.
type Option func(*runtimeOptions)

// WithWorkers bounds the number of concurrently running tasks.
func WithWorkers(n int) Option {
	return func(o *runtimeOptions) { o.workers = n }
}

// WithDialer sets how built clients reach the broker.
func WithDialer(d broker.Dialer) Option {
	return func(o *runtimeOptions) { o.dialer = d }
}

// WithLogger sets the runtime logger.
func WithLogger(l *logging.ColoredLogger) Option {
	return func(o *runtimeOptions) { o.logger = l }
}

// WithPollTimeout bounds every poll wait. Zero waits until an event
// arrives or the subscriber is closed.
func WithPollTimeout(d time.Duration) Option {
	return func(o *runtimeOptions) { o.pollTimeout = d }
}

// WithHandleGenerator overrides handle generation.
func WithHandleGenerator(fn func() string) Option {
	return func(o *runtimeOptions) { o.idGenerator = fn }
}

// NewRuntime creates a runtime and starts its worker pool.
func NewRuntime(opts ...Option) *Runtime {
	o := runtimeOptions{workers: tasks.DefaultWorkers}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNopLogger()
	}
	if o.dialer == nil {
		o.dialer = broker.NewTransportDialer(o.logger.Named(logging.ComponentBroker), nil)
	}

	regOpts := []registry.Option{registry.WithLogger(o.logger.Named(logging.ComponentRegistry))}
	if o.idGenerator != nil {
		regOpts = append(regOpts, registry.WithIDGenerator(o.idGenerator))
	}

	return &Runtime{
		clients:     registry.New[client.NetworkClient]("client", regOpts...),
		runner:      tasks.NewRunner(o.workers, o.logger.Named(logging.ComponentTasks)),
		dialer:      o.dialer,
		logger:      o.logger,
		pollTimeout: o.pollTimeout,
	}
}

// Register stores an already constructed client and returns its handle.
func (rt *Runtime) Register(c client.NetworkClient) string {
	handle := rt.clients.Register(c)
	rt.logger.ComponentDebug(logging.ComponentRegistry, "Client registered", zap.String("handle", handle))
	return handle
}

// Handles lists the live client handles.
func (rt *Runtime) Handles() []string {
	return rt.clients.Handles()
}

// ClientInfo describes the client behind handle.
func (rt *Runtime) ClientInfo(handle string) (client.Info, error) {
	entry, err := rt.clients.Resolve(handle)
	if err != nil {
		return client.Info{}, err
	}
	var info client.Info
	err = entry.Read(func(c client.NetworkClient) error {
		info = c.Info()
		return nil
	})
	return info, err
}

// DropClient removes handle from the registry and closes its client.
// Subscribers bound to it fail their next subscribe or unsubscribe with a
// NotFoundError.
func (rt *Runtime) DropClient(handle string) error {
	c, ok := rt.clients.Remove(handle)
	if !ok {
		return errors.NewNotFoundError("client", handle)
	}
	rt.logger.ComponentInfo(logging.ComponentRegistry, "Client dropped", zap.String("handle", handle))
	if err := c.Close(); err != nil {
		return errors.NewBrokerError("close", nil, err)
	}
	return nil
}

// Close stops the worker pool and closes every registered client.
func (rt *Runtime) Close() {
	rt.runner.Close()
	for _, handle := range rt.clients.Handles() {
		if c, ok := rt.clients.Remove(handle); ok {
			if err := c.Close(); err != nil {
				rt.logger.ComponentWarn(logging.ComponentBridge, "Failed to close client",
					zap.String("handle", handle), zap.Error(err))
			}
		}
	}
}
