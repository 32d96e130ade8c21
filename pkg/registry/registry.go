// Package registry stores live values behind opaque string handles so they
// can be referenced across independent calls without handing out ownership.
package registry

import (
	"sort"
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/subbridge/pkg/errors"
)

// Entry is a registered value guarded by its own RW lock, so operations on
// one handle never contend with another handle.
type Entry[T any] struct {
	handle string
	mu     sync.RWMutex
	value  T
}

// Handle returns the handle the entry was registered under.
func (e *Entry[T]) Handle() string {
	return e.handle
}

// Read runs fn with shared access to the value.
func (e *Entry[T]) Read(fn func(T) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn(e.value)
}

// Write runs fn with exclusive access to the value.
func (e *Entry[T]) Write(fn func(T) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.value)
}

// Registry maps handles to entries. The zero value is not usable; call New.
type Registry[T any] struct {
	kind   string
	values *haxmap.Map[string, *Entry[T]]
	newID  func() string
	logger *zap.Logger
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	newID  func() string
	logger *zap.Logger
}

// WithIDGenerator overrides the handle generator (uuid v4 by default).
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithLogger sets the logger used for register/remove events.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an empty registry. kind names the stored resource in
// NotFound errors ("client", "subscriber").
func New[T any](kind string, opts ...Option) *Registry[T] {
	o := options{newID: uuid.NewString, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry[T]{
		kind:   kind,
		values: haxmap.New[string, *Entry[T]](),
		newID:  o.newID,
		logger: o.logger,
	}
}

// Register stores v under a fresh handle and returns it. A generated handle
// that is already taken is discarded and a new one drawn, so a live handle
// is never overwritten.
func (r *Registry[T]) Register(v T) string {
	entry := &Entry[T]{value: v}
	for {
		id := r.newID()
		entry.handle = id
		if _, loaded := r.values.GetOrSet(id, entry); !loaded {
			r.logger.Debug("registered",
				zap.String("kind", r.kind),
				zap.String("handle", id))
			return id
		}
	}
}

// Resolve returns the entry for handle, or a NotFoundError.
func (r *Registry[T]) Resolve(handle string) (*Entry[T], error) {
	entry, ok := r.values.Get(handle)
	if !ok {
		return nil, errors.NewNotFoundError(r.kind, handle)
	}
	return entry, nil
}

// Remove deletes handle from the registry and returns the value it held.
// In-flight holders of the entry keep working on the value; new lookups fail.
func (r *Registry[T]) Remove(handle string) (T, bool) {
	entry, ok := r.values.GetAndDel(handle)
	if !ok {
		var zero T
		return zero, false
	}
	r.logger.Debug("removed",
		zap.String("kind", r.kind),
		zap.String("handle", handle))
	return entry.value, true
}

// Len returns the number of live entries.
func (r *Registry[T]) Len() int {
	return int(r.values.Len())
}

// Handles returns all live handles in lexical order.
func (r *Registry[T]) Handles() []string {
	out := make([]string, 0, r.Len())
	r.values.ForEach(func(k string, _ *Entry[T]) bool {
		out = append(out, k)
		return true
	})
	sort.Strings(out)
	return out
}
