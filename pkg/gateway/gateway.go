// Package gateway serves the bridge over HTTP: clients are built and
// inspected by handle, subscribers are driven through subscribe,
// unsubscribe and long-poll endpoints, and events can be streamed over a
// WebSocket.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/subbridge/pkg/bridge"
	"github.com/DeBrosOfficial/subbridge/pkg/logging"
	"github.com/DeBrosOfficial/subbridge/pkg/registry"
)

// Config holds the gateway HTTP settings.
type Config struct {
	ListenAddr string
	// RequestTimeout bounds every non-streaming request.
	RequestTimeout time.Duration
	// DefaultPollTimeout applies when a poll request has no timeout.
	DefaultPollTimeout time.Duration
	// MaxPollTimeout caps the timeout a poll request may ask for.
	MaxPollTimeout time.Duration
}

// DefaultConfig returns the gateway defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:         ":6001",
		RequestTimeout:     60 * time.Second,
		DefaultPollTimeout: 25 * time.Second,
		MaxPollTimeout:     55 * time.Second,
	}
}

// Gateway is the HTTP front of a bridge runtime.
type Gateway struct {
	logger      *logging.ColoredLogger
	cfg         Config
	rt          *bridge.Runtime
	subscribers *registry.Registry[*bridge.TopicSubscriber]
	router      chi.Router
	server      *http.Server
	startedAt   time.Time
}

// New creates a gateway serving rt.
func New(logger *logging.ColoredLogger, cfg Config, rt *bridge.Runtime) *Gateway {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	def := DefaultConfig()
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.MaxPollTimeout <= 0 {
		cfg.MaxPollTimeout = def.MaxPollTimeout
	}
	if cfg.DefaultPollTimeout <= 0 || cfg.DefaultPollTimeout > cfg.MaxPollTimeout {
		cfg.DefaultPollTimeout = min(def.DefaultPollTimeout, cfg.MaxPollTimeout)
	}

	g := &Gateway{
		logger:      logger,
		cfg:         cfg,
		rt:          rt,
		subscribers: registry.New[*bridge.TopicSubscriber]("subscriber", registry.WithLogger(logger.Named(logging.ComponentRegistry))),
		startedAt:   time.Now(),
	}
	g.router = g.routes()
	return g
}

// Handler returns the routed handler.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Start serves HTTP until Shutdown is called.
func (g *Gateway) Start() error {
	g.server = &http.Server{
		Addr:              g.cfg.ListenAddr,
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.logger.ComponentInfo(logging.ComponentGateway, "Gateway listening",
		zap.String("listen_addr", g.cfg.ListenAddr))
	if err := g.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server and closes every subscriber.
func (g *Gateway) Shutdown(ctx context.Context) error {
	var err error
	if g.server != nil {
		err = g.server.Shutdown(ctx)
	}
	for _, id := range g.subscribers.Handles() {
		if s, ok := g.subscribers.Remove(id); ok {
			s.Close()
		}
	}
	g.logger.ComponentInfo(logging.ComponentGateway, "Gateway stopped")
	return err
}
