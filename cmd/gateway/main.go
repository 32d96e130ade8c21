package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/DeBrosOfficial/subbridge/pkg/bridge"
	"github.com/DeBrosOfficial/subbridge/pkg/config"
	"github.com/DeBrosOfficial/subbridge/pkg/gateway"
	"github.com/DeBrosOfficial/subbridge/pkg/logging"
)

func setupLogger(cfg *config.Config) *logging.ColoredLogger {
	logger, err := logging.NewLogger(logging.Options{
		Level:        cfg.Logging.Level,
		EnableColors: cfg.Logging.Color,
	})
	if err != nil {
		panic(err)
	}
	return logger
}

func main() {
	cfg, err := loadGatewayConfig()
	if err != nil {
		bootLogger, _ := logging.NewColoredLogger(logging.ComponentGeneral, true)
		bootLogger.ComponentError(logging.ComponentGeneral, "failed to load configuration", zap.Error(err))
		os.Exit(1)
	}
	logger := setupLogger(cfg)

	rt := bridge.NewRuntime(
		bridge.WithWorkers(cfg.Workers),
		bridge.WithLogger(logger),
	)
	defer rt.Close()

	if err := buildConfiguredClients(rt, cfg.Clients, logger); err != nil {
		logger.ComponentError(logging.ComponentGeneral, "failed to build configured clients", zap.Error(err))
		os.Exit(1)
	}

	g := gateway.New(logger, gateway.Config{
		ListenAddr:         cfg.ListenAddr,
		RequestTimeout:     cfg.RequestTimeout,
		DefaultPollTimeout: cfg.PollTimeout,
		MaxPollTimeout:     cfg.MaxPollTimeout,
	}, rt)

	// Start server
	go func() {
		logger.ComponentInfo(logging.ComponentGeneral, "Gateway HTTP server starting",
			zap.String("addr", cfg.ListenAddr),
			zap.Int("workers", cfg.Workers),
			zap.Int("client_count", len(cfg.Clients)),
		)
		if err := g.Start(); err != nil {
			logger.ComponentError(logging.ComponentGeneral, "HTTP server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.ComponentInfo(logging.ComponentGeneral, "Shutting down gateway HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := g.Shutdown(ctx); err != nil {
		logger.ComponentError(logging.ComponentGeneral, "HTTP server shutdown error", zap.Error(err))
	}
	logger.ComponentInfo(logging.ComponentGeneral, "Gateway shutdown complete")
}

// buildConfiguredClients builds every client listed in the config file.
func buildConfiguredClients(rt *bridge.Runtime, clients []config.ClientConfig, logger *logging.ColoredLogger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, cc := range clients {
		b := rt.NewClientBuilder().AddNodes(cc.Nodes)
		if cc.QuorumSize != nil {
			b.SetQuorumSize(*cc.QuorumSize)
		}
		if cc.QuorumThreshold != nil {
			b.SetQuorumThreshold(*cc.QuorumThreshold)
		}
		if cc.BrokerOptions != "" {
			if err := b.SetBrokerOptions(cc.BrokerOptions); err != nil {
				return err
			}
		}
		handle, err := b.Build(ctx)
		if err != nil {
			return err
		}
		logger.ComponentInfo(logging.ComponentGeneral, "Configured client built",
			zap.String("name", cc.Name),
			zap.String("handle", handle),
			zap.Int("node_count", len(cc.Nodes)),
		)
	}
	return nil
}
