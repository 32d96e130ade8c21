package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/DeBrosOfficial/subbridge/pkg/config"
)

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func getEnvBoolDefault(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getEnvIntDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// loadGatewayConfig reads the optional YAML file and applies overrides.
// Priority: flags > env > file > defaults.
func loadGatewayConfig() (*config.Config, error) {
	path := flag.String("config", getEnvDefault("GATEWAY_CONFIG", ""), "Path to the YAML config file")
	addr := flag.String("addr", getEnvDefault("GATEWAY_ADDR", ""), "HTTP listen address (e.g., :6001)")
	workers := flag.Int("workers", getEnvIntDefault("GATEWAY_WORKERS", 0), "Worker pool size")
	level := flag.String("log-level", getEnvDefault("GATEWAY_LOG_LEVEL", ""), "Log level: debug, info, warn, error")
	noColor := flag.Bool("no-color", !getEnvBoolDefault("GATEWAY_LOG_COLOR", true), "Disable colored log output")

	// Do not call flag.Parse() elsewhere to avoid double-parsing
	flag.Parse()

	cfg := config.DefaultConfig()
	if p := strings.TrimSpace(*path); p != "" {
		loaded, err := config.Load(p)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *workers != 0 {
		cfg.Workers = *workers
	}
	if *level != "" {
		cfg.Logging.Level = *level
	}
	if *noColor {
		cfg.Logging.Color = false
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		var b strings.Builder
		b.WriteString("invalid configuration:")
		for _, err := range errs {
			b.WriteString("\n  - ")
			b.WriteString(err.Error())
		}
		return nil, fmt.Errorf("%s", b.String())
	}
	return cfg, nil
}
