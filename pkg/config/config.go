package config

import (
	"fmt"
	"os"
	"time"
)

// Config is the gateway configuration file.
type Config struct {
	ListenAddr     string         `yaml:"listen_addr"`
	RequestTimeout time.Duration  `yaml:"request_timeout"`
	PollTimeout    time.Duration  `yaml:"poll_timeout"`
	MaxPollTimeout time.Duration  `yaml:"max_poll_timeout"`
	Workers        int            `yaml:"workers"`
	Logging        LoggingConfig  `yaml:"logging"`
	Clients        []ClientConfig `yaml:"clients"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Color bool   `yaml:"color"`
}

// ClientConfig describes a client built at startup.
type ClientConfig struct {
	Name            string   `yaml:"name"`
	Nodes           []string `yaml:"nodes"`
	QuorumSize      *uint8   `yaml:"quorum_size"`
	QuorumThreshold *uint8   `yaml:"quorum_threshold"`
	// BrokerOptions is broker options JSON text.
	BrokerOptions string `yaml:"broker_options"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:     ":6001",
		RequestTimeout: 60 * time.Second,
		PollTimeout:    25 * time.Second,
		MaxPollTimeout: 55 * time.Second,
		Workers:        64,
		Logging: LoggingConfig{
			Level: "info",
			Color: true,
		},
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	cfg := DefaultConfig()
	if err := DecodeStrict(f, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
