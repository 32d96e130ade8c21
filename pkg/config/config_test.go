package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func uint8p(v uint8) *uint8 { return &v }

func TestDefaultConfigIsValid(t *testing.T) {
	if errs := DefaultConfig().Validate(); len(errs) != 0 {
		t.Fatalf("expected default config to be valid, got %v", errs)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	data := `
listen_addr: "127.0.0.1:7001"
poll_timeout: 10s
logging:
  level: debug
  color: false
clients:
  - name: local
    nodes:
      - http://localhost:14265
    quorum_size: 2
    broker_options: '{"transport":"mqtt","useWs":false}'
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:7001" {
		t.Fatalf("unexpected listen addr %q", cfg.ListenAddr)
	}
	if cfg.PollTimeout != 10*time.Second {
		t.Fatalf("unexpected poll timeout %s", cfg.PollTimeout)
	}
	if cfg.Workers != 64 {
		t.Fatalf("expected default workers to survive, got %d", cfg.Workers)
	}
	if len(cfg.Clients) != 1 || *cfg.Clients[0].QuorumSize != 2 || cfg.Clients[0].QuorumThreshold != nil {
		t.Fatalf("unexpected clients %+v", cfg.Clients)
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("expected valid config, got %v", errs)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")
	if err := os.WriteFile(path, []byte("listen_adr: \":6001\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestValidateReportsPaths(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"bad listen addr", func(c *Config) { c.ListenAddr = "nowhere" }, "listen_addr"},
		{"zero workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"poll above max", func(c *Config) { c.PollTimeout = time.Hour }, "poll_timeout"},
		{"max poll above request", func(c *Config) { c.MaxPollTimeout = 2 * time.Minute }, "max_poll_timeout"},
		{"client without name", func(c *Config) {
			c.Clients = []ClientConfig{{Nodes: []string{"http://a.example"}}}
		}, "clients[0].name"},
		{"duplicate client", func(c *Config) {
			c.Clients = []ClientConfig{
				{Name: "a", Nodes: []string{"http://a.example"}},
				{Name: "a", Nodes: []string{"http://b.example"}},
			}
		}, "clients[1].name"},
		{"bad node", func(c *Config) {
			c.Clients = []ClientConfig{{Name: "a", Nodes: []string{"http://a.example", "ftp://b.example"}}}
		}, "clients[0].nodes[1]"},
		{"threshold too high", func(c *Config) {
			c.Clients = []ClientConfig{{Name: "a", Nodes: []string{"http://a.example"}, QuorumThreshold: uint8p(150)}}
		}, "clients[0].quorum_threshold"},
		{"bad broker options", func(c *Config) {
			c.Clients = []ClientConfig{{Name: "a", Nodes: []string{"http://a.example"}, BrokerOptions: "{"}}
		}, "clients[0].broker_options"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			errs := cfg.Validate()
			found := false
			for _, err := range errs {
				if strings.HasPrefix(err.Error(), tt.path+":") {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected error at %s, got %v", tt.path, errs)
			}
		})
	}
}

func TestLoadEmptyFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != DefaultConfig().ListenAddr {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}
