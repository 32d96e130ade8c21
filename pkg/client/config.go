package client

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/DeBrosOfficial/subbridge/pkg/broker"
	"github.com/DeBrosOfficial/subbridge/pkg/errors"
)

const (
	// DefaultQuorumSize is the number of nodes queried when none is set.
	DefaultQuorumSize uint8 = 3
	// DefaultQuorumThreshold is the agreement percentage when none is set.
	DefaultQuorumThreshold uint8 = 66
)

// allowedSchemes are the node URL schemes accepted by the builder.
var allowedSchemes = map[string]bool{
	"http": true, "https": true,
	"mqtt": true, "mqtts": true, "tcp": true, "ssl": true,
	"ws": true, "wss": true,
	"nats": true, "tls": true,
	"libp2p": true,
}

// ClientConfig represents configuration for network clients
type ClientConfig struct {
	Nodes           []*url.URL     `json:"-"`
	QuorumSize      uint8          `json:"quorum_size"`
	QuorumThreshold uint8          `json:"quorum_threshold"`
	BrokerOptions   broker.Options `json:"broker_options"`
	QuietMode       bool           `json:"quiet_mode"` // Suppress debug/info logs
}

// DefaultClientConfig returns a default client configuration with no nodes.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		QuorumSize:      DefaultQuorumSize,
		QuorumThreshold: DefaultQuorumThreshold,
		BrokerOptions:   broker.DefaultOptions(),
		QuietMode:       true,
	}
}

// NodeStrings returns the node URLs in insertion order.
func (c *ClientConfig) NodeStrings() []string {
	out := make([]string, len(c.Nodes))
	for i, u := range c.Nodes {
		out[i] = u.String()
	}
	return out
}

// ParseNodeURL validates a single node URL. Only the syntax is checked;
// reachability is discovered on first use.
func ParseNodeURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.NewValidationError("node", "node URL must not be empty", raw)
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, errors.NewValidationError("node", "malformed node URL", raw).WithCause(err)
	}
	if !allowedSchemes[strings.ToLower(u.Scheme)] {
		return nil, errors.NewValidationError("node",
			fmt.Sprintf("unsupported URL scheme %q", u.Scheme), raw)
	}
	if u.Hostname() == "" {
		return nil, errors.NewValidationError("node", "node URL has no host", raw)
	}
	return u, nil
}

// ValidateClientConfig validates a client configuration
func ValidateClientConfig(cfg *ClientConfig) error {
	if len(cfg.Nodes) == 0 {
		return errors.NewValidationError("nodes", "at least one node is required", nil)
	}
	if cfg.QuorumSize == 0 {
		return errors.NewValidationError("quorum_size", "quorum size must be at least 1", cfg.QuorumSize)
	}
	if cfg.QuorumThreshold == 0 || cfg.QuorumThreshold > 100 {
		return errors.NewValidationError("quorum_threshold",
			"quorum threshold must be a percentage between 1 and 100", cfg.QuorumThreshold)
	}
	return cfg.BrokerOptions.Validate()
}
