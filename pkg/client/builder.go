package client

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/DeBrosOfficial/subbridge/pkg/broker"
	"github.com/DeBrosOfficial/subbridge/pkg/errors"
)

// Builder assembles a ClientConfig and produces a Client. The zero value
// is not usable; call NewBuilder.
type Builder struct {
	config *ClientConfig
	dialer broker.Dialer
	logger *zap.Logger
}

// NewBuilder returns a builder holding the default configuration.
func NewBuilder() *Builder {
	return &Builder{config: DefaultClientConfig()}
}

// Node appends a node URL. The error names the node by its position.
func (b *Builder) Node(raw string) (*Builder, error) {
	u, err := ParseNodeURL(raw)
	if err != nil {
		var ve *errors.ValidationError
		if errors.As(err, &ve) {
			ve.Field = fmt.Sprintf("nodes[%d]", len(b.config.Nodes))
		}
		return b, err
	}
	b.config.Nodes = append(b.config.Nodes, u)
	return b, nil
}

// Nodes appends several node URLs, stopping at the first invalid one.
func (b *Builder) Nodes(raws []string) (*Builder, error) {
	for _, raw := range raws {
		if _, err := b.Node(raw); err != nil {
			return b, err
		}
	}
	return b, nil
}

// QuorumSize sets the number of nodes queried for quorum reads.
func (b *Builder) QuorumSize(n uint8) *Builder {
	b.config.QuorumSize = n
	return b
}

// QuorumThreshold sets the agreement percentage for quorum reads.
func (b *Builder) QuorumThreshold(n uint8) *Builder {
	b.config.QuorumThreshold = n
	return b
}

// BrokerOptions replaces the broker options.
func (b *Builder) BrokerOptions(opts broker.Options) *Builder {
	b.config.BrokerOptions = opts
	return b
}

// Quiet toggles the default logger's verbosity.
func (b *Builder) Quiet(quiet bool) *Builder {
	b.config.QuietMode = quiet
	return b
}

// WithDialer sets the dialer used to reach the broker.
func (b *Builder) WithDialer(d broker.Dialer) *Builder {
	b.dialer = d
	return b
}

// WithLogger sets the client logger.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// Build validates the configuration and creates a client. No network I/O
// happens here; the broker is dialled on first subscribe.
func (b *Builder) Build() (*Client, error) {
	cfg := *b.config
	cfg.Nodes = append(cfg.Nodes[:0:0], b.config.Nodes...)
	if err := ValidateClientConfig(&cfg); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		var err error
		logger, err = newClientLogger(cfg.QuietMode)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}
	dialer := b.dialer
	if dialer == nil {
		dialer = broker.NewTransportDialer(logger, nil)
	}
	return NewClient(&cfg, dialer, logger), nil
}
