package validate

import (
	"fmt"
	"time"

	"github.com/DeBrosOfficial/subbridge/pkg/broker"
	"github.com/DeBrosOfficial/subbridge/pkg/client"
)

// GatewayConfig represents the gateway settings for validation purposes.
type GatewayConfig struct {
	ListenAddr     string
	RequestTimeout time.Duration
	PollTimeout    time.Duration
	MaxPollTimeout time.Duration
	Workers        int
}

// ClientConfig represents one prebuilt client for validation purposes.
type ClientConfig struct {
	Name            string
	Nodes           []string
	QuorumSize      *uint8
	QuorumThreshold *uint8
	BrokerOptions   string
}

// ValidateGateway validates the HTTP and worker settings.
func ValidateGateway(gc GatewayConfig) []error {
	var errs []error

	if err := ValidateListenAddr(gc.ListenAddr); err != nil {
		errs = append(errs, ValidationError{
			Path:    "listen_addr",
			Message: err.Error(),
			Hint:    "e.g. :6001 or 127.0.0.1:6001",
		})
	}
	if gc.Workers < 1 {
		errs = append(errs, ValidationError{
			Path:    "workers",
			Message: fmt.Sprintf("must be at least 1; got %d", gc.Workers),
		})
	}
	if gc.RequestTimeout <= 0 {
		errs = append(errs, ValidationError{
			Path:    "request_timeout",
			Message: "must be positive",
		})
	}
	if gc.PollTimeout < 0 {
		errs = append(errs, ValidationError{
			Path:    "poll_timeout",
			Message: "must not be negative",
		})
	}
	if gc.MaxPollTimeout <= 0 {
		errs = append(errs, ValidationError{
			Path:    "max_poll_timeout",
			Message: "must be positive",
		})
	} else if gc.PollTimeout > gc.MaxPollTimeout {
		errs = append(errs, ValidationError{
			Path:    "poll_timeout",
			Message: fmt.Sprintf("exceeds max_poll_timeout (%s)", gc.MaxPollTimeout),
		})
	}
	if gc.RequestTimeout > 0 && gc.MaxPollTimeout >= gc.RequestTimeout {
		errs = append(errs, ValidationError{
			Path:    "max_poll_timeout",
			Message: "must be shorter than request_timeout",
			Hint:    "long polls would otherwise be cut by the request timeout",
		})
	}

	return errs
}

// ValidateClients validates prebuilt client definitions.
func ValidateClients(clients []ClientConfig) []error {
	var errs []error
	seen := make(map[string]bool)

	for i, c := range clients {
		path := fmt.Sprintf("clients[%d]", i)

		if c.Name == "" {
			errs = append(errs, ValidationError{Path: path + ".name", Message: "must not be empty"})
		} else if seen[c.Name] {
			errs = append(errs, ValidationError{
				Path:    path + ".name",
				Message: fmt.Sprintf("duplicate client name %q", c.Name),
			})
		}
		seen[c.Name] = true

		if len(c.Nodes) == 0 {
			errs = append(errs, ValidationError{Path: path + ".nodes", Message: "must not be empty"})
		}
		for j, node := range c.Nodes {
			if _, err := client.ParseNodeURL(node); err != nil {
				errs = append(errs, ValidationError{
					Path:    fmt.Sprintf("%s.nodes[%d]", path, j),
					Message: err.Error(),
					Hint:    "expected scheme://host[:port]",
				})
			}
		}

		if c.QuorumSize != nil && *c.QuorumSize == 0 {
			errs = append(errs, ValidationError{Path: path + ".quorum_size", Message: "must be at least 1"})
		}
		if c.QuorumThreshold != nil && (*c.QuorumThreshold == 0 || *c.QuorumThreshold > 100) {
			errs = append(errs, ValidationError{
				Path:    path + ".quorum_threshold",
				Message: fmt.Sprintf("must be between 1 and 100; got %d", *c.QuorumThreshold),
			})
		}

		if c.BrokerOptions != "" {
			if _, err := broker.ParseOptions(c.BrokerOptions); err != nil {
				errs = append(errs, ValidationError{
					Path:    path + ".broker_options",
					Message: err.Error(),
				})
			}
		}
	}

	return errs
}
