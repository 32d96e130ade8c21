package config

import (
	"github.com/DeBrosOfficial/subbridge/pkg/config/validate"
)

// Validate performs comprehensive validation of the entire config.
// It aggregates all errors and returns them, allowing the caller to print all issues at once.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, validate.ValidateGateway(validate.GatewayConfig{
		ListenAddr:     c.ListenAddr,
		RequestTimeout: c.RequestTimeout,
		PollTimeout:    c.PollTimeout,
		MaxPollTimeout: c.MaxPollTimeout,
		Workers:        c.Workers,
	})...)

	errs = append(errs, validate.ValidateLogging(validate.LoggingConfig{
		Level: c.Logging.Level,
	})...)

	clients := make([]validate.ClientConfig, len(c.Clients))
	for i, cc := range c.Clients {
		clients[i] = validate.ClientConfig{
			Name:            cc.Name,
			Nodes:           cc.Nodes,
			QuorumSize:      cc.QuorumSize,
			QuorumThreshold: cc.QuorumThreshold,
			BrokerOptions:   cc.BrokerOptions,
		}
	}
	errs = append(errs, validate.ValidateClients(clients)...)

	return errs
}
