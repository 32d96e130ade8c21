package client

import (
	"context"

	"github.com/DeBrosOfficial/subbridge/pkg/broker"
)

// NetworkClient provides the broker-facing operations a topic subscriber
// needs.
type NetworkClient interface {
	// Subscribe attaches handler to every topic on behalf of subscriber
	// id. Either all topics are subscribed or none are.
	Subscribe(ctx context.Context, topics []broker.Topic, id string, handler broker.Handler) error

	// Unsubscribe detaches the handler of subscriber id from the topics.
	// Handlers of other subscribers stay attached.
	Unsubscribe(ctx context.Context, topics []broker.Topic, id string) error

	// Info returns a snapshot of the client state.
	Info() Info

	// Close drops the broker connection.
	Close() error
}

// Info describes a client for status endpoints.
type Info struct {
	Nodes           []string       `json:"nodes"`
	QuorumSize      uint8          `json:"quorum_size"`
	QuorumThreshold uint8          `json:"quorum_threshold"`
	BrokerOptions   broker.Options `json:"broker_options"`
	Connected       bool           `json:"connected"`
	Topics          []string       `json:"topics"`
	Closed          bool           `json:"closed"`
}
