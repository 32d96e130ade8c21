package broker

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type mqttConn struct {
	client mqtt.Client
	logger *zap.Logger

	mu     sync.Mutex
	topics map[string]struct{}
}

// dialMQTT connects to the first reachable broker; paho tries the servers
// in the order they were added.
func dialMQTT(ctx context.Context, nodes []*url.URL, o Options, logger *zap.Logger) (Conn, error) {
	copts := mqtt.NewClientOptions().
		SetClientID("subbridge-" + uuid.NewString()[:8]).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(o.Timeout()).
		SetOrderMatters(true)
	for _, n := range nodes {
		copts.AddBroker(o.MQTTEndpoint(n))
	}

	if o.MaxReconnectionAttempts > 0 {
		var attempts atomic.Int64
		limit := int64(o.MaxReconnectionAttempts)
		copts.SetReconnectingHandler(func(c mqtt.Client, _ *mqtt.ClientOptions) {
			if attempts.Add(1) > limit {
				logger.Warn("MQTT reconnection attempts exhausted, disconnecting",
					zap.Int64("attempts", limit))
				go c.Disconnect(0)
			}
		})
		copts.SetOnConnectHandler(func(mqtt.Client) { attempts.Store(0) })
	}
	copts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("MQTT connection lost", zap.Error(err))
	})

	client := mqtt.NewClient(copts)
	token := client.Connect()
	if err := waitDone(ctx, token.Done()); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}

	logger.Info("MQTT connected", zap.Int("servers", len(nodes)))
	return &mqttConn{
		client: client,
		logger: logger,
		topics: make(map[string]struct{}),
	}, nil
}

func (c *mqttConn) Subscribe(ctx context.Context, topic Topic, h Handler) error {
	token := c.client.Subscribe(topic.String(), 0, func(_ mqtt.Client, m mqtt.Message) {
		h(Event{Topic: m.Topic(), Payload: string(m.Payload())})
	})
	if err := waitDone(ctx, token.Done()); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	c.mu.Lock()
	c.topics[topic.String()] = struct{}{}
	c.mu.Unlock()
	return nil
}

func (c *mqttConn) Unsubscribe(ctx context.Context, topic Topic) error {
	token := c.client.Unsubscribe(topic.String())
	if err := waitDone(ctx, token.Done()); err != nil {
		return fmt.Errorf("mqtt unsubscribe %s: %w", topic, err)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt unsubscribe %s: %w", topic, err)
	}
	c.mu.Lock()
	delete(c.topics, topic.String())
	c.mu.Unlock()
	return nil
}

func (c *mqttConn) Close() error {
	c.client.Disconnect(250)
	c.logger.Info("MQTT disconnected")
	return nil
}
