package broker

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	libp2ppubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/security/noise"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	"github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"
)

// gossipConn is a lightweight libp2p participant: it joins GossipSub, dials
// every node as a bootstrap peer and never runs discovery of its own.
type gossipConn struct {
	host   host.Host
	ps     *libp2ppubsub.PubSub
	logger *zap.Logger

	mu     sync.Mutex
	topics map[string]*libp2ppubsub.Topic
	subs   map[string]*gossipSubscription
}

type gossipSubscription struct {
	sub    *libp2ppubsub.Subscription
	cancel context.CancelFunc
}

func dialGossipSub(ctx context.Context, nodes []*url.URL, o Options, logger *zap.Logger) (Conn, error) {
	peers := make([]*peer.AddrInfo, 0, len(nodes))
	for _, n := range nodes {
		addr, err := o.GossipSubEndpoint(n)
		if err != nil {
			return nil, err
		}
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid multiaddr %s: %w", addr, err)
		}
		info, err := peer.AddrInfoFromP2pAddr(ma)
		if err != nil {
			return nil, fmt.Errorf("invalid peer address %s: %w", addr, err)
		}
		peers = append(peers, info)
	}

	h, err := libp2p.New(
		libp2p.ListenAddrStrings("/ip4/0.0.0.0/tcp/0"),
		libp2p.Security(noise.ID, noise.New),
		libp2p.DefaultMuxers,
		libp2p.Transport(tcp.NewTCPTransport),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	ps, err := libp2ppubsub.NewGossipSub(context.Background(), h,
		libp2ppubsub.WithPeerExchange(true),
	)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to create pubsub: %w", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, o.Timeout())
	defer cancel()

	connected := 0
	for _, info := range peers {
		h.Peerstore().AddAddrs(info.ID, info.Addrs, 24*time.Hour)
		if err := h.Connect(dialCtx, *info); err != nil {
			logger.Warn("Failed to connect to node peer",
				zap.String("peer", info.ID.String()),
				zap.Error(err))
			continue
		}
		connected++
	}
	if connected == 0 {
		h.Close()
		return nil, fmt.Errorf("could not connect to any of %d node peers", len(peers))
	}

	logger.Info("GossipSub connected",
		zap.String("peer_id", h.ID().String()),
		zap.Int("connected_peers", connected))

	return &gossipConn{
		host:   h,
		ps:     ps,
		logger: logger,
		topics: make(map[string]*libp2ppubsub.Topic),
		subs:   make(map[string]*gossipSubscription),
	}, nil
}

// getOrCreateTopic must be called with c.mu held.
func (c *gossipConn) getOrCreateTopic(name string) (*libp2ppubsub.Topic, error) {
	if t, ok := c.topics[name]; ok {
		return t, nil
	}
	t, err := c.ps.Join(name)
	if err != nil {
		return nil, fmt.Errorf("failed to join topic: %w", err)
	}
	c.topics[name] = t
	return t, nil
}

func (c *gossipConn) Subscribe(_ context.Context, topic Topic, h Handler) error {
	if topic.HasWildcard() {
		return fmt.Errorf("gossipsub does not support wildcard topic %s", topic)
	}
	name := topic.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.subs[name]; exists {
		return nil
	}
	t, err := c.getOrCreateTopic(name)
	if err != nil {
		return err
	}
	sub, err := t.Subscribe()
	if err != nil {
		return fmt.Errorf("failed to subscribe to topic: %w", err)
	}

	subCtx, cancel := context.WithCancel(context.Background())
	c.subs[name] = &gossipSubscription{sub: sub, cancel: cancel}

	self := c.host.ID()
	go func() {
		defer sub.Cancel()
		for {
			msg, err := sub.Next(subCtx)
			if err != nil {
				if subCtx.Err() != nil {
					return
				}
				c.logger.Debug("gossipsub next failed", zap.String("topic", name), zap.Error(err))
				continue
			}
			if msg.ReceivedFrom == self {
				continue
			}
			h(Event{Topic: name, Payload: string(msg.Data)})
		}
	}()
	return nil
}

func (c *gossipConn) Unsubscribe(_ context.Context, topic Topic) error {
	name := topic.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.subs[name]; ok {
		s.cancel()
		delete(c.subs, name)
	}
	if t, ok := c.topics[name]; ok {
		// Close fails while the reader goroutine still holds the subscription;
		// the topic handle is then kept for a later re-subscribe.
		if err := t.Close(); err == nil {
			delete(c.topics, name)
		}
	}
	return nil
}

func (c *gossipConn) Close() error {
	c.mu.Lock()
	for _, s := range c.subs {
		s.cancel()
	}
	c.subs = make(map[string]*gossipSubscription)
	c.topics = make(map[string]*libp2ppubsub.Topic)
	c.mu.Unlock()

	if err := c.host.Close(); err != nil {
		return fmt.Errorf("failed to close host: %w", err)
	}
	c.logger.Info("GossipSub disconnected")
	return nil
}
