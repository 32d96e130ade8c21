package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/DeBrosOfficial/subbridge/pkg/bridge"
	"github.com/DeBrosOfficial/subbridge/pkg/broker"
)

// ListenOptions holds the flags shared by listen and watch.
type ListenOptions struct {
	Nodes         []string
	Topics        []string
	BrokerOptions string
	Count         int
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// ParseListenArgs parses listen/watch flags. Positional arguments are
// taken as extra topics.
func ParseListenArgs(name string, args []string) (ListenOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var nodes, topics stringList
	fs.Var(&nodes, "node", "node URL (repeatable)")
	fs.Var(&topics, "topic", "topic to subscribe (repeatable)")
	brokerOptions := fs.String("broker-options", "", "broker options JSON")
	count := fs.Int("count", 0, "stop after N events (0 = unlimited)")

	if err := fs.Parse(args); err != nil {
		return ListenOptions{}, err
	}
	topics = append(topics, fs.Args()...)

	if len(nodes) == 0 {
		return ListenOptions{}, fmt.Errorf("at least one --node is required")
	}
	if len(topics) == 0 {
		return ListenOptions{}, fmt.Errorf("at least one --topic is required")
	}
	if *count < 0 {
		return ListenOptions{}, fmt.Errorf("--count must not be negative")
	}

	return ListenOptions{
		Nodes:         nodes,
		Topics:        topics,
		BrokerOptions: *brokerOptions,
		Count:         *count,
	}, nil
}

// Session is one client and one subscriber driven from the command line.
type Session struct {
	rt     *bridge.Runtime
	handle string
	sub    *bridge.TopicSubscriber
}

// OpenSession builds a client from opts, subscribes to its topics and
// returns once the subscription is in place.
func OpenSession(ctx context.Context, rt *bridge.Runtime, opts ListenOptions) (*Session, error) {
	b := rt.NewClientBuilder().AddNodes(opts.Nodes)
	if opts.BrokerOptions != "" {
		if err := b.SetBrokerOptions(opts.BrokerOptions); err != nil {
			return nil, err
		}
	}
	handle, err := b.Build(ctx)
	if err != nil {
		return nil, err
	}

	sub := rt.NewTopicSubscriber(handle)
	if err := sub.AddTopics(opts.Topics); err != nil {
		_ = rt.DropClient(handle)
		return nil, err
	}

	done := make(chan error, 1)
	sub.Subscribe(func(err error) { done <- err })
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		sub.Close()
		_ = rt.DropClient(handle)
		return nil, err
	}

	return &Session{rt: rt, handle: handle, sub: sub}, nil
}

// Handle returns the client handle.
func (s *Session) Handle() string {
	return s.handle
}

// Topics returns the subscribed topics.
func (s *Session) Topics() []string {
	return s.sub.Topics()
}

// Next waits for the next event.
func (s *Session) Next(ctx context.Context) (broker.Event, error) {
	text, err := s.sub.Next(ctx)
	if err != nil {
		return broker.Event{}, err
	}
	return broker.DecodeEvent(text)
}

// Close unsubscribes, ends the event stream and drops the client.
func (s *Session) Close(ctx context.Context) error {
	done := make(chan error, 1)
	s.sub.Unsubscribe(func(err error) { done <- err })
	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	s.sub.Close()
	if dropErr := s.rt.DropClient(s.handle); err == nil {
		err = dropErr
	}
	return err
}
