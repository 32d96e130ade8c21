package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/subbridge/pkg/broker"
	"github.com/DeBrosOfficial/subbridge/pkg/client"
	"github.com/DeBrosOfficial/subbridge/pkg/errors"
	"github.com/DeBrosOfficial/subbridge/pkg/logging"
	"github.com/DeBrosOfficial/subbridge/pkg/queue"
	"github.com/DeBrosOfficial/subbridge/pkg/tasks"
)

// State is the subscription state of a TopicSubscriber.
type State int

const (
	StateCreated State = iota
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSubscribed:
		return "subscribed"
	default:
		return "unknown"
	}
}

// TopicSubscriber turns broker pushes for a client into a pull stream.
// Events are buffered without bound and handed out one per Poll in
// delivery order.
type TopicSubscriber struct {
	rt     *Runtime
	id     string
	handle string
	logger *zap.Logger

	mu     sync.Mutex
	topics []broker.Topic
	state  State

	events *queue.Queue[string]
}

// NewTopicSubscriber binds a subscriber to a client handle. The handle is
// resolved when a subscription changes, not here.
func (rt *Runtime) NewTopicSubscriber(handle string) *TopicSubscriber {
	id := uuid.NewString()
	return &TopicSubscriber{
		rt:     rt,
		id:     id,
		handle: handle,
		logger: rt.logger.Named(logging.ComponentBridge).With(zap.String("handle", handle), zap.String("subscriber", id)),
		events: queue.New[string]("event queue"),
	}
}

// Handle returns the bound client handle.
func (s *TopicSubscriber) Handle() string {
	return s.handle
}

// AddTopic parses text and appends it to the topic list.
func (s *TopicSubscriber) AddTopic(text string) error {
	t, err := broker.ParseTopic(text)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.topics = append(s.topics, t)
	s.mu.Unlock()
	return nil
}

// AddTopics parses every text and appends them in order. If any text is
// invalid the topic list is left unchanged.
func (s *TopicSubscriber) AddTopics(texts []string) error {
	topics, err := broker.ParseTopics(texts)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.topics = append(s.topics, topics...)
	s.mu.Unlock()
	return nil
}

// Topics returns the topic list, duplicates included.
func (s *TopicSubscriber) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return broker.Strings(s.topics)
}

// State returns the subscription state.
func (s *TopicSubscriber) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending returns the number of buffered events.
func (s *TopicSubscriber) Pending() int {
	return s.events.Len()
}

// enqueue is the broker callback. It never blocks.
func (s *TopicSubscriber) enqueue(ev broker.Event) {
	text, err := ev.Encode()
	if err != nil {
		s.logger.Warn("Failed to encode event", zap.String("topic", ev.Topic), zap.Error(err))
		return
	}
	if err := s.events.Push(text); err != nil {
		s.logger.Debug("Dropped event for closed subscriber", zap.String("topic", ev.Topic))
	}
}

func (s *TopicSubscriber) snapshotTopics() []broker.Topic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]broker.Topic(nil), s.topics...)
}

func (s *TopicSubscriber) subscribe(ctx context.Context) (struct{}, error) {
	topics := s.snapshotTopics()
	if len(topics) == 0 {
		return struct{}{}, errors.NewValidationError("topics", "no topics to subscribe", nil)
	}

	entry, err := s.rt.clients.Resolve(s.handle)
	if err != nil {
		return struct{}{}, err
	}
	err = entry.Write(func(c client.NetworkClient) error {
		return c.Subscribe(ctx, topics, s.id, s.enqueue)
	})
	if err != nil {
		s.logger.Warn("Subscribe failed", zap.Strings("topics", broker.Strings(topics)), zap.Error(err))
		return struct{}{}, err
	}

	s.mu.Lock()
	s.state = StateSubscribed
	s.mu.Unlock()

	s.logger.Debug("Subscribed", zap.Strings("topics", broker.Strings(topics)))
	return struct{}{}, nil
}

func (s *TopicSubscriber) unsubscribe(ctx context.Context) (struct{}, error) {
	topics := s.snapshotTopics()
	if len(topics) > 0 {
		entry, err := s.rt.clients.Resolve(s.handle)
		if err != nil {
			return struct{}{}, err
		}
		err = entry.Write(func(c client.NetworkClient) error {
			return c.Unsubscribe(ctx, topics, s.id)
		})
		if err != nil {
			s.logger.Warn("Unsubscribe failed", zap.Strings("topics", broker.Strings(topics)), zap.Error(err))
			return struct{}{}, err
		}
	}

	s.mu.Lock()
	s.state = StateCreated
	s.mu.Unlock()

	s.logger.Debug("Unsubscribed", zap.Strings("topics", broker.Strings(topics)))
	return struct{}{}, nil
}

// Subscribe registers the topic list with the bound client on the worker
// pool and reports the outcome to cb. Subscribing again is a no-op for
// topics this subscriber already holds.
func (s *TopicSubscriber) Subscribe(cb func(error)) {
	tasks.Schedule(s.rt.runner, "subscribe", s.subscribe, dropValue(cb))
}

// Unsubscribe detaches this subscriber from its topics on the bound
// client. Other subscribers of the same topics keep receiving events. On a
// partial failure the topics named in the BrokerError stay subscribed.
// Buffered events stay available to Poll.
func (s *TopicSubscriber) Unsubscribe(cb func(error)) {
	tasks.Schedule(s.rt.runner, "unsubscribe", s.unsubscribe, dropValue(cb))
}

// Poll waits for the next event and reports it to cb. Waiting polls do not
// occupy the worker pool. Concurrent polls are served one at a time, each
// with a distinct event.
func (s *TopicSubscriber) Poll(cb func(event string, err error)) {
	s.PollContext(context.Background(), cb)
}

// PollContext is Poll with a caller context. A cancelled or timed out poll
// consumes no event.
func (s *TopicSubscriber) PollContext(ctx context.Context, cb func(event string, err error)) {
	s.schedulePoll(ctx, cb)
}

// Next polls and waits for the result.
func (s *TopicSubscriber) Next(ctx context.Context) (string, error) {
	return s.schedulePoll(ctx, nil).Get(context.Background())
}

func (s *TopicSubscriber) schedulePoll(ctx context.Context, cb func(string, error)) *tasks.Future[string] {
	return tasks.Wait(s.rt.runner, "poll", func(taskCtx context.Context) (string, error) {
		waitCtx, cancel := context.WithCancel(taskCtx)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		timeout := s.rt.pollTimeout
		if timeout > 0 {
			var cancelTimeout context.CancelFunc
			waitCtx, cancelTimeout = context.WithTimeout(waitCtx, timeout)
			defer cancelTimeout()
		}

		ev, err := s.events.Pop(waitCtx)
		if err != nil {
			return "", pollError(ctx, err, timeout)
		}
		return ev, nil
	}, cb)
}

// pollError maps a failed wait to the error reported to the host.
func pollError(callerCtx context.Context, err error, timeout time.Duration) error {
	if errors.IsChannelClosed(err) {
		return err
	}
	if callerErr := callerCtx.Err(); callerErr != nil {
		if callerErr == context.DeadlineExceeded {
			return errors.NewTimeoutError("poll", "", callerErr)
		}
		return callerErr
	}
	if err == context.DeadlineExceeded {
		return errors.NewTimeoutError("poll", timeout.String(), err)
	}
	return err
}

// Close ends the event stream. Buffered events are still handed out;
// afterwards every Poll reports a ChannelClosedError. Close does not touch
// the broker subscription; call Unsubscribe first to stop deliveries.
func (s *TopicSubscriber) Close() {
	s.events.Close()
}

// Closed reports whether Close was called.
func (s *TopicSubscriber) Closed() bool {
	return s.events.Closed()
}

func dropValue(cb func(error)) func(struct{}, error) {
	if cb == nil {
		return nil
	}
	return func(_ struct{}, err error) { cb(err) }
}
