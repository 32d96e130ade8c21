package tasks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DeBrosOfficial/subbridge/pkg/errors"
)

func TestScheduleDeliversResult(t *testing.T) {
	r := NewRunner(2, nil)
	defer r.Close()

	got := make(chan string, 1)
	f := Schedule(r, "echo", func(context.Context) (string, error) {
		return "hello", nil
	}, func(v string, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		got <- v
	})

	select {
	case v := <-got:
		if v != "hello" {
			t.Fatalf("expected hello, got %q", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("callback not invoked")
	}

	v, err := f.Get(context.Background())
	if err != nil || v != "hello" {
		t.Fatalf("Future.Get = %q, %v", v, err)
	}
}

func TestScheduleConvertsPanic(t *testing.T) {
	r := NewRunner(1, nil)
	defer r.Close()

	f := Schedule(r, "explode", func(context.Context) (int, error) {
		panic("boom")
	}, nil)

	_, err := f.Get(context.Background())
	if !errors.IsInternal(err) {
		t.Fatalf("expected internal error, got %v", err)
	}

	// The pool keeps working after a panic.
	f2 := Schedule(r, "after", func(context.Context) (int, error) { return 1, nil }, nil)
	if v, err := f2.Get(context.Background()); err != nil || v != 1 {
		t.Fatalf("expected 1, got %d, %v", v, err)
	}
}

func TestCompletionsAreSerialized(t *testing.T) {
	r := NewRunner(8, nil)
	defer r.Close()

	const n = 50
	var active, maxActive int32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		Schedule(r, "work", func(context.Context) (int, error) {
			return i, nil
		}, func(int, error) {
			defer wg.Done()
			cur := atomic.AddInt32(&active, 1)
			for {
				prev := atomic.LoadInt32(&maxActive)
				if cur <= prev || atomic.CompareAndSwapInt32(&maxActive, prev, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		})
	}
	wg.Wait()

	if maxActive != 1 {
		t.Fatalf("expected callbacks to run one at a time, saw %d concurrently", maxActive)
	}
}

func TestWorkersBoundConcurrency(t *testing.T) {
	r := NewRunner(2, nil)
	defer r.Close()

	var running, peak int32
	release := make(chan struct{})
	var futures []*Future[struct{}]
	for i := 0; i < 6; i++ {
		futures = append(futures, Schedule(r, "block", func(context.Context) (struct{}, error) {
			cur := atomic.AddInt32(&running, 1)
			for {
				prev := atomic.LoadInt32(&peak)
				if cur <= prev || atomic.CompareAndSwapInt32(&peak, prev, cur) {
					break
				}
			}
			<-release
			atomic.AddInt32(&running, -1)
			return struct{}{}, nil
		}, nil))
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	for _, f := range futures {
		if _, err := f.Get(context.Background()); err != nil {
			t.Fatalf("task failed: %v", err)
		}
	}
	if peak > 2 {
		t.Fatalf("expected at most 2 concurrent tasks, saw %d", peak)
	}
}

func TestCallbackPanicDoesNotStopLoop(t *testing.T) {
	r := NewRunner(1, nil)
	defer r.Close()

	Schedule(r, "first", func(context.Context) (int, error) { return 0, nil }, func(int, error) {
		panic("callback")
	})

	got := make(chan error, 1)
	Schedule(r, "second", func(context.Context) (int, error) {
		return 0, fmt.Errorf("expected")
	}, func(_ int, err error) {
		got <- err
	})

	select {
	case err := <-got:
		if err == nil {
			t.Fatalf("expected error from second task")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("completion loop stopped after callback panic")
	}
}

func TestCloseCancelsRunningTasks(t *testing.T) {
	r := NewRunner(1, nil)

	started := make(chan struct{})
	f := Schedule(r, "wait", func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	}, nil)

	<-started
	r.Close()

	if _, err := f.Get(context.Background()); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	after := Schedule(r, "late", func(context.Context) (int, error) { return 1, nil }, nil)
	if _, err := after.Get(context.Background()); !errors.IsChannelClosed(err) {
		t.Fatalf("expected channel closed after Close, got %v", err)
	}
}

func TestScheduleAfterCloseCallsBackBeforeReturning(t *testing.T) {
	r := NewRunner(1, nil)
	r.Close()

	var got error
	Schedule(r, "late", func(context.Context) (int, error) { return 1, nil }, func(_ int, err error) {
		got = err
	})
	if !errors.IsChannelClosed(got) {
		t.Fatalf("expected callback with channel closed error before Schedule returned, got %v", got)
	}
}

func TestWaitDoesNotHoldWorkers(t *testing.T) {
	r := NewRunner(1, nil)
	defer r.Close()

	release := make(chan struct{})
	var waiters []*Future[int]
	for i := 0; i < 3; i++ {
		waiters = append(waiters, Wait(r, "wait", func(ctx context.Context) (int, error) {
			select {
			case <-release:
				return 1, nil
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}, nil))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	work := Schedule(r, "work", func(context.Context) (int, error) { return 2, nil }, nil)
	if v, err := work.Get(ctx); err != nil || v != 2 {
		t.Fatalf("bounded task blocked behind waiters: %d, %v", v, err)
	}

	close(release)
	for _, f := range waiters {
		if v, err := f.Get(ctx); err != nil || v != 1 {
			t.Fatalf("waiter = %d, %v", v, err)
		}
	}
}

func TestCloseCancelsWaiters(t *testing.T) {
	r := NewRunner(1, nil)

	got := make(chan error, 1)
	Wait(r, "wait", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}, func(_ int, err error) { got <- err })

	r.Close()
	select {
	case err := <-got:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	default:
		t.Fatalf("expected waiter completion to be delivered before Close returned")
	}
}
