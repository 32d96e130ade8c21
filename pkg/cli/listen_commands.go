package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	json "github.com/goccy/go-json"

	"github.com/DeBrosOfficial/subbridge/pkg/bridge"
	"github.com/DeBrosOfficial/subbridge/pkg/broker"
	"github.com/DeBrosOfficial/subbridge/pkg/errors"
	"github.com/DeBrosOfficial/subbridge/pkg/logging"
)

// EventSource yields broker events one at a time.
type EventSource interface {
	Next(ctx context.Context) (broker.Event, error)
}

// HandleListenCommand subscribes and prints events until interrupted.
func HandleListenCommand(args []string, format string, timeout time.Duration) {
	opts, err := ParseListenArgs("listen", args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		fmt.Fprintf(os.Stderr, "Usage: subbridge listen --node <url> --topic <topic> [--broker-options <json>] [--count N]\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create runtime: %v\n", err)
		os.Exit(1)
	}
	defer rt.Close()

	setupCtx, cancel := context.WithTimeout(ctx, timeout)
	session, err := OpenSession(setupCtx, rt, opts)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to subscribe: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("🔔 Subscribing to %s (client %s)...\n", strings.Join(session.Topics(), ", "), session.Handle())

	received, listenErr := Listen(ctx, session, opts.Count, format, os.Stdout)

	closeCtx, cancelClose := context.WithTimeout(context.Background(), timeout)
	defer cancelClose()
	if err := session.Close(closeCtx); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to unsubscribe cleanly: %v\n", err)
	}

	if listenErr != nil {
		fmt.Fprintf(os.Stderr, "Subscription failed: %v\n", listenErr)
		os.Exit(1)
	}
	fmt.Printf("✅ Subscription ended after %d event(s)\n", received)
}

// Listen writes events from src to w until count events were written, ctx
// ends or the stream closes. A count of zero means no limit.
func Listen(ctx context.Context, src EventSource, count int, format string, w io.Writer) (int, error) {
	received := 0
	for count == 0 || received < count {
		ev, err := src.Next(ctx)
		if err != nil {
			if endOfStream(ctx, err) {
				return received, nil
			}
			return received, err
		}
		received++
		if err := printEvent(w, ev, format); err != nil {
			return received, err
		}
	}
	return received, nil
}

// endOfStream reports whether err is a normal way for a listen loop to end.
func endOfStream(ctx context.Context, err error) bool {
	return errors.IsChannelClosed(err) || ctx.Err() != nil
}

func printEvent(w io.Writer, ev broker.Event, format string) error {
	if format == "json" {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	_, err := fmt.Fprintf(w, "📨 [%s] %s: %s\n", time.Now().Format("15:04:05"), ev.Topic, ev.Payload)
	return err
}

// newRuntime creates the runtime used by command handlers. Logs go to
// stderr so they never interleave with printed events.
func newRuntime() (*bridge.Runtime, error) {
	logger, err := logging.NewLogger(logging.Options{
		Level:        "warn",
		EnableColors: true,
		Output:       os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	return bridge.NewRuntime(bridge.WithLogger(logger)), nil
}
