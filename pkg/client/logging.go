package client

import (
	"os"

	"go.uber.org/zap"

	"github.com/DeBrosOfficial/subbridge/pkg/logging"
)

// newClientLogger builds the logger used when none is supplied. Quiet mode
// keeps Warn and above; otherwise everything down to Debug is written.
// Output goes to stderr so it never mixes with a host's stdout.
func newClientLogger(quiet bool) (*zap.Logger, error) {
	level := "debug"
	if quiet {
		level = "warn"
	}
	l, err := logging.NewLogger(logging.Options{
		Level:        level,
		EnableColors: !quiet,
		Output:       os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	return l.Named(logging.ComponentClient), nil
}
