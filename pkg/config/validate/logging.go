package validate

import (
	"fmt"

	"github.com/DeBrosOfficial/subbridge/pkg/logging"
)

// LoggingConfig is the logging section as seen by validation.
type LoggingConfig struct {
	Level string
}

var gatewayLevels = []string{"debug", "info", "warn", "error"}

// ValidateLogging checks that the level is one the gateway logger accepts.
func ValidateLogging(log LoggingConfig) []error {
	lvl, err := logging.ParseLevel(log.Level)
	if err == nil {
		for _, name := range gatewayLevels {
			if lvl.String() == name && log.Level != "" {
				return nil
			}
		}
	}
	return []error{ValidationError{
		Path:    "logging.level",
		Message: fmt.Sprintf("invalid value %q", log.Level),
		Hint:    fmt.Sprintf("allowed values: %v", gatewayLevels),
	}}
}
