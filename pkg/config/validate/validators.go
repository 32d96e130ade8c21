package validate

import (
	"fmt"
	"net"
	"strconv"
)

// ValidationError represents a single validation error with context.
type ValidationError struct {
	Path    string // e.g., "clients[0].nodes[1]"
	Message string // e.g., "unsupported URL scheme"
	Hint    string // e.g., "expected http(s)://host:port"
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s; %s", e.Path, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidateListenAddr validates a [host]:port listen address. An empty host
// binds every interface.
func ValidateListenAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("expected format [host]:port")
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be a number; got %q", port)
	}
	return ValidatePort(portNum)
}

// ValidatePort validates that a port number is in the valid range.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535; got %d", port)
	}
	return nil
}
