package broker

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/DeBrosOfficial/subbridge/pkg/errors"
)

// Transport selects the wire protocol used to reach the broker.
type Transport string

const (
	TransportMQTT      Transport = "mqtt"
	TransportNATS      Transport = "nats"
	TransportGossipSub Transport = "gossipsub"
	TransportMemory    Transport = "memory"
)

// Default ports per transport when neither the options nor the node URL
// carries one.
const (
	DefaultMQTTPort      = 1883
	DefaultMQTTTLSPort   = 8883
	DefaultMQTTWSPort    = 80
	DefaultMQTTWSSPort   = 443
	DefaultNATSPort      = 4222
	DefaultGossipSubPort = 4001

	DefaultTimeout = 30 * time.Second
	MaxTimeout     = 24 * time.Hour
)

// Options configures the broker connection. It is decoded from JSON text
// with camelCase keys; unknown keys are rejected.
type Options struct {
	Transport               Transport `json:"transport"`
	AutomaticDisconnect     bool      `json:"automaticDisconnect"`
	TimeoutSeconds          uint64    `json:"timeout"`
	UseWS                   bool      `json:"useWs"`
	Port                    uint16    `json:"port"`
	MaxReconnectionAttempts int       `json:"maxReconnectionAttempts"`
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		Transport:           TransportMQTT,
		AutomaticDisconnect: true,
		TimeoutSeconds:      uint64(DefaultTimeout / time.Second),
		UseWS:               true,
	}
}

// ParseOptions decodes broker options from JSON text on top of the defaults.
func ParseOptions(text string) (Options, error) {
	opts := DefaultOptions()
	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		return Options{}, errors.NewValidationError("broker_options", "malformed broker options", text).WithCause(err)
	}
	var trailing json.RawMessage
	if err := dec.Decode(&trailing); err != io.EOF {
		return Options{}, errors.NewValidationError("broker_options", "unexpected data after broker options", text)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Validate checks option values.
func (o Options) Validate() error {
	switch o.Transport {
	case TransportMQTT, TransportNATS, TransportGossipSub, TransportMemory:
	case "":
		return errors.NewValidationError("broker_options.transport", "transport must not be empty", o.Transport)
	default:
		return errors.NewValidationError("broker_options.transport",
			fmt.Sprintf("unknown transport %q", o.Transport), o.Transport)
	}
	if o.MaxReconnectionAttempts < 0 {
		return errors.NewValidationError("broker_options.maxReconnectionAttempts",
			"must not be negative", o.MaxReconnectionAttempts)
	}
	if o.TimeoutSeconds > uint64(MaxTimeout/time.Second) {
		return errors.NewValidationError("broker_options.timeout",
			fmt.Sprintf("must not exceed %d seconds", uint64(MaxTimeout/time.Second)), o.TimeoutSeconds)
	}
	return nil
}

// Timeout returns the connect/subscribe timeout, capped at MaxTimeout.
func (o Options) Timeout() time.Duration {
	switch {
	case o.TimeoutSeconds == 0:
		return DefaultTimeout
	case o.TimeoutSeconds > uint64(MaxTimeout/time.Second):
		return MaxTimeout
	}
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// JSON returns the canonical JSON text of the options.
func (o Options) JSON() string {
	b, _ := json.Marshal(o)
	return string(b)
}

// native URL schemes that already address a broker endpoint directly.
var nativeSchemes = map[Transport][]string{
	TransportMQTT:      {"mqtt", "mqtts", "tcp", "ssl", "ws", "wss"},
	TransportNATS:      {"nats", "tls"},
	TransportGossipSub: {"libp2p"},
}

func isNative(t Transport, scheme string) bool {
	for _, s := range nativeSchemes[t] {
		if s == scheme {
			return true
		}
	}
	return false
}

func secure(scheme string) bool {
	switch scheme {
	case "https", "mqtts", "ssl", "wss", "tls":
		return true
	}
	return false
}

// port picks, in order: the node URL port for native schemes, the
// configured port, the transport default.
func (o Options) port(node *url.URL, def int) string {
	if isNative(o.Transport, node.Scheme) && node.Port() != "" {
		return node.Port()
	}
	if o.Port != 0 {
		return strconv.Itoa(int(o.Port))
	}
	return strconv.Itoa(def)
}

// MQTTEndpoint derives the paho broker URL for a node.
func (o Options) MQTTEndpoint(node *url.URL) string {
	tls := secure(node.Scheme)
	if o.UseWS || node.Scheme == "ws" || node.Scheme == "wss" {
		scheme, def := "ws", DefaultMQTTWSPort
		if tls {
			scheme, def = "wss", DefaultMQTTWSSPort
		}
		return fmt.Sprintf("%s://%s/mqtt", scheme, net.JoinHostPort(node.Hostname(), o.port(node, def)))
	}
	scheme, def := "tcp", DefaultMQTTPort
	if tls {
		scheme, def = "ssl", DefaultMQTTTLSPort
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(node.Hostname(), o.port(node, def)))
}

// NATSEndpoint derives the NATS server URL for a node.
func (o Options) NATSEndpoint(node *url.URL) string {
	scheme := "nats"
	if secure(node.Scheme) {
		scheme = "tls"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(node.Hostname(), o.port(node, DefaultNATSPort)))
}

// GossipSubEndpoint derives the libp2p multiaddr text for a node. The node
// URL path must carry the peer identity, e.g. libp2p://host:4001/p2p/12D3Koo...
func (o Options) GossipSubEndpoint(node *url.URL) (string, error) {
	if !strings.HasPrefix(node.Path, "/p2p/") {
		return "", fmt.Errorf("node %s: path must be /p2p/<peer-id>", node.Redacted())
	}
	host := node.Hostname()
	proto := "dns"
	if ip := net.ParseIP(host); ip != nil {
		proto = "ip4"
		if ip.To4() == nil {
			proto = "ip6"
		}
	}
	return fmt.Sprintf("/%s/%s/tcp/%s%s", proto, host, o.port(node, DefaultGossipSubPort), node.Path), nil
}
