// Package config loads and validates YAML configuration for the wskeeper
// command line tools.
package config

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/wskeeper"
	"github.com/c360/wskeeper/backoff"
	"github.com/c360/wskeeper/errors"
	"github.com/c360/wskeeper/keepalive"
	"github.com/c360/wskeeper/transport"
	"github.com/c360/wskeeper/transport/gorillaws"
	"github.com/c360/wskeeper/transport/nhooyrws"
)

// Duration wraps time.Duration with YAML support for strings like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ReconnectConfig mirrors backoff.Config for YAML files
type ReconnectConfig struct {
	// Disabled turns automatic reconnection off entirely.
	Disabled       bool     `yaml:"disabled,omitempty"`
	Strategy       string   `yaml:"strategy,omitempty"`
	InitialDelay   Duration `yaml:"initial_delay,omitempty"`
	MaxDelay       Duration `yaml:"max_delay,omitempty"`
	Factor         float64  `yaml:"factor,omitempty"`
	RandomizeDelay bool     `yaml:"randomize_delay,omitempty"`
}

// PingConfig mirrors keepalive.Config for YAML files
type PingConfig struct {
	Interval Duration `yaml:"interval"`
	Data     string   `yaml:"data,omitempty"`
	// Mask is advisory. The bundled WebSocket transports are clients and
	// always mask outbound frames per RFC 6455.
	Mask  *bool `yaml:"mask,omitempty"`
	Frame bool  `yaml:"frame,omitempty"`
}

// NATSConfig configures the bridge target
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Config is the root configuration for the wskeeper CLI
type Config struct {
	URL              string            `yaml:"url"`
	Transport        string            `yaml:"transport,omitempty"` // gorilla (default) or nhooyr
	Subprotocols     []string          `yaml:"subprotocols,omitempty"`
	Headers          map[string]string `yaml:"headers,omitempty"`
	HandshakeTimeout Duration          `yaml:"handshake_timeout,omitempty"`

	Reconnect ReconnectConfig `yaml:"reconnect,omitempty"`
	Timeout   Duration        `yaml:"timeout,omitempty"`
	Ping      *PingConfig     `yaml:"ping,omitempty"`

	NATS *NATSConfig `yaml:"nats,omitempty"`

	MetricsPort int    `yaml:"metrics_port,omitempty"`
	LogLevel    string `yaml:"log_level,omitempty"`
	LogFormat   string `yaml:"log_format,omitempty"`
}

// Default returns the baseline configuration
func Default() Config {
	return Config{
		Transport: "gorilla",
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load reads and validates a YAML config file
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.WrapInvalid(err, "config", "Load", "read config file")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.WrapInvalid(err, "config", "Load", "parse config file")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: url", errors.ErrMissingConfig),
			"config", "Validate", "check url")
	}
	switch c.Transport {
	case "", "gorilla", "nhooyr":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: unknown transport %q", errors.ErrInvalidConfig, c.Transport),
			"config", "Validate", "check transport")
	}
	if !c.Reconnect.Disabled && c.Reconnect.Strategy != "" {
		switch backoff.Strategy(c.Reconnect.Strategy) {
		case backoff.StrategyFibonacci, backoff.StrategyExponential:
		default:
			return errors.WrapInvalid(
				fmt.Errorf("%w: unknown reconnect strategy %q", errors.ErrInvalidConfig, c.Reconnect.Strategy),
				"config", "Validate", "check reconnect strategy")
		}
	}
	if c.Ping != nil && c.Ping.Interval <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: ping interval must be positive", errors.ErrInvalidConfig),
			"config", "Validate", "check ping interval")
	}
	if c.NATS != nil && (c.NATS.URL == "" || c.NATS.Subject == "") {
		return errors.WrapInvalid(
			fmt.Errorf("%w: nats url and subject", errors.ErrMissingConfig),
			"config", "Validate", "check nats target")
	}
	return nil
}

// Options translates the configuration into wskeeper options, including the
// transport factory selected by the transport field.
func (c Config) Options() ([]wskeeper.Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var opts []wskeeper.Option

	var factory transport.Factory
	switch c.Transport {
	case "nhooyr":
		factory = nhooyrws.Factory
	default:
		factory = gorillaws.Factory
	}
	opts = append(opts, wskeeper.WithFactory(factory))

	if len(c.Subprotocols) > 0 {
		opts = append(opts, wskeeper.WithSubprotocols(c.Subprotocols...))
	}
	if len(c.Headers) > 0 {
		header := http.Header{}
		for k, v := range c.Headers {
			header.Set(k, v)
		}
		opts = append(opts, wskeeper.WithHeader(header))
	}
	if c.HandshakeTimeout > 0 {
		opts = append(opts, wskeeper.WithHandshakeTimeout(time.Duration(c.HandshakeTimeout)))
	}

	if c.Reconnect.Disabled {
		opts = append(opts, wskeeper.WithoutReconnect())
	} else {
		opts = append(opts, wskeeper.WithReconnect(backoff.Config{
			Strategy:       backoff.Strategy(c.Reconnect.Strategy),
			InitialDelay:   time.Duration(c.Reconnect.InitialDelay),
			MaxDelay:       time.Duration(c.Reconnect.MaxDelay),
			Factor:         c.Reconnect.Factor,
			RandomizeDelay: c.Reconnect.RandomizeDelay,
		}))
	}

	if c.Timeout > 0 {
		opts = append(opts, wskeeper.WithTimeout(time.Duration(c.Timeout)))
	}

	if c.Ping != nil {
		mask := true
		if c.Ping.Mask != nil {
			mask = *c.Ping.Mask
		}
		opts = append(opts, wskeeper.WithKeepalive(keepalive.Config{
			Interval: time.Duration(c.Ping.Interval),
			Data:     []byte(c.Ping.Data),
			Mask:     mask,
			Frame:    c.Ping.Frame,
		}))
	}

	return opts, nil
}
