package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/wskeeper/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wskeeper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "gorilla", cfg.Transport)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_Full(t *testing.T) {
	path := writeConfig(t, `
url: wss://stream.example.com/feed
transport: nhooyr
subprotocols: [v1.feed]
headers:
  Authorization: Bearer token
handshake_timeout: 10s
reconnect:
  strategy: exponential
  initial_delay: 100ms
  max_delay: 30s
  factor: 2.0
  randomize_delay: true
timeout: 90s
ping:
  interval: 25s
  data: ping
  frame: true
nats:
  url: nats://localhost:4222
  subject: feed.frames
metrics_port: 9100
log_level: debug
log_format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://stream.example.com/feed", cfg.URL)
	assert.Equal(t, "nhooyr", cfg.Transport)
	assert.Equal(t, []string{"v1.feed"}, cfg.Subprotocols)
	assert.Equal(t, "Bearer token", cfg.Headers["Authorization"])
	assert.Equal(t, 10*time.Second, time.Duration(cfg.HandshakeTimeout))
	assert.Equal(t, "exponential", cfg.Reconnect.Strategy)
	assert.Equal(t, 100*time.Millisecond, time.Duration(cfg.Reconnect.InitialDelay))
	assert.Equal(t, 30*time.Second, time.Duration(cfg.Reconnect.MaxDelay))
	assert.Equal(t, 2.0, cfg.Reconnect.Factor)
	assert.True(t, cfg.Reconnect.RandomizeDelay)
	assert.Equal(t, 90*time.Second, time.Duration(cfg.Timeout))
	require.NotNil(t, cfg.Ping)
	assert.Equal(t, 25*time.Second, time.Duration(cfg.Ping.Interval))
	assert.True(t, cfg.Ping.Frame)
	require.NotNil(t, cfg.NATS)
	assert.Equal(t, "feed.frames", cfg.NATS.Subject)
	assert.Equal(t, 9100, cfg.MetricsPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestLoad_MinimalKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "url: ws://localhost:8080/ws\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gorilla", cfg.Transport)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.Reconnect.Disabled)
	assert.Nil(t, cfg.Ping)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeConfig(t, "url: [unclosed\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, "url: ws://x\ntimeout: fast\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing url", func(c *Config) { c.URL = "" }, true},
		{"unknown transport", func(c *Config) { c.Transport = "stdlib" }, true},
		{"unknown strategy", func(c *Config) { c.Reconnect.Strategy = "linear" }, true},
		{"strategy ignored when disabled", func(c *Config) {
			c.Reconnect.Disabled = true
			c.Reconnect.Strategy = "linear"
		}, false},
		{"zero ping interval", func(c *Config) { c.Ping = &PingConfig{} }, true},
		{"nats without subject", func(c *Config) { c.NATS = &NATSConfig{URL: "nats://x"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.URL = "ws://localhost/ws"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInvalid(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOptions(t *testing.T) {
	cfg := Default()
	cfg.URL = "ws://localhost/ws"
	cfg.Subprotocols = []string{"v1"}
	cfg.Headers = map[string]string{"X-Token": "abc"}
	cfg.Timeout = Duration(time.Minute)
	cfg.Ping = &PingConfig{Interval: Duration(30 * time.Second)}

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.NotEmpty(t, opts)

	// An invalid configuration never yields options.
	cfg.Transport = "stdlib"
	_, err = cfg.Options()
	require.Error(t, err)
}

func TestDuration_Roundtrip(t *testing.T) {
	d := Duration(90 * time.Second)
	v, err := d.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", v)
}
