// Package main implements the wskeeper command line tool: it keeps a
// WebSocket connection alive and either prints received frames (tail) or
// republishes them to NATS (bridge).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/c360/wskeeper"
	"github.com/c360/wskeeper/config"
	"github.com/c360/wskeeper/metric"
	"github.com/c360/wskeeper/transport"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "wskeeper"
)

var (
	flagConfig      string
	flagURL         string
	flagTransport   string
	flagLogLevel    string
	flagLogFormat   string
	flagMetricsPort int
)

func main() {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Keep a WebSocket connection alive",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", os.Getenv("WSKEEPER_CONFIG"),
		"Path to YAML configuration file (env: WSKEEPER_CONFIG)")
	pf.StringVar(&flagURL, "url", "", "WebSocket URL (overrides config)")
	pf.StringVar(&flagTransport, "transport", "", "Transport: gorilla or nhooyr (overrides config)")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format: json, text")
	pf.IntVar(&flagMetricsPort, "metrics-port", 0, "Prometheus metrics port, 0 to disable")

	root.AddCommand(newTailCmd(), newBridgeCmd())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig merges the optional config file with command line overrides
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if flagURL != "" {
		cfg.URL = flagURL
	}
	if flagTransport != "" {
		cfg.Transport = flagTransport
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagLogFormat != "" {
		cfg.LogFormat = flagLogFormat
	}
	if flagMetricsPort > 0 {
		cfg.MetricsPort = flagMetricsPort
	}

	return cfg, cfg.Validate()
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler).With(
		"service", appName,
		"version", Version,
	)
}

// runConn builds a Conn from cfg, serves metrics when configured, forwards
// received frames to onMessage, and blocks until the context is canceled.
func runConn(ctx context.Context, cfg config.Config, logger *slog.Logger, onMessage func(data []byte) error) error {
	registry := metric.NewRegistry()

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	opts = append(opts,
		wskeeper.WithLogger(logger),
		wskeeper.WithMetrics(registry),
	)

	conn, err := wskeeper.New(cfg.URL, opts...)
	if err != nil {
		return err
	}

	if _, err := conn.On(wskeeper.EventMessage, func(ev wskeeper.Event) {
		if err := onMessage(ev.Data); err != nil {
			logger.Warn("message handling failed", "error", err)
		}
	}); err != nil {
		return err
	}
	if _, err := conn.On(wskeeper.EventReconnected, func(ev wskeeper.Event) {
		logger.Info("reconnected",
			"retries", ev.Retry,
			"down_since", ev.LastConnectedAt)
	}); err != nil {
		return err
	}

	var metricsServer *http.Server
	if cfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", registry.Handler())
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	<-ctx.Done()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return conn.Close(transport.CloseNormalClosure, "shutdown")
}

// signalContext returns a context canceled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
