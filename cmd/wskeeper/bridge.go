package main

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/c360/wskeeper/config"
	"github.com/c360/wskeeper/errors"
)

func newBridgeCmd() *cobra.Command {
	var (
		flagNATSURL string
		flagSubject string
	)

	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Keep the connection alive and republish received frames to NATS",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if flagNATSURL != "" || flagSubject != "" {
				cfg.NATS = &config.NATSConfig{URL: flagNATSURL, Subject: flagSubject}
			}
			if cfg.NATS == nil || cfg.NATS.URL == "" || cfg.NATS.Subject == "" {
				return errors.WrapInvalid(
					fmt.Errorf("%w: nats url and subject", errors.ErrMissingConfig),
					"bridge", "RunE", "resolve nats target")
			}
			logger := setupLogger(cfg.LogLevel, cfg.LogFormat)

			nc, err := nats.Connect(cfg.NATS.URL,
				nats.Name(appName),
				nats.MaxReconnects(-1),
			)
			if err != nil {
				return errors.WrapTransient(err, "bridge", "RunE", "connect to nats")
			}
			defer nc.Close()

			ctx, cancel := signalContext()
			defer cancel()

			subject := cfg.NATS.Subject
			return runConn(ctx, cfg, logger, func(data []byte) error {
				return nc.Publish(subject, data)
			})
		},
	}

	cmd.Flags().StringVar(&flagNATSURL, "nats", "", "NATS server URL")
	cmd.Flags().StringVar(&flagSubject, "subject", "", "NATS subject for republished frames")
	return cmd
}
