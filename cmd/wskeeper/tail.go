package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newTailCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Keep the connection alive and print received frames to stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel, cfg.LogFormat)

			ctx, cancel := signalContext()
			defer cancel()

			return runConn(ctx, cfg, logger, func(data []byte) error {
				_, err := fmt.Fprintln(os.Stdout, string(data))
				return err
			})
		},
	}
}
