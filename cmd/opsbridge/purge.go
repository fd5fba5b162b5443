package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opsbridge-ai/opsbridge/pkg/store"
)

func newPurgeCmd() *cobra.Command {
	var (
		configPath string
		dir        string
		maxAge     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove stale files from the upload directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.Uploads.Dir
			}
			if maxAge == 0 {
				maxAge = cfg.Uploads.MaxAge
			}

			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			st, err := store.New(dir, logger)
			if err != nil {
				return err
			}

			removed, err := st.Sweep(maxAge)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d stale file(s) older than %s from %s\n", removed, maxAge, dir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to opsbridge config file")
	cmd.Flags().StringVar(&dir, "dir", "", "upload directory (defaults to the configured one)")
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "retention window (defaults to the configured one)")
	return cmd
}
