package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opsbridge-ai/opsbridge/pkg/audit"
	cachepkg "github.com/opsbridge-ai/opsbridge/pkg/cache/sqlite"
	"github.com/opsbridge-ai/opsbridge/pkg/config"
	"github.com/opsbridge-ai/opsbridge/pkg/inference"
	"github.com/opsbridge-ai/opsbridge/pkg/search"
	"github.com/opsbridge-ai/opsbridge/pkg/server"
	"github.com/opsbridge-ai/opsbridge/pkg/sshexec"
	"github.com/opsbridge-ai/opsbridge/pkg/store"
	"github.com/opsbridge-ai/opsbridge/pkg/usage"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the opsbridge HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			st, err := store.New(cfg.Uploads.Dir, logger)
			if err != nil {
				return fmt.Errorf("init upload store: %w", err)
			}

			tr, err := usage.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("init usage tracker: %w", err)
			}
			defer func() { _ = tr.Close() }()

			var cache *cachepkg.Cache
			if cfg.Cache.Enabled {
				cache, err = cachepkg.New(cfg.DBPath, cfg.Cache.TTL)
				if err != nil {
					return fmt.Errorf("init cache: %w", err)
				}
				defer func() { _ = cache.Close() }()
			}

			var auditLog *audit.Logger
			if cfg.Audit.Enabled {
				auditLog, err = audit.New(cfg.DBPath, cfg.Audit)
				if err != nil {
					return fmt.Errorf("init audit log: %w", err)
				}
				defer func() { _ = auditLog.Close() }()
			}

			srv := server.New(cfg, logger, server.Deps{
				Store:     st,
				Inference: inference.New(cfg.Inference.URL, cfg.Inference.RequestTimeout, logger),
				Runner:    sshexec.New(cfg.SSH.Timeout, logger),
				Search:    search.New(cfg.Search.Endpoint, cfg.Search.APIKey),
				Cache:     cache,
				Audit:     auditLog,
				Usage:     tr,
			})

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go srv.SweepLoop(ctx, cfg.Uploads.SweepInterval, cfg.Uploads.MaxAge)

			logger.Info("starting opsbridge", zap.String("config", configPath))
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "opsbridge.yaml", "path to config file")
	return cmd
}
