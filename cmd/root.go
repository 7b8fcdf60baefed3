package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/hogu/internal/adapters/repository"
	"github.com/okian/hogu/internal/config"
	"github.com/okian/hogu/internal/domain/protocol"
	"github.com/okian/hogu/pkg/logger"
	"github.com/okian/hogu/pkg/metrics"
)

func newRootCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "hogu",
		Short:         "PSS scoring event pipeline",
		Long:          "hogu receives PSS scoring datagrams over UDP, parses and enriches them,\npersists them and fans them out to live consumers.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if configPath != "" {
				return os.Setenv(config.EnvConfigFile, configPath)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (overrides "+config.EnvConfigFile+")")

	cmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newArchiveCmd(),
		newRestoreCmd(),
	)
	return cmd
}

// setup loads configuration and initializes logging and metrics.
func setup(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := logger.InitWith(os.Stdout, cfg.LogFormat); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel),
			logger.Error(err),
		)
		_ = logger.SetLevelString("info")
	}
	if err := metrics.Configure(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithCustomLabels(cfg.MetricsLabels),
		metrics.WithRefreshInterval(cfg.MetricsRefresh()),
	); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return cfg, nil
}

// openStore connects the configured store and applies migrations.
func openStore(ctx context.Context, cfg *config.Config, codec *protocol.Codec) (*repository.SQLStore, error) {
	store, err := repository.Open(ctx, cfg.DBDriver, cfg.DBDSN,
		repository.WithCodec(codec),
		repository.WithPoolOptions(
			repository.WithSize(cfg.PoolSize),
			repository.WithAcquireTimeout(cfg.PoolAcquireTimeout()),
			repository.WithIdleTimeout(cfg.PoolIdleTimeout()),
			repository.WithHealthCheckAfter(cfg.PoolHealthCheck()),
		),
	)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
