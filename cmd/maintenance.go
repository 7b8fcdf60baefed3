package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/hogu/internal/domain/protocol"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := setup(ctx)
			if err != nil {
				return err
			}
			store, err := openStore(ctx, cfg, protocol.New(protocol.WithVersion(cfg.ProtocolVersion)))
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer store.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", store.Driver())
			return nil
		},
	}
}

func newArchiveCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Move events older than --days into the archive tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := setup(ctx)
			if err != nil {
				return err
			}
			store, err := openStore(ctx, cfg, protocol.New(protocol.WithVersion(cfg.ProtocolVersion)))
			if err != nil {
				return fmt.Errorf("archive: %w", err)
			}
			defer store.Close()

			n, err := store.ArchiveOlderThan(ctx, days)
			if err != nil {
				return fmt.Errorf("archive: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %d events\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "archive events created more than this many days ago")
	return cmd
}

func newRestoreCmd() *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Move archived events created in [--start, --end] back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, err := time.Parse(time.RFC3339, start)
			if err != nil {
				return fmt.Errorf("restore: invalid --start: %w", err)
			}
			to, err := time.Parse(time.RFC3339, end)
			if err != nil {
				return fmt.Errorf("restore: invalid --end: %w", err)
			}

			ctx := cmd.Context()
			cfg, err := setup(ctx)
			if err != nil {
				return err
			}
			store, err := openStore(ctx, cfg, protocol.New(protocol.WithVersion(cfg.ProtocolVersion)))
			if err != nil {
				return fmt.Errorf("restore: %w", err)
			}
			defer store.Close()

			n, err := store.RestoreFromArchive(ctx, from, to)
			if err != nil {
				return fmt.Errorf("restore: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %d events\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "range start, RFC3339")
	cmd.Flags().StringVar(&end, "end", "", "range end, RFC3339")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}
