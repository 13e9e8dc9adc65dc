package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vocira/vocira/internal/adapters/postgres"
	"github.com/vocira/vocira/internal/admin"
)

// serveCmd starts the admin surface without the dialer
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the admin surface without dialing",
		Long: `Start only the admin HTTP surface: probes, Prometheus metrics and
campaign aggregates. No calls are placed. Useful for inspecting campaign
results on a host that has database access but no softswitch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminOnly(cmd.Context())
		},
	}
}

func runAdminOnly(ctx context.Context) error {
	opts := admin.Options{
		Config:      cfg,
		Version:     version,
		ReadyChecks: map[string]func(context.Context) error{},
	}

	if cfg.Database.PostgresURL != "" {
		pool, err := initDB(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()
		opts.Campaigns = postgres.NewCampaignRepository(pool)
		opts.ReadyChecks["database"] = pool.Ping
		slog.Info("database connected")
	} else {
		slog.Info("no database configured, campaign routes not mounted")
	}

	srv := admin.NewServer(opts)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("admin server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("admin shutdown error: %w", err)
		}
		slog.Info("admin stopped")
		return nil
	}
}
