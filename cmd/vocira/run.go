package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vocira/vocira/internal/actions"
	"github.com/vocira/vocira/internal/admin"
	"github.com/vocira/vocira/internal/adapters/postgres"
	"github.com/vocira/vocira/internal/adapters/tracing"
	"github.com/vocira/vocira/internal/call"
	"github.com/vocira/vocira/internal/campaign"
	"github.com/vocira/vocira/internal/domain/models"
	"github.com/vocira/vocira/internal/esl"
	"github.com/vocira/vocira/internal/objection"
	"github.com/vocira/vocira/internal/scenario"
	"github.com/vocira/vocira/internal/speech"
)

// runCmd starts the campaign dialer
func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the campaign dialer",
		Long: `Start the outbound dialer: poll active campaigns for due contacts,
place calls through the softswitch and drive each one through its scenario.

The admin surface (probes, metrics, campaign aggregates, live calls) is
served alongside.

Required configuration:
  - PostgreSQL database (VOCIRA_POSTGRES_URL)
  - Event Socket endpoint (VOCIRA_ESL_HOST, VOCIRA_ESL_PASSWORD)
  - Batch transcription endpoint (VOCIRA_ASR_BATCH_URL)

Optional:
  - Streaming ASR for barge-in (VOCIRA_ASR_STREAM_URL)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDialer(cmd.Context())
		},
	}
}

// runDialer wires the whole dialer and blocks until a signal arrives, then
// drains the calls in flight.
func runDialer(ctx context.Context) error {
	slog.Info("starting dialer",
		"softswitch", fmt.Sprintf("%s:%d", cfg.Softswitch.Host, cfg.Softswitch.Port),
		"gateway", cfg.Softswitch.Gateway,
		"asr_batch", cfg.ASR.BatchURL,
		"asr_stream", cfg.ASR.StreamURL,
		"admin", fmt.Sprintf("http://%s:%d", cfg.Admin.Host, cfg.Admin.Port))

	shutdownTracer, err := tracing.InitTracer("vocira")
	if err != nil {
		slog.Warn("tracing init failed", "error", err)
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				slog.Warn("tracer shutdown failed", "error", err)
			}
		}()
	}

	pool, err := initDB(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	slog.Info("database connected")

	callRepo := postgres.NewCallRepository(pool)
	contactRepo := postgres.NewContactRepository(pool)
	campaignRepo := postgres.NewCampaignRepository(pool)

	sw := esl.NewClient(esl.Config{
		Host:     cfg.Softswitch.Host,
		Port:     cfg.Softswitch.Port,
		Password: cfg.Softswitch.Password,
	})
	if err := sw.Connect(ctx); err != nil {
		return fmt.Errorf("softswitch: %w", err)
	}
	defer sw.Close()
	slog.Info("softswitch connected")

	gw := speech.NewClient(cfg.ASR.BatchURL, cfg.ASR.StreamURL, cfg.ASR.APIKey, cfg.ASR.Model)
	if !gw.IsAvailable(ctx) {
		slog.Warn("transcription endpoint not answering, continuing anyway", "url", cfg.ASR.BatchURL)
	}

	objections, err := objection.NewLibrary(cfg.Paths.ObjectionsDir, cfg.Paths.DefaultTheme)
	if err != nil {
		return fmt.Errorf("objection library: %w", err)
	}

	dispatcher := actions.NewDispatcher()
	dispatcher.Register("transfer", actions.NewTransferExecutor(sw))
	dispatcher.Register("webhook", actions.NewWebhookExecutor())

	registry := call.NewRegistry()

	factory := func(camp *models.Campaign) (campaign.Dialer, error) {
		scn, err := scenario.Load(camp.ScenarioPath, cfg.Paths.PromptsDir)
		if err != nil {
			return nil, fmt.Errorf("campaign %s: %w", camp.ID, err)
		}
		return call.NewController(call.Options{
			Config:     cfg,
			Switch:     sw,
			Speech:     gw,
			Store:      callRepo,
			Scenario:   scn,
			Objections: objections,
			Actions:    dispatcher,
			Registry:   registry,
		}), nil
	}

	runner, err := campaign.NewRunner(campaign.Options{
		Config:    cfg,
		Campaigns: campaignRepo,
		Contacts:  contactRepo,
		Calls:     callRepo,
		Factory:   factory,
	})
	if err != nil {
		return err
	}

	adminSrv := admin.NewServer(admin.Options{
		Config:    cfg,
		Version:   version,
		Campaigns: campaignRepo,
		Registry:  registry,
		ReadyChecks: map[string]func(context.Context) error{
			"database": pool.Ping,
			"softswitch": func(context.Context) error {
				if !sw.IsConnected() {
					return errors.New("event socket disconnected")
				}
				return nil
			},
		},
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	adminErrors := make(chan error, 1)
	go func() {
		adminErrors <- adminSrv.Start()
	}()

	runnerErrors := make(chan error, 1)
	go func() {
		runnerErrors <- runner.Run(ctx)
	}()

	select {
	case err := <-adminErrors:
		return fmt.Errorf("admin server error: %w", err)
	case err := <-runnerErrors:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if stopErr := adminSrv.Stop(shutdownCtx); stopErr != nil {
			slog.Warn("admin shutdown failed", "error", stopErr)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("runner error: %w", err)
		}
		slog.Info("dialer stopped")
		return nil
	}
}
