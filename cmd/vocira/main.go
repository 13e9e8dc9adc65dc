package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vocira/vocira/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vocira",
		Short: "Vocira - outbound voice campaign dialer",
		Long: `Vocira drives outbound phone campaigns through a softswitch:
it originates calls, screens answering machines, plays scenario prompts,
listens to the callers and qualifies them into leads.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		runCmd(),
		serveCmd(),
		scenarioCmd(),
		configCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configCmd shows current configuration
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Current configuration:")
			fmt.Println()

			fmt.Println("Softswitch:")
			fmt.Printf("  Host:     %s:%d\n", cfg.Softswitch.Host, cfg.Softswitch.Port)
			fmt.Printf("  Password: %s\n", maskSecret(cfg.Softswitch.Password))
			fmt.Printf("  Gateway:  %s\n", cfg.Softswitch.Gateway)
			fmt.Printf("  Ring:     %ds\n", cfg.Softswitch.OriginateTimeoutS)
			fmt.Println()

			fmt.Println("ASR:")
			fmt.Printf("  Batch URL:  %s\n", cfg.ASR.BatchURL)
			fmt.Printf("  Stream URL: %s\n", cfg.ASR.StreamURL)
			fmt.Printf("  Model:      %s\n", cfg.ASR.Model)
			fmt.Printf("  API Key:    %s\n", maskSecret(cfg.ASR.APIKey))
			fmt.Printf("  Streaming:  %s\n", boolStatus(cfg.ASR.StreamURL != ""))
			fmt.Println()

			fmt.Println("Database:")
			fmt.Printf("  PostgreSQL: %s\n", maskSecret(cfg.Database.PostgresURL))
			fmt.Println()

			fmt.Println("Admin:")
			fmt.Printf("  Listen: %s:%d\n", cfg.Admin.Host, cfg.Admin.Port)
			fmt.Println()

			fmt.Println("Dialer:")
			fmt.Printf("  Concurrent calls: %d\n", cfg.Dialer.MaxConcurrentCalls)
			fmt.Printf("  Call duration:    %ds max\n", cfg.Dialer.MaxCallDurationS)
			fmt.Printf("  Batch size:       %d\n", cfg.Dialer.BatchSize)
			fmt.Printf("  Poll interval:    %ds\n", cfg.Dialer.PollIntervalS)
			fmt.Printf("  Attempts:         %d (retry no-answer +%dmin, busy +%dmin)\n",
				cfg.Dialer.MaxAttempts, cfg.Dialer.RetryNoAnswerMin, cfg.Dialer.RetryBusyMin)
			fmt.Printf("  Lead threshold:   %.0f\n", cfg.Dialer.QualificationThreshold)
			fmt.Println("  Legal hours:")
			days := make([]string, 0, len(cfg.Dialer.LegalHours))
			for day := range cfg.Dialer.LegalHours {
				days = append(days, day)
			}
			sort.Strings(days)
			for _, day := range days {
				fmt.Printf("    %-9s %s\n", day, strings.Join(cfg.Dialer.LegalHours[day], ", "))
			}
			fmt.Println()

			fmt.Println("Paths:")
			fmt.Printf("  Recordings: %s\n", cfg.Paths.RecordingsDir)
			fmt.Printf("  Prompts:    %s\n", cfg.Paths.PromptsDir)
			fmt.Printf("  Objections: %s (default theme %q)\n", cfg.Paths.ObjectionsDir, cfg.Paths.DefaultTheme)
			fmt.Println()

			fmt.Println("Environment variables:")
			fmt.Println("  VOCIRA_ESL_HOST, VOCIRA_ESL_PORT, VOCIRA_ESL_PASSWORD, VOCIRA_ESL_GATEWAY")
			fmt.Println("  VOCIRA_ASR_BATCH_URL, VOCIRA_ASR_STREAM_URL, VOCIRA_ASR_API_KEY, VOCIRA_ASR_MODEL")
			fmt.Println("  VOCIRA_POSTGRES_URL, VOCIRA_ADMIN_HOST, VOCIRA_ADMIN_PORT")
			fmt.Println("  VOCIRA_MAX_CONCURRENT_CALLS, VOCIRA_QUALIFICATION_THRESHOLD")
			fmt.Println("  VOCIRA_RECORDINGS_DIR, VOCIRA_PROMPTS_DIR, VOCIRA_OBJECTIONS_DIR")

			return nil
		},
	}
}

// versionCmd shows version information
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Vocira %s\n", version)
			fmt.Printf("  Commit:     %s\n", commit)
			fmt.Printf("  Build Date: %s\n", buildDate)
		},
	}
}
