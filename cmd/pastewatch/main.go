package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pastewatch/pastewatch/internal/config"
	"github.com/pastewatch/pastewatch/internal/supervisor"
)

var (
	cfgFile string
	verbose bool
	daemon  bool
	stats   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pastewatch",
		Short: "PasteWatch is a continuous paste-site monitor for leaked secrets",
		Long: `PasteWatch polls configured paste-hosting sites for newly submitted
pastes, downloads their bodies, matches them against a signature catalog of
regular expressions (API keys, credentials, internal hostnames, ...), and
raises an alert (archive, durable record, email) on every match.`,
		RunE: runWatch,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.Flags().BoolVarP(&daemon, "daemon", "d", false, "run detached from the controlling terminal")
	rootCmd.Flags().BoolVarP(&stats, "stats", "s", false, "print periodic stats to stdout")

	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	if daemon {
		return fmt.Errorf("-d/--daemon is not supported: run pastewatch under your process supervisor of choice (systemd, docker, supervisord) instead of backgrounding it itself")
	}
	if stats {
		return fmt.Errorf("-s/--stats is not supported: enable metrics.enabled in the config and scrape the Prometheus endpoint instead")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg)

	logger.Info("starting pastewatch",
		"sites", len(cfg.Sites),
		"signatures", len(cfg.Search),
		"threads_per_site", cfg.Threads,
	)

	sup, err := supervisor.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("build supervisor: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down...", "signal", sig)
		sup.Stop()
	}()

	start := time.Now()
	if err := sup.Start(); err != nil {
		return fmt.Errorf("start supervisor: %w", err)
	}

	sup.Wait()
	logger.Info("pastewatch stopped", "elapsed", time.Since(start).Round(time.Second))
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("PasteWatch %s\n", config.Version)
		},
	}
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
