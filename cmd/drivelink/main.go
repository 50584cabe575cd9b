package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/drivelink/internal/config"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:   "drivelink",
		Short: "Connects chat users to their Google Drive through OAuth2",
		Long: `drivelink runs the OAuth2 callback endpoint and the chat bot that
asks users to authorize access to their Google Drive.

Without a subcommand the mode is taken from RUN_MODE (default "all").`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode(cmd.Context(), "", debug)
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	modes := []struct {
		name  string
		short string
	}{
		{config.ModeCallback, "Serve the OAuth2 callback endpoint"},
		{config.ModeBot, "Run the chat bot and the pending sweeper"},
		{config.ModeAll, "Run the callback endpoint and the bot in one process"},
		{config.ModeMigrate, "Apply database migrations and exit"},
	}
	for _, m := range modes {
		mode := m.name
		root.AddCommand(&cobra.Command{
			Use:   mode,
			Short: m.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMode(cmd.Context(), mode, debug)
			},
		})
	}

	return root
}

func runMode(parent context.Context, mode string, debug bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if mode != "" {
		cfg.RunMode = mode
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Info("drivelink starting", "version", version, "mode", cfg.RunMode)
	return run(ctx, cfg, logger)
}
