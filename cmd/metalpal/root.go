package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/metalpal/internal/app"
	"github.com/samvad-hq/metalpal/internal/config"
	"github.com/samvad-hq/metalpal/internal/logger"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "metalpal",
		Short:         "Find today's metal releases worth listening to",
		Long:          "metalpal reads the release calendar, looks every release of the day up on Spotify and Metallum, filters them by genre and posts the survivors to Slack.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func run(parent context.Context, cmd *cobra.Command) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("metalpal starting", "config", map[string]any{
		"state_type":    cfg.StateType,
		"state_path":    cfg.StatePath,
		"calendar_url":  cfg.CalendarURL,
		"force_fetch":   cfg.ForceFetch,
		"disable_slack": cfg.DisableSlack,
		"interactive":   cfg.Interactive,
	})

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := app.NewRunner(cfg, log, app.Components{Output: cmd.OutOrStdout()})
	if err != nil {
		logger.ErrorObj("failed to initialize runner", "error", err.Error())
		return err
	}
	defer func() {
		if cerr := runner.Close(); cerr != nil {
			logger.ErrorObj("runner close failed", "error", cerr.Error())
		}
	}()

	if err := runner.Run(ctx); err != nil {
		logger.ErrorObj("run failed", "error", err.Error())
		return err
	}
	return nil
}
