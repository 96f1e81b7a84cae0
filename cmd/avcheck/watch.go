package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/avcheck/internal/alert"
	"github.com/hazz-dev/avcheck/internal/scheduler"
	"github.com/hazz-dev/avcheck/internal/storage"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [teamCode] [password]",
		Short: "Run the suite on an interval until interrupted",
		Args:  cobra.MaximumNArgs(2),
		RunE:  runWatch,
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "time between runs (overrides watch.interval)")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	logger := newLogger()

	var store scheduler.Store
	if cfg.Storage.Path != "" {
		db, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		store = db
	}

	r := newRunner(cmd.OutOrStdout(), cfg, useColor(), logger)
	sched := scheduler.New(r, cfg.TeamCode, cfg.Watch.Interval.Duration, store, logger)

	var alerter *alert.Alerter
	if cfg.Alerts.Webhook.URL != "" {
		alerter = alert.New(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Cooldown.Duration, logger)
		sched.SetOnResult(alerter.Notify)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	sched.Start(ctx)
	logger.Info("watching", "team", cfg.TeamCode, "interval", cfg.Watch.Interval.Duration)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	sched.Wait()
	if alerter != nil {
		alerter.Wait()
	}
	logger.Info("shutdown complete")
	return nil
}
