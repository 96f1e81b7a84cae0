package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/hazz-dev/avcheck/internal/checker"
	"github.com/hazz-dev/avcheck/internal/config"
	"github.com/hazz-dev/avcheck/internal/report"
	"github.com/hazz-dev/avcheck/internal/runner"
	"github.com/hazz-dev/avcheck/internal/storage"
	"github.com/hazz-dev/avcheck/internal/suite"
)

type runStore interface {
	InsertRun(ctx context.Context, s runner.Summary) error
	LatestRun(ctx context.Context, team string) (*storage.Run, error)
}

type notifier interface {
	Notify(s runner.Summary, previousOK *bool)
	Wait()
}

// runDeps are the optional collaborators of a single run. Nil store or
// notifier disables history or alerting.
type runDeps struct {
	store    runStore
	notifier notifier
	logger   *slog.Logger
	color    bool
}

func newRunner(out io.Writer, cfg *config.Config, color bool, logger *slog.Logger) *runner.Runner {
	target := suite.Target{
		BaseURL:  cfg.BaseURL,
		TeamCode: cfg.TeamCode,
		Password: cfg.Password,
	}
	return runner.New(
		target,
		checker.NewHTTP(cfg.Timeout.Duration, cfg.Headers),
		report.NewPrinter(out, color),
		logger,
	)
}

// executeRun runs the suite once, records it and notifies on an outcome
// change. It returns runner.ErrChecksFailed when any check failed.
func executeRun(ctx context.Context, out io.Writer, cfg *config.Config, deps runDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := deps.logger
	if logger == nil {
		logger = slog.Default()
	}

	var previousOK *bool
	if deps.store != nil {
		prev, err := deps.store.LatestRun(ctx, cfg.TeamCode)
		if err != nil {
			logger.Warn("fetching previous run", "team", cfg.TeamCode, "error", err)
		}
		if prev != nil {
			ok := prev.OK()
			previousOK = &ok
		}
	}

	summary, err := newRunner(out, cfg, deps.color, logger).Run(ctx, time.Now())
	if err != nil && !errors.Is(err, runner.ErrChecksFailed) {
		return err
	}

	if deps.store != nil {
		if serr := deps.store.InsertRun(ctx, summary); serr != nil {
			logger.Error("storing run", "team", cfg.TeamCode, "error", serr)
		} else {
			logger.Debug("run stored", "run", summary.RunID)
		}
	}
	if deps.notifier != nil {
		deps.notifier.Notify(summary, previousOK)
		deps.notifier.Wait()
	}
	return err
}
