package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hazz-dev/avcheck/internal/runner"
	"github.com/hazz-dev/avcheck/internal/storage"
)

// Store defines the storage operations required by the scheduler.
type Store interface {
	InsertRun(ctx context.Context, s runner.Summary) error
	LatestRun(ctx context.Context, team string) (*storage.Run, error)
}

// Suite runs the full check sequence once.
type Suite interface {
	Run(ctx context.Context, now time.Time) (runner.Summary, error)
}

// Scheduler re-runs the suite for one team on a fixed interval.
type Scheduler struct {
	suite    Suite
	team     string
	interval time.Duration
	store    Store
	onResult func(runner.Summary, *bool)
	now      func() time.Time
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// New creates a new Scheduler. store may be nil to skip persistence.
// Pass nil logger to use the default logger.
func New(s Suite, team string, interval time.Duration, store Store, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		suite:    s,
		team:     team,
		interval: interval,
		store:    store,
		now:      time.Now,
		logger:   logger,
	}
}

// SetOnResult sets the callback invoked after each completed run.
// previousOK is the outcome of the previous stored run (nil if none).
func (s *Scheduler) SetOnResult(fn func(summary runner.Summary, previousOK *bool)) {
	s.onResult = fn
}

// Start runs the suite immediately and then on every tick in a single
// goroutine, so runs never overlap. It is non-blocking.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Wait blocks until the run loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	// Fetch previous outcome before running.
	var previousOK *bool
	if s.store != nil {
		prev, err := s.store.LatestRun(ctx, s.team)
		if err != nil {
			s.logger.Warn("fetching previous run", "team", s.team, "error", err)
		}
		if prev != nil {
			ok := prev.OK()
			previousOK = &ok
		}
	}

	summary, err := s.suite.Run(ctx, s.now())
	if err != nil && !errors.Is(err, runner.ErrChecksFailed) {
		s.logger.Error("run aborted", "team", s.team, "error", err)
		return
	}
	if ctx.Err() != nil {
		// Interrupted mid-run; the partial result is not recorded.
		return
	}

	s.logger.Info("run result",
		"team", s.team,
		"run", summary.RunID,
		"passed", summary.Passed,
		"failed", summary.Failed,
	)

	if s.store != nil {
		if err := s.store.InsertRun(ctx, summary); err != nil {
			s.logger.Error("storing run", "team", s.team, "error", err)
		}
	}

	if s.onResult != nil {
		s.onResult(summary, previousOK)
	}
}
