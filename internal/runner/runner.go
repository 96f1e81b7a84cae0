// Package runner executes the availability suite and aggregates results.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/hazz-dev/avcheck/internal/checker"
	"github.com/hazz-dev/avcheck/internal/report"
	"github.com/hazz-dev/avcheck/internal/suite"
)

// ErrChecksFailed is returned by Run when at least one check failed.
var ErrChecksFailed = errors.New("one or more checks failed")

// Summary is the aggregated outcome of one run.
type Summary struct {
	RunID      string
	BaseURL    string
	TeamCode   string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []checker.Result
	Total      int
	Passed     int
	Failed     int
}

// OK reports whether every check passed.
func (s Summary) OK() bool {
	return s.Failed == 0
}

// FailedNames returns the names of the failed checks in run order.
func (s Summary) FailedNames() []string {
	var names []string
	for _, r := range s.Results {
		if !r.OK() {
			names = append(names, r.Name)
		}
	}
	return names
}

// Runner runs the fixed suite against one target.
type Runner struct {
	target  suite.Target
	checker checker.Checker
	printer *report.Printer
	logger  *slog.Logger
}

// New creates a Runner. Pass nil logger to use the default logger.
func New(target suite.Target, c checker.Checker, p *report.Printer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		target:  target,
		checker: c,
		printer: p,
		logger:  logger,
	}
}

// Run prints the banner, executes every case in order and prints the
// summary. A base URL that is not absolute aborts the run after the banner
// without executing any case. It returns ErrChecksFailed when any check failed; any other
// error means the run could not be carried out.
func (r *Runner) Run(ctx context.Context, now time.Time) (Summary, error) {
	summary := Summary{
		RunID:     uuid.NewString(),
		BaseURL:   r.target.BaseURL,
		TeamCode:  r.target.TeamCode,
		StartedAt: now,
	}

	wall := time.Now()
	r.printer.Banner(r.target)

	u, err := url.Parse(r.target.BaseURL)
	if err != nil {
		return summary, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return summary, fmt.Errorf("base URL %q must be absolute", r.target.BaseURL)
	}

	cases := suite.Build(r.target, now)
	summary.Results = make([]checker.Result, 0, len(cases))
	for _, tc := range cases {
		r.printer.CaseStart(tc)
		res := r.checker.Execute(ctx, tc)
		r.printer.CaseResult(res)
		r.logger.Debug("check result",
			"run", summary.RunID,
			"check", tc.Name,
			"status", res.Status,
			"status_code", res.StatusCode,
			"response_time", res.ResponseTime,
			"error", res.Error,
		)
		summary.Results = append(summary.Results, res)
		if res.OK() {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	summary.Total = len(summary.Results)
	// FinishedAt is anchored on the supplied start time and advanced by the
	// measured wall-clock duration of the run.
	summary.FinishedAt = summary.StartedAt.Add(time.Since(wall))

	r.printer.Summary(summary.Total, summary.Passed, summary.Failed)

	if !summary.OK() {
		return summary, ErrChecksFailed
	}
	return summary, nil
}
