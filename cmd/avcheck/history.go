package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/avcheck/internal/storage"
)

var (
	historyLimit int
	historyRun   string
)

type historyStore interface {
	RunHistory(ctx context.Context, team string, limit, offset int) ([]storage.Run, int, error)
	RunChecks(ctx context.Context, runID string) ([]storage.Check, error)
	PassRate(ctx context.Context, team string, last int) (float64, error)
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [teamCode]",
		Short: "Print stored runs from the history database",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistory,
	}
	cmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show")
	cmd.Flags().StringVar(&historyRun, "run", "", "show the checks of one run")
	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if cfg.Storage.Path == "" {
		return fmt.Errorf("no history database: set storage.path or --db")
	}

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if historyRun != "" {
		return executeRunChecks(cmd, db, historyRun)
	}
	return executeHistory(cmd, db, cfg.TeamCode, historyLimit)
}

func executeHistory(cmd *cobra.Command, db historyStore, team string, limit int) error {
	out := cmd.OutOrStdout()
	ctx := context.Background()

	runs, total, err := db.RunHistory(ctx, team, limit, 0)
	if err != nil {
		return fmt.Errorf("querying history: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintf(out, "No run history for team %s. Run 'avcheck --db <file>' or 'avcheck watch' first.\n", team)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tDURATION\tPASSED\tFAILED\tSTATUS")
	for _, r := range runs {
		status := "pass"
		if !r.OK() {
			status = "fail"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d\t%s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			r.Passed,
			r.Total,
			r.Failed,
			status,
		)
	}
	w.Flush()

	rate, err := db.PassRate(ctx, team, len(runs))
	if err != nil {
		return fmt.Errorf("querying pass rate: %w", err)
	}
	fmt.Fprintf(out, "\nShowing %d of %d runs. Pass rate over these runs: %.1f%%\n", len(runs), total, rate)
	return nil
}

func executeRunChecks(cmd *cobra.Command, db historyStore, runID string) error {
	out := cmd.OutOrStdout()

	checks, err := db.RunChecks(context.Background(), runID)
	if err != nil {
		return fmt.Errorf("querying checks: %w", err)
	}
	if len(checks) == 0 {
		fmt.Fprintf(out, "No checks stored for run %s.\n", runID)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHECK\tSTATUS\tCODE\tEXPECTED\tRESPONSE\tERROR")
	for _, c := range checks {
		code := "—"
		if c.StatusCode > 0 {
			code = fmt.Sprintf("%d", c.StatusCode)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			c.Name,
			c.Status,
			code,
			c.ExpectedStatus,
			time.Duration(c.ResponseMs*int64(time.Millisecond)),
			c.Error,
		)
	}
	w.Flush()
	return nil
}
