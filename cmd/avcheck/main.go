package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/avcheck/internal/alert"
	"github.com/hazz-dev/avcheck/internal/config"
	"github.com/hazz-dev/avcheck/internal/report"
	"github.com/hazz-dev/avcheck/internal/runner"
	"github.com/hazz-dev/avcheck/internal/storage"
	"github.com/hazz-dev/avcheck/internal/version"
)

var (
	cfgFile  string
	baseURL  string
	timeout  time.Duration
	interval time.Duration
	dbPath   string
	noColor  bool
	verbose  bool
)

func main() {
	err := rootCmd().Execute()
	if err == nil {
		return
	}
	// A failed check is already in the report; anything else is fatal.
	if !errors.Is(err, runner.ErrChecksFailed) {
		report.NewPrinter(os.Stdout, useColor()).Fatal(err)
	}
	os.Exit(1)
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "avcheck [teamCode] [password]",
		Short: "Smoke test the team availability API",
		Long: `Runs seven GET checks against the availability API of one team and
prints a colored pass/fail report. Exits 1 if any check fails.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "avcheck.yml", "config file path")
	pf.StringVar(&baseURL, "base-url", "", "API base URL (overrides config and BASE_URL)")
	pf.DurationVar(&timeout, "timeout", 0, "per-request timeout (0 waits indefinitely)")
	pf.StringVar(&dbPath, "db", "", "SQLite file for run history")
	pf.BoolVar(&noColor, "no-color", false, "disable ANSI colors")
	pf.BoolVar(&verbose, "verbose", false, "enable debug logging")

	root.AddCommand(versionCmd())
	root.AddCommand(watchCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(mockCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "avcheck %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	logger := newLogger()

	deps := runDeps{logger: logger, color: useColor()}
	if cfg.Storage.Path != "" {
		db, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		deps.store = db
	}
	if cfg.Alerts.Webhook.URL != "" {
		deps.notifier = alert.New(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Cooldown.Duration, logger)
	}

	return executeRun(cmd.Context(), cmd.OutOrStdout(), cfg, deps)
}

// loadConfig builds the effective configuration: defaults, then the config
// file, then BASE_URL, then flags, then positional arguments.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		// The default config file is optional.
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("config") {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = config.Default()
	}

	cfg.ApplyEnv(os.Getenv)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout.Duration = timeout
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	if f := cmd.Flags().Lookup("interval"); f != nil && f.Changed {
		cfg.Watch.Interval.Duration = interval
	}
	cfg.ApplyArgs(args)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func useColor() bool {
	return !noColor && os.Getenv("NO_COLOR") == ""
}
