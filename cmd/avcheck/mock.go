package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/avcheck/internal/mockapi"
)

var (
	mockAddr    string
	fixturePath string
)

func mockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Serve an in-memory availability API for local testing",
		Args:  cobra.NoArgs,
		RunE:  runMock,
	}
	cmd.Flags().StringVar(&mockAddr, "addr", ":3000", "listen address")
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "YAML fixture file (default: built-in data set)")
	return cmd
}

func runMock(cmd *cobra.Command, _ []string) error {
	logger := newLogger()

	fixture := mockapi.DefaultFixture(time.Now())
	if fixturePath != "" {
		f, err := mockapi.LoadFixture(fixturePath)
		if err != nil {
			return fmt.Errorf("loading fixture: %w", err)
		}
		fixture = f
	}

	httpServer := &http.Server{
		Addr:              mockAddr,
		Handler:           mockapi.New(fixture, logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", mockAddr, "teams", len(fixture.Teams))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("HTTP server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}
