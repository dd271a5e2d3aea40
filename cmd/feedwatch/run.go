package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/syntrixbase/feedwatch/internal/logging"
	"github.com/syntrixbase/feedwatch/internal/services"
)

const (
	initTimeout     = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the poller until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runPoller,
	}
}

func runPoller(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		return err
	}
	defer logging.Shutdown()

	slog.Info("Starting feedwatch", "version", version, "backend", cfg.Feed.Backend)

	mgr := services.NewManager(cfg, services.Options{})

	initCtx, cancelInit := context.WithTimeout(cmd.Context(), initTimeout)
	defer cancelInit()
	if err := mgr.Init(initCtx); err != nil {
		slog.Error("Failed to initialize", "error", err)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		mgr.Shutdown(shutdownCtx)
		return err
	}

	bgCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr.Start(bgCtx)
	<-bgCtx.Done()
	stop()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	mgr.Shutdown(shutdownCtx)

	slog.Info("Feedwatch stopped")
	return nil
}
