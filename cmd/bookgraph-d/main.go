package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rmax-ai/bookgraph/pkg/api"
	"github.com/rmax-ai/bookgraph/pkg/app"
	"github.com/rmax-ai/bookgraph/pkg/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "bookgraph-d: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load("bookgraph-d", args)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("system_started",
		zap.String("component", "bookgraph-d"),
		zap.String("api_url", cfg.API.URL),
		zap.String("cache_backend", cfg.Cache.Backend),
	)

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed_to_init_app", zap.Error(err))
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed_to_close_cache", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A failed first load leaves the controller Ready; the server still
	// starts so clients can see the error and retry.
	if err := a.Controller.Init(ctx); err != nil {
		logger.Warn("initial_graph_load_failed", zap.Error(err))
	}

	srv := api.NewServer(a.Controller, cfg.Listen.Addr, logger.Named("api"))
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown_initiated")
	case err := <-errCh:
		if err != nil {
			logger.Error("server_failed", zap.Error(err))
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("server_shutdown_failed", zap.Error(err))
	}

	logger.Info("shutdown_complete")
	return nil
}
