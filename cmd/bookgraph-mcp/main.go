package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/rmax-ai/bookgraph/pkg/app"
	"github.com/rmax-ai/bookgraph/pkg/config"
	"github.com/rmax-ai/bookgraph/pkg/mcp"
)

var Version = "v0.1.0"

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "bookgraph-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load("bookgraph-mcp", args)
	if err != nil {
		return err
	}

	// stdout carries the protocol.
	logger, err := config.NewLogger(cfg.Log, "stderr")
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Controller.Init(context.Background()); err != nil {
		logger.Warn("initial_graph_load_failed", zap.Error(err))
	}

	logger.Info("mcp_server_starting", zap.String("version", Version))
	return mcp.NewServer(a.Controller, Version).Serve()
}
