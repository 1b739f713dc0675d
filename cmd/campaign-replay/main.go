package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/irfndi/celebrum-campaigns/internal/config"
	"github.com/irfndi/celebrum-campaigns/internal/logging"
	"github.com/irfndi/celebrum-campaigns/internal/replay"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Replay failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Logs go to stderr so the report can be piped
	logger := logging.NewLoggerWithOutput(cfg.LogLevel, cfg.Environment, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	in, closeInput, err := openInput(cfg.Replay.InputPath)
	if err != nil {
		return err
	}
	defer closeInput()

	runner, err := replay.NewRunner(cfg, logger)
	if err != nil {
		return fmt.Errorf("invalid risk settings: %w", err)
	}

	logger.WithField("input", cfg.Replay.InputPath).
		WithField("timeframe", cfg.Campaign.Timeframe).
		Info("Starting campaign replay")

	report, err := runner.Run(ctx, in)
	if err != nil {
		return err
	}
	return replay.WriteReport(os.Stdout, report)
}

// openInput opens path for reading; "-" reads standard input.
func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open pattern file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
