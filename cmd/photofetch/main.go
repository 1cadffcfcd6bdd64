package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jensholdgaard/cricket-auction/internal/config"
	"github.com/jensholdgaard/cricket-auction/internal/fetcher"
	"github.com/jensholdgaard/cricket-auction/internal/sheet"
	"github.com/jensholdgaard/cricket-auction/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (defaults apply when empty)")
	input := flag.String("input", "", "spreadsheet with a column of photo links")
	output := flag.String("output", "", "spreadsheet to write with downloaded paths")
	dir := flag.String("dir", "", "directory to save photos into")
	flag.Parse()

	if err := run(*configPath, *input, *output, *dir); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath, input, output, dir string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}
	fc := cfg.Fetcher
	if input != "" {
		fc.Input = input
	}
	if output != "" {
		fc.Output = output
	}
	if dir != "" {
		fc.DownloadDir = dir
	}

	tp, err := telemetry.Setup(ctx, cfg.Telemetry, os.Stderr)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()
	logger := tp.Logger

	table, err := sheet.ReadFile(fc.Input)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	if err := os.MkdirAll(fc.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("creating download dir: %w", err)
	}

	client := fetcher.NewClient(&http.Client{Timeout: fc.Timeout}, fc.Endpoint, tp.TracerProvider)
	batch := fetcher.NewBatch(client, fc, logger, tp.TracerProvider)

	out, report, err := batch.Run(ctx, table)
	if err != nil {
		return fmt.Errorf("downloading photos: %w", err)
	}
	if err := sheet.WriteFile(fc.Output, out); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	fmt.Printf("Download complete! %d of %d photos saved (%d blank, %d invalid, %d failed). Updated file saved as %s\n",
		report.Downloaded, report.Rows, report.Blank, report.Invalid, report.Failed, fc.Output)
	return nil
}
