// Package main is the entry point for the Mandrill document converter.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shineum/mandrill-dm/internal/batch"
	"github.com/shineum/mandrill-dm/internal/config"
	"github.com/shineum/mandrill-dm/internal/mandrill"
	"github.com/shineum/mandrill-dm/internal/outbox"
	"github.com/shineum/mandrill-dm/internal/outbox/s3box"
	"github.com/shineum/mandrill-dm/internal/provider/spool"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config file] [file|dir|-]...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	setupLogger(cfg.Logging.Level)

	sources, err := batch.Collect(flag.Args(), os.Stdin)
	if err != nil {
		slog.Error("failed to collect input", "error", err)
		os.Exit(1)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		slog.Info("received signal, stopping", "signal", sig)
		cancel()
	}()

	box, err := selectOutbox(ctx, cfg)
	if err != nil {
		slog.Error("failed to create outbox", "error", err)
		os.Exit(1)
	}

	mode, _ := mandrill.ParseMetadataMode(cfg.Mandrill.MetadataMode)
	opts := []mandrill.Option{mandrill.WithMetadataMode(mode)}
	if cfg.Mandrill.EmptyTagPlaceholder {
		opts = append(opts, mandrill.WithEmptyTagPlaceholder())
	}
	prov := spool.New(box, cfg.Outbox.Pretty, opts...)

	slog.Info("starting mandrill-dm",
		"provider", prov.Name(),
		"inputs", len(sources),
		"workers", cfg.Workers,
		"metadata_mode", mode,
	)

	runner := batch.New(batch.Config{
		Provider:       prov,
		Workers:        cfg.Workers,
		MaxMessageSize: cfg.MaxMessageSize,
	})
	res, err := runner.Run(ctx, sources)

	slog.Info("mandrill-dm finished",
		"processed", res.Processed,
		"failed", res.Failed,
	)

	if err != nil {
		slog.Error("run interrupted", "error", err)
		os.Exit(1)
	}
	if res.Failed > 0 {
		os.Exit(1)
	}
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level. Logs go to stderr so they never mix with documents
// written to stdout.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// selectOutbox chooses the document destination based on configuration.
func selectOutbox(ctx context.Context, cfg *config.Config) (outbox.Outbox, error) {
	switch cfg.Outbox.Kind {
	case config.OutboxS3:
		slog.Info("using S3 outbox",
			"region", cfg.S3.Region,
			"bucket", cfg.S3.Bucket,
			"prefix", cfg.S3.Prefix,
		)
		return s3box.New(ctx, s3box.Config{
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case config.OutboxDir:
		slog.Info("using directory outbox", "dir", cfg.Outbox.Dir)
		return outbox.NewDir(cfg.Outbox.Dir)

	case config.OutboxStdout:
		slog.Info("using stdout outbox")
		return outbox.NewWriter(cfg.Outbox.Pretty), nil

	default:
		return nil, fmt.Errorf("unknown outbox %q", cfg.Outbox.Kind)
	}
}
