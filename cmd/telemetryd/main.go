// Command telemetryd is the telemetry agent binary.
//
// It loads a YAML configuration file (located via TELEMETRYD_CONFIG or the
// -config flag), assembles one submission per polling cycle from the enabled
// producers, and spools the documents until interrupted (SIGINT / SIGTERM).
//
// Usage:
//
//	telemetryd [flags]
//
// With -oneshot the agent runs a single cycle and exits, which is the
// easiest way to check a new configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/halyard-io/telemetryd/pkg/agent/app"
	"github.com/halyard-io/telemetryd/pkg/agent/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "telemetryd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ── Flags ────────────────────────────────────────────────────────────
	var (
		logLevel string
		logFmt   string
		cfgPath  string
		hostname string
		oneshot  bool
	)

	flag.StringVar(&logLevel, "log.level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&logFmt, "log.fmt", "json", "Log format: json, text")
	flag.StringVar(&cfgPath, "config", "", "Configuration file (default: TELEMETRYD_CONFIG)")
	flag.StringVar(&hostname, "hostname", "", "Agent hostname override (default: os.Hostname)")
	flag.BoolVar(&oneshot, "oneshot", false, "Run one collection cycle and exit")

	flag.Parse()

	// ── Logger ───────────────────────────────────────────────────────────
	logger, err := buildLogger(logLevel, logFmt)
	if err != nil {
		return err
	}

	if cfgPath == "" {
		cfgPath = config.PathFromEnv()
	}

	// ── Build App ────────────────────────────────────────────────────────
	application := app.New(app.Config{
		ConfigPath: cfgPath,
		Hostname:   hostname,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Oneshot ──────────────────────────────────────────────────────────
	if oneshot {
		if err := application.RunCycle(ctx); err != nil {
			return fmt.Errorf("oneshot: %w", err)
		}
		return nil
	}

	// ── Start ────────────────────────────────────────────────────────────
	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	logger.Info("telemetryd: running — press Ctrl-C to stop")

	// Block until signal.
	<-ctx.Done()
	logger.Info("telemetryd: received shutdown signal")

	application.Stop()
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func buildLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q (expected debug|info|warn|error)", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler

	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q (expected json|text)", format)
	}

	return slog.New(handler), nil
}
