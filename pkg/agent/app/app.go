// Package app wires the telemetryd agent together and manages its lifecycle.
//
// Cycle path:
//
//	tick → Producers (concurrent) → Submission assembly → activity gate →
//	Formatter → Transport
//
// One Submission is assembled per polling cycle. An inactive Submission —
// missing identity, or no producer returned an active gateway set — is
// dropped with a warning and the agent keeps running; the spool only ever
// receives documents worth storing.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	jsonformat "github.com/halyard-io/telemetryd/format/json"
	"github.com/halyard-io/telemetryd/identity"
	"github.com/halyard-io/telemetryd/payload"
	"github.com/halyard-io/telemetryd/pkg/agent/config"
	"github.com/halyard-io/telemetryd/producer"
	"github.com/halyard-io/telemetryd/producer/snmpquery"
	"github.com/halyard-io/telemetryd/producer/system"
	"github.com/halyard-io/telemetryd/transport/spool"
)

// ─────────────────────────────────────────────────────────────────────────────
// Configuration
// ─────────────────────────────────────────────────────────────────────────────

// Config holds the top-level settings for the agent application.
// Zero-value fields fall back to documented defaults.
type Config struct {
	// ConfigPath is the YAML configuration file.
	// Use config.PathFromEnv() to populate from the environment.
	ConfigPath string

	// Hostname identifies this host in every Submission.
	// Default: os.Hostname.
	Hostname string

	// Identity yields the agent id. nil = identity.NewEphemeral().
	Identity identity.Provider

	// Producers overrides the producer set built from the loaded
	// configuration. Tests inject fakes here.
	Producers []producer.Producer

	// TransportWriter overrides the spool file destination. nil = the
	// rotating spool file named in the loaded configuration.
	TransportWriter io.Writer
}

func (c *Config) withDefaults() {
	if c.Hostname == "" {
		name, _ := os.Hostname()
		if name == "" {
			name = "localhost"
		}
		c.Hostname = name
	}
	if c.Identity == nil {
		c.Identity = identity.NewEphemeral()
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// App
// ─────────────────────────────────────────────────────────────────────────────

// App orchestrates the agent: configuration, identity, producers, formatter,
// and transport. Create one with New, start the cycle loop with Start, and
// stop it with Stop (or cancel the context). RunCycle is exposed for oneshot
// operation.
type App struct {
	cfg    Config
	logger *slog.Logger

	// Populated in Start.
	loadedCfg *config.Config
	agentID   string

	producers []producer.Producer
	formatter jsonformat.Formatter
	transport spool.Transport

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an App. It does not start anything — call Start for that.
func New(cfg Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	cfg.withDefaults()
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// Start loads configuration, resolves the agent identity, constructs the
// producers and output stage, and launches the cycle loop. It returns an
// error if configuration loading, identity resolution, or spool setup fails.
//
// The caller must eventually call Stop (or cancel the passed-in context's
// parent) to release resources.
func (a *App) Start(ctx context.Context) error {
	if err := a.setup(); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	interval := time.Duration(a.loadedCfg.PollingInterval) * time.Second

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		// First cycle fires immediately; the ticker paces the rest.
		a.cycle(loopCtx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				a.cycle(loopCtx)
			}
		}
	}()

	a.logger.Info("app: agent running",
		"agent_program", a.loadedCfg.AgentProgram,
		"polling_interval_s", a.loadedCfg.PollingInterval,
		"producers", len(a.producers),
	)
	return nil
}

// RunCycle performs setup and exactly one collection cycle, then releases
// resources. Used by the oneshot command-line mode.
func (a *App) RunCycle(ctx context.Context) error {
	if err := a.setup(); err != nil {
		return err
	}
	defer a.closeTransport()

	return a.cycle(ctx)
}

// Stop cancels the cycle loop, waits for an in-flight cycle to finish, and
// closes the transport.
func (a *App) Stop() {
	a.logger.Info("app: shutting down")

	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	a.closeTransport()

	a.logger.Info("app: shutdown complete")
}

// ─────────────────────────────────────────────────────────────────────────────
// Setup
// ─────────────────────────────────────────────────────────────────────────────

// setup loads configuration and builds every component the cycle loop needs.
func (a *App) setup() error {
	a.logger.Info("app: loading configuration", "path", a.cfg.ConfigPath)
	loadedCfg, err := config.Load(a.cfg.ConfigPath, a.logger)
	if err != nil {
		return fmt.Errorf("app: load config: %w", err)
	}
	a.loadedCfg = loadedCfg

	id, err := a.cfg.Identity.AgentID(loadedCfg.AgentProgram, a.cfg.Hostname)
	if err != nil {
		return fmt.Errorf("app: resolve identity: %w", err)
	}
	a.agentID = id

	a.formatter = jsonformat.New(jsonformat.Config{
		PrettyPrint: loadedCfg.Spool.Pretty,
	}, a.logger)

	w := a.cfg.TransportWriter
	if w == nil {
		rf, err := spool.NewRotatingFile(spool.RotateConfig{
			FilePath:   loadedCfg.Spool.Path,
			MaxBytes:   loadedCfg.Spool.MaxBytes,
			MaxBackups: loadedCfg.Spool.MaxBackups,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("app: open spool: %w", err)
		}
		w = rf
	}
	a.transport = spool.New(spool.Config{Writer: w}, a.logger)

	a.producers = a.cfg.Producers
	if a.producers == nil {
		a.producers = buildProducers(loadedCfg, a.cfg.Hostname, a.logger)
	}

	a.logger.Info("app: configuration loaded",
		"agent_id", a.agentID,
		"snmp_devices", len(loadedCfg.SNMP.Devices),
		"system_enabled", loadedCfg.System.Enabled,
	)
	return nil
}

// buildProducers assembles the producer set the loaded configuration asks
// for. A configuration with no producers is legal — every cycle is then
// inactive and dropped, which the warning log makes visible.
func buildProducers(cfg *config.Config, hostname string, logger *slog.Logger) []producer.Producer {
	var out []producer.Producer

	if cfg.System.Enabled {
		out = append(out, system.New(system.Config{
			Gateway:     hostname,
			Device:      hostname,
			Mountpoints: cfg.System.Mountpoints,
		}, logger))
	}

	if len(cfg.SNMP.Devices) > 0 {
		out = append(out, snmpquery.New(snmpquery.Config{
			Gateway:            cfg.SNMP.Gateway,
			Devices:            cfg.SNMP.Devices,
			MaxConcurrentPolls: cfg.SNMP.MaxConcurrentPolls,
		}, logger))
	}

	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Cycle
// ─────────────────────────────────────────────────────────────────────────────

// cycle runs one collection pass: every producer collects concurrently, the
// results are folded into a Submission on this goroutine, the activity gate
// is applied, and the document goes to the transport.
func (a *App) cycle(ctx context.Context) error {
	start := time.Now()

	sub := payload.NewSubmission(
		a.agentID,
		a.loadedCfg.AgentProgram,
		a.cfg.Hostname,
		a.loadedCfg.PollingInterval,
	)

	results := make([][]*payload.GatewaySet, len(a.producers))

	var wg sync.WaitGroup
	for i, p := range a.producers {
		wg.Add(1)
		go func(i int, p producer.Producer) {
			defer wg.Done()

			sets, err := p.Collect(ctx)
			if err != nil {
				a.logger.Warn("app: producer failed",
					"producer", p.Name(),
					"error", err.Error(),
				)
				return
			}
			results[i] = sets
		}(i, p)
	}
	wg.Wait()

	// Fold on a single goroutine; Add discards inactive gateway sets.
	for _, sets := range results {
		sub.Add(sets...)
	}

	if !sub.Active() {
		a.logger.Warn("app: submission inactive, dropping cycle",
			"agent_id", a.agentID,
			"gateways", len(sub.Gateways()),
		)
		return nil
	}

	data, err := a.formatter.Format(sub)
	if err != nil {
		a.logger.Error("app: format error", "error", err.Error())
		return fmt.Errorf("app: format: %w", err)
	}

	if err := a.transport.Send(data); err != nil {
		a.logger.Error("app: spool write error",
			"error", err.Error(),
			"bytes", len(data),
		)
		return fmt.Errorf("app: send: %w", err)
	}

	a.logger.Info("app: cycle complete",
		"gateways", len(sub.Gateways()),
		"bytes", len(data),
		"elapsed", time.Since(start).String(),
	)
	return nil
}

func (a *App) closeTransport() {
	if a.transport == nil {
		return
	}
	if err := a.transport.Close(); err != nil {
		a.logger.Error("app: transport close error", "error", err.Error())
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Utilities
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
