package snmpquery

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/halyard-io/telemetryd/payload"
	"github.com/halyard-io/telemetryd/pkg/agent/config"
)

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config holds constructor options for SNMPProducer.
type Config struct {
	// Gateway identifies the collection point on every emitted GatewaySet.
	Gateway string

	// Namespace prefixes every reading key via payload.AgentKey.
	// Default "snmp".
	Namespace string

	// Devices maps device name → resolved device configuration.
	Devices map[string]config.SNMPDevice

	// MaxConcurrentPolls bounds device fan-out per cycle. Default 4.
	MaxConcurrentPolls int

	// Dial opens a session to a device. Defaults to a live gosnmp session;
	// tests substitute a fake.
	Dial func(config.SNMPDevice) (Querier, func(), error)
}

// Querier is the subset of *gosnmp.GoSNMP the producer consumes.
type Querier interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// SNMPProducer
// ─────────────────────────────────────────────────────────────────────────────

// SNMPProducer polls every configured device each cycle. Counter state is
// shared across cycles so count/count64 targets emit per-interval deltas.
type SNMPProducer struct {
	cfg      Config
	counters *CounterState
	logger   *slog.Logger
}

// New constructs an SNMPProducer. Pass nil for a no-op logger.
func New(cfg Config, logger *slog.Logger) *SNMPProducer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "snmp"
	}
	if cfg.MaxConcurrentPolls <= 0 {
		cfg.MaxConcurrentPolls = 4
	}
	if cfg.Dial == nil {
		cfg.Dial = openSession
	}
	return &SNMPProducer{
		cfg:      cfg,
		counters: NewCounterState(),
		logger:   logger,
	}
}

// openSession adapts NewSession to the Querier seam.
func openSession(dev config.SNMPDevice) (Querier, func(), error) {
	g, err := NewSession(dev)
	if err != nil {
		return nil, nil, err
	}
	return g, func() { _ = g.Conn.Close() }, nil
}

// Name implements producer.Producer.
func (p *SNMPProducer) Name() string { return "snmpquery" }

// Collect implements producer.Producer. Devices are polled with bounded
// fan-out; each DeviceReadingSet is assembled by exactly one goroutine and
// the GatewaySet is assembled on the caller's goroutine from the collected
// results. A device that fails to respond is logged and skipped — the
// remaining devices still produce data.
func (p *SNMPProducer) Collect(ctx context.Context) ([]*payload.GatewaySet, error) {
	if len(p.cfg.Devices) == 0 {
		return nil, nil
	}

	// Deterministic poll order.
	names := make([]string, 0, len(p.cfg.Devices))
	for name := range p.cfg.Devices {
		names = append(names, name)
	}
	sort.Strings(names)

	sem := make(chan struct{}, p.cfg.MaxConcurrentPolls)
	results := make([]*payload.DeviceReadingSet, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, name string) {
			defer wg.Done()
			defer func() { <-sem }()

			set, err := p.pollDevice(name, p.cfg.Devices[name])
			if err != nil {
				p.logger.Warn("snmpquery: device poll failed",
					"device", name,
					"error", err.Error(),
				)
				return
			}
			results[i] = set
		}(i, name)
	}
	wg.Wait()

	gw := payload.NewGatewaySet(p.cfg.Gateway)
	for _, set := range results {
		if set != nil {
			gw.Add(set)
		}
	}

	p.logger.Debug("snmpquery: cycle complete",
		"gateway", p.cfg.Gateway,
		"devices_polled", len(names),
		"devices_reporting", len(gw.Sets()),
	)
	return []*payload.GatewaySet{gw}, nil
}

// pollDevice opens a session, fetches every target OID in MaxOids-sized
// chunks, and assembles the device's reading set.
func (p *SNMPProducer) pollDevice(name string, dev config.SNMPDevice) (*payload.DeviceReadingSet, error) {
	if len(dev.Targets) == 0 {
		return nil, nil
	}

	conn, closeFn, err := p.cfg.Dial(dev)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	defer closeFn()

	oids := make([]string, len(dev.Targets))
	for i, tgt := range dev.Targets {
		oids[i] = tgt.OID
	}

	const maxOids = 60
	pdus := make([]gosnmp.SnmpPDU, 0, len(oids))
	for i := 0; i < len(oids); i += maxOids {
		end := i + maxOids
		if end > len(oids) {
			end = len(oids)
		}
		pkt, err := conn.Get(oids[i:end])
		if err != nil {
			return nil, fmt.Errorf("get: %w", err)
		}
		pdus = append(pdus, pkt.Variables...)
	}

	return p.buildDeviceSet(name, dev.Targets, pdus, time.Now()), nil
}

// buildDeviceSet converts a device's response PDUs into a DeviceReadingSet.
// It is a pure function of its inputs plus the shared counter state, which
// keeps the whole conversion path testable without a live device.
func (p *SNMPProducer) buildDeviceSet(device string, targets []config.Target, pdus []gosnmp.SnmpPDU, now time.Time) *payload.DeviceReadingSet {
	byOID := make(map[string]gosnmp.SnmpPDU, len(pdus))
	for _, pdu := range pdus {
		byOID[normalizeOID(pdu.Name)] = pdu
	}

	set := payload.NewDeviceReadingSet(device)

	for _, tgt := range targets {
		pdu, ok := byOID[normalizeOID(tgt.OID)]
		if !ok {
			continue
		}

		r := p.readingFromPDU(device, tgt, pdu, now)
		if r == nil {
			continue
		}

		annotate(r, tgt.Metadata)
		set.Add(r)
	}
	return set
}

// readingFromPDU converts one varbind into a Reading, or nil when the
// varbind has no representation this cycle (error sentinel, unsupported
// type, or the seeding observation of a counter).
func (p *SNMPProducer) readingFromPDU(device string, tgt config.Target, pdu gosnmp.SnmpPDU, now time.Time) *payload.Reading {
	dt, err := tgt.DataType()
	if err != nil {
		// Unreachable after config validation; guard anyway.
		return nil
	}

	key := payload.AgentKey(p.cfg.Namespace, tgt.Key)
	mult := tgt.Multiplier
	if mult == 0 {
		mult = 1
	}

	switch dt {
	case payload.TypeCount, payload.TypeCount64:
		raw, ok := pduUint64(pdu)
		if !ok {
			return nil
		}
		wrap := WrapCounter64
		if dt == payload.TypeCount {
			wrap = WrapCounter32
		}
		dr := p.counters.Delta(CounterKey{Device: device, Key: key}, raw, now, wrap)
		if !dr.Valid {
			// First observation seeds the state; nothing to emit yet.
			return nil
		}
		return payload.NewReading(key, float64(dr.Delta)*mult, dt)

	case payload.TypeInt, payload.TypeFloat:
		v, ok := pduScalar(pdu)
		if !ok {
			return nil
		}
		f, ok := scalarFloat(v)
		if !ok {
			return nil
		}
		return payload.NewReading(key, f*mult, dt)

	default: // TypeString, TypeNone
		v, ok := pduScalar(pdu)
		if !ok {
			return nil
		}
		return payload.NewReading(key, v, dt)
	}
}

// annotate attaches the target's configured metadata in sorted key order so
// the fold-sensitive checksum is stable across cycles.
func annotate(r *payload.Reading, meta map[string]string) {
	if len(meta) == 0 {
		return
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]payload.MetaPair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, payload.NewMetaPair(k, meta[k]))
	}
	r.Annotate(pairs...)
}

// ─────────────────────────────────────────────────────────────────────────────
// no-op logger writer
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
