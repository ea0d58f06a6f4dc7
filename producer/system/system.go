// Package system produces host OS readings: CPU, memory, load, disk usage,
// and per-interface network counters. Sampling goes through gopsutil; the
// payload assembly is a pure function of the sample so it can be tested
// without touching the host.
package system

import (
	"context"
	"log/slog"
	"os"
	"sort"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	gopsnet "github.com/shirou/gopsutil/v4/net"

	"github.com/halyard-io/telemetryd/payload"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sample
// ─────────────────────────────────────────────────────────────────────────────

// DiskSample is the usage of one mountpoint.
type DiskSample struct {
	Mountpoint  string
	TotalBytes  uint64
	UsedBytes   uint64
	UsedPercent float64
}

// NetSample is the lifetime send/receive counters of one interface.
type NetSample struct {
	Interface  string
	BytesSent  uint64
	BytesRecv  uint64
	PacketsIn  uint64
	PacketsOut uint64
}

// Sample is one point-in-time observation of the host. Zero-value slices
// mean the corresponding subsystem was unavailable, not that it was empty.
type Sample struct {
	CPUPercent  float64
	CPUSampled  bool
	MemTotal    uint64
	MemUsed     uint64
	MemPercent  float64
	MemSampled  bool
	Load1       float64
	Load5       float64
	Load15      float64
	LoadSampled bool
	Disks       []DiskSample
	Nets        []NetSample
}

// ─────────────────────────────────────────────────────────────────────────────
// Producer
// ─────────────────────────────────────────────────────────────────────────────

// Config holds constructor options for Producer.
type Config struct {
	// Gateway identifies the collection point. Default: os.Hostname.
	Gateway string

	// Device names the reading set. Default: os.Hostname.
	Device string

	// Namespace prefixes every reading key via payload.AgentKey.
	// Default "system".
	Namespace string

	// Mountpoints to sample disk usage for. Default ["/"].
	Mountpoints []string

	// Sampler gathers the host observation. Defaults to gopsutil; tests
	// substitute a canned Sample.
	Sampler func(ctx context.Context, mountpoints []string) Sample
}

// Producer implements producer.Producer for the local host.
type Producer struct {
	cfg    Config
	logger *slog.Logger
}

// New constructs a system Producer. Pass nil for a no-op logger.
func New(cfg Config, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "system"
	}
	if cfg.Gateway == "" || cfg.Device == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "localhost"
		}
		if cfg.Gateway == "" {
			cfg.Gateway = host
		}
		if cfg.Device == "" {
			cfg.Device = host
		}
	}
	if len(cfg.Mountpoints) == 0 {
		cfg.Mountpoints = []string{"/"}
	}
	if cfg.Sampler == nil {
		cfg.Sampler = hostSample
	}
	return &Producer{cfg: cfg, logger: logger}
}

// Name implements producer.Producer.
func (p *Producer) Name() string { return "system" }

// Collect implements producer.Producer. A subsystem that fails to sample is
// left out of the reading set; the rest of the host still reports.
func (p *Producer) Collect(ctx context.Context) ([]*payload.GatewaySet, error) {
	sample := p.cfg.Sampler(ctx, p.cfg.Mountpoints)

	set := p.buildDeviceSet(sample)
	gw := payload.NewGatewaySet(p.cfg.Gateway)
	gw.Add(set)

	p.logger.Debug("system: cycle complete",
		"device", p.cfg.Device,
		"readings", set.Len(),
	)
	return []*payload.GatewaySet{gw}, nil
}

// buildDeviceSet converts one Sample into the device's reading set.
func (p *Producer) buildDeviceSet(sample Sample) *payload.DeviceReadingSet {
	set := payload.NewDeviceReadingSet(p.cfg.Device)
	key := func(raw string) string { return payload.AgentKey(p.cfg.Namespace, raw) }

	if sample.CPUSampled {
		set.Add(payload.NewReading(key("cpu-percent"), sample.CPUPercent, payload.TypeFloat))
	}
	if sample.MemSampled {
		set.Add(
			payload.NewReading(key("memory-total"), sample.MemTotal, payload.TypeInt),
			payload.NewReading(key("memory-used"), sample.MemUsed, payload.TypeInt),
			payload.NewReading(key("memory-percent"), sample.MemPercent, payload.TypeFloat),
		)
	}
	if sample.LoadSampled {
		set.Add(
			payload.NewReading(key("load-1"), sample.Load1, payload.TypeFloat),
			payload.NewReading(key("load-5"), sample.Load5, payload.TypeFloat),
			payload.NewReading(key("load-15"), sample.Load15, payload.TypeFloat),
		)
	}

	for _, d := range sample.Disks {
		pairs := []payload.MetaPair{payload.NewMetaPair("mountpoint", d.Mountpoint)}
		set.Add(
			annotated(payload.NewReading(key("disk-total"), d.TotalBytes, payload.TypeInt), pairs),
			annotated(payload.NewReading(key("disk-used"), d.UsedBytes, payload.TypeInt), pairs),
			annotated(payload.NewReading(key("disk-percent"), d.UsedPercent, payload.TypeFloat), pairs),
		)
	}

	for _, n := range sample.Nets {
		pairs := []payload.MetaPair{payload.NewMetaPair("netif", n.Interface)}
		set.Add(
			annotated(payload.NewReading(key("netif-bytes-out"), n.BytesSent, payload.TypeCount64), pairs),
			annotated(payload.NewReading(key("netif-bytes-in"), n.BytesRecv, payload.TypeCount64), pairs),
			annotated(payload.NewReading(key("netif-packets-in"), n.PacketsIn, payload.TypeCount64), pairs),
			annotated(payload.NewReading(key("netif-packets-out"), n.PacketsOut, payload.TypeCount64), pairs),
		)
	}

	return set
}

// annotated attaches pairs and returns the reading, for inline Add calls.
func annotated(r *payload.Reading, pairs []payload.MetaPair) *payload.Reading {
	r.Annotate(pairs...)
	return r
}

// ─────────────────────────────────────────────────────────────────────────────
// Host sampling
// ─────────────────────────────────────────────────────────────────────────────

// hostSample gathers a Sample with gopsutil. Each subsystem fails
// independently; a failed probe just leaves its Sampled flag false or its
// slice empty.
func hostSample(ctx context.Context, mountpoints []string) Sample {
	var s Sample

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		s.CPUPercent = percents[0]
		s.CPUSampled = true
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.MemTotal = vm.Total
		s.MemUsed = vm.Used
		s.MemPercent = vm.UsedPercent
		s.MemSampled = true
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		s.Load1 = avg.Load1
		s.Load5 = avg.Load5
		s.Load15 = avg.Load15
		s.LoadSampled = true
	}

	for _, mp := range mountpoints {
		usage, err := disk.UsageWithContext(ctx, mp)
		if err != nil {
			continue
		}
		s.Disks = append(s.Disks, DiskSample{
			Mountpoint:  mp,
			TotalBytes:  usage.Total,
			UsedBytes:   usage.Used,
			UsedPercent: usage.UsedPercent,
		})
	}

	if counters, err := gopsnet.IOCountersWithContext(ctx, true); err == nil {
		for _, c := range counters {
			s.Nets = append(s.Nets, NetSample{
				Interface:  c.Name,
				BytesSent:  c.BytesSent,
				BytesRecv:  c.BytesRecv,
				PacketsIn:  c.PacketsRecv,
				PacketsOut: c.PacketsSent,
			})
		}
		sort.Slice(s.Nets, func(i, j int) bool {
			return s.Nets[i].Interface < s.Nets[j].Interface
		})
	}

	return s
}

// ─────────────────────────────────────────────────────────────────────────────
// no-op logger writer
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
