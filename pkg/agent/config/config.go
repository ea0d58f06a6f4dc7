// Package config provides YAML configuration loading for telemetryd.
//
// A single file (located via the TELEMETRYD_CONFIG environment variable or a
// command-line override) describes the agent identity, the polling interval,
// the spool output, and the producers to run:
//
//	agent_program: telemetryd
//	polling_interval: 300
//	spool:
//	  path: /var/spool/telemetryd/submissions.json
//	  max_bytes: 10485760
//	  max_backups: 5
//	system:
//	  enabled: true
//	snmp:
//	  gateway: rack1-gw
//	  defaults:
//	    version: 2c
//	    community: public
//	  devices:
//	    sw01:
//	      ip: 192.0.2.1
//	      targets:
//	        - oid: 1.3.6.1.2.1.2.2.1.10.1
//	          key: netif-bytes-in
//	          data_type: count
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/halyard-io/telemetryd/payload"
)

// PathFromEnv returns the configuration file path from TELEMETRYD_CONFIG,
// falling back to the documented default when unset or empty.
func PathFromEnv() string {
	if v := os.Getenv("TELEMETRYD_CONFIG"); v != "" {
		return v
	}
	return "/etc/telemetryd/telemetryd.yaml"
}

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the fully resolved agent configuration.
type Config struct {
	// AgentProgram names this agent in every Submission. Default "telemetryd".
	AgentProgram string `yaml:"agent_program"`

	// PollingInterval is the cycle period in seconds. Default 300.
	PollingInterval int `yaml:"polling_interval"`

	Spool  SpoolConfig  `yaml:"spool"`
	System SystemConfig `yaml:"system"`
	SNMP   SNMPConfig   `yaml:"snmp"`
}

// SpoolConfig controls the submission spool file.
type SpoolConfig struct {
	// Path is the active spool file. Default "telemetryd_submissions.json".
	Path string `yaml:"path"`

	// MaxBytes triggers rotation when the spool exceeds this size.
	// Zero disables rotation.
	MaxBytes int64 `yaml:"max_bytes"`

	// MaxBackups is the number of rotated spool files to keep. Zero keeps all.
	MaxBackups int `yaml:"max_backups"`

	// Pretty emits indented JSON documents.
	Pretty bool `yaml:"pretty"`
}

// SystemConfig controls the host OS producer.
type SystemConfig struct {
	Enabled bool `yaml:"enabled"`

	// Mountpoints to sample disk usage for. Default ["/"].
	Mountpoints []string `yaml:"mountpoints"`
}

// SNMPConfig is the SNMP producer tree: one gateway, many devices.
type SNMPConfig struct {
	// Gateway identifies the collection point. Default: agent hostname.
	Gateway string `yaml:"gateway"`

	// MaxConcurrentPolls bounds device fan-out per cycle. Default 4.
	MaxConcurrentPolls int `yaml:"max_concurrent_polls"`

	Defaults SNMPDefaults          `yaml:"defaults"`
	Devices  map[string]SNMPDevice `yaml:"devices"`
}

// SNMPDefaults are per-device settings applied where a device omits them.
type SNMPDefaults struct {
	Port      int    `yaml:"port"`
	Version   string `yaml:"version"`
	Community string `yaml:"community"`
	TimeoutMs int    `yaml:"timeout_ms"`
	Retries   int    `yaml:"retries"`
}

// SNMPDevice describes one polled device.
type SNMPDevice struct {
	IP        string `yaml:"ip"`
	Port      int    `yaml:"port"`
	Version   string `yaml:"version"`
	Community string `yaml:"community"`
	TimeoutMs int    `yaml:"timeout_ms"`
	Retries   int    `yaml:"retries"`

	// SNMPv3 credentials, used only when Version == "3".
	V3 V3Credentials `yaml:"v3"`

	Targets []Target `yaml:"targets"`
}

// V3Credentials carries the USM settings for SNMPv3 sessions.
type V3Credentials struct {
	Username       string `yaml:"username"`
	AuthProtocol   string `yaml:"auth_protocol"` // md5, sha, sha224 … sha512
	AuthPassphrase string `yaml:"auth_passphrase"`
	PrivProtocol   string `yaml:"priv_protocol"` // des, aes, aes192 … aes256c
	PrivPassphrase string `yaml:"priv_passphrase"`
}

// Target maps one OID to a reading definition.
type Target struct {
	OID string `yaml:"oid"`

	// Key is the raw reading key; it passes through payload.AgentKey with the
	// producer namespace before use.
	Key string `yaml:"key"`

	// DataTypeName selects the payload data type: int, float, count, count64,
	// string, none. Default "float".
	DataTypeName string `yaml:"data_type"`

	// Multiplier scales numeric values. Default 1.
	Multiplier float64 `yaml:"multiplier"`

	// Metadata pairs annotated onto every reading from this target.
	Metadata map[string]string `yaml:"metadata"`
}

// DataType resolves DataTypeName to the payload enum.
func (t Target) DataType() (payload.DataType, error) {
	switch strings.ToLower(strings.TrimSpace(t.DataTypeName)) {
	case "", "float":
		return payload.TypeFloat, nil
	case "int":
		return payload.TypeInt, nil
	case "count":
		return payload.TypeCount, nil
	case "count64":
		return payload.TypeCount64, nil
	case "string":
		return payload.TypeString, nil
	case "none":
		return payload.TypeNone, nil
	default:
		return payload.TypeNone, fmt.Errorf("config: unknown data_type %q", t.DataTypeName)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Load
// ─────────────────────────────────────────────────────────────────────────────

// Load reads and resolves the configuration file at path. Device entries are
// merged with the SNMP defaults block; global fields fall back to documented
// defaults so a minimal file still produces a runnable agent.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(false) // be lenient — extra keys are fine
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	cfg.applyDefaults()

	for name, dev := range cfg.SNMP.Devices {
		cfg.SNMP.Devices[name] = resolveDevice(dev, cfg.SNMP.Defaults)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger.Debug("config: loaded",
		"file", path,
		"polling_interval", cfg.PollingInterval,
		"snmp_devices", len(cfg.SNMP.Devices),
		"system_enabled", cfg.System.Enabled,
	)
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.AgentProgram == "" {
		c.AgentProgram = "telemetryd"
	}
	if c.PollingInterval == 0 {
		c.PollingInterval = 300
	}
	if c.Spool.Path == "" {
		c.Spool.Path = "telemetryd_submissions.json"
	}
	if len(c.System.Mountpoints) == 0 {
		c.System.Mountpoints = []string{"/"}
	}
	if c.SNMP.MaxConcurrentPolls == 0 {
		c.SNMP.MaxConcurrentPolls = 4
	}
	if c.SNMP.Gateway == "" {
		name, _ := os.Hostname()
		c.SNMP.Gateway = name
	}
}

// resolveDevice merges a device entry with the defaults block, then with the
// hard-coded fallbacks.
func resolveDevice(e SNMPDevice, d SNMPDefaults) SNMPDevice {
	if e.Port == 0 {
		e.Port = d.Port
	}
	if e.Port == 0 {
		e.Port = 161
	}

	if e.Version == "" {
		e.Version = d.Version
	}
	if e.Version == "" {
		e.Version = "2c"
	}

	if e.Community == "" {
		e.Community = d.Community
	}

	if e.TimeoutMs == 0 {
		e.TimeoutMs = d.TimeoutMs
	}
	if e.TimeoutMs == 0 {
		e.TimeoutMs = 3000
	}

	if e.Retries == 0 {
		e.Retries = d.Retries
	}
	if e.Retries == 0 {
		e.Retries = 2
	}

	return e
}

// validate accumulates all configuration problems so operators see every
// issue at once rather than one per run.
func (c *Config) validate() error {
	var errs []string

	if c.PollingInterval < 0 {
		errs = append(errs, "polling_interval must be positive")
	}

	for name, dev := range c.SNMP.Devices {
		if dev.IP == "" {
			errs = append(errs, fmt.Sprintf("device %q: ip is required", name))
		}
		switch dev.Version {
		case "1", "2c", "3":
		default:
			errs = append(errs, fmt.Sprintf("device %q: unsupported snmp version %q", name, dev.Version))
		}
		for i, tgt := range dev.Targets {
			if tgt.OID == "" {
				errs = append(errs, fmt.Sprintf("device %q: target %d: oid is required", name, i))
			}
			if tgt.Key == "" {
				errs = append(errs, fmt.Sprintf("device %q: target %d: key is required", name, i))
			}
			if _, err := tgt.DataType(); err != nil {
				errs = append(errs, fmt.Sprintf("device %q: target %d: %v", name, i, err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %d error(s):\n  %s", len(errs), strings.Join(errs, "\n  "))
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// no-op logger writer
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
