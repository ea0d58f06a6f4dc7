package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/halyard-io/telemetryd/payload"
	"github.com/halyard-io/telemetryd/pkg/agent/config"
)

// writeConfig writes content to a temp file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "telemetryd.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
agent_program: edge-agent
polling_interval: 60
spool:
  path: /tmp/out.json
  max_bytes: 1024
  max_backups: 3
system:
  enabled: true
  mountpoints: ["/", "/var"]
snmp:
  gateway: rack1-gw
  defaults:
    version: 2c
    community: public
    timeout_ms: 2000
  devices:
    sw01:
      ip: 192.0.2.1
      targets:
        - oid: 1.3.6.1.2.1.2.2.1.10.1
          key: netif-bytes-in
          data_type: count
          multiplier: 8
          metadata:
            interface: eth0
`)

	cfg, err := config.Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.AgentProgram != "edge-agent" {
		t.Errorf("agent_program = %q, want edge-agent", cfg.AgentProgram)
	}
	if cfg.PollingInterval != 60 {
		t.Errorf("polling_interval = %d, want 60", cfg.PollingInterval)
	}
	if cfg.SNMP.Gateway != "rack1-gw" {
		t.Errorf("gateway = %q, want rack1-gw", cfg.SNMP.Gateway)
	}

	dev, ok := cfg.SNMP.Devices["sw01"]
	if !ok {
		t.Fatal("device sw01 missing")
	}
	// Defaults merged in.
	if dev.Version != "2c" || dev.Community != "public" {
		t.Errorf("device defaults not merged: version=%q community=%q", dev.Version, dev.Community)
	}
	if dev.Port != 161 {
		t.Errorf("port = %d, want fallback 161", dev.Port)
	}
	if dev.TimeoutMs != 2000 {
		t.Errorf("timeout_ms = %d, want 2000 from defaults", dev.TimeoutMs)
	}

	if len(dev.Targets) != 1 {
		t.Fatalf("targets = %d, want 1", len(dev.Targets))
	}
	tgt := dev.Targets[0]
	dt, err := tgt.DataType()
	if err != nil {
		t.Fatalf("DataType: %v", err)
	}
	if dt != payload.TypeCount {
		t.Errorf("data type = %v, want count", dt)
	}
	if tgt.Multiplier != 8 {
		t.Errorf("multiplier = %v, want 8", tgt.Multiplier)
	}
	if tgt.Metadata["interface"] != "eth0" {
		t.Errorf("metadata = %v, want interface:eth0", tgt.Metadata)
	}
}

func TestLoad_MinimalConfigGetsDefaults(t *testing.T) {
	path := writeConfig(t, "system:\n  enabled: true\n")

	cfg, err := config.Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AgentProgram != "telemetryd" {
		t.Errorf("agent_program = %q, want default telemetryd", cfg.AgentProgram)
	}
	if cfg.PollingInterval != 300 {
		t.Errorf("polling_interval = %d, want default 300", cfg.PollingInterval)
	}
	if cfg.Spool.Path == "" {
		t.Error("spool path default missing")
	}
	if len(cfg.System.Mountpoints) == 0 {
		t.Error("mountpoints default missing")
	}
}

func TestLoad_ValidationAccumulatesErrors(t *testing.T) {
	path := writeConfig(t, `
snmp:
  devices:
    broken:
      version: 9
      targets:
        - data_type: bogus
`)

	_, err := config.Load(path, nil)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"ip is required", "unsupported snmp version", "oid is required", "key is required", "unknown data_type"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestTarget_DataTypeNames(t *testing.T) {
	tests := []struct {
		name string
		want payload.DataType
	}{
		{"", payload.TypeFloat},
		{"float", payload.TypeFloat},
		{"int", payload.TypeInt},
		{"count", payload.TypeCount},
		{"count64", payload.TypeCount64},
		{"string", payload.TypeString},
		{"none", payload.TypeNone},
	}
	for _, tc := range tests {
		dt, err := config.Target{DataTypeName: tc.name}.DataType()
		if err != nil {
			t.Errorf("DataType(%q): %v", tc.name, err)
			continue
		}
		if dt != tc.want {
			t.Errorf("DataType(%q) = %v, want %v", tc.name, dt, tc.want)
		}
	}
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv("TELEMETRYD_CONFIG", "/tmp/custom.yaml")
	if got := config.PathFromEnv(); got != "/tmp/custom.yaml" {
		t.Errorf("PathFromEnv = %q, want env override", got)
	}

	t.Setenv("TELEMETRYD_CONFIG", "")
	if got := config.PathFromEnv(); got != "/etc/telemetryd/telemetryd.yaml" {
		t.Errorf("PathFromEnv = %q, want default", got)
	}
}
