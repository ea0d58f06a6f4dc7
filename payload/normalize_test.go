package payload_test

import (
	"testing"

	"github.com/halyard-io/telemetryd/payload"
)

// ─────────────────────────────────────────────────────────────────────────────
// NormalizeKV tests
// ─────────────────────────────────────────────────────────────────────────────

func TestNormalizeKV_AcceptedScalars(t *testing.T) {
	tests := []struct {
		name    string
		key     interface{}
		value   interface{}
		wantKey string
	}{
		{"string key", "CPU.Load ", 1.5, "cpu.load"},
		{"int key", 42, "x", "42"},
		{"float key", 3.5, "x", "3.5"},
		{"whitespace trimmed", "  disk.used  ", 10, "disk.used"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			k, _, ok := payload.NormalizeKV(tc.key, tc.value, false, false)
			if !ok {
				t.Fatalf("NormalizeKV(%v, %v) = invalid, want valid", tc.key, tc.value)
			}
			if k != tc.wantKey {
				t.Errorf("key = %q, want %q", k, tc.wantKey)
			}
		})
	}
}

func TestNormalizeKV_RejectedInputs(t *testing.T) {
	tests := []struct {
		name  string
		key   interface{}
		value interface{}
	}{
		{"bool key", true, 1},
		{"bool value", "k", false},
		{"nil key", nil, 1},
		{"nil value", "k", nil},
		{"slice value", "k", []int{1}},
		{"empty key", "   ", 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			k, v, ok := payload.NormalizeKV(tc.key, tc.value, false, false)
			if ok {
				t.Fatalf("NormalizeKV(%v, %v) = valid, want invalid", tc.key, tc.value)
			}
			if k != "" || v != nil {
				t.Errorf("invalid pair should zero its outputs, got (%q, %v)", k, v)
			}
		})
	}
}

func TestNormalizeKV_ReservedToken(t *testing.T) {
	// Token anywhere in the key invalidates it, not just as a prefix.
	for _, key := range []string{"halyard_foo", "foo_halyard_bar", "HALYARD.load"} {
		if _, _, ok := payload.NormalizeKV(key, 1, false, false); ok {
			t.Errorf("NormalizeKV(%q) = valid, want reserved-token rejection", key)
		}
	}

	// allowReserved overrides the rejection.
	k, _, ok := payload.NormalizeKV("halyard_foo", 1, false, true)
	if !ok {
		t.Fatal("allowReserved should accept a reserved key")
	}
	if k != "halyard_foo" {
		t.Errorf("key = %q, want %q", k, "halyard_foo")
	}
}

func TestNormalizeKV_MetadataStringifiesValue(t *testing.T) {
	_, v, ok := payload.NormalizeKV("iface", 42, true, false)
	if !ok {
		t.Fatal("expected valid pair")
	}
	if v != "42" {
		t.Errorf("metadata value = %v (%T), want %q", v, v, "42")
	}

	_, v, _ = payload.NormalizeKV("iface", "  eth0  ", true, false)
	if v != "eth0" {
		t.Errorf("metadata value = %v, want trimmed %q", v, "eth0")
	}
}

func TestNormalizeKV_NonMetadataKeepsValueType(t *testing.T) {
	_, v, ok := payload.NormalizeKV("k", 42, false, false)
	if !ok {
		t.Fatal("expected valid pair")
	}
	if _, isInt := v.(int); !isInt {
		t.Errorf("non-metadata value should keep its type, got %T", v)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// AgentKey tests
// ─────────────────────────────────────────────────────────────────────────────

func TestAgentKey(t *testing.T) {
	tests := []struct {
		prefix string
		raw    string
		want   string
	}{
		{"system", "halyard-agent-os", "system_agent_os"},
		{"system", "CPU-Load", "system_cpu_load"},
		{"system", "  _leading", "system_leading"},
		{"snmp", "halyard", "snmp"}, // entirely the reserved token
		{"", "Disk-Used", "disk_used"},
	}

	for _, tc := range tests {
		got := payload.AgentKey(tc.prefix, tc.raw)
		if got != tc.want {
			t.Errorf("AgentKey(%q, %q) = %q, want %q", tc.prefix, tc.raw, got, tc.want)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Reserved attribute names
// ─────────────────────────────────────────────────────────────────────────────

func TestReservedAttr(t *testing.T) {
	for _, key := range []string{"agent_id", "agent_program", "agent_hostname", "polling_interval", "gateway", "device", "checksum"} {
		if !payload.ReservedAttr(key) {
			t.Errorf("ReservedAttr(%q) = false, want true", key)
		}
	}
	if payload.ReservedAttr("interface") {
		t.Error("ReservedAttr(interface) = true, want false")
	}
}
