package payload_test

import (
	"testing"

	"github.com/halyard-io/telemetryd/payload"
)

// validReading is a test helper producing a distinct valid Reading per key.
func validReading(key string) *payload.Reading {
	return payload.NewReading(key, 1, payload.TypeInt)
}

// ─────────────────────────────────────────────────────────────────────────────
// DeviceReadingSet tests
// ─────────────────────────────────────────────────────────────────────────────

func TestDeviceReadingSet_InitiallyInactive(t *testing.T) {
	s := payload.NewDeviceReadingSet("localhost")
	if s.Active() {
		t.Error("empty set must be inactive")
	}
	if s.Len() != 0 {
		t.Errorf("len = %d, want 0", s.Len())
	}
}

func TestDeviceReadingSet_ActivatesOnFirstValidReading(t *testing.T) {
	s := payload.NewDeviceReadingSet("localhost")
	s.Add(validReading("cpu"))
	if !s.Active() {
		t.Error("set with a device and one valid reading must be active")
	}
}

func TestDeviceReadingSet_EmptyDeviceNeverActive(t *testing.T) {
	s := payload.NewDeviceReadingSet("")
	s.Add(validReading("cpu"))
	if s.Active() {
		t.Error("set with empty device identifier must stay inactive")
	}
}

func TestDeviceReadingSet_IdempotentDedup(t *testing.T) {
	s := payload.NewDeviceReadingSet("localhost")
	r := validReading("cpu")

	s.Add(r)
	s.Add(r)
	s.Add(validReading("cpu")) // same key+type ⇒ same checksum

	if s.Len() != 1 {
		t.Errorf("len = %d, want 1 after duplicate adds", s.Len())
	}
}

func TestDeviceReadingSet_DedupFirstSeenWins(t *testing.T) {
	s := payload.NewDeviceReadingSet("localhost")
	first := validReading("cpu")
	second := validReading("cpu")

	s.Add(first, second)

	got := s.Readings()
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0] != first {
		t.Error("first-seen reading must win the duplicate race")
	}
}

func TestDeviceReadingSet_IgnoresNilAndInvalid(t *testing.T) {
	s := payload.NewDeviceReadingSet("localhost")
	s.Add(nil, payload.NewReading("cpu", "abc", payload.TypeFloat), validReading("mem"))
	if s.Len() != 1 {
		t.Errorf("len = %d, want 1 (nil and invalid ignored)", s.Len())
	}
}

func TestDeviceReadingSet_PreservesInsertionOrder(t *testing.T) {
	s := payload.NewDeviceReadingSet("localhost")
	keys := []string{"cpu", "mem", "disk", "load"}
	for _, k := range keys {
		s.Add(validReading(k))
	}

	got := s.Readings()
	for i, r := range got {
		if r.Key != keys[i] {
			t.Errorf("readings[%d].Key = %q, want %q", i, r.Key, keys[i])
		}
	}
}

func TestDeviceReadingSet_MonotonicActivity(t *testing.T) {
	s := payload.NewDeviceReadingSet("localhost")
	r := validReading("cpu")
	s.Add(r)
	if !s.Active() {
		t.Fatal("expected active set")
	}

	// No-op adds must never deactivate.
	s.Add(nil)
	s.Add(r) // duplicate
	s.Add(payload.NewReading("x", "bad", payload.TypeInt)) // invalid
	if !s.Active() {
		t.Error("no-op adds flipped an active set back to inactive")
	}
}

func TestDeviceReadingSet_DistinctMetadataNotDeduped(t *testing.T) {
	// Same key+type but different metadata ⇒ different checksums ⇒ both kept.
	a := validReading("netif.bytes.in")
	a.Annotate(payload.NewMetaPair("interface", "eth0"))
	b := validReading("netif.bytes.in")
	b.Annotate(payload.NewMetaPair("interface", "eth1"))

	s := payload.NewDeviceReadingSet("sw01")
	s.Add(a, b)
	if s.Len() != 2 {
		t.Errorf("len = %d, want 2 (distinct metadata)", s.Len())
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GatewaySet tests
// ─────────────────────────────────────────────────────────────────────────────

func TestGatewaySet_OnlyActiveChildren(t *testing.T) {
	g := payload.NewGatewaySet("gw01")

	empty := payload.NewDeviceReadingSet("localhost") // inactive: no readings
	g.Add(empty, nil)
	if g.Active() {
		t.Error("gateway set must ignore inactive children")
	}

	full := payload.NewDeviceReadingSet("localhost")
	full.Add(validReading("cpu"))
	g.Add(full)
	if !g.Active() {
		t.Error("gateway set with one active child must be active")
	}
	if len(g.Sets()) != 1 {
		t.Errorf("sets = %d, want 1", len(g.Sets()))
	}
}

func TestGatewaySet_EmptyGatewayNeverActive(t *testing.T) {
	g := payload.NewGatewaySet("")
	full := payload.NewDeviceReadingSet("localhost")
	full.Add(validReading("cpu"))
	g.Add(full)
	if g.Active() {
		t.Error("gateway set with empty identifier must stay inactive")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Submission tests
// ─────────────────────────────────────────────────────────────────────────────

// activeGateway builds a fully populated GatewaySet for Submission tests.
func activeGateway(t *testing.T) *payload.GatewaySet {
	t.Helper()
	s := payload.NewDeviceReadingSet("localhost")
	s.Add(validReading("cpu"))
	g := payload.NewGatewaySet("gw01")
	g.Add(s)
	if !g.Active() {
		t.Fatal("fixture gateway should be active")
	}
	return g
}

func TestSubmission_BottomUpActivation(t *testing.T) {
	sub := payload.NewSubmission("id01", "telemetryd", "host01", 300)
	if sub.Active() {
		t.Error("submission without gateways must be inactive")
	}

	sub.Add(activeGateway(t))
	if !sub.Active() {
		t.Error("submission with identity fields and one active gateway must be active")
	}
}

func TestSubmission_MissingIdentityFields(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		program  string
		hostname string
		interval int
	}{
		{"no agent id", "", "telemetryd", "host01", 300},
		{"no program", "id01", "", "host01", 300},
		{"no hostname", "id01", "telemetryd", "", 300},
		{"zero interval", "id01", "telemetryd", "host01", 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sub := payload.NewSubmission(tc.id, tc.program, tc.hostname, tc.interval)
			sub.Add(activeGateway(t))
			if sub.Active() {
				t.Error("submission with missing identity field must stay inactive")
			}
		})
	}
}

func TestSubmission_IgnoresInactiveGateways(t *testing.T) {
	sub := payload.NewSubmission("id01", "telemetryd", "host01", 300)
	sub.Add(payload.NewGatewaySet("gw01"), nil) // inactive + nil
	if sub.Active() {
		t.Error("inactive gateway must not activate a submission")
	}
	if len(sub.Gateways()) != 0 {
		t.Errorf("gateways = %d, want 0", len(sub.Gateways()))
	}
}

func TestSubmission_MonotonicActivity(t *testing.T) {
	sub := payload.NewSubmission("id01", "telemetryd", "host01", 300)
	sub.Add(activeGateway(t))
	if !sub.Active() {
		t.Fatal("expected active submission")
	}

	sub.Add(nil, payload.NewGatewaySet("empty"))
	if !sub.Active() {
		t.Error("no-op adds flipped an active submission back to inactive")
	}
}

func TestSubmission_Timestamped(t *testing.T) {
	sub := payload.NewSubmission("id01", "telemetryd", "host01", 300)
	if sub.Timestamp < 1577836800000 {
		t.Errorf("timestamp = %d, want ms epoch at construction", sub.Timestamp)
	}
}
