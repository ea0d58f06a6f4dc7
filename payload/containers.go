package payload

import "time"

// The three containers below share one contract: Add accepts only its typed
// child, silently ignores nil, invalid, or duplicate children, and preserves
// the insertion order of what it accepts. Active() is a pure predicate over
// current state — nothing stores a hand-toggled flag, so once a container
// has enough state to be active it can never silently fall back to inactive
// (state only grows).

// ─────────────────────────────────────────────────────────────────────────────
// DeviceReadingSet
// ─────────────────────────────────────────────────────────────────────────────

// DeviceReadingSet is the ordered, checksum-deduplicated collection of
// Readings taken from one polled source during one cycle.
type DeviceReadingSet struct {
	Device string

	readings []*Reading
	seen     map[string]struct{}
}

// NewDeviceReadingSet creates an empty set for the named device.
func NewDeviceReadingSet(device string) *DeviceReadingSet {
	return &DeviceReadingSet{
		Device: device,
		seen:   make(map[string]struct{}),
	}
}

// Add stores readings in order. nil and invalid readings are ignored, as is
// any reading whose checksum is already present — first seen wins, no error
// is raised. Accepted readings are sealed: their annotation window closes so
// the dedup index stays consistent with their checksums.
func (s *DeviceReadingSet) Add(readings ...*Reading) {
	for _, r := range readings {
		if r == nil || !r.valid {
			continue
		}
		if _, dup := s.seen[r.checksum]; dup {
			continue
		}
		r.seal()
		s.readings = append(s.readings, r)
		s.seen[r.checksum] = struct{}{}
	}
}

// Readings returns the accepted readings in insertion order. The returned
// slice is a copy; the Readings themselves are shared and must be treated as
// read-only.
func (s *DeviceReadingSet) Readings() []*Reading {
	out := make([]*Reading, len(s.readings))
	copy(out, s.readings)
	return out
}

// Len returns the number of stored readings.
func (s *DeviceReadingSet) Len() int { return len(s.readings) }

// Active reports whether the set is worth forwarding: a non-empty device
// identifier and at least one accepted reading.
func (s *DeviceReadingSet) Active() bool {
	return s.Device != "" && len(s.readings) > 0
}

// ─────────────────────────────────────────────────────────────────────────────
// GatewaySet
// ─────────────────────────────────────────────────────────────────────────────

// GatewaySet is the ordered collection of DeviceReadingSets gathered through
// one collection point (e.g. the SNMP relay or the local host itself).
type GatewaySet struct {
	Gateway string

	sets []*DeviceReadingSet
}

// NewGatewaySet creates an empty set for the named gateway.
func NewGatewaySet(gateway string) *GatewaySet {
	return &GatewaySet{Gateway: gateway}
}

// Add stores device reading sets in order. nil and inactive children are
// ignored without error.
func (g *GatewaySet) Add(sets ...*DeviceReadingSet) {
	for _, s := range sets {
		if s == nil || !s.Active() {
			continue
		}
		g.sets = append(g.sets, s)
	}
}

// Sets returns the accepted device reading sets in insertion order.
func (g *GatewaySet) Sets() []*DeviceReadingSet {
	out := make([]*DeviceReadingSet, len(g.sets))
	copy(out, g.sets)
	return out
}

// Active reports whether the gateway set holds at least one active child and
// a non-empty gateway identifier.
func (g *GatewaySet) Active() bool {
	return g.Gateway != "" && len(g.sets) > 0
}

// ─────────────────────────────────────────────────────────────────────────────
// Submission
// ─────────────────────────────────────────────────────────────────────────────

// Submission is the top-level per-cycle payload: agent identity, polling
// interval, and every GatewaySet assembled during the cycle. It is the only
// type the transport layer consumes, and only when Active() is true — the
// engine drops an inactive Submission with a logged warning.
type Submission struct {
	AgentID         string
	AgentProgram    string
	AgentHostname   string
	Timestamp       int64 // epoch milliseconds, set at construction
	PollingInterval int   // seconds

	gateways []*GatewaySet
}

// NewSubmission creates an empty Submission stamped with the current time.
func NewSubmission(agentID, agentProgram, agentHostname string, pollingInterval int) *Submission {
	return &Submission{
		AgentID:         agentID,
		AgentProgram:    agentProgram,
		AgentHostname:   agentHostname,
		Timestamp:       time.Now().UnixMilli(),
		PollingInterval: pollingInterval,
	}
}

// Add stores gateway sets in order. nil and inactive children are ignored
// without error.
func (sub *Submission) Add(gateways ...*GatewaySet) {
	for _, g := range gateways {
		if g == nil || !g.Active() {
			continue
		}
		sub.gateways = append(sub.gateways, g)
	}
}

// Gateways returns the accepted gateway sets in insertion order.
func (sub *Submission) Gateways() []*GatewaySet {
	out := make([]*GatewaySet, len(sub.gateways))
	copy(out, sub.gateways)
	return out
}

// Active reports transmission readiness: every identity field populated, a
// positive polling interval, and at least one active gateway set.
func (sub *Submission) Active() bool {
	return sub.AgentID != "" &&
		sub.AgentProgram != "" &&
		sub.AgentHostname != "" &&
		sub.PollingInterval > 0 &&
		len(sub.gateways) > 0
}
