// Package payload defines the entity hierarchy assembled by telemetryd once
// per polling cycle: a single Reading, the per-device DeviceReadingSet, the
// per-gateway GatewaySet, and the top-level Submission handed to the spool.
//
// The package is deliberately fail-soft: no operation returns an error.
// Malformed keys, values, metadata, or children are absorbed silently and
// surface only as a false Valid()/Active() predicate on the affected object.
// Callers must check those predicates before using an object; the engine
// checks Submission.Active() before anything reaches the transport.
//
// Nothing in this package performs I/O and no type is safe for concurrent
// mutation — one Submission and its descendants belong to exactly one
// polling-cycle goroutine until handed off read-only.
package payload

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// ReservedToken is the project namespace. It may not appear anywhere in an
// ordinary reading or metadata key; keys carrying it are reserved for
// internal attribute names generated by telemetryd itself.
const ReservedToken = "halyard"

// reservedAttrs are the top-level Submission document keys. A metadata pair
// whose key collides with one of these is silently dropped by
// Reading.Annotate so that flattened exports cannot shadow identity fields.
var reservedAttrs = map[string]struct{}{
	"agent_id":         {},
	"agent_program":    {},
	"agent_hostname":   {},
	"timestamp":        {},
	"polling_interval": {},
	"gateway":          {},
	"device":           {},
	"key":              {},
	"value":            {},
	"data_type":        {},
	"checksum":         {},
	"metadata":         {},
}

// ReservedAttr reports whether key is a reserved top-level attribute name.
func ReservedAttr(key string) bool {
	_, ok := reservedAttrs[key]
	return ok
}

// ─────────────────────────────────────────────────────────────────────────────
// Key/value normalisation
// ─────────────────────────────────────────────────────────────────────────────

// NormalizeKV canonicalises a key/value pair.
//
// Both key and value must be a string, integer, or float; booleans, nil, and
// every other type invalidate the pair outright. The key is stringified,
// trimmed, and lowercased; an empty key or — unless allowReserved is set — a
// key containing ReservedToken invalidates the pair. When metadata is true
// the value is additionally coerced to a trimmed string.
//
// On failure the returned key is "" and the value nil; no error is ever
// raised. Callers must check the valid flag before using the results.
func NormalizeKV(key, value interface{}, metadata, allowReserved bool) (string, interface{}, bool) {
	ks, ok := scalarString(key)
	if !ok {
		return "", nil, false
	}
	if !isScalar(value) {
		return "", nil, false
	}

	ks = strings.ToLower(strings.TrimSpace(ks))
	if ks == "" {
		return "", nil, false
	}
	if !allowReserved && strings.Contains(ks, ReservedToken) {
		return "", nil, false
	}

	if metadata {
		vs, _ := scalarString(value)
		return ks, strings.TrimSpace(vs), true
	}
	return ks, value, true
}

// AgentKey converts a raw key into the canonical namespaced form used by
// producers: the reserved token is stripped, dashes become underscores,
// leading underscores and whitespace are removed, the remainder is
// lowercased, and the caller-supplied prefix is prepended. A raw key that
// was entirely the reserved token yields just the prefix.
func AgentKey(prefix, raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, ReservedToken, "")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.TrimLeft(s, "_ \t")
	if prefix == "" {
		return s
	}
	if s == "" {
		return prefix
	}
	return prefix + "_" + s
}

// ─────────────────────────────────────────────────────────────────────────────
// Scalar coercion helpers
// ─────────────────────────────────────────────────────────────────────────────

// isScalar reports whether v is one of the accepted input types: a string,
// any integer width, or a float. bool is rejected explicitly — Go keeps it a
// distinct type, but the contract predates that guarantee and the exclusion
// is part of the wire-format rules.
func isScalar(v interface{}) bool {
	switch v.(type) {
	case string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

// scalarString stringifies an accepted scalar. The second return is false
// for anything isScalar rejects.
func scalarString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", t), true
	default:
		return "", false
	}
}

// isNumeric reports whether v carries a numeric payload: any int/float, or a
// string that parses as a decimal number (optional sign and decimal point).
func isNumeric(v interface{}) bool {
	switch t := v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	case string:
		_, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return err == nil
	default:
		return false
	}
}

// asFloat converts a numeric scalar to float64. Callers must have verified
// isNumeric first; non-numeric input yields 0.
func asFloat(v interface{}) float64 {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int8:
		return float64(t)
	case int16:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint8:
		return float64(t)
	case uint16:
		return float64(t)
	case uint32:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f
	default:
		return 0
	}
}

// hashString returns the lowercase hex SHA-256 digest of s. Collision
// resistance is what matters here — the digest is an identity for
// deduplication, not a security boundary.
func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
