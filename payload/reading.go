package payload

import (
	"strconv"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Data types
// ─────────────────────────────────────────────────────────────────────────────

// DataType classifies the value carried by a Reading. The integer values are
// the wire-format enum written into serialized documents and must never be
// renumbered.
type DataType int

const (
	TypeNone    DataType = 0   // no value semantics, stored as-is
	TypeString  DataType = 2   // free-form string
	TypeCount   DataType = 32  // 32-bit monotonic counter delta
	TypeCount64 DataType = 64  // 64-bit monotonic counter delta
	TypeInt     DataType = 99  // integer gauge
	TypeFloat   DataType = 101 // floating point gauge
)

// Known reports whether dt is a member of the enum.
func (dt DataType) Known() bool {
	switch dt {
	case TypeNone, TypeString, TypeCount, TypeCount64, TypeInt, TypeFloat:
		return true
	default:
		return false
	}
}

// Numeric reports whether dt requires a numeric value.
func (dt DataType) Numeric() bool {
	switch dt {
	case TypeInt, TypeFloat, TypeCount, TypeCount64:
		return true
	default:
		return false
	}
}

// String returns the lowercase name of the data type for logging.
func (dt DataType) String() string {
	switch dt {
	case TypeNone:
		return "none"
	case TypeString:
		return "string"
	case TypeCount:
		return "count"
	case TypeCount64:
		return "count64"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	default:
		return "unknown(" + strconv.Itoa(int(dt)) + ")"
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// MetaPair
// ─────────────────────────────────────────────────────────────────────────────

// MetaPair is a single validated key/value annotation attachable to a
// Reading. The value is always a trimmed string regardless of the input
// type. A MetaPair with Valid=false is inert: Reading.Annotate skips it.
type MetaPair struct {
	Key   string
	Value string
	Valid bool
}

// NewMetaPair normalises key and value into a MetaPair. All input faults
// (wrong type, empty key, reserved token) surface as Valid=false.
func NewMetaPair(key, value interface{}) MetaPair {
	k, v, ok := NormalizeKV(key, value, true, false)
	if !ok {
		return MetaPair{}
	}
	return MetaPair{Key: k, Value: v.(string), Valid: true}
}

// ─────────────────────────────────────────────────────────────────────────────
// Reading
// ─────────────────────────────────────────────────────────────────────────────

// Reading is a single typed, timestamped metric observation. Its checksum is
// a content address over key, data type, and every accepted metadata pair in
// insertion order; two Readings with equal checksums are duplicates as far
// as DeviceReadingSet deduplication is concerned.
type Reading struct {
	Key       string
	Value     interface{} // int64 | float64 | string | normalized scalar (TypeNone)
	DataType  DataType
	Timestamp int64 // epoch milliseconds, set at construction

	base     string // checksum seed: H(key + data_type)
	checksum string
	metaKeys []string
	metadata map[string]string
	valid    bool
	sealed   bool
}

// NewReading builds a Reading from a raw key/value observation.
//
// The key/value pair passes through NormalizeKV (metadata=false, reserved
// keys rejected). Validity additionally requires dt to be a known DataType
// and, for numeric types, a value that parses as a number. Value coercion:
// TypeFloat/TypeCount/TypeCount64 store float64, TypeInt stores a truncated
// int64, TypeString stores the stringified value verbatim, TypeNone keeps
// the normalized value untouched.
//
// An invalid Reading is still a usable value — it simply never enters an
// active container.
func NewReading(key, value interface{}, dt DataType) *Reading {
	k, v, ok := NormalizeKV(key, value, false, false)

	r := &Reading{
		Key:       k,
		Value:     v,
		DataType:  dt,
		Timestamp: time.Now().UnixMilli(),
		metadata:  make(map[string]string),
		valid:     ok && dt.Known(),
	}

	if r.valid && dt.Numeric() && !isNumeric(v) {
		r.valid = false
	}

	if r.valid {
		switch {
		case dt == TypeInt:
			r.Value = int64(asFloat(v))
		case dt.Numeric():
			r.Value = asFloat(v)
		case dt == TypeString:
			s, _ := scalarString(v)
			r.Value = s
		}
	}

	r.base = hashString(r.Key + strconv.Itoa(int(dt)))
	r.checksum = r.base
	return r
}

// Valid reports whether the Reading passed key, value, and type validation.
func (r *Reading) Valid() bool { return r.valid }

// Checksum returns the current content address. It changes deterministically
// each time Annotate accepts a pair and is stable once the Reading is sealed.
func (r *Reading) Checksum() string { return r.checksum }

// Metadata returns a copy of the accepted metadata pairs.
func (r *Reading) Metadata() map[string]string {
	out := make(map[string]string, len(r.metadata))
	for k, v := range r.metadata {
		out[k] = v
	}
	return out
}

// Annotate attaches metadata pairs to the Reading.
//
// A pair is skipped silently when it is invalid, when its key is a reserved
// top-level attribute name, or when its key is already attached. Accepted
// pairs refold the checksum. Once the Reading has been added to a
// DeviceReadingSet it is sealed and Annotate becomes a no-op — the set's
// dedup index was built on the checksum at insertion time and a later
// checksum change would orphan it.
func (r *Reading) Annotate(pairs ...MetaPair) {
	if r.sealed {
		return
	}
	for _, p := range pairs {
		if !p.Valid || ReservedAttr(p.Key) {
			continue
		}
		if _, dup := r.metadata[p.Key]; dup {
			continue
		}
		r.metadata[p.Key] = p.Value
		r.metaKeys = append(r.metaKeys, p.Key)
	}
	r.checksum = foldChecksum(r.base, r.metaKeys, r.metadata)
}

// seal closes the annotation window. Called by DeviceReadingSet.Add.
func (r *Reading) seal() { r.sealed = true }

// foldChecksum re-derives a Reading checksum from scratch: the base digest
// folded over every accepted (key, value) pair in insertion order. Keeping
// this a pure function of (base, pairs) makes the checksum reproducible from
// the serialized form and testable in isolation.
func foldChecksum(base string, keys []string, kv map[string]string) string {
	sum := base
	for _, k := range keys {
		sum = hashString(sum + k + kv[k])
	}
	return sum
}
