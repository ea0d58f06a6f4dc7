package snmpquery

import (
	"strings"

	"github.com/gosnmp/gosnmp"
)

// ─────────────────────────────────────────────────────────────────────────────
// PDU → scalar conversion
// ─────────────────────────────────────────────────────────────────────────────

// isErrorType reports whether t is a response sentinel rather than a value.
func isErrorType(t gosnmp.Asn1BER) bool {
	switch t {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return true
	default:
		return false
	}
}

// pduScalar converts a varbind value into a scalar the payload layer
// accepts: int64, uint64, float64, or string. The second return is false
// for error sentinels and non-scalar ASN.1 types, which are skipped without
// failing the device poll.
func pduScalar(pdu gosnmp.SnmpPDU) (interface{}, bool) {
	if isErrorType(pdu.Type) {
		return nil, false
	}

	switch pdu.Type {
	case gosnmp.OctetString:
		if b, ok := pdu.Value.([]byte); ok {
			return string(b), true
		}
		if s, ok := pdu.Value.(string); ok {
			return s, true
		}
		return nil, false

	case gosnmp.ObjectIdentifier, gosnmp.IPAddress:
		if s, ok := pdu.Value.(string); ok {
			return s, true
		}
		return nil, false

	case gosnmp.Integer:
		return gosnmp.ToBigInt(pdu.Value).Int64(), true

	case gosnmp.Counter32, gosnmp.Counter64, gosnmp.Gauge32,
		gosnmp.TimeTicks, gosnmp.Uinteger32:
		return gosnmp.ToBigInt(pdu.Value).Uint64(), true

	case gosnmp.OpaqueFloat:
		if f, ok := pdu.Value.(float32); ok {
			return float64(f), true
		}
		return nil, false

	case gosnmp.OpaqueDouble:
		if f, ok := pdu.Value.(float64); ok {
			return f, true
		}
		return nil, false

	default:
		// Boolean and exotic types have no reading representation.
		return nil, false
	}
}

// pduUint64 extracts an unsigned counter value. Used for count/count64
// targets where the delta computation needs the raw width.
func pduUint64(pdu gosnmp.SnmpPDU) (uint64, bool) {
	switch pdu.Type {
	case gosnmp.Counter32, gosnmp.Counter64, gosnmp.Gauge32,
		gosnmp.TimeTicks, gosnmp.Uinteger32, gosnmp.Integer:
		return gosnmp.ToBigInt(pdu.Value).Uint64(), true
	default:
		return 0, false
	}
}

// scalarFloat converts a numeric scalar produced by pduScalar to float64
// so the target multiplier can be applied.
func scalarFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

// normalizeOID strips a leading dot so OIDs are in canonical form for
// response matching.
func normalizeOID(oid string) string {
	return strings.TrimPrefix(oid, ".")
}
