// Package snmpquery implements the SNMP producer: it polls configured
// devices with gosnmp each cycle and converts the returned varbinds into
// payload readings, one DeviceReadingSet per device under a single
// GatewaySet.
package snmpquery

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/halyard-io/telemetryd/pkg/agent/config"
)

// ─────────────────────────────────────────────────────────────────────────────
// Session factory — config.SNMPDevice → *gosnmp.GoSNMP
// ─────────────────────────────────────────────────────────────────────────────

// NewSession creates and connects a gosnmp session for the given device
// configuration. The caller is responsible for calling Close when the
// session is no longer needed.
func NewSession(cfg config.SNMPDevice) (*gosnmp.GoSNMP, error) {
	g := &gosnmp.GoSNMP{
		Target:  cfg.IP,
		Port:    uint16(cfg.Port),
		Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		Retries: cfg.Retries,
		MaxOids: 60,
	}

	switch cfg.Version {
	case "1":
		g.Version = gosnmp.Version1
		g.Community = cfg.Community
	case "2c":
		g.Version = gosnmp.Version2c
		g.Community = cfg.Community
	case "3":
		g.Version = gosnmp.Version3
		g.SecurityModel = gosnmp.UserSecurityModel
		g.MsgFlags = snmpv3MsgFlags(cfg.V3)
		g.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 cfg.V3.Username,
			AuthenticationProtocol:   mapAuthProto(cfg.V3.AuthProtocol),
			AuthenticationPassphrase: cfg.V3.AuthPassphrase,
			PrivacyProtocol:          mapPrivProto(cfg.V3.PrivProtocol),
			PrivacyPassphrase:        cfg.V3.PrivPassphrase,
		}
	default:
		return nil, fmt.Errorf("unsupported SNMP version %q", cfg.Version)
	}

	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connect %s:%d: %w", cfg.IP, cfg.Port, err)
	}
	return g, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SNMPv3 helpers
// ─────────────────────────────────────────────────────────────────────────────

func snmpv3MsgFlags(cred config.V3Credentials) gosnmp.SnmpV3MsgFlags {
	hasAuth := cred.AuthProtocol != "" &&
		!strings.EqualFold(cred.AuthProtocol, "noauth")
	hasPriv := cred.PrivProtocol != "" &&
		!strings.EqualFold(cred.PrivProtocol, "nopriv")

	switch {
	case hasAuth && hasPriv:
		return gosnmp.AuthPriv
	case hasAuth:
		return gosnmp.AuthNoPriv
	default:
		return gosnmp.NoAuthNoPriv
	}
}

func mapAuthProto(s string) gosnmp.SnmpV3AuthProtocol {
	switch strings.ToLower(s) {
	case "md5":
		return gosnmp.MD5
	case "sha":
		return gosnmp.SHA
	case "sha224":
		return gosnmp.SHA224
	case "sha256":
		return gosnmp.SHA256
	case "sha384":
		return gosnmp.SHA384
	case "sha512":
		return gosnmp.SHA512
	default:
		return gosnmp.NoAuth
	}
}

func mapPrivProto(s string) gosnmp.SnmpV3PrivProtocol {
	switch strings.ToLower(s) {
	case "des":
		return gosnmp.DES
	case "aes":
		return gosnmp.AES
	case "aes192":
		return gosnmp.AES192
	case "aes256":
		return gosnmp.AES256
	case "aes192c":
		return gosnmp.AES192C
	case "aes256c":
		return gosnmp.AES256C
	default:
		return gosnmp.NoPriv
	}
}
