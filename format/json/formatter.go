// Package json serialises an assembled payload.Submission into the single
// JSON document consumed by the transport layer.
//
// Pipeline position:
//
//	pkg/agent/app (assembly) → format/json → transport/spool
//
// The document nests the full gateway → device → reading tree; each reading
// carries its key, typed value, integer data-type enum, ms-epoch timestamp,
// checksum, and string metadata map.
package json

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/halyard-io/telemetryd/payload"
)

// ─────────────────────────────────────────────────────────────────────────────
// Formatter interface
// ─────────────────────────────────────────────────────────────────────────────

// Formatter serialises a Submission into a byte slice. Alternative encodings
// can be added by implementing this interface without touching the engine.
type Formatter interface {
	Format(sub *payload.Submission) ([]byte, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config controls JSONFormatter behaviour.
type Config struct {
	// PrettyPrint emits indented, human-readable JSON when true.
	PrettyPrint bool

	// Indent is the indent string used when PrettyPrint=true.
	// Defaults to two spaces when empty and PrettyPrint=true.
	Indent string
}

// ─────────────────────────────────────────────────────────────────────────────
// Wire document
// ─────────────────────────────────────────────────────────────────────────────

// submissionDoc is the serialized shape of a Submission.
type submissionDoc struct {
	AgentID         string       `json:"agent_id"`
	AgentProgram    string       `json:"agent_program"`
	AgentHostname   string       `json:"agent_hostname"`
	Timestamp       int64        `json:"timestamp"`
	PollingInterval int          `json:"polling_interval"`
	Gateways        []gatewayDoc `json:"gateways"`
}

type gatewayDoc struct {
	Gateway string      `json:"gateway"`
	Devices []deviceDoc `json:"devices"`
}

type deviceDoc struct {
	Device   string       `json:"device"`
	Readings []readingDoc `json:"readings"`
}

type readingDoc struct {
	Key       string            `json:"key"`
	Value     interface{}       `json:"value"`
	DataType  int               `json:"data_type"`
	Timestamp int64             `json:"timestamp"`
	Checksum  string            `json:"checksum"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// buildDoc flattens the container tree into the wire document.
func buildDoc(sub *payload.Submission) submissionDoc {
	gateways := sub.Gateways()
	doc := submissionDoc{
		AgentID:         sub.AgentID,
		AgentProgram:    sub.AgentProgram,
		AgentHostname:   sub.AgentHostname,
		Timestamp:       sub.Timestamp,
		PollingInterval: sub.PollingInterval,
		Gateways:        make([]gatewayDoc, 0, len(gateways)),
	}

	for _, g := range gateways {
		sets := g.Sets()
		gd := gatewayDoc{
			Gateway: g.Gateway,
			Devices: make([]deviceDoc, 0, len(sets)),
		}
		for _, s := range sets {
			readings := s.Readings()
			dd := deviceDoc{
				Device:   s.Device,
				Readings: make([]readingDoc, 0, len(readings)),
			}
			for _, r := range readings {
				meta := r.Metadata()
				if len(meta) == 0 {
					meta = nil
				}
				dd.Readings = append(dd.Readings, readingDoc{
					Key:       r.Key,
					Value:     r.Value,
					DataType:  int(r.DataType),
					Timestamp: r.Timestamp,
					Checksum:  r.Checksum(),
					Metadata:  meta,
				})
			}
			gd.Devices = append(gd.Devices, dd)
		}
		doc.Gateways = append(doc.Gateways, gd)
	}
	return doc
}

// ─────────────────────────────────────────────────────────────────────────────
// JSONFormatter
// ─────────────────────────────────────────────────────────────────────────────

// JSONFormatter implements Formatter using encoding/json. It is safe for
// concurrent use; all fields are immutable after construction.
type JSONFormatter struct {
	cfg    Config
	logger *slog.Logger
}

// New constructs a JSONFormatter. If logger is nil, a no-op logger is
// substituted.
func New(cfg Config, logger *slog.Logger) *JSONFormatter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	if cfg.PrettyPrint && cfg.Indent == "" {
		cfg.Indent = "  "
	}
	return &JSONFormatter{cfg: cfg, logger: logger}
}

// Format serialises sub to JSON. The submission's Active() state is the
// engine's concern — Format itself serialises whatever tree it is given so
// that inactive payloads can still be inspected in tests and debug dumps.
func (f *JSONFormatter) Format(sub *payload.Submission) ([]byte, error) {
	if sub == nil {
		return nil, fmt.Errorf("format/json: submission must not be nil")
	}

	doc := buildDoc(sub)

	var (
		data []byte
		err  error
	)
	if f.cfg.PrettyPrint {
		data, err = json.MarshalIndent(doc, "", f.cfg.Indent)
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		f.logger.Error("format/json: marshal failed",
			"agent_id", sub.AgentID,
			"error", err.Error(),
		)
		return nil, fmt.Errorf("format/json: marshal: %w", err)
	}

	f.logger.Debug("format/json: formatted submission",
		"agent_id", sub.AgentID,
		"gateways", len(doc.Gateways),
		"bytes", len(data),
	)
	return data, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// no-op logger writer
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
