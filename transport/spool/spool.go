// Package spool implements the submission spool: formatted Submission
// documents are appended, one JSON record per line, to an io.Writer —
// typically a RotatingFile or os.Stdout.
//
// Pipeline position:
//
//	format/json → transport/spool
//
// The spool file is the hand-off point to whatever ships data off the host;
// telemetryd itself never opens a network connection.
package spool

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// ─────────────────────────────────────────────────────────────────────────────
// Transport interface
// ─────────────────────────────────────────────────────────────────────────────

// Transport is the engine's contract for the output stage. Send delivers one
// pre-formatted submission document; Close flushes and releases resources.
type Transport interface {
	Send(data []byte) error
	Close() error
}

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config controls WriterTransport behaviour.
type Config struct {
	// Writer is the destination. nil defaults to os.Stdout.
	Writer io.Writer

	// Newline appended after each document. Default "\n".
	Newline string
}

// ─────────────────────────────────────────────────────────────────────────────
// WriterTransport
// ─────────────────────────────────────────────────────────────────────────────

// WriterTransport implements Transport by writing each document to an
// io.Writer followed by a configurable newline. It is safe for concurrent
// use.
type WriterTransport struct {
	mu     sync.Mutex
	w      io.Writer
	nl     []byte
	logger *slog.Logger
}

// New constructs a WriterTransport.
//
//   - cfg.Writer defaults to os.Stdout when nil.
//   - cfg.Newline defaults to "\n" when empty.
//   - logger defaults to a no-op writer when nil.
func New(cfg Config, logger *slog.Logger) *WriterTransport {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	w := cfg.Writer
	if w == nil {
		w = os.Stdout
	}
	nl := cfg.Newline
	if nl == "" {
		nl = "\n"
	}
	return &WriterTransport{
		w:      w,
		nl:     []byte(nl),
		logger: logger,
	}
}

// Send writes data followed by the configured newline. It holds a mutex so
// concurrent goroutines produce un-interleaved output (important when w ==
// os.Stdout).
func (t *WriterTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.w.Write(data); err != nil {
		t.logger.Error("transport/spool: write failed", "error", err.Error(), "bytes", len(data))
		return fmt.Errorf("transport/spool: write: %w", err)
	}
	if _, err := t.w.Write(t.nl); err != nil {
		t.logger.Error("transport/spool: newline write failed", "error", err.Error())
		return fmt.Errorf("transport/spool: write newline: %w", err)
	}

	t.logger.Debug("transport/spool: spooled submission", "bytes", len(data))
	return nil
}

// Close closes the underlying writer when it is an io.Closer; otherwise it
// is a no-op. The spool owns a RotatingFile it was configured with.
func (t *WriterTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.w.(io.Closer); ok && t.w != os.Stdout {
		return c.Close()
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// no-op logger writer
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
