// Package identity supplies the agent identifier written into every
// Submission. The identifier must be stable for the lifetime of one agent
// process; durable identity across restarts is the responsibility of the
// host deployment, which can satisfy Provider with its own implementation.
package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Provider yields the agent identifier for a given program name and
// hostname. Implementations must return the same id for the same inputs for
// as long as the process lives.
type Provider interface {
	AgentID(program, hostname string) (string, error)
}

// Ephemeral is the in-process Provider. The first call for a
// (program, hostname) pair derives a SHA-256 id from the pair, a random
// nonce, and the current time; subsequent calls return the cached id.
// Safe for concurrent use.
type Ephemeral struct {
	mu  sync.Mutex
	ids map[string]string
}

// NewEphemeral creates a ready-to-use Ephemeral provider.
func NewEphemeral() *Ephemeral {
	return &Ephemeral{ids: make(map[string]string)}
}

// AgentID implements Provider.
func (e *Ephemeral) AgentID(program, hostname string) (string, error) {
	if program == "" || hostname == "" {
		return "", fmt.Errorf("identity: program and hostname are required")
	}

	key := program + "\x00" + hostname

	e.mu.Lock()
	defer e.mu.Unlock()

	if id, ok := e.ids[key]; ok {
		return id, nil
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("identity: nonce: %w", err)
	}

	seed := key + hex.EncodeToString(nonce) + strconv.FormatInt(time.Now().UnixNano(), 10)
	sum := sha256.Sum256([]byte(seed))
	id := hex.EncodeToString(sum[:])

	e.ids[key] = id
	return id, nil
}
