// Package producer defines the contract between the engine and the sources
// that generate readings each polling cycle.
package producer

import (
	"context"

	"github.com/halyard-io/telemetryd/payload"
)

// Producer assembles fully-formed gateway sets for one polling cycle. Each
// returned GatewaySet (and everything beneath it) must have been built by a
// single goroutine; the engine adds them to the cycle's Submission on its
// own goroutine.
//
// A Producer that found nothing returns an empty slice and a nil error;
// the error channel is reserved for infrastructure faults (session setup,
// OS query failures), never for malformed readings — those are absorbed by
// the payload layer's validity flags.
type Producer interface {
	// Name identifies the producer in logs.
	Name() string

	// Collect gathers one cycle's readings. Implementations must honour ctx
	// cancellation between device polls.
	Collect(ctx context.Context) ([]*payload.GatewaySet, error)
}
