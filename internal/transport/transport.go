// Package transport streams published spectra to other processes.
package transport

import (
	"errors"

	"visualizer/internal/spectrum"
)

// ErrSkipped is returned by Send when the snapshot was deliberately not
// delivered, for example because nobody is listening. Publishers do not count
// it as a send or as a failure.
var ErrSkipped = errors.New("snapshot skipped")

// Transport defines a generic interface for sending published spectra.
// Implementations should be thread-safe.
type Transport interface {
	Name() string
	Send(snap *spectrum.Snapshot) error
	Close() error
}

// SnapshotProvider exposes the latest published spectrum. The pipeline
// controller implements it.
type SnapshotProvider interface {
	Snapshot() *spectrum.Snapshot
}
