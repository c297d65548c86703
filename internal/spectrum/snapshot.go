// SPDX-License-Identifier: MIT
package spectrum

import "time"

// Snapshot is one published, fully formed spectrum. Snapshots are immutable
// once published: readers may hold on to Values without copying but must not
// modify them.
type Snapshot struct {
	Seq    uint64    `json:"seq"`    // Monotonically increasing per published tick.
	At     time.Time `json:"at"`     // When the tick completed.
	Fresh  bool      `json:"fresh"`  // True when computed from new capture data, false for decay-only ticks.
	Values []float64 `json:"values"` // N/2 non-negative magnitudes.
}

// Empty returns the snapshot published before the first tick: bins zeros.
func Empty(bins int) *Snapshot {
	return &Snapshot{Values: make([]float64, bins)}
}

// Len returns the number of bins.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Values)
}

// Copy returns a copy of the values that the caller may modify.
func (s *Snapshot) Copy() []float64 {
	if s == nil {
		return nil
	}
	out := make([]float64, len(s.Values))
	copy(out, s.Values)
	return out
}

// Peak returns the largest value and its bin index. An empty snapshot returns
// (0, -1).
func (s *Snapshot) Peak() (value float64, bin int) {
	bin = -1
	if s == nil {
		return 0, bin
	}
	for i, v := range s.Values {
		if bin < 0 || v > value {
			value, bin = v, i
		}
	}
	return value, bin
}
