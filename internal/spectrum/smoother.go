// SPDX-License-Identifier: MIT

// Package spectrum holds the temporal smoothing stage of the pipeline and the
// immutable snapshots it publishes to readers.
package spectrum

const (
	// DecayFactor pulls a falling bin toward silence each tick.
	DecayFactor = 0.9
	// AttackFactor limits how fast a rising bin may grow each tick.
	AttackFactor = 1.1
	// SilenceFloor is the level below which a previous value counts as silent.
	// A silent bin takes the new value directly, since a multiplicative attack
	// cannot lift a zero baseline.
	SilenceFloor = 1e-6
)

// Smoother applies the asymmetric attack/decay filter between consecutive
// spectra. Every call returns a freshly allocated slice and never mutates a
// slice it has returned before, so results can be published as-is.
type Smoother struct {
	last []float64
}

// NewSmoother returns a Smoother for spectra of bins values, starting from
// silence.
func NewSmoother(bins int) *Smoother {
	return &Smoother{last: make([]float64, bins)}
}

// Bins returns the spectrum length the smoother works on.
func (s *Smoother) Bins() int { return len(s.last) }

// Update blends a newly computed spectrum with the previous output:
//
//	data < last  ->  last * DecayFactor
//	data > last  ->  last * AttackFactor
//	data == last ->  data
//
// The result becomes the baseline for the next call. data is not modified;
// len(data) must equal Bins().
func (s *Smoother) Update(data []float64) []float64 {
	out := make([]float64, len(s.last))
	for i, last := range s.last {
		d := data[i]
		switch {
		case d < last:
			out[i] = last * DecayFactor
		case d > last && last >= SilenceFloor:
			out[i] = last * AttackFactor
		default:
			out[i] = d
		}
	}
	s.last = out
	return out
}

// Decay ages the previous output uniformly toward silence. It is used when no
// new capture data is available for a tick.
func (s *Smoother) Decay() []float64 {
	out := make([]float64, len(s.last))
	for i, last := range s.last {
		out[i] = last * DecayFactor
	}
	s.last = out
	return out
}

// Last returns the most recent output. The slice must not be modified.
func (s *Smoother) Last() []float64 { return s.last }

// Seed replaces the baseline with a copy of values.
func (s *Smoother) Seed(values []float64) {
	last := make([]float64, len(s.last))
	copy(last, values)
	s.last = last
}
