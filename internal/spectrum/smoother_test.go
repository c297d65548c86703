// SPDX-License-Identifier: MIT
package spectrum

import (
	"math"
	"testing"

	"visualizer/pkg/utils"
)

const tol = 1e-12

func TestUpdateAttackDecay(t *testing.T) {
	tests := []struct {
		name string
		last float64
		data float64
		want float64
	}{
		{"falling value decays from previous", 10, 5, 9},
		{"rising value limited by attack", 10, 20, 11},
		{"equal value passes through", 10, 10, 10},
		{"rise from silence takes new value", 0, 7, 7},
		{"silence stays silent", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSmoother(1)
			s.Seed([]float64{tt.last})
			got := s.Update([]float64{tt.data})
			if !utils.AlmostEqual(got[0], tt.want, tol) {
				t.Errorf("Update(last=%v, data=%v) = %v, want %v", tt.last, tt.data, got[0], tt.want)
			}
			if !utils.AlmostEqual(s.Last()[0], tt.want, tol) {
				t.Errorf("baseline = %v, want %v", s.Last()[0], tt.want)
			}
		})
	}
}

func TestUpdateDoesNotMutateInputOrPrevious(t *testing.T) {
	s := NewSmoother(3)
	first := s.Update([]float64{1, 2, 3})
	data := []float64{0, 5, 3}
	second := s.Update(data)

	if data[0] != 0 || data[1] != 5 || data[2] != 3 {
		t.Errorf("input modified: %v", data)
	}
	if first[0] != 1 || first[1] != 2 || first[2] != 3 {
		t.Errorf("previously returned slice modified: %v", first)
	}
	if &first[0] == &second[0] {
		t.Error("Update reused the previous output slice")
	}
}

func TestDecay(t *testing.T) {
	s := NewSmoother(2)
	s.Seed([]float64{10, 20})

	got := s.Decay()
	if !utils.AlmostEqual(got[0], 9, tol) || !utils.AlmostEqual(got[1], 18, tol) {
		t.Fatalf("Decay = %v, want [9 18]", got)
	}

	got = s.Decay()
	if !utils.AlmostEqual(got[0], 8.1, tol) || !utils.AlmostEqual(got[1], 16.2, tol) {
		t.Errorf("second Decay = %v, want [8.1 16.2]", got)
	}
}

func TestDecayApproachesZero(t *testing.T) {
	s := NewSmoother(1)
	s.Seed([]float64{100})
	prev := 100.0
	for iter := 0; iter < 200; iter++ {
		v := s.Decay()[0]
		if v >= prev || v < 0 {
			t.Fatalf("decay not strictly decreasing toward zero: %v -> %v", prev, v)
		}
		prev = v
	}
	if prev > 1e-6 {
		t.Errorf("value after 200 decays = %v, want near zero", prev)
	}
}

func TestRiseAfterLongSilence(t *testing.T) {
	s := NewSmoother(1)
	s.Seed([]float64{50})
	for iter := 0; iter < 300; iter++ {
		s.Decay()
	}
	if got := s.Update([]float64{40})[0]; got != 40 {
		t.Errorf("Update after silence = %v, want 40", got)
	}
}

func TestSeed(t *testing.T) {
	s := NewSmoother(2)
	values := []float64{3, 4}
	s.Seed(values)
	values[0] = 99
	if s.Last()[0] != 3 {
		t.Error("Seed must copy its input")
	}
	if got := s.Update([]float64{1, 8})[1]; got != 4*1.1 {
		t.Errorf("Update after Seed = %v, want rise from the seeded value", got)
	}
	if s.Bins() != 2 {
		t.Errorf("Bins = %d, want 2", s.Bins())
	}
}

func TestSnapshotHelpers(t *testing.T) {
	var nilSnap *Snapshot
	if nilSnap.Len() != 0 || nilSnap.Copy() != nil {
		t.Error("nil snapshot helpers should be zero-valued")
	}
	if _, bin := nilSnap.Peak(); bin != -1 {
		t.Errorf("nil Peak bin = %d, want -1", bin)
	}

	snap := &Snapshot{Values: []float64{1, 7, 3}}
	v, bin := snap.Peak()
	if v != 7 || bin != 1 {
		t.Errorf("Peak = (%v, %d), want (7, 1)", v, bin)
	}
	c := snap.Copy()
	c[0] = math.Inf(1)
	if snap.Values[0] != 1 {
		t.Error("Copy shares storage with the snapshot")
	}
	if e := Empty(4); e.Len() != 4 || e.Seq != 0 {
		t.Errorf("Empty(4) = %+v", e)
	}
}

func BenchmarkUpdate(b *testing.B) {
	s := NewSmoother(1024)
	data := utils.GenerateNoisePCM(1024, 1)
	for i := range data {
		data[i] = math.Abs(data[i])
	}
	b.ReportAllocs()
	b.ResetTimer()
	for iter := 0; iter < b.N; iter++ {
		s.Update(data)
	}
}
