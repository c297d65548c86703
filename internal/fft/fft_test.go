// SPDX-License-Identifier: MIT
package fft

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"testing"

	"visualizer/pkg/utils"
)

const (
	testFFTSize    = 2048
	testSampleRate = 44100
)

// naiveDFT is the O(N²) textbook definition used as the reference.
func naiveDFT(x []float64) []float64 {
	n := len(x)
	out := make([]float64, n/2)
	for k := range out {
		var sum complex128
		for t, v := range x {
			angle := -2 * math.Pi * float64(k) * float64(t) / float64(n)
			sum += complex(v, 0) * cmplx.Exp(complex(0, angle))
		}
		out[k] = cmplx.Abs(sum)
	}
	return out
}

func TestNewProcessorRejectsNonPowerOfTwo(t *testing.T) {
	for _, size := range []int{0, 1, 3, 1000, -8} {
		if _, err := NewProcessor(size, testSampleRate); !errors.Is(err, ErrFrameSize) {
			t.Errorf("NewProcessor(%d) error = %v, want ErrFrameSize", size, err)
		}
	}
}

func TestTransformLengthAndNonNegative(t *testing.T) {
	for _, size := range []int{2, 4, 16, 256, 1024, 2048, 4096} {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			p, err := NewProcessor(size, testSampleRate)
			if err != nil {
				t.Fatalf("NewProcessor: %v", err)
			}
			pcm := utils.GenerateNoisePCM(size, int64(size))
			mags, err := p.Transform(pcm)
			if err != nil {
				t.Fatalf("Transform: %v", err)
			}
			if len(mags) != size/2 {
				t.Fatalf("len = %d, want %d", len(mags), size/2)
			}
			for i, m := range mags {
				if m < 0 || math.IsNaN(m) {
					t.Fatalf("bin %d = %v, want non-negative", i, m)
				}
			}
		})
	}
}

func TestTransformSilence(t *testing.T) {
	p, _ := NewProcessor(testFFTSize, testSampleRate)
	mags, err := p.Transform(make([]float64, testFFTSize))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	for i, m := range mags {
		if m != 0 {
			t.Fatalf("bin %d = %v, want 0 for silent input", i, m)
		}
	}
}

func TestTransformMatchesTextbookDFT(t *testing.T) {
	const size = 256
	p, _ := NewProcessor(size, testSampleRate)
	pcm := utils.GenerateNoisePCM(size, 42)

	got, err := p.Transform(pcm)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	want := naiveDFT(pcm)

	for i := range want {
		if diff := math.Abs(got[i] - want[i]); diff > 1e-9*math.Max(1, want[i]) {
			t.Errorf("bin %d = %v, want %v (diff %g)", i, got[i], want[i], diff)
		}
	}
}

func TestTransformSinePeak(t *testing.T) {
	tests := []float64{440, 1000, 2500, 9000}

	p, _ := NewProcessor(testFFTSize, testSampleRate)
	for _, freq := range tests {
		t.Run(fmt.Sprintf("%.0fHz", freq), func(t *testing.T) {
			pcm := utils.GenerateSinePCM(testFFTSize, testSampleRate, freq, 80)
			mags, err := p.Transform(pcm)
			if err != nil {
				t.Fatalf("Transform: %v", err)
			}
			expected := freq * testFFTSize / testSampleRate
			peak := utils.FindPeakBin(mags, 1, len(mags)-1)
			if math.Abs(float64(peak)-expected) > 1 {
				t.Errorf("peak at bin %d, expected %.2f ± 1", peak, expected)
			}
		})
	}
}

func TestTransformWrongLength(t *testing.T) {
	p, _ := NewProcessor(16, testSampleRate)
	if _, err := p.Transform(make([]float64, 8)); err == nil {
		t.Error("expected error for short input")
	}
}

func TestFrequencyForBin(t *testing.T) {
	p, _ := NewProcessor(testFFTSize, testSampleRate)
	tests := []struct {
		bin  int
		want float64
	}{
		{0, 0},
		{1, testSampleRate / float64(testFFTSize)},
		{testFFTSize / 4, testSampleRate / 4},
		{-1, 0},
		{testFFTSize / 2, 0}, // Nyquist is not part of the kept half
	}
	for _, tt := range tests {
		if got := p.FrequencyForBin(tt.bin); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("FrequencyForBin(%d) = %v, want %v", tt.bin, got, tt.want)
		}
	}
}

func TestTransformHotPath(t *testing.T) {
	p, _ := NewProcessor(testFFTSize, testSampleRate)
	pcm := utils.GenerateComplexPCM(testFFTSize, testSampleRate)

	// Warm-up call so lazy initialisation is not counted.
	_, _ = p.Transform(pcm)
	allocs := testing.AllocsPerRun(100, func() {
		_, _ = p.Transform(pcm)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Transform hot path, got %.1f", allocs)
	}
}

func BenchmarkTransform(b *testing.B) {
	p, _ := NewProcessor(testFFTSize, testSampleRate)
	pcm := utils.GenerateComplexPCM(testFFTSize, testSampleRate)

	b.ReportAllocs()
	b.ResetTimer()
	for iter := 0; iter < b.N; iter++ {
		_, _ = p.Transform(pcm)
	}
}
