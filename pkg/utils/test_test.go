// SPDX-License-Identifier: MIT
package utils

import (
	"encoding/binary"
	"math"
	"os"
	"testing"
)

const (
	testSize       = 1024
	testSampleRate = 44100
	testFrequency  = 440.0 // A4 note
)

var testMagnitudes []float64

func TestMain(m *testing.M) {
	testMagnitudes = make([]float64, testSize)

	// Creates a "hill" with peak at position testSize/4.
	for i := range testMagnitudes {
		testMagnitudes[i] = math.Exp(-0.01 * math.Pow(float64(i-testSize/4), 2))
	}

	os.Exit(m.Run())
}

func TestGenerateComplexPCM(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		sampleRate float64
	}{
		{"Standard", 1024, 44100},
		{"Small", 16, 8000},
		{"Large", 8192, 96000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateComplexPCM(tt.size, tt.sampleRate)
			if len(result) != tt.size {
				t.Fatalf("buffer size = %d, want %d", len(result), tt.size)
			}

			hasNonZero := false
			for _, v := range result {
				if math.Abs(v) > 100 {
					t.Fatalf("value %v outside the PCM range", v)
				}
				if v != 0 {
					hasNonZero = true
				}
			}
			if !hasNonZero {
				t.Errorf("GenerateComplexPCM() produced all zeros")
			}
		})
	}
}

func TestGenerateSineSamples(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate float64
		frequency  float64
	}{
		{"A4 Note", 44100, 440.0},
		{"Middle C", 44100, 261.63},
		{"High Sample Rate", 192000, 440.0},
		{"Low Sample Rate", 8000, 440.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateSineSamples(testSize, tt.sampleRate, tt.frequency)
			if len(result) != testSize {
				t.Fatalf("buffer size = %d, want %d", len(result), testSize)
			}

			samplesPerCycle := tt.sampleRate / tt.frequency
			crossCount := 0
			for i := 1; i < testSize; i++ {
				if (result[i-1] < 0 && result[i] >= 0) || (result[i-1] >= 0 && result[i] < 0) {
					crossCount++
				}
			}

			// Two crossings per cycle, 20% margin for phase alignment.
			expected := float64(testSize) / (samplesPerCycle / 2)
			if tolerance := 0.2 * expected; math.Abs(float64(crossCount)-expected) > tolerance {
				t.Errorf("zero crossings = %d, expected approximately %.1f±%.1f", crossCount, expected, tolerance)
			}
		})
	}
}

func TestSamplesToBytes(t *testing.T) {
	samples := []int16{0, 1, -1, math.MaxInt16, math.MinInt16}
	raw := SamplesToBytes(samples)
	if len(raw) != len(samples)*2 {
		t.Fatalf("len = %d, want %d", len(raw), len(samples)*2)
	}
	for i, s := range samples {
		if got := int16(binary.LittleEndian.Uint16(raw[i*2:])); got != s {
			t.Errorf("sample %d = %d, want %d", i, got, s)
		}
	}
	if got := GenerateSineBytes(8, testSampleRate, testFrequency); len(got) != 16 {
		t.Errorf("GenerateSineBytes len = %d, want 16", len(got))
	}
}

func TestGenerateNoisePCMDeterministic(t *testing.T) {
	a := GenerateNoisePCM(64, 7)
	b := GenerateNoisePCM(64, 7)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("noise differs at %d for equal seeds", i)
		}
		if a[i] < -100 || a[i] >= 100 {
			t.Fatalf("noise value %v out of range", a[i])
		}
	}
}

func TestFindPeakBin(t *testing.T) {
	tests := []struct {
		name     string
		mags     []float64
		start    int
		end      int
		expected int
	}{
		{"Full Range", testMagnitudes, 0, testSize - 1, testSize / 4},
		{"Partial Range Start", testMagnitudes, testSize / 8, testSize - 1, testSize / 4},
		{"Partial Range End", testMagnitudes, 0, testSize / 3, testSize / 4},
		{"Negative Start", testMagnitudes, -10, testSize - 1, testSize / 4},
		{"Out of Range End", testMagnitudes, 0, testSize * 2, testSize / 4},
		{"Empty Slice", []float64{}, 0, 10, 0},
		{"Single Value", []float64{1.0}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := FindPeakBin(tt.mags, tt.start, tt.end); result != tt.expected {
				t.Errorf("FindPeakBin() = %d, want %d", result, tt.expected)
			}
		})
	}

	allocs := testing.AllocsPerRun(100, func() {
		FindPeakBin(testMagnitudes, 0, len(testMagnitudes)-1)
	})
	if allocs > 0 {
		t.Errorf("FindPeakBin allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func TestAlmostEqual(t *testing.T) {
	if !AlmostEqual(9, 9.0000001, 1e-6) {
		t.Error("expected values within tolerance")
	}
	if AlmostEqual(9, 9.1, 1e-6) {
		t.Error("expected values outside tolerance")
	}
}

func BenchmarkFindPeakBin(b *testing.B) {
	mags := make([]float64, 8192)
	for i := range mags {
		mags[i] = math.Exp(-0.01 * math.Pow(float64(i-4096), 2))
	}

	b.ReportAllocs()
	b.ResetTimer()
	for iter := 0; iter < b.N; iter++ {
		FindPeakBin(mags, 0, len(mags)-1)
	}
}
