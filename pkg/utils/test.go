// Package utils holds signal generators and helpers shared by tests across the
// pipeline packages.
package utils

import (
	"encoding/binary"
	"math"
	"math/rand"
)

// GenerateSinePCM returns size PCM values of a sine at frequency Hz with the
// given peak amplitude, in the same [-100, 100] scale the pipeline produces.
func GenerateSinePCM(size int, sampleRate, frequency, amplitude float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = amplitude * math.Sin(2*math.Pi*frequency*t)
	}
	return buffer
}

// GenerateComplexPCM returns a 440Hz fundamental plus two harmonics.
func GenerateComplexPCM(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = signal * 90
	}
	return buffer
}

// GenerateNoisePCM returns deterministic uniform noise in [-100, 100).
func GenerateNoisePCM(size int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	buffer := make([]float64, size)
	for i := range buffer {
		buffer[i] = rng.Float64()*200 - 100
	}
	return buffer
}

// GenerateSineSamples returns size int16 samples of a sine at frequency Hz
// scaled to 0.9 of full scale.
func GenerateSineSamples(size int, sampleRate, frequency float64) []int16 {
	buffer := make([]int16, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = int16(math.Sin(2*math.Pi*frequency*t) * math.MaxInt16 * 0.9)
	}
	return buffer
}

// SamplesToBytes encodes samples as little-endian 16-bit PCM, the format
// capture sources push into the capture queue.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// GenerateSineBytes is GenerateSineSamples encoded with SamplesToBytes.
func GenerateSineBytes(size int, sampleRate, frequency float64) []byte {
	return SamplesToBytes(GenerateSineSamples(size, sampleRate, frequency))
}

// FindPeakBin returns the index of the largest magnitude in
// magnitudes[startBin:endBin+1], clamping the range to the slice.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}

// AlmostEqual reports whether a and b differ by at most tol.
func AlmostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
