// SPDX-License-Identifier: MIT
package frame

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   int16
		want float64
	}{
		{0, 0},
		{math.MaxInt16, 200.0 * 32767 / 65536},
		{math.MinInt16, -100},
		{16384, 50},
		{-328, 200.0 * -328 / 65536},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%d) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsDegenerate(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want bool
	}{
		{"empty", nil, true},
		{"single byte", []byte{7}, true},
		{"zero second-to-last", []byte{1, 2, 0, 5}, true},
		{"non-zero second-to-last", []byte{0, 0, 3, 0}, false},
		// A legitimate quiet sample whose low byte is zero is still flagged.
		{"quiet false positive", []byte{9, 9, 0x00, 0x01}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDegenerate(tt.raw); got != tt.want {
				t.Errorf("IsDegenerate(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	e, err := NewExtractor(4)
	if err != nil {
		t.Fatalf("NewExtractor: %v", err)
	}

	in := []int16{0, 1, -1, math.MinInt16}
	raw := make([]byte, len(in)*BytesPerSample)
	Encode(raw, in)

	if raw[2] != 0x01 || raw[3] != 0x00 {
		t.Fatalf("Encode is not little-endian: %v", raw)
	}

	pcm, err := e.Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i, s := range in {
		if e.Samples()[i] != s {
			t.Errorf("sample %d = %d, want %d", i, e.Samples()[i], s)
		}
		if pcm[i] != Normalize(s) {
			t.Errorf("pcm %d = %v, want %v", i, pcm[i], Normalize(s))
		}
	}
}

func TestDecodeWrongLength(t *testing.T) {
	e, _ := NewExtractor(4)
	if _, err := e.Decode(make([]byte, 6)); err == nil {
		t.Error("expected error for short frame")
	}
}

func TestNewExtractorInvalidSize(t *testing.T) {
	if _, err := NewExtractor(0); err == nil {
		t.Error("expected error for zero frame size")
	}
}

func TestDecodeZeroAllocs(t *testing.T) {
	e, _ := NewExtractor(2048)
	raw := e.RawBuffer()
	for i := range raw {
		raw[i] = byte(i)
	}
	allocs := testing.AllocsPerRun(100, func() {
		_, _ = e.Decode(raw)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Decode, got %.1f", allocs)
	}
}
