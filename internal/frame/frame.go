// SPDX-License-Identifier: MIT

// Package frame turns raw capture bytes into the PCM sequence consumed by the
// spectral transform.
package frame

import (
	"encoding/binary"
	"fmt"
)

// BytesPerSample is the width of one signed 16-bit little-endian sample.
const BytesPerSample = 2

// pcmScale maps a 16-bit sample onto roughly [-100, 100]. The visual scale of
// the whole spectrum depends on this exact constant.
const pcmScale = 200.0 / 65536.0

// Normalize converts a raw 16-bit sample to its PCM value, 200 * s / 2^16.
func Normalize(s int16) float64 {
	return pcmScale * float64(s)
}

// IsDegenerate reports whether a raw block should be treated as silence. The
// check looks only at the second-to-last byte; a zero there marks the block as
// empty or partially captured. It also fires on some legitimate quiet frames.
func IsDegenerate(raw []byte) bool {
	return len(raw) < BytesPerSample || raw[len(raw)-2] == 0
}

// Extractor decodes fixed-size frames into pre-allocated sample and PCM
// buffers. It is not safe for concurrent use; the pipeline tick owns it.
type Extractor struct {
	size    int       // samples per frame
	raw     []byte    // raw frame, size*BytesPerSample bytes
	samples []int16   // decoded samples
	pcm     []float64 // normalized samples
}

// NewExtractor returns an Extractor for frames of size samples.
func NewExtractor(size int) (*Extractor, error) {
	if size <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", size)
	}
	return &Extractor{
		size:    size,
		raw:     make([]byte, size*BytesPerSample),
		samples: make([]int16, size),
		pcm:     make([]float64, size),
	}, nil
}

// RawBuffer returns the scratch slice the caller should fill with exactly one
// frame of raw bytes before calling Decode.
func (e *Extractor) RawBuffer() []byte { return e.raw }

// Decode interprets raw as consecutive little-endian int16 samples and fills
// the sample and PCM buffers. It returns the PCM slice, which stays valid until
// the next call. len(raw) must equal len(RawBuffer()).
func (e *Extractor) Decode(raw []byte) ([]float64, error) {
	if len(raw) != len(e.raw) {
		return nil, fmt.Errorf("frame: got %d bytes, want %d", len(raw), len(e.raw))
	}
	for i := 0; i < e.size; i++ {
		s := int16(binary.LittleEndian.Uint16(raw[i*BytesPerSample:]))
		e.samples[i] = s
		e.pcm[i] = Normalize(s)
	}
	return e.pcm, nil
}

// Samples returns the int16 samples decoded by the last Decode call.
func (e *Extractor) Samples() []int16 { return e.samples }

// Encode writes samples as little-endian 16-bit bytes into dst, which must hold
// len(samples)*BytesPerSample bytes. Capture sources use it to hand device
// buffers to the capture queue without allocating.
func Encode(dst []byte, samples []int16) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*BytesPerSample:], uint16(s))
	}
}
