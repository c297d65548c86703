// SPDX-License-Identifier: MIT
package fft

import (
	"errors"
	"fmt"
	"math/cmplx"

	"visualizer/pkg/bitint"

	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrFrameSize is returned when a transform size is not a power of two.
var ErrFrameSize = errors.New("fft size must be a power of 2")

// workspace holds pre-allocated buffers for FFT calculations.
type workspace struct {
	coeffs    []complex128 // ...for FFT complex output (N/2+1)
	magnitude []float64    // ...for the kept half of the spectrum (N/2)
}

// Processor computes the magnitude spectrum of a real PCM frame. It applies no
// window function (rectangular window) and no scaling, so the output matches a
// textbook forward DFT. A Processor is not safe for concurrent use.
type Processor struct {
	size       int
	sampleRate float64
	fftObj     *fourier.FFT
	workspace  workspace
}

// NewProcessor creates a processor for frames of size samples. The sample
// rate is informational and only used by FrequencyForBin.
func NewProcessor(size int, sampleRate float64) (*Processor, error) {
	if !bitint.IsPowerOfTwo(size) || size < 2 {
		return nil, fmt.Errorf("%w, got %d", ErrFrameSize, size)
	}

	return &Processor{
		size:       size,
		sampleRate: sampleRate,
		fftObj:     fourier.NewFFT(size),
		workspace: workspace{
			coeffs:    make([]complex128, size/2+1),
			magnitude: make([]float64, size/2),
		},
	}, nil
}

// Transform returns the magnitudes of the first N/2 frequency bins of pcm.
// Real input yields a conjugate-symmetric spectrum, so the upper half (and the
// Nyquist bin) are dropped. The returned slice is owned by the processor and
// is overwritten by the next call; callers that keep it must copy it.
func (p *Processor) Transform(pcm []float64) ([]float64, error) {
	if len(pcm) != p.size {
		return nil, fmt.Errorf("fft: got %d samples, want %d", len(pcm), p.size)
	}

	p.fftObj.Coefficients(p.workspace.coeffs, pcm)
	for i := range p.workspace.magnitude {
		p.workspace.magnitude[i] = cmplx.Abs(p.workspace.coeffs[i])
	}
	return p.workspace.magnitude, nil
}

// Bins returns the number of magnitudes produced per frame, N/2.
func (p *Processor) Bins() int { return p.size / 2 }

// FrequencyForBin returns the centre frequency in Hz of bin i, or 0 when i is
// outside the kept half of the spectrum.
func (p *Processor) FrequencyForBin(i int) float64 {
	if i < 0 || i >= p.Bins() {
		return 0
	}
	return p.fftObj.Freq(i) * p.sampleRate
}
