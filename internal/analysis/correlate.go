// Package analysis measures rendered output offline: inter-channel lag by
// FFT cross-correlation and signal level.
package analysis

import (
	"math/cmplx"

	"github.com/tphakala/simd/c128"
	"github.com/tphakala/simd/f64"
	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/tphakala/go-ensemble-pan/internal/simdops"
)

// minFFTSize is the smallest transform used for correlation.
const minFFTSize = 64

// Correlator computes circular cross-correlations with a fixed-size FFT.
// Inputs are zero padded to twice their length, so the circular result
// equals the linear one for every lag that fits.
//
// Working buffers are allocated once; a Correlator is not safe for
// concurrent use.
type Correlator struct {
	fft     *fourier.FFT
	fftSize int
	scale   float64 // 1/fftSize, gonum's inverse transform is unnormalised

	padA, padB   []float64
	specA, specB []complex128
	product      []complex128
	result       []float64
}

// NewCorrelator creates a correlator for signals up to maxLen samples.
func NewCorrelator(maxLen int) *Correlator {
	fftSize := minFFTSize
	for fftSize < 2*maxLen {
		fftSize *= 2
	}
	bins := fftSize/2 + 1

	return &Correlator{
		fft:     fourier.NewFFT(fftSize),
		fftSize: fftSize,
		scale:   1.0 / float64(fftSize),
		padA:    make([]float64, fftSize),
		padB:    make([]float64, fftSize),
		specA:   make([]complex128, bins),
		specB:   make([]complex128, bins),
		product: make([]complex128, bins),
		result:  make([]float64, fftSize),
	}
}

// MaxLen returns the longest input the correlator accepts.
func (c *Correlator) MaxLen() int {
	return c.fftSize / 2
}

// Correlate returns r[k] = sum over n of b[n]*a[n-k] for k in
// [-maxLag, maxLag], stored at index k+maxLag. Inputs longer than MaxLen
// are truncated.
func (c *Correlator) Correlate(a, b []float64, maxLag int) []float64 {
	maxLag = min(max(maxLag, 0), c.MaxLen()-1)

	clear(c.padA)
	clear(c.padB)
	copy(c.padA, a[:min(len(a), c.MaxLen())])
	copy(c.padB, b[:min(len(b), c.MaxLen())])

	c.specA = c.fft.Coefficients(c.specA, c.padA)
	c.specB = c.fft.Coefficients(c.specB, c.padB)
	for i, v := range c.specA {
		c.specA[i] = cmplx.Conj(v)
	}
	c128.Mul(c.product, c.specB, c.specA)

	c.result = c.fft.Sequence(c.result, c.product)
	f64.Scale(c.result, c.result, c.scale)

	out := make([]float64, 2*maxLag+1)
	for k := -maxLag; k <= maxLag; k++ {
		i := k
		if i < 0 {
			i += c.fftSize
		}
		out[k+maxLag] = c.result[i]
	}
	return out
}

// Lag returns the delay of b relative to a, in samples, searched over
// [-maxLag, maxLag], together with the correlation value at that lag. A
// positive lag means b lags behind a.
func (c *Correlator) Lag(a, b []float64, maxLag int) (lag int, peak float64) {
	r := c.Correlate(a, b, maxLag)
	best := 0
	for i, v := range r {
		if v > r[best] {
			best = i
		}
	}
	return best - (len(r)-1)/2, r[best]
}

// InterauralLag returns how many samples the right channel lags the left.
// Negative values mean the right channel leads.
func InterauralLag[F simdops.Float](left, right []F, maxLag int) int {
	n := min(len(left), len(right))
	c := NewCorrelator(n)
	lag, _ := c.Lag(toFloat64(left[:n]), toFloat64(right[:n]), maxLag)
	return lag
}

func toFloat64[F simdops.Float](x []F) []float64 {
	if v, ok := any(x).([]float64); ok {
		return v
	}
	out := make([]float64, len(x))
	for i, s := range x {
		out[i] = float64(s)
	}
	return out
}
