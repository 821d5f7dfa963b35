// Package rateconv converts source clips to the render sample rate with a
// polyphase Kaiser windowed FIR from algo-dsp. The filter delay is removed
// so converted clips stay aligned with clips that were not converted.
package rateconv

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/resample"
)

// maxDenominator bounds the rational approximation of the rate ratio. Every
// common pair of audio rates reduces to a denominator well below it.
const maxDenominator = 1024

// ErrInvalidRate indicates a sample rate that is not positive.
var ErrInvalidRate = errors.New("invalid sample rate")

// Converter resamples whole buffers from one fixed rate to another. It is
// not safe for concurrent use.
type Converter struct {
	up, down int
	latency  int // output samples
	rs       *resample.Resampler
}

// New creates a converter from inRate to outRate.
func New(inRate, outRate int) (*Converter, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("%w: %d -> %d", ErrInvalidRate, inRate, outRate)
	}
	c := &Converter{up: 1, down: 1}
	if inRate == outRate {
		return c, nil
	}

	rs, err := resample.NewForRates(float64(inRate), float64(outRate),
		resample.WithQuality(resample.QualityBest),
		resample.WithMaxDenominator(maxDenominator))
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler %d -> %d: %w", inRate, outRate, err)
	}
	c.rs = rs
	c.up, c.down = rs.Ratio()

	// The prototype is symmetric with TapsPerPhase*up taps, so its group
	// delay is half its length on the upsampled grid.
	taps := rs.TapsPerPhase() * c.up
	c.latency = int(math.Round(float64(taps-1) / float64(2*c.down)))
	return c, nil
}

// Ratio returns the reduced up/down factors applied by Process.
func (c *Converter) Ratio() (up, down int) {
	return c.up, c.down
}

// Latency returns the filter delay, in output samples, that Process removes.
func (c *Converter) Latency() int {
	return c.latency
}

// OutputLength returns the number of samples Process produces for n inputs.
func (c *Converter) OutputLength(n int) int {
	if n <= 0 {
		return 0
	}
	return (n*c.up + c.down - 1) / c.down
}

// Process resamples input. Output sample j lies at input position
// j*down/up, within half an output sample. Equal rates return a copy.
func (c *Converter) Process(input []float64) []float64 {
	out := make([]float64, c.OutputLength(len(input)))
	if c.rs == nil || len(out) == 0 {
		copy(out, input)
		return out
	}

	c.rs.Reset()
	y := c.rs.Process(input)

	// Flush the filter with silence until the delayed tail is out.
	if deficit := c.latency + len(out) - len(y); deficit > 0 {
		flush := (deficit*c.down+c.up-1)/c.up + c.down + 1
		y = append(y, c.rs.Process(make([]float64, flush))...)
	}
	copy(out, y[min(c.latency, len(y)):])
	return out
}

// Resample is a convenience wrapper around New and Process.
func Resample(input []float64, inRate, outRate int) ([]float64, error) {
	c, err := New(inRate, outRate)
	if err != nil {
		return nil, err
	}
	return c.Process(input), nil
}
