package panner

import (
	"fmt"

	"github.com/tphakala/go-ensemble-pan/internal/simdops"
)

// Common sample rates.
const (
	// RateCD is the CD quality sample rate (Red Book standard).
	RateCD = 44100

	// RateDAT is the DAT/DVD sample rate.
	RateDAT = 48000

	// RateHiRes96 is the high-resolution 2x DAT sample rate.
	RateHiRes96 = 96000
)

// NewFloat32Engine creates a float32 engine with default configuration.
func NewFloat32Engine(sampleRate, sources int) (*Engine[float32], error) {
	return NewEngine[float32](DefaultConfig(sampleRate, sources))
}

// NewFloat64Engine creates a float64 engine with default configuration.
func NewFloat64Engine(sampleRate, sources int) (*Engine[float64], error) {
	return NewEngine[float64](DefaultConfig(sampleRate, sources))
}

// Automation returns the controls in effect at a frame.
type Automation func(frame int) Controls

// Static returns an Automation that always yields ctl.
func Static(ctl Controls) Automation {
	return func(int) Controls { return ctl }
}

// OfflineOptions tune RenderAutomated.
type OfflineOptions struct {
	// BlockFrames is the render block length. Zero uses the configured
	// MaxBlockFrames.
	BlockFrames int

	// TailFrames are rendered after the longest input to let the delayed
	// signal ring out. Negative values are treated as zero.
	TailFrames int
}

// RenderOffline renders whole source buffers with constant controls.
// The output has the length of the longest input; shorter inputs are
// padded with silence.
func RenderOffline[F simdops.Float](config *Config, ctl Controls, inputs [][]F, blockFrames int) (left, right []F, err error) {
	return RenderAutomated(config, Static(ctl), inputs, OfflineOptions{BlockFrames: blockFrames})
}

// RenderAutomated renders whole source buffers block by block, querying
// automation once at the first frame of every block.
func RenderAutomated[F simdops.Float](config *Config, automation Automation, inputs [][]F, opts OfflineOptions) (left, right []F, err error) {
	if config == nil {
		return nil, nil, fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if len(inputs) != config.Sources {
		return nil, nil, fmt.Errorf("%w: got %d inputs, configured for %d", ErrSourceCount, len(inputs), config.Sources)
	}

	e, err := NewEngine[F](config)
	if err != nil {
		return nil, nil, err
	}

	block := opts.BlockFrames
	if block <= 0 {
		block = config.MaxBlockFrames
	}

	total := 0
	for _, in := range inputs {
		total = max(total, len(in))
	}
	total += max(opts.TailFrames, 0)

	left = make([]F, total)
	right = make([]F, total)
	padded := make([][]F, len(inputs))
	views := make([][]F, len(inputs))
	for s := range padded {
		padded[s] = make([]F, block)
	}

	for offset := 0; offset < total; offset += block {
		n := min(block, total-offset)
		for s, in := range inputs {
			views[s] = blockView(in, padded[s], offset, n)
		}
		e.Render(automation(offset), views, left[offset:offset+n], right[offset:offset+n])
	}

	return left, right, nil
}

// blockView returns in[offset:offset+n], copying into pad and zero-filling
// when the input ends inside the block.
func blockView[F simdops.Float](in, pad []F, offset, n int) []F {
	if offset+n <= len(in) {
		return in[offset : offset+n]
	}
	pad = pad[:n]
	clear(pad)
	if offset < len(in) {
		copy(pad, in[offset:])
	}
	return pad
}

// InterleaveToStereo converts two mono channels to interleaved stereo.
// Output format: [L0, R0, L1, R1, L2, R2, ...]
func InterleaveToStereo[F simdops.Float](left, right []F) []F {
	minLen := min(len(left), len(right))
	result := make([]F, minLen*stereoChannels)
	simdops.For[F]().Interleave2(result, left[:minLen], right[:minLen])
	return result
}
