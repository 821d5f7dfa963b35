package panner

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/tphakala/simd/cpu"

	"github.com/tphakala/go-ensemble-pan/internal/geometry"
	"github.com/tphakala/go-ensemble-pan/internal/ringbuf"
	"github.com/tphakala/go-ensemble-pan/internal/simdops"
	"github.com/tphakala/go-ensemble-pan/internal/smoothing"
)

const (
	left  = geometry.Left
	right = geometry.Right
	ears  = geometry.Ears
)

// Engine renders N mono sources to one stereo pair. Every source is delayed
// and attenuated per ear according to the solved geometry. After a control
// change the engine glides the delays to their new targets through the
// smoothing filters (Ramping) and then reads at the exact solved delays
// (Steady).
//
// Engine is not safe for concurrent use. Render is meant to be called from
// a single real-time callback; it never allocates, blocks or fails.
type Engine[F simdops.Float] struct {
	config Config
	ops    *simdops.Ops[F]

	solver *geometry.Solver
	layout *geometry.Layout

	rings   []*ringbuf.Buffer[F]
	filters [ears][]smoothing.Filter
	silence []F

	gains   [ears][]F
	delays  [ears][]float64 // delay applied to the current batch
	scratch []F             // one gathered sample per source

	batch           int
	filterCapacity  int
	window          int
	maxDelaySamples int

	state  State
	timer  int
	phase  int // frames since the last batch boundary
	active bool

	applied      geometry.Params
	appliedValid bool
}

// NewEngine creates an engine and allocates every buffer it will use.
// The engine starts active and Ramping.
func NewEngine[F simdops.Float](config *Config) (*Engine[F], error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	e := &Engine[F]{
		config: *config,
		ops:    simdops.For[F](),
	}
	n := config.Sources

	solver, err := geometry.NewSolver(n, config.SampleRate, config.SpeedOfSound)
	if err != nil {
		return nil, fmt.Errorf("failed to create geometry solver: %w", err)
	}
	e.solver = solver
	e.layout = geometry.NewLayout(n)

	e.batch = config.BatchSize
	if e.batch == 0 {
		e.batch = BatchSizeFor(config.SampleRate)
	}

	e.maxDelaySamples = solver.MaxDelaySamples(config.MaxRadius, config.MaxEarSpacing)
	ringCapacity := max(ringDelayMultiplier*e.maxDelaySamples,
		e.maxDelaySamples+config.MaxBlockFrames+interpolationGuard)

	e.rings = make([]*ringbuf.Buffer[F], n)
	for s := range e.rings {
		ring, err := ringbuf.New[F](ringCapacity)
		if err != nil {
			return nil, fmt.Errorf("failed to create ring buffer %d: %w", s, err)
		}
		e.rings[s] = ring
	}

	// Every batch boundary inside one sub-block pushes one value; the
	// history must hold more than that on top of the longest window.
	pushesPerBlock := config.MaxBlockFrames/e.batch + 1
	e.filterCapacity = max(filterSecondsCapacity*config.SampleRate/e.batch,
		2*pushesPerBlock, smoothing.MinCapacity)
	e.window = e.windowBatches(DefaultWindowSeconds)

	for ear := range ears {
		e.filters[ear] = make([]smoothing.Filter, n)
		for s := range n {
			f, err := smoothing.New(config.Smoothing.kind(), e.filterCapacity, e.window)
			if err != nil {
				return nil, fmt.Errorf("failed to create smoothing filter: %w", err)
			}
			e.filters[ear][s] = f
		}
		e.gains[ear] = make([]F, n)
		e.delays[ear] = make([]float64, n)
	}
	e.window = e.filters[left][0].WindowSize()

	e.silence = make([]F, config.MaxBlockFrames)
	e.scratch = make([]F, n)

	e.Activate()
	return e, nil
}

// Activate clears every ring buffer, filter and timer and returns the
// engine to Ramping. The next Render solves the geometry unconditionally.
func (e *Engine[F]) Activate() {
	for _, ring := range e.rings {
		ring.Clear()
	}
	for ear := range ears {
		for _, f := range e.filters[ear] {
			f.Reset()
		}
		clear(e.delays[ear])
		clear(e.gains[ear])
	}
	e.state = Ramping
	e.timer = 0
	e.phase = 0
	e.appliedValid = false
	e.active = true
}

// Deactivate marks the engine inactive. Buffers are kept; Render writes
// silence until the next Activate.
func (e *Engine[F]) Deactivate() {
	e.active = false
}

// Active reports whether the engine is between Activate and Deactivate.
func (e *Engine[F]) Active() bool {
	return e.active
}

// State returns the current delay-application mode.
func (e *Engine[F]) State() State {
	return e.state
}

// Sources returns the configured number of sources.
func (e *Engine[F]) Sources() int {
	return e.config.Sources
}

// Render reads ctl, consumes one block of input per source and overwrites
// left and right with the rendered block.
//
// The block length is the shortest of left, right and the provided
// inputs. Sources without an input slice (inputs shorter than Sources, or
// a nil entry) render as silence. Blocks longer than MaxBlockFrames are
// rendered as consecutive sub-blocks. Output frames past the block length
// are zeroed. A zero-length block leaves the engine state unchanged.
func (e *Engine[F]) Render(ctl Controls, inputs [][]F, left, right []F) {
	frames := min(len(left), len(right))
	for s := 0; s < len(inputs) && s < e.config.Sources; s++ {
		if inputs[s] != nil {
			frames = min(frames, len(inputs[s]))
		}
	}
	clear(left[frames:])
	clear(right[frames:])
	if frames == 0 {
		return
	}

	if !e.active {
		clear(left[:frames])
		clear(right[:frames])
		return
	}

	for offset := 0; offset < frames; {
		n := min(frames-offset, e.config.MaxBlockFrames)
		e.renderBlock(ctl, inputs, offset, n, left, right)
		offset += n
	}
}

// renderBlock renders frames [offset, offset+n) of the caller's buffers.
func (e *Engine[F]) renderBlock(ctl Controls, inputs [][]F, offset, n int, outL, outR []F) {
	// 1. Resolve geometry on change.
	e.applyControls(ctl)
	ramping := e.state == Ramping

	// 2. Push the target delays once per batch boundary inside the block.
	if ramping {
		if count := e.boundaries(n); count > 0 {
			for ear := range ears {
				for s, f := range e.filters[ear] {
					f.Push(e.layout.Delay[ear][s], count)
				}
			}
		}
	}

	// 3. Append the block to the ring buffers.
	for s, ring := range e.rings {
		if s < len(inputs) && inputs[s] != nil {
			ring.Write(inputs[s][offset : offset+n])
		} else {
			ring.Write(e.silence[:n])
		}
	}

	// 4. Mix, one batch segment at a time.
	dstL := outL[offset : offset+n]
	dstR := outR[offset : offset+n]
	for f := 0; f < n; {
		if ramping && e.phase == 0 {
			e.popDelays()
		}
		seg := min(n-f, e.batch-e.phase)
		if ramping {
			e.mixSmoothed(dstL, dstR, f, seg, n)
		} else {
			e.mixExact(dstL, dstR, f, seg, n)
		}
		f += seg
		e.phase += seg
		if e.phase == e.batch {
			e.phase = 0
		}
	}

	// 5. Advance the ramp.
	if ramping {
		e.timer += n
		if e.timer > e.settleFrames() {
			e.settle()
		}
	}
}

// applyControls sanitises ctl and, if it differs from the last applied
// set, re-solves the geometry and restarts the ramp.
func (e *Engine[F]) applyControls(ctl Controls) {
	c := ctl.sanitize(&e.config)
	params := c.params()
	window := e.windowBatches(c.Window)

	first := !e.appliedValid
	windowChanged := window != e.window
	if !first && !windowChanged && params == e.applied {
		return
	}

	e.solver.Solve(e.layout, params)
	for ear := range ears {
		for s, g := range e.layout.Attenuation[ear] {
			e.gains[ear][s] = F(g)
		}
	}

	switch {
	case first:
		// Start settled on the first layout instead of gliding up from zero.
		e.resizeFilters(window, func(ear, s int) int { return e.layout.Delay[ear][s] })
	case windowChanged:
		e.resizeFilters(window, func(ear, s int) int { return int(math.Round(e.delays[ear][s])) })
	}

	e.applied = params
	e.appliedValid = true
	e.timer = 0
	e.state = Ramping
}

// resizeFilters reconfigures every filter to window and seeds its history
// and the applied delays from seed.
func (e *Engine[F]) resizeFilters(window int, seed func(ear, s int) int) {
	for ear := range ears {
		for s, f := range e.filters[ear] {
			v := seed(ear, s)
			e.window = f.Configure(window)
			f.Fill(v)
			e.delays[ear][s] = float64(v)
		}
	}
}

// boundaries returns how many batch boundaries fall inside the next n frames.
func (e *Engine[F]) boundaries(n int) int {
	first := (e.batch - e.phase) % e.batch
	if first >= n {
		return 0
	}
	return (n-first-1)/e.batch + 1
}

func (e *Engine[F]) popDelays() {
	for ear := range ears {
		for s, f := range e.filters[ear] {
			e.delays[ear][s] = f.Pop()
		}
	}
}

// settle switches to Steady and snaps the applied delays to the targets.
func (e *Engine[F]) settle() {
	e.state = Steady
	for ear := range ears {
		for s, d := range e.layout.Delay[ear] {
			e.delays[ear][s] = float64(d)
		}
	}
}

// mixSmoothed renders frames [f, f+seg) of an n-frame block at fractional
// delays. The sample for frame i sits n-i positions behind the write
// position, so a delay of d reads age n-i+d.
func (e *Engine[F]) mixSmoothed(dstL, dstR []F, f, seg, n int) {
	for i := f; i < f+seg; i++ {
		base := float64(n - i)
		for s, ring := range e.rings {
			e.scratch[s] = ring.ReadInterpolated(base + e.delays[left][s])
		}
		dstL[i] = e.ops.Mix(e.gains[left], e.scratch)

		for s, ring := range e.rings {
			e.scratch[s] = ring.ReadInterpolated(base + e.delays[right][s])
		}
		dstR[i] = e.ops.Mix(e.gains[right], e.scratch)
	}
}

// mixExact is mixSmoothed at the solved integer delays.
func (e *Engine[F]) mixExact(dstL, dstR []F, f, seg, n int) {
	delayL := e.layout.Delay[left]
	delayR := e.layout.Delay[right]
	for i := f; i < f+seg; i++ {
		base := n - i
		for s, ring := range e.rings {
			e.scratch[s] = ring.ReadExact(base + delayL[s])
		}
		dstL[i] = e.ops.Mix(e.gains[left], e.scratch)

		for s, ring := range e.rings {
			e.scratch[s] = ring.ReadExact(base + delayR[s])
		}
		dstR[i] = e.ops.Mix(e.gains[right], e.scratch)
	}
}

// windowBatches converts a window length in seconds to the applied number
// of batches: rounded, then made even and kept below the filter capacity.
func (e *Engine[F]) windowBatches(seconds float64) int {
	w := int(math.Round(seconds * float64(e.config.SampleRate) / float64(e.batch)))
	if w >= e.filterCapacity {
		w = e.filterCapacity - 1
	}
	if w%2 != 0 {
		w--
	}
	return max(w, smoothing.MinWindow)
}

// settleFrames is the ramp length after which the smoothed delays have
// reached their targets: a full window of batches plus a guard.
func (e *Engine[F]) settleFrames() int {
	return (e.window + settleGuardBatches) * e.batch
}

// EffectiveDelay returns the delay in samples currently applied to source
// for ear (0 = left, 1 = right). While ramping it is the smoothed value.
func (e *Engine[F]) EffectiveDelay(ear, source int) float64 {
	return e.delays[ear][source]
}

// TargetDelay returns the solved delay for source and ear.
func (e *Engine[F]) TargetDelay(ear, source int) int {
	return e.layout.Delay[ear][source]
}

// Attenuation returns the solved gain for source and ear.
func (e *Engine[F]) Attenuation(ear, source int) float64 {
	return e.layout.Attenuation[ear][source]
}

// Layout returns a copy of the solved source table. It allocates and is
// not meant for the render path.
func (e *Engine[F]) Layout() []SourceInfo {
	l := e.layout
	out := make([]SourceInfo, l.Sources())
	for i := range out {
		out[i] = SourceInfo{
			Index:            i,
			AngleDegrees:     l.Angle[i] * 180 / math.Pi,
			X:                l.X[i],
			Y:                l.Y[i],
			DistanceLeft:     l.Distance[left][i],
			DistanceRight:    l.Distance[right][i],
			DelayLeft:        l.Delay[left][i],
			DelayRight:       l.Delay[right][i],
			AttenuationLeft:  l.Attenuation[left][i],
			AttenuationRight: l.Attenuation[right][i],
		}
	}
	return out
}

// GetInfo returns sizing information about the engine.
func (e *Engine[F]) GetInfo() Info {
	var zero F
	sampleBytes := int64(unsafe.Sizeof(zero))
	n := int64(e.config.Sources)
	ringCapacity := e.rings[0].Capacity()

	// Filters keep an int history and a float64 output per slot.
	filterBytes := int64(e.filterCapacity) * (int64(unsafe.Sizeof(int(0))) + 8)

	return Info{
		SampleRate:      e.config.SampleRate,
		Sources:         e.config.Sources,
		BatchSize:       e.batch,
		RingCapacity:    ringCapacity,
		FilterCapacity:  e.filterCapacity,
		WindowBatches:   e.window,
		SettleFrames:    e.settleFrames(),
		MaxDelaySamples: e.maxDelaySamples,
		Smoothing:       e.config.Smoothing.String(),
		MemoryUsage: n*int64(ringCapacity)*sampleBytes +
			stereoChannels*n*filterBytes +
			int64(e.config.MaxBlockFrames)*sampleBytes,
		SIMDType: cpu.Info(),
	}
}
