package panner

import (
	"errors"
	"fmt"
	"math"

	"github.com/tphakala/go-ensemble-pan/internal/geometry"
	"github.com/tphakala/go-ensemble-pan/internal/smoothing"
)

// Config holds the construction-time parameters of an Engine. Everything
// that sizes a buffer lives here; nothing in it can change while rendering.
type Config struct {
	// SampleRate is the render sample rate in Hz.
	SampleRate int

	// Sources is the number of mono input channels.
	Sources int

	// MaxBlockFrames is the longest block rendered in one pass. Longer
	// Render calls are split into consecutive sub-blocks.
	MaxBlockFrames int

	// BatchSize is the number of frames that share one smoothed delay
	// value while ramping. Zero derives it from the sample rate with
	// BatchSizeFor. A non-zero value must be a power of two dividing
	// the sample rate.
	BatchSize int

	// MaxRadius and MaxEarSpacing bound the geometry in meters. Controls
	// outside these bounds are clamped; the ring buffers are sized so the
	// largest reachable delay always fits.
	MaxRadius     float64
	MaxEarSpacing float64

	// SpeedOfSound in m/s.
	SpeedOfSound float64

	// Smoothing selects the delay smoothing kernel used while ramping.
	Smoothing SmoothingKind
}

// DefaultConfig returns a configuration with the documented defaults.
func DefaultConfig(sampleRate, sources int) *Config {
	return &Config{
		SampleRate:     sampleRate,
		Sources:        sources,
		MaxBlockFrames: DefaultMaxBlockFrames,
		MaxRadius:      DefaultMaxRadius,
		MaxEarSpacing:  DefaultMaxEarSpacing,
		SpeedOfSound:   geometry.DefaultSpeedOfSound,
		Smoothing:      SmoothingTriangular,
	}
}

// SmoothingKind selects the delay smoothing kernel.
type SmoothingKind int

const (
	// SmoothingTriangular weights the window with a Bartlett kernel.
	// Transitions are C1-continuous and take two windows to settle fully.
	SmoothingTriangular SmoothingKind = iota

	// SmoothingFlat is a plain moving average over the window.
	SmoothingFlat
)

// String implements fmt.Stringer.
func (k SmoothingKind) String() string {
	return k.kind().String()
}

func (k SmoothingKind) kind() smoothing.Kind {
	switch k {
	case SmoothingFlat:
		return smoothing.Flat
	case SmoothingTriangular:
		return smoothing.Triangular
	default:
		return smoothing.Kind(k)
	}
}

// ParseSmoothingKind maps "triangular" or "flat" to a SmoothingKind.
func ParseSmoothingKind(s string) (SmoothingKind, error) {
	switch s {
	case "triangular", "tri":
		return SmoothingTriangular, nil
	case "flat", "box":
		return SmoothingFlat, nil
	default:
		return 0, fmt.Errorf("%w: unknown smoothing kind %q", ErrInvalidConfig, s)
	}
}

// Common errors returned by the panner.
var (
	// ErrInvalidConfig indicates invalid configuration parameters.
	ErrInvalidConfig = errors.New("invalid panner configuration")

	// ErrSourceCount indicates a source buffer count that does not match
	// the configured number of sources.
	ErrSourceCount = errors.New("source count mismatch")

	// ErrUnsupportedFormat indicates an audio file that cannot be decoded.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrInvalidScene indicates a scene description that fails validation.
	ErrInvalidScene = errors.New("invalid scene")

	// ErrPlaybackUnavailable indicates that live playback is not compiled in
	// or no audio device could be opened.
	ErrPlaybackUnavailable = errors.New("playback unavailable")
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive", ErrInvalidConfig)
	}

	if c.SampleRate > maxSampleRate {
		return fmt.Errorf("%w: sample rate %d exceeds %d", ErrInvalidConfig, c.SampleRate, maxSampleRate)
	}

	if c.Sources < 1 {
		return fmt.Errorf("%w: sources must be at least 1", ErrInvalidConfig)
	}

	if c.Sources > maxSources {
		return fmt.Errorf("%w: too many sources (max %d)", ErrInvalidConfig, maxSources)
	}

	if c.MaxBlockFrames < 1 {
		return fmt.Errorf("%w: max block frames must be at least 1", ErrInvalidConfig)
	}

	if c.MaxBlockFrames > maxBlockFrames {
		return fmt.Errorf("%w: max block frames %d exceeds %d", ErrInvalidConfig, c.MaxBlockFrames, maxBlockFrames)
	}

	if !(c.MaxRadius > 0) || math.IsInf(c.MaxRadius, 0) {
		return fmt.Errorf("%w: max radius must be positive and finite", ErrInvalidConfig)
	}

	if !(c.MaxEarSpacing >= 0) || math.IsInf(c.MaxEarSpacing, 0) {
		return fmt.Errorf("%w: max ear spacing must be non-negative and finite", ErrInvalidConfig)
	}

	if !(c.SpeedOfSound > 0) || math.IsInf(c.SpeedOfSound, 0) {
		return fmt.Errorf("%w: speed of sound must be positive and finite", ErrInvalidConfig)
	}

	// The rings hold the longest possible delay; bound it before anything
	// is allocated.
	if d := (c.MaxRadius + c.MaxEarSpacing) * float64(c.SampleRate) / c.SpeedOfSound; !(d <= maxRingFrames) {
		return fmt.Errorf("%w: max delay of %.0f samples exceeds %d (reduce max radius or ear spacing)",
			ErrInvalidConfig, d, maxRingFrames)
	}

	if c.Smoothing != SmoothingTriangular && c.Smoothing != SmoothingFlat {
		return fmt.Errorf("%w: unknown smoothing kind %d", ErrInvalidConfig, int(c.Smoothing))
	}

	if c.BatchSize != 0 {
		if c.BatchSize < 0 || c.BatchSize&(c.BatchSize-1) != 0 || c.SampleRate%c.BatchSize != 0 {
			return fmt.Errorf("%w: batch size %d must be a power of two dividing the sample rate",
				ErrInvalidConfig, c.BatchSize)
		}
	}

	return nil
}

// BatchSizeFor returns the smoothing granularity for a sample rate: the
// largest power of two up to defaultBatchSize that divides the rate.
func BatchSizeFor(sampleRate int) int {
	batch := defaultBatchSize
	for batch > 1 && sampleRate%batch != 0 {
		batch /= 2
	}
	return batch
}

// Controls are the per-block control inputs. They are plain values read
// once at the top of every block and compared with the last applied set.
type Controls struct {
	// Radius of the source circle in meters.
	Radius float64

	// SourceSpacing is the chord distance between adjacent sources in meters.
	SourceSpacing float64

	// EarSpacing is the distance between the two ears in meters.
	EarSpacing float64

	// Rotation turns the whole ensemble, in degrees. Positive is to the right.
	Rotation float64

	// Window is the smoothing window length in seconds. Values <= 0 select
	// DefaultWindowSeconds.
	Window float64

	// RelativeDelay > 0.5 removes the common propagation delay so the
	// earliest arrival has zero delay.
	RelativeDelay float64
}

// DefaultControls returns the default control values.
func DefaultControls() Controls {
	return Controls{
		Radius:        DefaultRadius,
		SourceSpacing: DefaultSourceSpacing,
		EarSpacing:    DefaultEarSpacing,
		Rotation:      0,
		Window:        DefaultWindowSeconds,
		RelativeDelay: 0,
	}
}

// sanitize replaces non-finite values with defaults and clamps the
// geometry to the bounds the engine was sized for.
func (c Controls) sanitize(cfg *Config) Controls {
	d := DefaultControls()
	out := Controls{
		Radius:        finiteOr(c.Radius, d.Radius),
		SourceSpacing: max(finiteOr(c.SourceSpacing, d.SourceSpacing), 0),
		EarSpacing:    finiteOr(c.EarSpacing, d.EarSpacing),
		Rotation:      math.Mod(finiteOr(c.Rotation, 0), fullCircleDegrees),
		Window:        finiteOr(c.Window, d.Window),
		RelativeDelay: finiteOr(c.RelativeDelay, 0),
	}

	if out.Radius <= 0 {
		out.Radius = geometry.MinRadius
	}
	out.Radius = min(out.Radius, cfg.MaxRadius)
	out.EarSpacing = min(max(out.EarSpacing, 0), cfg.MaxEarSpacing)
	if out.Window <= 0 {
		out.Window = DefaultWindowSeconds
	}
	return out
}

// params converts sanitised controls to solver input.
func (c Controls) params() geometry.Params {
	return geometry.Params{
		Radius:        c.Radius,
		SourceSpacing: c.SourceSpacing,
		EarSpacing:    c.EarSpacing,
		Rotation:      c.Rotation,
		RelativeDelay: c.RelativeDelay > relativeDelayThreshold,
	}
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// State is the delay-application mode of the engine.
type State int

const (
	// Ramping reads the ring buffers at smoothed, fractional delays.
	Ramping State = iota

	// Steady reads the ring buffers at the solved integer delays.
	Steady
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Ramping:
		return "RAMPING"
	case Steady:
		return "STEADY"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// SourceInfo describes one solved source position.
type SourceInfo struct {
	Index        int
	AngleDegrees float64
	X, Y         float64

	DistanceLeft, DistanceRight       float64
	DelayLeft, DelayRight             int
	AttenuationLeft, AttenuationRight float64
}

// Info returns information about an engine's sizing.
type Info struct {
	// SampleRate and Sources echo the configuration.
	SampleRate int
	Sources    int

	// BatchSize is the number of frames sharing one smoothed delay.
	BatchSize int

	// RingCapacity is the per-source history length in samples.
	RingCapacity int

	// FilterCapacity is the smoothing history length in batches.
	FilterCapacity int

	// WindowBatches is the applied smoothing window in batches.
	WindowBatches int

	// SettleFrames is how long the engine ramps after a change.
	SettleFrames int

	// MaxDelaySamples is the largest delay the configured bounds allow.
	MaxDelaySamples int

	// Smoothing names the smoothing kernel.
	Smoothing string

	// MemoryUsage is the approximate memory usage in bytes.
	MemoryUsage int64

	// SIMDType describes the SIMD instruction set in use.
	SIMDType string
}
