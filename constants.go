package panner

// Source limits
const (
	stereoChannels = 2   // Output channel count
	maxSources     = 256 // Maximum supported source count
)

// Allocation limits checked by Config.Validate
const (
	maxSampleRate  = 768000
	maxBlockFrames = 1 << 16
	maxRingFrames  = 1 << 20 // Longest delay a ring buffer may need to hold
)

// Configuration defaults
const (
	// DefaultMaxBlockFrames is the default sub-block length in frames.
	DefaultMaxBlockFrames = 4096

	// DefaultMaxRadius bounds the source circle radius in meters.
	DefaultMaxRadius = 20.0

	// DefaultMaxEarSpacing bounds the ear spacing in meters.
	DefaultMaxEarSpacing = 1.0

	defaultBatchSize = 8 // Largest smoothing batch, halved until it divides the rate
)

// Control defaults
const (
	DefaultRadius        = 5.0   // meters
	DefaultSourceSpacing = 1.0   // meters
	DefaultEarSpacing    = 0.149 // meters
	DefaultWindowSeconds = 1.0   // seconds

	relativeDelayThreshold = 0.5
	fullCircleDegrees      = 360.0
)

// Buffer sizing
const (
	filterSecondsCapacity = 2 // Smoothing history covers this many seconds
	settleGuardBatches    = 2 // Extra batches past the window before going steady
	interpolationGuard    = 2 // Extra ring slots for the interpolation tap
	ringDelayMultiplier   = 2 // Ring holds at least twice the maximum delay
)
