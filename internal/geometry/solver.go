// Package geometry solves the source layout of the panner: where each
// source sits on the circle around the listener, how far it is from each
// ear, and the resulting per-ear sample delay and gain.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Ear indices for the per-ear tables of a Layout.
const (
	Left  = 0
	Right = 1
	Ears  = 2
)

const (
	// DefaultSpeedOfSound is the speed of sound in air in m/s.
	DefaultSpeedOfSound = 343.2

	// MinRadius replaces a radius that is zero or negative.
	MinRadius = 0.01

	// MinDistance is the floor for source to ear distances, keeping the
	// inverse-distance gain finite when a source sits on an ear.
	MinDistance = 0.01
)

// ErrInvalidSolver indicates solver construction parameters out of range.
var ErrInvalidSolver = errors.New("invalid geometry solver parameters")

// Params are the scalar controls the layout is derived from.
type Params struct {
	Radius        float64 // meters
	SourceSpacing float64 // chord distance between adjacent sources, meters
	EarSpacing    float64 // meters
	Rotation      float64 // degrees, positive turns the ensemble to the right
	RelativeDelay bool    // shift delays so the earliest arrival is zero
}

// Layout holds the solved geometry in struct-of-arrays form. The per-ear
// tables are indexed [ear][source].
type Layout struct {
	Angle       []float64 // radians, 0 is straight ahead, positive is right
	X, Y        []float64
	Distance    [Ears][]float64
	Delay       [Ears][]int
	Attenuation [Ears][]float64

	// Backing stores so both ears can be processed as one vector.
	distances []float64
	gains     []float64
}

// NewLayout allocates a layout for the given number of sources.
func NewLayout(sources int) *Layout {
	l := &Layout{
		Angle:     make([]float64, sources),
		X:         make([]float64, sources),
		Y:         make([]float64, sources),
		distances: make([]float64, Ears*sources),
		gains:     make([]float64, Ears*sources),
	}
	delays := make([]int, Ears*sources)
	for ear := range Ears {
		l.Distance[ear] = l.distances[ear*sources : (ear+1)*sources]
		l.Attenuation[ear] = l.gains[ear*sources : (ear+1)*sources]
		l.Delay[ear] = delays[ear*sources : (ear+1)*sources]
	}
	return l
}

// Sources returns the number of sources the layout was allocated for.
func (l *Layout) Sources() int {
	return len(l.Angle)
}

// Solver maps Params onto a Layout for a fixed source count and sample rate.
// Solve does not allocate, so a Solver can be used from a render callback.
type Solver struct {
	sources         int
	samplesPerMeter float64
}

// NewSolver creates a solver. speedOfSound <= 0 selects DefaultSpeedOfSound.
func NewSolver(sources, sampleRate int, speedOfSound float64) (*Solver, error) {
	if sources < 1 {
		return nil, fmt.Errorf("%w: source count must be positive: %d", ErrInvalidSolver, sources)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive: %d", ErrInvalidSolver, sampleRate)
	}
	if speedOfSound <= 0 {
		speedOfSound = DefaultSpeedOfSound
	}
	return &Solver{
		sources:         sources,
		samplesPerMeter: float64(sampleRate) / speedOfSound,
	}, nil
}

// DelaySamples converts a propagation distance to a whole number of samples.
func (s *Solver) DelaySamples(distance float64) int {
	return int(math.Round(distance * s.samplesPerMeter))
}

// MaxDelaySamples returns the largest delay any layout within the given
// bounds can produce. The farthest a source can be from an ear is the
// radius plus half the ear spacing; the full ear spacing is used as margin.
func (s *Solver) MaxDelaySamples(maxRadius, maxEarSpacing float64) int {
	return int(math.Ceil((max(maxRadius, MinRadius) + max(maxEarSpacing, 0)) * s.samplesPerMeter))
}

// Solve writes the layout for p into dst.
//
// Out of range inputs are corrected rather than rejected: a non-positive
// radius becomes MinRadius, spacing is clamped to [0, 2r] and a negative ear
// spacing is treated as zero.
func (s *Solver) Solve(dst *Layout, p Params) {
	n := s.sources
	r := p.Radius
	if !(r > 0) {
		r = MinRadius
	}
	spacing := min(max(p.SourceSpacing, 0), 2*r)
	halfEar := max(p.EarSpacing, 0) / 2

	alpha := 2 * math.Asin(spacing/(2*r))
	placeAngles(dst.Angle, alpha, p.Rotation*math.Pi/180)

	for i, a := range dst.Angle {
		x := r * math.Sin(a)
		y := r * math.Cos(a)
		dst.X[i] = x
		dst.Y[i] = y
		dst.Distance[Left][i] = max(math.Hypot(x+halfEar, y), MinDistance)
		dst.Distance[Right][i] = max(math.Hypot(x-halfEar, y), MinDistance)
	}

	offset := 0
	if p.RelativeDelay {
		// Rounding is monotone, so the nearest distance gives the minimum delay.
		offset = s.DelaySamples(floats.Min(dst.distances))
	}

	// Gains are normalised by the geometric mean so their product is one.
	// The mean is taken in the log domain; the raw product under- or
	// overflows for large ensembles.
	logSum := 0.0
	for ear := range Ears {
		for i := range n {
			d := dst.Distance[ear][i]
			dst.Delay[ear][i] = s.DelaySamples(d) - offset
			g := r / d
			dst.Attenuation[ear][i] = g
			logSum += math.Log(g)
		}
	}
	floats.Scale(math.Exp(-logSum/float64(Ears*n)), dst.gains)
}

// placeAngles lays sources out symmetrically around 0 with angular step
// alpha, then rotates the whole set. Even counts straddle the centre at
// half steps; odd counts put one source at the centre.
func placeAngles(angles []float64, alpha, rotation float64) {
	n := len(angles)
	if n%2 == 0 {
		mid := n / 2
		for i := range mid {
			a := (0.5 + float64(i)) * alpha
			angles[mid+i] = a
			angles[mid-1-i] = -a
		}
	} else {
		mid := (n - 1) / 2
		angles[mid] = 0
		for i := 1; i <= mid; i++ {
			a := float64(i) * alpha
			angles[mid+i] = a
			angles[mid-i] = -a
		}
	}
	for i := range angles {
		angles[i] += rotation
	}
}

// Solve is a convenience wrapper that allocates a solver and a layout.
func Solve(sources, sampleRate int, p Params) (*Layout, error) {
	s, err := NewSolver(sources, sampleRate, DefaultSpeedOfSound)
	if err != nil {
		return nil, err
	}
	l := NewLayout(sources)
	s.Solve(l, p)
	return l, nil
}
