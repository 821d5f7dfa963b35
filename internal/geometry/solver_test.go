package geometry

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/tphakala/go-ensemble-pan/internal/testutil"
)

const testRate = 48000

var defaultParams = Params{
	Radius:        5,
	SourceSpacing: 1,
	EarSpacing:    0.149,
}

func solve(t *testing.T, sources int, p Params) *Layout {
	t.Helper()
	l, err := Solve(sources, testRate, p)
	require.NoError(t, err)
	return l
}

func allGains(l *Layout) []float64 {
	return slices.Concat(l.Attenuation[Left], l.Attenuation[Right])
}

func TestNewSolver_Validation(t *testing.T) {
	_, err := NewSolver(0, testRate, 0)
	require.ErrorIs(t, err, ErrInvalidSolver)

	_, err = NewSolver(4, 0, 0)
	require.ErrorIs(t, err, ErrInvalidSolver)

	s, err := NewSolver(4, testRate, 0)
	require.NoError(t, err)
	assert.Equal(t, 140, s.DelaySamples(1), "1 m at 343.2 m/s and 48 kHz")
}

func TestSolve_AttenuationProductIsOne(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for range 200 {
		n := 1 + rng.IntN(12)
		p := Params{
			Radius:        0.1 + rng.Float64()*19.9,
			SourceSpacing: rng.Float64() * 10,
			EarSpacing:    rng.Float64() * 0.5,
			Rotation:      rng.Float64()*720 - 360,
			RelativeDelay: rng.IntN(2) == 1,
		}
		l := solve(t, n, p)
		assert.InDelta(t, 1.0, floats.Prod(allGains(l)), 1e-9, "%d sources %+v", n, p)
	}
}

func TestSolve_AttenuationProductLargeEnsemble(t *testing.T) {
	// The raw product of 512 small gains underflows; the log of it must not.
	l := solve(t, 256, Params{Radius: 0.05, SourceSpacing: 0.01, EarSpacing: 1})

	logSum := 0.0
	for _, g := range allGains(l) {
		require.Greater(t, g, 0.0)
		logSum += math.Log(g)
	}
	assert.InDelta(t, 0.0, logSum, 1e-9)
}

func TestSolve_DelayMonotonicInDistance(t *testing.T) {
	s, err := NewSolver(1, testRate, DefaultSpeedOfSound)
	require.NoError(t, err)
	l := NewLayout(1)

	var left, right []float64
	for r := 0.5; r <= 20; r += 0.05 {
		s.Solve(l, Params{Radius: r, EarSpacing: 0.2, Rotation: 30})
		left = append(left, float64(l.Delay[Left][0]))
		right = append(right, float64(l.Delay[Right][0]))
	}
	testutil.AssertMonotonic(t, left)
	testutil.AssertMonotonic(t, right)

	var delays []float64
	for d := 0.0; d < 5; d += 0.001 {
		delays = append(delays, float64(s.DelaySamples(d)))
	}
	testutil.AssertMonotonic(t, delays)
}

func TestSolve_RelativeDelay(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 8, 9} {
		abs := solve(t, n, defaultParams)
		p := defaultParams
		p.RelativeDelay = true
		rel := solve(t, n, p)

		all := slices.Concat(rel.Delay[Left], rel.Delay[Right])
		assert.Equal(t, 0, slices.Min(all), "%d sources", n)

		// Differences between delays are unchanged.
		shift := abs.Delay[Left][0] - rel.Delay[Left][0]
		assert.Positive(t, shift)
		for ear := range Ears {
			for i := range n {
				assert.Equal(t, shift, abs.Delay[ear][i]-rel.Delay[ear][i])
			}
		}
	}
}

func TestSolve_FourSourceMirror(t *testing.T) {
	l := solve(t, 4, defaultParams)

	alpha := 2 * math.Asin(0.1)
	assert.InDeltaSlice(t, []float64{-1.5 * alpha, -0.5 * alpha, 0.5 * alpha, 1.5 * alpha}, l.Angle, 1e-12)

	for i := range 2 {
		j := 3 - i
		assert.Equal(t, l.Delay[Left][i], l.Delay[Right][j], "pair %d/%d", i, j)
		assert.Equal(t, l.Delay[Right][i], l.Delay[Left][j], "pair %d/%d", i, j)
		assert.InDelta(t, l.Attenuation[Left][i], l.Attenuation[Right][j], 1e-12)
		assert.InDelta(t, l.Attenuation[Right][i], l.Attenuation[Left][j], 1e-12)
	}

	// Leftmost source reaches the left ear first.
	assert.Less(t, l.Delay[Left][0], l.Delay[Right][0])
	assert.Greater(t, l.Attenuation[Left][0], l.Attenuation[Right][0])

	sum := func(s []int) (n int) {
		for _, v := range s {
			n += v
		}
		return n
	}
	assert.Equal(t, sum(l.Delay[Left]), sum(l.Delay[Right]), "no net bias")
}

func TestSolve_OddLayout(t *testing.T) {
	l := solve(t, 5, defaultParams)

	alpha := 2 * math.Asin(0.1)
	assert.InDeltaSlice(t, []float64{-2 * alpha, -alpha, 0, alpha, 2 * alpha}, l.Angle, 1e-12)
	assert.Equal(t, l.Delay[Left][2], l.Delay[Right][2], "centre source is equidistant")
	assert.InDelta(t, 5.0, l.Y[2], 1e-12)
}

func TestSolve_Rotation(t *testing.T) {
	p := defaultParams
	p.Rotation = 90
	l := solve(t, 1, p)

	assert.InDelta(t, math.Pi/2, l.Angle[0], 1e-12)
	assert.InDelta(t, 5.0, l.X[0], 1e-12)
	assert.InDelta(t, 0.0, l.Y[0], 1e-12)
	assert.InDelta(t, 5-0.149/2, l.Distance[Right][0], 1e-12)
	assert.InDelta(t, 5+0.149/2, l.Distance[Left][0], 1e-12)
	assert.Less(t, l.Delay[Right][0], l.Delay[Left][0])
	assert.Greater(t, l.Attenuation[Right][0], l.Attenuation[Left][0])
}

func TestSolve_ClampsInputs(t *testing.T) {
	tests := []struct {
		name string
		p    Params
	}{
		{"zero_radius", Params{Radius: 0, SourceSpacing: 1, EarSpacing: 0.149}},
		{"negative_radius", Params{Radius: -3, SourceSpacing: 1, EarSpacing: 0.149}},
		{"nan_radius", Params{Radius: math.NaN(), SourceSpacing: 1, EarSpacing: 0.149}},
		{"spacing_beyond_diameter", Params{Radius: 1, SourceSpacing: 50, EarSpacing: 0.149}},
		{"negative_spacing", Params{Radius: 1, SourceSpacing: -1, EarSpacing: 0.149}},
		{"negative_ears", Params{Radius: 1, SourceSpacing: 1, EarSpacing: -1}},
		{"source_on_ear", Params{Radius: 0.5, SourceSpacing: 0, EarSpacing: 1, Rotation: 90}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := solve(t, 4, tt.p)
			testutil.AssertNoNaNOrInf(t, l.Angle)
			testutil.AssertNoNaNOrInf(t, allGains(l))
			testutil.AssertAllInRange(t, l.distances, MinDistance, math.MaxFloat64)
			for ear := range Ears {
				for _, d := range l.Delay[ear] {
					assert.GreaterOrEqual(t, d, 0)
				}
			}
		})
	}
}

func TestSolve_SpacingSaturatesAtDiameter(t *testing.T) {
	l := solve(t, 2, Params{Radius: 2, SourceSpacing: 100})
	assert.InDeltaSlice(t, []float64{-math.Pi / 2, math.Pi / 2}, l.Angle, 1e-12)
}

func TestMaxDelaySamples_BoundsEveryLayout(t *testing.T) {
	s, err := NewSolver(6, testRate, DefaultSpeedOfSound)
	require.NoError(t, err)
	limit := s.MaxDelaySamples(20, 1)
	l := NewLayout(6)

	for _, rot := range []float64{0, 45, 90, 180, 270} {
		s.Solve(l, Params{Radius: 20, SourceSpacing: 3, EarSpacing: 1, Rotation: rot})
		for ear := range Ears {
			assert.LessOrEqual(t, slices.Max(l.Delay[ear]), limit)
		}
	}
}

func TestSolver_SolveDoesNotAllocate(t *testing.T) {
	s, err := NewSolver(8, testRate, DefaultSpeedOfSound)
	require.NoError(t, err)
	l := NewLayout(8)

	allocs := testing.AllocsPerRun(100, func() {
		s.Solve(l, defaultParams)
	})
	assert.Zero(t, allocs)
}

func BenchmarkSolve(b *testing.B) {
	s, err := NewSolver(16, testRate, DefaultSpeedOfSound)
	require.NoError(b, err)
	l := NewLayout(16)

	b.ReportAllocs()
	for b.Loop() {
		s.Solve(l, defaultParams)
	}
}
