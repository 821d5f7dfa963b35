package analysis

import (
	"math"

	"github.com/tphakala/go-ensemble-pan/internal/simdops"
)

// silenceDB is reported for an all-zero signal.
const silenceDB = -math.MaxFloat64

// Level summarises the amplitude of a signal.
type Level struct {
	RMS  float64
	Peak float64
}

// PeakDB returns the peak level in dBFS.
func (l Level) PeakDB() float64 {
	return ToDB(l.Peak)
}

// RMSDB returns the RMS level in dBFS.
func (l Level) RMSDB() float64 {
	return ToDB(l.RMS)
}

// Measure returns the RMS and absolute peak of x.
func Measure[F simdops.Float](x []F) Level {
	if len(x) == 0 {
		return Level{}
	}
	ops := simdops.For[F]()
	energy := float64(ops.SumSquares(x))

	peak := 0.0
	for _, v := range x {
		peak = max(peak, math.Abs(float64(v)))
	}
	return Level{
		RMS:  math.Sqrt(energy / float64(len(x))),
		Peak: peak,
	}
}

// ToDB converts a linear amplitude to decibels.
func ToDB(amplitude float64) float64 {
	if amplitude <= 0 {
		return silenceDB
	}
	return 20 * math.Log10(amplitude)
}

// FromDB converts decibels to a linear amplitude.
func FromDB(db float64) float64 {
	return math.Pow(10, db/20)
}
