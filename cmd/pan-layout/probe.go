package main

import (
	"math"

	panner "github.com/tphakala/go-ensemble-pan"
	"github.com/tphakala/go-ensemble-pan/internal/analysis"
)

// solve renders a single silent frame so the engine applies ctl, then
// returns the layout.
func solve(e *panner.Engine[float64], ctl panner.Controls) []panner.SourceInfo {
	inputs := silence(e.Sources(), 1)
	var l, r [1]float64
	e.Render(ctl, inputs, l[:], r[:])
	return e.Layout()
}

type probeResult struct {
	arrivalLeft, arrivalRight int
	lag                       int
}

func (p probeResult) matches(s panner.SourceInfo) bool {
	return p.arrivalLeft == s.DelayLeft &&
		p.arrivalRight == s.DelayRight &&
		p.lag == s.DelayRight-s.DelayLeft
}

// probeSource renders a unit impulse through one source and locates it in
// both output channels.
func probeSource(cfg *panner.Config, ctl panner.Controls, source int) (probeResult, error) {
	e, err := panner.NewEngine[float64](cfg)
	if err != nil {
		return probeResult{}, err
	}

	n := e.GetInfo().MaxDelaySamples + probeMarginFrames
	inputs := silence(cfg.Sources, n)
	inputs[source][0] = 1
	left := make([]float64, n)
	right := make([]float64, n)
	e.Render(ctl, inputs, left, right)

	maxLag := int(math.Ceil(cfg.MaxEarSpacing*float64(cfg.SampleRate)/cfg.SpeedOfSound)) + probeLagGuard
	return probeResult{
		arrivalLeft:  peakIndex(left),
		arrivalRight: peakIndex(right),
		lag:          analysis.InterauralLag(left, right, maxLag),
	}, nil
}

func peakIndex(x []float64) int {
	best := 0
	for i, v := range x {
		if math.Abs(v) > math.Abs(x[best]) {
			best = i
		}
	}
	return best
}

func silence(sources, n int) [][]float64 {
	out := make([][]float64, sources)
	for i := range out {
		out[i] = make([]float64, n)
	}
	return out
}
