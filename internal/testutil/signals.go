package testutil

import "math"

// Sine returns n samples of a unit sine at freq Hz.
func Sine[F ~float32 | ~float64](n int, freq, sampleRate float64) []F {
	out := make([]F, n)
	for i := range out {
		out[i] = F(math.Sin(2 * math.Pi * freq * float64(i) / sampleRate))
	}
	return out
}

// Impulse returns n zero samples with a single 1 at position at.
func Impulse[F ~float32 | ~float64](n, at int) []F {
	out := make([]F, n)
	if at >= 0 && at < n {
		out[at] = 1
	}
	return out
}

// Constant returns n samples of value v.
func Constant[F ~float32 | ~float64](n int, v F) []F {
	out := make([]F, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Silence returns channels zeroed buffers of n samples each.
func Silence[F ~float32 | ~float64](channels, n int) [][]F {
	out := make([][]F, channels)
	for ch := range out {
		out[ch] = make([]F, n)
	}
	return out
}

// MaxAbs returns the largest absolute sample value.
func MaxAbs[F ~float32 | ~float64](s []F) F {
	var m F
	for _, v := range s {
		if v < 0 {
			v = -v
		}
		m = max(m, v)
	}
	return m
}
