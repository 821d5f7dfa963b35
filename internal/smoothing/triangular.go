package smoothing

// TriangularFilter is a Bartlett-weighted moving average.
//
// It keeps two running sums. The slope accumulator is the difference of
// two box sums of length half+1 spaced half positions apart, updated from
// four taps: the new value and the values window+1, half+1 and half
// positions back. Accumulating the slope yields a sum whose kernel rises
// 1, 2, ..., half, then falls half, ..., 1 across exactly window
// positions. Its total weight half*(half+1) is the normalisation constant.
type TriangularFilter struct {
	history
	window int
	half   int
	slope  int64
	sum    int64
	scale  float64
}

var _ Filter = (*TriangularFilter)(nil)

// Configure implements Filter.
func (f *TriangularFilter) Configure(window int) int {
	f.window = f.clampWindow(window)
	f.half = f.window / 2
	f.scale = float64((1 + f.half) * f.half)
	f.Reset()
	return f.window
}

// Push implements Filter.
func (f *TriangularFilter) Push(value, count int) {
	for range count {
		f.slope += int64(value + f.tap(f.window+1) - f.tap(f.half+1) - f.tap(f.half))
		f.data[f.writePos] = value
		f.sum += f.slope
		f.out[f.writePos] = float64(f.sum) / f.scale
		f.advance()
	}
}

// Fill implements Filter.
func (f *TriangularFilter) Fill(value int) {
	f.slope = 0
	f.sum = int64(value) * int64((1+f.half)*f.half)
	f.fill(value, float64(f.sum)/f.scale)
}

// Reset implements Filter.
func (f *TriangularFilter) Reset() {
	f.clear()
	f.slope = 0
	f.sum = 0
}

// WindowSize implements Filter.
func (f *TriangularFilter) WindowSize() int {
	return f.window
}
