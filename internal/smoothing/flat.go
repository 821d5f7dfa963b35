package smoothing

// FlatFilter is a box-window moving average.
type FlatFilter struct {
	history
	window int
	sum    int64
	scale  float64
}

var _ Filter = (*FlatFilter)(nil)

// Configure implements Filter.
func (f *FlatFilter) Configure(window int) int {
	f.window = f.clampWindow(window)
	f.scale = float64(f.window)
	f.Reset()
	return f.window
}

// Push implements Filter.
func (f *FlatFilter) Push(value, count int) {
	for range count {
		f.sum += int64(value - f.tap(f.window))
		f.data[f.writePos] = value
		f.out[f.writePos] = float64(f.sum) / f.scale
		f.advance()
	}
}

// Fill implements Filter.
func (f *FlatFilter) Fill(value int) {
	f.sum = int64(value) * int64(f.window)
	f.fill(value, float64(f.sum)/f.scale)
}

// Reset implements Filter.
func (f *FlatFilter) Reset() {
	f.clear()
	f.sum = 0
}

// WindowSize implements Filter.
func (f *FlatFilter) WindowSize() int {
	return f.window
}
