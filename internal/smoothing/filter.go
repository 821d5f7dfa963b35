// Package smoothing implements sliding-window filters that turn a stream of
// integer delay targets into a smoothed stream of fractional delays.
//
// Both variants do O(1) work per pushed value regardless of window size.
// Pushed values land in a fixed-capacity history; the normalised output for
// every pushed position is stored alongside so a consumer can pop it later
// through an independent read cursor.
package smoothing

import (
	"errors"
	"fmt"
)

// Kind selects the filter kernel.
type Kind int

const (
	// Triangular weights the window with a rising-then-falling linear
	// ramp (Bartlett kernel). The output is C1-continuous across a step.
	Triangular Kind = iota

	// Flat weights every value in the window equally (moving average).
	Flat
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Triangular:
		return "triangular"
	case Flat:
		return "flat"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Filter limits.
const (
	// MinCapacity is the smallest history a filter can be built on.
	MinCapacity = 4

	// MinWindow is the smallest (even) window size.
	MinWindow = 2
)

// ErrInvalidFilter indicates a filter that cannot be constructed.
var ErrInvalidFilter = errors.New("invalid smoothing filter")

// Filter is a sliding-window smoother over pushed integer values.
//
// Invariant: the output stored for a pushed position equals the configured
// weighted sum of exactly the last WindowSize() values pushed up to and
// including that position, scaled by the kernel's normalisation constant.
// Positions pushed before the last Configure/Reset see zeros as history.
type Filter interface {
	// Configure rounds window down to an even value below the capacity
	// (and not below MinWindow), resets the filter and returns the size
	// actually applied.
	Configure(window int) int

	// Push appends count repetitions of value. count < 1 is a no-op.
	Push(value, count int)

	// Pop returns the output at the read cursor and advances it.
	Pop() float64

	// Peek returns the output at offset from the read cursor without
	// advancing it. Offsets wrap in both directions.
	Peek(offset int) float64

	// Fill sets the whole history to value, as if value had been pushed
	// at least a full window of times. Cursors are left in place.
	Fill(value int)

	// Reset zeroes history, sums and both cursors.
	Reset()

	// WindowSize returns the applied window size.
	WindowSize() int

	// Capacity returns the history length.
	Capacity() int
}

// New creates a filter of the given kind. The window is adjusted as
// described on Configure; windows below MinWindow are rejected here so
// that a misconfiguration never reaches the render path.
func New(kind Kind, capacity, window int) (Filter, error) {
	if capacity < MinCapacity {
		return nil, fmt.Errorf("%w: capacity must be >= %d: %d", ErrInvalidFilter, MinCapacity, capacity)
	}
	if window < MinWindow {
		return nil, fmt.Errorf("%w: window must be >= %d: %d", ErrInvalidFilter, MinWindow, window)
	}

	switch kind {
	case Triangular:
		f := &TriangularFilter{history: newHistory(capacity)}
		f.Configure(window)
		return f, nil
	case Flat:
		f := &FlatFilter{history: newHistory(capacity)}
		f.Configure(window)
		return f, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %v", ErrInvalidFilter, kind)
	}
}

// history is the storage shared by both kernels.
type history struct {
	data     []int
	out      []float64
	capacity int
	writePos int
	readPos  int
}

func newHistory(capacity int) history {
	return history{
		data:     make([]int, capacity),
		out:      make([]float64, capacity),
		capacity: capacity,
	}
}

// clampWindow applies the Configure rounding rule.
func (h *history) clampWindow(window int) int {
	if window >= h.capacity {
		window = h.capacity - 1
	}
	if window%2 != 0 {
		window--
	}
	if window < MinWindow {
		window = MinWindow
	}
	return window
}

// tap returns the value pushed back positions before the write cursor.
// back must be in [1, capacity].
func (h *history) tap(back int) int {
	i := h.writePos - back
	if i < 0 {
		i += h.capacity
	}
	return h.data[i]
}

func (h *history) advance() {
	h.writePos++
	if h.writePos == h.capacity {
		h.writePos = 0
	}
}

// Pop implements Filter.
func (h *history) Pop() float64 {
	if h.readPos == h.capacity {
		h.readPos = 0
	}
	v := h.out[h.readPos]
	h.readPos++
	return v
}

// Peek implements Filter.
func (h *history) Peek(offset int) float64 {
	i := (h.readPos + offset) % h.capacity
	if i < 0 {
		i += h.capacity
	}
	return h.out[i]
}

// Capacity implements Filter.
func (h *history) Capacity() int {
	return h.capacity
}

func (h *history) clear() {
	clear(h.data)
	clear(h.out)
	h.writePos = 0
	h.readPos = 0
}

func (h *history) fill(value int, scaled float64) {
	for i := range h.data {
		h.data[i] = value
		h.out[i] = scaled
	}
}
