// Package ringbuf implements the fixed-capacity circular sample store that
// backs every source channel of the panner.
//
// Unlike a FIFO, the buffer has no read cursor. All reads are lookback
// reads expressed as an age relative to the live write position, so a
// reader can tap the same history at any number of delays at once.
package ringbuf

import (
	"fmt"
	"math"

	"github.com/tphakala/go-ensemble-pan/internal/simdops"
)

// minCapacity is the smallest usable capacity: an interpolated read at
// age k touches age k+1 as well.
const minCapacity = 2

// Buffer is a circular store holding exactly the last Capacity() samples
// written to it. The capacity never changes after construction.
//
// Buffer is not safe for concurrent use; it is owned by a single render
// callback.
type Buffer[F simdops.Float] struct {
	data     []F
	capacity int
	writePos int
}

// New creates a zeroed buffer with the given capacity.
func New[F simdops.Float](capacity int) (*Buffer[F], error) {
	if capacity < minCapacity {
		return nil, fmt.Errorf("ring buffer capacity must be >= %d: %d", minCapacity, capacity)
	}

	return &Buffer[F]{
		data:     make([]F, capacity),
		capacity: capacity,
	}, nil
}

// Capacity returns the fixed number of samples the buffer holds.
func (b *Buffer[F]) Capacity() int {
	return b.capacity
}

// WritePos returns the index the next sample will be written to.
func (b *Buffer[F]) WritePos() int {
	return b.writePos
}

// Write copies samples in at the write position, wrapping in at most two
// contiguous passes, and advances the write position by len(samples).
//
// A single call must not exceed the capacity. Longer input keeps only its
// trailing Capacity() samples, which is what the buffer would hold anyway.
func (b *Buffer[F]) Write(samples []F) {
	n := len(samples)
	if n == 0 {
		return
	}
	if n > b.capacity {
		samples = samples[n-b.capacity:]
		n = b.capacity
	}

	first := copy(b.data[b.writePos:], samples)
	if first < n {
		copy(b.data, samples[first:])
	}

	b.writePos += n
	if b.writePos >= b.capacity {
		b.writePos -= b.capacity
	}
}

// ReadExact returns the sample written age positions before the current
// write position. Age 1 is the most recent sample; age is wrapped into
// [0, capacity).
func (b *Buffer[F]) ReadExact(age int) F {
	return b.data[b.index(age)]
}

// ReadInterpolated returns the linear interpolation between the two
// samples bracketing a fractional age. At integer ages the result is
// exactly ReadExact(age).
func (b *Buffer[F]) ReadInterpolated(age float64) F {
	whole := math.Floor(age)
	frac := F(age - whole)
	k := int(whole)

	x0 := b.data[b.index(k)]
	if frac == 0 {
		return x0
	}
	x1 := b.data[b.index(k+1)]

	return x0*(1-frac) + x1*frac
}

// Clear zeroes the history and resets the write position.
func (b *Buffer[F]) Clear() {
	clear(b.data)
	b.writePos = 0
}

// index maps an age onto a slot in data.
func (b *Buffer[F]) index(age int) int {
	i := (b.writePos - age) % b.capacity
	if i < 0 {
		i += b.capacity
	}
	return i
}
