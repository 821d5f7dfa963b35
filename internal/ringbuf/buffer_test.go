package ringbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsTinyCapacity(t *testing.T) {
	for _, capacity := range []int{-1, 0, 1} {
		_, err := New[float32](capacity)
		require.Error(t, err, "capacity %d", capacity)
	}

	b, err := New[float64](2)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Capacity())
}

func TestWrite_RoundTrip(t *testing.T) {
	b, err := New[float64](16)
	require.NoError(t, err)

	seq := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	b.Write(seq)

	// Sample i of the sequence sits len(seq)-i positions back.
	for i, want := range seq {
		assert.Equal(t, want, b.ReadExact(len(seq)-i), "sample %d", i)
	}
}

func TestWrite_FullCapacityRoundTrip(t *testing.T) {
	b, err := New[float32](8)
	require.NoError(t, err)

	b.Write([]float32{-1, -2, -3})
	seq := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	b.Write(seq)

	for i, want := range seq {
		assert.Equal(t, want, b.ReadExact(len(seq)-i))
	}
}

func TestWrite_WrapsInTwoPasses(t *testing.T) {
	b, err := New[float64](5)
	require.NoError(t, err)

	b.Write([]float64{1, 2, 3})
	assert.Equal(t, 3, b.WritePos())

	b.Write([]float64{4, 5, 6, 7})
	assert.Equal(t, 2, b.WritePos())

	// Most recent first.
	assert.Equal(t, 7.0, b.ReadExact(1))
	assert.Equal(t, 6.0, b.ReadExact(2))
	assert.Equal(t, 5.0, b.ReadExact(3))
	assert.Equal(t, 4.0, b.ReadExact(4))
	assert.Equal(t, 3.0, b.ReadExact(5))
}

func TestWrite_EmptyIsNoOp(t *testing.T) {
	b, err := New[float64](4)
	require.NoError(t, err)

	b.Write([]float64{1, 2})
	b.Write(nil)
	b.Write([]float64{})

	assert.Equal(t, 2, b.WritePos())
	assert.Equal(t, 2.0, b.ReadExact(1))
}

func TestWrite_OversizedKeepsTail(t *testing.T) {
	b, err := New[float64](4)
	require.NoError(t, err)

	b.Write([]float64{1, 2, 3, 4, 5, 6})

	assert.Equal(t, 6.0, b.ReadExact(1))
	assert.Equal(t, 3.0, b.ReadExact(4))
}

func TestReadExact_WrapsAge(t *testing.T) {
	b, err := New[float64](4)
	require.NoError(t, err)
	b.Write([]float64{10, 20, 30, 40})

	assert.Equal(t, b.ReadExact(1), b.ReadExact(5))
	assert.Equal(t, b.ReadExact(3), b.ReadExact(-1))
	assert.Equal(t, b.ReadExact(0), b.ReadExact(4))
}

func TestReadInterpolated_ExactAtIntegerAges(t *testing.T) {
	b, err := New[float32](64)
	require.NoError(t, err)

	data := make([]float32, 64)
	for i := range data {
		data[i] = float32(i*i%17) * 0.37
	}
	b.Write(data)

	for age := range 64 {
		assert.Equal(t, b.ReadExact(age), b.ReadInterpolated(float64(age)), "age %d", age)
	}
}

func TestReadInterpolated_Linear(t *testing.T) {
	b, err := New[float64](8)
	require.NoError(t, err)
	b.Write([]float64{0, 10, 20, 30})

	// age 1 = 30, age 2 = 20
	assert.InDelta(t, 25.0, b.ReadInterpolated(1.5), 1e-12)
	assert.InDelta(t, 27.5, b.ReadInterpolated(1.25), 1e-12)
	assert.InDelta(t, 12.5, b.ReadInterpolated(2.75), 1e-12)
}

func TestClear(t *testing.T) {
	b, err := New[float64](4)
	require.NoError(t, err)
	b.Write([]float64{1, 2, 3})

	b.Clear()

	assert.Equal(t, 0, b.WritePos())
	for age := range 4 {
		assert.Zero(t, b.ReadExact(age))
	}
}

func BenchmarkReadInterpolated(b *testing.B) {
	buf, err := New[float32](8192)
	require.NoError(b, err)
	buf.Write(make([]float32, 4096))

	b.ReportAllocs()
	age := 0.0
	for b.Loop() {
		_ = buf.ReadInterpolated(age)
		age += 0.37
		if age > 4000 {
			age = 0
		}
	}
}
