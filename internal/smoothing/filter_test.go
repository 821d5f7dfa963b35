package smoothing

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-ensemble-pan/internal/testutil"
)

func newFilter(t *testing.T, kind Kind, capacity, window int) Filter {
	t.Helper()
	f, err := New(kind, capacity, window)
	require.NoError(t, err)
	return f
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		capacity int
		window   int
	}{
		{"capacity_too_small", Triangular, 3, 2},
		{"window_too_small", Flat, 16, 1},
		{"window_zero", Triangular, 16, 0},
		{"unknown_kind", Kind(42), 16, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.kind, tt.capacity, tt.window)
			require.ErrorIs(t, err, ErrInvalidFilter)
		})
	}
}

func TestConfigure_RoundsWindow(t *testing.T) {
	tests := []struct {
		capacity int
		window   int
		want     int
	}{
		{16, 8, 8},
		{16, 9, 8},
		{16, 16, 14},
		{16, 100, 14},
		{17, 100, 16},
		{16, 3, 2},
	}

	for _, kind := range []Kind{Triangular, Flat} {
		for _, tt := range tests {
			f := newFilter(t, kind, tt.capacity, 2)
			assert.Equal(t, tt.want, f.Configure(tt.window), "%v cap=%d window=%d", kind, tt.capacity, tt.window)
			assert.Equal(t, tt.want, f.WindowSize())
		}
	}
}

func TestFlat_SumIdentity(t *testing.T) {
	const (
		capacity = 64
		window   = 10
	)
	f := newFilter(t, Flat, capacity, window)
	rng := rand.New(rand.NewPCG(1, 2))

	var pushed []int
	for range 500 {
		v := rng.IntN(2000) - 1000
		n := 1 + rng.IntN(3)
		f.Push(v, n)
		for range n {
			pushed = append(pushed, v)
		}

		var got float64
		for range n {
			got = f.Pop()
		}

		sum := 0
		for _, x := range pushed[max(0, len(pushed)-window):] {
			sum += x
		}
		assert.InDelta(t, float64(sum)/window, got, 1e-9)
	}
}

func TestTriangular_ImpulseResponse(t *testing.T) {
	const (
		capacity = 32
		window   = 8
		half     = window / 2
	)
	f := newFilter(t, Triangular, capacity, window)
	scale := float64(half * (half + 1))

	f.Push(1, 1)
	f.Push(0, window+4)

	want := []float64{1, 2, 3, 4, 4, 3, 2, 1, 0, 0, 0, 0}
	got := make([]float64, len(want))
	for i := range got {
		got[i] = f.Pop() * scale
	}
	assert.InDeltaSlice(t, want, got, 1e-9)
}

func TestSettlesOnStep(t *testing.T) {
	for _, kind := range []Kind{Triangular, Flat} {
		t.Run(kind.String(), func(t *testing.T) {
			const window = 20
			f := newFilter(t, kind, 64, window)

			f.Push(100, window)
			for range window {
				f.Pop()
			}

			f.Push(160, window+1)
			response := make([]float64, window+1)
			for i := range response {
				response[i] = f.Pop()
			}

			testutil.AssertMonotonic(t, response)
			testutil.AssertAllInRange(t, response, 100, 160)
			assert.Equal(t, 160.0, response[window-1], "settled after one window")
			assert.Equal(t, 160.0, response[window])
		})
	}
}

func TestPush_ZeroCountIsNoOp(t *testing.T) {
	for _, kind := range []Kind{Triangular, Flat} {
		a := newFilter(t, kind, 32, 6)
		b := newFilter(t, kind, 32, 6)

		a.Push(7, 5)
		b.Push(7, 5)
		b.Push(99, 0)
		b.Push(99, -3)

		a.Push(11, 9)
		b.Push(11, 9)
		for range 14 {
			require.Equal(t, a.Pop(), b.Pop(), kind.String())
		}
	}
}

func TestPeek_WrapsBothWays(t *testing.T) {
	const capacity = 8
	f := newFilter(t, Flat, capacity, 2)

	for v := 1; v <= capacity; v++ {
		f.Push(v*2, 1)
	}
	// Window 2 averages neighbours: out[i] = (v[i-1] + v[i]) / 2.
	assert.Equal(t, 1.0, f.Peek(0))
	assert.Equal(t, 3.0, f.Peek(1))
	assert.Equal(t, 15.0, f.Peek(-1))
	assert.Equal(t, f.Peek(3), f.Peek(3+capacity))
	assert.Equal(t, f.Peek(-2), f.Peek(capacity-2))

	// Peek is non-destructive.
	assert.Equal(t, 1.0, f.Pop())
	assert.Equal(t, 3.0, f.Pop())
}

func TestPop_Wraps(t *testing.T) {
	const capacity = 6
	f := newFilter(t, Flat, capacity, 2)

	for range 3 * capacity {
		f.Push(4, 1)
		f.Pop()
	}
	f.Push(8, 1)
	assert.Equal(t, 6.0, f.Pop())
}

func TestFill(t *testing.T) {
	for _, kind := range []Kind{Triangular, Flat} {
		t.Run(kind.String(), func(t *testing.T) {
			const window = 10
			f := newFilter(t, kind, 40, window)
			f.Push(5, 3)
			for range 3 {
				f.Pop()
			}

			f.Fill(250)
			for i := -40; i < 40; i++ {
				require.Equal(t, 250.0, f.Peek(i))
			}

			// History is consistent: pushing the same value stays flat.
			f.Push(250, 7)
			for range 7 {
				assert.Equal(t, 250.0, f.Pop())
			}

			// And a step away from it glides from the filled value.
			f.Push(300, window)
			first := f.Pop()
			assert.Greater(t, first, 250.0)
			assert.Less(t, first, 300.0)
		})
	}
}

func TestReset(t *testing.T) {
	f := newFilter(t, Triangular, 16, 4)
	f.Push(9, 10)
	f.Pop()

	f.Reset()

	for i := range 16 {
		assert.Zero(t, f.Peek(i))
	}
	f.Push(0, 1)
	assert.Zero(t, f.Pop())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "triangular", Triangular.String())
	assert.Equal(t, "flat", Flat.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
}

func BenchmarkTriangularPush(b *testing.B) {
	f, err := New(Triangular, 12000, 6000)
	require.NoError(b, err)

	b.ReportAllocs()
	for b.Loop() {
		f.Push(1234, 64)
		for range 64 {
			f.Pop()
		}
	}
}
