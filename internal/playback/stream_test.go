package playback

import (
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	panner "github.com/tphakala/go-ensemble-pan"
	"github.com/tphakala/go-ensemble-pan/internal/testutil"
)

const testRate = 8000

func newEngine(t *testing.T, sources int) *panner.Engine[float32] {
	t.Helper()
	cfg := panner.DefaultConfig(testRate, sources)
	cfg.MaxBlockFrames = 64
	e, err := panner.NewEngine[float32](cfg)
	require.NoError(t, err)
	return e
}

func decodeFrames(t *testing.T, b []byte) (left, right []float32) {
	t.Helper()
	require.Zero(t, len(b)%bytesPerFrame)
	for i := 0; i < len(b); i += bytesPerFrame {
		left = append(left, math.Float32frombits(binary.LittleEndian.Uint32(b[i:])))
		right = append(right, math.Float32frombits(binary.LittleEndian.Uint32(b[i+bytesPerSample:])))
	}
	return left, right
}

func testInputs() [][]float32 {
	return [][]float32{
		testutil.Sine[float32](900, 220, testRate),
		testutil.Impulse[float32](500, 10),
	}
}

func TestStream_MatchesOfflineRender(t *testing.T) {
	ctl := panner.DefaultControls()
	ctl.Rotation = 20
	inputs := testInputs()

	cfg := panner.DefaultConfig(testRate, 2)
	cfg.MaxBlockFrames = 64
	wantL, wantR, err := panner.RenderAutomated(cfg, panner.Static(ctl), inputs,
		panner.OfflineOptions{BlockFrames: 64, TailFrames: 100})
	require.NoError(t, err)

	s := NewStream(newEngine(t, 2), panner.Static(ctl), inputs, StreamOptions{BlockFrames: 64, TailFrames: 100})
	assert.Equal(t, 1000, s.Frames())

	data, err := io.ReadAll(io.LimitReader(s, 1<<20))
	require.NoError(t, err)
	gotL, gotR := decodeFrames(t, data)

	require.Len(t, gotL, len(wantL))
	assert.InDeltaSlice(t, wantL, gotL, 1e-6)
	assert.InDeltaSlice(t, wantR, gotR, 1e-6)
	assert.Equal(t, 1000, s.Position())
	testutil.AssertNoNaNOrInf(t, gotL)
}

func TestStream_OddReadSizes(t *testing.T) {
	s := NewStream(newEngine(t, 2), nil, testInputs(), StreamOptions{BlockFrames: 32})

	buf := make([]byte, 37*bytesPerFrame+3)
	total := 0
	for {
		n, err := s.Read(buf)
		if err == io.EOF {
			assert.Zero(t, n)
			break
		}
		require.NoError(t, err)
		assert.Zero(t, n%bytesPerFrame)
		total += n / bytesPerFrame
	}
	assert.Equal(t, 900, total)
}

func TestStream_ShortBuffer(t *testing.T) {
	s := NewStream(newEngine(t, 2), nil, testInputs(), StreamOptions{})

	n, err := s.Read(make([]byte, bytesPerFrame-1))
	assert.Zero(t, n)
	require.ErrorIs(t, err, io.ErrShortBuffer)

	n, err = s.Read(nil)
	assert.Zero(t, n)
	require.NoError(t, err)
}

func TestStream_Gain(t *testing.T) {
	inputs := [][]float32{testutil.Constant[float32](400, 0.5)}

	plain := NewStream(newEngine(t, 1), nil, inputs, StreamOptions{})
	quiet := NewStream(newEngine(t, 1), nil, inputs, StreamOptions{Gain: 0.25})

	a, err := io.ReadAll(plain)
	require.NoError(t, err)
	b, err := io.ReadAll(quiet)
	require.NoError(t, err)

	aL, _ := decodeFrames(t, a)
	bL, _ := decodeFrames(t, b)
	require.Len(t, bL, len(aL))
	for i := range aL {
		assert.InDelta(t, aL[i]*0.25, bL[i], 1e-6)
	}
}

func TestStream_Loop(t *testing.T) {
	inputs := [][]float32{testutil.Impulse[float32](100, 0)}
	ctl := panner.DefaultControls()
	ctl.Radius = 1
	s := NewStream(newEngine(t, 1), panner.Static(ctl), inputs, StreamOptions{Loop: true, BlockFrames: 16})

	buf := make([]byte, 250*bytesPerFrame)
	n, err := io.ReadFull(s, buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, 50, s.Position())

	left, _ := decodeFrames(t, buf)
	assert.NotZero(t, testutil.MaxAbs(left[:100]))
	assert.InDeltaSlice(t, left[:100], left[100:200], 1e-6, "each pass starts from a cleared engine")
}

func TestStream_Empty(t *testing.T) {
	s := NewStream(newEngine(t, 1), nil, [][]float32{nil}, StreamOptions{Loop: true})
	n, err := s.Read(make([]byte, 64))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
}
