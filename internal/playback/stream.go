// Package playback plays an engine live through the system audio device.
//
// Build with the headless tag to compile without audio device support;
// Open then returns panner.ErrPlaybackUnavailable.
package playback

import (
	"encoding/binary"
	"io"
	"math"
	"sync/atomic"

	panner "github.com/tphakala/go-ensemble-pan"
	"github.com/tphakala/go-ensemble-pan/internal/simdops"
)

const (
	stereoChannels = 2
	bytesPerSample = 4 // float32 little endian
	bytesPerFrame  = stereoChannels * bytesPerSample
)

// Stream renders source clips through an engine on demand and yields
// interleaved float32 little-endian stereo.
//
// Read is called from the audio device goroutine. Position may be called
// from any goroutine.
type Stream struct {
	engine     *panner.Engine[float32]
	automation panner.Automation
	inputs     [][]float32
	ops        *simdops.Ops[float32]

	block int
	total int // frames including the tail
	loop  bool
	gain  float32

	views       [][]float32
	pad         [][]float32
	left, right []float32
	interleaved []float32

	pos atomic.Int64
}

// StreamOptions tune a Stream.
type StreamOptions struct {
	BlockFrames int     // render block, 0 selects 512
	TailFrames  int     // silence rendered after the longest input
	Gain        float64 // linear output gain, 0 selects 1
	Loop        bool    // restart from the beginning instead of ending
}

const defaultBlockFrames = 512

// NewStream prepares a stream over inputs. The engine must be configured
// for len(inputs) sources.
func NewStream(e *panner.Engine[float32], automation panner.Automation, inputs [][]float32, opts StreamOptions) *Stream {
	block := opts.BlockFrames
	if block <= 0 {
		block = defaultBlockFrames
	}
	gain := float32(opts.Gain)
	if gain == 0 {
		gain = 1
	}

	total := 0
	for _, in := range inputs {
		total = max(total, len(in))
	}
	total += max(opts.TailFrames, 0)

	s := &Stream{
		engine:      e,
		automation:  automation,
		inputs:      inputs,
		ops:         simdops.For[float32](),
		block:       block,
		total:       total,
		loop:        opts.Loop,
		gain:        gain,
		views:       make([][]float32, len(inputs)),
		pad:         make([][]float32, len(inputs)),
		left:        make([]float32, block),
		right:       make([]float32, block),
		interleaved: make([]float32, block*stereoChannels),
	}
	for i := range s.pad {
		s.pad[i] = make([]float32, block)
	}
	return s
}

// Read implements io.Reader. It fills whole frames only and returns
// io.EOF once every frame has been delivered.
func (s *Stream) Read(p []byte) (int, error) {
	frames := len(p) / bytesPerFrame
	if frames == 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.ErrShortBuffer
	}

	pos := int(s.pos.Load())
	written := 0
	for written < frames {
		if pos >= s.total {
			if !s.loop || s.total == 0 {
				break
			}
			pos = 0
			s.engine.Activate()
		}

		n := min(s.block, frames-written, s.total-pos)
		s.renderAt(pos, n)
		s.encode(p[written*bytesPerFrame:], n)
		written += n
		pos += n
	}
	s.pos.Store(int64(pos))

	if written == 0 {
		return 0, io.EOF
	}
	return written * bytesPerFrame, nil
}

func (s *Stream) renderAt(pos, n int) {
	for i, in := range s.inputs {
		s.views[i] = window(in, s.pad[i], pos, n)
	}
	ctl := panner.DefaultControls()
	if s.automation != nil {
		ctl = s.automation(pos)
	}
	s.engine.Render(ctl, s.views, s.left[:n], s.right[:n])
}

func (s *Stream) encode(dst []byte, n int) {
	buf := s.interleaved[:n*stereoChannels]
	s.ops.Interleave2(buf, s.left[:n], s.right[:n])
	if s.gain != 1 {
		s.ops.Scale(buf, buf, s.gain)
	}
	for i, v := range buf {
		binary.LittleEndian.PutUint32(dst[i*bytesPerSample:], math.Float32bits(v))
	}
}

// window returns in[pos:pos+n], zero-padding past the end of in.
func window(in, pad []float32, pos, n int) []float32 {
	if pos+n <= len(in) {
		return in[pos : pos+n]
	}
	pad = pad[:n]
	clear(pad)
	if pos < len(in) {
		copy(pad, in[pos:])
	}
	return pad
}

// Position returns the next frame to be rendered.
func (s *Stream) Position() int {
	return int(s.pos.Load())
}

// Frames returns the stream length in frames.
func (s *Stream) Frames() int {
	return s.total
}
