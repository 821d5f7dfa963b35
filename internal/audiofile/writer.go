package audiofile

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	panner "github.com/tphakala/go-ensemble-pan"
	"github.com/tphakala/go-ensemble-pan/internal/simdops"
)

const (
	stereoChannels = 2
	wavFormatPCM   = 1
)

// StereoWriter streams rendered stereo blocks to a PCM WAV file.
type StereoWriter[F simdops.Float] struct {
	file *os.File
	enc  *wav.Encoder
	ops  *simdops.Ops[F]

	maxVal      float64
	gain        F
	interleaved []F
	buf         *audio.IntBuffer

	frames  int64
	clipped int64
}

// Create opens path for writing a stereo WAV file. bitDepth must be 16, 24
// or 32.
func Create[F simdops.Float](path string, sampleRate, bitDepth int) (*StereoWriter[F], error) {
	switch bitDepth {
	case bitsPerSample16, bitsPerSample24, bitsPerSample32:
	default:
		return nil, fmt.Errorf("%w: %d-bit output", panner.ErrUnsupportedFormat, bitDepth)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	return &StereoWriter[F]{
		file:   f,
		enc:    wav.NewEncoder(f, sampleRate, bitDepth, stereoChannels, wavFormatPCM),
		ops:    simdops.For[F](),
		maxVal: getMaxValue(bitDepth) - 1,
		gain:   1,
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: stereoChannels, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
		},
	}, nil
}

// SetGain sets a linear gain applied to everything written afterwards.
func (w *StereoWriter[F]) SetGain(linear float64) {
	w.gain = F(linear)
}

// Write appends one block. left and right must have the same length.
// Samples beyond full scale are clipped and counted.
func (w *StereoWriter[F]) Write(left, right []F) error {
	n := min(len(left), len(right))
	if n == 0 {
		return nil
	}

	need := n * stereoChannels
	if cap(w.interleaved) < need {
		w.interleaved = make([]F, need)
		w.buf.Data = make([]int, need)
	}
	w.interleaved = w.interleaved[:need]
	w.buf.Data = w.buf.Data[:need]

	w.ops.Interleave2(w.interleaved, left[:n], right[:n])
	if w.gain != 1 {
		w.ops.Scale(w.interleaved, w.interleaved, w.gain)
	}

	for i, v := range w.interleaved {
		s := float64(v)
		if s > 1.0 {
			s = 1.0
			w.clipped++
		} else if s < -1.0 {
			s = -1.0
			w.clipped++
		}
		w.buf.Data[i] = int(s * w.maxVal)
	}

	if err := w.enc.Write(w.buf); err != nil {
		return fmt.Errorf("failed to write audio data: %w", err)
	}
	w.frames += int64(n)
	return nil
}

// Frames returns the number of stereo frames written.
func (w *StereoWriter[F]) Frames() int64 {
	return w.frames
}

// Clipped returns the number of samples that exceeded full scale.
func (w *StereoWriter[F]) Clipped() int64 {
	return w.clipped
}

// Close finalises the WAV header and closes the file.
func (w *StereoWriter[F]) Close() error {
	if err := w.enc.Close(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("failed to finalize WAV file: %w", err)
	}
	return w.file.Close()
}
