// Package audiofile loads source clips for the panner and writes its stereo
// output.
//
// Clips are decoded from WAV, AIFF, MP3 or Ogg Vorbis files and down-mixed
// to mono, since every panner source is a single channel.
package audiofile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"golang.org/x/sync/errgroup"

	panner "github.com/tphakala/go-ensemble-pan"
	"github.com/tphakala/go-ensemble-pan/internal/rateconv"
)

// Format identifies a clip container.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatAIFF Format = "aiff"
	FormatMP3  Format = "mp3"
	FormatOgg  Format = "ogg"
)

// Sample format constants
const (
	bitsPerSample8  = 8
	bitsPerSample16 = 16
	bitsPerSample24 = 24
	bitsPerSample32 = 32

	maxInt8  = 128.0
	maxInt16 = 32768.0
	maxInt24 = 8388608.0
	maxInt32 = 2147483648.0

	mp3Channels      = 2 // go-mp3 always decodes to 16-bit stereo
	mp3BytesPerFrame = 4
	aiffReadFrames   = 4096
)

// Clip is a decoded mono source.
type Clip struct {
	Path       string
	Format     Format
	SampleRate int
	Channels   int // channel count before down-mixing
	BitDepth   int // 0 for compressed formats
	Samples    []float64
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// FormatFromPath picks a format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return FormatWAV, nil
	case ".aif", ".aiff", ".aifc":
		return FormatAIFF, nil
	case ".mp3":
		return FormatMP3, nil
	case ".ogg", ".oga":
		return FormatOgg, nil
	default:
		return "", fmt.Errorf("%w: %s", panner.ErrUnsupportedFormat, path)
	}
}

// Load decodes the file at path.
func Load(path string) (*Clip, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() { _ = f.Close() }()

	clip, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	clip.Path = path
	return clip, nil
}

// Decode reads a whole clip of the given format from r.
func Decode(r io.ReadSeeker, format Format) (*Clip, error) {
	switch format {
	case FormatWAV:
		return decodeWAV(r)
	case FormatAIFF:
		return decodeAIFF(r)
	case FormatMP3:
		return decodeMP3(r)
	case FormatOgg:
		return decodeOgg(r)
	default:
		return nil, fmt.Errorf("%w: %q", panner.ErrUnsupportedFormat, format)
	}
}

func decodeWAV(r io.ReadSeeker) (*Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid WAV file", panner.ErrUnsupportedFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("%w: WAV file without channel layout", panner.ErrUnsupportedFormat)
	}

	bitDepth := int(dec.BitDepth)
	return &Clip{
		Format:     FormatWAV,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		BitDepth:   bitDepth,
		// 8-bit WAV is unsigned.
		Samples: downmixInts(buf.Data, buf.Format.NumChannels, bitDepth, bitDepth == bitsPerSample8),
	}, nil
}

func decodeAIFF(r io.ReadSeeker) (*Clip, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid AIFF file", panner.ErrUnsupportedFormat)
	}
	dec.ReadInfo()

	format := dec.Format()
	if format == nil || format.NumChannels < 1 {
		return nil, fmt.Errorf("%w: AIFF file without channel layout", panner.ErrUnsupportedFormat)
	}

	buf := &audio.IntBuffer{
		Data:   make([]int, aiffReadFrames*format.NumChannels),
		Format: format,
	}
	var data []int
	for {
		n, err := dec.PCMBuffer(buf)
		data = append(data, buf.Data[:n]...)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read audio data: %w", err)
		}
		if n == 0 || err == io.EOF {
			break
		}
	}

	bitDepth := int(dec.BitDepth)
	return &Clip{
		Format:     FormatAIFF,
		SampleRate: format.SampleRate,
		Channels:   format.NumChannels,
		BitDepth:   bitDepth,
		Samples:    downmixInts(data, format.NumChannels, bitDepth, false),
	}, nil
}

func decodeMP3(r io.Reader) (*Clip, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", panner.ErrUnsupportedFormat, err)
	}

	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	pcm := raw.Bytes()
	frames := len(pcm) / mp3BytesPerFrame
	samples := make([]float64, frames)
	for i := range frames {
		b := pcm[i*mp3BytesPerFrame:]
		left := int16(uint16(b[0]) | uint16(b[1])<<8)
		right := int16(uint16(b[2]) | uint16(b[3])<<8)
		samples[i] = (float64(left) + float64(right)) / (mp3Channels * maxInt16)
	}

	return &Clip{
		Format:     FormatMP3,
		SampleRate: dec.SampleRate(),
		Channels:   mp3Channels,
		Samples:    samples,
	}, nil
}

func decodeOgg(r io.Reader) (*Clip, error) {
	data, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", panner.ErrUnsupportedFormat, err)
	}
	if format.Channels < 1 {
		return nil, fmt.Errorf("%w: Ogg stream without channels", panner.ErrUnsupportedFormat)
	}

	channels := format.Channels
	frames := len(data) / channels
	samples := make([]float64, frames)
	for i := range frames {
		sum := 0.0
		for ch := range channels {
			sum += float64(data[i*channels+ch])
		}
		samples[i] = sum / float64(channels)
	}

	return &Clip{
		Format:     FormatOgg,
		SampleRate: format.SampleRate,
		Channels:   channels,
		Samples:    samples,
	}, nil
}

// downmixInts averages interleaved integer PCM to normalised mono.
func downmixInts(data []int, channels, bitDepth int, unsigned bool) []float64 {
	frames := len(data) / channels
	scale := 1.0 / (getMaxValue(bitDepth) * float64(channels))
	offset := 0
	if unsigned {
		offset = int(maxInt8)
	}

	out := make([]float64, frames)
	for i := range frames {
		sum := 0
		base := i * channels
		for ch := range channels {
			sum += data[base+ch] - offset
		}
		out[i] = float64(sum) * scale
	}
	return out
}

// getMaxValue returns the full-scale sample value for the given bit depth.
func getMaxValue(bitDepth int) float64 {
	switch bitDepth {
	case bitsPerSample8:
		return maxInt8
	case bitsPerSample16:
		return maxInt16
	case bitsPerSample24:
		return maxInt24
	case bitsPerSample32:
		return maxInt32
	default:
		return maxInt16
	}
}

// LoadAll decodes every path concurrently, converts each clip to
// sampleRate and pads all clips with silence to the longest one. The
// result is in path order.
func LoadAll(ctx context.Context, paths []string, sampleRate int) ([]*Clip, error) {
	clips := make([]*Clip, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			clip, err := Load(path)
			if err != nil {
				return err
			}
			if err := clip.ConvertRate(sampleRate); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			clips[i] = clip
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	PadToLongest(clips)
	return clips, nil
}

// ConvertRate resamples the clip in place to sampleRate.
func (c *Clip) ConvertRate(sampleRate int) error {
	if c.SampleRate == sampleRate {
		return nil
	}
	converted, err := rateconv.Resample(c.Samples, c.SampleRate, sampleRate)
	if err != nil {
		return err
	}
	c.Samples = converted
	c.SampleRate = sampleRate
	return nil
}

// PadToLongest zero-pads every clip to the length of the longest.
func PadToLongest(clips []*Clip) {
	longest := 0
	for _, c := range clips {
		longest = max(longest, len(c.Samples))
	}
	for _, c := range clips {
		if n := len(c.Samples); n < longest {
			c.Samples = append(c.Samples, make([]float64, longest-n)...)
		}
	}
}

// Channels returns the clip samples as engine inputs of type F.
func Channels[F ~float32 | ~float64](clips []*Clip) [][]F {
	out := make([][]F, len(clips))
	for i, c := range clips {
		ch := make([]F, len(c.Samples))
		for j, v := range c.Samples {
			ch[j] = F(v)
		}
		out[i] = ch
	}
	return out
}
