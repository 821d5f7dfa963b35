package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	panner "github.com/tphakala/go-ensemble-pan"
	"github.com/tphakala/go-ensemble-pan/internal/analysis"
	"github.com/tphakala/go-ensemble-pan/internal/audiofile"
	"github.com/tphakala/go-ensemble-pan/internal/playback"
	"github.com/tphakala/go-ensemble-pan/internal/scene"
	"github.com/tphakala/go-ensemble-pan/internal/simdops"
)

// options holds the parsed command line.
type options struct {
	scenePath string
	output    string
	sources   []string
	set       map[string]bool // flags given explicitly

	rate, bits, block int
	smoothing         string
	fast              bool
	gainDB, tail      float64

	radius, spacing, ears, rotation, window float64
	relative                                bool

	play, loop, verbose bool
}

// loadScene reads the scene file, if any, appends positional sources and
// applies explicitly set flags.
func loadScene(o *options) (*scene.Scene, error) {
	sc := scene.Default()
	if o.scenePath != "" {
		var err error
		if sc, err = scene.Load(o.scenePath); err != nil {
			return nil, err
		}
	}
	for _, p := range o.sources {
		sc.Sources = append(sc.Sources, scene.Source{Path: p})
	}
	applyFlags(sc, o)
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// applyFlags copies explicitly set flags into the scene.
func applyFlags(sc *scene.Scene, o *options) {
	r := &sc.Render
	if o.set["rate"] {
		r.SampleRate = o.rate
	}
	if o.set["bits"] {
		r.BitDepth = o.bits
	}
	if o.set["block"] {
		r.BlockFrames = o.block
	}
	if o.set["smoothing"] {
		r.Smoothing = o.smoothing
	}
	if o.set["fast"] {
		r.Precision = scene.PrecisionFloat64
		if o.fast {
			r.Precision = scene.PrecisionFloat32
		}
	}
	if o.set["gain"] {
		r.GainDB = o.gainDB
	}
	if o.set["tail"] {
		r.TailSeconds = o.tail
	}

	c := &sc.Controls
	if o.set["radius"] {
		c.Radius = &o.radius
	}
	if o.set["spacing"] {
		c.SourceSpacing = &o.spacing
	}
	if o.set["ears"] {
		c.EarSpacing = &o.ears
	}
	if o.set["rotation"] {
		c.Rotation = &o.rotation
	}
	if o.set["window"] {
		c.Window = &o.window
	}
	if o.set["relative"] {
		c.RelativeDelay = &o.relative
	}
}

type renderStats struct {
	sources     int
	sampleRate  int
	bitDepth    int
	frames      int64
	clipped     int64
	peakLeftDB  float64
	peakRightDB float64
}

// renderToFile renders the clips block by block and streams the result to
// a WAV file.
func renderToFile[F simdops.Float](sc *scene.Scene, clips []*audiofile.Clip, outputPath string, verbose bool) (stats *renderStats, err error) {
	cfg, err := sc.Config(len(clips))
	if err != nil {
		return nil, err
	}
	e, err := panner.NewEngine[F](cfg)
	if err != nil {
		return nil, err
	}
	if verbose {
		info := e.GetInfo()
		log.Printf("Engine: batch %d, window %d batches, ring %d frames, max delay %d samples, %s",
			info.BatchSize, info.WindowBatches, info.RingCapacity, info.MaxDelaySamples, info.SIMDType)
	}

	output, err := audiofile.Create[F](outputPath, cfg.SampleRate, sc.Render.BitDepth)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := output.Close(); err == nil {
			err = closeErr
		}
	}()
	output.SetGain(sc.GainLinear())

	inputs := audiofile.Channels[F](clips)
	automation := sc.Timeline().Automation()
	block := cfg.MaxBlockFrames
	total := 0
	if len(clips) > 0 {
		total = len(clips[0].Samples)
	}
	total += sc.TailFrames()

	views := make([][]F, len(inputs))
	pad := make([][]F, len(inputs))
	for i := range pad {
		pad[i] = make([]F, block)
	}
	left := make([]F, 0, writeChunkFrames+block)
	right := make([]F, 0, writeChunkFrames+block)
	var peakL, peakR float64

	progress := newProgressTracker(int64(total), verbose)
	flush := func() error {
		if len(left) == 0 {
			return nil
		}
		peakL = max(peakL, analysis.Measure(left).Peak)
		peakR = max(peakR, analysis.Measure(right).Peak)
		if err := output.Write(left, right); err != nil {
			return err
		}
		left, right = left[:0], right[:0]
		return nil
	}

	for offset := 0; offset < total; offset += block {
		n := min(block, total-offset)
		for s, in := range inputs {
			views[s] = sourceBlock(in, pad[s], offset, n)
		}
		l, r := len(left), len(right)
		left, right = left[:l+n], right[:r+n]
		e.Render(automation(offset), views, left[l:], right[r:])

		if len(left) >= writeChunkFrames {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		progress.reportIfNeeded(int64(offset + n))
	}
	if err := flush(); err != nil {
		return nil, err
	}

	gain := sc.GainLinear()
	return &renderStats{
		sources:     len(clips),
		sampleRate:  cfg.SampleRate,
		bitDepth:    sc.Render.BitDepth,
		frames:      output.Frames(),
		clipped:     output.Clipped(),
		peakLeftDB:  analysis.ToDB(peakL * gain),
		peakRightDB: analysis.ToDB(peakR * gain),
	}, nil
}

// sourceBlock returns in[offset:offset+n], zero-padded past the end.
func sourceBlock[F simdops.Float](in, pad []F, offset, n int) []F {
	if offset+n <= len(in) {
		return in[offset : offset+n]
	}
	pad = pad[:n]
	clear(pad)
	if offset < len(in) {
		copy(pad, in[offset:])
	}
	return pad
}

// play streams the scene to the audio device until it ends or ctx is
// cancelled.
func play(ctx context.Context, sc *scene.Scene, clips []*audiofile.Clip, loop, verbose bool) error {
	cfg, err := sc.Config(len(clips))
	if err != nil {
		return err
	}
	e, err := panner.NewEngine[float32](cfg)
	if err != nil {
		return err
	}

	stream := playback.NewStream(e, sc.Timeline().Automation(), audiofile.Channels[float32](clips), playback.StreamOptions{
		BlockFrames: cfg.MaxBlockFrames,
		TailFrames:  sc.TailFrames(),
		Gain:        sc.GainLinear(),
		Loop:        loop,
	})

	player, err := playback.Open(stream, cfg.SampleRate, defaultPlaybackBuffer)
	if err != nil {
		return err
	}
	defer func() { _ = player.Close() }()

	if verbose {
		log.Printf("Playing %d frames at %d Hz", stream.Frames(), cfg.SampleRate)
	}
	player.Play()

	progress := newProgressTracker(int64(stream.Frames()), verbose && !loop)
	err = player.Wait(ctx, func(frame int) { progress.reportIfNeeded(int64(frame)) })
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	return nil
}

// progressTracker logs progress in fixed percentage steps.
type progressTracker struct {
	totalFrames  int64
	lastProgress int
	verbose      bool
}

func newProgressTracker(totalFrames int64, verbose bool) *progressTracker {
	return &progressTracker{
		totalFrames: totalFrames,
		verbose:     verbose,
	}
}

// reportIfNeeded reports progress if threshold crossed.
func (p *progressTracker) reportIfNeeded(current int64) {
	if !p.verbose || p.totalFrames == 0 {
		return
	}

	progress := int(float64(current) / float64(p.totalFrames) * percentScale)
	if progress >= p.lastProgress+progressInterval {
		log.Printf("Progress: %d%%", progress)
		p.lastProgress = progress
	}
}
