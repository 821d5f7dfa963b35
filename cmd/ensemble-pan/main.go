// Command ensemble-pan places mono source clips on a circle around the
// listener and renders them to a stereo WAV file or plays them live.
//
// Usage:
//
//	ensemble-pan -o out.wav violin1.wav violin2.wav viola.wav cello.wav
//	ensemble-pan -scene quartet.yaml -o out.wav
//	ensemble-pan -scene quartet.yaml -rotation 45 -fast -o out.wav
//	ensemble-pan -scene quartet.yaml -play
//
// Flags given on the command line override the scene file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"time"

	"github.com/tphakala/go-ensemble-pan/internal/audiofile"
	"github.com/tphakala/go-ensemble-pan/internal/scene"
)

const (
	// Frames handed to the WAV writer per call
	writeChunkFrames = 65536

	progressInterval = 10 // Print progress every N%
	percentScale     = 100

	defaultPlaybackBuffer = 100 * time.Millisecond
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	opts := &options{}
	flag.StringVar(&opts.scenePath, "scene", "", "Scene file (YAML)")
	flag.StringVar(&opts.output, "o", "", "Output WAV file")
	flag.IntVar(&opts.rate, "rate", scene.DefaultSampleRate, "Render sample rate in Hz")
	flag.IntVar(&opts.bits, "bits", scene.DefaultBitDepth, "Output bit depth: 16, 24, 32")
	flag.IntVar(&opts.block, "block", scene.DefaultBlockFrames, "Render block length in frames")
	flag.StringVar(&opts.smoothing, "smoothing", "triangular", "Delay smoothing: triangular, flat")
	flag.BoolVar(&opts.fast, "fast", false, "Use float32 precision (-fast=false forces float64)")
	flag.Float64Var(&opts.gainDB, "gain", 0, "Output gain in dB")
	flag.Float64Var(&opts.tail, "tail", scene.DefaultTailSeconds, "Seconds rendered after the longest source")
	flag.Float64Var(&opts.radius, "radius", 5, "Source circle radius in meters")
	flag.Float64Var(&opts.spacing, "spacing", 1, "Distance between adjacent sources in meters")
	flag.Float64Var(&opts.ears, "ears", 0.149, "Ear spacing in meters")
	flag.Float64Var(&opts.rotation, "rotation", 0, "Ensemble rotation in degrees, positive to the right")
	flag.Float64Var(&opts.window, "window", 1, "Smoothing window in seconds")
	flag.BoolVar(&opts.relative, "relative", false, "Remove the common propagation delay")
	flag.BoolVar(&opts.play, "play", false, "Play through the audio device instead of writing a file")
	flag.BoolVar(&opts.loop, "loop", false, "Loop playback")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose output")
	cpuprofile := flag.String("cpuprofile", "", "Write CPU profile to file")
	flag.Parse()

	opts.sources = flag.Args()
	opts.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	if (opts.scenePath == "" && len(opts.sources) == 0) || (!opts.play && opts.output == "") {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] -o output.wav source.wav...\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -o out.wav a.wav b.wav c.wav d.wav  # Four sources, default layout\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -scene quartet.yaml -o out.wav      # Scene with automation\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -scene quartet.yaml -play           # Live playback\n", os.Args[0])
		return fmt.Errorf("insufficient arguments")
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = f.Close()
		}()
	}

	sc, err := loadScene(opts)
	if err != nil {
		return err
	}
	paths := sc.SourcePaths()
	if len(paths) == 0 {
		return fmt.Errorf("no sources given")
	}

	if opts.verbose {
		logScene(sc, paths)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	clips, err := audiofile.LoadAll(ctx, paths, sc.Render.SampleRate)
	if err != nil {
		return err
	}
	if opts.verbose {
		for _, c := range clips {
			log.Printf("Loaded %s: %s, %d channels, %.2fs", filepath.Base(c.Path), c.Format, c.Channels, c.Duration())
		}
		log.Printf("Decoded %d sources in %v", len(clips), time.Since(start).Round(time.Millisecond))
	}

	if opts.play {
		return play(ctx, sc, clips, opts.loop, opts.verbose)
	}

	start = time.Now()
	var stats *renderStats
	if sc.Render.Precision == scene.PrecisionFloat32 {
		stats, err = renderToFile[float32](sc, clips, opts.output, opts.verbose)
	} else {
		stats, err = renderToFile[float64](sc, clips, opts.output, opts.verbose)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("Rendered %d sources -> %s\n", stats.sources, filepath.Base(opts.output))
	fmt.Printf("  %d Hz, %d-bit stereo, %d frames\n", stats.sampleRate, stats.bitDepth, stats.frames)
	fmt.Printf("  Peak: %.1f dBFS L, %.1f dBFS R", stats.peakLeftDB, stats.peakRightDB)
	if stats.clipped > 0 {
		fmt.Printf(" (%d samples clipped, lower -gain)", stats.clipped)
	}
	fmt.Println()
	fmt.Printf("  Duration: %.2fs, Speed: %.1fx realtime\n",
		elapsed.Seconds(),
		float64(stats.frames)/float64(stats.sampleRate)/elapsed.Seconds())

	return nil
}

func logScene(sc *scene.Scene, paths []string) {
	r := sc.Render
	ctl := sc.Initial()
	log.Printf("Sources: %d", len(paths))
	for i, p := range paths {
		log.Printf("  [%d] %s", i, p)
	}
	log.Printf("Render: %d Hz, %d-bit, block %d, %s, %s smoothing", r.SampleRate, r.BitDepth, r.BlockFrames, r.Precision, r.Smoothing)
	log.Printf("Controls: radius %.2fm, spacing %.2fm, ears %.3fm, rotation %.1f°, window %.2fs, relative %v",
		ctl.Radius, ctl.SourceSpacing, ctl.EarSpacing, ctl.Rotation, ctl.Window, ctl.RelativeDelay > 0.5)
	if len(sc.Automation) > 0 {
		log.Printf("Automation: %d keyframes", len(sc.Automation))
	}
}
