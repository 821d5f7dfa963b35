// Command pan-layout prints the solved source layout for a set of panner
// controls. With -probe it renders an impulse through every source and
// checks the measured delays against the table.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	panner "github.com/tphakala/go-ensemble-pan"
)

func main() {
	var (
		sources  = flag.Int("sources", defaultSources, "Number of sources")
		rate     = flag.Int("rate", defaultSampleRate, "Sample rate in Hz")
		radius   = flag.Float64("radius", panner.DefaultRadius, "Source circle radius in meters")
		spacing  = flag.Float64("spacing", panner.DefaultSourceSpacing, "Distance between adjacent sources in meters")
		ears     = flag.Float64("ears", panner.DefaultEarSpacing, "Ear spacing in meters")
		rotation = flag.Float64("rotation", 0, "Ensemble rotation in degrees")
		relative = flag.Bool("relative", false, "Remove the common propagation delay")
		probe    = flag.Bool("probe", false, "Render impulses and measure the delays")
	)
	flag.Parse()

	cfg := panner.DefaultConfig(*rate, *sources)
	ctl := panner.DefaultControls()
	ctl.Radius = *radius
	ctl.SourceSpacing = *spacing
	ctl.EarSpacing = *ears
	ctl.Rotation = *rotation
	if *relative {
		ctl.RelativeDelay = 1
	}

	e, err := panner.NewEngine[float64](cfg)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	table := solve(e, ctl)

	info := e.GetInfo()
	fmt.Printf("Engine:\n")
	fmt.Printf("  %d sources at %d Hz, batch %d, %s smoothing\n", info.Sources, info.SampleRate, info.BatchSize, info.Smoothing)
	fmt.Printf("  Window: %d batches, settles after %d frames\n", info.WindowBatches, info.SettleFrames)
	fmt.Printf("  Ring: %d frames, max delay %d samples\n", info.RingCapacity, info.MaxDelaySamples)
	fmt.Printf("  Memory usage: %.2f KB\n", float64(info.MemoryUsage)/bytesPerKilobyte)
	fmt.Printf("  SIMD: %s\n\n", info.SIMDType)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "src\tangle\tx\ty\tdist L\tdist R\tdelay L\tdelay R\tgain L\tgain R\t")
	for _, s := range table {
		fmt.Fprintf(w, "%d\t%.2f°\t%.3f\t%.3f\t%.3f\t%.3f\t%d\t%d\t%.4f\t%.4f\t\n",
			s.Index, s.AngleDegrees, s.X, s.Y,
			s.DistanceLeft, s.DistanceRight,
			s.DelayLeft, s.DelayRight,
			s.AttenuationLeft, s.AttenuationRight)
	}
	_ = w.Flush()

	if !*probe {
		return
	}

	fmt.Println("\nProbing...")
	failed := 0
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "src\tarrival L\tarrival R\tITD\tmeasured ITD\t\t")
	for _, s := range table {
		res, err := probeSource(cfg, ctl, s.Index)
		if err != nil {
			log.Fatalf("Probe failed: %v", err)
		}
		status := "ok"
		if !res.matches(s) {
			status = "MISMATCH"
			failed++
		}
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%s\t\n",
			s.Index, res.arrivalLeft, res.arrivalRight, s.DelayRight-s.DelayLeft, res.lag, status)
	}
	_ = w.Flush()

	if failed > 0 {
		log.Fatalf("%d of %d sources did not match", failed, len(table))
	}
}
