// Package panner renders an ensemble of mono sources, arranged on a circle
// around a listener, to a single stereo pair in real time.
//
// Each source is delayed and attenuated separately for the left and right
// ear. The delays are the propagation times from the source position to
// each ear; the gains follow the inverse distance and are normalised so
// that their product over all sources and both ears is one. The relative
// loudness between sources is preserved while the absolute level is left
// to the caller.
//
// # Quick Start
//
//	e, err := panner.NewFloat32Engine(48000, 4)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctl := panner.DefaultControls()
//	ctl.Rotation = 30
//
//	// Called once per audio block.
//	e.Render(ctl, inputs, left, right)
//
// For whole buffers, [RenderOffline] and [RenderAutomated] drive an engine
// block by block.
//
// # Controls
//
// [Controls] are read at the top of every block and compared with the
// last applied set. Any difference re-solves the geometry and restarts the
// ramp. Out of range values are clamped, never rejected:
//
//   - Radius: source circle radius in meters, clamped to (0, MaxRadius].
//   - SourceSpacing: chord distance between adjacent sources, clamped to
//     the diameter.
//   - EarSpacing: distance between the ears, clamped to [0, MaxEarSpacing].
//   - Rotation: ensemble rotation in degrees, positive is to the right.
//   - Window: smoothing window in seconds.
//   - RelativeDelay: above 0.5, the earliest arrival is shifted to zero
//     delay, removing the common propagation latency.
//
// # Ramping and Steady State
//
// After a change the engine is [Ramping]: the new target delays are pushed
// through a sliding-window filter once per batch of frames and the ring
// buffers are read at the smoothed, fractional delays with linear
// interpolation. Once the filter has settled the engine switches to
// [Steady] and reads at the exact integer delays.
//
// The batch size is the largest power of two up to 8 that divides the
// sample rate. Blocks need not be a multiple of it: batch boundaries are
// tracked across blocks.
//
// # Real-Time Contract
//
// All buffers are allocated by [NewEngine]. [Engine.Render] does not
// allocate, lock, log or return errors. Configuration problems are
// reported by [Config.Validate] before rendering starts.
//
// # Thread Safety
//
// An [Engine] must be driven from one goroutine at a time.
package panner
