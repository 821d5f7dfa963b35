package scene

import (
	"math"
	"sort"

	panner "github.com/tphakala/go-ensemble-pan"
)

// point is a resolved keyframe: the full control set reached at frame.
type point struct {
	frame int
	glide bool
	ctl   panner.Controls
}

// Timeline evaluates the scene automation at arbitrary frames.
type Timeline struct {
	points []point
}

// Timeline resolves the automation against the render sample rate.
func (s *Scene) Timeline() *Timeline {
	ctl := s.Initial()
	points := make([]point, 0, len(s.Automation)+1)
	points = append(points, point{frame: 0, ctl: ctl})

	for _, k := range s.Automation {
		ctl = k.Apply(ctl)
		points = append(points, point{
			frame: int(math.Round(k.Time * float64(s.Render.SampleRate))),
			glide: k.Glide,
			ctl:   ctl,
		})
	}
	return &Timeline{points: points}
}

// ControlsAt returns the controls in effect at frame.
func (t *Timeline) ControlsAt(frame int) panner.Controls {
	// Index of the first point after frame.
	next := sort.Search(len(t.points), func(i int) bool {
		return t.points[i].frame > frame
	})
	if next == 0 {
		return t.points[0].ctl
	}

	from := t.points[next-1]
	if next == len(t.points) || !t.points[next].glide {
		return from.ctl
	}

	to := t.points[next]
	frac := float64(frame-from.frame) / float64(to.frame-from.frame)
	return lerp(from.ctl, to.ctl, frac)
}

// Automation adapts the timeline for panner.RenderAutomated.
func (t *Timeline) Automation() panner.Automation {
	return t.ControlsAt
}

// Len returns the number of keyframes including the initial state.
func (t *Timeline) Len() int {
	return len(t.points)
}

// lerp interpolates the geometric controls. The window and the relative
// delay switch change only when the target is reached, since either change
// refilters the delay lines.
func lerp(a, b panner.Controls, frac float64) panner.Controls {
	mix := func(x, y float64) float64 { return x + (y-x)*frac }
	return panner.Controls{
		Radius:        mix(a.Radius, b.Radius),
		SourceSpacing: mix(a.SourceSpacing, b.SourceSpacing),
		EarSpacing:    mix(a.EarSpacing, b.EarSpacing),
		Rotation:      mix(a.Rotation, b.Rotation),
		Window:        a.Window,
		RelativeDelay: a.RelativeDelay,
	}
}
