// Package scene reads YAML scene descriptions for the ensemble-pan host.
//
// A scene names the source clips, the render settings, the initial
// controls and an optional list of timed control changes:
//
//	render:
//	  sample_rate: 48000
//	  bit_depth: 24
//	  smoothing: triangular
//	controls:
//	  radius: 4
//	  ear_spacing: 0.16
//	automation:
//	  - time: 2
//	    rotation: 90
//	  - time: 6
//	    rotation: -90
//	    glide: true
//	sources:
//	  - path: violin1.wav
//	  - path: violin2.wav
//
// Keyframes hold their values until the next keyframe. A keyframe with
// glide set is approached linearly from the previous one.
package scene

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	panner "github.com/tphakala/go-ensemble-pan"
)

// Render defaults
const (
	DefaultSampleRate  = panner.RateDAT
	DefaultBlockFrames = 512
	DefaultBitDepth    = 24
	DefaultPrecision   = PrecisionFloat32
	DefaultTailSeconds = 0.5
)

// Sample precision of the engine
const (
	PrecisionFloat32 = "float32"
	PrecisionFloat64 = "float64"
)

// Scene is a parsed scene file.
type Scene struct {
	Render     Render     `yaml:"render"`
	Controls   Controls   `yaml:"controls"`
	Automation []Keyframe `yaml:"automation"`
	Sources    []Source   `yaml:"sources"`

	dir string // base for relative source paths
}

// Render holds output and engine settings.
type Render struct {
	SampleRate   int     `yaml:"sample_rate"`
	BlockFrames  int     `yaml:"block_frames"`
	BitDepth     int     `yaml:"bit_depth"`
	Smoothing    string  `yaml:"smoothing"`
	Precision    string  `yaml:"precision"`
	GainDB       float64 `yaml:"gain_db"`
	TailSeconds  float64 `yaml:"tail_seconds"`
	SpeedOfSound float64 `yaml:"speed_of_sound"` // 0 keeps the engine default
}

// Controls overrides individual panner controls. Nil fields are left
// unchanged.
type Controls struct {
	Radius        *float64 `yaml:"radius"`
	SourceSpacing *float64 `yaml:"source_spacing"`
	EarSpacing    *float64 `yaml:"ear_spacing"`
	Rotation      *float64 `yaml:"rotation"`
	Window        *float64 `yaml:"window"`
	RelativeDelay *bool    `yaml:"relative_delay"`
}

// Keyframe changes controls at a point in time.
type Keyframe struct {
	Time     float64 `yaml:"time"` // seconds
	Glide    bool    `yaml:"glide"`
	Controls `yaml:",inline"`
}

// Source is one input clip.
type Source struct {
	Path string `yaml:"path"`
	Name string `yaml:"name"`
}

// Default returns an empty scene with default render settings.
func Default() *Scene {
	return &Scene{
		Render: Render{
			SampleRate:  DefaultSampleRate,
			BlockFrames: DefaultBlockFrames,
			BitDepth:    DefaultBitDepth,
			Smoothing:   panner.SmoothingTriangular.String(),
			Precision:   DefaultPrecision,
			TailSeconds: DefaultTailSeconds,
		},
	}
}

// Load reads and validates the scene file at path. Relative source paths
// are resolved against the directory of the file.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}
	s, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a scene from YAML on top of the defaults. Unknown keys are
// rejected.
func Parse(data []byte, dir string) (*Scene, error) {
	s := Default()
	s.dir = dir

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", panner.ErrInvalidScene, err)
	}

	slices.SortStableFunc(s.Automation, func(a, b Keyframe) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		default:
			return 0
		}
	})

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the scene for errors.
func (s *Scene) Validate() error {
	r := s.Render
	if r.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive", panner.ErrInvalidScene)
	}
	if r.BlockFrames <= 0 {
		return fmt.Errorf("%w: block frames must be positive", panner.ErrInvalidScene)
	}
	switch r.BitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: bit depth %d not supported (use 16, 24 or 32)", panner.ErrInvalidScene, r.BitDepth)
	}
	if _, err := panner.ParseSmoothingKind(r.Smoothing); err != nil {
		return fmt.Errorf("%w: %w", panner.ErrInvalidScene, err)
	}
	if r.Precision != PrecisionFloat32 && r.Precision != PrecisionFloat64 {
		return fmt.Errorf("%w: unknown precision %q", panner.ErrInvalidScene, r.Precision)
	}
	if !isFinite(r.GainDB) {
		return fmt.Errorf("%w: gain must be finite", panner.ErrInvalidScene)
	}
	if !isFinite(r.TailSeconds) || r.TailSeconds < 0 {
		return fmt.Errorf("%w: tail must be non-negative", panner.ErrInvalidScene)
	}
	if !isFinite(r.SpeedOfSound) || r.SpeedOfSound < 0 {
		return fmt.Errorf("%w: speed of sound must be non-negative", panner.ErrInvalidScene)
	}

	for i, k := range s.Automation {
		if !isFinite(k.Time) || k.Time < 0 {
			return fmt.Errorf("%w: keyframe %d: time must be non-negative", panner.ErrInvalidScene, i)
		}
	}
	for i, src := range s.Sources {
		if src.Path == "" {
			return fmt.Errorf("%w: source %d has no path", panner.ErrInvalidScene, i)
		}
	}
	return nil
}

// SourcePaths returns the source paths, resolved against the scene
// directory.
func (s *Scene) SourcePaths() []string {
	paths := make([]string, len(s.Sources))
	for i, src := range s.Sources {
		if filepath.IsAbs(src.Path) || s.dir == "" {
			paths[i] = src.Path
		} else {
			paths[i] = filepath.Join(s.dir, src.Path)
		}
	}
	return paths
}

// Config returns an engine configuration for the given number of sources.
func (s *Scene) Config(sources int) (*panner.Config, error) {
	kind, err := panner.ParseSmoothingKind(s.Render.Smoothing)
	if err != nil {
		return nil, err
	}

	cfg := panner.DefaultConfig(s.Render.SampleRate, sources)
	cfg.MaxBlockFrames = s.Render.BlockFrames
	cfg.Smoothing = kind
	if s.Render.SpeedOfSound > 0 {
		cfg.SpeedOfSound = s.Render.SpeedOfSound
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// TailFrames returns the render tail in frames.
func (s *Scene) TailFrames() int {
	return int(math.Round(s.Render.TailSeconds * float64(s.Render.SampleRate)))
}

// GainLinear returns the output gain as a linear factor.
func (s *Scene) GainLinear() float64 {
	return math.Pow(10, s.Render.GainDB/20)
}

// Apply overlays the non-nil fields of c onto ctl.
func (c Controls) Apply(ctl panner.Controls) panner.Controls {
	if c.Radius != nil {
		ctl.Radius = *c.Radius
	}
	if c.SourceSpacing != nil {
		ctl.SourceSpacing = *c.SourceSpacing
	}
	if c.EarSpacing != nil {
		ctl.EarSpacing = *c.EarSpacing
	}
	if c.Rotation != nil {
		ctl.Rotation = *c.Rotation
	}
	if c.Window != nil {
		ctl.Window = *c.Window
	}
	if c.RelativeDelay != nil {
		ctl.RelativeDelay = 0
		if *c.RelativeDelay {
			ctl.RelativeDelay = 1
		}
	}
	return ctl
}

// Initial returns the controls in effect before the first keyframe.
func (s *Scene) Initial() panner.Controls {
	return s.Controls.Apply(panner.DefaultControls())
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
