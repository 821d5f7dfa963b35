//go:build headless

package playback

import (
	"context"
	"time"

	panner "github.com/tphakala/go-ensemble-pan"
)

// Player is unavailable in headless builds.
type Player struct{}

// Open always fails with panner.ErrPlaybackUnavailable.
func Open(*Stream, int, time.Duration) (*Player, error) {
	return nil, panner.ErrPlaybackUnavailable
}

func (p *Player) Play() {}

func (p *Player) Wait(context.Context, func(int)) error {
	return panner.ErrPlaybackUnavailable
}

func (p *Player) Close() error { return nil }
