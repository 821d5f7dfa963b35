//go:build !headless

package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

const pollInterval = 50 * time.Millisecond

// Player drives a Stream from the default audio output device.
type Player struct {
	ctx    *oto.Context
	player *oto.Player
	stream *Stream
	mu     sync.Mutex
}

// Open creates the audio context and attaches stream to it. bufferSize is
// the device buffer length; 0 lets the driver choose.
func Open(stream *Stream, sampleRate int, bufferSize time.Duration) (*Player, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: stereoChannels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   bufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audio device: %w", err)
	}
	<-ready

	return &Player{
		ctx:    ctx,
		player: ctx.NewPlayer(stream),
		stream: stream,
	}, nil
}

// Play starts output.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player != nil {
		p.player.Play()
	}
}

// Wait blocks until the stream ends or ctx is done. progress, if not nil,
// is called with the current frame on every poll.
func (p *Player) Wait(ctx context.Context, progress func(frame int)) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if progress != nil {
				progress(p.stream.Position())
			}
			if !p.playing() {
				return nil
			}
		}
	}
}

func (p *Player) playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.player != nil && p.player.IsPlaying()
}

// Close stops output and releases the player.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil {
		return nil
	}
	err := p.player.Close()
	p.player = nil
	return err
}
