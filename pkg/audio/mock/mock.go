// Package mock provides a test double for the audio.Player interface.
package mock

import (
	"context"
	"sync"
	"time"
)

// Player is an audio.Player test double. The zero value completes every
// Play immediately.
type Player struct {
	mu sync.Mutex

	// PlayDelay makes Play block for the given duration, interruptible
	// by ctx or Stop.
	PlayDelay time.Duration

	// PlayErr, when set, is returned by Play.
	PlayErr error

	// Played records every payload received.
	Played [][]byte

	StopCalls int

	stop chan struct{}
}

func (p *Player) Play(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	p.Played = append(p.Played, payload)
	delay := p.PlayDelay
	err := p.PlayErr
	stop := make(chan struct{})
	p.stop = stop
	p.mu.Unlock()

	if err != nil {
		return err
	}
	if delay == 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-stop:
		return nil
	}
}

func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StopCalls++
	if p.stop != nil {
		select {
		case <-p.stop:
		default:
			close(p.stop)
		}
	}
}

// PlayCount returns the number of Play calls received.
func (p *Player) PlayCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Played)
}

// LastPayload returns the most recent payload, or nil.
func (p *Player) LastPayload() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Played) == 0 {
		return nil
	}
	return p.Played[len(p.Played)-1]
}
