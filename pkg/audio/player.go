// Package audio plays synthesized speech through a single shared output.
//
// The session engine never talks to a playback device directly; it goes
// through [Output], which enforces the one-stream-at-a-time rule and
// collapses rapid replay requests.
package audio

import (
	"context"
	"sync"
	"time"
)

// DefaultReplayQuiet is the debounce window for manual replay requests.
const DefaultReplayQuiet = 300 * time.Millisecond

// Player plays one encoded audio payload.
//
// Implementations must be safe for concurrent use.
type Player interface {
	// Play blocks until the payload finishes, ctx is cancelled, or
	// playback fails.
	Play(ctx context.Context, payload []byte) error

	// Stop interrupts any in-flight Play, which then returns.
	Stop()
}

// OutputOption configures an [Output].
type OutputOption func(*Output)

// WithReplayQuiet overrides the replay debounce window.
func WithReplayQuiet(d time.Duration) OutputOption {
	return func(o *Output) { o.quiet = d }
}

// Output is the exclusive owner of the playback device. Starting a new
// payload stops whatever was playing; rapid Replay calls collapse to the
// last one after a quiet period.
type Output struct {
	mu     sync.Mutex
	player Player
	quiet  time.Duration

	last   []byte
	timer  *time.Timer
	cancel context.CancelFunc
}

// NewOutput wraps player as the shared output.
func NewOutput(player Player, opts ...OutputOption) *Output {
	o := &Output{player: player, quiet: DefaultReplayQuiet}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Play stops any current playback, remembers payload for Replay, and
// blocks until it finishes.
func (o *Output) Play(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	o.interruptLocked()
	o.last = payload
	o.cancel = cancel
	o.mu.Unlock()

	return o.player.Play(ctx, payload)
}

// PlayStream assembles a chunked synthesis stream into one payload and
// plays it under the same exclusive-ownership rules as Play. The
// assembled payload is remembered for Replay. A stream that closes
// without emitting anything is a no-op, not an error.
func (o *Output) PlayStream(ctx context.Context, chunks <-chan []byte) error {
	var payload []byte
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				if len(payload) == 0 {
					return nil
				}
				return o.Play(ctx, payload)
			}
			payload = append(payload, chunk...)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Replay schedules the last payload to play again after the quiet period.
// Calls arriving within the window reset it, so a burst of clicks plays
// once. Replay without a prior Play is a no-op.
func (o *Output) Replay() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.last == nil {
		return
	}
	if o.timer != nil {
		o.timer.Stop()
	}
	o.timer = time.AfterFunc(o.quiet, func() {
		o.mu.Lock()
		payload := o.last
		o.interruptLocked()
		ctx, cancel := context.WithCancel(context.Background())
		o.cancel = cancel
		o.mu.Unlock()
		if payload != nil {
			defer cancel()
			_ = o.player.Play(ctx, payload)
		}
	})
}

// Stop cancels pending replays and interrupts any current playback.
func (o *Output) Stop() {
	o.mu.Lock()
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.interruptLocked()
	o.mu.Unlock()
}

// Release is Stop plus dropping the remembered payload. Called when a
// lesson ends or a new one starts.
func (o *Output) Release() {
	o.Stop()
	o.mu.Lock()
	o.last = nil
	o.mu.Unlock()
}

func (o *Output) interruptLocked() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.player.Stop()
}
