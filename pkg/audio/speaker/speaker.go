// Package speaker provides an audio.Player backed by the system audio
// device, decoding MP3 payloads with beep.
package speaker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"

	"github.com/verbalis/verbalis/pkg/audio"
)

// Player implements audio.Player over the beep speaker. The underlying
// device is initialized once at the sample rate of the first payload;
// later payloads are resampled to it.
type Player struct {
	mu         sync.Mutex
	sampleRate beep.SampleRate
	inited     bool
}

var _ audio.Player = (*Player)(nil)

// New returns an uninitialized Player. The audio device is opened lazily
// on the first Play call.
func New() *Player {
	return &Player{}
}

// Play decodes and plays one MP3 payload, blocking until it finishes or
// ctx is cancelled.
func (p *Player) Play(ctx context.Context, payload []byte) error {
	streamer, format, err := mp3.Decode(nopReadCloser{bytes.NewReader(payload)})
	if err != nil {
		return fmt.Errorf("speaker: decode mp3: %w", err)
	}
	defer streamer.Close()

	if err := p.ensureInit(format.SampleRate); err != nil {
		return err
	}

	var stream beep.Streamer = streamer
	if format.SampleRate != p.sampleRate {
		stream = beep.Resample(4, format.SampleRate, p.sampleRate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(stream, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

// Stop clears the device, interrupting any in-flight playback.
func (p *Player) Stop() {
	p.mu.Lock()
	inited := p.inited
	p.mu.Unlock()
	if inited {
		speaker.Clear()
	}
}

func (p *Player) ensureInit(rate beep.SampleRate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inited {
		return nil
	}
	if err := speaker.Init(rate, rate.N(time.Second/10)); err != nil {
		return fmt.Errorf("speaker: init: %w", err)
	}
	p.sampleRate = rate
	p.inited = true
	return nil
}

// nopReadCloser adapts a bytes.Reader to the io.ReadCloser mp3.Decode
// expects.
type nopReadCloser struct {
	io.Reader
}

func (nopReadCloser) Close() error { return nil }
