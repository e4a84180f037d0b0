// Package mock provides a test double for the tts.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/verbalis/verbalis/pkg/provider/tts"
)

// Provider is a configurable tts.Provider test double. The zero value
// returns a small fake payload for every request.
type Provider struct {
	mu sync.Mutex

	// SynthesizeAudio is the payload Synthesize returns. Defaults to a
	// short fake chunk when nil.
	SynthesizeAudio []byte

	// SynthesizeErr, when set, is returned by Synthesize.
	SynthesizeErr error

	// StreamChunks are emitted by SynthesizeStream, one per received text
	// fragment (cycled when fragments outnumber chunks).
	StreamChunks [][]byte

	// StreamErr, when set, is returned by SynthesizeStream before any
	// fragment is consumed.
	StreamErr error

	// StreamTexts records every text fragment received across streaming
	// sessions.
	StreamTexts []string

	streamSessions int

	// ProviderName overrides Name(). Defaults to "mock".
	ProviderName string

	// SynthesizeCalls records every one-shot request.
	SynthesizeCalls []tts.Request
}

var _ tts.Provider = (*Provider)(nil)

func (p *Provider) Synthesize(_ context.Context, req tts.Request) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, req)
	if p.SynthesizeErr != nil {
		return nil, p.SynthesizeErr
	}
	if p.SynthesizeAudio != nil {
		return p.SynthesizeAudio, nil
	}
	return []byte("fake-audio:" + req.Text), nil
}

func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, _ tts.VoiceProfile) (<-chan []byte, error) {
	p.mu.Lock()
	if p.StreamErr != nil {
		p.mu.Unlock()
		return nil, p.StreamErr
	}
	p.streamSessions++
	p.mu.Unlock()

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		i := 0
		for {
			select {
			case fragment, ok := <-text:
				if !ok {
					return
				}
				chunk := []byte("fake-chunk:" + fragment)
				p.mu.Lock()
				p.StreamTexts = append(p.StreamTexts, fragment)
				if len(p.StreamChunks) > 0 {
					chunk = p.StreamChunks[i%len(p.StreamChunks)]
					i++
				}
				p.mu.Unlock()
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (p *Provider) Name() string {
	if p.ProviderName != "" {
		return p.ProviderName
	}
	return "mock"
}

// CallCount returns the number of one-shot requests received.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SynthesizeCalls)
}

// StreamCount returns the number of streaming sessions opened.
func (p *Provider) StreamCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streamSessions
}

// Reset clears recorded calls.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
	p.StreamTexts = nil
	p.streamSessions = 0
}
