package resilience

import (
	"context"

	"github.com/verbalis/verbalis/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with failover across multiple
// synthesis backends. One-shot synthesis participates fully; streaming
// failover covers only the initial connection, since mid-stream errors
// surface as a closed channel.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
	retry RetryConfig
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates an empty [TTSFallback]. Backends are registered
// with [TTSFallback.Add] in priority order.
func NewTTSFallback(retry RetryConfig, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup[tts.Provider](cfg),
		retry: retry,
	}
}

// Add registers a backend at the end of the priority list.
func (f *TTSFallback) Add(name string, provider tts.Provider) {
	f.group.Add(name, provider)
}

// Synthesize sends the request to the first healthy backend.
func (f *TTSFallback) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	return ExecuteWithResult(f.group, func(_ string, p tts.Provider) ([]byte, error) {
		return RetryResult(ctx, f.retry, func() ([]byte, error) {
			return p.Synthesize(ctx, req)
		})
	})
}

// SynthesizeStream opens a stream on the first healthy backend.
func (f *TTSFallback) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	return ExecuteWithResult(f.group, func(_ string, p tts.Provider) (<-chan []byte, error) {
		return p.SynthesizeStream(ctx, text, voice)
	})
}

// Name identifies the first registered backend.
func (f *TTSFallback) Name() string {
	if len(f.group.entries) == 0 {
		return "tts-fallback"
	}
	return f.group.entries[0].name
}
