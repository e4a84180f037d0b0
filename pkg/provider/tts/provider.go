// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service and presents two entry
// points: Synthesize, a one-shot call returning a complete encoded audio
// payload for a dialogue line, and SynthesizeStream, which pipes text
// fragments through a low-latency streaming session.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// VoiceProfile identifies a synthesis voice.
type VoiceProfile struct {
	// ID is the provider-assigned voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Metadata carries provider-specific labels such as accent or gender.
	Metadata map[string]string
}

// VoiceSettings tunes synthesis expressiveness. The zero value means
// provider defaults.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// Request is one one-shot synthesis call.
type Request struct {
	// Text is the sentence to speak.
	Text string

	// Voice selects the synthesis voice. Voice.ID must be non-empty.
	Voice VoiceProfile

	// Settings tunes the voice; zero value uses provider defaults.
	Settings VoiceSettings

	// LanguageCode is an optional ISO 639-1 hint for pronunciation.
	LanguageCode string
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize returns a complete encoded audio payload (MP3 unless the
	// implementation documents otherwise) for req.Text. Returns an error
	// on any transport or provider failure; it never returns a partial
	// payload.
	Synthesize(ctx context.Context, req Request) ([]byte, error)

	// SynthesizeStream consumes text fragments from the text channel and
	// returns a channel emitting raw audio chunks as they are
	// synthesised. The returned channel is closed when all text has been
	// synthesised or ctx is cancelled; the caller must drain it.
	SynthesizeStream(ctx context.Context, text <-chan string, voice VoiceProfile) (<-chan []byte, error)

	// Name identifies the backend for logging and metrics.
	Name() string
}
