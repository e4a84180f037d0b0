// Package speech defines the Recognizer interface for capturing one spoken
// attempt from the learner as text.
//
// Recognition quality varies wildly by language; the verification layer,
// not the recognizer, decides how much slack a transcript gets.
package speech

import (
	"context"
	"errors"
)

// ErrUnsupportedLanguage is returned by Capture when the backend cannot
// transcribe the requested language. The session treats this as a
// permanent condition and disables capture for the remainder of the
// lesson; it is never fatal to the app.
var ErrUnsupportedLanguage = errors.New("speech: language not supported by recognizer")

// Recognizer captures one utterance and returns its transcript.
//
// Implementations must be safe for concurrent use.
type Recognizer interface {
	// Capture blocks until one utterance is transcribed, ctx is
	// cancelled, or capture fails. The transcript is returned verbatim;
	// normalization is the caller's concern.
	Capture(ctx context.Context, language string) (string, error)

	// Name identifies the backend for logging.
	Name() string
}
