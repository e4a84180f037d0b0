// Package reader provides a speech.Recognizer that reads transcripts line
// by line from an io.Reader. It backs the interactive terminal mode, where
// the learner types (or pipes) what they would have spoken, and doubles as
// a deterministic recognizer for scripted sessions.
package reader

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/verbalis/verbalis/pkg/provider/speech"
)

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithSupportedLanguages restricts recognition to the given languages.
// Default: all languages.
func WithSupportedLanguages(languages ...string) Option {
	return func(r *Recognizer) {
		r.supported = make(map[string]bool, len(languages))
		for _, l := range languages {
			r.supported[strings.ToLower(l)] = true
		}
	}
}

// Recognizer implements speech.Recognizer over a line-oriented reader.
type Recognizer struct {
	mu        sync.Mutex
	scanner   *bufio.Scanner
	supported map[string]bool // nil means all
}

var _ speech.Recognizer = (*Recognizer)(nil)

// New returns a Recognizer reading one transcript per line from r.
func New(r io.Reader, opts ...Option) *Recognizer {
	rec := &Recognizer{scanner: bufio.NewScanner(r)}
	for _, o := range opts {
		o(rec)
	}
	return rec
}

// Capture reads the next non-empty line. It returns io.EOF when the input
// is exhausted and [speech.ErrUnsupportedLanguage] for languages outside
// the configured set.
func (r *Recognizer) Capture(ctx context.Context, language string) (string, error) {
	if r.supported != nil && !r.supported[strings.ToLower(language)] {
		return "", speech.ErrUnsupportedLanguage
	}

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for r.scanner.Scan() {
			line := strings.TrimSpace(r.scanner.Text())
			if line != "" {
				ch <- result{text: line}
				return
			}
		}
		if err := r.scanner.Err(); err != nil {
			ch <- result{err: err}
			return
		}
		ch <- result{err: io.EOF}
	}()

	select {
	case res := <-ch:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Name implements speech.Recognizer.
func (r *Recognizer) Name() string {
	return "reader"
}
