// Package mock provides a test double for the speech.Recognizer interface.
package mock

import (
	"context"
	"io"
	"sync"
)

// Recognizer is a speech.Recognizer test double fed from a transcript
// queue.
type Recognizer struct {
	mu sync.Mutex

	// Transcripts are returned by Capture in order. When exhausted,
	// Capture returns io.EOF unless CaptureErr is set.
	Transcripts []string

	// CaptureErr, when set, is returned by every Capture call.
	CaptureErr error

	// CaptureCalls records the language of every call.
	CaptureCalls []string

	next int
}

func (r *Recognizer) Capture(_ context.Context, language string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CaptureCalls = append(r.CaptureCalls, language)
	if r.CaptureErr != nil {
		return "", r.CaptureErr
	}
	if r.next >= len(r.Transcripts) {
		return "", io.EOF
	}
	t := r.Transcripts[r.next]
	r.next++
	return t, nil
}

func (r *Recognizer) Name() string {
	return "mock"
}

// CallCount returns the number of Capture calls received.
func (r *Recognizer) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.CaptureCalls)
}
