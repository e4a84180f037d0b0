package reader_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/verbalis/verbalis/pkg/provider/speech"
	"github.com/verbalis/verbalis/pkg/provider/speech/reader"
)

func TestCapture_ReadsLines(t *testing.T) {
	t.Parallel()

	r := reader.New(strings.NewReader("hola\n\n  bonjour  \n"))
	ctx := context.Background()

	got, err := r.Capture(ctx, "spanish")
	if err != nil || got != "hola" {
		t.Fatalf("Capture() = (%q, %v)", got, err)
	}

	// Blank lines are skipped and whitespace trimmed.
	got, err = r.Capture(ctx, "french")
	if err != nil || got != "bonjour" {
		t.Fatalf("Capture() = (%q, %v)", got, err)
	}

	if _, err := r.Capture(ctx, "french"); !errors.Is(err, io.EOF) {
		t.Fatalf("Capture() on exhausted input error = %v, want io.EOF", err)
	}
}

func TestCapture_UnsupportedLanguage(t *testing.T) {
	t.Parallel()

	r := reader.New(strings.NewReader("hello\n"), reader.WithSupportedLanguages("spanish", "French"))

	if _, err := r.Capture(context.Background(), "japanese"); !errors.Is(err, speech.ErrUnsupportedLanguage) {
		t.Fatalf("Capture() error = %v, want ErrUnsupportedLanguage", err)
	}
	if got, err := r.Capture(context.Background(), "FRENCH"); err != nil || got != "hello" {
		t.Fatalf("Capture() = (%q, %v), want case-insensitive language match", got, err)
	}
}

func TestCapture_ContextCancellation(t *testing.T) {
	t.Parallel()

	pr, _ := io.Pipe()
	r := reader.New(pr)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := r.Capture(ctx, "spanish"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Capture() error = %v, want deadline exceeded", err)
	}
}
