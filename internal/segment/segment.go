// Package segment prepares lesson lines for incremental speech practice:
// it strips inline translation glosses and breaks long lines into speakable
// chunks.
//
// Splitting is AI-assisted: the model is asked for 2-4 natural chunks as a
// JSON array. Any failure — network, malformed output, or a degenerate
// single-chunk answer on a long line — degrades to a deterministic
// punctuation split, and as a last resort to a midpoint bisection. Split
// never returns an error and never returns an empty sequence.
package segment

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/verbalis/verbalis/internal/lang"
	"github.com/verbalis/verbalis/internal/llmjson"
	"github.com/verbalis/verbalis/pkg/provider/llm"
)

// Default split thresholds. Spaceless languages are measured in runes and
// tolerate longer lines before splitting; space-delimited languages are
// measured in words.
const (
	DefaultSpacelessThreshold = 15
	DefaultSpacedThreshold    = 5

	// degenerateFactor: a single-chunk AI answer on text longer than
	// degenerateFactor × threshold counts as a failed split.
	degenerateFactor = 1.5
)

// glossPattern matches parenthetical translation glosses, ASCII and
// fullwidth alike.
var glossPattern = regexp.MustCompile(`\([^)]*\)|（[^）]*）`)

// StripGloss removes every parenthetical gloss group from text, collapses
// whitespace, and trims. It is idempotent.
func StripGloss(text string) string {
	stripped := glossPattern.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(stripped), " ")
}

// Option is a functional option for configuring a [Splitter].
type Option func(*Splitter)

// WithSpacelessThreshold sets the rune-count threshold above which lines in
// spaceless languages are split. Default: 15.
func WithSpacelessThreshold(n int) Option {
	return func(s *Splitter) { s.spacelessThreshold = n }
}

// WithSpacedThreshold sets the word-count threshold above which lines in
// space-delimited languages are split. Default: 5.
func WithSpacedThreshold(n int) Option {
	return func(s *Splitter) { s.spacedThreshold = n }
}

// Splitter breaks lesson lines into speakable chunks. It is safe for
// concurrent use; callers memoize results per turn so a line is only ever
// split once.
type Splitter struct {
	llm                llm.Provider
	spacelessThreshold int
	spacedThreshold    int
}

// NewSplitter constructs a [Splitter]. provider may be nil, in which case the
// AI path is skipped entirely and only the deterministic fallback runs.
func NewSplitter(provider llm.Provider, opts ...Option) *Splitter {
	s := &Splitter{
		llm:                provider,
		spacelessThreshold: DefaultSpacelessThreshold,
		spacedThreshold:    DefaultSpacedThreshold,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Split partitions text into an ordered, non-empty sequence of speakable
// chunks. Lines at or below the language-class threshold are returned whole;
// longer lines go through the AI split with deterministic fallback.
func (s *Splitter) Split(ctx context.Context, text, language string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{""}
	}

	metric := lang.LengthMetric(language, text)
	threshold := s.threshold(language)
	if metric <= threshold {
		return []string{text}
	}

	if s.llm != nil {
		chunks, err := s.aiSplit(ctx, text, language)
		switch {
		case err != nil:
			slog.Debug("ai sentence split failed, using fallback",
				"language", language, "error", err)
		case len(chunks) == 1 && float64(metric) > degenerateFactor*float64(threshold):
			slog.Debug("ai sentence split returned a single chunk for a long line, using fallback",
				"language", language, "metric", metric)
		default:
			return chunks
		}
	}

	return s.fallbackSplit(text, language)
}

func (s *Splitter) threshold(language string) int {
	if lang.IsSpaceless(language) {
		return s.spacelessThreshold
	}
	return s.spacedThreshold
}

const splitPromptTemplate = `Split the following %s sentence into 2-4 natural, speakable chunks that a language learner can practise one at a time. Break at natural phrase boundaries. Do not translate, reword, or drop any part of the text.

Sentence: %s

Respond with ONLY a JSON array of strings (no markdown, no prose), for example:
["first chunk", "second chunk"]`

// aiSplit asks the model to partition text and validates the answer: it must
// parse as a JSON array of non-empty strings.
func (s *Splitter) aiSplit(ctx context.Context, text, language string) ([]string, error) {
	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		Temperature: 0.1,
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(splitPromptTemplate, language, text)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("segment: ai split: %w", err)
	}

	var raw []string
	if err := llmjson.Unmarshal(resp.Content, &raw); err != nil {
		return nil, fmt.Errorf("segment: ai split: %w", err)
	}

	chunks := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c == "" {
			return nil, fmt.Errorf("segment: ai split: empty chunk in response")
		}
		chunks = append(chunks, c)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("segment: ai split: empty array in response")
	}
	return chunks, nil
}

// fallbackSplit splits text on language-specific sentence-final punctuation,
// keeping each delimiter attached to its preceding fragment. When fewer than
// two sentences result, the text is bisected by raw length instead.
func (s *Splitter) fallbackSplit(text, language string) []string {
	pattern := lang.SentenceEnd(language)

	var sentences []string
	last := 0
	for _, loc := range pattern.FindAllStringIndex(text, -1) {
		fragment := strings.TrimSpace(text[last:loc[1]])
		if fragment != "" {
			sentences = append(sentences, fragment)
		}
		last = loc[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		sentences = append(sentences, rest)
	}

	if len(sentences) >= 2 {
		return sentences
	}
	return bisect(text, language)
}

// bisect halves text at the character midpoint for spaceless languages and
// at the word midpoint otherwise. Last-resort split: the halves are not
// guaranteed to be natural phrases, only speakable lengths.
func bisect(text, language string) []string {
	if lang.IsSpaceless(language) {
		runes := []rune(text)
		if len(runes) < 2 {
			return []string{text}
		}
		mid := len(runes) / 2
		return []string{
			strings.TrimSpace(string(runes[:mid])),
			strings.TrimSpace(string(runes[mid:])),
		}
	}

	words := strings.Fields(text)
	if len(words) < 2 {
		return []string{text}
	}
	mid := len(words) / 2
	return []string{
		strings.Join(words[:mid], " "),
		strings.Join(words[mid:], " "),
	}
}
