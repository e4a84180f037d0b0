// Package verify routes a spoken transcript to the right judge and interprets
// the outcome.
//
// Languages with unreliable phonetic browser-grade recognition (Japanese,
// Korean, Chinese) are judged by the LLM, which is prompted to be lenient
// about partial and mistranscribed vocabulary. Everything else is judged
// locally by the similarity matcher. An LLM or parse failure is a hard
// verification error, never a silent accept: the learner retries and the
// cursor does not move.
package verify

import (
	"context"
	"fmt"
	"strings"

	"github.com/verbalis/verbalis/internal/lang"
	"github.com/verbalis/verbalis/internal/llmjson"
	"github.com/verbalis/verbalis/internal/match"
	"github.com/verbalis/verbalis/internal/observe"
	"github.com/verbalis/verbalis/pkg/provider/llm"
)

// DefaultSkipAfterAttempts is the consecutive-failure count after which the
// manual skip affordance is offered for the hardest language.
const DefaultSkipAfterAttempts = 3

// skipLanguage is the only language hard enough to earn the skip escape
// hatch: recognition of technical vocabulary is poorest for Chinese.
const skipLanguage = "chinese"

// Result is the interpreted outcome of one verification.
type Result struct {
	// Accept is true when the attempt counts as correct and the session
	// may advance.
	Accept bool

	// Feedback is shown to the learner: encouragement from the AI judge,
	// or a synthesized message with the match percentage.
	Feedback string

	// Confidence is the similarity score in [0, 1] for locally judged
	// languages; 1 for AI-judged accepts, 0 for AI-judged rejects.
	Confidence float64
}

// judgePromptTemplate asks for a strict boolean verdict with localized
// encouragement. The %s slots are language, expected text, spoken text,
// native language, and the leniency block.
const judgePromptTemplate = `You are a pronunciation coach for a %s learner.

The learner was asked to say:
%s

Speech recognition transcribed their attempt as:
%s

Decide whether the attempt is an acceptable rendition of the expected sentence. Speech recognition for this language is unreliable: accept attempts where the meaning and most of the wording match, even when the transcript mangles individual words.%s

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{"is_match": <true or false>, "feedback": "<one short encouraging sentence in %s>"}`

const chineseLeniency = ` Be especially lenient with technical or uncommon vocabulary: Chinese transcripts of such words are frequently wrong even when the learner said them correctly.`

// judgeResponse is the expected JSON structure returned by the AI judge.
type judgeResponse struct {
	IsMatch  bool   `json:"is_match"`
	Feedback string `json:"feedback"`
}

// Option is a functional option for configuring a [Dispatcher].
type Option func(*Dispatcher)

// WithSimilarityThreshold overrides the matcher's edit-distance cut.
func WithSimilarityThreshold(t float64) Option {
	return func(d *Dispatcher) { d.similarityThreshold = t }
}

// WithWordMatchThreshold overrides the matcher's word-overlap cut.
func WithWordMatchThreshold(t float64) Option {
	return func(d *Dispatcher) { d.wordMatchThreshold = t }
}

// WithSkipAfterAttempts overrides the failure count that unlocks the manual
// skip for the hardest language. Default: 3.
func WithSkipAfterAttempts(n int) Option {
	return func(d *Dispatcher) { d.skipAfterAttempts = n }
}

// WithNativeLanguage sets the language the AI judge writes feedback in.
// Default: English.
func WithNativeLanguage(language string) Option {
	return func(d *Dispatcher) { d.nativeLanguage = language }
}

// Dispatcher verifies spoken transcripts against expected lines. Safe for
// concurrent use; it holds no per-attempt state (the session owns the
// attempts counter).
type Dispatcher struct {
	judge               llm.Provider
	similarityThreshold float64
	wordMatchThreshold  float64
	skipAfterAttempts   int
	nativeLanguage      string
}

// NewDispatcher constructs a [Dispatcher]. judge is the LLM used for
// AI-verified languages; it may be nil only when those languages are never
// dispatched.
func NewDispatcher(judge llm.Provider, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		judge:               judge,
		similarityThreshold: match.DefaultSimilarityThreshold,
		wordMatchThreshold:  match.DefaultWordMatchThreshold,
		skipAfterAttempts:   DefaultSkipAfterAttempts,
		nativeLanguage:      "English",
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Verify judges spoken against expected for language.
//
// For AI-verified languages the returned error is non-nil when the judge
// call fails or returns an unparseable verdict; the caller must surface the
// failure and re-enable capture without advancing. For all other languages
// Verify cannot fail.
func (d *Dispatcher) Verify(ctx context.Context, spoken, expected, language string) (Result, error) {
	if lang.IsAIVerified(language) {
		return d.aiJudge(ctx, spoken, expected, language)
	}

	decision := match.Evaluate(expected, spoken,
		match.WithSimilarityThreshold(d.similarityThreshold),
		match.WithWordMatchThreshold(d.wordMatchThreshold),
	)
	return Result{
		Accept:     decision.Accept,
		Feedback:   localFeedback(decision),
		Confidence: decision.Confidence,
	}, nil
}

// CanSkip reports whether the manual force-accept should be offered after
// attempts consecutive failures in language.
func (d *Dispatcher) CanSkip(language string, attempts int) bool {
	return lang.IsAIVerified(language) &&
		strings.EqualFold(language, skipLanguage) &&
		attempts >= d.skipAfterAttempts
}

func (d *Dispatcher) aiJudge(ctx context.Context, spoken, expected, language string) (Result, error) {
	if d.judge == nil {
		return Result{}, fmt.Errorf("verify: no judge configured for %s", language)
	}
	ctx, span := observe.StartSpan(ctx, "verify.judge")
	defer span.End()

	leniency := ""
	if strings.EqualFold(language, skipLanguage) {
		leniency = chineseLeniency
	}
	prompt := fmt.Sprintf(judgePromptTemplate, language, expected, spoken, leniency, d.nativeLanguage)

	resp, err := d.judge.Complete(ctx, llm.CompletionRequest{
		Temperature: 0.2,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		span.RecordError(err)
		return Result{}, fmt.Errorf("verify: ai judge: %w", err)
	}

	var verdict judgeResponse
	if err := llmjson.Unmarshal(resp.Content, &verdict); err != nil {
		span.RecordError(err)
		return Result{}, fmt.Errorf("verify: ai judge verdict: %w", err)
	}

	confidence := 0.0
	if verdict.IsMatch {
		confidence = 1.0
	}
	return Result{
		Accept:     verdict.IsMatch,
		Feedback:   verdict.Feedback,
		Confidence: confidence,
	}, nil
}

// localFeedback synthesizes feedback text with the match percentage for
// locally judged languages.
func localFeedback(decision match.Decision) string {
	pct := int(decision.Confidence*100 + 0.5)
	if decision.Accept {
		return fmt.Sprintf("Great job! %d%% match.", pct)
	}
	if decision.NearMiss {
		return fmt.Sprintf("So close (%d%% match)! Say the whole line once more.", pct)
	}
	return fmt.Sprintf("Not quite (%d%% match). Listen again and give it another try.", pct)
}
