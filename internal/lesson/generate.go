package lesson

import (
	"context"
	"fmt"
	"strings"

	"github.com/verbalis/verbalis/internal/observe"
	"github.com/verbalis/verbalis/pkg/provider/llm"
)

const defaultTemperature = 0.8

// generatePromptTemplate requests the full lesson plan as strict JSON. The
// %s slots are target language, topic, native language, and the
// language-specific extras block.
const generatePromptTemplate = `You are a language tutor creating a roleplay dialogue for a learner.

Create a short, realistic roleplay conversation in %s about: %s.

Requirements:
- 6 to 10 dialogue turns alternating between party "A" (the learner) and party "B" (the conversation partner). Party A speaks first.
- Each line's "display" text may include a short %s translation in parentheses after the sentence.
- Each line's "clean_text" is the same sentence without any parenthetical translation.
- Keep sentences natural and at a beginner-friendly level.%s

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "title": "<short lesson title>",
  "background_context": "<one-paragraph scene setting>",
  "scenario": "<one-sentence description of the learner's role>",
  "language": "%s",
  "illustration_prompt": "<an image-generation prompt depicting the scene>",
  "dialogue": [
    {
      "party": "A",
      "line": {"display": "...", "clean_text": "..."},
      "explanation": {"title": "...", "body": "..."}
    }
  ]
}`

const japaneseExtra = `
- For every line include "hiragana" inside "line": the full sentence in hiragana as a reading aid.`

// Request describes the lesson the learner asked for.
type Request struct {
	// Language is the target language of the dialogue.
	Language string

	// Topic is the learner-supplied scenario topic.
	Topic string

	// NativeLanguage is the learner's own language, used for glosses.
	NativeLanguage string
}

// GeneratorOption is a functional option for configuring a [Generator].
type GeneratorOption func(*Generator)

// WithTemperature sets the sampling temperature for lesson generation.
// Default: 0.8.
func WithTemperature(t float64) GeneratorOption {
	return func(g *Generator) { g.temperature = t }
}

// Generator produces lesson plans from an LLM. Wrap the provider in a
// resilience fallback when retry across model variants is wanted; the
// generator itself performs a single logical completion.
type Generator struct {
	llm         llm.Provider
	temperature float64
}

// NewGenerator constructs a [Generator] backed by provider.
func NewGenerator(provider llm.Provider, opts ...GeneratorOption) *Generator {
	g := &Generator{
		llm:         provider,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate requests a lesson plan for req and parses it through the
// validation boundary. There is no deterministic fallback for lesson
// generation: any failure is returned to the caller and the request is
// abandoned.
func (g *Generator) Generate(ctx context.Context, req Request) (*Plan, error) {
	ctx, span := observe.StartSpan(ctx, "lesson.generate")
	defer span.End()

	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		Temperature: g.temperature,
		Messages: []llm.Message{
			{Role: "user", Content: buildGeneratePrompt(req)},
		},
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("lesson: generate: %w", err)
	}

	plan, err := ParsePlan(resp.Content)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if plan.Language == "" {
		plan.Language = req.Language
	}
	plan.Topic = req.Topic
	return plan, nil
}

// buildGeneratePrompt fills the lesson prompt for req.
func buildGeneratePrompt(req Request) string {
	native := req.NativeLanguage
	if native == "" {
		native = "English"
	}
	extra := ""
	if strings.EqualFold(req.Language, "japanese") {
		extra = japaneseExtra
	}
	return fmt.Sprintf(generatePromptTemplate,
		req.Language, req.Topic, native, extra, req.Language)
}
