// Package quiz derives a vocabulary practice quiz from a completed lesson.
//
// Vocabulary items come from the inline parenthetical glosses in the
// dialogue. Lessons without glosses (typically English-target lessons) fall
// back to a single AI translation call. Each item becomes a four-option
// multiple-choice question whose distractors are drawn from the other
// items' translations, topped up from a generic word list when the lesson
// is too small to supply three.
package quiz

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"github.com/verbalis/verbalis/internal/lesson"
	"github.com/verbalis/verbalis/internal/llmjson"
	"github.com/verbalis/verbalis/internal/segment"
	"github.com/verbalis/verbalis/pkg/provider/llm"
)

// MaxItems bounds the quiz size regardless of dialogue length.
const MaxItems = 10

// optionCount is the number of choices per question.
const optionCount = 4

// glossPairPattern captures a word followed by its parenthetical gloss,
// matching both ASCII and fullwidth parentheses.
var glossPairPattern = regexp.MustCompile(`(\S+)\s*(?:\(([^)]+)\)|（([^）]+)）)`)

// Item is one vocabulary entry extracted from the dialogue.
type Item struct {
	Word        string `json:"word"`
	Translation string `json:"translation"`

	// Context is the surrounding dialogue: previous line, the
	// gloss-stripped current line, and the next line.
	Context string `json:"context"`
}

// Question is one multiple-choice question.
type Question struct {
	Item    Item
	Options []string
	Answer  string
}

// genericDistractors supplies filler options per native language when the
// lesson yields fewer than three alternative translations.
var genericDistractors = map[string][]string{
	"english": {"house", "water", "tomorrow", "happy", "book", "slowly", "kitchen", "friend"},
	"spanish": {"casa", "agua", "mañana", "feliz", "libro", "despacio", "cocina", "amigo"},
	"french":  {"maison", "eau", "demain", "heureux", "livre", "lentement", "cuisine", "ami"},
	"german":  {"Haus", "Wasser", "morgen", "glücklich", "Buch", "langsam", "Küche", "Freund"},
}

// translatePromptTemplate asks for translations of vocabulary picked from
// an unglossed dialogue. The %s slots are the native language and the
// numbered dialogue lines.
const translatePromptTemplate = `Pick up to 10 useful vocabulary words from this dialogue and translate each into %s.

Dialogue:
%s

Respond with ONLY a JSON array in this exact format (no markdown, no prose):
[{"word": "<word as it appears>", "translation": "<%s translation>"}]`

// Extractor pulls vocabulary items out of a lesson plan.
type Extractor struct {
	llm llm.Provider
}

// NewExtractor returns an extractor. provider may be nil; extraction then
// relies on inline glosses alone.
func NewExtractor(provider llm.Provider) *Extractor {
	return &Extractor{llm: provider}
}

// Extract returns up to [MaxItems] vocabulary items. Gloss-derived items
// never require a network call; the AI translation path runs only when the
// dialogue carries no glosses at all.
func (e *Extractor) Extract(ctx context.Context, plan *lesson.Plan, nativeLanguage string) ([]Item, error) {
	items := glossItems(plan)
	if len(items) > 0 {
		return items, nil
	}
	return e.translateItems(ctx, plan, nativeLanguage)
}

// glossItems collects word/gloss pairs from the dialogue, newest-first
// dedup by word, capped at [MaxItems].
func glossItems(plan *lesson.Plan) []Item {
	var items []Item
	seen := make(map[string]bool)
	for i, turn := range plan.Dialogue {
		for _, m := range glossPairPattern.FindAllStringSubmatch(turn.Line.Display, -1) {
			word := strings.TrimSpace(m[1])
			gloss := strings.TrimSpace(m[2])
			if gloss == "" {
				gloss = strings.TrimSpace(m[3])
			}
			if word == "" || gloss == "" || seen[strings.ToLower(word)] {
				continue
			}
			seen[strings.ToLower(word)] = true
			items = append(items, Item{
				Word:        word,
				Translation: gloss,
				Context:     contextSnippet(plan, i),
			})
			if len(items) == MaxItems {
				return items
			}
		}
	}
	return items
}

// translateItems asks the LLM to pick and translate vocabulary when the
// dialogue has no glosses.
func (e *Extractor) translateItems(ctx context.Context, plan *lesson.Plan, nativeLanguage string) ([]Item, error) {
	if e.llm == nil {
		return nil, nil
	}

	var lines strings.Builder
	for i, turn := range plan.Dialogue {
		fmt.Fprintf(&lines, "%d. %s\n", i+1, turn.Line.CleanText)
	}
	prompt := fmt.Sprintf(translatePromptTemplate, nativeLanguage, lines.String(), nativeLanguage)

	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Temperature: 0.3,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("quiz: translate vocabulary: %w", err)
	}

	var raw []Item
	if err := llmjson.Unmarshal(resp.Content, &raw); err != nil {
		return nil, fmt.Errorf("quiz: translate vocabulary: %w", err)
	}

	var items []Item
	seen := make(map[string]bool)
	for _, it := range raw {
		it.Word = strings.TrimSpace(it.Word)
		it.Translation = strings.TrimSpace(it.Translation)
		if it.Word == "" || it.Translation == "" || seen[strings.ToLower(it.Word)] {
			continue
		}
		seen[strings.ToLower(it.Word)] = true
		it.Context = contextSnippet(plan, findTurn(plan, it.Word))
		items = append(items, it)
		if len(items) == MaxItems {
			break
		}
	}
	return items, nil
}

// findTurn returns the index of the first turn containing word, or 0.
func findTurn(plan *lesson.Plan, word string) int {
	lower := strings.ToLower(word)
	for i, turn := range plan.Dialogue {
		if strings.Contains(strings.ToLower(turn.Line.CleanText), lower) {
			return i
		}
	}
	return 0
}

// contextSnippet joins the previous line, the gloss-stripped current line,
// and the next line around turn index i.
func contextSnippet(plan *lesson.Plan, i int) string {
	var parts []string
	if i > 0 {
		parts = append(parts, plan.Dialogue[i-1].Line.CleanText)
	}
	parts = append(parts, segment.StripGloss(plan.Dialogue[i].Line.Display))
	if i+1 < len(plan.Dialogue) {
		parts = append(parts, plan.Dialogue[i+1].Line.CleanText)
	}
	return strings.Join(parts, " … ")
}

// buildQuestion assembles the option set for item: the correct translation
// plus up to three distinct distractors, preferring the other items'
// translations and topping up from the generic list for nativeLanguage.
func buildQuestion(item Item, all []Item, nativeLanguage string, rnd *rand.Rand) Question {
	used := map[string]bool{strings.ToLower(item.Translation): true}
	options := []string{item.Translation}

	pool := make([]string, 0, len(all))
	for _, other := range all {
		if !used[strings.ToLower(other.Translation)] {
			pool = append(pool, other.Translation)
			used[strings.ToLower(other.Translation)] = true
		}
	}
	rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	for _, d := range pool {
		if len(options) == optionCount {
			break
		}
		options = append(options, d)
	}

	generic := genericDistractors[strings.ToLower(nativeLanguage)]
	if generic == nil {
		generic = genericDistractors["english"]
	}
	for _, d := range generic {
		if len(options) == optionCount {
			break
		}
		if used[strings.ToLower(d)] {
			continue
		}
		used[strings.ToLower(d)] = true
		options = append(options, d)
	}

	rnd.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
	return Question{Item: item, Options: options, Answer: item.Translation}
}
