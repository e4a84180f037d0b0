// Package lesson defines the roleplay lesson data model and the validated
// parsing boundary between raw LLM output and that model.
package lesson

import (
	"context"
	"encoding/json"

	"github.com/verbalis/verbalis/internal/segment"
)

// Party identifies who speaks a dialogue turn.
type Party string

const (
	// PartyLearner marks a line the human learner must speak.
	PartyLearner Party = "A"

	// PartyPartner marks a line the simulated conversation partner speaks.
	PartyPartner Party = "B"
)

// IsValid reports whether p is a recognised party.
func (p Party) IsValid() bool {
	return p == PartyLearner || p == PartyPartner
}

// Line is the text of one dialogue turn.
type Line struct {
	// Display is the text shown to the learner, possibly with a
	// parenthetical translation gloss.
	Display string `json:"display"`

	// CleanText is Display with the gloss stripped. Authoritative for
	// matching and speech synthesis.
	CleanText string `json:"clean_text"`

	// Hiragana is a phonetic reading aid, present only for Japanese lines.
	Hiragana string `json:"hiragana,omitempty"`
}

// Explanation is an optional grammar or usage note attached to a turn.
type Explanation struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Turn is one scripted line of dialogue.
type Turn struct {
	Party       Party        `json:"party"`
	Line        Line         `json:"line"`
	Explanation *Explanation `json:"explanation,omitempty"`

	// Sentences holds the speakable sub-chunks of CleanText, computed
	// lazily for learner turns and memoized here. Never recomputed once
	// set: splitting may cost a network call.
	Sentences []string `json:"sentences,omitempty"`
}

// EnsureSentences returns the turn's speakable chunks, computing and
// memoizing them on first call. Subsequent calls return the stored value
// without touching the splitter.
func (t *Turn) EnsureSentences(ctx context.Context, splitter *segment.Splitter, language string) []string {
	if t.Sentences == nil {
		t.Sentences = splitter.Split(ctx, t.Line.CleanText, language)
	}
	return t.Sentences
}

// Plan is a scripted roleplay lesson.
type Plan struct {
	// ID is a stable identifier, assigned at creation when absent.
	ID string `json:"id"`

	Title              string `json:"title"`
	BackgroundContext  string `json:"background_context"`
	Scenario           string `json:"scenario"`
	Language           string `json:"language"`
	Topic              string `json:"topic,omitempty"`
	IllustrationPrompt string `json:"illustration_prompt,omitempty"`
	IllustrationURL    string `json:"illustration_url,omitempty"`

	// Dialogue is the ordered turn sequence. Always non-empty for a valid
	// plan; restores of plans with an empty dialogue are rejected.
	Dialogue []*Turn `json:"dialogue"`

	// Lifecycle flags. Mutually informative but independently settable: a
	// completed lesson is not automatically in review mode.
	IsCompleted  bool `json:"is_completed,omitempty"`
	IsReviewMode bool `json:"is_review_mode,omitempty"`
}

// Clone returns a deep copy of p via a JSON round-trip. Used to snapshot a
// plan into history so the stored record never shares state with the live
// session.
func (p *Plan) Clone() *Plan {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	var out Plan
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return &out
}
