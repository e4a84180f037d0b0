package lesson

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/verbalis/verbalis/internal/llmjson"
	"github.com/verbalis/verbalis/internal/segment"
)

// ErrEmptyDialogue is returned when a parsed plan contains no turns.
var ErrEmptyDialogue = errors.New("lesson: dialogue is empty")

// ParsePlan decodes a raw LLM reply into a validated [Plan]. Markdown code
// fences around the JSON are stripped before decoding.
//
// Validation is strict: the dialogue must be non-empty and every turn must
// carry a valid party and a non-empty line. A missing clean_text is derived
// from display by stripping the gloss; a missing ID is assigned. The raw AI
// shape is never trusted past this boundary.
func ParsePlan(content string) (*Plan, error) {
	var plan Plan
	if err := llmjson.Unmarshal(content, &plan); err != nil {
		return nil, fmt.Errorf("lesson: parse plan: %w", err)
	}
	if err := normalize(&plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// normalize validates plan in place, deriving missing fields where a safe
// derivation exists.
func normalize(plan *Plan) error {
	if len(plan.Dialogue) == 0 {
		return ErrEmptyDialogue
	}

	var errs []error
	for i, turn := range plan.Dialogue {
		if turn == nil {
			errs = append(errs, fmt.Errorf("lesson: turn %d is null", i))
			continue
		}
		if !turn.Party.IsValid() {
			errs = append(errs, fmt.Errorf("lesson: turn %d has invalid party %q", i, turn.Party))
		}
		if turn.Line.CleanText == "" {
			turn.Line.CleanText = segment.StripGloss(turn.Line.Display)
		}
		if turn.Line.CleanText == "" {
			errs = append(errs, fmt.Errorf("lesson: turn %d has no text", i))
		}
		if turn.Line.Display == "" {
			turn.Line.Display = turn.Line.CleanText
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	return nil
}
