package quiz_test

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/verbalis/verbalis/internal/lesson"
	"github.com/verbalis/verbalis/internal/quiz"
	"github.com/verbalis/verbalis/pkg/provider/llm"
	"github.com/verbalis/verbalis/pkg/provider/llm/mock"
)

func glossedPlan() *lesson.Plan {
	return &lesson.Plan{
		ID:       "p1",
		Language: "french",
		Dialogue: []*lesson.Turn{
			{Party: lesson.PartyPartner, Line: lesson.Line{
				Display:   "Bonjour (Hello), bienvenue (welcome) !",
				CleanText: "Bonjour, bienvenue !",
			}},
			{Party: lesson.PartyLearner, Line: lesson.Line{
				Display:   "Je voudrais un café (coffee), s'il vous plaît",
				CleanText: "Je voudrais un café, s'il vous plaît",
			}},
			{Party: lesson.PartyPartner, Line: lesson.Line{
				Display:   "Avec du lait (milk) ?",
				CleanText: "Avec du lait ?",
			}},
		},
	}
}

func TestExtract_FromGlosses(t *testing.T) {
	t.Parallel()

	e := quiz.NewExtractor(nil)
	items, err := e.Extract(context.Background(), glossedPlan(), "english")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("Extract() len = %d, want 4: %+v", len(items), items)
	}
	if items[0].Word != "Bonjour" || items[0].Translation != "Hello" {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[2].Word != "café" || items[2].Translation != "coffee" {
		t.Errorf("items[2] = %+v", items[2])
	}
}

func TestExtract_ContextSnippet(t *testing.T) {
	t.Parallel()

	e := quiz.NewExtractor(nil)
	items, err := e.Extract(context.Background(), glossedPlan(), "english")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	// café lives in the middle turn: context spans all three lines with
	// the current line gloss-stripped.
	ctxt := items[2].Context
	if !strings.Contains(ctxt, "Bonjour, bienvenue !") {
		t.Errorf("context missing previous line: %q", ctxt)
	}
	if strings.Contains(ctxt, "(coffee)") {
		t.Errorf("context retains gloss: %q", ctxt)
	}
	if !strings.Contains(ctxt, "Avec du lait ?") {
		t.Errorf("context missing next line: %q", ctxt)
	}
}

func TestExtract_CapsAtTen(t *testing.T) {
	t.Parallel()

	plan := &lesson.Plan{ID: "p", Dialogue: []*lesson.Turn{}}
	words := []string{"un", "deux", "trois", "quatre", "cinq", "six", "sept", "huit", "neuf", "dix", "onze", "douze"}
	for _, w := range words {
		plan.Dialogue = append(plan.Dialogue, &lesson.Turn{
			Party: lesson.PartyPartner,
			Line:  lesson.Line{Display: w + " (" + w + "!)", CleanText: w},
		})
	}

	e := quiz.NewExtractor(nil)
	items, err := e.Extract(context.Background(), plan, "english")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(items) != quiz.MaxItems {
		t.Errorf("Extract() len = %d, want %d", len(items), quiz.MaxItems)
	}
}

func TestExtract_AITranslationFallback(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: "```json\n[{\"word\": \"welcome\", \"translation\": \"bienvenue\"}, {\"word\": \"coffee\", \"translation\": \"café\"}]\n```",
	}}
	plan := &lesson.Plan{
		ID:       "p",
		Language: "english",
		Dialogue: []*lesson.Turn{
			{Party: lesson.PartyPartner, Line: lesson.Line{Display: "Welcome! Would you like a coffee?", CleanText: "Welcome! Would you like a coffee?"}},
			{Party: lesson.PartyLearner, Line: lesson.Line{Display: "Yes, please.", CleanText: "Yes, please."}},
		},
	}

	e := quiz.NewExtractor(provider)
	items, err := e.Extract(context.Background(), plan, "french")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Extract() len = %d, want 2", len(items))
	}
	if items[0].Translation != "bienvenue" {
		t.Errorf("items[0] = %+v", items[0])
	}
	if provider.CallCount() != 1 {
		t.Errorf("provider called %d times, want 1", provider.CallCount())
	}
	if items[0].Context == "" {
		t.Error("AI-derived item has empty context")
	}
}

func TestExtract_GlossesSkipNetworkCall(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "[]"}}
	e := quiz.NewExtractor(provider)
	if _, err := e.Extract(context.Background(), glossedPlan(), "english"); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if provider.CallCount() != 0 {
		t.Errorf("provider called %d times for glossed plan, want 0", provider.CallCount())
	}
}

func TestSessionQuestions_OptionInvariants(t *testing.T) {
	t.Parallel()

	e := quiz.NewExtractor(nil)
	items, err := e.Extract(context.Background(), glossedPlan(), "english")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	s := quiz.NewSession(items, quiz.WithRand(rand.New(rand.NewSource(1))))
	for q := s.Current(); q != nil; q = s.Current() {
		if len(q.Options) != 4 {
			t.Fatalf("question %q has %d options, want 4", q.Item.Word, len(q.Options))
		}
		seen := make(map[string]bool)
		hasAnswer := false
		for _, opt := range q.Options {
			if seen[opt] {
				t.Errorf("question %q has duplicate option %q", q.Item.Word, opt)
			}
			seen[opt] = true
			if opt == q.Answer {
				hasAnswer = true
			}
		}
		if !hasAnswer {
			t.Errorf("question %q options %v missing answer %q", q.Item.Word, q.Options, q.Answer)
		}
		s.Answer(q.Answer)
	}
}

func TestSessionQuestions_GenericFallbackFillsOptions(t *testing.T) {
	t.Parallel()

	// A single item has no sibling translations to borrow.
	items := []quiz.Item{{Word: "agua", Translation: "water", Context: "x"}}
	s := quiz.NewSession(items, quiz.WithRand(rand.New(rand.NewSource(1))))

	q := s.Current()
	if q == nil {
		t.Fatal("Current() = nil")
	}
	if len(q.Options) != 4 {
		t.Fatalf("options = %v, want 4 entries", q.Options)
	}
	seen := make(map[string]bool)
	for _, opt := range q.Options {
		if seen[strings.ToLower(opt)] {
			t.Errorf("duplicate option %q", opt)
		}
		seen[strings.ToLower(opt)] = true
	}
	// "water" is both the answer and a generic-list word; it must not be
	// duplicated or excluded.
	if !seen["water"] {
		t.Error("answer missing from options")
	}
}

func TestSessionScoreAndRetry(t *testing.T) {
	t.Parallel()

	e := quiz.NewExtractor(nil)
	items, err := e.Extract(context.Background(), glossedPlan(), "english")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	s := quiz.NewSession(items, quiz.WithRand(rand.New(rand.NewSource(7))))

	// Answer the first correctly and the rest wrong.
	first := true
	for q := s.Current(); q != nil; q = s.Current() {
		if first {
			if !s.Answer(q.Answer) {
				t.Error("Answer(correct) = false")
			}
			first = false
			continue
		}
		wrong := q.Answer + " (nope)"
		if s.Answer(wrong) {
			t.Error("Answer(wrong) = true")
		}
	}

	if !s.Done() {
		t.Error("Done() = false after last answer")
	}
	correct, total := s.Score()
	if correct != 1 || total != 4 {
		t.Errorf("Score() = (%d, %d), want (1, 4)", correct, total)
	}
	if s.Percentage() != 25 {
		t.Errorf("Percentage() = %d, want 25", s.Percentage())
	}

	s.Retry()
	if s.Done() {
		t.Error("Done() = true after Retry()")
	}
	correct, total = s.Score()
	if correct != 0 || total != 4 {
		t.Errorf("Score() after retry = (%d, %d), want (0, 4)", correct, total)
	}
}

func TestSessionAnswer_AfterDone(t *testing.T) {
	t.Parallel()

	s := quiz.NewSession(nil)
	if s.Answer("anything") {
		t.Error("Answer() on empty session = true")
	}
	if s.Percentage() != 0 {
		t.Errorf("Percentage() = %d, want 0", s.Percentage())
	}
}
