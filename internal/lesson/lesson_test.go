package lesson

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/verbalis/verbalis/internal/segment"
	"github.com/verbalis/verbalis/pkg/provider/llm"
	llmmock "github.com/verbalis/verbalis/pkg/provider/llm/mock"
)

const validPlanJSON = `{
	"title": "At the Café",
	"background_context": "You are visiting Paris.",
	"scenario": "Order a coffee at a small café.",
	"language": "French",
	"illustration_prompt": "a cozy parisian café",
	"dialogue": [
		{"party": "A", "line": {"display": "Bonjour! (Hello!)", "clean_text": "Bonjour!"}},
		{"party": "B", "line": {"display": "Bonjour, que désirez-vous?", "clean_text": "Bonjour, que désirez-vous?"}}
	]
}`

func TestParsePlan(t *testing.T) {
	t.Parallel()

	plan, err := ParsePlan("```json\n" + validPlanJSON + "\n```")
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	if plan.Title != "At the Café" {
		t.Errorf("Title = %q", plan.Title)
	}
	if len(plan.Dialogue) != 2 {
		t.Fatalf("got %d turns, want 2", len(plan.Dialogue))
	}
	if plan.Dialogue[0].Party != PartyLearner || plan.Dialogue[1].Party != PartyPartner {
		t.Errorf("party order wrong: %q, %q", plan.Dialogue[0].Party, plan.Dialogue[1].Party)
	}
	if plan.ID == "" {
		t.Error("missing ID must be assigned at parse time")
	}
}

func TestParsePlan_DerivesCleanText(t *testing.T) {
	t.Parallel()

	plan, err := ParsePlan(`{"title": "x", "dialogue": [
		{"party": "A", "line": {"display": "Hola (Hello) amigo"}}
	]}`)
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	if got := plan.Dialogue[0].Line.CleanText; got != "Hola amigo" {
		t.Errorf("CleanText = %q, want %q", got, "Hola amigo")
	}
}

func TestParsePlan_Rejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
	}{
		{"not json", "I could not generate a lesson, sorry."},
		{"empty dialogue", `{"title": "x", "dialogue": []}`},
		{"invalid party", `{"dialogue": [{"party": "C", "line": {"display": "hi", "clean_text": "hi"}}]}`},
		{"empty line", `{"dialogue": [{"party": "A", "line": {}}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParsePlan(tc.content); err == nil {
				t.Error("want error, got nil")
			}
		})
	}

	if _, err := ParsePlan(`{"title": "x", "dialogue": []}`); !errors.Is(err, ErrEmptyDialogue) {
		t.Errorf("empty dialogue error = %v, want ErrEmptyDialogue", err)
	}
}

func TestTurnEnsureSentences_Memoizes(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `["first long chunk here", "second long chunk here"]`},
	}
	splitter := segment.NewSplitter(provider)
	turn := &Turn{
		Party: PartyLearner,
		Line:  Line{CleanText: "one two three four five six seven eight nine ten"},
	}

	first := turn.EnsureSentences(context.Background(), splitter, "English")
	second := turn.EnsureSentences(context.Background(), splitter, "English")

	if !reflect.DeepEqual(first, second) {
		t.Errorf("memoized sentences differ: %v vs %v", first, second)
	}
	if provider.CallCount() != 1 {
		t.Errorf("got %d splitter AI calls, want 1 (memoized)", provider.CallCount())
	}
}

func TestPlanClone_IsDeep(t *testing.T) {
	t.Parallel()

	plan, err := ParsePlan(validPlanJSON)
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}

	clone := plan.Clone()
	clone.Dialogue[0].Line.CleanText = "mutated"
	clone.Title = "mutated"

	if plan.Dialogue[0].Line.CleanText == "mutated" || plan.Title == "mutated" {
		t.Error("Clone shares state with the original plan")
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: validPlanJSON},
	}
	gen := NewGenerator(provider)

	plan, err := gen.Generate(context.Background(), Request{
		Language:       "French",
		Topic:          "ordering coffee",
		NativeLanguage: "English",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if plan.Topic != "ordering coffee" {
		t.Errorf("Topic = %q", plan.Topic)
	}

	prompt := provider.CompleteCalls[0].Req.Messages[0].Content
	if !strings.Contains(prompt, "French") || !strings.Contains(prompt, "ordering coffee") {
		t.Errorf("prompt missing request fields: %q", prompt)
	}
	if strings.Contains(prompt, "hiragana") {
		t.Error("non-Japanese prompt must not request hiragana")
	}
}

func TestGenerate_JapaneseRequestsHiragana(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: validPlanJSON},
	}
	gen := NewGenerator(provider)

	if _, err := gen.Generate(context.Background(), Request{Language: "Japanese", Topic: "sushi"}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	prompt := provider.CompleteCalls[0].Req.Messages[0].Content
	if !strings.Contains(prompt, "hiragana") {
		t.Error("Japanese prompt must request hiragana readings")
	}
}

func TestGenerate_SurfacesProviderFailure(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{CompleteErr: errors.New("all models failed")}
	gen := NewGenerator(provider)

	if _, err := gen.Generate(context.Background(), Request{Language: "French", Topic: "x"}); err == nil {
		t.Error("want error when the provider fails, got nil")
	}
}
