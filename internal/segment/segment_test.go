package segment

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/verbalis/verbalis/pkg/provider/llm"
	llmmock "github.com/verbalis/verbalis/pkg/provider/llm/mock"
)

func TestStripGloss(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"two glosses", "Bonjour (Hello) monde (world)", "Bonjour monde"},
		{"no gloss", "Bonjour monde", "Bonjour monde"},
		{"fullwidth parens", "こんにちは（Hello）", "こんにちは"},
		{"whitespace collapse", "a  (x)   b", "a b"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := StripGloss(tc.in)
			if got != tc.want {
				t.Errorf("StripGloss(%q) = %q, want %q", tc.in, got, tc.want)
			}
			// Idempotence.
			if again := StripGloss(got); again != got {
				t.Errorf("StripGloss not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestSplit_ShortLineShortCircuits(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{}
	s := NewSplitter(provider)

	got := s.Split(context.Background(), "  I like coffee  ", "English")
	want := []string{"I like coffee"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split = %v, want %v", got, want)
	}
	if provider.CallCount() != 0 {
		t.Errorf("short line must not reach the AI path; got %d calls", provider.CallCount())
	}
}

func TestSplit_UsesAIChunks(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: "```json\n[\"I would like to order\", \"a large coffee with milk please\"]\n```",
		},
	}
	s := NewSplitter(provider)

	got := s.Split(context.Background(), "I would like to order a large coffee with milk please", "English")
	want := []string{"I would like to order", "a large coffee with milk please"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split = %v, want %v", got, want)
	}
	if provider.CallCount() != 1 {
		t.Errorf("got %d AI calls, want 1", provider.CallCount())
	}
}

func TestSplit_FallsBackOnProviderError(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{CompleteErr: errors.New("boom")}
	s := NewSplitter(provider)

	got := s.Split(context.Background(), "First part is here. Second part follows here!", "English")
	want := []string{"First part is here.", "Second part follows here!"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split = %v, want %v", got, want)
	}
}

func TestSplit_FallsBackOnMalformedOutput(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "sure, here are the chunks:"},
	}
	s := NewSplitter(provider)

	got := s.Split(context.Background(), "One sentence here. Another sentence there.", "English")
	want := []string{"One sentence here.", "Another sentence there."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split = %v, want %v", got, want)
	}
}

func TestSplit_DegenerateSingleChunkOnLongLine(t *testing.T) {
	t.Parallel()

	long := "this line has a very large number of words and clearly needs to be divided somewhere"
	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `["` + long + `"]`},
	}
	s := NewSplitter(provider)

	got := s.Split(context.Background(), long, "English")
	if len(got) < 2 {
		t.Errorf("degenerate single-chunk answer must fall back to a real split, got %v", got)
	}
}

func TestSplit_BisectsWhenNoPunctuation(t *testing.T) {
	t.Parallel()

	s := NewSplitter(nil)

	got := s.Split(context.Background(), "seven words without any punctuation at all", "English")
	want := []string{"seven words without", "any punctuation at all"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split = %v, want %v", got, want)
	}
}

func TestSplit_JapanesePunctuationFallback(t *testing.T) {
	t.Parallel()

	s := NewSplitter(nil)

	got := s.Split(context.Background(), "私は毎朝コーヒーを飲みます。とても美味しいです。", "Japanese")
	want := []string{"私は毎朝コーヒーを飲みます。", "とても美味しいです。"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split = %v, want %v", got, want)
	}
}

func TestSplit_SpacelessBisect(t *testing.T) {
	t.Parallel()

	s := NewSplitter(nil)

	// 16 runes, no terminal punctuation: bisect at the rune midpoint.
	got := s.Split(context.Background(), "あいうえおかきくけこさしすせそた", "Japanese")
	if len(got) != 2 {
		t.Fatalf("Split = %v, want 2 halves", got)
	}
	if got[0]+got[1] != "あいうえおかきくけこさしすせそた" {
		t.Errorf("bisect lost content: %v", got)
	}
}
