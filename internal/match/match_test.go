package match

import "testing"

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "Hello World", "hello world"},
		{"latin punctuation", "Hello, world!", "hello world"},
		{"cjk punctuation", "こんにちは。元気？", "こんにちは元気"},
		{"hyphens and underscores", "well-known snake_case", "well known snake case"},
		{"collapse whitespace", "  a   b\t c ", "a b c"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tc.in); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestLevenshtein(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"kitten", "sitting", 3},
		{"abc", "", 3},
		{"flaw", "lawn", 2},
	}
	for _, tc := range cases {
		if got := Levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
		// Symmetry.
		if got := Levenshtein(tc.b, tc.a); got != tc.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", tc.b, tc.a, got, tc.want)
		}
	}
}

func TestSimilarityRatio(t *testing.T) {
	t.Parallel()

	if got := SimilarityRatio("hello", "hello"); got != 1 {
		t.Errorf("SimilarityRatio(hello, hello) = %v, want 1", got)
	}
	if got := SimilarityRatio("", ""); got != 1 {
		t.Errorf("SimilarityRatio(empty, empty) = %v, want 1", got)
	}
	if got := SimilarityRatio("abcd", "abce"); got != 0.75 {
		t.Errorf("SimilarityRatio(abcd, abce) = %v, want 0.75", got)
	}
	if got := SimilarityRatio("abc", ""); got != 0 {
		t.Errorf("SimilarityRatio(abc, empty) = %v, want 0", got)
	}
}

func TestWordMatchRatio(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		expected string
		spoken   string
		want     float64
	}{
		{"identical", "would like coffee", "would like coffee", 1},
		{"no qualifying words", "a an of", "something entirely else", 1},
		{"one off by one", "coffee", "coffe", 1},
		{"substring match", "goodbye", "good", 1},
		{"half matched", "good morning everyone wonderful", "morning everyone", 0.5},
		{"nothing matched", "completely different", "zzz qqq", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := WordMatchRatio(tc.expected, tc.spoken); got != tc.want {
				t.Errorf("WordMatchRatio(%q, %q) = %v, want %v", tc.expected, tc.spoken, got, tc.want)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	t.Run("exact match fast path", func(t *testing.T) {
		t.Parallel()
		d := Evaluate("Bonjour!", "bonjour")
		if !d.Accept || d.Confidence != 1 {
			t.Errorf("got %+v, want accept with confidence 1", d)
		}
	})

	t.Run("close transcript accepted", func(t *testing.T) {
		t.Parallel()
		d := Evaluate("I would like a coffee please", "i would like a coffee")
		if !d.Accept {
			t.Errorf("got %+v, want accept", d)
		}
	})

	t.Run("unrelated transcript rejected", func(t *testing.T) {
		t.Parallel()
		d := Evaluate("good morning", "goodbye")
		if d.Accept {
			t.Errorf("got %+v, want reject", d)
		}
		if d.Confidence <= 0 || d.Confidence >= 1 {
			t.Errorf("confidence %v outside (0, 1)", d.Confidence)
		}
		if d.NearMiss {
			t.Errorf("got %+v, want no near-miss hint for an unrelated transcript", d)
		}
	})

	t.Run("trailing-off attempt is a near miss", func(t *testing.T) {
		t.Parallel()
		d := Evaluate("i would like a big cup of coffee", "i would like a")
		if d.Accept {
			t.Fatalf("got %+v, want reject", d)
		}
		if !d.NearMiss {
			t.Errorf("got %+v, want near-miss hint for a right-start attempt", d)
		}
	})

	t.Run("accepted attempt carries no near miss", func(t *testing.T) {
		t.Parallel()
		d := Evaluate("I would like a coffee please", "i would like a coffee")
		if !d.Accept || d.NearMiss {
			t.Errorf("got %+v, want plain accept", d)
		}
	})

	t.Run("stricter thresholds reject borderline", func(t *testing.T) {
		t.Parallel()
		d := Evaluate("good morning everyone wonderful", "morning everyone",
			WithSimilarityThreshold(0.95), WithWordMatchThreshold(0.95))
		if d.Accept {
			t.Errorf("got %+v, want reject under strict thresholds", d)
		}
	})
}
