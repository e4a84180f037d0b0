// Package match implements the fuzzy comparison between a spoken transcript
// and the expected lesson line.
//
// Two heuristics are combined: an exact Levenshtein edit-distance ratio over
// the normalised strings, and a word-overlap ratio that tolerates the partial
// and concatenated words speech recognition tends to produce. Either heuristic
// clearing its threshold accepts the answer; the reported confidence is the
// better of the two scores.
package match

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// Default acceptance thresholds. The word-overlap threshold is deliberately
// higher than the similarity threshold: word overlap is the more forgiving
// metric and needs the stricter cut.
const (
	DefaultSimilarityThreshold = 0.6
	DefaultWordMatchThreshold  = 0.7

	// minWordLength is the minimum rune count for an expected word to
	// participate in the word-overlap ratio. Short function words match
	// almost anything and only add noise.
	minWordLength = 3

	// nearMissJaroWinkler is the Jaro-Winkler score above which a
	// rejected attempt still counts as a near miss. Jaro-Winkler weighs
	// the shared prefix, so it flags attempts that start right and
	// trail off, which the edit-distance ratio punishes hard.
	nearMissJaroWinkler = 0.84
)

// punctReplacer strips sentence punctuation, Latin and CJK alike, before
// comparison.
var punctReplacer = strings.NewReplacer(
	".", "", ",", "", "!", "", "?", "", ";", "", ":", "",
	`"`, "", "'", "", "¿", "", "¡", "",
	"。", "", "、", "", "，", "", "！", "", "？", "", "；", "", "：", "",
	"「", "", "」", "", "『", "", "』", "",
	"（", "", "）", "", "(", "", ")", "", "…", "", "·", "",
)

// Normalize lowercases s, strips sentence punctuation, collapses whitespace,
// hyphens and underscores into single spaces, and trims the result.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = punctReplacer.Replace(s)
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Levenshtein returns the exact edit distance between a and b with unit
// insert, delete and substitute costs.
func Levenshtein(a, b string) int {
	return matchr.Levenshtein(a, b)
}

// SimilarityRatio returns 1 - distance/max(len(a), len(b)) over rune lengths.
// Two empty strings are defined as identical (ratio 1).
func SimilarityRatio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(Levenshtein(a, b))/float64(longest)
}

// WordMatchRatio reports what fraction of the expected words (longer than two
// runes) appear in the spoken text. A word counts as matched when it contains
// a spoken word, is contained in one, or is within edit distance 1 of one.
// When no expected word qualifies, the ratio is 1.
func WordMatchRatio(expected, spoken string) float64 {
	expectedWords := strings.Fields(Normalize(expected))
	spokenWords := strings.Fields(Normalize(spoken))

	total := 0
	matched := 0
	for _, ew := range expectedWords {
		if utf8.RuneCountInString(ew) < minWordLength {
			continue
		}
		total++
		if wordMatches(ew, spokenWords) {
			matched++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(matched) / float64(total)
}

func wordMatches(expected string, spoken []string) bool {
	for _, sw := range spoken {
		if strings.Contains(expected, sw) || strings.Contains(sw, expected) {
			return true
		}
		if Levenshtein(expected, sw) <= 1 {
			return true
		}
	}
	return false
}

// Decision is the outcome of comparing a transcript against the expected line.
type Decision struct {
	// Accept is true when the transcript is close enough to the expected line.
	Accept bool

	// Confidence is the better of the two heuristic scores, in [0, 1].
	// Displayed to the learner as a match percentage.
	Confidence float64

	// NearMiss is set on rejects whose Jaro-Winkler similarity says the
	// attempt was almost right. Feedback uses it to encourage one more
	// try instead of a plain failure message.
	NearMiss bool
}

// Option is a functional option for [Evaluate].
type Option func(*thresholds)

type thresholds struct {
	similarity float64
	wordMatch  float64
}

// WithSimilarityThreshold overrides the edit-distance acceptance cut.
func WithSimilarityThreshold(t float64) Option {
	return func(th *thresholds) { th.similarity = t }
}

// WithWordMatchThreshold overrides the word-overlap acceptance cut.
func WithWordMatchThreshold(t float64) Option {
	return func(th *thresholds) { th.wordMatch = t }
}

// Evaluate compares spoken against expected and returns the accept decision.
//
// Exact equality of the normalised strings accepts immediately with full
// confidence. Otherwise the answer is accepted when the word-overlap ratio or
// the similarity ratio clears its threshold.
func Evaluate(expected, spoken string, opts ...Option) Decision {
	th := thresholds{
		similarity: DefaultSimilarityThreshold,
		wordMatch:  DefaultWordMatchThreshold,
	}
	for _, o := range opts {
		o(&th)
	}

	ne, ns := Normalize(expected), Normalize(spoken)
	if ne == ns {
		return Decision{Accept: true, Confidence: 1}
	}

	sim := SimilarityRatio(ne, ns)
	words := WordMatchRatio(expected, spoken)

	confidence := sim
	if words > confidence {
		confidence = words
	}
	accept := words >= th.wordMatch || sim >= th.similarity
	return Decision{
		Accept:     accept,
		Confidence: confidence,
		NearMiss:   !accept && matchr.JaroWinkler(ne, ns, false) >= nearMissJaroWinkler,
	}
}
