// Package lang holds per-language knowledge used across the lesson engine:
// which languages lack reliable word boundaries, which need AI-judged speech
// verification, and how sentence-final punctuation looks when a deterministic
// split is required.
package lang

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Profile describes the matching and splitting behaviour of one language.
type Profile struct {
	// Spaceless marks languages without whitespace word boundaries. Length
	// metrics for these languages are counted in runes rather than words.
	Spaceless bool

	// AIVerified marks languages whose browser-grade speech recognition is
	// too unreliable for string similarity; spoken answers are judged by the
	// LLM instead.
	AIVerified bool

	// SentenceEnd matches sentence-final delimiters for the deterministic
	// split fallback. Nil means the default Latin pattern applies.
	SentenceEnd *regexp.Regexp
}

var defaultSentenceEnd = regexp.MustCompile(`[.!?]+`)

// profiles is keyed by lowercase language name as it appears in lesson plans.
var profiles = map[string]Profile{
	"japanese": {
		Spaceless:   true,
		AIVerified:  true,
		SentenceEnd: regexp.MustCompile(`[。！？!?]+`),
	},
	"chinese": {
		Spaceless:   true,
		AIVerified:  true,
		SentenceEnd: regexp.MustCompile(`[。！？；!?]+`),
	},
	"korean": {
		AIVerified:  true,
		SentenceEnd: regexp.MustCompile(`[.!?。！？]+`),
	},
}

// lookup normalises the language name and returns its profile. Unknown
// languages get the zero Profile (space-delimited, locally verified).
func lookup(language string) Profile {
	return profiles[strings.ToLower(strings.TrimSpace(language))]
}

// IsSpaceless reports whether language has no whitespace word boundaries.
func IsSpaceless(language string) bool {
	return lookup(language).Spaceless
}

// IsAIVerified reports whether spoken answers in language are judged by the
// LLM rather than by local string similarity.
func IsAIVerified(language string) bool {
	return lookup(language).AIVerified
}

// SentenceEnd returns the sentence-final delimiter pattern for language.
func SentenceEnd(language string) *regexp.Regexp {
	if p := lookup(language); p.SentenceEnd != nil {
		return p.SentenceEnd
	}
	return defaultSentenceEnd
}

// LengthMetric returns the splitting length metric for text in language:
// rune count for spaceless languages, whitespace token count otherwise.
func LengthMetric(language, text string) int {
	if IsSpaceless(language) {
		return utf8.RuneCountInString(strings.TrimSpace(text))
	}
	return len(strings.Fields(text))
}

// codes maps lesson language names to ISO 639-1 codes for synthesis
// pronunciation hints.
var codes = map[string]string{
	"japanese":   "ja",
	"chinese":    "zh",
	"korean":     "ko",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"english":    "en",
}

// Code returns the ISO 639-1 code for language, or "" when unknown.
func Code(language string) string {
	return codes[strings.ToLower(strings.TrimSpace(language))]
}

// IsKnown reports whether language is one Verbalis has lesson support for.
func IsKnown(language string) bool {
	_, ok := codes[strings.ToLower(strings.TrimSpace(language))]
	return ok
}
