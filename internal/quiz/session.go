package quiz

import "math/rand"

// SessionOption configures a [Session].
type SessionOption func(*Session)

// WithRand injects the random source used for shuffling. Default: a source
// seeded from the global generator.
func WithRand(rnd *rand.Rand) SessionOption {
	return func(s *Session) { s.rnd = rnd }
}

// WithNativeLanguage sets the language generic distractors are drawn from.
// Default: English.
func WithNativeLanguage(language string) SessionOption {
	return func(s *Session) { s.native = language }
}

// Session runs one pass through a shuffled, non-repeating question order
// and tracks the running score. Not safe for concurrent use.
type Session struct {
	items     []Item
	questions []Question
	index     int
	correct   int
	rnd       *rand.Rand
	native    string
}

// NewSession builds questions from items and shuffles them.
func NewSession(items []Item, opts ...SessionOption) *Session {
	s := &Session{
		items:  items,
		native: "English",
		rnd:    rand.New(rand.NewSource(rand.Int63())),
	}
	for _, o := range opts {
		o(s)
	}
	s.Retry()
	return s
}

// Current returns the active question, or nil when the session is done.
func (s *Session) Current() *Question {
	if s.index >= len(s.questions) {
		return nil
	}
	return &s.questions[s.index]
}

// Answer scores option against the active question and advances to the
// next one. It reports whether the answer was correct; answering a
// finished session reports false.
func (s *Session) Answer(option string) bool {
	q := s.Current()
	if q == nil {
		return false
	}
	s.index++
	if option == q.Answer {
		s.correct++
		return true
	}
	return false
}

// Done reports whether every question has been answered.
func (s *Session) Done() bool {
	return s.index >= len(s.questions)
}

// Score returns the number answered correctly and the question total.
func (s *Session) Score() (correct, total int) {
	return s.correct, len(s.questions)
}

// Percentage returns the rounded score percentage; an empty session scores
// zero.
func (s *Session) Percentage() int {
	if len(s.questions) == 0 {
		return 0
	}
	return (s.correct*100 + len(s.questions)/2) / len(s.questions)
}

// Retry resets the score and rebuilds the question order with a fresh
// shuffle, including the per-question option order.
func (s *Session) Retry() {
	s.index = 0
	s.correct = 0
	s.questions = make([]Question, 0, len(s.items))
	for _, item := range s.items {
		s.questions = append(s.questions, buildQuestion(item, s.items, s.native, s.rnd))
	}
	s.rnd.Shuffle(len(s.questions), func(i, j int) {
		s.questions[i], s.questions[j] = s.questions[j], s.questions[i]
	})
}
