// Package engine drives a lesson session: the turn-taking state machine
// that plays partner lines, prompts the learner to speak, verifies
// attempts, and persists progress.
//
// The session is event-driven. Start advances through partner turns until
// a learner turn needs speech, then waits; the caller captures a
// transcript however it likes and hands it to SubmitSpeech, which resumes
// the advance on success. At most one awaited network or audio operation
// runs at a time for the turn flow; only the lesson-start prefetch
// (illustration plus first-turn audio) is concurrent, and it is joined
// before the first turn plays.
package engine

// State is the session's current mode.
type State int

const (
	// StateIdle means no lesson is active, or a review lesson is loaded
	// for manual playback.
	StateIdle State = iota

	// StateAwaitingPartnerAudio means a partner line is being synthesised
	// and played.
	StateAwaitingPartnerAudio

	// StateAwaitingUserAudio means the learner's scripted line has been
	// modeled and the session is waiting for a spoken attempt.
	StateAwaitingUserAudio

	// StateVerifying means a transcript has been submitted and is being
	// judged.
	StateVerifying

	// StateCompleted means every turn has been passed.
	StateCompleted
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingPartnerAudio:
		return "awaiting-partner-audio"
	case StateAwaitingUserAudio:
		return "awaiting-user-audio"
	case StateVerifying:
		return "verifying"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Cursor is the session's progress pointer. TurnIndex equal to the
// dialogue length means the lesson is complete. Indexes move strictly
// forward, one step per accepted attempt or finished partner turn, and
// only ever reset wholesale when a new lesson starts.
type Cursor struct {
	// TurnIndex is the active turn, in [0, len(dialogue)].
	TurnIndex int

	// SentenceIndex is the active sub-sentence within a learner turn, in
	// [0, len(sentences)).
	SentenceIndex int

	// Attempts counts consecutive failed attempts on the active
	// sentence. Reset on accept and on turn change.
	Attempts int
}

// Observer receives session lifecycle notifications. Implementations must
// not call back into the session from within a notification.
type Observer interface {
	// OnStateChange fires on every state transition.
	OnStateChange(state State)

	// OnTurn fires when a turn becomes active, before its audio plays.
	OnTurn(index int, party string, display string)

	// OnFeedback fires after each verification with the judge's message.
	// skippable is true when the manual skip affordance should be shown.
	OnFeedback(accepted bool, feedback string, skippable bool)

	// OnError fires for non-fatal failures the session recovered from or
	// is waiting out (audio synthesis failures, judge outages).
	OnError(err error)
}

// NopObserver is an [Observer] that ignores every notification.
type NopObserver struct{}

func (NopObserver) OnStateChange(State)           {}
func (NopObserver) OnTurn(int, string, string)    {}
func (NopObserver) OnFeedback(bool, string, bool) {}
func (NopObserver) OnError(error)                 {}

var _ Observer = NopObserver{}
