package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/verbalis/verbalis/internal/lang"
	"github.com/verbalis/verbalis/internal/lesson"
	"github.com/verbalis/verbalis/internal/observe"
	"github.com/verbalis/verbalis/internal/segment"
	"github.com/verbalis/verbalis/internal/store"
	"github.com/verbalis/verbalis/internal/verify"
	"github.com/verbalis/verbalis/pkg/audio"
	"github.com/verbalis/verbalis/pkg/provider/image"
	"github.com/verbalis/verbalis/pkg/provider/tts"
)

// Default pacing. The pause after a partner line gives the learner a beat
// to parse it; the pause after an accepted attempt lets the success
// feedback land before the next line plays; the pause after a rejection
// lets the correction land before capture reopens.
const (
	defaultPartnerDelay = 1200 * time.Millisecond
	defaultAdvanceDelay = 600 * time.Millisecond
	defaultRetryDelay   = 800 * time.Millisecond
)

// ErrNotAwaitingSpeech is returned by SubmitSpeech and Skip when the
// session is not waiting for a learner attempt.
var ErrNotAwaitingSpeech = errors.New("engine: session is not awaiting speech")

// ErrSkipUnavailable is returned by Skip when the skip affordance has not
// been earned.
var ErrSkipUnavailable = errors.New("engine: skip not available")

// Config assembles a [Session]. Plan, Splitter, Verifier, Output, and
// Store are required; the rest default sensibly.
type Config struct {
	Plan     *lesson.Plan
	Splitter *segment.Splitter
	Verifier *verify.Dispatcher
	Output   *audio.Output
	Store    store.Store

	// TTS synthesises turn audio. Optional; nil runs the lesson silently.
	TTS tts.Provider

	// Image generates the lesson illustration during start prefetch.
	// Optional; nil skips illustration.
	Image image.Provider

	// Voice is the synthesis voice for all turns.
	Voice tts.VoiceProfile

	// VoiceSettings tunes synthesis (speed, stability). Zero value uses
	// provider defaults.
	VoiceSettings tts.VoiceSettings

	// Observer receives lifecycle notifications. Optional.
	Observer Observer

	// Metrics records session telemetry. Optional.
	Metrics *observe.Metrics

	// Cursor resumes a restored session mid-lesson. Zero value starts
	// from the first turn.
	Cursor Cursor

	// PartnerDelay, AdvanceDelay and RetryDelay override the default
	// pacing.
	PartnerDelay time.Duration
	AdvanceDelay time.Duration
	RetryDelay   time.Duration
}

// Session runs one lesson. Its methods are driven by a single caller
// goroutine; accessors are safe to call from others.
type Session struct {
	mu     sync.Mutex
	plan   *lesson.Plan
	cursor Cursor
	state  State

	splitter *segment.Splitter
	verifier *verify.Dispatcher
	tts      tts.Provider
	imageGen image.Provider
	output   *audio.Output
	store    store.Store
	metrics  *observe.Metrics
	obs      Observer
	voice    tts.VoiceProfile
	settings tts.VoiceSettings

	partnerDelay time.Duration
	advanceDelay time.Duration
	retryDelay   time.Duration

	started bool
}

// NewSession validates cfg and returns a ready session.
func NewSession(cfg Config) (*Session, error) {
	switch {
	case cfg.Plan == nil || len(cfg.Plan.Dialogue) == 0:
		return nil, errors.New("engine: plan with non-empty dialogue is required")
	case cfg.Splitter == nil:
		return nil, errors.New("engine: splitter is required")
	case cfg.Verifier == nil:
		return nil, errors.New("engine: verifier is required")
	case cfg.Output == nil:
		return nil, errors.New("engine: audio output is required")
	case cfg.Store == nil:
		return nil, errors.New("engine: store is required")
	}
	if cfg.Cursor.TurnIndex < 0 || cfg.Cursor.TurnIndex > len(cfg.Plan.Dialogue) || cfg.Cursor.SentenceIndex < 0 {
		return nil, fmt.Errorf("engine: cursor out of range: %+v", cfg.Cursor)
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.PartnerDelay <= 0 {
		cfg.PartnerDelay = defaultPartnerDelay
	}
	if cfg.AdvanceDelay <= 0 {
		cfg.AdvanceDelay = defaultAdvanceDelay
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &Session{
		plan:         cfg.Plan,
		cursor:       cfg.Cursor,
		splitter:     cfg.Splitter,
		verifier:     cfg.Verifier,
		tts:          cfg.TTS,
		imageGen:     cfg.Image,
		output:       cfg.Output,
		store:        cfg.Store,
		metrics:      cfg.Metrics,
		obs:          cfg.Observer,
		voice:        cfg.Voice,
		settings:     cfg.VoiceSettings,
		partnerDelay: cfg.PartnerDelay,
		advanceDelay: cfg.AdvanceDelay,
		retryDelay:   cfg.RetryDelay,
	}, nil
}

// Plan returns the lesson being run.
func (s *Session) Plan() *lesson.Plan {
	return s.plan
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cursor returns a snapshot of the progress pointer.
func (s *Session) Cursor() Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Start begins (or resumes) the lesson: the illustration and the first
// turn's audio are fetched concurrently and joined, then turns advance
// until a learner attempt is needed or the lesson completes.
//
// For review-mode plans Start only prefetches; playback is manual via
// [Session.PlayTurn].
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("engine: session already started")
	}
	s.started = true
	s.mu.Unlock()

	if s.metrics != nil && !s.plan.IsReviewMode {
		s.metrics.ActiveSessions.Add(ctx, 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	if s.imageGen != nil && s.plan.IllustrationURL == "" && s.plan.IllustrationPrompt != "" {
		g.Go(func() error {
			s.fetchIllustration(gctx)
			return nil
		})
	}
	var firstAudio []byte
	if !s.plan.IsReviewMode && s.cursor.TurnIndex < len(s.plan.Dialogue) {
		firstTurn := s.plan.Dialogue[s.cursor.TurnIndex]
		g.Go(func() error {
			firstAudio = s.synthesize(gctx, firstTurn)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.plan.IsReviewMode {
		s.setState(StateIdle)
		return nil
	}

	if err := s.persist(ctx); err != nil {
		s.obs.OnError(err)
	}
	return s.advance(ctx, firstAudio)
}

// SubmitSpeech judges one spoken attempt against the active sentence. On
// accept the cursor moves forward and partner turns play until the next
// learner attempt is needed or the lesson completes. On reject and on
// judge failure the cursor is untouched and the session waits for another
// attempt; judge failures are additionally returned as the error.
func (s *Session) SubmitSpeech(ctx context.Context, spoken string) (verify.Result, error) {
	s.mu.Lock()
	if s.state != StateAwaitingUserAudio {
		s.mu.Unlock()
		return verify.Result{}, ErrNotAwaitingSpeech
	}
	expected := s.currentSentenceLocked()
	s.mu.Unlock()

	s.setState(StateVerifying)
	res, err := s.verifier.Verify(ctx, spoken, expected, s.plan.Language)
	if s.metrics != nil && err == nil {
		s.metrics.RecordVerification(ctx, s.plan.Language, res.Accept)
	}
	if err != nil {
		s.obs.OnError(err)
		s.setState(StateAwaitingUserAudio)
		return verify.Result{}, err
	}
	if !res.Accept {
		s.mu.Lock()
		s.cursor.Attempts++
		attempts := s.cursor.Attempts
		s.mu.Unlock()
		s.obs.OnFeedback(false, res.Feedback, s.verifier.CanSkip(s.plan.Language, attempts))
		// Let the correction land before capture reopens.
		if err := s.sleep(ctx, s.retryDelay); err != nil {
			return res, err
		}
		s.setState(StateAwaitingUserAudio)
		return res, nil
	}

	s.obs.OnFeedback(true, res.Feedback, false)
	return res, s.acceptCurrent(ctx)
}

// Skip force-accepts the active sentence. Only available once the
// verifier's skip affordance has been earned through repeated failures.
func (s *Session) Skip(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateAwaitingUserAudio {
		s.mu.Unlock()
		return ErrNotAwaitingSpeech
	}
	attempts := s.cursor.Attempts
	s.mu.Unlock()

	if !s.verifier.CanSkip(s.plan.Language, attempts) {
		return ErrSkipUnavailable
	}
	return s.acceptCurrent(ctx)
}

// PlayTurn synthesises and plays one turn on demand. Used for review-mode
// lessons and for replaying passed lines.
func (s *Session) PlayTurn(ctx context.Context, index int) error {
	if index < 0 || index >= len(s.plan.Dialogue) {
		return fmt.Errorf("engine: turn index %d out of range", index)
	}
	turn := s.plan.Dialogue[index]
	payload := s.synthesize(ctx, turn)
	if payload == nil {
		return fmt.Errorf("engine: synthesis failed for turn %d", index)
	}
	return s.output.Play(ctx, payload)
}

// Replay re-plays the most recent audio. Rapid calls are debounced by the
// output.
func (s *Session) Replay() {
	s.output.Replay()
}

// Suspend pauses the lesson without discarding it: playback stops and the
// persisted snapshot stays resumable. The session cannot be restarted;
// resuming builds a fresh one from the snapshot.
func (s *Session) Suspend(ctx context.Context) {
	s.output.Release()

	s.mu.Lock()
	wasStarted := s.started
	wasCompleted := s.state == StateCompleted
	s.mu.Unlock()
	s.setState(StateIdle)

	if s.metrics != nil && wasStarted && !wasCompleted && !s.plan.IsReviewMode {
		s.metrics.ActiveSessions.Add(ctx, -1)
	}
}

// Reset abandons the lesson: playback stops, persisted state is cleared,
// and the cursor returns to zero.
func (s *Session) Reset(ctx context.Context) error {
	s.output.Release()

	s.mu.Lock()
	wasStarted := s.started
	wasCompleted := s.state == StateCompleted
	s.started = false
	s.cursor = Cursor{}
	s.mu.Unlock()
	s.setState(StateIdle)

	if s.metrics != nil && wasStarted && !wasCompleted && !s.plan.IsReviewMode {
		s.metrics.ActiveSessions.Add(ctx, -1)
	}
	return s.store.ClearState(ctx)
}

// advance plays partner turns (and models learner lines) until the
// session needs a learner attempt or runs out of turns. prefetched, when
// non-nil, is the already synthesised audio for the current turn.
func (s *Session) advance(ctx context.Context, prefetched []byte) error {
	for {
		s.mu.Lock()
		i := s.cursor.TurnIndex
		s.mu.Unlock()
		if i >= len(s.plan.Dialogue) {
			return s.complete(ctx)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		turn := s.plan.Dialogue[i]
		s.obs.OnTurn(i, string(turn.Party), turn.Line.Display)

		payload := prefetched
		prefetched = nil

		if turn.Party == lesson.PartyPartner {
			s.setState(StateAwaitingPartnerAudio)
			if payload != nil {
				s.playPayload(ctx, payload)
			} else {
				s.streamTurn(ctx, turn)
			}
			if err := s.sleep(ctx, s.partnerDelay); err != nil {
				return err
			}
			s.mu.Lock()
			s.cursor.TurnIndex++
			s.cursor.SentenceIndex = 0
			s.cursor.Attempts = 0
			s.mu.Unlock()
			if err := s.persist(ctx); err != nil {
				s.obs.OnError(err)
			}
			continue
		}

		// Learner turn: model the line, split it, then wait for speech.
		if payload == nil {
			payload = s.synthesize(ctx, turn)
		}
		s.playPayload(ctx, payload)
		if err := ctx.Err(); err != nil {
			return err
		}
		turn.EnsureSentences(ctx, s.splitter, s.plan.Language)
		s.setState(StateAwaitingUserAudio)
		return nil
	}
}

// acceptCurrent moves the cursor past the accepted sentence and resumes
// the advance when the turn is finished.
func (s *Session) acceptCurrent(ctx context.Context) error {
	s.mu.Lock()
	s.cursor.Attempts = 0
	s.cursor.SentenceIndex++
	turn := s.plan.Dialogue[s.cursor.TurnIndex]
	turnDone := s.cursor.SentenceIndex >= len(turn.Sentences) || len(turn.Sentences) == 0
	if turnDone {
		s.cursor.SentenceIndex = 0
		s.cursor.TurnIndex++
	}
	s.mu.Unlock()

	if err := s.persist(ctx); err != nil {
		s.obs.OnError(err)
	}
	if !turnDone {
		s.setState(StateAwaitingUserAudio)
		return nil
	}
	if err := s.sleep(ctx, s.advanceDelay); err != nil {
		return err
	}
	return s.advance(ctx, nil)
}

// complete finishes the lesson: the plan is flagged, a deep copy goes to
// history, and the resumable snapshot is cleared.
func (s *Session) complete(ctx context.Context) error {
	s.setState(StateCompleted)
	s.plan.IsCompleted = true

	rec := &store.HistoryRecord{Plan: s.plan.Clone(), CompletedAt: time.Now()}
	if err := s.store.SaveHistory(ctx, rec); err != nil {
		s.obs.OnError(fmt.Errorf("engine: save history: %w", err))
	}
	if err := s.store.ClearState(ctx); err != nil {
		s.obs.OnError(fmt.Errorf("engine: clear state: %w", err))
	}
	if s.metrics != nil {
		s.metrics.RecordLessonCompleted(ctx, s.plan.Language)
		s.metrics.ActiveSessions.Add(ctx, -1)
	}
	return nil
}

// currentSentenceLocked returns the text the learner must speak next.
// Must be called with s.mu held.
func (s *Session) currentSentenceLocked() string {
	turn := s.plan.Dialogue[s.cursor.TurnIndex]
	if len(turn.Sentences) > 0 && s.cursor.SentenceIndex < len(turn.Sentences) {
		return turn.Sentences[s.cursor.SentenceIndex]
	}
	return turn.Line.CleanText
}

// synthesize produces audio for one turn. Failures are non-fatal: they
// are reported and nil is returned, so the turn proceeds silently. A nil
// provider means the lesson runs without audio.
func (s *Session) synthesize(ctx context.Context, turn *lesson.Turn) []byte {
	if s.tts == nil {
		return nil
	}
	ctx, span := observe.StartSpan(ctx, "tts.synthesize")
	defer span.End()

	start := time.Now()
	payload, err := s.tts.Synthesize(ctx, tts.Request{
		Text:         turn.Line.CleanText,
		Voice:        s.voice,
		Settings:     s.settings,
		LanguageCode: lang.Code(s.plan.Language),
	})
	if s.metrics != nil {
		s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		span.RecordError(err)
		if s.metrics != nil {
			s.metrics.RecordProviderError(ctx, s.tts.Name(), "tts")
		}
		s.obs.OnError(fmt.Errorf("engine: synthesize turn: %w", err))
		return nil
	}
	return payload
}

// streamTurn plays a partner line through the provider's streaming
// session, handing the audio chunks to the shared output. Falls back to
// one-shot synthesis when the stream cannot be opened; like synthesize,
// failures never stall the lesson.
func (s *Session) streamTurn(ctx context.Context, turn *lesson.Turn) {
	if s.tts == nil {
		return
	}
	ctx, span := observe.StartSpan(ctx, "tts.stream")
	defer span.End()

	text := make(chan string, 1)
	text <- turn.Line.CleanText
	close(text)

	start := time.Now()
	chunks, err := s.tts.SynthesizeStream(ctx, text, s.voice)
	if err != nil {
		span.RecordError(err)
		if s.metrics != nil {
			s.metrics.RecordProviderError(ctx, s.tts.Name(), "tts")
		}
		s.obs.OnError(fmt.Errorf("engine: stream turn: %w", err))
		s.playPayload(ctx, s.synthesize(ctx, turn))
		return
	}
	playErr := s.output.PlayStream(ctx, chunks)
	if s.metrics != nil {
		s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	}
	if playErr != nil && ctx.Err() == nil {
		span.RecordError(playErr)
		s.obs.OnError(fmt.Errorf("engine: playback: %w", playErr))
	}
}

// playPayload plays audio through the shared output. A nil payload (failed
// synthesis) and playback failures are both tolerated; the lesson never
// stalls on audio.
func (s *Session) playPayload(ctx context.Context, payload []byte) {
	if payload == nil {
		return
	}
	if err := s.output.Play(ctx, payload); err != nil && ctx.Err() == nil {
		s.obs.OnError(fmt.Errorf("engine: playback: %w", err))
	}
}

// fetchIllustration generates the lesson image. Failures are logged and
// the lesson proceeds without one.
func (s *Session) fetchIllustration(ctx context.Context) {
	ctx, span := observe.StartSpan(ctx, "image.generate")
	defer span.End()

	start := time.Now()
	res, err := s.imageGen.Generate(ctx, image.Request{Prompt: s.plan.IllustrationPrompt})
	if s.metrics != nil {
		s.metrics.ImageDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		span.RecordError(err)
		if s.metrics != nil {
			s.metrics.RecordProviderError(ctx, s.imageGen.Name(), "image")
		}
		s.obs.OnError(fmt.Errorf("engine: illustration: %w", err))
		return
	}
	if res.Success {
		s.plan.IllustrationURL = res.ImageURL
	}
}

func (s *Session) persist(ctx context.Context) error {
	s.mu.Lock()
	snapshot := &store.State{
		Plan:          s.plan,
		TurnIndex:     s.cursor.TurnIndex,
		SentenceIndex: s.cursor.SentenceIndex,
		Screen:        store.ScreenLesson,
	}
	s.mu.Unlock()
	return s.store.SaveState(ctx, snapshot)
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	changed := s.state != next
	s.state = next
	s.mu.Unlock()
	if changed {
		s.obs.OnStateChange(next)
	}
}

func (s *Session) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
