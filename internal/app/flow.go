package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/verbalis/verbalis/internal/engine"
	"github.com/verbalis/verbalis/internal/lesson"
	"github.com/verbalis/verbalis/internal/quiz"
	"github.com/verbalis/verbalis/internal/store"
	"github.com/verbalis/verbalis/pkg/provider/speech"
)

// Run drives the interactive lesson loop until the learner quits, input is
// exhausted, or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.printf("Verbalis: %s practice\n", a.cfg.Lesson.TargetLanguage)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		resumable, err := a.store.LoadState(ctx)
		if err != nil {
			slog.Warn("loading saved lesson failed", "err", err)
		}
		a.printMenu(resumable)

		line, ok := a.readLine("> ")
		if !ok {
			return nil
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit", "q":
			return nil
		case "new":
			topic := strings.TrimSpace(strings.TrimPrefix(line, "new"))
			if topic == "" {
				a.printf("Usage: new <topic>, e.g. \"new ordering coffee\"\n")
				continue
			}
			if err := a.startLesson(ctx, topic); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.printf("Could not start the lesson: %v\n", err)
			}
		case "resume":
			if resumable == nil {
				a.printf("Nothing to resume.\n")
				continue
			}
			cursor := engine.Cursor{
				TurnIndex:     resumable.TurnIndex,
				SentenceIndex: resumable.SentenceIndex,
			}
			if err := a.runLesson(ctx, resumable.Plan, cursor); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.printf("Lesson ended early: %v\n", err)
			}
		case "history":
			a.printHistory(ctx)
		case "review":
			a.reviewCommand(ctx, fields)
		case "quiz":
			a.quizCommand(ctx, fields)
		case "help":
			a.printf("Commands: new <topic>, resume, history, review <n>, quiz <n>, quit\n")
		default:
			a.printf("Unknown command %q. Type help for a list.\n", fields[0])
		}
	}
}

func (a *App) printMenu(resumable *store.State) {
	a.printf("\n")
	if resumable != nil {
		a.printf("You have an unfinished lesson: %q (turn %d). Type resume to continue.\n",
			resumable.Plan.Title, resumable.TurnIndex+1)
	}
	a.printf("Type new <topic> to start a lesson, history to browse past ones, or help.\n")
}

// startLesson generates a fresh plan for topic and runs it.
func (a *App) startLesson(ctx context.Context, topic string) error {
	a.printf("Generating a lesson about %q...\n", topic)

	start := time.Now()
	plan, err := a.generator.Generate(ctx, lesson.Request{
		Language:       a.cfg.Lesson.TargetLanguage,
		Topic:          topic,
		NativeLanguage: a.nativeLanguage(),
	})
	if a.metrics != nil {
		a.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		if a.metrics != nil {
			a.metrics.RecordProviderError(ctx, a.providers.LLM.Name(), "llm")
		}
		return err
	}

	return a.runLesson(ctx, plan, engine.Cursor{})
}

// runLesson executes one lesson through the conversation engine, capturing
// spoken attempts until the lesson completes or the learner bails out.
func (a *App) runLesson(ctx context.Context, plan *lesson.Plan, cursor engine.Cursor) error {
	sess, err := engine.NewSession(engine.Config{
		Plan:          plan,
		Splitter:      a.splitter,
		Verifier:      a.verifier,
		TTS:           a.providers.TTS,
		Image:         a.providers.Image,
		Output:        a.output,
		Store:         a.store,
		Observer:      &terminalObserver{app: a},
		Metrics:       a.metrics,
		Voice:         a.voice,
		VoiceSettings: a.settings,
		Cursor:        cursor,
		PartnerDelay:  a.cfg.Lesson.PartnerDelay,
		AdvanceDelay:  a.cfg.Lesson.AdvanceDelay,
		RetryDelay:    a.cfg.Lesson.RetryDelay,
	})
	if err != nil {
		return err
	}

	a.printf("\n=== %s ===\n", plan.Title)
	if err := sess.Start(ctx); err != nil {
		return err
	}

	for sess.State() == engine.StateAwaitingUserAudio {
		spoken, err := a.captureAttempt(ctx, plan.Language)
		switch {
		case errors.Is(err, speech.ErrUnsupportedLanguage):
			a.printf("Speech capture is not available for %s on this device.\n", plan.Language)
			return nil
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("speech capture failed", "err", err)
			continue
		}

		if strings.HasPrefix(spoken, ":") {
			done, err := a.lessonCommand(ctx, sess, spoken)
			if err != nil {
				return err
			}
			if done {
				sess.Suspend(ctx)
				a.printf("Lesson saved. Type resume later to pick it up.\n")
				return nil
			}
			continue
		}

		if _, err := sess.SubmitSpeech(ctx, spoken); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.printf("Verification is unavailable right now, give it another try.\n")
		}
	}

	if sess.State() == engine.StateCompleted {
		a.printf("\nLesson complete! Nicely done.\n")
		a.offerQuiz(ctx, plan)
	}
	return nil
}

// captureAttempt obtains one spoken attempt, falling back to typed input
// when no recognizer is configured.
func (a *App) captureAttempt(ctx context.Context, language string) (string, error) {
	if a.providers.Speech != nil {
		return a.providers.Speech.Capture(ctx, language)
	}
	line, ok := a.readLine("say> ")
	if !ok {
		return "", io.EOF
	}
	return line, nil
}

// lessonCommand handles in-lesson control commands. It reports whether the
// lesson should be abandoned.
func (a *App) lessonCommand(ctx context.Context, sess *engine.Session, cmd string) (done bool, err error) {
	switch cmd {
	case ":replay":
		sess.Replay()
	case ":skip":
		switch err := sess.Skip(ctx); {
		case errors.Is(err, engine.ErrSkipUnavailable):
			a.printf("Keep trying. Skipping unlocks after a few attempts in the hardest languages.\n")
		case err != nil:
			return false, err
		}
	case ":quit":
		return true, nil
	default:
		a.printf("Commands: :replay, :skip, :quit\n")
	}
	return false, nil
}

// printHistory lists completed lessons, most recent first.
func (a *App) printHistory(ctx context.Context) {
	records, err := a.store.LoadHistory(ctx)
	if err != nil {
		a.printf("Could not load history: %v\n", err)
		return
	}
	if len(records) == 0 {
		a.printf("No completed lessons yet.\n")
		return
	}
	for i, rec := range records {
		a.printf("%2d. %s — %s (%s)\n", i+1, rec.Plan.Title, rec.Plan.Topic,
			rec.CompletedAt.Format("2006-01-02"))
	}
}

// reviewCommand reloads a completed lesson for manual line-by-line playback.
func (a *App) reviewCommand(ctx context.Context, fields []string) {
	rec := a.historyRecord(ctx, fields)
	if rec == nil {
		return
	}
	plan := rec.Plan.Clone()
	plan.IsReviewMode = true
	if err := a.runReview(ctx, plan); err != nil && ctx.Err() == nil {
		a.printf("Review ended early: %v\n", err)
	}
}

// runReview walks a completed lesson without verification: every line is
// shown and can be replayed on demand.
func (a *App) runReview(ctx context.Context, plan *lesson.Plan) error {
	sess, err := engine.NewSession(engine.Config{
		Plan:          plan,
		Splitter:      a.splitter,
		Verifier:      a.verifier,
		TTS:           a.providers.TTS,
		Output:        a.output,
		Store:         a.store,
		Metrics:       a.metrics,
		Voice:         a.voice,
		VoiceSettings: a.settings,
	})
	if err != nil {
		return err
	}
	if err := sess.Start(ctx); err != nil {
		return err
	}

	a.printf("\n=== %s (review) ===\n", plan.Title)
	for i, turn := range plan.Dialogue {
		a.printf("%2d. %s: %s\n", i+1, partyLabel(turn.Party), turn.Line.Display)
	}
	a.printf("Type a line number to hear it, or back to return.\n")

	for {
		line, ok := a.readLine("review> ")
		if !ok || line == "back" {
			return nil
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(plan.Dialogue) {
			a.printf("Pick a line between 1 and %d.\n", len(plan.Dialogue))
			continue
		}
		if err := sess.PlayTurn(ctx, n-1); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.printf("Playback failed: %v\n", err)
		}
	}
}

// quizCommand builds a vocabulary quiz from a completed lesson.
func (a *App) quizCommand(ctx context.Context, fields []string) {
	rec := a.historyRecord(ctx, fields)
	if rec == nil {
		return
	}
	a.runQuiz(ctx, rec.Plan)
}

// offerQuiz asks whether to quiz the just-completed lesson.
func (a *App) offerQuiz(ctx context.Context, plan *lesson.Plan) {
	line, ok := a.readLine("Take the vocabulary quiz? (y/n) ")
	if !ok || !strings.EqualFold(line, "y") {
		return
	}
	a.runQuiz(ctx, plan)
}

// runQuiz extracts vocabulary from plan and walks the learner through the
// questions, offering a reshuffled retry at the end.
func (a *App) runQuiz(ctx context.Context, plan *lesson.Plan) {
	items, err := a.extractor.Extract(ctx, plan, a.nativeLanguage())
	if err != nil {
		a.printf("Could not build a quiz: %v\n", err)
		return
	}
	if len(items) == 0 {
		a.printf("This lesson has no vocabulary to quiz.\n")
		return
	}

	qs := quiz.NewSession(items, quiz.WithNativeLanguage(a.nativeLanguage()))
	for {
		for !qs.Done() {
			q := qs.Current()
			a.printf("\nWhat does %q mean?\n", q.Item.Word)
			if q.Item.Context != "" {
				a.printf("   (heard in: %s)\n", q.Item.Context)
			}
			for i, opt := range q.Options {
				a.printf("  %d. %s\n", i+1, opt)
			}

			line, ok := a.readLine("quiz> ")
			if !ok {
				return
			}
			n, err := strconv.Atoi(line)
			if err != nil || n < 1 || n > len(q.Options) {
				a.printf("Answer with a number between 1 and %d.\n", len(q.Options))
				continue
			}
			if qs.Answer(q.Options[n-1]) {
				a.printf("Correct!\n")
			} else {
				a.printf("Not quite. %q means %q.\n", q.Item.Word, q.Answer)
			}
		}

		correct, total := qs.Score()
		a.printf("\nScore: %d/%d (%d%%)\n", correct, total, qs.Percentage())

		line, ok := a.readLine("Retry the quiz? (y/n) ")
		if !ok || !strings.EqualFold(line, "y") {
			return
		}
		qs.Retry()
	}
}

// historyRecord resolves an optional 1-based index argument against the
// saved history. Defaults to the most recent lesson.
func (a *App) historyRecord(ctx context.Context, fields []string) *store.HistoryRecord {
	records, err := a.store.LoadHistory(ctx)
	if err != nil {
		a.printf("Could not load history: %v\n", err)
		return nil
	}
	if len(records) == 0 {
		a.printf("No completed lessons yet.\n")
		return nil
	}
	n := 1
	if len(fields) > 1 {
		n, err = strconv.Atoi(fields[1])
		if err != nil || n < 1 || n > len(records) {
			a.printf("Pick a lesson between 1 and %d (see history).\n", len(records))
			return nil
		}
	}
	return records[n-1]
}

func (a *App) nativeLanguage() string {
	if a.cfg.Lesson.NativeLanguage != "" {
		return a.cfg.Lesson.NativeLanguage
	}
	return "english"
}

// readLine prints prompt and reads one trimmed line from the menu input.
// ok is false once input is exhausted.
func (a *App) readLine(prompt string) (line string, ok bool) {
	a.printf("%s", prompt)
	if !a.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(a.in.Text()), true
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func partyLabel(p lesson.Party) string {
	if p == lesson.PartyLearner {
		return "You"
	}
	return "Partner"
}

// terminalObserver renders engine events on the terminal.
type terminalObserver struct {
	app *App
}

var _ engine.Observer = (*terminalObserver)(nil)

func (o *terminalObserver) OnStateChange(engine.State) {}

func (o *terminalObserver) OnTurn(index int, party string, display string) {
	label := "Partner"
	if party == string(lesson.PartyLearner) {
		label = "You"
	}
	o.app.printf("\n%s: %s\n", label, display)
}

func (o *terminalObserver) OnFeedback(accepted bool, feedback string, skippable bool) {
	if accepted {
		o.app.printf("  %s\n", feedback)
		return
	}
	o.app.printf("  %s\n", feedback)
	if skippable {
		o.app.printf("  (type :skip to move on)\n")
	}
}

func (o *terminalObserver) OnError(err error) {
	slog.Warn("lesson event failed", "err", err)
}
