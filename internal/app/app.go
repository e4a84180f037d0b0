// Package app wires all Verbalis subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the interactive lesson loop, and Shutdown tears
// everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithStore, WithMetrics, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verbalis/verbalis/internal/config"
	"github.com/verbalis/verbalis/internal/lesson"
	"github.com/verbalis/verbalis/internal/observe"
	"github.com/verbalis/verbalis/internal/quiz"
	"github.com/verbalis/verbalis/internal/segment"
	"github.com/verbalis/verbalis/internal/store"
	"github.com/verbalis/verbalis/internal/verify"
	"github.com/verbalis/verbalis/pkg/audio"
	"github.com/verbalis/verbalis/pkg/provider/image"
	"github.com/verbalis/verbalis/pkg/provider/llm"
	"github.com/verbalis/verbalis/pkg/provider/speech"
	"github.com/verbalis/verbalis/pkg/provider/tts"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM    llm.Provider
	TTS    tts.Provider
	Image  image.Provider
	Speech speech.Recognizer
	Player audio.Player
}

// App owns all subsystem lifetimes and drives the lesson loop.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems, initialised in New, torn down in Shutdown.
	store     store.Store
	output    *audio.Output
	splitter  *segment.Splitter
	verifier  *verify.Dispatcher
	generator *lesson.Generator
	extractor *quiz.Extractor
	metrics   *observe.Metrics
	voice     tts.VoiceProfile
	settings  tts.VoiceSettings

	// Terminal I/O. Defaults to stdin/stdout.
	in  *bufio.Scanner
	out io.Writer

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a store instead of creating one from config.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects a metrics bundle. Nil metrics disable recording.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithInput redirects menu input away from stdin.
func WithInput(r io.Reader) Option {
	return func(a *App) { a.in = bufio.NewScanner(r) }
}

// WithOutput redirects terminal output away from stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// New creates an App by wiring all subsystems together. The providers
// struct comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil {
		return nil, fmt.Errorf("app: an LLM provider is required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		out:       os.Stdout,
	}
	for _, o := range opts {
		o(a)
	}
	if a.in == nil {
		a.in = bufio.NewScanner(os.Stdin)
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	a.initLessonStack()

	return a, nil
}

// initStore sets up the configured persistence backend or uses an injected
// store.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	storeOpts := func() []store.FileOption {
		var o []store.FileOption
		if a.cfg.Lesson.StateTTL > 0 {
			o = append(o, store.WithStateTTL(a.cfg.Lesson.StateTTL))
		}
		if a.cfg.Lesson.HistoryLimit > 0 {
			o = append(o, store.WithHistoryLimit(a.cfg.Lesson.HistoryLimit))
		}
		return o
	}

	switch a.cfg.Storage.Backend {
	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, a.cfg.Storage.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		var pgOpts []store.PgOption
		if a.cfg.Storage.Owner != "" {
			pgOpts = append(pgOpts, store.WithOwner(a.cfg.Storage.Owner))
		}
		if a.cfg.Lesson.StateTTL > 0 {
			pgOpts = append(pgOpts, store.WithPgStateTTL(a.cfg.Lesson.StateTTL))
		}
		if a.cfg.Lesson.HistoryLimit > 0 {
			pgOpts = append(pgOpts, store.WithPgHistoryLimit(a.cfg.Lesson.HistoryLimit))
		}
		pg := store.NewPostgresStore(pool, pgOpts...)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("migrate: %w", err)
		}
		a.store = pg
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})
		return nil

	default:
		dir := a.cfg.Storage.Path
		if dir == "" {
			base, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("resolve state directory: %w", err)
			}
			dir = filepath.Join(base, "verbalis")
		}
		fs, err := store.NewFileStore(dir, storeOpts()...)
		if err != nil {
			return err
		}
		a.store = fs
		return nil
	}
}

// initLessonStack builds the language-processing collaborators from config.
func (a *App) initLessonStack() {
	a.splitter = segment.NewSplitter(a.providers.LLM)

	var verifyOpts []verify.Option
	if t := a.cfg.Lesson.SimilarityThreshold; t > 0 {
		verifyOpts = append(verifyOpts, verify.WithSimilarityThreshold(t))
	}
	if t := a.cfg.Lesson.WordMatchThreshold; t > 0 {
		verifyOpts = append(verifyOpts, verify.WithWordMatchThreshold(t))
	}
	if n := a.cfg.Lesson.SkipAfterAttempts; n > 0 {
		verifyOpts = append(verifyOpts, verify.WithSkipAfterAttempts(n))
	}
	if l := a.cfg.Lesson.NativeLanguage; l != "" {
		verifyOpts = append(verifyOpts, verify.WithNativeLanguage(l))
	}
	a.verifier = verify.NewDispatcher(a.providers.LLM, verifyOpts...)

	a.generator = lesson.NewGenerator(a.providers.LLM)
	a.extractor = quiz.NewExtractor(a.providers.LLM)

	player := a.providers.Player
	if player == nil {
		player = nopPlayer{}
	}
	a.output = audio.NewOutput(player)

	a.voice = tts.VoiceProfile{
		ID:   a.cfg.Lesson.Voice.VoiceID,
		Name: a.cfg.Lesson.Voice.Name,
	}
	if s := a.cfg.Lesson.Voice.Speed; s != 0 {
		a.settings = tts.VoiceSettings{Speed: s}
	}
}

// Store exposes the persistence layer for health probes.
func (a *App) Store() store.Store {
	return a.store
}

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.output.Release()
		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}
	})
	return shutdownErr
}

// nopPlayer discards audio. Used when no playback device is configured.
type nopPlayer struct{}

func (nopPlayer) Play(context.Context, []byte) error { return nil }
func (nopPlayer) Stop()                              {}
