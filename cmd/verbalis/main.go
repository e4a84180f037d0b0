// Command verbalis is the terminal host for the Verbalis language tutor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/verbalis/verbalis/internal/app"
	"github.com/verbalis/verbalis/internal/config"
	"github.com/verbalis/verbalis/internal/observe"
	"github.com/verbalis/verbalis/internal/resilience"
	"github.com/verbalis/verbalis/pkg/audio/speaker"
	"github.com/verbalis/verbalis/pkg/provider/image"
	"github.com/verbalis/verbalis/pkg/provider/image/fal"
	"github.com/verbalis/verbalis/pkg/provider/llm"
	"github.com/verbalis/verbalis/pkg/provider/llm/anyllm"
	"github.com/verbalis/verbalis/pkg/provider/llm/openai"
	"github.com/verbalis/verbalis/pkg/provider/speech"
	"github.com/verbalis/verbalis/pkg/provider/speech/reader"
	"github.com/verbalis/verbalis/pkg/provider/tts"
	"github.com/verbalis/verbalis/pkg/provider/tts/elevenlabs"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "verbalis: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "verbalis: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("verbalis starting",
		"config", *configPath,
		"language", cfg.Lesson.TargetLanguage,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry: a Prometheus-backed meter provider plus in-process tracing.
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	metrics := observe.DefaultMetrics()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	application, err := app.New(ctx, cfg, providers, app.WithMetrics(metrics))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	var metricsSrv *observe.MetricsServer
	if cfg.Server.MetricsAddr != "" {
		metricsSrv = observe.NewMetricsServer(cfg.Server.MetricsAddr,
			observe.WithHealthCheck("store", func(ctx context.Context) error {
				_, err := application.Store().LoadHistory(ctx)
				return err
			}),
		)
		metricsSrv.Start()
	}

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown error", "err", err)
		}
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown error", "err", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	return 0
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the
// appropriate provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// openai gets the native client; the remaining backends go through
	// any-llm with the shared APIKey + BaseURL pattern.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})
	for _, providerName := range []string{"anthropic", "gemini", "deepseek", "mistral", "groq"} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterImage("fal", func(entry config.ProviderEntry) (image.Provider, error) {
		var opts []fal.Option
		if entry.Model != "" {
			opts = append(opts, fal.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, fal.WithBaseURL(entry.BaseURL))
		}
		return fal.New(entry.APIKey, opts...)
	})

	reg.RegisterSpeech("reader", func(entry config.ProviderEntry) (speech.Recognizer, error) {
		return reader.New(os.Stdin), nil
	})
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to
// consume. LLM and TTS entries are layered into resilience fallback chains:
// earlier config entries are tried first, each with its own retry budget.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	llmChain := resilience.NewLLMFallback(resilience.RetryConfig{}, resilience.FallbackConfig{})
	for _, entry := range cfg.Providers.LLM {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", entry.Name, err)
		}
		llmChain.Add(entry.Name+"/"+entry.Model, p)
		slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", entry.Model)
	}
	if llmChain.Len() > 0 {
		ps.LLM = llmChain
	}

	if len(cfg.Providers.TTS) > 0 {
		ttsChain := resilience.NewTTSFallback(resilience.RetryConfig{}, resilience.FallbackConfig{})
		for _, entry := range cfg.Providers.TTS {
			p, err := reg.CreateTTS(entry)
			if err != nil {
				return nil, fmt.Errorf("create tts provider %q: %w", entry.Name, err)
			}
			ttsChain.Add(entry.Name, p)
			slog.Info("provider created", "kind", "tts", "name", entry.Name, "model", entry.Model)
		}
		ps.TTS = ttsChain
		ps.Player = speaker.New()
	}

	if name := cfg.Providers.Image.Name; name != "" {
		p, err := reg.CreateImage(cfg.Providers.Image)
		if err != nil {
			return nil, fmt.Errorf("create image provider %q: %w", name, err)
		}
		ps.Image = p
		slog.Info("provider created", "kind", "image", "name", name)
	}

	if name := cfg.Providers.Speech.Name; name != "" {
		p, err := reg.CreateSpeech(cfg.Providers.Speech)
		if err != nil {
			return nil, fmt.Errorf("create speech recognizer %q: %w", name, err)
		}
		ps.Speech = p
		slog.Info("provider created", "kind", "speech", "name", name)
	}

	return ps, nil
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
