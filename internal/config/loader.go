package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/verbalis/verbalis/internal/lang"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":    {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq"},
	"tts":    {"elevenlabs"},
	"image":  {"fal"},
	"speech": {"reader"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Providers
	if len(cfg.Providers.LLM) == 0 {
		errs = append(errs, errors.New("providers.llm must list at least one model"))
	}
	for i, entry := range cfg.Providers.LLM {
		prefix := fmt.Sprintf("providers.llm[%d]", i)
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if entry.Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required", prefix))
		}
		validateProviderName("llm", entry.Name)
	}
	if len(cfg.Providers.TTS) == 0 {
		slog.Warn("providers.tts is empty; lessons will run without audio")
	}
	for i, entry := range cfg.Providers.TTS {
		prefix := fmt.Sprintf("providers.tts[%d]", i)
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		validateProviderName("tts", entry.Name)
	}
	validateProviderName("image", cfg.Providers.Image.Name)
	validateProviderName("speech", cfg.Providers.Speech.Name)
	if cfg.Providers.Image.Name == "" {
		slog.Warn("providers.image is not configured; lessons will have no illustrations")
	}

	// Lesson
	if cfg.Lesson.TargetLanguage == "" {
		errs = append(errs, errors.New("lesson.target_language is required"))
	} else if !lang.IsKnown(cfg.Lesson.TargetLanguage) {
		slog.Warn("unknown target language; verification thresholds fall back to space-delimited defaults",
			"language", cfg.Lesson.TargetLanguage)
	}
	if t := cfg.Lesson.SimilarityThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("lesson.similarity_threshold %.2f is out of range [0, 1]", t))
	}
	if t := cfg.Lesson.WordMatchThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("lesson.word_match_threshold %.2f is out of range [0, 1]", t))
	}
	if n := cfg.Lesson.SkipAfterAttempts; n < 0 {
		errs = append(errs, fmt.Errorf("lesson.skip_after_attempts %d must not be negative", n))
	}
	if s := cfg.Lesson.Voice.Speed; s != 0 && (s < 0.5 || s > 2.0) {
		errs = append(errs, fmt.Errorf("lesson.voice.speed %.2f is out of range [0.5, 2.0]", s))
	}
	if d := cfg.Lesson.RetryDelay; d < 0 {
		errs = append(errs, fmt.Errorf("lesson.retry_delay %s must not be negative", d))
	}
	if d := cfg.Lesson.StateTTL; d < 0 {
		errs = append(errs, fmt.Errorf("lesson.state_ttl %s must not be negative", d))
	}
	if n := cfg.Lesson.HistoryLimit; n < 0 {
		errs = append(errs, fmt.Errorf("lesson.history_limit %d must not be negative", n))
	}
	if len(cfg.Providers.TTS) > 0 && cfg.Lesson.Voice.VoiceID == "" {
		errs = append(errs, errors.New("lesson.voice.voice_id is required when a tts provider is configured"))
	}

	// Storage
	if cfg.Storage.Backend != "" && !cfg.Storage.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("storage.backend %q is invalid; valid values: file, postgres", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == StoragePostgres && cfg.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required when storage.backend is postgres"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
