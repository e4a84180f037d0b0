// Package resilience provides the retry, circuit breaker, and provider
// failover primitives used around every network collaborator.
//
// The LLM path composes all three: each model variant gets retried with
// exponential backoff behind its own breaker, and variants are tried in
// priority order until one answers.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Do] while the breaker is open and
// its cooldown has not elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig holds tuning knobs for a [Breaker]. Zero fields take
// defaults.
type BreakerConfig struct {
	// Name is a label for log messages.
	Name string

	// MaxFailures is the consecutive-failure count that trips the
	// breaker. Default: 3.
	MaxFailures int

	// Cooldown is how long a tripped breaker rejects calls before
	// allowing a probe. Default: 20s.
	Cooldown time.Duration
}

// Breaker is a two-and-a-half state circuit breaker: closed, open, and a
// single-probe half-open entered after the cooldown. One failed probe
// re-opens it; one successful probe closes it.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool
	probing  bool
}

// NewBreaker creates a [Breaker] from cfg.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 20 * time.Second
	}
	return &Breaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
	}
}

// Do runs fn unless the breaker is open. After the cooldown a single probe
// call is allowed through; its outcome decides whether the breaker closes
// or re-opens.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.open {
		if time.Since(b.openedAt) < b.cooldown || b.probing {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.probing = true
		slog.Debug("circuit breaker probing", "name", b.name)
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		b.openedAt = time.Now()
		if b.probing || b.failures >= b.maxFailures {
			if !b.open {
				slog.Warn("circuit breaker opened", "name", b.name, "failures", b.failures)
			}
			b.open = true
		}
		b.probing = false
		return err
	}
	if b.open {
		slog.Info("circuit breaker closed", "name", b.name)
	}
	b.open = false
	b.probing = false
	b.failures = 0
	return nil
}

// Open reports whether calls would currently be rejected.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open && time.Since(b.openedAt) < b.cooldown
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = false
	b.probing = false
	b.failures = 0
}
