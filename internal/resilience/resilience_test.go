package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SucceedsWithinBudget(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Retry(context.Background(), RetryConfig{Attempts: 3, Backoff: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_ExhaustsBudget(t *testing.T) {
	t.Parallel()

	calls := 0
	wantErr := errors.New("still broken")
	err := Retry(context.Background(), RetryConfig{Attempts: 3, Backoff: time.Millisecond}, func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Retry() error = %v, want %v", err, wantErr)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_DoesNotRetryCancellation(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Retry(context.Background(), RetryConfig{Attempts: 5, Backoff: time.Millisecond}, func() error {
		calls++
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Retry() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_StopsOnContextDuringBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Retry(ctx, RetryConfig{Attempts: 10, Backoff: time.Second}, func() error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Retry() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryResult(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := RetryResult(context.Background(), RetryConfig{Attempts: 2, Backoff: time.Millisecond}, func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("RetryResult() = (%q, %v)", got, err)
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 2, Cooldown: time.Hour})
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		if err := b.Do(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("Do() error = %v", err)
		}
	}
	if !b.Open() {
		t.Fatal("breaker not open after MaxFailures")
	}

	calls := 0
	err := b.Do(func() error { calls++; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Do() on open breaker error = %v, want ErrCircuitOpen", err)
	}
	if calls != 0 {
		t.Error("open breaker still invoked fn")
	}
}

func TestBreaker_ProbeClosesAfterCooldown(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 1, Cooldown: 5 * time.Millisecond})
	if err := b.Do(func() error { return errors.New("boom") }); err == nil {
		t.Fatal("want failure")
	}
	if !b.Open() {
		t.Fatal("breaker not open")
	}

	time.Sleep(10 * time.Millisecond)

	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("probe Do() error = %v", err)
	}
	if b.Open() {
		t.Error("breaker still open after successful probe")
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 1, Cooldown: 5 * time.Millisecond})
	_ = b.Do(func() error { return errors.New("boom") })
	time.Sleep(10 * time.Millisecond)

	if err := b.Do(func() error { return errors.New("still broken") }); err == nil {
		t.Fatal("want probe failure")
	}
	if !b.Open() {
		t.Error("breaker closed after failed probe")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 2, Cooldown: time.Hour})
	_ = b.Do(func() error { return errors.New("boom") })
	_ = b.Do(func() error { return nil })
	_ = b.Do(func() error { return errors.New("boom") })
	if b.Open() {
		t.Error("breaker opened despite interleaved success")
	}
}

func TestFallbackGroup_TriesInOrder(t *testing.T) {
	t.Parallel()

	fg := NewFallbackGroup[string](FallbackConfig{})
	fg.Add("first", "a")
	fg.Add("second", "b")

	var tried []string
	err := fg.Execute(func(name string, v string) error {
		tried = append(tried, name)
		if name == "first" {
			return errors.New("down")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(tried) != 2 || tried[0] != "first" || tried[1] != "second" {
		t.Errorf("tried = %v", tried)
	}
}

func TestFallbackGroup_AllFail(t *testing.T) {
	t.Parallel()

	fg := NewFallbackGroup[int](FallbackConfig{})
	fg.Add("only", 1)

	err := fg.Execute(func(string, int) error { return errors.New("down") })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("Execute() error = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	t.Parallel()

	fg := NewFallbackGroup[string](FallbackConfig{
		Breaker: BreakerConfig{MaxFailures: 1, Cooldown: time.Hour},
	})
	fg.Add("flaky", "a")
	fg.Add("steady", "b")

	// Trip the first entry's breaker.
	_ = fg.Execute(func(name string, _ string) error {
		if name == "flaky" {
			return errors.New("down")
		}
		return nil
	})

	flakyCalls := 0
	err := fg.Execute(func(name string, _ string) error {
		if name == "flaky" {
			flakyCalls++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if flakyCalls != 0 {
		t.Errorf("flaky called %d times with open breaker, want 0", flakyCalls)
	}
}

func TestExecuteWithResult(t *testing.T) {
	t.Parallel()

	fg := NewFallbackGroup[int](FallbackConfig{})
	fg.Add("a", 1)
	fg.Add("b", 2)

	got, err := ExecuteWithResult(fg, func(_ string, v int) (int, error) {
		if v == 1 {
			return 0, errors.New("down")
		}
		return v * 10, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult() error = %v", err)
	}
	if got != 20 {
		t.Errorf("result = %d, want 20", got)
	}
}
