package resilience

import (
	"context"

	"github.com/verbalis/verbalis/pkg/provider/llm"
)

// LLMFallback implements [llm.Provider] over a prioritized list of model
// variants. Each variant is retried with exponential backoff inside its
// own circuit breaker; only when a variant's budget is exhausted does the
// next one get tried. Failure surfaces to the caller only after every
// variant has failed.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
	retry RetryConfig
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an empty [LLMFallback]. Variants are registered
// with [LLMFallback.Add] in priority order; at least one must be added
// before use.
func NewLLMFallback(retry RetryConfig, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{
		group: NewFallbackGroup[llm.Provider](cfg),
		retry: retry,
	}
}

// Add registers a model variant at the end of the priority list.
func (f *LLMFallback) Add(name string, provider llm.Provider) {
	f.group.Add(name, provider)
}

// Len returns the number of registered variants.
func (f *LLMFallback) Len() int {
	return f.group.Len()
}

// Complete sends the request to the first healthy variant, retrying each
// one per the retry budget before moving on.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(_ string, p llm.Provider) (*llm.CompletionResponse, error) {
		return RetryResult(ctx, f.retry, func() (*llm.CompletionResponse, error) {
			return p.Complete(ctx, req)
		})
	})
}

// Name identifies the first registered variant, the preferred one.
func (f *LLMFallback) Name() string {
	if len(f.group.entries) == 0 {
		return "llm-fallback"
	}
	return f.group.entries[0].name
}
