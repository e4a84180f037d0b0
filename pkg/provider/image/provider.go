// Package image defines the Provider interface for lesson illustration
// backends.
package image

import "context"

// Request describes one illustration to generate.
type Request struct {
	// Prompt is the scene description.
	Prompt string `json:"prompt"`

	// ImageSize is a provider size preset (e.g., "landscape_4_3").
	ImageSize string `json:"imageSize,omitempty"`

	// NumInferenceSteps trades quality for latency; 0 means provider
	// default.
	NumInferenceSteps int `json:"numInferenceSteps,omitempty"`

	// GuidanceScale controls prompt adherence; 0 means provider default.
	GuidanceScale float64 `json:"guidanceScale,omitempty"`
}

// Result is the outcome of a generation call.
type Result struct {
	Success  bool   `json:"success"`
	ImageURL string `json:"imageUrl"`
}

// Provider is the abstraction over any image generation backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Generate produces one illustration. A nil error with
	// Result.Success == false means the backend declined the prompt;
	// transport and API failures are returned as errors.
	Generate(ctx context.Context, req Request) (*Result, error)

	// Name identifies the backend for logging and metrics.
	Name() string
}
