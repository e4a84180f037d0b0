// Package fal provides a fal.ai-backed image provider. It implements the
// image.Provider interface over the synchronous run endpoint.
package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/verbalis/verbalis/pkg/provider/image"
)

const (
	defaultBaseURL = "https://fal.run"
	defaultModel   = "fal-ai/flux/schnell"

	defaultImageSize = "landscape_4_3"
	defaultSteps     = 4
)

// Option is a functional option for configuring the fal Provider.
type Option func(*Provider)

// WithModel sets the fal model path (e.g., "fal-ai/flux/schnell").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the API base URL. Used by tests.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) { p.baseURL = baseURL }
}

// WithTimeout sets the HTTP request timeout. Default: 60s; image
// generation is slow.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.httpClient.Timeout = d }
}

// Provider implements image.Provider backed by the fal.ai API.
type Provider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

var _ image.Provider = (*Provider)(nil)

// New creates a new fal Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("fal: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name implements image.Provider.
func (p *Provider) Name() string {
	return "fal/" + p.model
}

// generateRequest is the JSON body for POST /{model}.
type generateRequest struct {
	Prompt            string  `json:"prompt"`
	ImageSize         string  `json:"image_size"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale,omitempty"`
}

// generateResponse is the fal run response.
type generateResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
	Detail string `json:"detail,omitempty"`
}

// Generate implements image.Provider.
func (p *Provider) Generate(ctx context.Context, req image.Request) (*image.Result, error) {
	if req.Prompt == "" {
		return nil, errors.New("fal: prompt must not be empty")
	}

	size := req.ImageSize
	if size == "" {
		size = defaultImageSize
	}
	steps := req.NumInferenceSteps
	if steps == 0 {
		steps = defaultSteps
	}
	body, err := json.Marshal(generateRequest{
		Prompt:            req.Prompt,
		ImageSize:         size,
		NumInferenceSteps: steps,
		GuidanceScale:     req.GuidanceScale,
	})
	if err != nil {
		return nil, fmt.Errorf("fal: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", p.baseURL, p.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("fal: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Key "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fal: generate HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fal: generate: unexpected status %d: %s", resp.StatusCode, detail)
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("fal: decode response: %w", err)
	}
	if len(gr.Images) == 0 || gr.Images[0].URL == "" {
		return &image.Result{Success: false}, nil
	}
	return &image.Result{Success: true, ImageURL: gr.Images[0].URL}, nil
}
