// Package mock provides a test double for the image.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/verbalis/verbalis/pkg/provider/image"
)

// Provider is a configurable image.Provider test double. The zero value
// returns a successful result with a fake URL.
type Provider struct {
	mu sync.Mutex

	// GenerateResult, when set, is returned by Generate.
	GenerateResult *image.Result

	// GenerateErr, when set, is returned by Generate.
	GenerateErr error

	// GenerateCalls records every request.
	GenerateCalls []image.Request
}

var _ image.Provider = (*Provider)(nil)

func (p *Provider) Generate(_ context.Context, req image.Request) (*image.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = append(p.GenerateCalls, req)
	if p.GenerateErr != nil {
		return nil, p.GenerateErr
	}
	if p.GenerateResult != nil {
		return p.GenerateResult, nil
	}
	return &image.Result{Success: true, ImageURL: "https://img.example/fake.png"}, nil
}

func (p *Provider) Name() string {
	return "mock"
}

// CallCount returns the number of requests received.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.GenerateCalls)
}
