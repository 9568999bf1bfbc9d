package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/TobiSchelling/AIAnalyzer/internal/logger"
)

// Gateway tries ranked providers in order and returns the first success.
// Failure is decided by the returned error, never by the response text.
type Gateway struct {
	text      []Provider
	vision    []VisionProvider
	maxTokens int
}

// NewGateway creates a gateway. Nil providers are skipped; maxTokens of zero
// leaves the limit to each provider.
func NewGateway(text []Provider, vision []VisionProvider, maxTokens int) *Gateway {
	g := &Gateway{maxTokens: maxTokens}
	for _, p := range text {
		if p != nil {
			g.text = append(g.text, p)
		}
	}
	for _, p := range vision {
		if p != nil {
			g.vision = append(g.vision, p)
		}
	}
	return g
}

// TextRank returns the text providers in rank order.
func (g *Gateway) TextRank() []Provider {
	out := make([]Provider, len(g.text))
	copy(out, g.text)
	return out
}

// ProviderNames lists text and vision provider names for status output.
func (g *Gateway) ProviderNames() (text, vision []string) {
	for _, p := range g.text {
		text = append(text, p.Name())
	}
	for _, p := range g.vision {
		vision = append(vision, p.Name())
	}
	return text, vision
}

// Complete runs prompt against the gateway's text rank.
func (g *Gateway) Complete(ctx context.Context, prompt string) (string, error) {
	return g.Call(ctx, prompt, g.text)
}

// Call runs prompt against rank, falling through on any error. When every
// provider fails the result is a *FallbackError listing each attempt.
func (g *Gateway) Call(ctx context.Context, prompt string, rank []Provider) (string, error) {
	if len(rank) == 0 {
		return "", ErrNoProviders
	}

	var attempts []error
	for i, p := range rank {
		text, err := p.Generate(ctx, prompt, g.maxTokens)
		if err == nil && strings.TrimSpace(text) == "" {
			err = ErrEmptyResponse
		}
		if err == nil {
			if i > 0 {
				logger.Log.Infof("Answered by fallback provider %s", p.Name())
			}
			return text, nil
		}

		attempts = append(attempts, asProviderError(p.Name(), err))
		if ctx.Err() != nil {
			break
		}
		if i < len(rank)-1 {
			logger.Log.WithField("provider", p.Name()).Warnf("Provider failed, falling back: %v", err)
		}
	}
	return "", &FallbackError{Attempts: attempts}
}

// Describe sends an image prompt to the vision rank.
func (g *Gateway) Describe(ctx context.Context, prompt string, img ImageRef) (string, error) {
	if len(g.vision) == 0 {
		return "", fmt.Errorf("vision: %w", ErrNoProviders)
	}

	var attempts []error
	for i, p := range g.vision {
		text, err := p.Describe(ctx, prompt, img, g.maxTokens)
		if err == nil && strings.TrimSpace(text) == "" {
			err = ErrEmptyResponse
		}
		if err == nil {
			return text, nil
		}

		attempts = append(attempts, asProviderError(p.Name(), err))
		if ctx.Err() != nil {
			break
		}
		if i < len(g.vision)-1 {
			logger.Log.WithField("provider", p.Name()).Warnf("Vision provider failed, falling back: %v", err)
		}
	}
	return "", &FallbackError{Attempts: attempts}
}

func asProviderError(name string, err error) error {
	if pe, ok := err.(*ProviderError); ok {
		return pe
	}
	return NewProviderError(name, err)
}
