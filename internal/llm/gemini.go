package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// contentGenerator is satisfied by *genai.Models.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the Gemini API provider.
type GeminiConfig struct {
	Name        string
	Model       string
	APIKeys     []string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	RPM         int
}

// GeminiProvider calls the Gemini API through the genai SDK.
type GeminiProvider struct {
	name        string
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	models      []contentGenerator
	rotator     *CredentialRotator
	limiter     *rate.Limiter
}

// NewGeminiProvider creates one genai client per configured key.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	name := cfg.Name
	if name == "" {
		name = "gemini"
	}
	rotator := NewCredentialRotator(name, cfg.APIKeys)

	var models []contentGenerator
	for _, key := range rotator.keys {
		cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: key, Backend: genai.BackendGeminiAPI})
		if err != nil {
			return nil, fmt.Errorf("creating %s client: %w", name, err)
		}
		models = append(models, cli.Models)
	}

	return &GeminiProvider{
		name:        name,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		models:      models,
		rotator:     rotator,
		limiter:     newLimiter(cfg.RPM),
	}, nil
}

// Name returns the configured provider name.
func (g *GeminiProvider) Name() string { return g.name }

// IsConfigured reports whether at least one key is set.
func (g *GeminiProvider) IsConfigured() bool { return len(g.models) > 0 }

// Generate sends a text prompt.
func (g *GeminiProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	parts := []*genai.Part{{Text: prompt}}
	return g.generate(ctx, parts, maxTokens)
}

// Describe sends the prompt with the image inline, or by URI when only a URL
// is known.
func (g *GeminiProvider) Describe(ctx context.Context, prompt string, img ImageRef, maxTokens int) (string, error) {
	parts := []*genai.Part{{Text: prompt}}
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	if img.HasData() {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: img.Data}})
	} else {
		parts = append(parts, &genai.Part{FileData: &genai.FileData{FileURI: img.URL, MIMEType: mime}})
	}
	return g.generate(ctx, parts, maxTokens)
}

func (g *GeminiProvider) generate(ctx context.Context, parts []*genai.Part, maxTokens int) (string, error) {
	if !g.IsConfigured() {
		return "", NewProviderError(g.name, fmt.Errorf("API key not configured"))
	}
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}

	temp := g.temperature
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if maxTokens > 0 {
		cfg.MaxOutputTokens = int32(maxTokens)
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	var out string
	err := g.rotator.Do(ctx, func(idx int, _ string) error {
		if err := waitLimiter(ctx, g.limiter); err != nil {
			return err
		}
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}

		resp, err := g.models[idx].GenerateContent(callCtx, g.model, contents, cfg)
		if err != nil {
			return err
		}
		text := responseText(resp)
		if text == "" {
			return ErrEmptyResponse
		}
		out = text
		return nil
	})
	if err != nil {
		return "", NewProviderError(g.name, err)
	}
	return out, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}
