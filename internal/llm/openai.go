package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"
)

// chatGenerator is the part of an eino chat model the provider needs.
type chatGenerator interface {
	Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// OpenAIConfig configures an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	Name        string
	BaseURL     string
	Model       string
	APIKeys     []string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	RPM         int
}

// OpenAIProvider talks to any OpenAI-compatible chat completion API. It holds
// one client per API key and rotates between them on rate limits.
type OpenAIProvider struct {
	name        string
	model       string
	maxTokens   int
	temperature float32
	clients     []chatGenerator
	rotator     *CredentialRotator
	limiter     *rate.Limiter
}

// NewOpenAIProvider creates one eino chat model per configured key.
func NewOpenAIProvider(ctx context.Context, cfg OpenAIConfig) (*OpenAIProvider, error) {
	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	rotator := NewCredentialRotator(name, cfg.APIKeys)

	var clients []chatGenerator
	for _, key := range rotator.keys {
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  key,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("creating %s chat model: %w", name, err)
		}
		clients = append(clients, cm)
	}

	return newOpenAIProvider(name, cfg, clients, rotator), nil
}

func newOpenAIProvider(name string, cfg OpenAIConfig, clients []chatGenerator, rotator *CredentialRotator) *OpenAIProvider {
	return &OpenAIProvider{
		name:        name,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		clients:     clients,
		rotator:     rotator,
		limiter:     newLimiter(cfg.RPM),
	}
}

// Name returns the configured provider name.
func (o *OpenAIProvider) Name() string { return o.name }

// IsConfigured reports whether at least one key is set.
func (o *OpenAIProvider) IsConfigured() bool { return len(o.clients) > 0 }

// Rotator exposes the credential rotator for status reporting.
func (o *OpenAIProvider) Rotator() *CredentialRotator { return o.rotator }

// Generate sends a single user message.
func (o *OpenAIProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	msgs := []*schema.Message{{Role: schema.User, Content: prompt}}
	return o.generate(ctx, msgs, maxTokens)
}

// Describe sends a multi-part message with the image as an image_url part.
func (o *OpenAIProvider) Describe(ctx context.Context, prompt string, img ImageRef, maxTokens int) (string, error) {
	msgs := []*schema.Message{{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: prompt},
			{Type: schema.ChatMessagePartTypeImageURL, ImageURL: &schema.ChatMessageImageURL{URL: img.DataURI()}},
		},
	}}
	return o.generate(ctx, msgs, maxTokens)
}

func (o *OpenAIProvider) generate(ctx context.Context, msgs []*schema.Message, maxTokens int) (string, error) {
	if !o.IsConfigured() {
		return "", NewProviderError(o.name, fmt.Errorf("API key not configured"))
	}
	if maxTokens <= 0 {
		maxTokens = o.maxTokens
	}

	opts := []model.Option{model.WithTemperature(o.temperature)}
	if maxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(maxTokens))
	}

	var out string
	err := o.rotator.Do(ctx, func(idx int, _ string) error {
		if err := waitLimiter(ctx, o.limiter); err != nil {
			return err
		}
		resp, err := o.clients[idx].Generate(ctx, msgs, opts...)
		if err != nil {
			return err
		}
		if resp == nil {
			return ErrEmptyResponse
		}
		out = resp.Content
		return nil
	})
	if err != nil {
		return "", NewProviderError(o.name, err)
	}
	return out, nil
}

// newLimiter converts requests-per-minute into a token bucket. Zero disables pacing.
func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
}

func waitLimiter(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
