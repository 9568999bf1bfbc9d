package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/TobiSchelling/AIAnalyzer/internal/logger"
)

// OllamaProvider is a local Ollama server. It serves as the last text rank and
// as a vision fallback for multimodal models.
type OllamaProvider struct {
	Model       string
	BaseURL     string
	Temperature float32
	MaxTokens   int
	client      *http.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(model, baseURL string, temperature float32, maxTokens int, timeout time.Duration) *OllamaProvider {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaProvider{
		Model:       model,
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Temperature: temperature,
		MaxTokens:   maxTokens,
		client:      &http.Client{Timeout: timeout},
	}
}

// Name returns "ollama".
func (o *OllamaProvider) Name() string { return "ollama" }

// IsConfigured checks if Ollama is running and the model is available.
func (o *OllamaProvider) IsConfigured() bool {
	if o.BaseURL == "" || o.Model == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}

	modelBase := strings.SplitN(o.Model, ":", 2)[0]
	for _, m := range result.Models {
		if strings.Contains(m.Name, modelBase) {
			return true
		}
	}
	logger.Log.Warnf("Ollama model %q not found", o.Model)
	return false
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// Generate sends a prompt to Ollama and returns the response.
func (o *OllamaProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return o.chat(ctx, ollamaMessage{Role: "user", Content: prompt}, maxTokens)
}

// Describe attaches the image bytes. Ollama cannot fetch URLs, so a reference
// without data is an error.
func (o *OllamaProvider) Describe(ctx context.Context, prompt string, img ImageRef, maxTokens int) (string, error) {
	if !img.HasData() {
		return "", NewProviderError(o.Name(), fmt.Errorf("image bytes required"))
	}
	msg := ollamaMessage{
		Role:    "user",
		Content: prompt,
		Images:  []string{base64.StdEncoding.EncodeToString(img.Data)},
	}
	return o.chat(ctx, msg, maxTokens)
}

func (o *OllamaProvider) chat(ctx context.Context, msg ollamaMessage, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = o.MaxTokens
	}
	options := map[string]any{"temperature": o.Temperature}
	if maxTokens > 0 {
		options["num_predict"] = maxTokens
	}
	body := map[string]any{
		"model":    o.Model,
		"messages": []ollamaMessage{msg},
		"stream":   false,
		"options":  options,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", NewProviderError(o.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", NewProviderError(o.Name(), fmt.Errorf("API returned %d: %s", resp.StatusCode, string(respBody)))
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", NewProviderError(o.Name(), fmt.Errorf("decoding response: %w", err))
	}

	return result.Message.Content, nil
}
