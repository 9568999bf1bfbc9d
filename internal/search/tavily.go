package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const tavilyURL = "https://api.tavily.com/search"

// ErrNoAPIKey is returned when the client has no key.
var ErrNoAPIKey = errors.New("tavily API key not configured")

// TavilyClient is a Tavily search API client.
type TavilyClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

var _ Searcher = (*TavilyClient)(nil)

// NewTavilyClient creates a client with the given API key.
func NewTavilyClient(apiKey string, timeout time.Duration) *TavilyClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &TavilyClient{
		apiKey:  apiKey,
		baseURL: tavilyURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// IsConfigured reports whether an API key is set.
func (c *TavilyClient) IsConfigured() bool { return c.apiKey != "" }

type tavilyRequest struct {
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth,omitempty"`
	Topic             string `json:"topic,omitempty"`
	MaxResults        int    `json:"max_results,omitempty"`
	IncludeRawContent bool   `json:"include_raw_content,omitempty"`
	IncludeAnswer     bool   `json:"include_answer,omitempty"`
}

type tavilyResponse struct {
	Query   string `json:"query"`
	Answer  string `json:"answer"`
	Results []struct {
		Title         string  `json:"title"`
		URL           string  `json:"url"`
		Content       string  `json:"content"`
		RawContent    string  `json:"raw_content"`
		Score         float64 `json:"score"`
		PublishedDate string  `json:"published_date"`
	} `json:"results"`
}

// Search implements Searcher.
func (c *TavilyClient) Search(ctx context.Context, req *Request) (*Response, error) {
	if !c.IsConfigured() {
		return nil, ErrNoAPIKey
	}

	treq := tavilyRequest{
		Query:             req.Query,
		SearchDepth:       "basic",
		Topic:             req.Topic,
		MaxResults:        req.MaxResults,
		IncludeRawContent: req.IncludeRawContent,
		IncludeAnswer:     req.IncludeAnswer,
	}
	if treq.Topic == "" {
		treq.Topic = "general"
	}
	if treq.MaxResults == 0 {
		treq.MaxResults = 5
	}

	payload, err := json.Marshal(treq)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tavily request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily API returned %d: %s", res.StatusCode, string(body))
	}

	var tres tavilyResponse
	if err := json.Unmarshal(body, &tres); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	out := &Response{Query: tres.Query, Answer: tres.Answer, Results: make([]Result, 0, len(tres.Results))}
	if out.Query == "" {
		out.Query = req.Query
	}
	for _, r := range tres.Results {
		out.Results = append(out.Results, Result{
			Title:         r.Title,
			URL:           r.URL,
			Content:       r.Content,
			RawContent:    r.RawContent,
			Score:         r.Score,
			PublishedDate: r.PublishedDate,
		})
	}
	return out, nil
}
