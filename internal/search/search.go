package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
)

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
}

// Request is a provider-independent search query.
type Request struct {
	Query             string
	Topic             string // "general" or "news"
	MaxResults        int
	IncludeAnswer     bool
	IncludeRawContent bool
}

// Response holds the search answer and hits.
type Response struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer,omitempty"`
	Results []Result `json:"results"`
}

// Result is a single hit.
type Result struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	RawContent    string  `json:"raw_content,omitempty"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date,omitempty"`
}

// Context renders a response as prompt context, each snippet capped at
// snippetLen runes.
func (r *Response) Context(snippetLen int) string {
	if r == nil {
		return ""
	}
	var sb strings.Builder
	if r.Answer != "" {
		fmt.Fprintf(&sb, "Answer: %s\n\n", r.Answer)
	}
	for i, res := range r.Results {
		fmt.Fprintf(&sb, "%d. %s (%s)\n   %s\n", i+1, res.Title, res.URL, content.Truncate(res.Content, snippetLen))
	}
	return strings.TrimRight(sb.String(), "\n")
}
