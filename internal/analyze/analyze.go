// Package analyze turns typed content requests into normalized results. Every
// analyzer is total: failures come back as low-confidence results with a
// narrated analysis, never as errors.
package analyze

import (
	"context"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
	"github.com/TobiSchelling/AIAnalyzer/internal/fetch"
	"github.com/TobiSchelling/AIAnalyzer/internal/llm"
)

// Analyzer handles one content type.
type Analyzer interface {
	Analyze(ctx context.Context, req content.Request) content.Result
}

// Completer is the text side of the provider gateway.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Describer is the vision side of the provider gateway.
type Describer interface {
	Describe(ctx context.Context, prompt string, img llm.ImageRef) (string, error)
}

// PageFetcher downloads and extracts web pages.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (*fetch.Page, error)
}

// ImageFetcher downloads image bytes.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) ([]byte, string, error)
}

// Confidence levels shared by the analyzers.
const (
	confURLOK         = 0.8
	confURLDegraded   = 0.3
	confURLFetchError = 0.1
	confTextOK        = 0.8
	confTextDegraded  = 0.3
	confImageURLOK    = 0.7
	confImageFileOK   = 0.8
	confImageDegraded = 0.3
	confCodeOK        = 0.9
	confCodeDegraded  = 0.4
	confForumOK       = 0.9
	confForumDegraded = 0.3
)

// newResult fills the derived fields from the analysis text.
func newResult(t content.Type, original, analysis string, keyPoints []string, confidence float64) content.Result {
	if keyPoints == nil {
		keyPoints = []string{}
	}
	return content.Result{
		Type:            t,
		OriginalContent: original,
		Analysis:        analysis,
		Summary:         content.Summarize(analysis),
		KeyPoints:       keyPoints,
		Confidence:      confidence,
		Metadata:        map[string]any{},
	}
}
