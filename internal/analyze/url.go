package analyze

import (
	"context"
	"fmt"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
	"github.com/TobiSchelling/AIAnalyzer/internal/llm"
	"github.com/TobiSchelling/AIAnalyzer/internal/logger"
	"github.com/TobiSchelling/AIAnalyzer/internal/search"
)

const urlPrompt = `Analyze the following web page.

URL: %s%s
Page:
%s

Provide:
1. The page topic and a summary of its core content
2. 3-5 key points, one per line starting with "- "
3. An assessment of the content type, credibility and quality
4. Practical advice on how useful it is for the reader

Keep it concise and highlight the most important information.`

const textPrompt = `Analyze the following text.%s

%s

Provide a short summary and the key points, one per line starting with "- ".`

// URLAnalyzer fetches a page and asks the text providers about it.
type URLAnalyzer struct {
	llm      Completer
	pages    PageFetcher
	searcher search.Searcher
}

// NewURLAnalyzer creates a URL analyzer. searcher may be nil; when set, search
// snippets replace the page body if the fetch fails.
func NewURLAnalyzer(gw Completer, pages PageFetcher, searcher search.Searcher) *URLAnalyzer {
	return &URLAnalyzer{llm: gw, pages: pages, searcher: searcher}
}

// Analyze implements Analyzer.
func (a *URLAnalyzer) Analyze(ctx context.Context, req content.Request) content.Result {
	url := req.Content
	logger.Log.Infof("Analyzing URL: %s", url)
	meta := map[string]any{}

	var webContent string
	fetchFailed := false
	page, err := a.pages.FetchPage(ctx, url)
	if err != nil {
		fetchFailed = true
		meta["fetch_error"] = err.Error()
		webContent = fmt.Sprintf("Could not fetch URL content: %v", err)
		if extra := a.searchContext(ctx, url); extra != "" {
			webContent += "\n\nWeb search results about this URL:\n" + extra
			meta["search_context"] = true
		}
	} else {
		meta["title"] = page.Title
		webContent = page.String()
	}

	prompt := fmt.Sprintf(urlPrompt, url, contextLine(req.Context), webContent)

	confidence := confURLOK
	analysis, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		logger.Log.Warnf("URL analysis degraded for %s: %v", url, err)
		analysis = fmt.Sprintf("URL analysis failed: %v\n\n%s", err, webContent)
		confidence = confURLDegraded
	}
	if fetchFailed {
		confidence = confURLFetchError
	}

	res := newResult(content.URL, url, analysis, llm.ExtractKeyPoints(analysis), confidence)
	res.Metadata = meta
	return res
}

func (a *URLAnalyzer) searchContext(ctx context.Context, url string) string {
	if a.searcher == nil {
		return ""
	}
	resp, err := a.searcher.Search(ctx, &search.Request{Query: url, MaxResults: 3, IncludeAnswer: true})
	if err != nil {
		logger.Log.Debugf("Search fallback for %s failed: %v", url, err)
		return ""
	}
	if len(resp.Results) == 0 && resp.Answer == "" {
		return ""
	}
	return resp.Context(300)
}

// TextAnalyzer prompts the text providers with the raw text.
type TextAnalyzer struct {
	llm Completer
}

// NewTextAnalyzer creates a text analyzer.
func NewTextAnalyzer(gw Completer) *TextAnalyzer {
	return &TextAnalyzer{llm: gw}
}

// Analyze implements Analyzer.
func (a *TextAnalyzer) Analyze(ctx context.Context, req content.Request) content.Result {
	logger.Log.Infof("Analyzing text (%d chars)", content.RuneLen(req.Content))

	prompt := fmt.Sprintf(textPrompt, contextLine(req.Context), req.Content)
	confidence := confTextOK
	analysis, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		logger.Log.Warnf("Text analysis degraded: %v", err)
		analysis = fmt.Sprintf("Text analysis failed: %v", err)
		confidence = confTextDegraded
	}

	return newResult(content.Text, content.Truncate(req.Content, 100), analysis, llm.ExtractKeyPoints(analysis), confidence)
}

func contextLine(hint string) string {
	if hint == "" {
		return ""
	}
	return "\nContext: " + hint
}
