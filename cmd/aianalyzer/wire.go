package main

import (
	"context"
	"fmt"

	"github.com/TobiSchelling/AIAnalyzer/internal/aggregate"
	"github.com/TobiSchelling/AIAnalyzer/internal/analyze"
	"github.com/TobiSchelling/AIAnalyzer/internal/config"
	"github.com/TobiSchelling/AIAnalyzer/internal/database"
	"github.com/TobiSchelling/AIAnalyzer/internal/fetch"
	"github.com/TobiSchelling/AIAnalyzer/internal/llm"
	"github.com/TobiSchelling/AIAnalyzer/internal/logger"
	"github.com/TobiSchelling/AIAnalyzer/internal/pipeline"
	"github.com/TobiSchelling/AIAnalyzer/internal/search"
)

// modelProvider is a backend usable for both text and images.
type modelProvider interface {
	llm.Provider
	llm.VisionProvider
}

// app holds everything a command needs to run the pipeline.
type app struct {
	gateway  *llm.Gateway
	fetcher  *fetch.Fetcher
	searcher *search.TavilyClient
	pipeline *pipeline.Pipeline
	db       *database.DB
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

// newApp wires providers, analyzers and the pipeline from cfg. History is
// opened only when withHistory is set and the config enables it.
func newApp(ctx context.Context, cfg *config.Config, withHistory bool) (*app, error) {
	gw, err := buildGateway(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		gateway:  gw,
		fetcher:  fetch.New(cfg.Fetch.Timeout(), cfg.Fetch.UserAgent, cfg.Fetch.TextLimit),
		searcher: search.NewTavilyClient(cfg.Search.APIKey(), cfg.Search.Timeout()),
	}

	var searcher search.Searcher
	if a.searcher.IsConfigured() {
		searcher = a.searcher
	}

	urls := analyze.NewURLAnalyzer(gw, a.fetcher, searcher)
	fl := cfg.Analysis.Forum
	d := analyze.NewDispatcher(analyze.Analyzers{
		Text:  analyze.NewTextAnalyzer(gw),
		URL:   urls,
		Image: analyze.NewImageAnalyzer(gw, a.fetcher),
		Code:  analyze.NewCodeAnalyzer(gw),
		Forum: analyze.NewForumAnalyzer(gw, urls, analyze.ForumLimits{
			LinkRequests:  fl.LinkRequests,
			ImageRequests: fl.ImageRequests,
			LinkAnalyses:  fl.LinkAnalyses,
			PromptUsers:   fl.PromptUsers,
			PromptLinks:   fl.PromptLinks,
			PromptImages:  fl.PromptImages,
		}),
	})

	a.pipeline = pipeline.New(d, aggregate.New(gw, cfg.Analysis.MaxKeyPoints), cfg.Analysis.MaxBatch)

	if withHistory && cfg.Output.SaveHistory {
		db, err := database.Open(cfg.HistoryPath())
		if err != nil {
			return nil, fmt.Errorf("opening history: %w", err)
		}
		a.db = db
		a.pipeline.WithHistory(db)
	}
	return a, nil
}

// buildGateway creates the text rank (primary, secondary, tertiary) and the
// vision rank (vision, then text providers flagged vision). Slots that are
// empty or lack keys are skipped.
func buildGateway(ctx context.Context, cfg *config.Config) (*llm.Gateway, error) {
	ps := cfg.Providers
	var text []llm.Provider
	var vision []llm.VisionProvider

	for _, slot := range []struct {
		role string
		p    config.Provider
	}{
		{"primary", ps.Primary},
		{"secondary", ps.Secondary},
		{"tertiary", ps.Tertiary},
	} {
		mp, err := buildProvider(ctx, slot.role, slot.p)
		if err != nil {
			return nil, err
		}
		if mp == nil {
			continue
		}
		text = append(text, mp)
		if slot.p.Vision {
			vision = append(vision, mp)
		}
	}

	vp, err := buildProvider(ctx, "vision", ps.Vision)
	if err != nil {
		return nil, err
	}
	if vp != nil {
		vision = append([]llm.VisionProvider{vp}, vision...)
	}

	if len(text) == 0 {
		logger.Log.Warn("No text provider is configured; analyses will degrade")
	}
	return llm.NewGateway(text, vision, 0), nil
}

func buildProvider(ctx context.Context, role string, p config.Provider) (modelProvider, error) {
	if !p.Enabled() {
		return nil, nil
	}
	if !p.Configured() {
		logger.Log.Warnf("Provider %s (%s) has no API key, skipping", role, p.Kind)
		return nil, nil
	}

	name := role + "/" + p.Kind
	switch p.Kind {
	case config.KindOpenAI:
		return llm.NewOpenAIProvider(ctx, llm.OpenAIConfig{
			Name:        name,
			BaseURL:     p.BaseURL,
			Model:       p.Model,
			APIKeys:     p.Keys(),
			MaxTokens:   p.MaxTokens,
			Temperature: p.Temperature,
			Timeout:     p.Timeout(),
			RPM:         p.RPM,
		})
	case config.KindGemini:
		return llm.NewGeminiProvider(ctx, llm.GeminiConfig{
			Name:        name,
			Model:       p.Model,
			APIKeys:     p.Keys(),
			MaxTokens:   p.MaxTokens,
			Temperature: p.Temperature,
			Timeout:     p.Timeout(),
			RPM:         p.RPM,
		})
	case config.KindOllama:
		return llm.NewOllamaProvider(p.Model, p.BaseURL, p.Temperature, p.MaxTokens, p.Timeout()), nil
	}
	return nil, fmt.Errorf("providers.%s: unknown kind %q", role, p.Kind)
}
