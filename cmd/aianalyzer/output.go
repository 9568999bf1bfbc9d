package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
	"github.com/TobiSchelling/AIAnalyzer/internal/pipeline"
	"github.com/TobiSchelling/AIAnalyzer/internal/report"
)

type runOutput struct {
	RunID         string                 `json:"run_id"`
	Summary       string                 `json:"summary"`
	KeyPoints     []string               `json:"key_points"`
	Results       []content.Result       `json:"results"`
	MediaRequests []content.Request      `json:"media_requests,omitempty"`
	LinkAnalyses  []content.LinkAnalysis `json:"link_analyses,omitempty"`
	Stats         report.Stats           `json:"stats"`
	Messages      []string               `json:"messages"`
}

func runAndPrint(reqs []content.Request, fd *content.ForumData) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	state, err := a.pipeline.Run(ctx, reqs, fd)
	if err != nil {
		return err
	}
	return printState(state, outFormat)
}

func printState(state pipeline.State, format string) error {
	switch format {
	case "json":
		return printJSON(runOutput{
			RunID:         state.RunID,
			Summary:       state.FinalSummary,
			KeyPoints:     state.KeyPoints,
			Results:       state.Results,
			MediaRequests: state.MediaRequests,
			LinkAnalyses:  state.LinkAnalyses,
			Stats:         report.ComputeStats(state.Results),
			Messages:      state.Messages,
		})
	case "markdown":
		fmt.Println(report.Markdown(state.ReportInput()))
	case "html":
		html, err := report.HTML(state.ReportInput())
		if err != nil {
			return err
		}
		fmt.Println(html)
	default:
		fmt.Println(state.Report)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
