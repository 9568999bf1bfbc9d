package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
	"github.com/TobiSchelling/AIAnalyzer/internal/database"
	"github.com/TobiSchelling/AIAnalyzer/internal/logger"
	"github.com/TobiSchelling/AIAnalyzer/internal/report"
)

const defaultRunsLimit = 50

type runSummary struct {
	ID           string   `json:"id"`
	CreatedAt    string   `json:"created_at"`
	Summary      string   `json:"summary"`
	ItemCount    int      `json:"item_count"`
	SuccessCount int      `json:"success_count"`
	ContentTypes []string `json:"content_types"`
	Fallback     bool     `json:"fallback"`
}

func wantsHTML(r *http.Request) bool {
	if f := r.URL.Query().Get("format"); f != "" {
		return f == "html"
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusNotFound, "run history is disabled")
		return
	}

	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.db.ListRuns(limit)
	if err != nil {
		logger.Log.Errorf("Listing runs: %v", err)
		writeError(w, http.StatusInternalServerError, "could not list runs")
		return
	}

	if wantsHTML(r) {
		s.render(w, "runs.html", map[string]any{"Runs": runs})
		return
	}

	out := make([]runSummary, 0, len(runs))
	for _, run := range runs {
		out = append(out, runSummary{
			ID:           run.ID,
			CreatedAt:    run.CreatedAt,
			Summary:      content.Summarize(run.Summary),
			ItemCount:    run.ItemCount,
			SuccessCount: run.SuccessCount,
			ContentTypes: run.ContentTypes,
			Fallback:     run.Fallback,
		})
	}
	writeSuccess(w, map[string]any{"runs": out})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusNotFound, "run history is disabled")
		return
	}

	id := r.PathValue("id")
	run, err := s.db.GetRun(id)
	if err != nil {
		logger.Log.Errorf("Loading run %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "could not load run")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	if r.URL.Query().Get("format") == "json" {
		writeSuccess(w, runJSON(run))
		return
	}

	s.render(w, "run.html", map[string]any{
		"Run":    run,
		"Report": report.Markdown(RunInput(run)),
	})
}

// RunInput rebuilds report input from a stored run.
func RunInput(run *database.Run) report.Input {
	in := report.Input{
		RunID:     run.ID,
		Summary:   run.Summary,
		KeyPoints: run.KeyPoints,
	}
	if t, err := time.Parse(time.RFC3339, run.CreatedAt); err == nil {
		in.CreatedAt = t
	}
	for _, rr := range run.Results {
		in.Results = append(in.Results, content.Result{
			Type:            content.Type(rr.ContentType),
			OriginalContent: rr.OriginalContent,
			Analysis:        rr.Analysis,
			Summary:         rr.Summary,
			KeyPoints:       rr.KeyPoints,
			Confidence:      rr.Confidence,
		})
	}
	return in
}

func runJSON(run *database.Run) map[string]any {
	in := RunInput(run)
	return map[string]any{
		"id":         run.ID,
		"created_at": run.CreatedAt,
		"summary":    run.Summary,
		"key_points": run.KeyPoints,
		"fallback":   run.Fallback,
		"stats":      report.ComputeStats(in.Results),
		"results":    in.Results,
		"report":     run.Report,
	}
}
