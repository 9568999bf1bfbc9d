package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
	"github.com/TobiSchelling/AIAnalyzer/internal/forum"
	"github.com/TobiSchelling/AIAnalyzer/internal/logger"
	"github.com/TobiSchelling/AIAnalyzer/internal/pipeline"
)

const (
	maxBodyBytes     = 10 << 20
	inputPreview     = 100
	insightTopics    = 5
	insightUsers     = 5
	activeConfidence = 0.7
)

var endpoints = map[string]string{
	"POST /analyze":       "analyze one item",
	"POST /analyze/batch": "analyze up to max_batch items together",
	"POST /analyze/forum": "analyze a forum thread",
	"GET /health":         "health check",
	"GET /config/status":  "provider configuration status",
	"GET /runs":           "stored runs",
	"GET /runs/{id}":      "report of a stored run",
}

var knownPaths = map[string]bool{
	"/health": true, "/config/status": true, "/analyze": true,
	"/analyze/batch": true, "/analyze/forum": true, "/runs": true,
}

type itemRequest struct {
	Content     *string `json:"content"`
	ContentType *string `json:"content_type"`
	Context     string  `json:"context"`
}

func (ir itemRequest) toRequest() (content.Request, error) {
	if ir.Content == nil {
		return content.Request{}, errors.New("missing required field: content")
	}
	if ir.ContentType == nil {
		return content.Request{}, errors.New("missing required field: content_type")
	}
	if strings.TrimSpace(*ir.Content) == "" {
		return content.Request{}, errors.New("content must not be empty")
	}
	t, err := content.ParseType(*ir.ContentType)
	if err != nil {
		return content.Request{}, err
	}
	return content.NewRequest(*ir.Content, t, ir.Context), nil
}

type resultDetail struct {
	RequestIndex int          `json:"request_index,omitempty"`
	ContentType  content.Type `json:"content_type"`
	Summary      string       `json:"summary"`
	KeyPoints    []string     `json:"key_points"`
	Confidence   float64      `json:"confidence"`
}

func details(results []content.Result, indexed bool) []resultDetail {
	out := make([]resultDetail, 0, len(results))
	for i, r := range results {
		d := resultDetail{ContentType: r.Type, Summary: r.Summary, KeyPoints: r.KeyPoints, Confidence: r.Confidence}
		if indexed {
			d.RequestIndex = i + 1
		}
		out = append(out, d)
	}
	return out
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	types := make([]string, 0, len(content.Types))
	for _, t := range content.Types {
		types = append(types, string(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":         "Multimodal content analysis API",
		"version":         s.version,
		"endpoints":       endpoints,
		"supported_types": types,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "timestamp": now()})
}

func (s *Server) handleConfigStatus(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusInternalServerError, "configuration status unavailable")
		return
	}
	st := s.status()
	configured := []string{}
	for _, p := range st.Providers {
		if p.Configured {
			configured = append(configured, p.Role)
		}
	}
	if st.Search {
		configured = append(configured, "search")
	}
	writeSuccess(w, map[string]any{"api_status": st, "configured_apis": configured})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var ir itemRequest
	if err := decodeJSON(r, &ir); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := ir.toRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	logger.Log.Infof("API: analyze %s request", req.Type)

	state, ok := s.run(w, r, []content.Request{req}, nil)
	if !ok {
		return
	}
	writeSuccess(w, map[string]any{
		"run_id": state.RunID,
		"input": map[string]any{
			"content":      content.Truncate(req.Content, inputPreview),
			"content_type": req.Type,
			"context":      req.Context,
		},
		"analysis": map[string]any{
			"summary":    state.FinalSummary,
			"key_points": state.KeyPoints,
			"details":    details(state.Results, false),
		},
	})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Requests *[]itemRequest `json:"requests"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Requests == nil {
		writeError(w, http.StatusBadRequest, "missing required field: requests")
		return
	}
	items := *body.Requests
	if len(items) == 0 {
		writeError(w, http.StatusBadRequest, "requests must not be empty")
		return
	}
	if limit := s.runner.MaxBatch(); len(items) > limit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d requests per batch", limit))
		return
	}

	reqs := make([]content.Request, 0, len(items))
	var types []string
	seen := map[content.Type]bool{}
	for i, item := range items {
		req, err := item.toRequest()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("request %d: %v", i+1, err))
			return
		}
		reqs = append(reqs, req)
		if !seen[req.Type] {
			seen[req.Type] = true
			types = append(types, string(req.Type))
		}
	}
	logger.Log.Infof("API: batch of %d requests", len(reqs))

	state, ok := s.run(w, r, reqs, nil)
	if !ok {
		return
	}
	writeSuccess(w, map[string]any{
		"run_id": state.RunID,
		"input": map[string]any{
			"total_requests": len(reqs),
			"content_types":  types,
		},
		"analysis": map[string]any{
			"summary":            state.FinalSummary,
			"key_points":         state.KeyPoints,
			"individual_results": details(state.Results, true),
		},
	})
}

type discussionInsights struct {
	MainTopics      []string `json:"main_topics"`
	UserSentiment   string   `json:"user_sentiment"`
	KeyParticipants []string `json:"key_participants"`
}

func (s *Server) handleForum(w http.ResponseWriter, r *http.Request) {
	raw, err := readJSONBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	fd, err := forum.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("converting forum data: %v", err))
		return
	}
	logger.Log.Infof("API: forum thread %q with %d posts", fd.TopicTitle, len(fd.Posts))

	state, ok := s.run(w, r, nil, fd)
	if !ok {
		return
	}

	analysis := map[string]any{
		"summary":    state.FinalSummary,
		"key_points": state.KeyPoints,
	}
	if in := insights(state); in != nil {
		analysis["discussion_insights"] = in
	} else {
		analysis["discussion_insights"] = map[string]any{}
	}
	writeSuccess(w, map[string]any{
		"run_id": state.RunID,
		"input": map[string]any{
			"content_type": content.Forum,
			"topic_title":  fd.TopicTitle,
			"total_posts":  fd.TotalPosts,
		},
		"analysis": analysis,
	})
}

// insights derives discussion insights from the thread result, or nil when
// the run produced no forum result.
func insights(state pipeline.State) *discussionInsights {
	for _, res := range state.Results {
		if res.Type != content.Forum {
			continue
		}
		in := &discussionInsights{
			MainTopics:      head(res.KeyPoints, insightTopics),
			UserSentiment:   "general discussion",
			KeyParticipants: []string{},
		}
		if res.Confidence > activeConfidence {
			in.UserSentiment = "active discussion"
		}
		if state.Processed != nil {
			in.KeyParticipants = head(state.Processed.Summary.KeyUsers, insightUsers)
		}
		return in
	}
	return nil
}

func (s *Server) run(w http.ResponseWriter, r *http.Request, reqs []content.Request, fd *content.ForumData) (pipeline.State, bool) {
	state, err := s.runner.Run(r.Context(), reqs, fd)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrBatchTooLarge) {
			code = http.StatusBadRequest
		}
		logger.Log.Errorf("API: run failed: %v", err)
		writeError(w, code, fmt.Sprintf("analysis failed: %v", err))
		return pipeline.State{}, false
	}
	return state, true
}

func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	if knownPaths[r.URL.Path] {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeError(w, http.StatusNotFound, "endpoint not found")
}

func readJSONBody(r *http.Request) ([]byte, error) {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		return nil, errors.New("request body must be JSON")
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if !json.Valid(data) {
		return nil, errors.New("request body is not valid JSON")
	}
	return data, nil
}

func decodeJSON(r *http.Request, v any) error {
	data, err := readJSONBody(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding request: %w", err)
	}
	return nil
}

func head(items []string, n int) []string {
	if len(items) > n {
		items = items[:n]
	}
	return append([]string{}, items...)
}
