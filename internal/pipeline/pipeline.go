// Package pipeline drives a run through its four stages:
// ingest, analyze, aggregate and report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/TobiSchelling/AIAnalyzer/internal/aggregate"
	"github.com/TobiSchelling/AIAnalyzer/internal/analyze"
	"github.com/TobiSchelling/AIAnalyzer/internal/content"
	"github.com/TobiSchelling/AIAnalyzer/internal/database"
	"github.com/TobiSchelling/AIAnalyzer/internal/forum"
	"github.com/TobiSchelling/AIAnalyzer/internal/logger"
	"github.com/TobiSchelling/AIAnalyzer/internal/report"
)

// DefaultMaxBatch is the largest number of requests accepted per run.
const DefaultMaxBatch = 10

// ErrBatchTooLarge is returned when a run exceeds the batch limit.
var ErrBatchTooLarge = errors.New("too many analysis requests")

// Step tags recorded in State.Step.
const (
	StepInit              = "init"
	StepInputProcessed    = "input_processed"
	StepInputError        = "input_error"
	StepAnalysisCompleted = "analysis_completed"
	StepSummaryCompleted  = "summary_completed"
	StepSummaryFallback   = "summary_fallback"
	StepSummaryError      = "summary_error"
	StepOutputGenerated   = "output_generated"
)

// State is threaded through the stages. Stages never modify the State they
// receive; they return an updated copy. Results and Messages only grow.
type State struct {
	RunID     string
	CreatedAt time.Time

	Requests []content.Request
	Forum    *content.ForumData

	Results       []content.Result
	MediaRequests []content.Request
	LinkAnalyses  []content.LinkAnalysis
	Processed     *forum.Processed

	FinalSummary string
	KeyPoints    []string

	Step     string
	Messages []string
	Metadata map[string]any
	Report   string
}

// NewState creates the initial state of a run.
func NewState(reqs []content.Request, fd *content.ForumData) State {
	return State{
		RunID:         uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
		Requests:      slices.Clone(reqs),
		Forum:         fd,
		Results:       []content.Result{},
		MediaRequests: []content.Request{},
		LinkAnalyses:  []content.LinkAnalysis{},
		KeyPoints:     []string{},
		Step:          StepInit,
		Messages:      []string{},
		Metadata:      map[string]any{},
	}
}

func (s State) clone() State {
	c := s
	c.Requests = slices.Clone(s.Requests)
	c.Results = slices.Clone(s.Results)
	c.MediaRequests = slices.Clone(s.MediaRequests)
	c.LinkAnalyses = slices.Clone(s.LinkAnalyses)
	c.KeyPoints = slices.Clone(s.KeyPoints)
	c.Messages = slices.Clone(s.Messages)
	c.Metadata = maps.Clone(s.Metadata)
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	return c
}

func (s *State) logf(step, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.Step = step
	s.Messages = append(s.Messages, msg)
	logger.Log.Info(msg)
}

// Stage is one step of the pipeline.
type Stage struct {
	Name string
	Run  func(ctx context.Context, s State) State
}

// Pipeline runs the fixed stage sequence.
type Pipeline struct {
	dispatcher *analyze.Dispatcher
	aggregator *aggregate.Aggregator
	history    *database.DB
	maxBatch   int
}

// New creates a pipeline. maxBatch <= 0 selects DefaultMaxBatch.
func New(d *analyze.Dispatcher, a *aggregate.Aggregator, maxBatch int) *Pipeline {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	return &Pipeline{dispatcher: d, aggregator: a, maxBatch: maxBatch}
}

// WithHistory makes the pipeline store every finished run in db.
func (p *Pipeline) WithHistory(db *database.DB) *Pipeline {
	p.history = db
	return p
}

// MaxBatch returns the request limit per run.
func (p *Pipeline) MaxBatch() int {
	return p.maxBatch
}

// Stages returns the stage sequence in execution order.
func (p *Pipeline) Stages() []Stage {
	return []Stage{
		{Name: "Ingest", Run: Ingest},
		{Name: "Analyze", Run: p.Analyze},
		{Name: "Aggregate", Run: p.Aggregate},
		{Name: "Report", Run: Report},
	}
}

// Run executes all stages over the requests and optional forum thread and
// returns the final state. Only a batch over the limit is an error; item
// failures are reported through result confidence.
func (p *Pipeline) Run(ctx context.Context, reqs []content.Request, fd *content.ForumData) (State, error) {
	if len(reqs) > p.maxBatch {
		return State{}, fmt.Errorf("%w: %d (max %d)", ErrBatchTooLarge, len(reqs), p.maxBatch)
	}

	state := NewState(reqs, fd)
	logger.Log.Infof("Starting run %s", state.RunID)
	for _, stage := range p.Stages() {
		start := time.Now()
		state = stage.Run(ctx, state)
		logger.Log.Debugf("Stage %s finished in %s (%s)", stage.Name, time.Since(start).Round(time.Millisecond), state.Step)
	}

	if p.history != nil {
		if err := p.history.InsertRun(Record(state)); err != nil {
			logger.Log.Errorf("Saving run %s failed: %v", state.RunID, err)
		} else {
			logger.Log.Infof("Saved run %s to history", state.RunID)
		}
	}
	return state, nil
}

// Ingest validates the input and records what was received.
func Ingest(_ context.Context, in State) State {
	s := in.clone()
	if len(s.Requests) == 0 && s.Forum == nil {
		s.logf(StepInputError, "No analysis requests provided")
		return s
	}

	counts := map[content.Type]int{}
	for _, r := range s.Requests {
		counts[r.Type]++
	}
	s.Metadata["request_count"] = len(s.Requests)
	s.Metadata["request_types"] = counts
	s.Metadata["has_forum"] = s.Forum != nil

	if s.Forum != nil {
		s.logf(StepInputProcessed, "Received %d analysis requests and forum thread %q", len(s.Requests), s.Forum.TopicTitle)
	} else {
		s.logf(StepInputProcessed, "Received %d analysis requests", len(s.Requests))
	}
	return s
}

// Analyze dispatches every request, forum thread first.
func (p *Pipeline) Analyze(ctx context.Context, in State) State {
	s := in.clone()
	b := p.dispatcher.Run(ctx, s.Forum, s.Requests)

	s.Results = append(s.Results, b.Results...)
	s.MediaRequests = append(s.MediaRequests, b.MediaRequests...)
	s.LinkAnalyses = append(s.LinkAnalyses, b.LinkAnalyses...)
	if b.Forum != nil {
		s.Processed = b.Forum
	}
	s.Metadata["media_requests"] = len(b.MediaRequests)
	s.logf(StepAnalysisCompleted, "Analyzed %d items", len(b.Results))
	return s
}

// Aggregate merges the results into one summary. It always produces one.
func (p *Pipeline) Aggregate(ctx context.Context, in State) (out State) {
	s := in.clone()
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("Aggregation panicked: %v", r)
			s.FinalSummary = fmt.Sprintf("Summary generation failed: %v", r)
			s.KeyPoints = []string{}
			s.logf(StepSummaryError, "Summary generation failed")
			out = s
		}
	}()

	sum := p.aggregator.Aggregate(ctx, s.Results)
	s.FinalSummary = sum.Text
	s.KeyPoints = slices.Clone(sum.KeyPoints)
	s.Metadata["usable_results"] = sum.Usable
	s.Metadata["summary_fallback"] = sum.Fallback
	if sum.Fallback {
		s.logf(StepSummaryFallback, "Summary assembled without LLM from %d results", len(s.Results))
	} else {
		s.logf(StepSummaryCompleted, "Summary generated with %d key points", len(s.KeyPoints))
	}
	return s
}

// Report renders the final state as text.
func Report(_ context.Context, in State) State {
	s := in.clone()
	s.Report = report.Text(s.ReportInput())
	s.logf(StepOutputGenerated, "Report generated")
	return s
}

// ReportInput returns what the reporter needs from the state.
func (s State) ReportInput() report.Input {
	return report.Input{
		RunID:     s.RunID,
		CreatedAt: s.CreatedAt,
		Summary:   s.FinalSummary,
		KeyPoints: s.KeyPoints,
		Results:   s.Results,
	}
}

// Record converts a finished state into a history row.
func Record(s State) database.Run {
	stats := report.ComputeStats(s.Results)
	fallback, _ := s.Metadata["summary_fallback"].(bool)
	run := database.Run{
		ID:           s.RunID,
		CreatedAt:    s.CreatedAt.Format(time.RFC3339),
		Summary:      s.FinalSummary,
		KeyPoints:    s.KeyPoints,
		Report:       s.Report,
		Fallback:     fallback,
		ItemCount:    stats.Total,
		SuccessCount: stats.Successful,
		ContentTypes: stats.Types,
	}
	for i, r := range s.Results {
		run.Results = append(run.Results, database.RunResult{
			Position:        i,
			ContentType:     string(r.Type),
			OriginalContent: r.OriginalContent,
			Analysis:        r.Analysis,
			Summary:         r.Summary,
			KeyPoints:       r.KeyPoints,
			Confidence:      r.Confidence,
		})
	}
	return run
}
