package analyze

import (
	"context"
	"fmt"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
	"github.com/TobiSchelling/AIAnalyzer/internal/forum"
	"github.com/TobiSchelling/AIAnalyzer/internal/logger"
)

// Analyzers is the set of per-type analyzers the dispatcher routes to.
type Analyzers struct {
	Text  Analyzer
	URL   Analyzer
	Image Analyzer
	Code  Analyzer
	Forum *ForumAnalyzer
}

// Dispatcher routes requests to analyzers by content type, one at a time and
// in queue order.
type Dispatcher struct {
	analyzers Analyzers
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(a Analyzers) *Dispatcher {
	return &Dispatcher{analyzers: a}
}

// Batch is the output of one dispatch run.
type Batch struct {
	Results       []content.Result
	MediaRequests []content.Request
	LinkAnalyses  []content.LinkAnalysis
	Forum         *forum.Processed
}

// Run analyzes an optional forum thread followed by the request queue. Thread
// follow-up requests join the end of the queue and immediate link analyses
// are added to the results. A failing item yields a zero-confidence result
// and never stops the batch.
func (d *Dispatcher) Run(ctx context.Context, fd *content.ForumData, reqs []content.Request) Batch {
	queue := make([]content.Request, len(reqs), len(reqs)+8)
	copy(queue, reqs)
	b := Batch{
		Results:       []content.Result{},
		MediaRequests: []content.Request{},
		LinkAnalyses:  []content.LinkAnalysis{},
	}

	absorb := func(out ForumOutcome) {
		b.Results = append(b.Results, out.Result)
		if len(out.MediaRequests) > 0 {
			logger.Log.Infof("Queued %d media requests from forum thread", len(out.MediaRequests))
		}
		queue = append(queue, out.MediaRequests...)
		b.MediaRequests = append(b.MediaRequests, out.MediaRequests...)
		for _, la := range out.LinkAnalyses {
			b.Results = append(b.Results, la.Analysis)
		}
		b.LinkAnalyses = append(b.LinkAnalyses, out.LinkAnalyses...)
		if b.Forum == nil {
			b.Forum = out.Processed
		}
	}

	if fd != nil {
		absorb(d.forumThread(ctx, fd))
	}

	for i := 0; i < len(queue); i++ {
		req := queue[i]
		logger.Log.Infof("Analyzing item %d/%d (%s)", i+1, len(queue), req.Type)

		if req.Type == content.Forum {
			absorb(d.forumRequest(ctx, req))
			continue
		}

		res := d.dispatch(ctx, req)
		logger.Log.Infof("Item %d done, confidence %.1f", i+1, res.Confidence)
		b.Results = append(b.Results, res)
	}

	logger.Log.Infof("Analyzed %d items", len(b.Results))
	return b
}

// Analyze routes a single non-forum request.
func (d *Dispatcher) Analyze(ctx context.Context, req content.Request) content.Result {
	if req.Type == content.Forum {
		return d.forumRequest(ctx, req).Result
	}
	return d.dispatch(ctx, req)
}

func (d *Dispatcher) dispatch(ctx context.Context, req content.Request) content.Result {
	var a Analyzer
	switch req.Type {
	case content.Text:
		a = d.analyzers.Text
	case content.URL:
		a = d.analyzers.URL
	case content.Image:
		a = d.analyzers.Image
	case content.Code:
		a = d.analyzers.Code
	case content.Forum:
		return d.forumRequest(ctx, req).Result
	default:
		return content.Failed(req, fmt.Sprintf("unsupported content type %q", req.Type))
	}
	if a == nil {
		return content.Failed(req, fmt.Sprintf("no analyzer configured for %s", req.Type))
	}
	return safeAnalyze(ctx, a, req)
}

func (d *Dispatcher) forumThread(ctx context.Context, fd *content.ForumData) ForumOutcome {
	if d.analyzers.Forum == nil {
		return forumFailure(fd.TopicTitle, fmt.Errorf("no forum analyzer configured"))
	}
	return d.analyzers.Forum.AnalyzeThread(ctx, fd)
}

// forumRequest parses a FORUM request's JSON body and analyzes the thread.
func (d *Dispatcher) forumRequest(ctx context.Context, req content.Request) ForumOutcome {
	fd, err := forum.Parse([]byte(req.Content))
	if err != nil {
		out := forumFailure("invalid forum data", err)
		out.Result.OriginalContent = content.Truncate(req.Content, 100)
		return out
	}
	return d.forumThread(ctx, fd)
}

// safeAnalyze runs one analyzer and converts a panic into a failed result.
func safeAnalyze(ctx context.Context, a Analyzer, req content.Request) (res content.Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("Analyzer for %s panicked: %v", req.Type, r)
			res = content.Failed(req, fmt.Sprint(r))
		}
	}()
	return a.Analyze(ctx, req)
}
