package analyze

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
	"github.com/TobiSchelling/AIAnalyzer/internal/forum"
	"github.com/TobiSchelling/AIAnalyzer/internal/llm"
	"github.com/TobiSchelling/AIAnalyzer/internal/logger"
)

const forumPrompt = `Analyze the discussion in this forum thread.

%s

Provide:
1. The overall topic and the core viewpoints
2. The main discussion points and what participants think, one per line starting with "- "
3. Key information and data mentioned
4. Discussion trends and participant sentiment
5. An assessment of practical value

Keep it concise and highlight the most important discussion points.`

// imageHostHints mark URLs served by image hosts even without an extension.
var imageHostHints = []string{"uploads.", "images.", "img.", "cdn."}

// ForumLimits bounds the follow-up work a thread can generate.
type ForumLimits struct {
	LinkRequests  int
	ImageRequests int
	LinkAnalyses  int
	PromptUsers   int
	PromptLinks   int
	PromptImages  int
}

// DefaultForumLimits returns the standard caps.
func DefaultForumLimits() ForumLimits {
	return ForumLimits{
		LinkRequests:  3,
		ImageRequests: 2,
		LinkAnalyses:  3,
		PromptUsers:   10,
		PromptLinks:   5,
		PromptImages:  3,
	}
}

// ForumOutcome is the full output of a thread analysis.
type ForumOutcome struct {
	Result        content.Result
	Processed     *forum.Processed
	MediaRequests []content.Request
	LinkAnalyses  []content.LinkAnalysis
}

// ForumAnalyzer preprocesses a whole thread and analyzes it with one
// provider call instead of one per post.
type ForumAnalyzer struct {
	llm    Completer
	urls   Analyzer
	limits ForumLimits
}

// NewForumAnalyzer creates a forum analyzer. urls may be nil, which disables
// immediate link analysis.
func NewForumAnalyzer(gw Completer, urls Analyzer, limits ForumLimits) *ForumAnalyzer {
	return &ForumAnalyzer{llm: gw, urls: urls, limits: limits}
}

// AnalyzeThread analyzes fd. Panics raised while doing so are turned into a
// zero-confidence result.
func (a *ForumAnalyzer) AnalyzeThread(ctx context.Context, fd *content.ForumData) (out ForumOutcome) {
	title := "unknown forum topic"
	if fd != nil && fd.TopicTitle != "" {
		title = fd.TopicTitle
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("Forum analysis panicked: %v", r)
			out = forumFailure(title, fmt.Errorf("%v", r))
		}
	}()

	if fd == nil {
		return forumFailure(title, fmt.Errorf("no forum data"))
	}
	logger.Log.Infof("Analyzing forum thread %q (%d posts)", fd.TopicTitle, len(fd.Posts))

	processed := forum.Preprocess(fd)
	prompt := fmt.Sprintf(forumPrompt, a.threadDigest(processed))

	confidence := confForumOK
	analysis, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		logger.Log.Warnf("Forum analysis degraded: %v", err)
		analysis = fmt.Sprintf("Forum analysis failed: %v", err)
		confidence = confForumDegraded
	}

	sum := processed.Summary
	res := newResult(content.Forum, "Forum topic: "+processed.Topic.Title, analysis, llm.ExtractKeyPoints(analysis), confidence)
	res.Metadata = map[string]any{
		"topic_title":  processed.Topic.Title,
		"total_posts":  sum.PostCount,
		"users_count":  len(sum.KeyUsers),
		"links_count":  len(sum.AllLinks),
		"images_count": len(sum.AllImages),
	}

	out = ForumOutcome{
		Result:        res,
		Processed:     processed,
		MediaRequests: a.MediaRequests(processed),
		LinkAnalyses:  a.analyzeLinks(ctx, processed),
	}
	logger.Log.Infof("Forum analysis produced %d follow-up requests and %d link analyses",
		len(out.MediaRequests), len(out.LinkAnalyses))
	return out
}

func forumFailure(title string, err error) ForumOutcome {
	res := newResult(content.Forum, title, fmt.Sprintf("Forum analysis failed: %v", err), nil, 0)
	res.Summary = "an error occurred during analysis"
	res.Metadata = map[string]any{"error": err.Error()}
	return ForumOutcome{Result: res, MediaRequests: []content.Request{}, LinkAnalyses: []content.LinkAnalysis{}}
}

// threadDigest is the consolidated prompt body for a thread.
func (a *ForumAnalyzer) threadDigest(p *forum.Processed) string {
	sum := p.Summary
	var sb strings.Builder

	fmt.Fprintf(&sb, "Forum topic analysis\n================\n")
	fmt.Fprintf(&sb, "Topic: %s\nURL: %s\nPosted: %s\nPosts: %d\n\n", p.Topic.Title, p.Topic.URL, p.Topic.Timestamp, sum.PostCount)

	users := sum.KeyUsers
	more := ""
	if len(users) > a.limits.PromptUsers {
		users, more = users[:a.limits.PromptUsers], "..."
	}
	fmt.Fprintf(&sb, "Participants: %s%s\n", strings.Join(users, ", "), more)
	fmt.Fprintf(&sb, "Media: %d images, %d links\n\n", len(sum.AllImages), len(sum.AllLinks))
	fmt.Fprintf(&sb, "Main discussion:\n%s\n", sum.MainDiscussion)

	writeList(&sb, "External links", "links", sum.AllLinks, a.limits.PromptLinks)
	writeList(&sb, "Images", "images", sum.AllImages, a.limits.PromptImages)
	return sb.String()
}

func writeList(sb *strings.Builder, heading, noun string, items []string, limit int) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s (%d):\n", heading, len(items))
	for i, item := range items {
		if i >= limit {
			fmt.Fprintf(sb, "  ... %d more %s\n", len(items)-limit, noun)
			break
		}
		fmt.Fprintf(sb, "  %d. %s\n", i+1, item)
	}
}

// MediaRequests builds follow-up requests for the first valid links and
// images of a thread. Each request's context names the thread.
func (a *ForumAnalyzer) MediaRequests(p *forum.Processed) []content.Request {
	reqs := []content.Request{}
	title := p.Topic.Title

	n := 0
	for _, link := range p.Summary.AllLinks {
		if n >= a.limits.LinkRequests {
			break
		}
		if !IsValidURL(link) {
			continue
		}
		n++
		reqs = append(reqs, content.NewRequest(link, content.URL,
			fmt.Sprintf("External link #%d from forum discussion: %s", n, title)))
	}

	n = 0
	for _, img := range p.Summary.AllImages {
		if n >= a.limits.ImageRequests {
			break
		}
		if !IsValidImageURL(img) {
			continue
		}
		n++
		reqs = append(reqs, content.NewRequest(img, content.Image,
			fmt.Sprintf("Image #%d from forum discussion: %s", n, title)))
	}
	return reqs
}

func (a *ForumAnalyzer) analyzeLinks(ctx context.Context, p *forum.Processed) []content.LinkAnalysis {
	out := []content.LinkAnalysis{}
	if a.urls == nil || a.limits.LinkAnalyses <= 0 {
		return out
	}
	for _, link := range p.Summary.AllLinks {
		if len(out) >= a.limits.LinkAnalyses {
			break
		}
		if !IsValidURL(link) {
			continue
		}
		req := content.NewRequest(link, content.URL, "Linked from forum discussion: "+p.Topic.Title)
		out = append(out, content.LinkAnalysis{URL: link, Analysis: safeAnalyze(ctx, a.urls, req)})
	}
	return out
}

// IsValidURL reports whether u has both a scheme and a host.
func IsValidURL(u string) bool {
	parsed, err := url.Parse(u)
	return err == nil && parsed.Scheme != "" && parsed.Host != ""
}

// IsValidImageURL accepts valid URLs with an image extension or served from a
// known image host.
func IsValidImageURL(u string) bool {
	if !IsValidURL(u) {
		return false
	}
	if forum.IsImageLike(u) {
		return true
	}
	lower := strings.ToLower(u)
	for _, hint := range imageHostHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
