package aggregate

import (
	"context"
	"fmt"
	"strings"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
	"github.com/TobiSchelling/AIAnalyzer/internal/logger"
)

const summaryPrompt = `Write a consolidated summary of the following analysis results.

Content types: %s

Analyses:
%s

Key points:
%s

Provide:
1. The overall theme and core viewpoints
2. The major findings and insights
3. An assessment of practical value
4. A consolidated recommendation

Keep it concise and highlight the most important information.`

// NoContentSummary is the summary used when there is nothing to aggregate.
const NoContentSummary = "No content available to summarize"

const (
	// DefaultMaxKeyPoints caps the consolidated key point list.
	DefaultMaxKeyPoints = 8
	// containmentMinLen is the rune length both points must exceed before
	// substring containment counts as a duplicate.
	containmentMinLen = 10

	promptKeyPoints   = 10
	fallbackSummaries = 3
	fallbackKeyPoints = 5
)

// imageNoise are phrases marking key points that carry no information about
// an image.
var imageNoise = []string{
	"resource type",
	"binary data",
	"encoded data",
	"garbled",
	"no title",
	"unreadable",
	"cannot be displayed",
	"could not be downloaded",
}

// Completer is the text side of the provider gateway.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Summary is the consolidated output of a batch.
type Summary struct {
	Text      string
	KeyPoints []string
	// Fallback is set when the summary was assembled without the LLM.
	Fallback bool
	Usable   int
}

// Aggregator merges per-item results into one summary.
type Aggregator struct {
	llm          Completer
	maxKeyPoints int
}

// New creates an aggregator. maxKeyPoints <= 0 selects DefaultMaxKeyPoints.
func New(gw Completer, maxKeyPoints int) *Aggregator {
	if maxKeyPoints <= 0 {
		maxKeyPoints = DefaultMaxKeyPoints
	}
	return &Aggregator{llm: gw, maxKeyPoints: maxKeyPoints}
}

// Aggregate keeps results above the usable threshold, drops noisy image key
// points, asks the LLM for a combined summary and deduplicates key points.
// It never fails: without a usable LLM answer the summary is assembled from
// the raw summaries.
func (a *Aggregator) Aggregate(ctx context.Context, results []content.Result) Summary {
	if len(results) == 0 {
		logger.Log.Warn("No analysis results to summarize")
		return Summary{Text: NoContentSummary, KeyPoints: []string{}}
	}

	var summaries, points, raw []string
	var types []string
	seenType := map[content.Type]bool{}
	for _, r := range results {
		if !r.Usable() {
			continue
		}
		summaries = append(summaries, r.Summary)
		kp := r.KeyPoints
		raw = append(raw, kp...)
		if r.Type == content.Image {
			kp = FilterImageNoise(kp)
		}
		points = append(points, kp...)
		if !seenType[r.Type] {
			seenType[r.Type] = true
			types = append(types, string(r.Type))
		}
	}
	logger.Log.Infof("Collected %d usable summaries and %d key points", len(summaries), len(points))

	if len(summaries) == 0 {
		return a.fallback(len(results), types, summaries, raw)
	}

	prompt := fmt.Sprintf(summaryPrompt,
		strings.Join(types, ", "),
		bulletList(summaries),
		bulletList(head(points, promptKeyPoints)))

	text, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		logger.Log.Warnf("Summary generation failed, using fallback: %v", err)
		return a.fallback(len(results), types, summaries, raw)
	}

	kept := DedupKeyPoints(points, a.maxKeyPoints)
	logger.Log.Infof("Generated summary with %d key points", len(kept))
	return Summary{Text: text, KeyPoints: kept, Usable: len(summaries)}
}

func (a *Aggregator) fallback(total int, types, summaries, points []string) Summary {
	var text string
	if len(types) == 0 {
		text = fmt.Sprintf("Analyzed %d items; none produced a usable result.", total)
	} else {
		text = fmt.Sprintf("Analyzed %d items including %s.", total, strings.Join(types, ", "))
	}
	if len(summaries) > 0 {
		text += " Main content: " + strings.Join(head(summaries, fallbackSummaries), " ")
	}

	kp := make([]string, 0, fallbackKeyPoints)
	kp = append(kp, head(points, fallbackKeyPoints)...)
	return Summary{Text: text, KeyPoints: kp, Fallback: true, Usable: len(summaries)}
}

// FilterImageNoise drops key points containing any low-information phrase.
func FilterImageNoise(points []string) []string {
	out := make([]string, 0, len(points))
	for _, p := range points {
		lower := strings.ToLower(p)
		noisy := false
		for _, phrase := range imageNoise {
			if strings.Contains(lower, phrase) {
				noisy = true
				break
			}
		}
		if !noisy {
			out = append(out, p)
		}
	}
	return out
}

// DedupKeyPoints keeps points in order, dropping blanks, case-insensitive
// repeats and, when both points are longer than containmentMinLen runes, any
// point that contains or is contained in an earlier one. At most limit points
// are returned.
func DedupKeyPoints(points []string, limit int) []string {
	kept := []string{}
	var norms []string
	for _, p := range points {
		if len(kept) >= limit {
			break
		}
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		norm := strings.ToLower(trimmed)
		if isDuplicate(norm, norms) {
			continue
		}
		kept = append(kept, trimmed)
		norms = append(norms, norm)
	}
	return kept
}

func isDuplicate(norm string, accepted []string) bool {
	long := content.RuneLen(norm) > containmentMinLen
	for _, prev := range accepted {
		if prev == norm {
			return true
		}
		if long && content.RuneLen(prev) > containmentMinLen &&
			(strings.Contains(prev, norm) || strings.Contains(norm, prev)) {
			return true
		}
	}
	return false
}

func bulletList(items []string) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = "- " + it
	}
	return strings.Join(lines, "\n")
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
