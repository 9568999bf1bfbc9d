// Package report renders the final state of a run. It only formats.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
)

var md = goldmark.New()

const rule = "============================================================"

// Input is what a report is built from.
type Input struct {
	RunID     string
	CreatedAt time.Time
	Summary   string
	KeyPoints []string
	Results   []content.Result
}

// Stats are the counters shown at the end of a report.
type Stats struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Types      []string `json:"content_types"`
}

// ComputeStats counts results, usable results and distinct types in order of
// first appearance.
func ComputeStats(results []content.Result) Stats {
	s := Stats{Total: len(results), Types: []string{}}
	seen := map[content.Type]bool{}
	for _, r := range results {
		if r.Usable() {
			s.Successful++
		}
		if !seen[r.Type] {
			seen[r.Type] = true
			s.Types = append(s.Types, string(r.Type))
		}
	}
	return s
}

// Text renders the plain-text report.
func Text(in Input) string {
	summary := in.Summary
	if summary == "" {
		summary = "No summary available"
	}

	lines := []string{
		rule,
		"Multimodal Content Analysis Report",
		rule,
		"",
		"Summary:",
		summary,
		"",
		"Key points:",
	}
	for i, p := range in.KeyPoints {
		lines = append(lines, fmt.Sprintf("  %d. %s", i+1, p))
	}

	if len(in.Results) > 0 {
		st := ComputeStats(in.Results)
		lines = append(lines,
			"",
			"Details:",
			fmt.Sprintf("  - Total analyzed: %d", st.Total),
			fmt.Sprintf("  - Successful: %d", st.Successful),
			fmt.Sprintf("  - Content types: %s", strings.Join(st.Types, ", ")),
		)
	}

	lines = append(lines, "", rule, "Analysis complete")
	return strings.Join(lines, "\n")
}

// Markdown renders the report with one section per result.
func Markdown(in Input) string {
	var sb strings.Builder
	sb.WriteString("# Content Analysis Report\n\n")
	if in.RunID != "" {
		fmt.Fprintf(&sb, "Run `%s`", in.RunID)
		if !in.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, " at %s", in.CreatedAt.Format("2006-01-02 15:04"))
		}
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Summary\n\n")
	sb.WriteString(in.Summary)
	sb.WriteString("\n\n## Key Points\n\n")
	for i, p := range in.KeyPoints {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, p)
	}

	if len(in.Results) == 0 {
		return sb.String()
	}

	st := ComputeStats(in.Results)
	fmt.Fprintf(&sb, "\n## Results\n\n%d analyzed, %d successful (%s)\n",
		st.Total, st.Successful, strings.Join(st.Types, ", "))
	for i, r := range in.Results {
		fmt.Fprintf(&sb, "\n### %d. %s: %s\n\n", i+1, strings.ToUpper(string(r.Type)), oneLine(r.OriginalContent))
		fmt.Fprintf(&sb, "Confidence: %.1f\n\n%s\n", r.Confidence, r.Summary)
	}
	return sb.String()
}

// HTML renders Markdown(in) to an HTML fragment.
func HTML(in Input) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(in)), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(content.Truncate(s, 80)), " ")
}
