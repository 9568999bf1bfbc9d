package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
)

func sampleInput() Input {
	return Input{
		RunID:     "run-1",
		CreatedAt: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
		Summary:   "Everything is fine.",
		KeyPoints: []string{"first", "second"},
		Results: []content.Result{
			{Type: content.URL, OriginalContent: "https://a", Summary: "a", Confidence: 0.8},
			{Type: content.Code, OriginalContent: "def f():\n  pass", Summary: "b", Confidence: 0.9},
			{Type: content.URL, OriginalContent: "https://b", Summary: "c", Confidence: 0.1},
		},
	}
}

func TestText(t *testing.T) {
	out := Text(sampleInput())

	want := strings.Join([]string{
		rule,
		"Multimodal Content Analysis Report",
		rule,
		"",
		"Summary:",
		"Everything is fine.",
		"",
		"Key points:",
		"  1. first",
		"  2. second",
		"",
		"Details:",
		"  - Total analyzed: 3",
		"  - Successful: 2",
		"  - Content types: url, code",
		"",
		rule,
		"Analysis complete",
	}, "\n")
	assert.Equal(t, want, out)
	assert.Len(t, rule, 60)
}

func TestTextWithoutResults(t *testing.T) {
	out := Text(Input{})
	assert.Contains(t, out, "No summary available")
	assert.NotContains(t, out, "Details:")
}

func TestMarkdownAndHTML(t *testing.T) {
	in := sampleInput()

	mdText := Markdown(in)
	assert.Contains(t, mdText, "Run `run-1` at 2025-06-01 09:30")
	assert.Contains(t, mdText, "1. first\n2. second\n")
	assert.Contains(t, mdText, "### 2. CODE: def f(): pass")
	assert.Contains(t, mdText, "3 analyzed, 2 successful (url, code)")

	html, err := HTML(in)
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Content Analysis Report</h1>")
	assert.Contains(t, html, "<li>first</li>")
	assert.Contains(t, html, "<code>run-1</code>")
}

func TestComputeStats(t *testing.T) {
	st := ComputeStats(nil)
	assert.Equal(t, Stats{Types: []string{}}, st)
}
