package aggregate

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
	"github.com/TobiSchelling/AIAnalyzer/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Discard()
	os.Exit(m.Run())
}

type stubCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func result(t content.Type, summary string, conf float64, points ...string) content.Result {
	return content.Result{Type: t, Summary: summary, Analysis: summary, KeyPoints: points, Confidence: conf}
}

func TestAggregateSummarizes(t *testing.T) {
	gw := &stubCompleter{reply: "Overall the sources agree."}
	results := []content.Result{
		result(content.URL, "page summary", 0.8, "Go 1.25 improves the garbage collector"),
		result(content.Code, "code summary", 0.9, "Language: go"),
		result(content.Text, "weak summary", 0.3, "ignored point from weak result"),
		result(content.URL, "exactly threshold", 0.5, "also ignored"),
	}

	s := New(gw, 0).Aggregate(context.Background(), results)

	assert.Equal(t, "Overall the sources agree.", s.Text)
	assert.False(t, s.Fallback)
	assert.Equal(t, 2, s.Usable)
	assert.Equal(t, []string{"Go 1.25 improves the garbage collector", "Language: go"}, s.KeyPoints)

	require.Len(t, gw.prompts, 1)
	assert.Contains(t, gw.prompts[0], "Content types: url, code")
	assert.Contains(t, gw.prompts[0], "- page summary\n- code summary")
	assert.NotContains(t, gw.prompts[0], "weak summary")
	assert.NotContains(t, gw.prompts[0], "exactly threshold")
}

func TestAggregateDedupesRepeatedAndContainedPoints(t *testing.T) {
	gw := &stubCompleter{reply: "ok"}
	results := []content.Result{
		result(content.Text, "a", 0.8, "AI is transformative", "AI is transformative"),
		result(content.Text, "b", 0.8, "AI is transformative for industry", "  ai IS transformative "),
	}

	s := New(gw, 0).Aggregate(context.Background(), results)
	assert.Equal(t, []string{"AI is transformative"}, s.KeyPoints)
}

func TestDedupKeyPoints(t *testing.T) {
	assert.Equal(t, []string{"Go", "Go tools"}, DedupKeyPoints([]string{"Go", "go", "Go tools"}, 8))
	assert.Equal(t, []string{"short one", "short one!"}, DedupKeyPoints([]string{"short one", "short one!"}, 8),
		"containment only applies to long points")
	assert.Equal(t, []string{"Longer key point here"}, DedupKeyPoints([]string{"Longer key point here", "key point here", "  "}, 8))

	many := []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9", "p10"}
	assert.Len(t, DedupKeyPoints(many, 8), 8)

	once := DedupKeyPoints(many, 8)
	assert.Equal(t, once, DedupKeyPoints(once, 8))
}

func TestFilterImageNoise(t *testing.T) {
	got := FilterImageNoise([]string{
		"A red bicycle leaning on a wall",
		"Resource type: image/png",
		"The file contains binary data",
		"Text appears GARBLED",
		"Page has no title",
	})
	assert.Equal(t, []string{"A red bicycle leaning on a wall"}, got)
}

func TestAggregateFiltersImageNoiseOnlyForImages(t *testing.T) {
	gw := &stubCompleter{reply: "ok"}
	results := []content.Result{
		result(content.Image, "img", 0.7, "Binary data only", "A chart of monthly revenue"),
		result(content.URL, "page", 0.8, "Page has no title but useful body"),
	}

	s := New(gw, 0).Aggregate(context.Background(), results)
	assert.Equal(t, []string{"A chart of monthly revenue", "Page has no title but useful body"}, s.KeyPoints)
}

func TestAggregateFallback(t *testing.T) {
	gw := &stubCompleter{err: errors.New("all providers failed")}
	results := []content.Result{
		result(content.URL, "s1", 0.8, "k1", "k2", "k3"),
		result(content.Code, "s2", 0.9, "k3", "k4", "k5"),
		result(content.URL, "s3", 0.8),
		result(content.Text, "s4", 0.8, "k6"),
		result(content.Text, "failed", 0),
	}

	s := New(gw, 0).Aggregate(context.Background(), results)

	assert.True(t, s.Fallback)
	assert.Equal(t, "Analyzed 5 items including url, code, text. Main content: s1 s2 s3", s.Text)
	assert.Equal(t, []string{"k1", "k2", "k3", "k3", "k4"}, s.KeyPoints)
}

func TestAggregateFallbackKeepsImageNoise(t *testing.T) {
	gw := &stubCompleter{err: errors.New("all providers failed")}
	results := []content.Result{
		result(content.Image, "photo", 0.7, "Image has no title", "A red bicycle"),
	}

	s := New(gw, 0).Aggregate(context.Background(), results)

	assert.True(t, s.Fallback)
	assert.Equal(t, []string{"Image has no title", "A red bicycle"}, s.KeyPoints)
}

func TestAggregateNoUsableResults(t *testing.T) {
	gw := &stubCompleter{reply: "unused"}
	s := New(gw, 0).Aggregate(context.Background(), []content.Result{result(content.URL, "x", 0.1)})

	assert.True(t, s.Fallback)
	assert.Equal(t, "Analyzed 1 items; none produced a usable result.", s.Text)
	assert.Empty(t, s.KeyPoints)
	assert.Empty(t, gw.prompts)
}

func TestAggregateEmpty(t *testing.T) {
	s := New(&stubCompleter{}, 0).Aggregate(context.Background(), nil)
	assert.Equal(t, NoContentSummary, s.Text)
	assert.NotNil(t, s.KeyPoints)
	assert.Empty(t, s.KeyPoints)
}
