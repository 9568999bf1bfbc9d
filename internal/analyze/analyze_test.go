package analyze

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
	"github.com/TobiSchelling/AIAnalyzer/internal/fetch"
	"github.com/TobiSchelling/AIAnalyzer/internal/llm"
	"github.com/TobiSchelling/AIAnalyzer/internal/logger"
	"github.com/TobiSchelling/AIAnalyzer/internal/search"
)

func TestMain(m *testing.M) {
	logger.Discard()
	os.Exit(m.Run())
}

const listReply = "Summary of the content.\n- The first key point is here\n- The second key point is here"

type stubCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

type stubDescriber struct {
	reply string
	err   error
	refs  []llm.ImageRef
}

func (s *stubDescriber) Describe(_ context.Context, _ string, img llm.ImageRef) (string, error) {
	s.refs = append(s.refs, img)
	return s.reply, s.err
}

type stubPages struct {
	page *fetch.Page
	err  error
}

func (s *stubPages) FetchPage(_ context.Context, url string) (*fetch.Page, error) {
	if s.err != nil {
		return nil, s.err
	}
	p := *s.page
	p.URL = url
	return &p, nil
}

type stubImages struct {
	data []byte
	err  error
}

func (s *stubImages) FetchImage(context.Context, string) ([]byte, string, error) {
	return s.data, "image/png", s.err
}

type stubSearcher struct {
	resp *search.Response
}

func (s *stubSearcher) Search(context.Context, *search.Request) (*search.Response, error) {
	return s.resp, nil
}

func assertNarratedFailure(t *testing.T, res content.Result) {
	t.Helper()
	if res.Confidence == 0 {
		assert.NotEmpty(t, strings.TrimSpace(res.Analysis))
		assert.Contains(t, strings.ToLower(res.Analysis), "failed")
	}
}

func TestURLAnalyzerSuccess(t *testing.T) {
	gw := &stubCompleter{reply: listReply}
	a := NewURLAnalyzer(gw, &stubPages{page: &fetch.Page{Title: "Go Blog", Text: "body text"}}, nil)

	res := a.Analyze(context.Background(), content.NewRequest("https://go.dev/blog", content.URL, ""))

	assert.Equal(t, content.URL, res.Type)
	assert.Equal(t, "https://go.dev/blog", res.OriginalContent)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
	assert.Equal(t, []string{"The first key point is here", "The second key point is here"}, res.KeyPoints)
	assert.Equal(t, "Go Blog", res.Metadata["title"])
	require.Len(t, gw.prompts, 1)
	assert.Contains(t, gw.prompts[0], "Title: Go Blog")
}

func TestURLAnalyzerProviderFailure(t *testing.T) {
	gw := &stubCompleter{err: errors.New("all providers failed")}
	a := NewURLAnalyzer(gw, &stubPages{page: &fetch.Page{Title: "t", Text: "x"}}, nil)

	res := a.Analyze(context.Background(), content.NewRequest("https://example.com", content.URL, ""))
	assert.InDelta(t, 0.3, res.Confidence, 1e-9)
	assert.Contains(t, res.Analysis, "URL analysis failed")
}

func TestURLAnalyzerFetchFailureWins(t *testing.T) {
	gw := &stubCompleter{reply: listReply}
	searcher := &stubSearcher{resp: &search.Response{Results: []search.Result{{Title: "Mirror", URL: "https://m", Content: "cached copy"}}}}
	a := NewURLAnalyzer(gw, &stubPages{err: errors.New("connection refused")}, searcher)

	res := a.Analyze(context.Background(), content.NewRequest("https://down.example.com", content.URL, ""))

	assert.InDelta(t, 0.1, res.Confidence, 1e-9)
	assert.Equal(t, "connection refused", res.Metadata["fetch_error"])
	assert.Equal(t, true, res.Metadata["search_context"])
	require.Len(t, gw.prompts, 1)
	assert.Contains(t, gw.prompts[0], "Could not fetch URL content")
	assert.Contains(t, gw.prompts[0], "cached copy")
}

func TestTextAnalyzer(t *testing.T) {
	body := strings.Repeat("x", 150)
	res := NewTextAnalyzer(&stubCompleter{reply: listReply}).Analyze(context.Background(), content.NewRequest(body, content.Text, ""))
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
	assert.Equal(t, strings.Repeat("x", 100)+"...", res.OriginalContent)
	assert.Len(t, res.KeyPoints, 2)

	res = NewTextAnalyzer(&stubCompleter{err: errors.New("down")}).Analyze(context.Background(), content.NewRequest("hi", content.Text, ""))
	assert.InDelta(t, 0.3, res.Confidence, 1e-9)
}

func TestDetectLanguage(t *testing.T) {
	tests := map[string]string{
		"def f(): return 1":                            "python",
		"package main\n\nfunc main() {}":               "go",
		"#include <stdio.h>\nint main() { return 0; }": "cpp",
		"const x = () => 1;":                           "javascript",
		"public class A { private static int x; }":     "java",
		"12345":                                        "unknown",
	}
	for code, want := range tests {
		assert.Equal(t, want, DetectLanguage(code), code)
	}
}

func TestExtractStructure(t *testing.T) {
	s := ExtractStructure("import os\nfrom x import y\n\nclass A:\n    def m(self): pass\ndef f():\n    return 1")
	assert.Equal(t, 7, s.Lines)
	assert.Equal(t, []string{"def m(self): pass", "def f():"}, s.Functions)
	assert.Equal(t, []string{"class A:"}, s.Classes)
	assert.Equal(t, []string{"import os", "from x import y"}, s.Imports)
	assert.Equal(t, Simple, s.Complexity)

	assert.Equal(t, Medium, ExtractStructure(strings.Repeat("x = 1\n", 60)).Complexity)
	assert.Equal(t, Complex, ExtractStructure(strings.Repeat("x = 1\n", 120)).Complexity)

	var funcs strings.Builder
	for i := 0; i < 6; i++ {
		fmt.Fprintf(&funcs, "func f%d() {}\n", i)
	}
	assert.Equal(t, Medium, ExtractStructure(funcs.String()).Complexity)
}

func TestCodeAnalyzerEndToEnd(t *testing.T) {
	gw := &stubCompleter{reply: listReply}
	res := NewCodeAnalyzer(gw).Analyze(context.Background(), content.NewRequest("def f(): return 1", content.Code, ""))

	assert.Equal(t, content.Code, res.Type)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	require.GreaterOrEqual(t, len(res.KeyPoints), 2)
	assert.Equal(t, "Language: python", res.KeyPoints[0])
	assert.Equal(t, "Lines: 1, complexity: simple", res.KeyPoints[1])
	assert.Equal(t, "python", res.Metadata["language"])

	structure := res.Metadata["structure"].(CodeStructure)
	assert.Equal(t, 1, structure.Lines)
	assert.Len(t, structure.Functions, 1)
	assert.Equal(t, Simple, structure.Complexity)
	assert.Contains(t, gw.prompts[0], "Analyze the following python code")
}

func TestCodeAnalyzerDeclaredLanguageAndFailure(t *testing.T) {
	gw := &stubCompleter{err: errors.New("quota exceeded")}
	res := NewCodeAnalyzer(gw).Analyze(context.Background(), content.NewRequest("def f(): return 1", content.Code, "Ruby"))

	assert.InDelta(t, 0.4, res.Confidence, 1e-9)
	assert.Equal(t, "Language: ruby", res.KeyPoints[0])
	assert.Contains(t, res.Analysis, "Code analysis failed")

	res = NewCodeAnalyzer(&stubCompleter{reply: "ok"}).Analyze(context.Background(), content.NewRequest("package main", content.Code, "Unknown"))
	assert.Equal(t, "Language: go", res.KeyPoints[0])
}

func TestCodeAnalyzerCapsKeyPoints(t *testing.T) {
	var reply strings.Builder
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&reply, "- improvement suggestion number %d\n", i)
	}
	res := NewCodeAnalyzer(&stubCompleter{reply: reply.String()}).Analyze(context.Background(), content.NewRequest("x", content.Code, "go"))
	assert.Len(t, res.KeyPoints, llm.MaxKeyPoints)
}

func TestImageAnalyzerURL(t *testing.T) {
	tests := []struct {
		name       string
		download   error
		vision     error
		confidence float64
		sentData   bool
	}{
		{"success", nil, nil, 0.7, true},
		{"download failed, vision ok", errors.New("404"), nil, 0.7, false},
		{"vision failed after download", nil, errors.New("vision down"), 0.3, true},
		{"nothing worked", errors.New("404"), errors.New("vision down"), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vision := &stubDescriber{reply: "- A cat sitting on a laptop keyboard", err: tt.vision}
			images := &stubImages{data: []byte("png-bytes"), err: tt.download}
			res := NewImageAnalyzer(vision, images).Analyze(context.Background(),
				content.NewRequest("https://img.example.com/cat.png", content.Image, ""))

			assert.InDelta(t, tt.confidence, res.Confidence, 1e-9)
			require.Len(t, vision.refs, 1)
			assert.Equal(t, tt.sentData, vision.refs[0].HasData())
			assert.Equal(t, "https://img.example.com/cat.png", vision.refs[0].URL)
			assertNarratedFailure(t, res)
		})
	}
}

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 128})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(t.TempDir(), "pic.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestImageAnalyzerLocalFile(t *testing.T) {
	path := writePNG(t, 40, 20)
	vision := &stubDescriber{reply: "- A mostly transparent square image"}

	res := NewImageAnalyzer(vision, &stubImages{}).Analyze(context.Background(), content.NewRequest(path, content.Image, ""))

	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
	info := res.Metadata["image_info"].(ImageInfo)
	assert.Equal(t, ImageInfo{Width: 40, Height: 20, Format: "png", Mode: "RGBA"}, info)
	require.Len(t, vision.refs, 1)
	assert.Equal(t, "image/jpeg", vision.refs[0].MIMEType)

	decoded, format, err := image.Decode(bytes.NewReader(vision.refs[0].Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 40, decoded.Bounds().Dx())
}

func TestImageAnalyzerLocalFileFailures(t *testing.T) {
	path := writePNG(t, 8, 8)
	res := NewImageAnalyzer(&stubDescriber{err: errors.New("no vision")}, &stubImages{}).
		Analyze(context.Background(), content.NewRequest(path, content.Image, ""))
	assert.Zero(t, res.Confidence)
	assert.Contains(t, res.Analysis, "8x8, format png, mode RGBA")
	assert.Equal(t, []string{"Image information: 8x8, format png, mode RGBA"}, res.KeyPoints)
	assertNarratedFailure(t, res)

	res = NewImageAnalyzer(&stubDescriber{}, &stubImages{}).
		Analyze(context.Background(), content.NewRequest(filepath.Join(t.TempDir(), "missing.png"), content.Image, ""))
	assert.Zero(t, res.Confidence)
	assertNarratedFailure(t, res)
}

func TestNormalizeScalesLargeImages(t *testing.T) {
	img := normalize(image.NewGray(image.Rect(0, 0, 4096, 1024)))
	assert.Equal(t, 2048, img.Bounds().Dx())
	assert.Equal(t, 512, img.Bounds().Dy())
}

func TestColorMode(t *testing.T) {
	assert.Equal(t, "L", colorMode(color.GrayModel))
	assert.Equal(t, "RGB", colorMode(color.YCbCrModel))
	assert.Equal(t, "P", colorMode(color.Palette{color.Black, color.White}))
}
