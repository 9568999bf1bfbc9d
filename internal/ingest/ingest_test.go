package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
	"github.com/TobiSchelling/AIAnalyzer/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Discard()
	m.Run()
}

func TestParseRequestsArray(t *testing.T) {
	in, err := ParseRequests([]byte(`[
		{"content": "https://example.com", "content_type": "url", "context": "homepage"},
		{"content": "def f(): return 1", "content_type": "CODE"}
	]`))
	require.NoError(t, err)
	require.Len(t, in.Requests, 2)
	assert.Equal(t, content.URL, in.Requests[0].Type)
	assert.Equal(t, "homepage", in.Requests[0].Context)
	assert.Equal(t, content.Code, in.Requests[1].Type)
	assert.Nil(t, in.Forum)
}

func TestParseRequestsWithForum(t *testing.T) {
	in, err := ParseRequests([]byte(`{
		"requests": [{"content": "hello", "content_type": "text"}],
		"forum_data": {
			"url": "https://forum.example.com/t/1",
			"timestamp": "2026-10-15T10:00:00Z",
			"topicTitle": "Release notes",
			"totalPosts": 1,
			"posts": [{"postId": "1", "username": "bob", "time": "now", "content": {"text": "hi", "images": [], "links": []}}]
		}
	}`))
	require.NoError(t, err)
	require.Len(t, in.Requests, 1)
	require.NotNil(t, in.Forum)
	assert.Equal(t, "Release notes", in.Forum.TopicTitle)
}

func TestParseRequestsErrors(t *testing.T) {
	cases := map[string]string{
		"empty":        ``,
		"no requests":  `[]`,
		"bad type":     `[{"content": "x", "content_type": "video"}]`,
		"missing type": `[{"content": "x"}]`,
		"blank":        `[{"content": "  ", "content_type": "text"}]`,
		"bad forum":    `{"forum_data": {"url": "x"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRequests([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestLoadRequests(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reqs.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"content": "notes", "content_type": "text"}]`), 0o644))

	in, err := LoadRequests(path)
	require.NoError(t, err)
	assert.Len(t, in.Requests, 1)

	_, err = LoadRequests(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

const rssFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Example</title>
<item><title>First post</title><link>https://example.com/1</link>
<description>&lt;p&gt;Hello &lt;b&gt;world&lt;/b&gt;&lt;/p&gt;</description></item>
<item><title></title><link>https://example.com/untitled</link></item>
<item><title>Old post</title><link>https://example.com/old</link><pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate></item>
<item><title>Third post</title><guid>https://example.com/3</guid></item>
</channel></rss>`

func TestFeedReaderParse(t *testing.T) {
	entries, err := NewFeedReader(0, 30, "").Parse(strings.NewReader(rssFeed), "Example")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "https://example.com/1", entries[0].URL)
	assert.Equal(t, "Hello world", entries[0].Content)
	assert.Equal(t, "https://example.com/3", entries[1].URL)

	all, err := NewFeedReader(0, 0, "").Parse(strings.NewReader(rssFeed), "Example")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	capped, err := NewFeedReader(1, 0, "").Parse(strings.NewReader(rssFeed), "Example")
	require.NoError(t, err)
	assert.Len(t, capped, 1)
}

func TestFeedReaderRead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssFeed))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entries, err := NewFeedReader(0, 0, "test-agent").Read(ctx, srv.URL)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRequests(t *testing.T) {
	reqs := Requests([]FeedEntry{{URL: "https://example.com/1", Title: "First", Source: "Example"}})
	require.Len(t, reqs, 1)
	assert.Equal(t, content.URL, reqs[0].Type)
	assert.Equal(t, "Feed item: First (Example)", reqs[0].Context)
}

func TestExtractSourceName(t *testing.T) {
	assert.Equal(t, "Example", extractSourceName("https://blog.example.com/feed"))
	assert.Equal(t, "Golang", extractSourceName("https://www.golang.org/rss"))
	assert.Equal(t, "not a url", extractSourceName("not a url"))
}
