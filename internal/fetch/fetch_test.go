package fetch

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
)

const samplePage = `<html><head><title> Go Release Notes </title>
<script>var tracking = "secret";</script><style>body{color:red}</style></head>
<body><h1>Go 1.25</h1><p>The latest Go release ships with improvements.</p>
<p>Second paragraph.</p></body></html>`

func TestFetchPage(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	f := New(time.Second, "", 0)
	page, err := f.FetchPage(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, DefaultUserAgent, ua)
	assert.Equal(t, "Go Release Notes", page.Title)
	assert.Contains(t, page.Text, "The latest Go release ships with improvements.")
	assert.NotContains(t, page.Text, "secret")
	assert.NotContains(t, page.Text, "color:red")
	assert.True(t, strings.HasPrefix(page.String(), "Title: Go Release Notes\n\nContent: "))
}

func TestFetchPageNoTitleAndTruncation(t *testing.T) {
	body := "<html><body><p>" + strings.Repeat("abc ", 500) + "</p></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	page, err := New(time.Second, "test-agent", 50).FetchPage(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "no title", page.Title)
	assert.Equal(t, 53, content.RuneLen(page.Text))
	assert.True(t, strings.HasSuffix(page.Text, "..."))
}

func TestFetchPageHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(time.Second, "", 0).FetchPage(context.Background(), srv.URL)
	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusNotFound, he.Code)
}

func TestFetchImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))

	mux := http.NewServeMux()
	mux.HandleFunc("/img.png", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(buf.Bytes())
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(time.Second, "", 0)
	data, mime, err := f.FetchImage(context.Background(), srv.URL+"/img.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, buf.Bytes(), data)

	_, _, err = f.FetchImage(context.Background(), srv.URL+"/page")
	assert.Error(t, err)
}
