package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
)

const (
	// DefaultUserAgent is a desktop browser string; many sites refuse bot agents.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	// DefaultTextLimit caps page text handed to the LLM, in runes.
	DefaultTextLimit = 2000

	maxPageBytes  = 5 << 20
	maxImageBytes = 10 << 20
	noTitle       = "no title"
)

// HTTPError is returned for responses with status >= 400.
type HTTPError struct {
	URL  string
	Code int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Page is the extracted, size-capped content of a web page.
type Page struct {
	URL   string
	Title string
	Text  string
}

// String renders the page the way it is embedded in prompts.
func (p *Page) String() string {
	return fmt.Sprintf("Title: %s\n\nContent: %s", p.Title, p.Text)
}

// Fetcher downloads pages and images.
type Fetcher struct {
	client    *http.Client
	userAgent string
	textLimit int
}

// New creates a fetcher. Zero values select the defaults.
func New(timeout time.Duration, userAgent string, textLimit int) *Fetcher {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if textLimit <= 0 {
		textLimit = DefaultTextLimit
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent: userAgent,
		textLimit: textLimit,
	}
}

func (f *Fetcher) get(ctx context.Context, rawURL string, limit int64) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, nil, &HTTPError{URL: rawURL, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, nil, fmt.Errorf("reading body: %w", err)
	}
	return body, resp.Header, nil
}

// FetchPage downloads a page, drops script and style nodes and extracts its
// title and main text. Readability is tried first; pages it cannot handle
// fall back to paragraph, heading, article and main elements.
func (f *Fetcher) FetchPage(ctx context.Context, rawURL string) (*Page, error) {
	body, _, err := f.get(ctx, rawURL, maxPageBytes)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	title := collapseSpace(doc.Find("title").First().Text())
	if title == "" {
		title = noTitle
	}

	text := ""
	if parsedURL, perr := url.Parse(rawURL); perr == nil {
		if article, rerr := readability.FromReader(bytes.NewReader(body), parsedURL); rerr == nil {
			text = collapseSpace(article.TextContent)
		}
	}
	if content.RuneLen(text) <= 100 {
		text = visibleText(doc)
	}

	return &Page{
		URL:   rawURL,
		Title: title,
		Text:  content.Truncate(text, f.textLimit),
	}, nil
}

func visibleText(doc *goquery.Document) string {
	var parts []string
	doc.Find("p, h1, h2, h3, article, main").Each(func(_ int, s *goquery.Selection) {
		// article and main usually wrap the paragraphs already collected
		if goquery.NodeName(s) == "article" || goquery.NodeName(s) == "main" {
			if s.Find("p, h1, h2, h3").Length() > 0 {
				return
			}
		}
		if t := collapseSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n")
}

func collapseSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// FetchImage downloads an image and returns its bytes and MIME type.
func (f *Fetcher) FetchImage(ctx context.Context, rawURL string) ([]byte, string, error) {
	data, header, err := f.get(ctx, rawURL, maxImageBytes)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("GET %s: empty body", rawURL)
	}

	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		declared := strings.TrimSpace(strings.SplitN(header.Get("Content-Type"), ";", 2)[0])
		if !strings.HasPrefix(declared, "image/") {
			return nil, "", fmt.Errorf("GET %s: not an image (%s)", rawURL, mime)
		}
		mime = declared
	}
	return data, mime, nil
}
