package ingest

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
	"github.com/TobiSchelling/AIAnalyzer/internal/logger"
)

// DefaultMaxItems caps how many entries are taken from one feed.
const DefaultMaxItems = 10

// FeedEntry is one usable feed item.
type FeedEntry struct {
	URL           string
	Title         string
	PublishedDate string // YYYY-MM-DD or empty
	Content       string
	Source        string
}

// FeedReader reads RSS and Atom feeds.
type FeedReader struct {
	parser   *gofeed.Parser
	maxItems int
	daysBack int
}

// NewFeedReader creates a reader. maxItems <= 0 selects DefaultMaxItems;
// daysBack <= 0 disables the age filter.
func NewFeedReader(maxItems, daysBack int, userAgent string) *FeedReader {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	p := gofeed.NewParser()
	if userAgent != "" {
		p.UserAgent = userAgent
	}
	return &FeedReader{parser: p, maxItems: maxItems, daysBack: daysBack}
}

// Read fetches and parses the feed at feedURL.
func (r *FeedReader) Read(ctx context.Context, feedURL string) ([]FeedEntry, error) {
	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", feedURL, err)
	}
	entries := r.entries(feed, extractSourceName(feedURL))
	logger.Log.Infof("Parsed %d entries from %s", len(entries), feedURL)
	return entries, nil
}

// Parse parses a feed document already in hand.
func (r *FeedReader) Parse(body io.Reader, source string) ([]FeedEntry, error) {
	feed, err := r.parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}
	return r.entries(feed, source), nil
}

func (r *FeedReader) entries(feed *gofeed.Feed, source string) []FeedEntry {
	var cutoff time.Time
	if r.daysBack > 0 {
		cutoff = time.Now().AddDate(0, 0, -r.daysBack)
	}

	var entries []FeedEntry
	for _, item := range feed.Items {
		if len(entries) >= r.maxItems {
			break
		}
		entry := parseItem(item, source)
		if entry == nil {
			continue
		}
		if isWithinWindow(entry.PublishedDate, cutoff) {
			entries = append(entries, *entry)
		}
	}
	return entries
}

// Requests turns entries into URL requests whose context carries the title.
func Requests(entries []FeedEntry) []content.Request {
	reqs := make([]content.Request, 0, len(entries))
	for _, e := range entries {
		ctx := "Feed item: " + e.Title
		if e.Source != "" {
			ctx += " (" + e.Source + ")"
		}
		reqs = append(reqs, content.NewRequest(e.URL, content.URL, ctx))
	}
	return reqs
}

func parseItem(item *gofeed.Item, source string) *FeedEntry {
	itemURL := item.Link
	if itemURL == "" {
		itemURL = item.GUID
	}
	if itemURL == "" {
		return nil
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return nil
	}

	var publishedDate string
	if item.PublishedParsed != nil {
		publishedDate = item.PublishedParsed.Format("2006-01-02")
	} else if item.UpdatedParsed != nil {
		publishedDate = item.UpdatedParsed.Format("2006-01-02")
	}

	var text string
	if item.Content != "" {
		text = stripHTML(item.Content)
	} else if item.Description != "" {
		text = stripHTML(item.Description)
	}

	return &FeedEntry{
		URL:           itemURL,
		Title:         title,
		PublishedDate: publishedDate,
		Content:       text,
		Source:        source,
	}
}

func isWithinWindow(publishedDate string, cutoff time.Time) bool {
	if publishedDate == "" || cutoff.IsZero() {
		return true
	}
	pub, err := time.Parse("2006-01-02", publishedDate)
	if err != nil {
		return true
	}
	return !pub.Before(cutoff.Truncate(24 * time.Hour))
}

func stripHTML(text string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return strings.Join(strings.Fields(text), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "blog.", "blogs.", "rss.", "feeds."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		name := parts[len(parts)-2]
		return strings.ToUpper(name[:1]) + name[1:]
	}
	return strings.ToUpper(host[:1]) + host[1:]
}
