package forum

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
)

const (
	// DigestLimit caps MainDiscussion. A post is appended only while the digest
	// is still under the limit, so it may overflow by at most one entry.
	DigestLimit = 2000
	// PostExcerptLength caps each post's contribution to the digest.
	PostExcerptLength = 200
)

// ImageExtensions are the file suffixes treated as images.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp"}

var (
	imageURLRe = regexp.MustCompile(`(?i)https?://[^\s)\]]+\.(?:jpg|jpeg|png|gif|webp|bmp)`)
	markdownRe = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)[^)]*\)`)
	linkRe     = regexp.MustCompile(`https?://[^\s)\]]+`)
)

// TopicInfo describes the thread itself.
type TopicInfo struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Timestamp  string `json:"timestamp"`
	TotalPosts int    `json:"total_posts"`
}

// Summary holds the bounded narrative digest and the uncapped extraction sets.
type Summary struct {
	MainDiscussion string   `json:"main_discussion"`
	KeyUsers       []string `json:"key_users"`
	AllLinks       []string `json:"all_links"`
	AllImages      []string `json:"all_images"`
	PostCount      int      `json:"post_count"`
}

// PostDigest is the per-post entry of StructuredContent.
type PostDigest struct {
	Index      int    `json:"index"`
	Username   string `json:"username"`
	Content    string `json:"content"`
	HasMedia   bool   `json:"has_media"`
	HasLinks   bool   `json:"has_links"`
	MediaCount int    `json:"media_count"`
	LinksCount int    `json:"links_count"`
}

// Processed is the read-only result of preprocessing one thread.
type Processed struct {
	Topic             TopicInfo    `json:"topic_info"`
	Summary           Summary      `json:"content_summary"`
	StructuredContent []PostDigest `json:"structured_content"`
}

// orderedSet keeps first-seen order.
type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) {
	v = strings.TrimSpace(v)
	if v == "" {
		return
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

func (s *orderedSet) has(v string) bool {
	_, ok := s.seen[strings.TrimSpace(v)]
	return ok
}

func (s *orderedSet) list() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// IsImageLike reports whether the URL carries an image file extension.
func IsImageLike(u string) bool {
	lower := strings.ToLower(u)
	for _, ext := range ImageExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

// ExtractMedia finds links and images in free text. Image-looking URLs are
// kept out of the link list. Both lists keep first-seen order.
func ExtractMedia(text string) (links, images []string) {
	imgs := newOrderedSet()
	for _, m := range imageURLRe.FindAllString(text, -1) {
		imgs.add(trimURL(m))
	}
	for _, m := range markdownRe.FindAllStringSubmatch(text, -1) {
		imgs.add(trimURL(m[1]))
	}

	ls := newOrderedSet()
	for _, m := range linkRe.FindAllString(text, -1) {
		m = trimURL(m)
		if IsImageLike(m) || imgs.has(m) {
			continue
		}
		ls.add(m)
	}
	return ls.list(), imgs.list()
}

func trimURL(u string) string {
	return strings.TrimRight(u, ".,;:!?\"'>")
}

// Preprocess walks every post once and builds the digest and extraction sets.
// The digest stops growing at DigestLimit runes; users, links and images keep
// accumulating for all posts.
func Preprocess(fd *content.ForumData) *Processed {
	p := &Processed{
		Topic: TopicInfo{
			Title:      fd.TopicTitle,
			URL:        fd.URL,
			Timestamp:  fd.Timestamp,
			TotalPosts: fd.TotalPosts,
		},
		StructuredContent: make([]PostDigest, 0, len(fd.Posts)),
	}

	users := newOrderedSet()
	links := newOrderedSet()
	images := newOrderedSet()
	var digest strings.Builder
	digestLen := 0

	for i, post := range fd.Posts {
		username := post.Username
		if strings.TrimSpace(username) == "" {
			username = "unknown user"
		}
		users.add(username)

		text := post.Content.Text
		extractedLinks, extractedImages := ExtractMedia(text)

		postLinks := newOrderedSet()
		for _, l := range post.Content.Links {
			postLinks.add(l.Href)
		}
		for _, l := range extractedLinks {
			postLinks.add(l)
		}
		postImages := newOrderedSet()
		for _, img := range post.Content.Images {
			postImages.add(img)
		}
		for _, img := range extractedImages {
			postImages.add(img)
		}

		for _, l := range postLinks.items {
			links.add(l)
		}
		for _, img := range postImages.items {
			images.add(img)
		}

		p.StructuredContent = append(p.StructuredContent, PostDigest{
			Index:      i + 1,
			Username:   username,
			Content:    text,
			HasMedia:   len(postImages.items) > 0,
			HasLinks:   len(postLinks.items) > 0,
			MediaCount: len(postImages.items),
			LinksCount: len(postLinks.items),
		})

		if digestLen < DigestLimit {
			entry := fmt.Sprintf("[%s]: %s\n", username, content.Truncate(text, PostExcerptLength))
			digest.WriteString(entry)
			digestLen += content.RuneLen(entry)
		}
	}

	p.Summary = Summary{
		MainDiscussion: digest.String(),
		KeyUsers:       users.list(),
		AllLinks:       links.list(),
		AllImages:      images.list(),
		PostCount:      len(fd.Posts),
	}
	return p
}
