package content

import (
	"encoding/json"
	"fmt"
)

// ForumData is one forum thread in canonical form.
type ForumData struct {
	URL        string `json:"url"`
	Timestamp  string `json:"timestamp"`
	TopicTitle string `json:"topicTitle"`
	TotalPosts int    `json:"totalPosts"`
	Posts      []Post `json:"posts"`
}

// Post is a single post in a thread.
type Post struct {
	PostID   string      `json:"postId"`
	Username string      `json:"username"`
	Time     string      `json:"time"`
	Content  PostContent `json:"content"`
}

// PostContent holds the structured body of a post.
type PostContent struct {
	Text   string    `json:"text"`
	Images []string  `json:"images"`
	Links  []LinkRef `json:"links"`
}

// LinkRef is a declared link. Exports carry either {text, href} objects or
// bare URL strings; both decode into a LinkRef.
type LinkRef struct {
	Text string `json:"text,omitempty"`
	Href string `json:"href"`
}

// UnmarshalJSON accepts an object or a plain string.
func (l *LinkRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = LinkRef{Href: s}
		return nil
	}

	type plain LinkRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("link must be a string or {text, href} object: %w", err)
	}
	*l = LinkRef(p)
	return nil
}
