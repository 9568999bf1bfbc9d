package forum

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
)

// ErrInvalidForumData is returned when input matches none of the known shapes.
var ErrInvalidForumData = errors.New("invalid forum data")

var requiredFields = []string{"url", "timestamp", "topicTitle", "totalPosts", "posts"}

var requiredPostFields = []string{"postId", "username", "time", "content"}

// exportDoc is the "meta + data" export format: top-level posts with nested replies.
type exportDoc struct {
	Meta struct {
		ExportedAt string `json:"exported_at"`
	} `json:"meta"`
	Data []exportPost `json:"data"`
}

type exportPost struct {
	URL       string        `json:"url"`
	Title     string        `json:"title"`
	Author    string        `json:"author"`
	Timestamp string        `json:"timestamp"`
	Content   string        `json:"content"`
	Replies   []exportReply `json:"replies"`
}

type exportReply struct {
	Author    string `json:"author"`
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
}

// Parse converts any supported forum JSON document into ForumData. Accepted
// shapes: the canonical thread object, {"forum_data": <thread>}, and the
// {"meta", "data"} export format.
func Parse(data []byte) (*content.ForumData, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidForumData, err)
	}

	if inner, ok := probe["forum_data"]; ok {
		return Parse(inner)
	}

	if _, hasMeta := probe["meta"]; hasMeta {
		if _, hasData := probe["data"]; hasData {
			var doc exportDoc
			if err := json.Unmarshal(data, &doc); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidForumData, err)
			}
			return fromExport(doc), nil
		}
	}

	if err := validate(probe); err != nil {
		return nil, err
	}

	var fd content.ForumData
	if err := json.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidForumData, err)
	}
	return &fd, nil
}

// LoadFile reads and parses a forum JSON file.
func LoadFile(path string) (*content.ForumData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading forum file: %w", err)
	}
	return Parse(data)
}

func validate(doc map[string]json.RawMessage) error {
	for _, f := range requiredFields {
		if _, ok := doc[f]; !ok {
			return fmt.Errorf("%w: missing field %q", ErrInvalidForumData, f)
		}
	}

	var posts []map[string]json.RawMessage
	if err := json.Unmarshal(doc["posts"], &posts); err != nil {
		return fmt.Errorf("%w: posts must be a list of objects", ErrInvalidForumData)
	}
	for i, p := range posts {
		for _, f := range requiredPostFields {
			if _, ok := p[f]; !ok {
				return fmt.Errorf("%w: post %d missing field %q", ErrInvalidForumData, i+1, f)
			}
		}
	}
	return nil
}

func fromExport(doc exportDoc) *content.ForumData {
	fd := &content.ForumData{Timestamp: doc.Meta.ExportedAt}
	if len(doc.Data) > 0 {
		fd.URL = doc.Data[0].URL
		fd.TopicTitle = doc.Data[0].Title
	}

	next := 1
	add := func(author, ts, text string) {
		fd.Posts = append(fd.Posts, content.Post{
			PostID:   fmt.Sprintf("post_%d", next),
			Username: author,
			Time:     ts,
			Content:  content.PostContent{Text: text, Images: []string{}, Links: []content.LinkRef{}},
		})
		next++
	}

	for _, p := range doc.Data {
		add(p.Author, p.Timestamp, p.Content)
		for _, r := range p.Replies {
			add(r.Author, r.Timestamp, r.Content)
		}
	}
	fd.TotalPosts = len(fd.Posts)
	return fd
}
