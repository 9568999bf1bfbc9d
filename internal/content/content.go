package content

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Type identifies which analyzer handles a request.
type Type string

const (
	Text  Type = "text"
	URL   Type = "url"
	Image Type = "image"
	Code  Type = "code"
	Forum Type = "forum"
)

// Types lists every content type in declaration order.
var Types = []Type{Text, URL, Image, Code, Forum}

// ParseType converts a case-insensitive name into a Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case Text, URL, Image, Code, Forum:
		return t, nil
	}
	return "", fmt.Errorf("unsupported content type: %q", s)
}

// UnmarshalJSON validates the type name.
func (t *Type) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Request is one item to analyze. Context is a free-text hint for URL and text
// content and the declared programming language for code.
type Request struct {
	Content string `json:"content"`
	Type    Type   `json:"content_type"`
	Context string `json:"context,omitempty"`
}

// NewRequest creates a request.
func NewRequest(body string, t Type, context string) Request {
	return Request{Content: body, Type: t, Context: context}
}

// Result is the normalized output of every analyzer. Confidence doubles as the
// error channel: 0 means total failure, ~0.3 degraded, 0.7-0.9 normal.
type Result struct {
	Type            Type           `json:"content_type"`
	OriginalContent string         `json:"original_content"`
	Analysis        string         `json:"analysis"`
	Summary         string         `json:"summary"`
	KeyPoints       []string       `json:"key_points"`
	Confidence      float64        `json:"confidence"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// UsableThreshold is the confidence above which a result counts as usable.
const UsableThreshold = 0.5

// Usable reports whether the result passed the confidence threshold.
func (r Result) Usable() bool {
	return r.Confidence > UsableThreshold
}

// Failed builds a zero-confidence result that narrates why analysis failed.
func Failed(req Request, reason string) Result {
	if strings.TrimSpace(reason) == "" {
		reason = "unknown error"
	}
	return Result{
		Type:            req.Type,
		OriginalContent: Truncate(req.Content, 100),
		Analysis:        fmt.Sprintf("%s analysis failed: %s", req.Type, reason),
		Summary:         "an error occurred during analysis",
		KeyPoints:       []string{},
		Confidence:      0,
	}
}

// LinkAnalysis pairs a link found in a forum thread with its immediate analysis.
type LinkAnalysis struct {
	URL      string `json:"url"`
	Analysis Result `json:"analysis"`
}
