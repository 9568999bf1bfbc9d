// Package ingest turns files and feeds into analysis requests.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
	"github.com/TobiSchelling/AIAnalyzer/internal/forum"
)

// ErrNoInput is returned when a request file holds neither requests nor a
// forum thread.
var ErrNoInput = errors.New("no analysis requests in input")

// Input is the content of a request file.
type Input struct {
	Requests []content.Request
	Forum    *content.ForumData
}

type inputFile struct {
	Requests  []content.Request `json:"requests"`
	ForumData json.RawMessage   `json:"forum_data"`
}

// ParseRequests reads either a JSON array of requests or an object with
// "requests" and an optional "forum_data" thread in any supported shape.
func ParseRequests(data []byte) (*Input, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrNoInput
	}

	in := &Input{}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &in.Requests); err != nil {
			return nil, fmt.Errorf("parsing request list: %w", err)
		}
	} else {
		var f inputFile
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return nil, fmt.Errorf("parsing request file: %w", err)
		}
		in.Requests = f.Requests
		if len(f.ForumData) > 0 && string(f.ForumData) != "null" {
			fd, err := forum.Parse(f.ForumData)
			if err != nil {
				return nil, err
			}
			in.Forum = fd
		}
	}

	for i, r := range in.Requests {
		if strings.TrimSpace(r.Content) == "" {
			return nil, fmt.Errorf("request %d: empty content", i+1)
		}
		if r.Type == "" {
			return nil, fmt.Errorf("request %d: missing content_type", i+1)
		}
	}
	if len(in.Requests) == 0 && in.Forum == nil {
		return nil, ErrNoInput
	}
	return in, nil
}

// LoadRequests reads and parses a request file.
func LoadRequests(path string) (*Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseRequests(data)
}
