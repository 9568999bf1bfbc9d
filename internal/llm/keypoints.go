package llm

import (
	"regexp"
	"strings"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
)

const (
	// MaxKeyPoints caps what ExtractKeyPoints returns.
	MaxKeyPoints = 10

	minListPointLen  = 10
	minSentenceLen   = 20
	maxSentencesUsed = 8
)

var (
	numberedRe      = regexp.MustCompile(`^\d+\.`)
	listPrefixRe    = regexp.MustCompile(`^[-•*\d.\s]+`)
	sentenceSplitRe = regexp.MustCompile(`[。！？!?]|\.\s`)
)

// ExtractKeyPoints pulls bullet or numbered items out of an analysis. A JSON
// reply with a "key_points" array is used as is. Without any list items the
// first sentences long enough to carry content are used instead.
func ExtractKeyPoints(analysis string) []string {
	if parsed := ParseJSONResponse(analysis); parsed != nil {
		if raw, ok := parsed["key_points"].([]any); ok {
			var points []string
			for _, v := range raw {
				if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
					points = append(points, strings.TrimSpace(s))
				}
			}
			return capPoints(points)
		}
	}

	var points []string
	for _, line := range strings.Split(analysis, "\n") {
		line = strings.TrimSpace(line)
		if !isListItem(line) {
			continue
		}
		clean := strings.TrimSpace(listPrefixRe.ReplaceAllString(line, ""))
		clean = strings.Trim(clean, "*")
		clean = strings.TrimSpace(clean)
		if content.RuneLen(clean) > minListPointLen {
			points = append(points, clean)
		}
	}

	if len(points) == 0 {
		sentences := sentenceSplitRe.Split(analysis, -1)
		if len(sentences) > maxSentencesUsed {
			sentences = sentences[:maxSentencesUsed]
		}
		for _, s := range sentences {
			s = strings.TrimSpace(s)
			if content.RuneLen(s) > minSentenceLen {
				points = append(points, s)
			}
		}
	}

	return capPoints(points)
}

func isListItem(line string) bool {
	return strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•") ||
		strings.HasPrefix(line, "*") || numberedRe.MatchString(line)
}

func capPoints(points []string) []string {
	if points == nil {
		return []string{}
	}
	if len(points) > MaxKeyPoints {
		points = points[:MaxKeyPoints]
	}
	return points
}
