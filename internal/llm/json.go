package llm

import (
	"encoding/json"
	"strings"

	"github.com/TobiSchelling/AIAnalyzer/internal/logger"
)

// ParseJSONResponse parses a JSON object from an LLM reply, tolerating a
// surrounding markdown code fence. It returns nil when the text is not JSON.
func ParseJSONResponse(text string) map[string]any {
	text = stripFence(strings.TrimSpace(text))
	if text == "" || !strings.HasPrefix(text, "{") {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		logger.Log.Debugf("LLM response is not JSON: %v", err)
		return nil
	}
	return result
}

func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	endIdx := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	if endIdx <= 1 {
		return ""
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}
