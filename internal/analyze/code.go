package analyze

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/TobiSchelling/AIAnalyzer/internal/content"
	"github.com/TobiSchelling/AIAnalyzer/internal/llm"
	"github.com/TobiSchelling/AIAnalyzer/internal/logger"
)

const codePrompt = `Analyze the following %s code.

Code:
%s

Structure:
- Lines: %d
- Functions: %d
- Classes: %d
- Imports: %d
- Complexity: %s

Provide:
1. What the code does and what it is for
2. An assessment of code quality and design patterns
3. Concrete improvement suggestions, one per line starting with "- "
4. Notable technical points

Answer from a professional engineering perspective.`

const (
	codeExcerptLength = 1000
	unknownLanguage   = "unknown"
)

type languageKeywords struct {
	name     string
	keywords []string
}

// languages is ordered; on equal scores the earlier entry wins.
var languages = []languageKeywords{
	{"python", []string{"def", "class", "import", "from", "if __name__"}},
	{"javascript", []string{"function", "const", "let", "var", "=>"}},
	{"java", []string{"public class", "private", "public", "static"}},
	{"cpp", []string{"#include", "using namespace", "int main"}},
	{"go", []string{"package", "func", "import"}},
	{"rust", []string{"fn", "let", "pub", "use"}},
}

var (
	functionRe = regexp.MustCompile(`^(def|function|func)\s+\w+`)
	classRe    = regexp.MustCompile(`^class\s+\w+`)
)

var importPrefixes = []string{"import", "from", "using", "#include"}

// Complexity labels.
const (
	Simple  = "simple"
	Medium  = "medium"
	Complex = "complex"
)

// CodeStructure is the structural digest of a code blob.
type CodeStructure struct {
	Functions  []string `json:"functions"`
	Classes    []string `json:"classes"`
	Imports    []string `json:"imports"`
	Lines      int      `json:"lines"`
	Complexity string   `json:"complexity"`
}

// DetectLanguage scores each known language by how many of its keywords occur
// in the lower-cased code and returns the best one, or "unknown" when nothing
// matched.
func DetectLanguage(code string) string {
	lower := strings.ToLower(code)
	best, bestScore := unknownLanguage, 0
	for _, lang := range languages {
		score := 0
		for _, kw := range lang.keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = lang.name, score
		}
	}
	return best
}

// ExtractStructure collects signature, class and import lines and rates
// complexity: complex above 100 lines or 10 functions, medium above 50 lines
// or 5 functions.
func ExtractStructure(code string) CodeStructure {
	lines := strings.Split(code, "\n")
	s := CodeStructure{
		Functions: []string{},
		Classes:   []string{},
		Imports:   []string{},
		Lines:     len(lines),
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case functionRe.MatchString(line):
			s.Functions = append(s.Functions, line)
		case classRe.MatchString(line):
			s.Classes = append(s.Classes, line)
		case hasAnyPrefix(line, importPrefixes):
			s.Imports = append(s.Imports, line)
		}
	}

	switch {
	case s.Lines > 100 || len(s.Functions) > 10:
		s.Complexity = Complex
	case s.Lines > 50 || len(s.Functions) > 5:
		s.Complexity = Medium
	default:
		s.Complexity = Simple
	}
	return s
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// CodeAnalyzer analyzes source code. The request context carries the
// declared language.
type CodeAnalyzer struct {
	llm Completer
}

// NewCodeAnalyzer creates a code analyzer.
func NewCodeAnalyzer(gw Completer) *CodeAnalyzer {
	return &CodeAnalyzer{llm: gw}
}

// Analyze implements Analyzer.
func (a *CodeAnalyzer) Analyze(ctx context.Context, req content.Request) content.Result {
	code := req.Content
	language := strings.ToLower(strings.TrimSpace(req.Context))
	if language == "" || language == unknownLanguage {
		language = DetectLanguage(code)
	}
	logger.Log.Infof("Analyzing code (language: %s)", language)

	structure := ExtractStructure(code)
	prompt := fmt.Sprintf(codePrompt, language, content.Truncate(code, codeExcerptLength),
		structure.Lines, len(structure.Functions), len(structure.Classes), len(structure.Imports), structure.Complexity)

	confidence := confCodeOK
	analysis, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		logger.Log.Warnf("Code analysis degraded: %v", err)
		analysis = fmt.Sprintf("Code analysis failed: %v", err)
		confidence = confCodeDegraded
	}

	keyPoints := append([]string{
		"Language: " + language,
		fmt.Sprintf("Lines: %d, complexity: %s", structure.Lines, structure.Complexity),
	}, llm.ExtractKeyPoints(analysis)...)
	if len(keyPoints) > llm.MaxKeyPoints {
		keyPoints = keyPoints[:llm.MaxKeyPoints]
	}

	res := newResult(content.Code, content.Truncate(code, 200), analysis, keyPoints, confidence)
	res.Metadata = map[string]any{
		"language":  language,
		"structure": structure,
	}
	return res
}
