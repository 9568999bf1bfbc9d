package content

import "unicode/utf8"

// Truncate cuts s to at most n runes and appends "..." when anything was cut.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

// Head returns at most the first n runes of s without a suffix.
func Head(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// RuneLen counts runes.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// SummaryLength is the rune cap for Result.Summary.
const SummaryLength = 300

// Summarize derives Result.Summary from the full analysis.
func Summarize(analysis string) string {
	return Truncate(analysis, SummaryLength)
}
