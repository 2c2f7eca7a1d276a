package helpers

import (
	"regexp"
	"strings"
)

var (
	reasoningBlocks = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<thinking\b[^>]*>.*?</thinking\s*>`),
		regexp.MustCompile(`(?is)<reasoning\b[^>]*>.*?</reasoning\s*>`),
		regexp.MustCompile(`(?is)<think\b[^>]*>.*?</think\s*>`),
	}
	strayReasoningTag = regexp.MustCompile(`(?i)</?\s*(?:thinking|reasoning|think)\b[^>]*>`)
)

// StripReasoning removes <thinking>, <reasoning> and <think> blocks that some
// models emit ahead of their answer, plus any unpaired opening or closing tag
// of those kinds, and trims the result. It is idempotent.
func StripReasoning(text string) string {
	for {
		next := stripReasoningOnce(text)
		if next == text {
			return next
		}
		text = next
	}
}

func stripReasoningOnce(text string) string {
	for _, re := range reasoningBlocks {
		text = re.ReplaceAllString(text, "")
	}
	text = strayReasoningTag.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
