package content

import (
	"regexp"
	"strings"
)

var (
	manyNewlines   = regexp.MustCompile(`\n{3,}`)
	runsOfBlanks   = regexp.MustCompile(`[ \t]+`)
	leadingBlanks  = regexp.MustCompile(`(?m)^[ \t]+`)
	cookieNotice   = regexp.MustCompile(`(?i)cookies?\s*(policy|consent|notice)`)
	cookieButtons  = regexp.MustCompile(`(?i)(accept|reject)\s+all\s+cookies?`)
	trailingBlanks = regexp.MustCompile(`(?m)[ \t]+$`)
)

// Clean normalizes extracted text: line endings, blank runs, indentation and
// cookie banner boilerplate.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = cookieNotice.ReplaceAllString(text, "")
	text = cookieButtons.ReplaceAllString(text, "")
	text = runsOfBlanks.ReplaceAllString(text, " ")
	text = leadingBlanks.ReplaceAllString(text, "")
	text = trailingBlanks.ReplaceAllString(text, "")
	text = manyNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
