package recovery

import (
	"regexp"
	"strings"
)

var (
	numberPattern = regexp.MustCompile(`[0-9]+`)
	pathPattern   = regexp.MustCompile(`(?:/[\w.\-]+){2,}`)
	quotePattern  = regexp.MustCompile(`['"` + "`" + `]`)
	spacePattern  = regexp.MustCompile(`\s+`)
)

// NormalizeError implements its failure-cluster key: lowercase, numbers
// to '#', paths to '<path>', quotes stripped, whitespace collapsed,
// truncated to 120 runes.
func NormalizeError(raw string) string {
	s := strings.ToLower(raw)
	s = pathPattern.ReplaceAllString(s, "<path>")
	s = numberPattern.ReplaceAllString(s, "#")
	s = quotePattern.ReplaceAllString(s, "")
	s = spacePattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > 120 {
		s = string(r[:120])
	}
	return s
}
