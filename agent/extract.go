package agent

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	excerptRunes         = 500
	maxKeyPoints         = 5
	noRecommendationsMsg = "No specific recommendations found"
)

var (
	recommendationsRe = regexp.MustCompile(`(?i)recommendations:`)
	listItemRe        = regexp.MustCompile(`^(?:[-*•+]|\d+[.)])\s+(.+)$`)
)

// Excerpt returns the first 500 runes of text, with "..." appended only when
// text was cut.
func Excerpt(text string) string {
	if utf8.RuneCountInString(text) <= excerptRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:excerptRunes]) + "..."
}

// KeyPoints returns up to five bullet or numbered list items from text.
func KeyPoints(text string) []string {
	var points []string
	for _, line := range strings.Split(text, "\n") {
		m := listItemRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		point := strings.TrimSpace(strings.ReplaceAll(m[1], "**", ""))
		if point == "" {
			continue
		}
		points = append(points, point)
		if len(points) == maxKeyPoints {
			break
		}
	}
	return points
}

// Recommendations returns the text after the last "recommendations:"
// marker, matched case-insensitively.
func Recommendations(text string) string {
	matches := recommendationsRe.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return noRecommendationsMsg
	}
	rest := strings.TrimSpace(strings.TrimLeft(text[matches[len(matches)-1][1]:], "*"))
	if rest == "" {
		return noRecommendationsMsg
	}
	return rest
}
