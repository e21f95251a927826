// Package normalizer turns raw forum post titles into searchable product
// titles and extracts the poster-reported price embedded in them.
package normalizer

import (
	"regexp"
	"strconv"
	"strings"
)

// NoPrice is returned when no price pattern matches the title.
const NoPrice = 999999

// Ordered by digit length so a 6-digit price wins over a 4-digit fragment of
// a model number or date. The greedy prefix makes each pattern capture the
// last qualifying run in the title. Do not reorder.
var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`[\S\s]*([0-9]{6}원)`),
	regexp.MustCompile(`[\S\s]*([0-9]{5}원)`),
	regexp.MustCompile(`[\S\s]*([0-9]{4}원)`),
	regexp.MustCompile(`[\S\s]*([0-9]{6})`),
	regexp.MustCompile(`[\S\s]*([0-9]{5})`),
	regexp.MustCompile(`[\S\s]*([0-9]{4})`),
}

// CleanTitle strips the forum bracket-prefix tag and punctuation noise from a
// raw post title. The tag convention puts the deal source before the first
// ')' or ']'; everything up to and including that delimiter is dropped. When
// no delimiter exists the title is returned trimmed, unchanged otherwise.
func CleanTitle(raw string) string {
	title := raw

	cut := -1
	if i := strings.IndexByte(title, ')'); i >= 0 {
		cut = i
	}
	if i := strings.IndexByte(title, ']'); i >= 0 && (cut < 0 || i < cut) {
		cut = i
	}
	if cut >= 0 {
		title = title[cut+1:]
	}

	title = strings.ReplaceAll(title, ",", "")
	title = strings.ReplaceAll(title, ".", "")
	title = strings.ReplaceAll(title, "\n", "")

	return strings.TrimSpace(title)
}

// ExtractPrice pulls the poster-reported price out of a cleaned title.
// Patterns are tried in strict order; the first match wins. Titles without a
// recognizable price yield NoPrice. This is a heuristic: a title with several
// numeric runs can produce a wrong value, and callers treat the result as
// advisory.
func ExtractPrice(cleanedTitle string) int {
	for _, pattern := range pricePatterns {
		match := pattern.FindStringSubmatch(cleanedTitle)
		if match == nil {
			continue
		}
		digits := strings.TrimSuffix(match[1], "원")
		price, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		return price
	}
	return NoPrice
}
