package helpers

import (
	"errors"
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

func GetSplitPart(target string, separate string, index int) (string, error) {
	parts := strings.Split(target, separate)
	if index >= len(parts) {
		return "", errors.New("index out of range")
	}
	return parts[index], nil
}

// ExtractURLs returns every http(s) URL found in the text, in order.
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// FirstURL returns the first http(s) URL in the text, or "" if none.
func FirstURL(text string) string {
	urls := ExtractURLs(text)
	if len(urls) == 0 {
		return ""
	}
	return urls[0]
}
