package common

import (
	"html"
	"regexp"
	"strings"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// CleanHTMLText strips markup tags, decodes HTML entities and collapses
// whitespace runs into single spaces.
func CleanHTMLText(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

type qualityRule struct {
	marker string
	label  string
}

// Rules are ordered: the first marker found in the name wins.
var qualityRules = []qualityRule{
	{"2160p", "4K"},
	{"4k", "4K"},
	{"1080p", "1080p"},
	{"720p", "720p"},
	{"480p", "SD"},
	{"dvdrip", "SD"},
	{"webrip", "WEB"},
	{"webdl", "WEB-DL"},
	{"bluray", "BluRay"},
	{"hdtv", "HDTV"},
}

// ExtractQuality guesses a release quality label from a torrent name.
func ExtractQuality(name string) string {
	lower := strings.ToLower(name)
	for _, r := range qualityRules {
		if strings.Contains(lower, r.marker) {
			return r.label
		}
	}
	return "Unknown"
}
