package feedsync

import (
	"regexp"
	"strings"
)

var (
	hashtagRe = regexp.MustCompile(`(?i)#([\p{L}\p{N}_]+)`)
	mentionRe = regexp.MustCompile(`(?i)@([a-z0-9_.]+)`)
	urlRe     = regexp.MustCompile(`https?://[^\s<>"']+`)
)

// ExtractHashtags returns the lowercased hashtags found in text,
// without the leading '#', deduplicated in order of first appearance.
func ExtractHashtags(text string) []string {
	return extractUnique(hashtagRe, text, true)
}

// ExtractMentions returns the lowercased handles found in text,
// without the leading '@', deduplicated in order of first appearance.
func ExtractMentions(text string) []string {
	return extractUnique(mentionRe, text, true)
}

// ExtractURLs returns the http(s) URLs found in text, deduplicated in
// order of first appearance. Trailing punctuation is stripped.
func ExtractURLs(text string) []string {
	matches := urlRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimRight(m, ".,;:!?)")
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

func extractUnique(re *regexp.Regexp, text string, lower bool) []string {
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		token := m[1]
		if lower {
			token = strings.ToLower(token)
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}
