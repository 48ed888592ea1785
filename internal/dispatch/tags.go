package dispatch

import (
	"regexp"
	"strings"
)

// tagLine matches one master-list entry: an optional bullet, a bracketed
// category and a name, then an optional dash-separated note that is dropped.
//
//	- [Lifecycle] Trial Started — applied on trial signup
var tagLine = regexp.MustCompile(`^\s*(?:[-*+]\s*|\d+[.)]\s*)?(\[[^\]\s][^\]]*\]\s*[^—–\n]+?)\s*(?:[—–-]{1,2}\s.*)?$`)

// bracketName is the naming convention "[Category] Name".
var bracketName = regexp.MustCompile(`^\[[^\]\s][^\]]*\] \S.*$`)

// ParseTags extracts tag names from a master list, in order, without exact
// duplicates.
func ParseTags(text string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(text, "\n") {
		m := tagLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		tag := strings.TrimSpace(m[1])
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

// FollowsBracketConvention reports whether a tag is named "[Category] Name".
func FollowsBracketConvention(tag string) bool {
	return bracketName.MatchString(tag)
}
