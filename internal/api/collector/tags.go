package collector

import (
	"regexp"
	"strings"
)

const (
	// TagHeader carries comma separated tags for a trace batch
	TagHeader = "X-Tag-X"

	maxTags      = 10
	maxTagLength = 64
)

var tagDisallowed = regexp.MustCompile(`[^a-zA-Z0-9_\-./\s]`)

// ParseTags splits, sanitizes and de-duplicates tag header values.
// Duplicates are compared case-insensitively and the first spelling wins.
func ParseTags(values []string) []string {
	tags := make([]string, 0, maxTags)
	seen := make(map[string]struct{})

	for _, value := range values {
		for _, raw := range strings.Split(value, ",") {
			tag := strings.TrimSpace(tagDisallowed.ReplaceAllString(strings.TrimSpace(raw), ""))
			if tag == "" {
				continue
			}
			if len(tag) > maxTagLength {
				tag = tag[:maxTagLength]
			}

			key := strings.ToLower(tag)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			tags = append(tags, tag)
			if len(tags) == maxTags {
				return tags
			}
		}
	}
	return tags
}
