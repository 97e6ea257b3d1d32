// Package extract shapes raw completion text into assistant results.
package extract

import (
	"strings"

	"devlog/internal/prompt"
)

// introPrefix starts the sentence the model sometimes puts before the tag list.
const introPrefix = "here's"

// Summary returns the completion as the summary. The HTML shape is not checked.
func Summary(raw string) string {
	return strings.TrimSpace(raw)
}

// Tags keeps the completion lines that carry the tag marker, skipping an
// introductory "Here's ..." line, and lowercases them. The result is never nil.
func Tags(raw string) []string {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	tags := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if !isTagLine(line) {
			continue
		}

		tags = append(tags, strings.ToLower(line))
	}

	return tags
}

func isTagLine(line string) bool {
	if !strings.Contains(line, prompt.TagMarker) {
		return false
	}

	return !strings.HasPrefix(strings.ToLower(line), introPrefix)
}
