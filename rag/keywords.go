package rag

import (
	"regexp"
	"strings"
)

const maxKeywords = 10

var identifierRe = regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)

// ExtractKeywords pulls identifier-shaped tokens out of a code snippet:
// function names, variables, field accesses. Duplicates are collapsed in
// first-occurrence order and the result is capped to keep the query from
// drowning in noise.
func ExtractKeywords(snippet string) []string {
	matches := identifierRe.FindAllString(snippet, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	keywords := make([]string, 0, maxKeywords)
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		keywords = append(keywords, m)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

// AugmentQuery appends the extracted keywords to the snippet, biasing the
// semantic search toward code-specific vocabulary. This augmented string is
// the single query handed to the index store.
func AugmentQuery(snippet string) string {
	keywords := ExtractKeywords(snippet)
	return snippet + "\nKeywords: " + strings.Join(keywords, " ")
}
