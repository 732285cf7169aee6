package knowledge

import "regexp"

// codePathRe matches tokens that look like source file references, e.g.
// "payment_processor.py", "internal/api/server.go" or "src/utils.ts".
var codePathRe = regexp.MustCompile(`[\w\-./]+\.(?:go|py|js|jsx|ts|tsx|java|rb|rs|c|cc|cpp|h|hpp|cs|php|swift|kt|scala|sql|sh|yaml|yml|toml|json|proto)\b`)

// ExtractCodePaths returns the unique code file paths found in text, in
// first-occurrence order.
func ExtractCodePaths(text string) []string {
	matches := codePathRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		paths = append(paths, m)
	}
	return paths
}
