package generation

import "strings"

var preamblePrefixes = []string{
	"đây là đánh giá", "here is the review", "phân tích code",
	"review:", "analysis:", "đây là phân tích", "here is the analysis",
	"giải thích và đề xuất:", "phân tích và đề xuất:",
	"đây là giải thích", "here is the explanation", "giải thích:", "explanation:",
	"```text",
}

// Cleanup removes bracketed progress lines and a leading preamble from review
// or debug text.
func Cleanup(text string) string {
	var cleaned []string
	meaningful := false
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		lower := strings.ToLower(strings.TrimSpace(line))
		if (strings.HasPrefix(lower, "[thinking") || strings.HasPrefix(lower, "[processing")) && strings.HasSuffix(lower, "]") {
			continue
		}
		if !meaningful && hasAnyPrefix(lower, preamblePrefixes) {
			continue
		}
		if strings.TrimSpace(line) != "" {
			meaningful = true
		}
		if meaningful {
			cleaned = append(cleaned, line)
		}
	}
	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

func hasAnyPrefix(text string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}
