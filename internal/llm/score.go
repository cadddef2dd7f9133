package llm

import (
	"regexp"
	"strconv"
)

// Score extraction patterns, tried in order. Responses are asked to end
// with "Score: N/100" but reviewers phrase it loosely.
var scorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:score|rating):\s*(\d{1,3})`),
	regexp.MustCompile(`(\d{1,3})\s*/\s*100`),
	regexp.MustCompile(`(?i)(?:give|assign)\s+(?:it\s+)?(?:a\s+)?(\d{1,3})`),
}

// ExtractScore pulls a numeric 0-100 score out of a response, returning
// fallback when no pattern matches or the match is out of range.
func ExtractScore(response string, fallback int) int {
	for _, pattern := range scorePatterns {
		match := pattern.FindStringSubmatch(response)
		if match == nil {
			continue
		}
		score, err := strconv.Atoi(match[1])
		if err == nil && score >= 0 && score <= 100 {
			return score
		}
	}
	return fallback
}
