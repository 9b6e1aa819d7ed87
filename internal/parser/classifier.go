package parser

// MinIndicatorMatches is the number of distinct indicators a message needs
// to be treated as a signal candidate.
const MinIndicatorMatches = 2

// CountIndicators returns how many distinct indicator patterns match text.
func CountIndicators(text string) int {
	n := 0
	for _, re := range indicatorPatterns {
		if re.MatchString(text) {
			n++
		}
	}
	return n
}

// IsCandidate reports whether text looks like a trading signal. It is a
// cheap gate run on the raw text before any extraction.
func IsCandidate(text string) bool {
	if text == "" {
		return false
	}
	return CountIndicators(text) >= MinIndicatorMatches
}
