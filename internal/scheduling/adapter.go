package scheduling

import "strings"

// FitContent trims content to a platform's maximum length, counted in
// characters rather than bytes so multi-byte text is never split mid-rune.
// Content that already fits is returned unchanged with an empty overflow.
// Otherwise the cut lands on the best structural boundary not past the
// limit: a paragraph break after 50% of the limit, a newline after 70%, a
// space after 80%, or a hard cut at the limit. The remainder is returned
// trimmed so the caller can carry it into a follow-up comment instead of
// dropping it.
func FitContent(content string, limit int) (string, string) {
	if limit <= 0 {
		return content, ""
	}
	runes := []rune(content)
	if len(runes) <= limit {
		return content, ""
	}

	window := runes[:limit]
	cut := limit

	if i := lastParagraphBreak(window); i > limit*50/100 {
		cut = i
	} else if i := lastRune(window, '\n'); i > limit*70/100 {
		cut = i
	} else if i := lastRune(window, ' '); i > limit*80/100 {
		cut = i
	}

	body := strings.TrimRight(string(runes[:cut]), " \n")
	overflow := strings.TrimSpace(string(runes[cut:]))
	return body, overflow
}

// AdaptForPlatform applies FitContent and, when the trim produced overflow,
// appends it as a trailing comment.
func AdaptForPlatform(content string, comments []string, limit int) (string, []string) {
	body, overflow := FitContent(content, limit)
	if overflow != "" {
		comments = append(comments, overflow)
	}
	return body, comments
}

func lastRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

// lastParagraphBreak returns the position of the first newline of the last
// "\n\n" pair, mirroring what a byte-wise LastIndex would report.
func lastParagraphBreak(runes []rune) int {
	for i := len(runes) - 1; i > 0; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i - 1
		}
	}
	return -1
}
