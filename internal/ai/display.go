package ai

import "strings"

const ellipsis = "..."

// FitDisplay collapses text onto a single line and, when width is positive,
// truncates it to at most width runes ending in "...".
func FitDisplay(text string, width int) string {
	line := strings.Join(strings.Fields(text), " ")
	if width <= 0 {
		return line
	}

	runes := []rune(line)
	if len(runes) <= width {
		return line
	}
	if width <= len(ellipsis) {
		return string(runes[:width])
	}
	return strings.TrimRight(string(runes[:width-len(ellipsis)]), " ") + ellipsis
}
