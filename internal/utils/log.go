package utils

import "strings"

// TruncateForLog flattens s to a single line and cuts it to limit runes.
// Prompts and model answers are multi-line, log previews are not.
func TruncateForLog(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	line := strings.Join(strings.Fields(s), " ")
	runes := []rune(line)
	if len(runes) <= limit {
		return line
	}
	return string(runes[:limit]) + "..."
}
