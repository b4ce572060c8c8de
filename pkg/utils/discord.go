package utils

import (
	"strings"
	"unicode/utf8"
)

// CodeBlock wraps text in a Discord code block
func CodeBlock(text string) string {
	return "```\n" + strings.TrimSuffix(text, "\n") + "\n```"
}

// TruncateString truncates a string to max length and adds ellipsis if
// needed, backing off to a rune boundary so the result stays valid UTF-8
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
