// Package sanitize normalizes user supplied strings before they reach domain
// services or log lines.
package sanitize

import (
	"regexp"
	"strings"
)

var newlinePattern = regexp.MustCompile(`[\r\n]+`)

// Symbol upper-cases and trims a token ticker.
func Symbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func Email(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// LogString flattens newlines so chat input cannot forge log lines.
func LogString(s string) string {
	return newlinePattern.ReplaceAllString(s, " ")
}

// LogStrings applies LogString to every element.
func LogStrings(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = LogString(v)
	}
	return out
}
