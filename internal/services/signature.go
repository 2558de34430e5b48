package services

import "strings"

// Platform length ceilings for outbound bodies.
const (
	TextMaxLen    = 4096
	CaptionMaxLen = 1024
)

const ellipsis = "..."

// ComposeBody assembles the outbound body from the message text or caption,
// the sender's pseudonym tag, and the engine signature. Suffixes are
// appended with blank-line separators and are never truncated; when the
// whole exceeds maxLen the original body is cut at a rune boundary and
// marked with an ellipsis.
func ComposeBody(body, aliasTag, signature string, maxLen int) string {
	var suffix strings.Builder
	if aliasTag != "" {
		suffix.WriteString("\n\n")
		suffix.WriteString(aliasTag)
	}
	if signature != "" {
		suffix.WriteString("\n\n")
		suffix.WriteString(signature)
	}

	full := body + suffix.String()
	if len([]rune(full)) <= maxLen {
		return full
	}

	budget := maxLen - len([]rune(suffix.String())) - len([]rune(ellipsis))
	if budget < 0 {
		budget = 0
	}
	runes := []rune(body)
	if len(runes) > budget {
		runes = runes[:budget]
	}
	return strings.TrimRight(string(runes), " \t\r\n") + ellipsis + suffix.String()
}
