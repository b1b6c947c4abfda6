// Package privacy keeps secrets out of durable memory. Everything written
// to an observation passes through Clean before it touches disk.
package privacy

import (
	"regexp"
	"strings"
)

// privateTagRegex matches <private>...</private> blocks (non-greedy, dotall).
var privateTagRegex = regexp.MustCompile(`(?s)<private>.*?</private>`)

// secretPatterns match credential shapes that show up in pasted logs and
// config snippets. Matches are replaced wholesale, not partially masked.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-._~+/]{16,}=*`),
	regexp.MustCompile(`\bsk-[A-Za-z0-9\-_]{20,}\b`),
	regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
	regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`),
	regexp.MustCompile(`(?i)(password|passwd|secret|api[_-]?key|token)\s*[=:]\s*\S+`),
	regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`),
}

const redactedMark = "[REDACTED]"

// StripPrivateTags removes all <private>...</private> blocks from content.
func StripPrivateTags(content string) string {
	return strings.TrimSpace(privateTagRegex.ReplaceAllString(content, ""))
}

// RedactSecrets replaces credential-shaped substrings with a marker.
func RedactSecrets(content string) string {
	for _, re := range secretPatterns {
		content = re.ReplaceAllString(content, redactedMark)
	}
	return content
}

// Clean is the full write-path filter: private blocks go first so their
// contents never reach the pattern pass, then secrets are redacted.
func Clean(content string) string {
	return RedactSecrets(StripPrivateTags(content))
}

// OnlyPrivate reports whether nothing useful remains after stripping.
func OnlyPrivate(content string) bool {
	return StripPrivateTags(content) == ""
}
