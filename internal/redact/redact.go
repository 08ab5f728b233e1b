// Package redact scrubs credentials from strings before they are logged,
// emitted as events, or returned in error responses. Queue tokens, signing
// keys, model API keys and database passwords all travel through error
// messages produced by HTTP clients and drivers.
package redact

import "regexp"

// Placeholders substituted for redacted values.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
	RedactedTokenPlaceholder      = "[REDACTED_TOKEN]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Rules apply in order.
var rules = []rule{
	{
		// Upstash-Signature values and other compact JWTs.
		pattern:     regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`),
		replacement: RedactedJWTPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b(bearer)\s+[A-Za-z0-9._~+/=-]+`),
		replacement: "${1} " + RedactedTokenPlaceholder,
	},
	{
		// QStash signing keys.
		pattern:     regexp.MustCompile(`\bsig_[A-Za-z0-9]{10,}`),
		replacement: RedactedKeyPlaceholder,
	},
	{
		// Google API keys.
		pattern:     regexp.MustCompile(`\bAIza[0-9A-Za-z_-]{35}`),
		replacement: RedactedKeyPlaceholder,
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b(postgres|postgresql|redis|rediss)://[^@\s/]+@`),
		replacement: "${1}://" + RedactedCredentialPlaceholder + "@",
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b(api[_-]?key|token|secret|password|signing[_-]?key)(\s*[=:]\s*)['"]?[^'"&\s,]{6,}['"]?`),
		replacement: "${1}${2}" + RedactionPlaceholder,
	},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
