// Package privacy redacts secret-shaped substrings before persistence.
package privacy

import "regexp"

// secretPatterns are the ten recognized secret shapes (spec §4.2, §6).
// Adding a shape is a behavior change to the core's external contract.
var secretPatterns = []*regexp.Regexp{
	// AWS access keys.
	regexp.MustCompile(`(?:AKIA|ABIA|ACCA|ASIA)[0-9A-Z]{16}`),
	// Compact 3-segment web tokens (JWT-shaped).
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
	// Assignment-style api key/secret, value >= 20 chars.
	regexp.MustCompile(`(?i)(?:api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*['"]?[a-zA-Z0-9_\-./+=]{20,}['"]?`),
	// Credential assignments, value >= 8 chars.
	regexp.MustCompile(`(?i)(?:password|passwd|pwd|secret|token|auth[_-]?token|access[_-]?token|bearer)\s*[:=]\s*['"]?[a-zA-Z0-9_\-./+=]{8,}['"]?`),
	// URL userinfo.
	regexp.MustCompile(`https?://[^\s/:@]+:[^\s/@]+@`),
	// PEM private key headers.
	regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`),
	// GitHub tokens.
	regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{16,}`),
	// Slack tokens.
	regexp.MustCompile(`xox[bpoas]-[a-zA-Z0-9-]{10,}`),
	// HTTP bearer header.
	regexp.MustCompile(`(?i)Bearer\s+[a-zA-Z0-9_\-.]{8,}`),
	// Hex-labeled secrets, >= 32 hex chars.
	regexp.MustCompile(`\b[a-fA-F0-9]{32,}\b`),
}

// redactedPlaceholder builds the literal `<prefix≤4 chars>***REDACTED***`
// placeholder for a matched secret.
func redactedPlaceholder(match string) string {
	prefix := match
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	return prefix + "***REDACTED***"
}

// Redact replaces every match of every recognized secret shape with
// `<prefix≤4 chars>***REDACTED***`. Pure, idempotent, never lengthens or
// removes a match, operates on arbitrary Unicode, safe to call twice.
func Redact(text string) string {
	if text == "" {
		return text
	}
	result := text
	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllStringFunc(result, redactedPlaceholder)
	}
	return result
}

// ContainsSecret reports whether text matches any recognized secret shape.
func ContainsSecret(text string) bool {
	if text == "" {
		return false
	}
	for _, pattern := range secretPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}
