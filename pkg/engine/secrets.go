package engine

import (
	"regexp"
	"strings"
)

// SecretRule is a named credential pattern.
type SecretRule struct {
	Name    string
	Pattern *regexp.Regexp
}

// SecretRules are the credential patterns shared by the web recon path and
// the in-process pattern analyzer.
var SecretRules = []SecretRule{
	{Name: "aws-access-key", Pattern: regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{Name: "github-token", Pattern: regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`)},
	{Name: "google-api-key", Pattern: regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{35}\b`)},
	{Name: "slack-token", Pattern: regexp.MustCompile(`\bxox[baprs]-[0-9A-Za-z\-]{10,}\b`)},
	{Name: "stripe-secret-key", Pattern: regexp.MustCompile(`\bsk_live_[0-9a-zA-Z]{24,}\b`)},
	{Name: "private-key", Pattern: regexp.MustCompile(`-----BEGIN (?:RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`)},
	{Name: "generic-secret", Pattern: regexp.MustCompile(`(?i)\b(?:api[_-]?key|secret|passwd|password|token)\b\s*[:=]\s*["'][^"'\s]{8,}["']`)},
}

// MatchSecrets scans content and returns one match per rule hit, redacted.
// location names the source of the content.
func MatchSecrets(location, content string) []SecretMatch {
	var out []SecretMatch
	for _, rule := range SecretRules {
		for _, m := range rule.Pattern.FindAllString(content, 5) {
			out = append(out, SecretMatch{
				Rule:     rule.Name,
				Location: location,
				Redacted: Redact(m),
			})
		}
	}
	return out
}

// Redact keeps the first four characters of s and masks the rest.
func Redact(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	n := len(s) - 4
	if n > 12 {
		n = 12
	}
	return s[:4] + strings.Repeat("*", n)
}
