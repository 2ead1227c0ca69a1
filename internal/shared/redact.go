package shared

import (
	"regexp"
	"strings"
)

// Redacted replaces any secret removed from logs or reports.
const Redacted = "[REDACTED]"

type redactRule struct {
	re   *regexp.Regexp
	repl string
}

// Rules keep a leading label (${1}) where one exists so the redacted text
// still says what was there.
var redactRules = []redactRule{
	{regexp.MustCompile(`(?i)(authorization\s*:\s*bearer\s+)\S+`), "${1}" + Redacted},
	{regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9_\-./+=]{16,}`), "${1}" + Redacted},
	{regexp.MustCompile(`(?i)((?:api[_-]?key|secret[_-]?key|auth[_-]?token|token)\s*[:=]\s*"?)[A-Za-z0-9_\-./+=]{16,}`), "${1}" + Redacted},
	{regexp.MustCompile(`pplx-[A-Za-z0-9]{20,}`), Redacted},
}

var secretKeyParts = []string{"api_key", "apikey", "secret", "token", "password", "credential", "authorization", "bearer"}

// Redact masks credentials embedded in free text: bearer headers, key=value
// pairs and Perplexity keys.
func Redact(s string) string {
	if s == "" {
		return s
	}
	for _, r := range redactRules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	return s
}

// IsSecretKey reports whether a field or variable name is credential-bearing.
func IsSecretKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	if lower == "" {
		return false
	}
	for _, part := range secretKeyParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}

// RedactEnvValue returns value, or Redacted when key names a secret.
func RedactEnvValue(key, value string) string {
	if IsSecretKey(key) {
		return Redacted
	}
	return value
}
