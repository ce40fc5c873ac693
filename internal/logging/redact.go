package logging

import (
	"regexp"
	"strings"
)

// Placeholder replaces redacted secrets.
const Placeholder = "[REDACTED]"

var (
	authorizationPattern = regexp.MustCompile(
		`(?i)((?:"|')?authorization(?:"|')?\s*(?:=|:)\s*)((?:bearer|token)\s+)([^"'\s,;]+)`,
	)
	sensitiveKeyValuePattern = regexp.MustCompile(
		`(?i)((?:"|')?(?:api[_-]?key|access[_-]?token|refresh[_-]?token|secret|password|cookie|credential)(?:"|')?\s*(?:=|:)\s*)((?:"|')?)([^"'\s,;]+)((?:"|')?)`,
	)
	bearerTokenPattern      = regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9\-\._~+/]+=*)`)
	standaloneSecretPattern = regexp.MustCompile(
		`(?i)(sk-[A-Za-z0-9\-_]{16,}|ghp_[A-Za-z0-9]{16,}|xox[a-z]-[A-Za-z0-9\-]{10,})`,
	)

	nonSensitiveKeys = map[string]struct{}{
		"max_tokens":        {},
		"max_output_tokens": {},
		"tokens":            {},
	}
	sensitiveKeyFragments = []string{"api_key", "apikey", "secret", "password", "token", "credential", "authorization"}
)

// Redact masks credentials that commonly leak into log lines.
func Redact(line string) string {
	sanitized := authorizationPattern.ReplaceAllString(line, "${1}${2}"+Placeholder)

	sanitized = sensitiveKeyValuePattern.ReplaceAllString(sanitized, "${1}${2}"+Placeholder+"${4}")

	sanitized = bearerTokenPattern.ReplaceAllString(sanitized, "${1}"+Placeholder)
	return standaloneSecretPattern.ReplaceAllString(sanitized, Placeholder)
}

// IsSensitiveKey reports whether a config key likely names a secret.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	if lower == "" {
		return false
	}
	if _, ok := nonSensitiveKeys[lower]; ok {
		return false
	}
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
