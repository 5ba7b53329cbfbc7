package logging

import (
	"regexp"
	"strings"
)

// Mask replaces sensitive values in structured data.
const Mask = "********"

type maskPattern struct {
	re          *regexp.Regexp
	replacement string
}

var patterns = []maskPattern{
	{regexp.MustCompile(`(?i)password['"=:]\s*[^\s,;]+`), "password=*****"},
	{regexp.MustCompile(`(?i)api[_-]?key['"=:]\s*[^\s,;]+`), "api_key=*****"},
	{regexp.MustCompile(`(?i)token['"=:]\s*[^\s,;]+`), "token=*****"},
	{regexp.MustCompile(`(?i)identifier['"=:]\s*[^\s,;]+`), "identifier=*****"},
	{regexp.MustCompile(`(?i)email['"=:]\s*[^\s,;@]+@[^\s,;]+`), "email=*****"},
	{regexp.MustCompile(`(?i)host['"=:]\s*[^\s,;]+`), "host=*****"},
	{regexp.MustCompile(`(?i)path['"=:]\s*[^\s,;]+`), "path=*****"},
}

// sensitiveKeys are matched as substrings of lower-cased map keys.
var sensitiveKeys = []string{
	"password", "api_key", "apikey", "token", "session",
	"security", "cst", "identifier", "email",
}

// Sanitize masks credential-bearing fragments in a free-form message.
func Sanitize(msg string) string {
	for _, p := range patterns {
		msg = p.re.ReplaceAllString(msg, p.replacement)
	}
	return msg
}

// SanitizeMap returns a copy of data with sensitive keys masked.
// Nested maps are sanitized recursively; the input is not modified.
func SanitizeMap(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if isSensitiveKey(k) {
			out[k] = Mask
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = SanitizeMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
