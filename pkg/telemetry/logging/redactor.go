package logging

import (
	"regexp"
	"strings"

	"mercator-hq/playback/pkg/config"
)

// Redactor masks credentials in header maps and free-form strings.
type Redactor struct {
	patterns map[string]*redactPattern
	headers  []string
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternAPIKey      = "api_key"
	PatternBearerToken = "bearer_token"
	PatternBasicAuth   = "basic_auth"
	PatternPassword    = "password"
)

// sensitiveHeaders are matched as substrings of lower-cased header names.
var sensitiveHeaders = []string{
	"authorization",
	"cookie",
	"api-key", "apikey", "api_key",
	"token",
	"secret",
	"session",
	"password",
}

// NewRedactor creates a Redactor with the built-in patterns plus
// customPatterns. Invalid custom patterns are skipped.
func NewRedactor(customPatterns []config.RedactPattern) *Redactor {
	r := &Redactor{
		patterns: make(map[string]*redactPattern),
		headers:  sensitiveHeaders,
	}

	r.addDefaultPatterns()

	for _, p := range customPatterns {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		r.patterns[p.Name] = &redactPattern{
			name:        p.Name,
			regex:       regex,
			replacement: p.Replacement,
		}
	}

	return r
}

func (r *Redactor) addDefaultPatterns() {
	patterns := map[string]struct {
		regex       string
		replacement string
	}{
		PatternAPIKey: {
			regex:       `(sk-[a-zA-Z0-9]+|api[-_]?key[-_:=]\s*[a-zA-Z0-9]+)`,
			replacement: "sk-***",
		},
		PatternBearerToken: {
			regex:       `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`,
			replacement: "Bearer ***",
		},
		PatternBasicAuth: {
			regex:       `Basic\s+[a-zA-Z0-9+/]+=*`,
			replacement: "Basic ***",
		},
		PatternPassword: {
			regex:       `(password|passwd|pwd)[:=]\s*[^\s&]+`,
			replacement: "$1=***",
		},
	}

	for name, p := range patterns {
		r.patterns[name] = &redactPattern{
			name:        name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		}
	}
}

// RedactString masks credential-looking substrings of value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}

	redacted := value
	for _, pattern := range r.patterns {
		redacted = pattern.regex.ReplaceAllString(redacted, pattern.replacement)
	}
	return redacted
}

// RedactHeaders returns a copy of headers with sensitive values masked. The
// input map is not modified.
func (r *Redactor) RedactHeaders(headers map[string]string) map[string]string {
	if headers == nil {
		return nil
	}
	out := make(map[string]string, len(headers))
	for name, value := range headers {
		if r.isSensitiveHeader(name) {
			out[name] = redactValue(value)
			continue
		}
		out[name] = r.RedactString(value)
	}
	return out
}

func (r *Redactor) isSensitiveHeader(name string) bool {
	lower := strings.ToLower(name)
	for _, sensitive := range r.headers {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}

// redactValue keeps a short prefix of longer values for debugging.
func redactValue(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return "***"
	}
	return v[:4] + "***"
}
