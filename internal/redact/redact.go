// Package redact scrubs sensitive information from strings before they are
// logged or returned by the monitor endpoints. Task bodies fail with errors
// that can embed file paths, host names, connection strings, or captured
// panic output; redaction keeps those out of operator-facing surfaces.
package redact

import (
	"regexp"
)

// Constants for redaction placeholders
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
)

// Precompiled regex patterns
var (
	// Connection strings with inline credentials
	connRegex = regexp.MustCompile(`(?i)(postgres|mysql|mongodb|amqp|redis|db|database|connection)://[^@]+@`)

	// Credentials and tokens
	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`)
	apiKeyRegex   = regexp.MustCompile(
		`(?i)(api[_-]?key|token|secret|key|access|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`,
	)

	// File paths
	unixPathRegex = regexp.MustCompile(`(/[\w.-]+){2,}`)
	winPathRegex  = regexp.MustCompile(`[A-Za-z]:\\[^\\]+(\\[^\\]+)+`)

	// Captured panic output carried inside task errors
	stackTraceRegex = regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`)

	// Host:port endpoints
	hostPortRegex = regexp.MustCompile(
		`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}(?::\d{1,5})?\b`,
	)

	patterns = []*regexp.Regexp{
		connRegex, passwordRegex, apiKeyRegex,
		unixPathRegex, winPathRegex, stackTraceRegex, hostPortRegex,
	}

	patternPlaceholders = map[*regexp.Regexp]string{
		connRegex:       RedactedCredentialPlaceholder,
		passwordRegex:   RedactedCredentialPlaceholder,
		apiKeyRegex:     RedactedKeyPlaceholder,
		unixPathRegex:   RedactedPathPlaceholder,
		winPathRegex:    RedactedPathPlaceholder,
		stackTraceRegex: "[STACK_TRACE_REDACTED]",
		hostPortRegex:   "[REDACTED_HOST]",
	}
)

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, pattern := range patterns {
		placeholder := RedactionPlaceholder
		if ph, ok := patternPlaceholders[pattern]; ok {
			placeholder = ph
		}
		result = pattern.ReplaceAllString(result, placeholder)
	}

	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
