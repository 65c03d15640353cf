package logging

import (
	"net/url"
	"regexp"
	"strings"
)

// RedactedText replaces secrets in keyword DSNs.
const RedactedText = "[REDACTED]"

var (
	// password=..., pwd=... up to the next separator or closing backtick
	passwordPattern = regexp.MustCompile("(?i)\\b(password|pwd)=[^;&\\s`]+")

	// user:pass@ inside a URL embedded in a longer message
	urlCredentialsPattern = regexp.MustCompile(`://([^:/@\s]+):[^@\s]+@`)
)

// SanitizeConnectionString removes the password from a PostgreSQL keyword DSN
// or URL. The user name is kept so logs still show who connected.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	if strings.Contains(connStr, "://") && !strings.ContainsAny(connStr, " \t") {
		if u, err := url.Parse(connStr); err == nil {
			if _, hasPassword := u.User.Password(); hasPassword {
				return u.Redacted()
			}
			return connStr
		}
	}
	return sanitizeText(connStr)
}

// SanitizeError returns the error text with credentials removed.
// pgx connection errors can echo the DSN they failed on.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return sanitizeText(err.Error())
}

func sanitizeText(s string) string {
	s = passwordPattern.ReplaceAllString(s, "${1}="+RedactedText)
	return urlCredentialsPattern.ReplaceAllString(s, "://${1}:"+RedactedText+"@")
}

// TruncateString shortens s to at most maxRunes runes, appending "..." when cut.
func TruncateString(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
