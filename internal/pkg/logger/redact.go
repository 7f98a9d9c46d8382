package logger

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// Keys whose values are never worth logging in the clear. Campaign targets
// are real employees and SMTP profiles carry live credentials.
var secretKeys = []string{"password", "secret", "token", "credential", "dsn", "descriptor"}

func redactValue(key, val string) string {
	lower := strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.Contains(lower, s) {
			return "[redacted]"
		}
	}
	if strings.Contains(lower, "email") || strings.Contains(lower, "target") {
		return RedactEmail(val)
	}
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}

// RedactEmail masks an email address for safe logging.
// "jane.doe@example.com" → "ja***@example.com"
// Short local parts (≤2 chars) are fully masked: "jd@example.com" → "***@example.com"
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}

// RedactDSN masks the credential section of a connection string so probe
// failures can name the host without leaking the password.
// "postgres://user:pw@db.example.com:5432/app" → "postgres://***@db.example.com:5432/app"
func RedactDSN(dsn string) string {
	scheme := ""
	rest := dsn
	if i := strings.Index(dsn, "://"); i >= 0 {
		scheme = dsn[:i+3]
		rest = dsn[i+3:]
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return scheme + rest
	}
	return scheme + "***" + rest[at:]
}
