package logger

import "testing"

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"normal email", "jane.doe@example.com", "ja***@example.com"},
		{"two char local part", "jd@example.com", "***@example.com"},
		{"one char local part", "j@example.com", "***@example.com"},
		{"not an email", "not-an-email", "***@***"},
		{"empty", "", "***@***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactEmail(tt.email); got != tt.want {
				t.Errorf("RedactEmail(%q) = %q, want %q", tt.email, got, tt.want)
			}
		})
	}
}

func TestRedactDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"url with credentials", "postgres://user:pw@db.example.com:5432/app", "postgres://***@db.example.com:5432/app"},
		{"url without credentials", "postgres://db.example.com:5432/app", "postgres://db.example.com:5432/app"},
		{"no scheme", "user:pw@localhost:5432", "***@localhost:5432"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactDSN(tt.dsn); got != tt.want {
				t.Errorf("RedactDSN(%q) = %q, want %q", tt.dsn, got, tt.want)
			}
		})
	}
}

func TestRedactValueSecretKeys(t *testing.T) {
	tests := []struct {
		key  string
		val  string
		want string
	}{
		{"smtp_password", "hunter2", "[redacted]"},
		{"remote_descriptor", "postgres://u:p@h/db", "[redacted]"},
		{"target_email", "jane.doe@example.com", "ja***@example.com"},
		{"message", "sent to jane.doe@example.com ok", "sent to ja***@example.com ok"},
		{"count", "42", "42"},
	}

	for _, tt := range tests {
		if got := redactValue(tt.key, tt.val); got != tt.want {
			t.Errorf("redactValue(%q, %q) = %q, want %q", tt.key, tt.val, got, tt.want)
		}
	}
}
