package logger

import "strings"

// sensitiveParams are query parameter names that must never reach a log
// line. Reset tokens travel as ?token= on the verify endpoint; the rest are
// belt-and-braces for anything a client mistakenly puts in a URL.
var sensitiveParams = []string{
	"token",
	"password",
	"secret",
	"auth",
	"api_key",
	"apikey",
	"email",
}

// SanitizeQueryString reports whether a raw query string carries a sensitive
// parameter and should be logged as [REDACTED] wholesale. Matching is
// substring-based on purpose: "reset_token" and "Token" both trip it.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}

	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}

// SanitizedEmail masks an email address for logging: "d***@p***.test".
// Account emails only ever appear in logs in this form.
func SanitizedEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "[invalid-email]"
	}

	masked := func(s string) string {
		if len(s) <= 1 {
			return s
		}
		return s[:1] + strings.Repeat("*", len(s)-1)
	}

	local, domain := email[:at], email[at+1:]
	if dot := strings.LastIndex(domain, "."); dot > 0 {
		return masked(local) + "@" + masked(domain[:dot]) + domain[dot:]
	}
	return masked(local) + "@" + masked(domain)
}
