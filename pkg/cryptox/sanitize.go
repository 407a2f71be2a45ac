package cryptox

import (
	"html"
	"net/mail"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy = bluemonday.StrictPolicy()

	scriptProtocol = regexp.MustCompile(`(?i)javascript\s*:`)
	eventHandler   = regexp.MustCompile(`(?i)on\w+\s*=`)
	angleBrackets  = strings.NewReplacer("<", "", ">", "")
)

// SanitizeInput strips markup, script protocols and inline event handlers
// from free text. Each pass only removes characters, so repeating passes
// until nothing changes terminates and makes the function idempotent.
func SanitizeInput(input string) string {
	current := strings.TrimSpace(input)
	for {
		next := sanitizePass(current)
		if next == current {
			return current
		}
		current = next
	}
}

func sanitizePass(s string) string {
	s = html.UnescapeString(strictPolicy.Sanitize(s))
	s = scriptProtocol.ReplaceAllString(s, "")
	s = eventHandler.ReplaceAllString(s, "")
	s = angleBrackets.Replace(s)
	return strings.TrimSpace(s)
}

// NormalizeEmail lower-cases and trims an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail reports whether email is a bare address with a dotted domain,
// e.g. "shopper@example.com". Display-name forms are rejected.
func ValidateEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	domain := email[at+1:]
	dot := strings.LastIndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-1
}
