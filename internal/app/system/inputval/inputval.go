// Package inputval holds small validators for user-supplied fields.
package inputval

import (
	"net/mail"
	"strings"
)

// IsValidEmail reports whether s is a bare RFC 5322 address ("a@b.c").
// Display-name forms ("Name <a@b.c>") are rejected, as are addresses with
// leading, trailing or consecutive dots in either part.
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return false
	}
	return dotsOK(s[:at]) && dotsOK(s[at+1:])
}

func dotsOK(part string) bool {
	return !strings.HasPrefix(part, ".") &&
		!strings.HasSuffix(part, ".") &&
		!strings.Contains(part, "..")
}

// IsBlank reports whether s is empty after trimming whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// AnyBlank reports whether any of the given values is blank.
func AnyBlank(values ...string) bool {
	for _, v := range values {
		if IsBlank(v) {
			return true
		}
	}
	return false
}
