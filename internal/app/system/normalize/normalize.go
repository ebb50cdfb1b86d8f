// Package normalize canonicalizes user-supplied identifiers before they are
// stored or compared.
package normalize

import "strings"

// Email lower-cases and trims an email address. Emails are compared
// case-insensitively everywhere, so every store and policy call goes
// through this first.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace. Case is preserved.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Role upper-cases and trims a role name ("admin" -> "ADMIN").
func Role(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
