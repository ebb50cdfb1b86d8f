// Package origins matches browser Origin headers against the configured
// frontend origins.
package origins

import (
	"net/http"
	"net/url"
	"strings"
)

// Wildcard in a configured list allows any origin.
const Wildcard = "*"

// Allowlist is a set of normalized origins ("scheme://host[:port]").
type Allowlist struct {
	any bool
	set map[string]struct{}
}

// New builds an Allowlist. Entries are trimmed, lower-cased and stripped of
// a trailing slash; blank entries are skipped.
func New(list []string) Allowlist {
	a := Allowlist{set: make(map[string]struct{}, len(list))}
	for _, o := range list {
		o = strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/")
		switch o {
		case "":
		case Wildcard:
			a.any = true
		default:
			a.set[o] = struct{}{}
		}
	}
	return a
}

// Empty reports whether nothing was configured.
func (a Allowlist) Empty() bool {
	return !a.any && len(a.set) == 0
}

// Allows reports whether origin is listed or the list holds the wildcard.
func (a Allowlist) Allows(origin string) bool {
	return a.any || a.Lists(origin)
}

// Lists reports whether origin is listed explicitly. The wildcard does not
// count.
func (a Allowlist) Lists(origin string) bool {
	n, ok := Normalize(origin)
	if !ok {
		return false
	}
	_, listed := a.set[n]
	return listed
}

// Normalize returns "scheme://host" for a well-formed origin.
func Normalize(origin string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme + "://" + u.Host), true
}

// SameHost reports whether r's Origin header names the host r was sent to.
func SameHost(r *http.Request) bool {
	u, err := url.Parse(r.Header.Get("Origin"))
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
