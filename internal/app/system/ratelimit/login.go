package ratelimit

import (
	"strings"
	"time"
)

// Reasons returned by LoginLimiter.Check. They are recorded on the
// login_failed_rate_limit audit event.
const (
	ReasonIP      = "too many attempts from this address"
	ReasonAccount = "too many attempts for this account"
)

// LoginLimits sizes a LoginLimiter.
type LoginLimits struct {
	PerIP         int
	IPPeriod      time.Duration
	PerAccount    int
	AccountPeriod time.Duration
}

// DefaultLoginLimits allows 10 attempts a minute from one address and 5
// attempts every five minutes against one account.
var DefaultLoginLimits = LoginLimits{
	PerIP:         10,
	IPPeriod:      time.Minute,
	PerAccount:    5,
	AccountPeriod: 5 * time.Minute,
}

// LoginLimiter throttles logins along two dimensions: the client address,
// which slows a single source trying many accounts, and the account email,
// which slows many sources trying one account.
type LoginLimiter struct {
	byIP      *Buckets
	byAccount *Buckets
}

// NewLoginLimiter builds a limiter; zero fields take DefaultLoginLimits.
func NewLoginLimiter(l LoginLimits) *LoginLimiter {
	d := DefaultLoginLimits
	if l.PerIP <= 0 {
		l.PerIP = d.PerIP
	}
	if l.IPPeriod <= 0 {
		l.IPPeriod = d.IPPeriod
	}
	if l.PerAccount <= 0 {
		l.PerAccount = d.PerAccount
	}
	if l.AccountPeriod <= 0 {
		l.AccountPeriod = d.AccountPeriod
	}
	return &LoginLimiter{
		byIP:      NewBuckets(l.PerIP, l.IPPeriod),
		byAccount: NewBuckets(l.PerAccount, l.AccountPeriod),
	}
}

// Check spends one attempt for ip and email and reports whether the login
// may proceed, with a reason when it may not. An empty ip or email skips
// that dimension. The account is not charged when the address is refused.
func (ll *LoginLimiter) Check(ip, email string) (bool, string) {
	if ip != "" && !ll.byIP.Take(ip) {
		return false, ReasonIP
	}
	if key := accountKey(email); key != "" && !ll.byAccount.Take(key) {
		return false, ReasonAccount
	}
	return true, ""
}

// ResetEmail clears the account's count after a successful login.
func (ll *LoginLimiter) ResetEmail(email string) {
	if key := accountKey(email); key != "" {
		ll.byAccount.Forget(key)
	}
}

// Stop ends both sweeps.
func (ll *LoginLimiter) Stop() {
	ll.byIP.Stop()
	ll.byAccount.Stop()
}

func accountKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
