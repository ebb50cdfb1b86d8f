// Package ratelimit throttles login attempts per client IP and per account.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Buckets keeps one token bucket per key. A fresh key may spend burst
// attempts at once; spent attempts come back at a steady pace, burst per
// period. It is safe for concurrent use.
type Buckets struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	refill  rate.Limit
	burst   int
	now     func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewBuckets starts a background sweep, once per period, that forgets keys
// whose bucket has filled up again. Call Stop to end it.
func NewBuckets(burst int, period time.Duration) *Buckets {
	if burst < 1 {
		burst = 1
	}
	b := &Buckets{
		buckets: make(map[string]*rate.Limiter),
		refill:  rate.Every(period / time.Duration(burst)),
		burst:   burst,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go b.sweepLoop(period)
	return b
}

// Take spends one attempt for key and reports whether one was left.
func (b *Buckets) Take(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	lim, ok := b.buckets[key]
	if !ok {
		lim = rate.NewLimiter(b.refill, b.burst)
		b.buckets[key] = lim
	}
	return lim.AllowN(b.now(), 1)
}

// Left returns how many whole attempts key could make right now.
func (b *Buckets) Left(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	lim, ok := b.buckets[key]
	if !ok {
		return b.burst
	}
	n := int(lim.TokensAt(b.now()))
	if n < 0 {
		return 0
	}
	return n
}

// Forget gives key a full bucket again.
func (b *Buckets) Forget(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.buckets, key)
}

// Stop ends the sweep. Safe to call more than once.
func (b *Buckets) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// sweep drops full buckets; a missing key behaves exactly like a full one.
func (b *Buckets) sweep() {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	for key, lim := range b.buckets {
		if lim.TokensAt(now) >= float64(b.burst) {
			delete(b.buckets, key)
		}
	}
}

func (b *Buckets) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buckets)
}

func (b *Buckets) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.sweep()
		}
	}
}
