// Package ratelimit throttles per-user chat actions with token buckets.
// The remote script endpoint has no protection of its own, so the gateway
// bounds how fast a single session can hit it.
package ratelimit

import (
	"sync"
	"time"
)

// Actions with dedicated budgets. Anything else falls back to the default
// bucket.
const (
	ActionSendMessage = "send_message"
	ActionTyping      = "typing"
)

type bucket struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate int
	refillTime time.Duration
	lastRefill time.Time
}

func newBucket(maxTokens, refillRate int, refillTime time.Duration) *bucket {
	return &bucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		refillTime: refillTime,
		lastRefill: time.Now(),
	}
}

// allow consumes a token if one is available, otherwise reports how long
// until the next refill.
func (b *bucket) allow() (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill)
	if refills := int(elapsed / b.refillTime); refills > 0 {
		b.tokens += refills * b.refillRate
		if b.tokens > b.maxTokens {
			b.tokens = b.maxTokens
		}
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true, 0
	}
	return false, b.lastRefill.Add(b.refillTime).Sub(now)
}

// Limiter holds one bucket per (user, action) pair.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
}

func NewLimiter() *Limiter {
	return &Limiter{buckets: make(map[string]*bucket)}
}

// Allow reports whether the user may perform the action now, consuming a
// token if so. The returned duration is the wait until the next token when
// the action is denied.
func (l *Limiter) Allow(email, action string) (bool, time.Duration) {
	key := email + ":" + action

	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		if b, ok = l.buckets[key]; !ok {
			switch action {
			case ActionSendMessage:
				// 10 messages per minute
				b = newBucket(10, 1, 6*time.Second)
			case ActionTyping:
				// 30 typing updates per minute
				b = newBucket(30, 1, 2*time.Second)
			default:
				// 20 actions per minute
				b = newBucket(20, 1, 3*time.Second)
			}
			l.buckets[key] = b
		}
		l.mu.Unlock()
	}

	return b.allow()
}

// Cleanup drops buckets idle for over an hour so logged-out users do not
// accumulate forever.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, b := range l.buckets {
		b.mu.Lock()
		idle := now.Sub(b.lastRefill) > time.Hour
		b.mu.Unlock()
		if idle {
			delete(l.buckets, key)
		}
	}
}

// StartCleanup runs Cleanup on a fixed cadence for the process lifetime.
func (l *Limiter) StartCleanup() {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			l.Cleanup()
		}
	}()
}
