// Package ratelimit enforces a fixed per-user cooldown between accepted events.
package ratelimit

import (
	"strings"
	"sync"
	"time"
)

// Limiter remembers when each user was last allowed through.
// A zero or negative interval disables limiting.
type Limiter struct {
	interval time.Duration
	exclude  map[string]struct{}

	mu       sync.Mutex
	lastSeen map[int64]time.Time
}

// New builds a Limiter. Kinds listed in exclude bypass the cooldown entirely.
func New(interval time.Duration, exclude ...string) *Limiter {
	ex := make(map[string]struct{}, len(exclude))
	for _, k := range exclude {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			ex[k] = struct{}{}
		}
	}
	return &Limiter{
		interval: interval,
		exclude:  ex,
		lastSeen: make(map[int64]time.Time),
	}
}

// Interval reports the configured cooldown.
func (l *Limiter) Interval() time.Duration {
	if l == nil {
		return 0
	}
	return l.interval
}

// Excluded reports whether events of the given kind skip the limiter.
func (l *Limiter) Excluded(kind string) bool {
	if l == nil {
		return true
	}
	_, ok := l.exclude[kind]
	return ok
}

// Allow records now as the user's last accepted event and returns true, unless the
// previous accepted event is closer than the interval; then it returns false and
// leaves the record untouched.
func (l *Limiter) Allow(userID int64, now time.Time) bool {
	if l == nil || l.interval <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.lastSeen[userID]; ok && now.Sub(last) < l.interval {
		return false
	}
	l.lastSeen[userID] = now
	return true
}

// Prune forgets users whose last accepted event is older than before.
func (l *Limiter) Prune(before time.Time) int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for id, ts := range l.lastSeen {
		if ts.Before(before) {
			delete(l.lastSeen, id)
			removed++
		}
	}
	return removed
}
