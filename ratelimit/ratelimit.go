// Package ratelimit implements the two fixed-window limiters formrelayd
// needs: a submission limiter keyed by (endpoint, peer IP) and a login
// limiter keyed by lowercased email with a separate check/record-failure
// split so successful logins never consume budget.
package ratelimit

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const shardCount = 32

type window struct {
	count       int
	windowStart time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*window
}

func newShards() [shardCount]*shard {
	var shards [shardCount]*shard
	for i := range shards {
		shards[i] = &shard{entries: make(map[string]*window)}
	}
	return shards
}

func shardFor(shards [shardCount]*shard, key string) *shard {
	var h uint32 = 2166136261
	for i := 0; i < len(key); i++ {
		h ^= uint32(key[i])
		h *= 16777619
	}
	return shards[h%shardCount]
}

// SubmissionLimiter enforces a per-(endpoint, IP) submission cap.
type SubmissionLimiter struct {
	shards [shardCount]*shard
	now    func() time.Time
}

// NewSubmissionLimiter returns a ready-to-use submission limiter.
func NewSubmissionLimiter() *SubmissionLimiter {
	return &SubmissionLimiter{shards: newShards(), now: time.Now}
}

// Check applies the fixed-window algorithm for key=(endpointID, ip):
// resetting an expired window and admitting, denying with a retry-after
// when at the ceiling, or admitting and incrementing. Every admitted check
// increments the counter.
func (l *SubmissionLimiter) Check(endpointID, ip string, limit int, windowSecs int) (ok bool, retryAfterSecs int64) {
	key := endpointID + "|" + ip
	s := shardFor(l.shards, key)
	win := time.Duration(windowSecs) * time.Second
	now := l.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if !exists {
		s.entries[key] = &window{count: 1, windowStart: now}
		return true, 0
	}

	elapsed := now.Sub(entry.windowStart)
	if elapsed > win {
		entry.count = 1
		entry.windowStart = now
		return true, 0
	}

	if entry.count >= limit {
		remaining := win - elapsed
		if remaining < 0 {
			remaining = 0
		}
		return false, int64(remaining.Seconds())
	}

	entry.count++
	return true, 0
}

// Sweep removes entries whose window started more than maxAge ago.
func (l *SubmissionLimiter) Sweep(maxAge time.Duration) {
	now := l.now()
	for _, s := range l.shards {
		s.mu.Lock()
		for key, entry := range s.entries {
			if now.Sub(entry.windowStart) > maxAge {
				delete(s.entries, key)
			}
		}
		s.mu.Unlock()
	}
}

const (
	loginLimit  = 5
	loginWindow = 15 * time.Minute
)

// LoginLimiter enforces a fixed 5-failures-per-15-minutes policy per
// lowercased email, with Check separated from RecordFailure so inspecting
// an account's state never itself counts as an attempt.
type LoginLimiter struct {
	shards [shardCount]*shard
	now    func() time.Time
}

// NewLoginLimiter returns a ready-to-use login limiter.
func NewLoginLimiter() *LoginLimiter {
	return &LoginLimiter{shards: newShards(), now: time.Now}
}

// Check reports whether a login attempt for email is allowed. It never
// mutates state; call RecordFailure after a verified bad password.
func (l *LoginLimiter) Check(email string) (ok bool, retryAfterSecs int64) {
	key := strings.ToLower(email)
	s := shardFor(l.shards, key)
	now := l.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if !exists {
		return true, 0
	}

	elapsed := now.Sub(entry.windowStart)
	if elapsed > loginWindow {
		return true, 0
	}

	if entry.count >= loginLimit {
		remaining := loginWindow - elapsed
		if remaining < 0 {
			remaining = 0
		}
		return false, int64(remaining.Seconds())
	}

	return true, 0
}

// RecordFailure increments the failure counter for email after a verified
// bad password, resetting the window if it has expired.
func (l *LoginLimiter) RecordFailure(email string) {
	key := strings.ToLower(email)
	s := shardFor(l.shards, key)
	now := l.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if !exists {
		s.entries[key] = &window{count: 1, windowStart: now}
		return
	}

	if now.Sub(entry.windowStart) > loginWindow {
		entry.count = 1
		entry.windowStart = now
		return
	}

	entry.count++
}

// Sweep removes entries whose window started more than maxAge ago.
func (l *LoginLimiter) Sweep(maxAge time.Duration) {
	now := l.now()
	for _, s := range l.shards {
		s.mu.Lock()
		for key, entry := range s.entries {
			if now.Sub(entry.windowStart) > maxAge {
				delete(s.entries, key)
			}
		}
		s.mu.Unlock()
	}
}

// SubmissionKey formats the (endpointID, ip) pair used by SubmissionLimiter,
// exposed so callers building log fields don't duplicate the separator.
func SubmissionKey(endpointID, ip string) string {
	return fmt.Sprintf("%s|%s", endpointID, ip)
}
