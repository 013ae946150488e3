package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default login throttle limits
const (
	DefaultMaxFailures = 5
	DefaultWindow      = 15 * time.Minute
)

// RateLimitResult represents the result of a throttle check
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	// ResetAt is when the oldest counted failure leaves the window
	ResetAt    time.Time
	RetryAfter time.Duration
}

// LoginLimiter counts failed logins per (email, client IP) in a sliding
// window. State lives in process memory.
type LoginLimiter struct {
	maxFailures int
	window      time.Duration
	now         func() time.Time
	logger      *zap.Logger

	mu       sync.Mutex
	failures map[string][]time.Time
}

// NewLoginLimiter creates a limiter. Non-positive limits use the defaults.
func NewLoginLimiter(maxFailures int, window time.Duration, logger *zap.Logger) *LoginLimiter {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailures
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &LoginLimiter{
		maxFailures: maxFailures,
		window:      window,
		now:         time.Now,
		logger:      logger,
		failures:    make(map[string][]time.Time),
	}
}

// CheckLimit reports whether another attempt is allowed for the key
func (l *LoginLimiter) CheckLimit(email, clientIP string) RateLimitResult {
	key := buildScopeKey(email, clientIP)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(key, now)
	if len(recent) >= l.maxFailures {
		resetAt := recent[0].Add(l.window)
		return RateLimitResult{
			Allowed:    false,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}
	}

	return RateLimitResult{Allowed: true, Remaining: l.maxFailures - len(recent)}
}

// RecordFailure counts one failed attempt for the key
func (l *LoginLimiter) RecordFailure(email, clientIP string) {
	key := buildScopeKey(email, clientIP)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.failures[key] = append(l.prune(key, now), now)
}

// Reset forgets every failure for the key. Called after a successful login.
func (l *LoginLimiter) Reset(email, clientIP string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.failures, buildScopeKey(email, clientIP))
}

// prune drops failures outside the window and returns what is left. Caller
// holds the lock.
func (l *LoginLimiter) prune(key string, now time.Time) []time.Time {
	times := l.failures[key]
	cutoff := now.Add(-l.window)

	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	times = times[i:]

	if len(times) == 0 {
		delete(l.failures, key)
		return nil
	}
	l.failures[key] = times
	return times
}

// CleanupOldRequests drops keys whose failures have all left the window and
// returns how many were removed
func (l *LoginLimiter) CleanupOldRequests() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key := range l.failures {
		if l.prune(key, now) == nil {
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys
func (l *LoginLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.failures)
}

// StartCleanupWorker periodically drops stale keys until ctx is done
func (l *LoginLimiter) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.logger.Info("started login throttle cleanup worker", zap.Duration("interval", interval))

	for {
		select {
		case <-ticker.C:
			if removed := l.CleanupOldRequests(); removed > 0 {
				l.logger.Debug("cleaned up login throttle keys", zap.Int("removed", removed))
			}
		case <-ctx.Done():
			l.logger.Info("stopping login throttle cleanup worker")
			return
		}
	}
}

// buildScopeKey builds the throttle key for an attempt
func buildScopeKey(email, clientIP string) string {
	return fmt.Sprintf("login:%s:ip:%s", strings.ToLower(strings.TrimSpace(email)), clientIP)
}
