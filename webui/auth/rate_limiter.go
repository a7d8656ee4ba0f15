package auth

import (
	"sync"
	"time"
)

type attempts struct {
	count        int
	windowStart  time.Time
	blockedUntil time.Time
}

// RateLimiter blocks a client after too many failed attempts within a
// window.
type RateLimiter struct {
	mu          sync.Mutex
	clients     map[string]attempts
	maxAttempts int
	window      time.Duration
	block       time.Duration
	now         func() time.Time
}

func NewRateLimiter(maxAttempts int, window, block time.Duration) *RateLimiter {
	return &RateLimiter{
		clients:     make(map[string]attempts),
		maxAttempts: maxAttempts,
		window:      window,
		block:       block,
		now:         time.Now,
	}
}

// Allow reports whether client may try again and, if not, how long it must
// wait.
func (r *RateLimiter) Allow(client string) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.clients[client]
	if !ok {
		return true, 0
	}
	now := r.now()
	if now.Before(a.blockedUntil) {
		return false, a.blockedUntil.Sub(now)
	}
	return true, 0
}

// Fail records a failed attempt. Reaching the limit blocks the client.
func (r *RateLimiter) Fail(client string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	a := r.clients[client]
	if now.Sub(a.windowStart) > r.window {
		a = attempts{windowStart: now}
	}
	a.count++
	if a.count >= r.maxAttempts {
		a.blockedUntil = now.Add(r.block)
		a.count = 0
		a.windowStart = now
	}
	r.clients[client] = a
}

// Reset forgets client, after a successful attempt.
func (r *RateLimiter) Reset(client string) {
	r.mu.Lock()
	delete(r.clients, client)
	r.mu.Unlock()
}

// Cleanup drops clients that are neither blocked nor inside a window and
// returns how many were removed.
func (r *RateLimiter) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for c, a := range r.clients {
		if now.After(a.blockedUntil) && now.Sub(a.windowStart) > r.window {
			delete(r.clients, c)
			removed++
		}
	}
	return removed
}

func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
