// Package ratelimit applies a per-client token bucket to the HTTP API. The
// limiter is in-process: the engine runs as a single instance per deployment
// and its correctness invariants live in the database, so limiting is purely
// load protection.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config sets the bucket parameters.
type Config struct {
	RequestsPerMinute int
	Burst             int
}

// DefaultConfig allows a steady 120 req/min with modest bursts.
func DefaultConfig() Config {
	return Config{RequestsPerMinute: 120, Burst: 30}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter tracks one token bucket per client key.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	cfg     Config

	stopOnce sync.Once
	stop     chan struct{}
}

// New creates a limiter and starts evicting idle clients.
func New(cfg Config) *RateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg = DefaultConfig()
	}
	rl := &RateLimiter{
		clients: make(map[string]*clientLimiter),
		cfg:     cfg,
		stop:    make(chan struct{}),
	}
	go rl.evictIdle()
	return rl
}

// Allow reports whether the client identified by key may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.clients[key]
	if !ok {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(float64(rl.cfg.RequestsPerMinute)/60), rl.cfg.Burst),
		}
		rl.clients[key] = cl
	}
	cl.lastSeen = time.Now()
	return cl.limiter.Allow()
}

// Reset drops one client's bucket.
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.clients, key)
}

// Close stops the eviction loop.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) evictIdle() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-15 * time.Minute)
			rl.mu.Lock()
			for key, cl := range rl.clients {
				if cl.lastSeen.Before(cutoff) {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}
