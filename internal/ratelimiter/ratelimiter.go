package ratelimiter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultInterval = 2 * time.Second
	defaultMaxWait  = 10 * time.Second
)

// ErrLimited is returned when the key's next slot is beyond maxWait.
var ErrLimited = errors.New("rate limit exceeded")

// RateLimiter spaces calls per key: each call reserves the next free slot,
// and slots of one key are at least interval apart.
type RateLimiter struct {
	interval time.Duration
	maxWait  time.Duration
	nextSlot map[string]time.Time
	mu       sync.Mutex
	log      *slog.Logger
	now      func() time.Time
}

// New creates a RateLimiter. A non-positive interval or negative maxWait
// falls back to the defaults.
func New(interval time.Duration, maxWait time.Duration, log *slog.Logger) *RateLimiter {
	if interval <= 0 {
		interval = defaultInterval
	}
	if maxWait < 0 {
		maxWait = defaultMaxWait
	}

	return &RateLimiter{
		interval: interval,
		maxWait:  maxWait,
		nextSlot: make(map[string]time.Time),
		log:      log,
		now:      time.Now,
	}
}

// Wait blocks until the key's reserved slot. It returns ErrLimited without
// reserving when the slot is further away than maxWait. A wait cut short by
// ctx gives its slot back unless a later call has already queued behind it.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	r, ok := rl.reserve(key)
	if !ok {
		rl.log.DebugContext(ctx, "Rate limit is exceeded",
			"key", key,
			"maxWait", rl.maxWait)

		return ErrLimited
	}

	if r.delay <= 0 {
		return nil
	}

	rl.log.DebugContext(ctx, "Rate limiting request",
		"key", key,
		"delay", r.delay)

	timer := time.NewTimer(r.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		rl.release(key, r)

		return ctx.Err()
	}
}

// Prune forgets keys whose last slot is already in the past.
func (rl *RateLimiter) Prune(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	pruned := 0
	for key, slot := range rl.nextSlot {
		if !slot.After(now) {
			delete(rl.nextSlot, key)
			pruned++
		}
	}

	return pruned
}

func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return len(rl.nextSlot)
}

type reservation struct {
	delay    time.Duration
	slot     time.Time
	previous time.Time
}

func (rl *RateLimiter) reserve(key string) (reservation, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	previous := rl.nextSlot[key]
	delay := getDelay(now, previous)
	if delay > rl.maxWait {
		return reservation{delay: delay}, false
	}

	slot := now.Add(delay + rl.interval)
	rl.nextSlot[key] = slot

	return reservation{delay: delay, slot: slot, previous: previous}, true
}

// release restores the key's previous slot if r is still the latest one.
func (rl *RateLimiter) release(key string, r reservation) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.nextSlot[key].Equal(r.slot) {
		return
	}

	if r.previous.IsZero() {
		delete(rl.nextSlot, key)

		return
	}

	rl.nextSlot[key] = r.previous
}

func getDelay(now time.Time, nextSlot time.Time) time.Duration {
	return max(nextSlot.Sub(now), 0)
}
