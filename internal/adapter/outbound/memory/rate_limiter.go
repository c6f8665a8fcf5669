package memory

import (
	"log/slog"
	"sync"
	"time"

	"github.com/wardenauth/warden/internal/domain/ratelimit"
)

// DefaultMaxTrackedIdentifiers bounds memory growth under an identifier-
// spray attack (spec.md §4.9 "max_tracked_identifiers"); once reached, new
// identifiers fail open rather than being rejected outright.
const DefaultMaxTrackedIdentifiers = 10000

// DefaultRateLimiterCleanupInterval matches the teacher's default sweep
// cadence for abandoned sliding-window deques.
const DefaultRateLimiterCleanupInterval = 5 * time.Minute

type rateKey struct {
	identifier string
	action     string
}

// RateLimiter implements ratelimit.Limiter with a sliding-window deque per
// (identifier, action), grounded in
// original_source/serv/bundled/auth/limiters/memory_limiter.py's
// MemoryRateLimiter (replacing the teacher's own GCRA-token-bucket limiter,
// since spec.md §4.9 specifies sliding-window semantics, not GCRA).
type RateLimiter struct {
	mu                    sync.Mutex
	windows               map[rateKey][]time.Time
	locks                 *keyedMutex
	maxTrackedIdentifiers int
	cleanupEvery          time.Duration
	lastCleanup           time.Time
	logger                *slog.Logger
}

// NewRateLimiter creates an empty in-memory sliding-window rate limiter.
func NewRateLimiter(opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		windows:               make(map[rateKey][]time.Time),
		locks:                 newKeyedMutex(),
		maxTrackedIdentifiers: DefaultMaxTrackedIdentifiers,
		cleanupEvery:          DefaultRateLimiterCleanupInterval,
		lastCleanup:           time.Now(),
		logger:                slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RateLimiterOption configures a RateLimiter at construction.
type RateLimiterOption func(*RateLimiter)

// WithMaxTrackedIdentifiers overrides DefaultMaxTrackedIdentifiers.
func WithMaxTrackedIdentifiers(n int) RateLimiterOption {
	return func(r *RateLimiter) { r.maxTrackedIdentifiers = n }
}

// Check reports the current status for (identifier, action) without
// consuming a request.
func (r *RateLimiter) Check(identifier, action string, cfg ratelimit.Config) (ratelimit.Result, error) {
	key := rateKey{identifier, action}
	var result ratelimit.Result
	r.locks.With(identifier, func() {
		now := time.Now()
		windowStart := now.Add(-cfg.Window)

		r.mu.Lock()
		times := pruneExpired(r.windows[key], windowStart)
		r.windows[key] = times
		r.mu.Unlock()

		count := len(times)
		result = ratelimit.Result{
			Allowed:   count < cfg.Limit,
			Limit:     cfg.Limit,
			Remaining: max0(cfg.Limit - count),
			ResetTime: resetTime(times, now, cfg.Window),
		}
	})
	return result, nil
}

// Track atomically consumes a request for (identifier, action) and returns
// the post-update status (spec.md §4.9 "Track").
func (r *RateLimiter) Track(identifier, action string, cfg ratelimit.Config) (ratelimit.Result, error) {
	key := rateKey{identifier, action}
	var result ratelimit.Result
	r.locks.With(identifier, func() {
		now := time.Now()
		windowStart := now.Add(-cfg.Window)

		r.mu.Lock()
		r.cleanupIfNeededLocked(now)

		fallbackOpen := false
		if _, tracked := r.windows[key]; !tracked && len(r.windows) >= r.maxTrackedIdentifiers {
			fallbackOpen = true
			r.logger.Warn("rate limiter at capacity, failing open", "max_tracked_identifiers", r.maxTrackedIdentifiers)
		}

		times := pruneExpired(r.windows[key], windowStart)
		count := len(times)
		allowed := fallbackOpen || count < cfg.Limit
		if allowed && !fallbackOpen {
			times = append(times, now)
		}
		r.windows[key] = times
		r.mu.Unlock()

		remaining := max0(cfg.Limit - len(times))
		reset := resetTime(times, now, cfg.Window)

		result = ratelimit.Result{
			Allowed:      allowed,
			Limit:        cfg.Limit,
			Remaining:    remaining,
			ResetTime:    reset,
			FallbackOpen: fallbackOpen,
		}
		if !allowed {
			result.RetryAfter = max1Second(reset.Sub(now))
		}
	})
	return result, nil
}

// Reset clears counters for (identifier, action). If action is empty, all
// actions for identifier are cleared.
func (r *RateLimiter) Reset(identifier, action string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if action == "" {
		for k := range r.windows {
			if k.identifier == identifier {
				delete(r.windows, k)
			}
		}
		return nil
	}
	delete(r.windows, rateKey{identifier, action})
	return nil
}

// cleanupIfNeededLocked must be called with r.mu held. It prunes stale
// entries across all tracked keys and drops empty deques, preventing
// unbounded memory growth from identifiers that stop sending requests
// (spec.md §4.9 "Memory-efficient cleanup").
func (r *RateLimiter) cleanupIfNeededLocked(now time.Time) {
	if now.Sub(r.lastCleanup) < r.cleanupEvery {
		return
	}
	r.lastCleanup = now

	removed := 0
	for key, times := range r.windows {
		// A conservative one-day lookback prunes any entry that could not
		// possibly still be inside a supported window (spec.md §4.9 windows
		// top out at "day").
		pruned := pruneExpired(times, now.Add(-24*time.Hour))
		if len(pruned) == 0 {
			delete(r.windows, key)
			removed++
			continue
		}
		r.windows[key] = pruned
	}
	if removed > 0 {
		r.logger.Debug("rate limiter cleanup completed", "removed", removed)
	}
}

// pruneExpired returns the suffix of times at or after windowStart,
// matching the sliding-window deque's pop-from-front semantics.
func pruneExpired(times []time.Time, windowStart time.Time) []time.Time {
	i := 0
	for i < len(times) && times[i].Before(windowStart) {
		i++
	}
	if i == 0 {
		return times
	}
	return append([]time.Time(nil), times[i:]...)
}

func resetTime(times []time.Time, now time.Time, window time.Duration) time.Time {
	if len(times) == 0 {
		return now.Add(window)
	}
	return times[0].Add(window)
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func max1Second(d time.Duration) time.Duration {
	if d < time.Second {
		return time.Second
	}
	return d
}

var _ ratelimit.Limiter = (*RateLimiter)(nil)
