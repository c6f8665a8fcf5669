package telemetry

import (
	"github.com/wardenauth/warden/internal/domain/ratelimit"
)

// InstrumentedRateLimiter wraps a ratelimit.Limiter to record check/track
// outcomes against m.
type InstrumentedRateLimiter struct {
	next ratelimit.Limiter
	m    *Metrics
}

// NewInstrumentedRateLimiter wraps next with metrics recording.
func NewInstrumentedRateLimiter(next ratelimit.Limiter, m *Metrics) *InstrumentedRateLimiter {
	return &InstrumentedRateLimiter{next: next, m: m}
}

func (r *InstrumentedRateLimiter) Check(identifier, action string, cfg ratelimit.Config) (ratelimit.Result, error) {
	res, err := r.next.Check(identifier, action, cfg)
	if err == nil {
		r.m.RateLimitDecisionsTotal.WithLabelValues(rateLimitOutcome(res)).Inc()
	}
	return res, err
}

func (r *InstrumentedRateLimiter) Track(identifier, action string, cfg ratelimit.Config) (ratelimit.Result, error) {
	res, err := r.next.Track(identifier, action, cfg)
	if err == nil {
		r.m.RateLimitDecisionsTotal.WithLabelValues(rateLimitOutcome(res)).Inc()
	}
	return res, err
}

func (r *InstrumentedRateLimiter) Reset(identifier, action string) error {
	return r.next.Reset(identifier, action)
}

func rateLimitOutcome(res ratelimit.Result) string {
	switch {
	case res.FallbackOpen:
		return "fallback_open"
	case res.Allowed:
		return "allowed"
	default:
		return "blocked"
	}
}

var _ ratelimit.Limiter = (*InstrumentedRateLimiter)(nil)
