package telemetry

import (
	"time"

	"github.com/wardenauth/warden/internal/domain/policy"
)

// InstrumentedPolicyEngine wraps a policy.Engine to record decision counts
// and evaluation latency against m.
type InstrumentedPolicyEngine struct {
	next policy.Engine
	m    *Metrics
}

// NewInstrumentedPolicyEngine wraps next with metrics recording.
func NewInstrumentedPolicyEngine(next policy.Engine, m *Metrics) *InstrumentedPolicyEngine {
	return &InstrumentedPolicyEngine{next: next, m: m}
}

func (e *InstrumentedPolicyEngine) Evaluate(resource, action string, ctx policy.Context) (policy.Decision, error) {
	start := time.Now()
	d, err := e.next.Evaluate(resource, action, ctx)
	e.m.PolicyEvalDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		e.m.PolicyDecisionsTotal.WithLabelValues(decisionLabel(d.Allowed)).Inc()
	}
	return d, err
}

func (e *InstrumentedPolicyEngine) EvaluateBulk(requests []policy.Request, ctx policy.Context) ([]policy.Decision, error) {
	start := time.Now()
	decisions, err := e.next.EvaluateBulk(requests, ctx)
	e.m.PolicyEvalDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		for _, d := range decisions {
			e.m.PolicyDecisionsTotal.WithLabelValues(decisionLabel(d.Allowed)).Inc()
		}
	}
	return decisions, err
}

func decisionLabel(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}

var _ policy.Engine = (*InstrumentedPolicyEngine)(nil)
