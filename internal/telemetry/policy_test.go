package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wardenauth/warden/internal/adapter/outbound/memory"
	"github.com/wardenauth/warden/internal/domain/policy"
)

func TestInstrumentedPolicyEngine_RecordsDecisions(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	cfg := policy.Config{
		Rules: []policy.Rule{
			{ID: "allow-docs", Effect: policy.EffectAllow, Resources: []string{"docs:*"}},
		},
		DefaultDecision: policy.EffectDeny,
	}
	engine := NewInstrumentedPolicyEngine(memory.NewPolicyEngine(cfg, nil), m)

	if _, err := engine.Evaluate("docs:a", "read", policy.Context{UserID: "u1"}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if _, err := engine.Evaluate("secrets:a", "read", policy.Context{UserID: "u1"}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if v := counterValue(t, m.PolicyDecisionsTotal.WithLabelValues("allow")); v != 1 {
		t.Fatalf("expected 1 allow recorded, got %v", v)
	}
	if v := counterValue(t, m.PolicyDecisionsTotal.WithLabelValues("deny")); v != 1 {
		t.Fatalf("expected 1 deny recorded, got %v", v)
	}
}
