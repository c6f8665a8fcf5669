package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/wardenauth/warden/internal/adapter/outbound/memory"
	"github.com/wardenauth/warden/internal/domain/audit"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestInstrumentedSink_RecordsStoredEventsAndFailures(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	sink := NewInstrumentedSink(memory.NewAuditSink(memory.AuditSinkConfig{}, nil), m)
	ctx := context.Background()

	if err := sink.Store(ctx, audit.Event{ID: "1", Kind: audit.EventAuthSuccess, Timestamp: time.Now().UTC()}); err != nil {
		t.Fatalf("store: %v", err)
	}
	// A second Store without an ID triggers the underlying sink's error path.
	if err := sink.Store(ctx, audit.Event{Kind: audit.EventAuthSuccess, Timestamp: time.Now().UTC()}); err == nil {
		t.Fatal("expected an error for an event with no id")
	}

	stored, err := sink.Query(ctx, audit.QueryFilter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(stored))
	}

	if v := counterValue(t, m.AuditStoreFailuresTotal); v != 1 {
		t.Fatalf("expected 1 store failure recorded, got %v", v)
	}
}
