package telemetry

import (
	"context"
	"time"

	"github.com/wardenauth/warden/internal/domain/audit"
)

// InstrumentedSink wraps an audit.Sink to record Store/Query outcomes
// against m, without the wrapped sink or its callers needing to know
// telemetry exists.
type InstrumentedSink struct {
	next audit.Sink
	m    *Metrics
}

// NewInstrumentedSink wraps next with metrics recording.
func NewInstrumentedSink(next audit.Sink, m *Metrics) *InstrumentedSink {
	return &InstrumentedSink{next: next, m: m}
}

func (s *InstrumentedSink) Store(ctx context.Context, event audit.Event) error {
	err := s.next.Store(ctx, event)
	if err != nil {
		s.m.AuditStoreFailuresTotal.Inc()
		return err
	}
	s.m.AuditEventsStoredTotal.WithLabelValues(string(event.Kind)).Inc()
	return nil
}

func (s *InstrumentedSink) Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error) {
	start := time.Now()
	defer func() { s.m.AuditQueryDuration.Observe(time.Since(start).Seconds()) }()
	return s.next.Query(ctx, filter)
}

func (s *InstrumentedSink) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return s.next.PurgeOlderThan(ctx, cutoff)
}

func (s *InstrumentedSink) Export(ctx context.Context, format string) ([]byte, error) {
	return s.next.Export(ctx, format)
}

var _ audit.Sink = (*InstrumentedSink)(nil)
