package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type recordingSink struct {
	mu     sync.Mutex
	stored []Event
}

func (r *recordingSink) Store(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored = append(r.stored, event)
	return nil
}

func (r *recordingSink) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return nil, nil
}

func (r *recordingSink) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

func (r *recordingSink) Export(ctx context.Context, format string) ([]byte, error) {
	return nil, nil
}

func TestJournal_WatermarkAndEventsAfter(t *testing.T) {
	defer goleak.VerifyNone(t)
	t.Parallel()

	sink := &recordingSink{}
	j := NewJournal(context.Background(), sink)

	start := j.LastPosition()
	j.Emit(EventAuthAttempt, nil)
	j.Emit(EventCredentialVerify, map[string]any{"outcome": "success"})
	j.Emit(EventAuthSuccess, nil)

	slice := j.EventsAfter(start)
	want := []EventKind{EventAuthAttempt, EventCredentialVerify, EventAuthSuccess}
	if len(slice) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(slice))
	}
	for i, k := range want {
		if slice[i] != k {
			t.Fatalf("event %d: expected %s, got %s", i, k, slice[i])
		}
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.stored) != 3 {
		t.Fatalf("expected 3 events forwarded to sink, got %d", len(sink.stored))
	}
}

func TestJournal_PositionsStrictlyIncreasing(t *testing.T) {
	t.Parallel()
	j := NewJournal(context.Background(), nil)
	j.Emit(EventAuthAttempt, nil)
	if got := j.LastPosition(); got != 1 {
		t.Fatalf("expected position 1, got %d", got)
	}
	j.Emit(EventAuthSuccess, nil)
	if got := j.LastPosition(); got != 2 {
		t.Fatalf("expected position 2, got %d", got)
	}
}
