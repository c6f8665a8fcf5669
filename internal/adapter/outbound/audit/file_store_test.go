package audit

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/wardenauth/warden/internal/domain/audit"
)

func newTestSink(t *testing.T, cfg FileSinkConfig) *FileSink {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	s, err := NewFileSink(cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("new file sink: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFileSink_StoreAndQuery(t *testing.T) {
	t.Parallel()
	s := newTestSink(t, FileSinkConfig{})
	ctx := context.Background()

	now := time.Now().UTC()
	events := []audit.Event{
		{ID: "1", Kind: audit.EventAuthSuccess, Timestamp: now, UserID: "u1"},
		{ID: "2", Kind: audit.EventAuthFailure, Timestamp: now.Add(time.Second), UserID: "u2"},
		{ID: "3", Kind: audit.EventAuthSuccess, Timestamp: now.Add(2 * time.Second), UserID: "u1"},
	}
	for _, e := range events {
		if err := s.Store(ctx, e); err != nil {
			t.Fatalf("store: %v", err)
		}
	}

	got, err := s.Query(ctx, audit.QueryFilter{UserID: "u1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events for u1, got %d", len(got))
	}
	if got[0].ID != "3" {
		t.Fatalf("expected newest-first ordering, got %+v", got)
	}
}

func TestFileSink_QueryPagination(t *testing.T) {
	t.Parallel()
	s := newTestSink(t, FileSinkConfig{})
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		e := audit.Event{ID: string(rune('a' + i)), Kind: audit.EventAuthAttempt, Timestamp: now.Add(time.Duration(i) * time.Second)}
		if err := s.Store(ctx, e); err != nil {
			t.Fatalf("store %d: %v", i, err)
		}
	}

	page, err := s.Query(ctx, audit.QueryFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}
	// Newest-first: index 0 is "e", offset 1 skips it, so first is "d".
	if page[0].ID != "d" {
		t.Fatalf("unexpected pagination result: %+v", page)
	}
}

func TestFileSink_SanitizesSensitiveMetadataByDefault(t *testing.T) {
	t.Parallel()
	s := newTestSink(t, FileSinkConfig{})
	ctx := context.Background()

	longValue := ""
	for i := 0; i < 150; i++ {
		longValue += "x"
	}

	err := s.Store(ctx, audit.Event{
		ID:        "1",
		Kind:      audit.EventCredentialCreate,
		Timestamp: time.Now().UTC(),
		Metadata: map[string]any{
			"password": "hunter2",
			"note":     longValue,
			"outcome":  "success",
		},
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	got, err := s.Query(ctx, audit.QueryFilter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Metadata["password"] != "[REDACTED]" {
		t.Fatalf("expected password to be redacted, got %v", got[0].Metadata["password"])
	}
	note, _ := got[0].Metadata["note"].(string)
	if len(note) != 103 || note[100:] != "..." {
		t.Fatalf("expected note to be truncated with ellipsis, got %q", note)
	}
	if got[0].Metadata["outcome"] != "success" {
		t.Fatalf("expected non-sensitive metadata to survive untouched")
	}
}

func TestFileSink_PurgeOlderThanRemovesOnlyExpired(t *testing.T) {
	t.Parallel()
	s := newTestSink(t, FileSinkConfig{})
	ctx := context.Background()

	old := time.Now().UTC().AddDate(0, 0, -10)
	recent := time.Now().UTC()

	if err := s.Store(ctx, audit.Event{ID: "old", Kind: audit.EventAuthAttempt, Timestamp: old}); err != nil {
		t.Fatalf("store old: %v", err)
	}
	if err := s.Store(ctx, audit.Event{ID: "recent", Kind: audit.EventAuthAttempt, Timestamp: recent}); err != nil {
		t.Fatalf("store recent: %v", err)
	}

	removed, err := s.PurgeOlderThan(ctx, time.Now().UTC().AddDate(0, 0, -5))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 event purged, got %d", removed)
	}

	remaining, err := s.Query(ctx, audit.QueryFilter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "recent" {
		t.Fatalf("unexpected remaining events: %+v", remaining)
	}
}

func TestFileSink_ExportProducesJSONArray(t *testing.T) {
	t.Parallel()
	s := newTestSink(t, FileSinkConfig{})
	ctx := context.Background()

	if err := s.Store(ctx, audit.Event{ID: "1", Kind: audit.EventAuthAttempt, Timestamp: time.Now().UTC()}); err != nil {
		t.Fatalf("store: %v", err)
	}

	data, err := s.Export(ctx, "json")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(data) == 0 || data[0] != '[' {
		t.Fatalf("expected a JSON array, got %q", data)
	}

	if _, err := s.Export(ctx, "xml"); err == nil {
		t.Fatal("expected unsupported format to be rejected")
	}
}

func TestFileSink_MaxEventsEvictsOldest(t *testing.T) {
	t.Parallel()
	s := newTestSink(t, FileSinkConfig{MaxEvents: 3})
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		e := audit.Event{ID: string(rune('a' + i)), Kind: audit.EventAuthAttempt, Timestamp: now.Add(time.Duration(i) * time.Second)}
		if err := s.Store(ctx, e); err != nil {
			t.Fatalf("store %d: %v", i, err)
		}
	}

	s.runRetentionSweep()

	remaining, err := s.Query(ctx, audit.QueryFilter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(remaining) != 3 {
		t.Fatalf("expected cap to retain 3 events, got %d", len(remaining))
	}
	if remaining[0].ID != "e" || remaining[2].ID != "c" {
		t.Fatalf("expected the newest 3 events to survive, got %+v", remaining)
	}
}
