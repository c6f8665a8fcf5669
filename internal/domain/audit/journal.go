package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// entry is a single journal slot: its position, kind, and the metadata the
// caller emitted it with.
type entry struct {
	position int
	kind     EventKind
	metadata map[string]any
}

// Sink is the durable audit-storage contract (spec.md §4.3). Implementations
// live under internal/adapter/outbound/{memory,file}.
type Sink interface {
	// Store persists a single event. Called once per journal emission, in
	// emission order, never concurrently for the same journal.
	Store(ctx context.Context, event Event) error

	// Query returns events matching the filter, newest-first, paginated.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)

	// PurgeOlderThan deletes events with Timestamp before cutoff, returning
	// the number removed.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Export renders all retained events in the given format. Only "json" is
	// supported; any other format is an error.
	Export(ctx context.Context, format string) ([]byte, error)
}

// QueryFilter selects events for Sink.Query. Zero-valued fields are
// unconstrained; Kinds, UserID, SessionID, Resource are ANDed together when
// non-empty, and Kinds matches if the event's kind is any element of the
// slice.
type QueryFilter struct {
	Kinds     []EventKind
	UserID    string
	SessionID string
	Resource  string
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// Journal is the per-call, append-only event log threaded through a guarded
// operation (spec.md §3 AuditJournal). It is never shared across calls and
// therefore never locked for cross-journal coordination, only internally to
// protect its own slice.
type Journal struct {
	mu        sync.Mutex
	sequenceID string
	entries   []entry
	sink      Sink
	ctx       context.Context
}

// NewJournal creates a per-call journal backed by sink. ctx is used for the
// Sink.Store calls made on Emit; it is not retained beyond that.
func NewJournal(ctx context.Context, sink Sink) *Journal {
	return &Journal{
		sequenceID: uuid.NewString(),
		sink:       sink,
		ctx:        ctx,
	}
}

// SequenceID returns the journal's stable identifier.
func (j *Journal) SequenceID() string {
	return j.sequenceID
}

// Emit appends an event and forwards it to the sink. metadata may be nil.
// Appending is monotonic: positions strictly increase within a journal
// (spec.md §3 invariant).
func (j *Journal) Emit(kind EventKind, metadata map[string]any) {
	j.mu.Lock()
	pos := len(j.entries)
	j.entries = append(j.entries, entry{position: pos, kind: kind, metadata: metadata})
	rec := Event{
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
		Severity:  InferSeverity(kind, outcomeOf(metadata)),
	}
	populateFromMetadata(&rec, metadata)
	j.mu.Unlock()

	if j.sink != nil {
		// Store errors are not fatal to the caller's operation: the journal's
		// job is to make the event observable to the enforcement harness,
		// which operates on the in-memory slice, not on sink durability.
		_ = j.sink.Store(j.ctx, rec)
	}
}

// LastPosition returns the current entry count, the "watermark" the
// enforcement harness reads before invoking a guarded method.
func (j *Journal) LastPosition() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// EventsAfter returns the ordered slice of EventKinds emitted at or after
// position pos.
func (j *Journal) EventsAfter(pos int) []EventKind {
	j.mu.Lock()
	defer j.mu.Unlock()
	if pos >= len(j.entries) {
		return nil
	}
	out := make([]EventKind, 0, len(j.entries)-pos)
	for _, e := range j.entries[pos:] {
		out = append(out, e.kind)
	}
	return out
}

func outcomeOf(metadata map[string]any) string {
	if metadata == nil {
		return ""
	}
	if v, ok := metadata["outcome"].(string); ok {
		return v
	}
	return ""
}

func populateFromMetadata(rec *Event, metadata map[string]any) {
	if metadata == nil {
		rec.ID = uuid.NewString()
		return
	}
	if v, ok := metadata["user_id"].(string); ok {
		rec.UserID = v
	}
	if v, ok := metadata["session_id"].(string); ok {
		rec.SessionID = v
	}
	if v, ok := metadata["resource"].(string); ok {
		rec.Resource = v
	}
	if v, ok := metadata["action"].(string); ok {
		rec.Action = v
	}
	if v, ok := metadata["decision"].(Decision); ok {
		rec.Decision = v
	}
	if v, ok := metadata["ip_address"].(string); ok {
		rec.IPAddress = v
	}
	if v, ok := metadata["user_agent"].(string); ok {
		rec.UserAgent = v
	}
	rec.ID = uuid.NewString()
}
