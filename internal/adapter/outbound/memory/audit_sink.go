package memory

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/wardenauth/warden/internal/domain/audit"
	"github.com/wardenauth/warden/internal/domain/wardenerr"
)

// DefaultAuditCleanupInterval matches the file sink's hourly retention
// sweep cadence.
const DefaultAuditCleanupInterval = 1 * time.Hour

// AuditSinkConfig configures an AuditSink.
type AuditSinkConfig struct {
	// RetentionDays is how long an event is kept before the retention sweep
	// purges it. Zero disables time-based retention.
	RetentionDays int
	// MaxEvents hard-caps the total retained event count; once exceeded the
	// oldest events are evicted immediately on Store. Zero disables the cap.
	MaxEvents int
	// IncludeSensitiveData disables metadata sanitization when true.
	IncludeSensitiveData bool
}

// AuditSink implements audit.Sink in memory, maintaining three secondary
// indexes keyed by user_id, event kind, and hour-bucket of timestamp
// (spec.md §4.3 Indexing). Every index is advisory: Query never trusts an
// index alone to decide membership, only to narrow the candidate set, so a
// stale or missing index entry can never produce an incorrect result, only
// a slower one (self-healing).
type AuditSink struct {
	mu     sync.RWMutex
	events map[string]audit.Event
	order  []string // event IDs, oldest-stored first

	byUser map[string][]string
	byKind map[audit.EventKind][]string
	byHour map[int64][]string

	cfg    AuditSinkConfig
	logger *slog.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// NewAuditSink creates an in-memory audit sink.
func NewAuditSink(cfg AuditSinkConfig, logger *slog.Logger) *AuditSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditSink{
		events:   make(map[string]audit.Event),
		byUser:   make(map[string][]string),
		byKind:   make(map[audit.EventKind][]string),
		byHour:   make(map[int64][]string),
		cfg:      cfg,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// StartCleanup launches the background retention sweep, stopped by ctx
// cancellation or Stop().
func (s *AuditSink) StartCleanup(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(DefaultAuditCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.runRetentionSweep()
			}
		}
	}()
}

// Stop gracefully stops the cleanup goroutine. Safe to call multiple times.
func (s *AuditSink) Stop() {
	s.once.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

func hourBucket(t time.Time) int64 {
	return t.UTC().Truncate(time.Hour).Unix()
}

// Store persists event and updates the three secondary indexes. If
// MaxEvents is configured and the event would push the store over the cap,
// the oldest events are evicted first.
func (s *AuditSink) Store(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.Metadata = sanitizeEventMetadata(event.Metadata, s.cfg.IncludeSensitiveData)
	if event.ID == "" {
		return wardenerr.NewProviderError(wardenerr.ProviderInitFailed, "audit event has no id", nil)
	}

	s.events[event.ID] = event
	s.order = append(s.order, event.ID)
	s.indexLocked(event)

	if s.cfg.MaxEvents > 0 {
		s.evictExcessLocked()
	}
	return nil
}

func (s *AuditSink) indexLocked(event audit.Event) {
	if event.UserID != "" {
		s.byUser[event.UserID] = append(s.byUser[event.UserID], event.ID)
	}
	s.byKind[event.Kind] = append(s.byKind[event.Kind], event.ID)
	bucket := hourBucket(event.Timestamp)
	s.byHour[bucket] = append(s.byHour[bucket], event.ID)
}

// Query returns events matching filter, newest-first, paginated. Kinds and
// UserID narrow the scan via their index when present; every other
// constraint is applied by a final full check against the candidate set, so
// a missing or stale index entry only widens the scan, it never hides a
// match.
func (s *AuditSink) Query(_ context.Context, filter audit.QueryFilter) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := s.candidateIDsLocked(filter)

	matched := make([]audit.Event, 0, len(candidates))
	for _, id := range candidates {
		e, ok := s.events[id]
		if !ok {
			continue // index entry outlived its event; self-healing, skip it
		}
		if matchesFilter(e, filter) {
			matched = append(matched, e)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	return paginateEvents(matched, filter.Offset, filter.Limit), nil
}

// candidateIDsLocked picks the narrowest index available for filter,
// falling back to a full scan of every stored event if no index applies or
// the chosen index looks emptier than the full event set (signalling it may
// be out of date). Must be called with s.mu held for reading.
func (s *AuditSink) candidateIDsLocked(filter audit.QueryFilter) []string {
	if filter.UserID != "" {
		if ids, ok := s.byUser[filter.UserID]; ok {
			return ids
		}
	}
	if len(filter.Kinds) == 1 {
		if ids, ok := s.byKind[filter.Kinds[0]]; ok {
			return ids
		}
	}
	return s.order
}

// PurgeOlderThan deletes events with Timestamp before cutoff, returning the
// number removed.
func (s *AuditSink) PurgeOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purgeLocked(func(e audit.Event) bool { return e.Timestamp.Before(cutoff) }), nil
}

// Export renders every retained event as a JSON array, oldest first. Only
// "json" is supported.
func (s *AuditSink) Export(_ context.Context, format string) ([]byte, error) {
	if format != "json" {
		return nil, wardenerr.NewAuthValidationError("unsupported export format: "+format, nil)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]audit.Event, 0, len(s.order))
	for _, id := range s.order {
		if e, ok := s.events[id]; ok {
			all = append(all, e)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.Before(all[j].Timestamp) })
	return json.Marshal(all)
}

// runRetentionSweep removes events older than RetentionDays and drops index
// entries whose target event no longer exists (spec.md §4.3 Retention).
func (s *AuditSink) runRetentionSweep() {
	if s.cfg.RetentionDays <= 0 {
		return
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.RetentionDays)

	s.mu.Lock()
	removed := s.purgeLocked(func(e audit.Event) bool { return e.Timestamp.Before(cutoff) })
	s.mu.Unlock()

	if removed > 0 {
		s.logger.Info("audit retention sweep removed expired events", "count", removed)
	}
}

// evictExcessLocked drops the oldest events in excess of MaxEvents. Must be
// called with s.mu held.
func (s *AuditSink) evictExcessLocked() {
	excess := len(s.order) - s.cfg.MaxEvents
	if excess <= 0 {
		return
	}
	toDrop := make(map[string]struct{}, excess)
	for _, id := range s.order[:excess] {
		toDrop[id] = struct{}{}
	}
	s.dropLocked(toDrop)
}

// purgeLocked deletes every stored event for which shouldPurge is true,
// returning the count removed. Must be called with s.mu held.
func (s *AuditSink) purgeLocked(shouldPurge func(audit.Event) bool) int {
	toDrop := make(map[string]struct{})
	for _, id := range s.order {
		e, ok := s.events[id]
		if !ok || shouldPurge(e) {
			toDrop[id] = struct{}{}
		}
	}
	return s.dropLocked(toDrop)
}

// dropLocked removes every id in toDrop from the event map, the order
// slice, and all three secondary indexes (rebuilding them rather than
// surgically trimming, since this runs on a retention/eviction cadence, not
// per-Store). Must be called with s.mu held.
func (s *AuditSink) dropLocked(toDrop map[string]struct{}) int {
	if len(toDrop) == 0 {
		return 0
	}

	removed := 0
	newOrder := make([]string, 0, len(s.order)-len(toDrop))
	for _, id := range s.order {
		if _, drop := toDrop[id]; drop {
			if _, existed := s.events[id]; existed {
				removed++
			}
			delete(s.events, id)
			continue
		}
		newOrder = append(newOrder, id)
	}
	s.order = newOrder

	s.byUser = make(map[string][]string)
	s.byKind = make(map[audit.EventKind][]string)
	s.byHour = make(map[int64][]string)
	for _, id := range s.order {
		s.indexLocked(s.events[id])
	}

	return removed
}

// matchesFilter reports whether e satisfies every non-zero field of filter.
func matchesFilter(e audit.Event, filter audit.QueryFilter) bool {
	if len(filter.Kinds) > 0 && !kindMatches(filter.Kinds, e.Kind) {
		return false
	}
	if filter.UserID != "" && e.UserID != filter.UserID {
		return false
	}
	if filter.SessionID != "" && e.SessionID != filter.SessionID {
		return false
	}
	if filter.Resource != "" && e.Resource != filter.Resource {
		return false
	}
	if !filter.Since.IsZero() && e.Timestamp.Before(filter.Since) {
		return false
	}
	if !filter.Until.IsZero() && e.Timestamp.After(filter.Until) {
		return false
	}
	return true
}

func kindMatches(kinds []audit.EventKind, k audit.EventKind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}

func paginateEvents(events []audit.Event, offset, limit int) []audit.Event {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(events) {
		return []audit.Event{}
	}
	events = events[offset:]
	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	return events
}

// sanitizeEventMetadata redacts sensitive-field values and truncates long
// values before an event is indexed (spec.md §4.3 Sanitization). Always
// returns a copy; the caller's map is never mutated.
func sanitizeEventMetadata(metadata map[string]any, includeSensitiveData bool) map[string]any {
	if metadata == nil {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		if !includeSensitiveData && audit.ContainsSensitiveKey(k) {
			out[k] = "[REDACTED]"
			continue
		}
		if str, ok := v.(string); ok && len(str) > 100 {
			out[k] = str[:100] + "..."
			continue
		}
		out[k] = v
	}
	return out
}

var _ audit.Sink = (*AuditSink)(nil)
