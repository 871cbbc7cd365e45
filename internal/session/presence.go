package session

import (
	"sync"
	"time"

	"quiz-coordinator/internal/domain"
)

// PresenceTracker maintains the live roster and readiness flags derived from
// whole-map presence snapshots. It never writes to the channel.
type PresenceTracker struct {
	hostID string
	window time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	records map[string]domain.PresenceRecord
}

func NewPresenceTracker(hostID string, window time.Duration) *PresenceTracker {
	return newPresenceTrackerWithClock(hostID, window, time.Now)
}

// newPresenceTrackerWithClock allows deterministic staleness checks in tests.
func newPresenceTrackerWithClock(hostID string, window time.Duration, now func() time.Time) *PresenceTracker {
	return &PresenceTracker{
		hostID:  hostID,
		window:  window,
		now:     now,
		records: make(map[string]domain.PresenceRecord),
	}
}

// Observe replaces the local presence map wholesale. Snapshots are
// authoritative for membership, so no diffing is needed.
func (t *PresenceTracker) Observe(snapshot map[string]domain.PresenceRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	replacement := make(map[string]domain.PresenceRecord, len(snapshot))
	for id, rec := range snapshot {
		replacement[id] = rec
	}
	t.records = replacement
}

// ReadyNonHostCount counts fresh, ready participants other than the host.
// The host is implicitly ready and never part of the gate.
func (t *PresenceTracker) ReadyNonHostCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	now := t.now()
	count := 0
	for id, rec := range t.records {
		if id == t.hostID {
			continue
		}
		if rec.Ready && t.fresh(rec, now) {
			count++
		}
	}
	return count
}

// IsParticipantPresent reports roster membership. Stale participants stay on
// the roster; staleness only affects readiness counting.
func (t *PresenceTracker) IsParticipantPresent(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.records[id]
	return ok
}

// HostAlive reports whether the host's record is inside the liveness window.
func (t *PresenceTracker) HostAlive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[t.hostID]
	return ok && t.fresh(rec, t.now())
}

// FreshNonHostIDs returns the ids of non-host participants inside the
// liveness window, regardless of readiness.
func (t *PresenceTracker) FreshNonHostIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	now := t.now()
	ids := make([]string, 0, len(t.records))
	for id, rec := range t.records {
		if id == t.hostID {
			continue
		}
		if t.fresh(rec, now) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Snapshot returns a copy of the roster for read-only consumers.
func (t *PresenceTracker) Snapshot() map[string]domain.PresenceRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]domain.PresenceRecord, len(t.records))
	for id, rec := range t.records {
		out[id] = rec
	}
	return out
}

func (t *PresenceTracker) fresh(rec domain.PresenceRecord, now time.Time) bool {
	if t.window <= 0 {
		return true
	}
	return now.Sub(rec.LastSeenAt) <= t.window
}
