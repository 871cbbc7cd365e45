package session

import (
	"testing"
	"time"

	"quiz-coordinator/internal/domain"
)

func TestReadyNonHostCountExcludesHost(t *testing.T) {
	now := time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC)
	tracker := newPresenceTrackerWithClock("H", 30*time.Second, func() time.Time { return now })

	tracker.Observe(map[string]domain.PresenceRecord{
		"H": {ParticipantID: "H", Ready: true, LastSeenAt: now},
		"A": {ParticipantID: "A", Ready: true, LastSeenAt: now},
		"B": {ParticipantID: "B", Ready: false, LastSeenAt: now},
	})

	if got := tracker.ReadyNonHostCount(); got != 1 {
		t.Fatalf("expected 1 ready non-host, got %d", got)
	}
}

func TestReadyNonHostCountExcludesStale(t *testing.T) {
	now := time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC)
	tracker := newPresenceTrackerWithClock("H", 30*time.Second, func() time.Time { return now })

	tracker.Observe(map[string]domain.PresenceRecord{
		"A": {ParticipantID: "A", Ready: true, LastSeenAt: now.Add(-31 * time.Second)},
		"B": {ParticipantID: "B", Ready: true, LastSeenAt: now.Add(-5 * time.Second)},
	})

	if got := tracker.ReadyNonHostCount(); got != 1 {
		t.Fatalf("expected stale participant excluded, got %d", got)
	}
	// Stale participants stay on the roster.
	if !tracker.IsParticipantPresent("A") {
		t.Fatalf("expected stale participant still present on roster")
	}
}

func TestObserveReplacesWholesale(t *testing.T) {
	now := time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC)
	tracker := newPresenceTrackerWithClock("H", 30*time.Second, func() time.Time { return now })

	tracker.Observe(map[string]domain.PresenceRecord{
		"A": {ParticipantID: "A", Ready: true, LastSeenAt: now},
	})
	tracker.Observe(map[string]domain.PresenceRecord{
		"B": {ParticipantID: "B", Ready: false, LastSeenAt: now},
	})

	if tracker.IsParticipantPresent("A") {
		t.Fatalf("expected A dropped after snapshot replacement")
	}
	if !tracker.IsParticipantPresent("B") {
		t.Fatalf("expected B present")
	}
	if got := tracker.ReadyNonHostCount(); got != 0 {
		t.Fatalf("expected 0 ready, got %d", got)
	}
}

func TestHostAlive(t *testing.T) {
	now := time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC)
	tracker := newPresenceTrackerWithClock("H", 30*time.Second, func() time.Time { return now })

	if tracker.HostAlive() {
		t.Fatalf("expected host not alive before any snapshot")
	}

	tracker.Observe(map[string]domain.PresenceRecord{
		"H": {ParticipantID: "H", LastSeenAt: now.Add(-10 * time.Second)},
	})
	if !tracker.HostAlive() {
		t.Fatalf("expected host alive inside window")
	}

	tracker.Observe(map[string]domain.PresenceRecord{
		"H": {ParticipantID: "H", LastSeenAt: now.Add(-45 * time.Second)},
	})
	if tracker.HostAlive() {
		t.Fatalf("expected host stale outside window")
	}
}

func TestFreshNonHostIDs(t *testing.T) {
	now := time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC)
	tracker := newPresenceTrackerWithClock("H", 30*time.Second, func() time.Time { return now })

	tracker.Observe(map[string]domain.PresenceRecord{
		"H": {ParticipantID: "H", LastSeenAt: now},
		"A": {ParticipantID: "A", LastSeenAt: now},
		"B": {ParticipantID: "B", LastSeenAt: now.Add(-2 * time.Minute)},
	})

	ids := tracker.FreshNonHostIDs()
	if len(ids) != 1 || ids[0] != "A" {
		t.Fatalf("expected only A fresh, got %v", ids)
	}
}
