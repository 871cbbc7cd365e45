package pubsub

import (
	"quiz-coordinator/internal/domain"
)

// Channel is one session's handle onto the fan-out transport. Delivery is
// at-least-once and unordered; consumers must tolerate duplicates and stale
// messages. Callbacks fire asynchronously and must not block.
type Channel interface {
	// Track publishes the caller's own presence record. Each participant
	// writes only its own record.
	Track(rec domain.PresenceRecord) error
	// PresenceSnapshot returns the current whole-map presence view.
	// Snapshots are authoritative for membership.
	PresenceSnapshot() (map[string]domain.PresenceRecord, error)
	// Broadcast fans an event out to every subscriber, including the sender.
	Broadcast(ev domain.Event) error
	// OnPresenceChange registers a callback invoked with a fresh snapshot
	// whenever membership or readiness may have changed.
	OnPresenceChange(fn func(map[string]domain.PresenceRecord))
	// OnBroadcast registers a callback invoked for every delivered event.
	OnBroadcast(fn func(domain.Event))
	// Unsubscribe tears the handle down and removes the caller's presence.
	Unsubscribe() error
}

// Hub opens per-session channels.
type Hub interface {
	Subscribe(sessionID string) (Channel, error)
}
