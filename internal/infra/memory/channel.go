package memory

import (
	"sync"

	"quiz-coordinator/internal/domain"
	"quiz-coordinator/internal/pubsub"
)

// Hub is an in-process pubsub.Hub: one room per session, synchronous fan-out.
// Useful for tests and single-process demos; the Redis hub is the production
// transport.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*room)}
}

func (h *Hub) Subscribe(sessionID string) (pubsub.Channel, error) {
	h.mu.Lock()
	r, ok := h.rooms[sessionID]
	if !ok {
		r = &room{
			presence: make(map[string]domain.PresenceRecord),
			handles:  make(map[*Channel]struct{}),
		}
		h.rooms[sessionID] = r
	}
	h.mu.Unlock()

	ch := &Channel{room: r}
	r.mu.Lock()
	r.handles[ch] = struct{}{}
	r.mu.Unlock()
	return ch, nil
}

type room struct {
	mu       sync.RWMutex
	presence map[string]domain.PresenceRecord
	handles  map[*Channel]struct{}
}

func (r *room) snapshotLocked() map[string]domain.PresenceRecord {
	out := make(map[string]domain.PresenceRecord, len(r.presence))
	for id, rec := range r.presence {
		out[id] = rec
	}
	return out
}

// Channel is one participant's handle onto a room.
type Channel struct {
	room *room

	mu           sync.RWMutex
	presenceFns  []func(map[string]domain.PresenceRecord)
	broadcastFns []func(domain.Event)
	trackedID    string
	closed       bool
}

func (c *Channel) Track(rec domain.PresenceRecord) error {
	c.mu.Lock()
	c.trackedID = rec.ParticipantID
	c.mu.Unlock()

	c.room.mu.Lock()
	c.room.presence[rec.ParticipantID] = rec
	snapshot := c.room.snapshotLocked()
	handles := c.room.handlesLocked()
	c.room.mu.Unlock()

	for _, h := range handles {
		h.deliverPresence(snapshot)
	}
	return nil
}

func (c *Channel) PresenceSnapshot() (map[string]domain.PresenceRecord, error) {
	c.room.mu.RLock()
	defer c.room.mu.RUnlock()
	return c.room.snapshotLocked(), nil
}

func (c *Channel) Broadcast(ev domain.Event) error {
	// Round-trip through the codec so in-process delivery has the same
	// shape constraints as the wire, and no state is aliased across clients.
	data, err := pubsub.EncodeEvent(ev)
	if err != nil {
		return err
	}

	c.room.mu.RLock()
	handles := c.room.handlesLocked()
	c.room.mu.RUnlock()

	for _, h := range handles {
		decoded, err := pubsub.DecodeEvent(data)
		if err != nil {
			continue
		}
		h.deliverBroadcast(decoded)
	}
	return nil
}

func (c *Channel) OnPresenceChange(fn func(map[string]domain.PresenceRecord)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.presenceFns = append(c.presenceFns, fn)
}

func (c *Channel) OnBroadcast(fn func(domain.Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcastFns = append(c.broadcastFns, fn)
}

func (c *Channel) Unsubscribe() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	trackedID := c.trackedID
	c.mu.Unlock()

	c.room.mu.Lock()
	delete(c.room.handles, c)
	if trackedID != "" {
		delete(c.room.presence, trackedID)
	}
	snapshot := c.room.snapshotLocked()
	handles := c.room.handlesLocked()
	c.room.mu.Unlock()

	for _, h := range handles {
		h.deliverPresence(snapshot)
	}
	return nil
}

func (r *room) handlesLocked() []*Channel {
	out := make([]*Channel, 0, len(r.handles))
	for h := range r.handles {
		out = append(out, h)
	}
	return out
}

func (c *Channel) deliverPresence(snapshot map[string]domain.PresenceRecord) {
	c.mu.RLock()
	closed := c.closed
	fns := append([]func(map[string]domain.PresenceRecord){}, c.presenceFns...)
	c.mu.RUnlock()
	if closed {
		return
	}
	for _, fn := range fns {
		fn(snapshot)
	}
}

func (c *Channel) deliverBroadcast(ev domain.Event) {
	c.mu.RLock()
	closed := c.closed
	fns := append([]func(domain.Event){}, c.broadcastFns...)
	c.mu.RUnlock()
	if closed {
		return
	}
	for _, fn := range fns {
		fn(ev)
	}
}
