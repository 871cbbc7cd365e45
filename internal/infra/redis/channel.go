package redis

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"quiz-coordinator/internal/domain"
	"quiz-coordinator/internal/pubsub"
	goredis "github.com/redis/go-redis/v9"
)

// Hub opens Redis-backed channels: presence lives in a hash per session,
// events and presence pings fan out over Redis pub/sub. Delivery is
// at-least-once, best-effort, unordered across publishers, which is exactly
// the contract coordinators are built for.
type Hub struct {
	client       *goredis.Client
	presenceTTL  time.Duration
	pollInterval time.Duration
}

func NewHub(client *goredis.Client, presenceTTL, pollInterval time.Duration) *Hub {
	if presenceTTL <= 0 {
		presenceTTL = 10 * time.Minute
	}
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Hub{client: client, presenceTTL: presenceTTL, pollInterval: pollInterval}
}

func (h *Hub) Subscribe(sessionID string) (pubsub.Channel, error) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := &Channel{
		client:       h.client,
		sessionID:    sessionID,
		presenceTTL:  h.presenceTTL,
		pollInterval: h.pollInterval,
		cancel:       cancel,
	}
	ch.ps = h.client.Subscribe(ctx, ch.eventsKey(), ch.pingKey())
	// Force the subscription before returning so no broadcast slips past
	// between Subscribe and the first receive.
	if _, err := ch.ps.Receive(ctx); err != nil {
		cancel()
		_ = ch.ps.Close()
		return nil, err
	}
	go ch.run(ctx)
	return ch, nil
}

// Channel is one participant's Redis handle for a session.
type Channel struct {
	client       *goredis.Client
	sessionID    string
	presenceTTL  time.Duration
	pollInterval time.Duration
	ps           *goredis.PubSub
	cancel       context.CancelFunc

	mu           sync.RWMutex
	presenceFns  []func(map[string]domain.PresenceRecord)
	broadcastFns []func(domain.Event)
	trackedID    string
	closed       bool
}

func (c *Channel) Track(rec domain.PresenceRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.trackedID = rec.ParticipantID
	c.mu.Unlock()

	ctx := context.Background()
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, c.presenceKey(), rec.ParticipantID, data)
	pipe.Expire(ctx, c.presenceKey(), c.presenceTTL)
	pipe.Publish(ctx, c.pingKey(), rec.ParticipantID)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *Channel) PresenceSnapshot() (map[string]domain.PresenceRecord, error) {
	fields, err := c.client.HGetAll(context.Background(), c.presenceKey()).Result()
	if err != nil {
		return nil, err
	}
	snapshot := make(map[string]domain.PresenceRecord, len(fields))
	for id, raw := range fields {
		var rec domain.PresenceRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			// Skip malformed records rather than failing the whole snapshot.
			continue
		}
		snapshot[id] = rec
	}
	return snapshot, nil
}

func (c *Channel) Broadcast(ev domain.Event) error {
	data, err := pubsub.EncodeEvent(ev)
	if err != nil {
		return err
	}
	return c.client.Publish(context.Background(), c.eventsKey(), data).Err()
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

	ctx := context.Background()
	if trackedID != "" {
		_ = c.client.HDel(ctx, c.presenceKey(), trackedID).Err()
		_ = c.client.Publish(ctx, c.pingKey(), trackedID).Err()
	}
	c.cancel()
	return c.ps.Close()
}

// run pumps pub/sub messages into the registered callbacks and re-polls the
// presence hash on an interval so liveness windows slide even when nobody
// publishes.
func (c *Channel) run(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	msgs := c.ps.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.notifyPresence()
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			switch msg.Channel {
			case c.pingKey():
				c.notifyPresence()
			case c.eventsKey():
				ev, err := pubsub.DecodeEvent([]byte(msg.Payload))
				if err != nil {
					log.Printf("session %s: drop event: %v", c.sessionID, err)
					continue
				}
				c.notifyBroadcast(ev)
			}
		}
	}
}

func (c *Channel) notifyPresence() {
	snapshot, err := c.PresenceSnapshot()
	if err != nil {
		log.Printf("session %s: presence snapshot: %v", c.sessionID, err)
		return
	}
	c.mu.RLock()
	fns := append([]func(map[string]domain.PresenceRecord){}, c.presenceFns...)
	c.mu.RUnlock()
	for _, fn := range fns {
		fn(snapshot)
	}
}

func (c *Channel) notifyBroadcast(ev domain.Event) {
	c.mu.RLock()
	fns := append([]func(domain.Event){}, c.broadcastFns...)
	c.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (c *Channel) presenceKey() string {
	return "session:" + c.sessionID + ":presence"
}

func (c *Channel) eventsKey() string {
	return "session:" + c.sessionID + ":events"
}

func (c *Channel) pingKey() string {
	return "session:" + c.sessionID + ":presence:ping"
}
