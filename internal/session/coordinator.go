package session

import (
	"context"
	"log"
	"sync"
	"time"

	"quiz-coordinator/internal/domain"
	"quiz-coordinator/internal/pubsub"
)

// Settings tunes a coordinator. Zero values fall back to defaults.
type Settings struct {
	LivenessWindow    time.Duration
	HeartbeatInterval time.Duration
	RoundDuration     time.Duration
	XPBase            int
	XPFloor           int
}

func (s Settings) withDefaults() Settings {
	if s.LivenessWindow <= 0 {
		s.LivenessWindow = 30 * time.Second
	}
	if s.HeartbeatInterval <= 0 {
		s.HeartbeatInterval = 10 * time.Second
	}
	if s.RoundDuration <= 0 {
		s.RoundDuration = 30 * time.Second
	}
	if s.XPBase <= 0 {
		s.XPBase = 100
	}
	if s.XPFloor <= 0 {
		s.XPFloor = 10
	}
	return s
}

// Snapshot is the observable state handed to the UI layer. Rendering is
// entirely the UI's concern.
type Snapshot struct {
	SessionID            string                           `json:"sessionId"`
	Phase                domain.SessionPhase              `json:"phase"`
	CurrentQuestionIndex int                              `json:"currentQuestionIndex"`
	CurrentRound         *domain.QuestionRound            `json:"currentRound,omitempty"`
	Presence             map[string]domain.PresenceRecord `json:"presence"`
	Scores               map[string]domain.ScoreEntry     `json:"scores"`
	AnsweredCount        int                              `json:"answeredCount"`
	CanStart             bool                             `json:"canStart"`
	Stalled              bool                             `json:"stalled"`
	RankedResults        []domain.RankedEntry             `json:"rankedResults,omitempty"`
}

// Coordinator owns one participant's view of a session. The host's instance
// is authoritative for phase transitions; every other instance mirrors them
// by applying sequence-numbered full-state broadcasts. There is no shared
// memory between participants, only the channel.
type Coordinator struct {
	channel    pubsub.Channel
	self       domain.Participant
	meta       domain.SessionMetadata
	presence   *PresenceTracker
	ledger     *AnswerLedger
	engine     *ScoreEngine
	aggregator *ResultsAggregator
	settings   Settings
	now        func() time.Time

	mu           sync.RWMutex
	phase        domain.SessionPhase
	currentIndex int
	currentRound *domain.QuestionRound
	lastSeq      uint64
	scores       map[string]domain.ScoreEntry
	ready        bool
	ranked       []domain.RankedEntry
	subscribers  map[chan Snapshot]struct{}
}

func New(channel pubsub.Channel, self domain.Participant, meta domain.SessionMetadata, aggregator *ResultsAggregator, settings Settings) *Coordinator {
	return NewWithClock(channel, self, meta, aggregator, settings, time.Now)
}

// NewWithClock allows deterministic timestamps in tests.
func NewWithClock(channel pubsub.Channel, self domain.Participant, meta domain.SessionMetadata, aggregator *ResultsAggregator, settings Settings, now func() time.Time) *Coordinator {
	settings = settings.withDefaults()
	c := &Coordinator{
		channel:     channel,
		self:        self,
		meta:        meta,
		presence:    newPresenceTrackerWithClock(meta.HostID, settings.LivenessWindow, now),
		ledger:      newAnswerLedgerWithClock(now),
		engine:      NewScoreEngine(settings.XPBase, settings.XPFloor),
		aggregator:  aggregator,
		settings:    settings,
		now:         now,
		phase:       domain.PhaseLobby,
		scores:      make(map[string]domain.ScoreEntry),
		subscribers: make(map[chan Snapshot]struct{}),
	}
	channel.OnPresenceChange(func(snapshot map[string]domain.PresenceRecord) {
		c.presence.Observe(snapshot)
		c.notify()
	})
	channel.OnBroadcast(func(ev domain.Event) {
		if err := c.ApplyRemoteEvent(ev); err != nil {
			// Stale and duplicate deliveries are expected; nothing to do.
			return
		}
	})
	return c
}

// Self returns the participant this coordinator acts for.
func (c *Coordinator) Self() domain.Participant {
	return c.self
}

// Metadata returns the read-only session metadata.
func (c *Coordinator) Metadata() domain.SessionMetadata {
	return c.meta
}

// Join announces this participant on the channel and seeds the roster from
// the current presence snapshot.
func (c *Coordinator) Join() error {
	if err := c.track(false); err != nil {
		return err
	}
	snapshot, err := c.channel.PresenceSnapshot()
	if err != nil {
		return err
	}
	c.presence.Observe(snapshot)
	c.notify()
	return nil
}

// MarkReady publishes this participant's readiness. Repeated calls are
// no-ops in effect; the publish is fire-and-forget.
func (c *Coordinator) MarkReady() error {
	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
	return c.track(true)
}

// Heartbeat re-publishes the current presence record so the liveness window
// keeps sliding.
func (c *Coordinator) Heartbeat() error {
	c.mu.RLock()
	ready := c.ready
	c.mu.RUnlock()
	return c.track(ready)
}

// RunHeartbeat republishes presence on an interval until ctx is done.
func (c *Coordinator) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(c.settings.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Heartbeat(); err != nil {
				log.Printf("session %s: heartbeat: %v", c.meta.SessionID, err)
			}
		}
	}
}

func (c *Coordinator) track(ready bool) error {
	return c.channel.Track(domain.PresenceRecord{
		ParticipantID: c.self.ID,
		DisplayName:   c.self.DisplayName,
		Ready:         ready,
		LastSeenAt:    c.now(),
	})
}

// CanStart reports whether the host may start: lobby phase with at least one
// ready non-host participant. The host decides when enough people are in;
// requiring everyone ready would deadlock on slow joiners.
func (c *Coordinator) CanStart() bool {
	c.mu.RLock()
	phase := c.phase
	c.mu.RUnlock()
	return phase == domain.PhaseLobby && c.presence.ReadyNonHostCount() >= 1
}

// StartSession moves Lobby to Answering and broadcasts the initial state.
// Host-only; non-host calls are dropped with no side effect.
func (c *Coordinator) StartSession() error {
	if !c.self.IsHost {
		log.Printf("session %s: start rejected for non-host %s", c.meta.SessionID, c.self.ID)
		return domain.ErrUnauthorized
	}
	if !c.CanStart() {
		return domain.ErrInvalidPhase
	}

	c.mu.Lock()
	if c.phase != domain.PhaseLobby {
		c.mu.Unlock()
		return domain.ErrInvalidPhase
	}
	if len(c.meta.QuestionSet.Rounds) == 0 {
		c.mu.Unlock()
		return domain.ErrQuestionSetNotFound
	}
	round := c.stampRound(0)
	c.phase = domain.PhaseAnswering
	c.currentIndex = 0
	c.currentRound = &round
	ev := c.phaseEventLocked(domain.EventSessionStarted)
	c.mu.Unlock()

	return c.publish(ev)
}

// AdvanceRound is the host's only transition lever after start. From
// Answering it closes the ledger, scores the round, and moves to Resolving;
// from Resolving it opens the next question or finishes the session.
func (c *Coordinator) AdvanceRound(ctx context.Context) error {
	if !c.self.IsHost {
		log.Printf("session %s: advance rejected for non-host %s", c.meta.SessionID, c.self.ID)
		return domain.ErrUnauthorized
	}

	c.mu.Lock()
	var ev domain.Event
	finished := false
	switch c.phase {
	case domain.PhaseAnswering:
		answers := c.ledger.CloseRound(c.currentIndex)
		deltas := c.engine.ScoreRound(*c.currentRound, answers, c.presence.FreshNonHostIDs())
		Accumulate(c.scores, deltas)
		c.phase = domain.PhaseResolving
		ev = c.phaseEventLocked(domain.EventRoundAdvanced)
	case domain.PhaseResolving:
		if c.currentIndex+1 < c.meta.TotalQuestions {
			c.currentIndex++
			round := c.stampRound(c.currentIndex)
			c.currentRound = &round
			c.phase = domain.PhaseAnswering
			ev = c.phaseEventLocked(domain.EventRoundAdvanced)
		} else {
			c.phase = domain.PhaseFinished
			c.currentRound = nil
			c.ranked = Rank(c.scores, c.displayNames())
			ev = c.phaseEventLocked(domain.EventSessionFinished)
			finished = true
		}
	default:
		c.mu.Unlock()
		return domain.ErrInvalidPhase
	}
	c.mu.Unlock()

	if err := c.publish(ev); err != nil {
		return err
	}
	if finished {
		return c.finalize(ctx)
	}
	return nil
}

// SubmitAnswer records this participant's answer for the current question
// and fans it out. Acceptance is decided locally, before the record
// necessarily reaches any other client.
func (c *Coordinator) SubmitAnswer(questionIndex int, value string) (domain.Answer, error) {
	c.mu.RLock()
	phase := c.phase
	currentIndex := c.currentIndex
	round := c.currentRound
	c.mu.RUnlock()

	if phase != domain.PhaseAnswering || round == nil {
		return domain.Answer{}, domain.ErrInvalidPhase
	}
	if questionIndex != currentIndex {
		return domain.Answer{}, domain.ErrRoundMismatch
	}

	answer, err := c.ledger.Submit(c.self.ID, *round, value)
	if err != nil {
		return domain.Answer{}, err
	}

	if err := c.channel.Broadcast(domain.Event{
		Type:   domain.EventAnswerSubmitted,
		Answer: &answer,
	}); err != nil {
		log.Printf("session %s: answer broadcast: %v", c.meta.SessionID, err)
	}
	c.notify()
	return answer, nil
}

// ApplyRemoteEvent mirrors a broadcast into local state. Phase events are
// full-state replacements guarded by a strictly increasing sequence, so
// duplicates and reordered deliveries are dropped rather than applied.
func (c *Coordinator) ApplyRemoteEvent(ev domain.Event) error {
	if ev.Type == domain.EventAnswerSubmitted {
		if ev.Answer == nil {
			return domain.ErrUnknownEvent
		}
		// First write wins; our own loopback and duplicate deliveries land here.
		if _, err := c.ledger.Record(*ev.Answer); err != nil {
			return nil
		}
		c.notify()
		return nil
	}

	if !ev.IsPhaseEvent() || ev.State == nil {
		return domain.ErrUnknownEvent
	}

	c.mu.Lock()
	if ev.Sequence <= c.lastSeq {
		c.mu.Unlock()
		return domain.ErrStaleEvent
	}
	if c.phase == domain.PhaseFinished {
		c.mu.Unlock()
		return domain.ErrInvalidPhase
	}
	c.lastSeq = ev.Sequence
	c.phase = ev.State.Phase
	c.currentIndex = ev.State.CurrentQuestionIndex
	c.currentRound = nil
	if ev.State.CurrentRound != nil {
		round := *ev.State.CurrentRound
		c.currentRound = &round
	}
	c.scores = make(map[string]domain.ScoreEntry, len(ev.State.Scores))
	for id, entry := range ev.State.Scores {
		c.scores[id] = entry
	}
	finished := c.phase == domain.PhaseFinished
	if finished {
		c.ranked = Rank(c.scores, c.displayNames())
	}
	c.mu.Unlock()

	c.notify()
	if finished {
		return c.finalize(context.Background())
	}
	return nil
}

// Snapshot assembles the current observable state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	snap := Snapshot{
		SessionID:            c.meta.SessionID,
		Phase:                c.phase,
		CurrentQuestionIndex: c.currentIndex,
		Scores:               copyScores(c.scores),
		RankedResults:        c.ranked,
	}
	if c.currentRound != nil {
		round := *c.currentRound
		snap.CurrentRound = &round
	}
	c.mu.RUnlock()

	snap.AnsweredCount = c.ledger.CountFor(snap.CurrentQuestionIndex)

	snap.Presence = c.presence.Snapshot()
	snap.CanStart = snap.Phase == domain.PhaseLobby && c.presence.ReadyNonHostCount() >= 1
	// A session with a silent host mid-game is stalled: nobody else may
	// force a transition, so the UI surfaces the condition instead.
	if snap.Phase == domain.PhaseAnswering || snap.Phase == domain.PhaseResolving {
		snap.Stalled = !c.presence.HostAlive()
	}
	return snap
}

// Subscribe returns a channel of snapshots for the UI. The caller must invoke
// the returned cancel function to avoid leaks.
func (c *Coordinator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	c.mu.Unlock()

	ch <- c.Snapshot()

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

// Close tears down the channel handle. The coordinator is unusable after.
func (c *Coordinator) Close() error {
	return c.channel.Unsubscribe()
}

func (c *Coordinator) publish(ev domain.Event) error {
	if err := c.channel.Broadcast(ev); err != nil {
		return err
	}
	c.notify()
	return nil
}

func (c *Coordinator) finalize(ctx context.Context) error {
	c.mu.RLock()
	scores := copyScores(c.scores)
	c.mu.RUnlock()
	_, err := c.aggregator.Finalize(ctx, c.meta.SessionID, scores, c.displayNames(), c.now())
	if err != nil {
		log.Printf("session %s: persist results: %v", c.meta.SessionID, err)
	}
	return err
}

// phaseEventLocked stamps the next sequence number and captures the full
// state. The host pre-applies its own sequence so the loopback delivery of
// its own broadcast is dropped as stale.
func (c *Coordinator) phaseEventLocked(typ domain.EventType) domain.Event {
	c.lastSeq++
	state := &domain.SessionState{
		SessionID:            c.meta.SessionID,
		Phase:                c.phase,
		CurrentQuestionIndex: c.currentIndex,
		Scores:               copyScores(c.scores),
	}
	if c.currentRound != nil {
		round := *c.currentRound
		state.CurrentRound = &round
	}
	return domain.Event{Type: typ, Sequence: c.lastSeq, State: state}
}

// stampRound copies the round from the question set and fixes its open/close
// window. The round is immutable once broadcast.
func (c *Coordinator) stampRound(index int) domain.QuestionRound {
	round := c.meta.QuestionSet.Rounds[index]
	round.Index = index
	round.OpensAt = c.now()
	round.ClosesAt = round.OpensAt.Add(c.settings.RoundDuration)
	return round
}

func (c *Coordinator) displayNames() map[string]string {
	names := make(map[string]string)
	for id, rec := range c.presence.Snapshot() {
		names[id] = rec.DisplayName
	}
	return names
}

func (c *Coordinator) notify() {
	snap := c.Snapshot()
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func copyScores(scores map[string]domain.ScoreEntry) map[string]domain.ScoreEntry {
	out := make(map[string]domain.ScoreEntry, len(scores))
	for id, entry := range scores {
		out[id] = entry
	}
	return out
}
