package session

import (
	"context"

	"quiz-coordinator/internal/domain"
	"quiz-coordinator/internal/pubsub"
)

// MetadataProvider resolves session metadata (host, deck, question set) from
// the external collaborator that created the session.
type MetadataProvider interface {
	GetSessionMeta(ctx context.Context, sessionID string) (domain.SessionMetadata, error)
}

// Factory opens one coordinator per connecting participant, wired to a
// channel handle, resolved metadata, and the results sink.
type Factory struct {
	hub      pubsub.Hub
	provider MetadataProvider
	sink     ResultsSink
	settings Settings
}

func NewFactory(hub pubsub.Hub, provider MetadataProvider, sink ResultsSink, settings Settings) *Factory {
	return &Factory{hub: hub, provider: provider, sink: sink, settings: settings}
}

// Open subscribes to the session's channel, builds the participant's
// coordinator, and joins the roster. Host status comes from the metadata,
// never from the caller.
func (f *Factory) Open(ctx context.Context, sessionID, userID, displayName string) (*Coordinator, error) {
	meta, err := f.provider.GetSessionMeta(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	channel, err := f.hub.Subscribe(sessionID)
	if err != nil {
		return nil, err
	}

	self := domain.Participant{
		ID:          userID,
		DisplayName: displayName,
		IsHost:      userID == meta.HostID,
	}
	coordinator := New(channel, self, meta, NewResultsAggregator(f.sink), f.settings)
	if err := coordinator.Join(); err != nil {
		_ = channel.Unsubscribe()
		return nil, err
	}
	return coordinator, nil
}
