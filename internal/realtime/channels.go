package realtime

import (
	"context"

	"github.com/rs/zerolog"
)

// EventSubscription is an open insert-event handle, as seen by a session.
type EventSubscription interface {
	Close()
}

// PresenceSubscription is an open presence handle, as seen by a session.
type PresenceSubscription interface {
	Track(ctx context.Context, userID string, isTyping bool) error
	Close()
}

// Opener creates per-room channel handles. The room session depends on this
// interface so tests can substitute fakes for the Redis transport.
type Opener interface {
	OpenEvents(ctx context.Context, roomID string, onInsert InsertFunc, onStatus StatusFunc) EventSubscription
	OpenPresence(ctx context.Context, roomID, sessionKey string, onSync SyncFunc) PresenceSubscription
}

// Source is the storage slice both channel kinds draw on.
type Source interface {
	EventSource
	PresenceSource
}

// Channels is the Redis-backed Opener.
type Channels struct {
	src    Source
	logger zerolog.Logger
}

func NewChannels(src Source, logger zerolog.Logger) *Channels {
	return &Channels{src: src, logger: logger}
}

func (c *Channels) OpenEvents(ctx context.Context, roomID string, onInsert InsertFunc, onStatus StatusFunc) EventSubscription {
	return OpenEvents(ctx, c.src, roomID, onInsert, onStatus, c.logger)
}

func (c *Channels) OpenPresence(ctx context.Context, roomID, sessionKey string, onSync SyncFunc) PresenceSubscription {
	return OpenPresence(ctx, c.src, roomID, sessionKey, onSync, c.logger)
}
