package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"gigmarket/backend/internal/models"
)

// PresenceSource is the slice of storage the presence channel needs.
type PresenceSource interface {
	SubscribePresence(ctx context.Context, roomID string) *redis.PubSub
	TrackPresence(ctx context.Context, roomID, sessionKey string, entry models.PresenceEntry) error
	UntrackPresence(ctx context.Context, roomID, sessionKey string) error
}

// SyncFunc receives the full presence snapshot on every change.
type SyncFunc func(models.PresenceSnapshot)

// PresenceHandle is one session's membership in a room's ephemeral presence
// group. Nothing it transports is persisted; a new handle starts from the
// next snapshot.
type PresenceHandle struct {
	roomID     string
	sessionKey string
	src        PresenceSource
	pubsub     *redis.PubSub
	closeOnce  sync.Once
	closed     atomic.Bool
	logger     zerolog.Logger
}

// OpenPresence joins a room's presence group under a unique session key and
// starts delivering full snapshots to onSync.
func OpenPresence(ctx context.Context, src PresenceSource, roomID, sessionKey string, onSync SyncFunc, logger zerolog.Logger) *PresenceHandle {
	h := &PresenceHandle{
		roomID:     roomID,
		sessionKey: sessionKey,
		src:        src,
		pubsub:     src.SubscribePresence(ctx, roomID),
		logger:     logger.With().Str("room_id", roomID).Logger(),
	}

	go func() {
		for {
			raw, err := h.pubsub.ReceiveMessage(ctx)
			if err != nil {
				// Presence is ephemeral: a lost subscription just
				// freezes the indicator until a new session opens.
				if !h.closed.Load() {
					h.logger.Warn().Err(err).Msg("presence subscription lost")
					h.Close()
				}
				return
			}

			var snapshot models.PresenceSnapshot
			if err := json.Unmarshal([]byte(raw.Payload), &snapshot); err != nil {
				h.logger.Warn().Err(err).Msg("dropping malformed presence sync")
				continue
			}
			onSync(snapshot)
		}
	}()

	return h
}

// Track broadcasts this session's own state to the room.
func (h *PresenceHandle) Track(ctx context.Context, userID string, isTyping bool) error {
	if h.closed.Load() {
		return nil
	}
	return h.src.TrackPresence(ctx, h.roomID, h.sessionKey, models.PresenceEntry{
		UserID:   userID,
		IsTyping: isTyping,
	})
}

// Close removes this session's entry and unsubscribes. Idempotent. Uses its
// own short deadline so teardown never hangs on a degraded connection.
func (h *PresenceHandle) Close() {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.src.UntrackPresence(ctx, h.roomID, h.sessionKey); err != nil {
			h.logger.Warn().Err(err).Msg("untracking presence")
		}
		if err := h.pubsub.Close(); err != nil {
			h.logger.Warn().Err(err).Msg("closing presence subscription")
		}
	})
}
