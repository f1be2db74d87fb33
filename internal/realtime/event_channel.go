// Package realtime wraps the Redis Pub/Sub transport in per-room channel
// handles with explicit lifecycles. A handle goes connecting → connected →
// disconnected; disconnected is terminal and recovery means opening a new
// handle, never a silent resubscribe.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"gigmarket/backend/internal/models"
)

// EventSource is the slice of storage the event channel needs.
type EventSource interface {
	SubscribeEvents(ctx context.Context, roomID string) *redis.PubSub
}

// InsertFunc receives every durable message inserted into the room.
type InsertFunc func(models.Message)

// StatusFunc receives subscription lifecycle transitions. Errors are never
// delivered any other way.
type StatusFunc func(models.ConnectionStatus)

// EventHandle is one open per-room insert-event subscription.
type EventHandle struct {
	roomID    string
	pubsub    *redis.PubSub
	closeOnce sync.Once
	closed    atomic.Bool
	logger    zerolog.Logger
}

// OpenEvents subscribes to a room's insert events. onStatus fires with
// "connecting" before OpenEvents returns, then "connected" once the
// subscription is acknowledged, and "disconnected" exactly once when the
// subscription dies. Callbacks run on a single goroutine, in order.
//
// The subscription is established before the caller performs the backfill
// read, so no insert can fall between the two.
func OpenEvents(ctx context.Context, src EventSource, roomID string, onInsert InsertFunc, onStatus StatusFunc, logger zerolog.Logger) *EventHandle {
	h := &EventHandle{
		roomID: roomID,
		pubsub: src.SubscribeEvents(ctx, roomID),
		logger: logger.With().Str("room_id", roomID).Logger(),
	}

	onStatus(models.StatusConnecting)

	go func() {
		// Receive blocks until the SUBSCRIBE is acknowledged (or fails).
		if _, err := h.pubsub.Receive(ctx); err != nil {
			if !h.closed.Load() {
				h.logger.Error().Err(err).Msg("event subscription failed")
				onStatus(models.StatusDisconnected)
			}
			return
		}
		onStatus(models.StatusConnected)

		// An explicit receive loop instead of pubsub.Channel(): the
		// channel helper resubscribes after a drop, which could skip
		// events invisibly. A receive error ends the handle for good.
		for {
			raw, err := h.pubsub.ReceiveMessage(ctx)
			if err != nil {
				if !h.closed.Load() {
					h.logger.Warn().Err(err).Msg("event subscription lost")
					onStatus(models.StatusDisconnected)
					h.Close()
				}
				return
			}

			var msg models.Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				h.logger.Warn().Err(err).Msg("dropping malformed insert event")
				continue
			}
			onInsert(msg)
		}
	}()

	return h
}

// Close unsubscribes. Safe to call multiple times, including concurrently
// with an unmount race.
func (h *EventHandle) Close() {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		if err := h.pubsub.Close(); err != nil {
			h.logger.Warn().Err(err).Msg("closing event subscription")
		}
	})
}
