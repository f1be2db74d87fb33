package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gigmarket/backend/internal/config"
	"gigmarket/backend/internal/models"
)

var (
	// ErrRoomNotFound is returned when a room id does not exist.
	ErrRoomNotFound = errors.New("chat room not found")
	// ErrMessageNotFound is returned when a message id does not exist or
	// does not belong to the caller.
	ErrMessageNotFound = errors.New("message not found")
)

// Storage is the persistence and transport contract the messaging core
// depends on. The concrete Service speaks PostgreSQL for durable rows and
// Redis Pub/Sub for realtime fan-out.
type Storage interface {
	// SaveMessage inserts a durable message row. The store assigns the
	// durable id and CreatedAt; pending ids are discarded on insert.
	SaveMessage(ctx context.Context, msg *models.Message) error
	// PublishMessage broadcasts an inserted row to the room's event
	// channel so every open subscription sees it.
	PublishMessage(ctx context.Context, msg models.Message) error
	// GetRecentMessages returns the most recent limit non-deleted
	// messages of a room, ascending by CreatedAt.
	GetRecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error)
	// SoftDeleteMessage flags a message as deleted without removing it.
	// Only the sender may delete; anything else is ErrMessageNotFound.
	SoftDeleteMessage(ctx context.Context, messageID, senderID string) error

	GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error)
	// EnsureRoom provisions a room (and its participant cursors) between
	// two users if none exists yet. Called by the marketplace when an
	// application is accepted, not by the messaging core.
	EnsureRoom(ctx context.Context, user1ID, user2ID string) (*models.ChatRoom, error)

	// MarkRead advances a participant's read cursor to at.
	MarkRead(ctx context.Context, roomID, userID string, at time.Time) error

	// TrackPresence stores one session's presence entry and broadcasts
	// the full room snapshot. UntrackPresence removes the entry and
	// broadcasts likewise.
	TrackPresence(ctx context.Context, roomID, sessionKey string, entry models.PresenceEntry) error
	UntrackPresence(ctx context.Context, roomID, sessionKey string) error

	// SubscribeEvents and SubscribePresence open per-room Pub/Sub
	// subscriptions consumed by the realtime channels.
	SubscribeEvents(ctx context.Context, roomID string) *redis.PubSub
	SubscribePresence(ctx context.Context, roomID string) *redis.PubSub
}

// Service implements Storage over gorm and go-redis.
type Service struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Logger zerolog.Logger
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client, logger zerolog.Logger) *Service {
	return &Service{DB: db, Redis: rdb, Logger: logger}
}

// Redis key patterns:
// chat:room:{room_id}:events     PUBSUB<message json>   - durable insert events
// chat:room:{room_id}:presence   PUBSUB<snapshot json>  - full presence snapshots
// chat:room:{room_id}:typing     HASH<session_key,json> - current presence entries

func roomEventsKey(roomID string) string {
	return fmt.Sprintf("chat:room:%s:events", roomID)
}

func roomPresenceKey(roomID string) string {
	return fmt.Sprintf("chat:room:%s:presence", roomID)
}

func roomTypingKey(roomID string) string {
	return fmt.Sprintf("chat:room:%s:typing", roomID)
}

// SaveMessage inserts the message into PostgreSQL. BeforeCreate replaces any
// pending id with a durable UUID and gorm fills CreatedAt.
func (s *Service) SaveMessage(ctx context.Context, msg *models.Message) error {
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("save message for room %s: %w", msg.RoomID, err)
	}
	return nil
}

// PublishMessage publishes the durable row to the room's event channel.
func (s *Service) PublishMessage(ctx context.Context, msg models.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := s.Redis.Publish(ctx, roomEventsKey(msg.RoomID), payload).Err(); err != nil {
		return fmt.Errorf("publish message for room %s: %w", msg.RoomID, err)
	}
	return nil
}

// GetRecentMessages loads the newest limit rows and returns them ascending
// by CreatedAt, skipping soft-deleted ones.
func (s *Service) GetRecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := s.DB.WithContext(ctx).
		Where("room_id = ? AND is_deleted = ?", roomID, false).
		Order("created_at desc").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("get recent messages for room %s: %w", roomID, err)
	}
	// Query is newest-first so the limit bites the right end; flip back
	// to ascending for the timeline.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// SoftDeleteMessage flags a message as deleted. The row stays for audit;
// backfill reads skip it.
func (s *Service) SoftDeleteMessage(ctx context.Context, messageID, senderID string) error {
	res := s.DB.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND sender_id = ?", messageID, senderID).
		Update("is_deleted", true)
	if res.Error != nil {
		return fmt.Errorf("soft delete message %s: %w", messageID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (s *Service) GetRoomByID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.DB.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return &room, nil
}

// EnsureRoom finds or creates the room between two users, provisioning the
// participant cursor rows alongside it.
func (s *Service) EnsureRoom(ctx context.Context, user1ID, user2ID string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.DB.WithContext(ctx).
		Where("(user1_id = ? AND user2_id = ?) OR (user1_id = ? AND user2_id = ?)",
			user1ID, user2ID, user2ID, user1ID).
		First(&room).Error
	if err == nil {
		return &room, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("ensure room: %w", err)
	}

	room = models.ChatRoom{
		RoomID:  uuid.New().String(),
		User1ID: user1ID,
		User2ID: user2ID,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		participants := []models.Participant{
			{RoomID: room.RoomID, UserID: user1ID},
			{RoomID: room.RoomID, UserID: user2ID},
		}
		return tx.Create(&participants).Error
	})
	if err != nil {
		return nil, fmt.Errorf("ensure room: %w", err)
	}
	return &room, nil
}

// MarkRead upserts the participant's read cursor, keyed (room_id, user_id).
func (s *Service) MarkRead(ctx context.Context, roomID, userID string, at time.Time) error {
	row := models.Participant{RoomID: roomID, UserID: userID, LastReadAt: at}
	return s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"last_read_at": at}),
		}).
		Create(&row).Error
}

// TrackPresence stores the session's entry in the room's typing hash and
// broadcasts the resulting full snapshot.
func (s *Service) TrackPresence(ctx context.Context, roomID, sessionKey string, entry models.PresenceEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	pipe := s.Redis.TxPipeline()
	pipe.HSet(ctx, roomTypingKey(roomID), sessionKey, payload)
	pipe.Expire(ctx, roomTypingKey(roomID), config.PresenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("track presence for room %s: %w", roomID, err)
	}
	return s.publishPresenceSnapshot(ctx, roomID)
}

// UntrackPresence removes the session's entry and broadcasts the snapshot.
func (s *Service) UntrackPresence(ctx context.Context, roomID, sessionKey string) error {
	if err := s.Redis.HDel(ctx, roomTypingKey(roomID), sessionKey).Err(); err != nil {
		return fmt.Errorf("untrack presence for room %s: %w", roomID, err)
	}
	return s.publishPresenceSnapshot(ctx, roomID)
}

func (s *Service) publishPresenceSnapshot(ctx context.Context, roomID string) error {
	fields, err := s.Redis.HGetAll(ctx, roomTypingKey(roomID)).Result()
	if err != nil {
		return err
	}
	snapshot := make(models.PresenceSnapshot, len(fields))
	for key, raw := range fields {
		var entry models.PresenceEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			s.Logger.Warn().Str("room_id", roomID).Str("session_key", key).
				Err(err).Msg("skipping malformed presence entry")
			continue
		}
		snapshot[key] = entry
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, roomPresenceKey(roomID), payload).Err()
}

// SubscribeEvents opens the per-room insert-event subscription.
func (s *Service) SubscribeEvents(ctx context.Context, roomID string) *redis.PubSub {
	return s.Redis.Subscribe(ctx, roomEventsKey(roomID))
}

// SubscribePresence opens the per-room presence subscription.
func (s *Service) SubscribePresence(ctx context.Context, roomID string) *redis.PubSub {
	return s.Redis.Subscribe(ctx, roomPresenceKey(roomID))
}
