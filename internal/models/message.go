package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PendingIDPrefix marks locally-generated message ids. Durable ids are
// store-assigned UUIDs, so the two id spaces never collide.
const PendingIDPrefix = "temp-"

// Message represents one direct message in a chat room. Durable rows live in
// PostgreSQL; pending messages exist only inside a room session until the
// matching insert event confirms them.
type Message struct {
	// ID is the store-assigned UUID for durable messages, or a
	// "temp-<ts>" id for pending ones.
	ID string `gorm:"primaryKey" json:"id"`
	// RoomID is the chat room the message belongs to.
	RoomID string `gorm:"type:uuid;not null;index:idx_room_created,priority:1" json:"room_id"`
	// SenderID is the user who sent the message.
	SenderID string `gorm:"type:text;not null" json:"sender_id"`
	// Content is the message text, capped at 5000 code points.
	Content string `gorm:"type:text;not null" json:"content"`
	// CreatedAt orders messages within a room.
	CreatedAt time.Time `gorm:"index:idx_room_created,priority:2" json:"created_at"`
	// IsDeleted is the soft-delete flag; deleted rows are kept but
	// excluded from backfill reads.
	IsDeleted bool `gorm:"not null;default:false" json:"is_deleted"`

	// ClientRef carries an optional client-generated correlation ref
	// through the write path. Reconciliation does not match on it yet.
	ClientRef string `gorm:"-" json:"client_ref,omitempty"`
}

// BeforeCreate assigns a durable UUID if the row does not have one yet and
// clears any locally-stamped CreatedAt so gorm fills it from the store's
// clock. Pending messages carry the sender's wall time for optimistic
// rendering; persisting it would let clock skew reorder the room on reload.
func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" || strings.HasPrefix(m.ID, PendingIDPrefix) {
		m.ID = uuid.New().String()
		m.CreatedAt = time.Time{}
	}
	return
}

// IsPending reports whether the message carries a locally-generated id.
func (m *Message) IsPending() bool {
	return strings.HasPrefix(m.ID, PendingIDPrefix)
}
