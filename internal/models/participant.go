package models

import "time"

// Participant captures per-room read state for one member.
// Primary key: (RoomID, UserID). Rows are provisioned together with the
// room; the messaging core only ever advances LastReadAt.
type Participant struct {
	RoomID     string    `gorm:"primaryKey;type:uuid" json:"room_id"`
	UserID     string    `gorm:"primaryKey;type:text" json:"user_id"`
	LastReadAt time.Time `json:"last_read_at"`
}
