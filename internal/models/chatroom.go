package models

import "time"

// ChatRoom represents a two-party direct-message channel between a listing
// owner and an applicant. Rooms are provisioned outside the messaging core
// (when an application is accepted) and never change membership.
type ChatRoom struct {
	// RoomID is the unique identifier for the chat room (UUID).
	RoomID string `gorm:"primaryKey" json:"room_id"`
	// User1ID is the first participant (listing owner).
	User1ID string `gorm:"type:text;not null;index" json:"user1_id"`
	// User2ID is the second participant (applicant).
	User2ID string `gorm:"type:text;not null;index" json:"user2_id"`
	// CreatedAt is when the room was provisioned.
	CreatedAt time.Time `json:"created_at"`
}

// HasParticipant reports whether userID is one of the room's two members.
func (r *ChatRoom) HasParticipant(userID string) bool {
	return userID == r.User1ID || userID == r.User2ID
}

// OtherParticipant returns the counterpart of userID, or "" when userID is
// not a member.
func (r *ChatRoom) OtherParticipant(userID string) string {
	switch userID {
	case r.User1ID:
		return r.User2ID
	case r.User2ID:
		return r.User1ID
	}
	return ""
}
