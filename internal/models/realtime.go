package models

// ConnectionStatus is the lifecycle state of a realtime subscription.
// It is derived solely from channel callbacks, never set by application
// logic directly.
type ConnectionStatus string

const (
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
)

// PresenceEntry is one session's ephemeral state inside a room.
type PresenceEntry struct {
	UserID   string `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

// PresenceSnapshot is the full presence set for a room, keyed by session
// key. Every sync delivers the whole snapshot, not a diff.
type PresenceSnapshot map[string]PresenceEntry

// OtherTyping reports whether any session other than selfID is typing.
func (s PresenceSnapshot) OtherTyping(selfID string) bool {
	for _, e := range s {
		if e.UserID != selfID && e.IsTyping {
			return true
		}
	}
	return false
}

// ClientCommand is a frame sent by the UI over the room websocket.
type ClientCommand struct {
	// Action is one of "send" or "typing".
	Action string `json:"action"`
	// Content is the message text for "send".
	Content string `json:"content,omitempty"`
	// ClientRef is an optional correlation ref echoed on view events.
	ClientRef string `json:"client_ref,omitempty"`
}

// View event types pushed to the UI by a room session.
const (
	ViewBackfill        = "backfill"
	ViewMessageAppended = "message_appended"
	ViewMessagePromoted = "message_promoted"
	ViewMessageRemoved  = "message_removed"
	ViewStatusChanged   = "status_changed"
	ViewTypingChanged   = "typing_changed"
	ViewSendRejected    = "send_rejected"
)

// ViewEvent is a frame pushed by a room session to the UI. Exactly one of
// the payload fields is meaningful per Type.
type ViewEvent struct {
	Type string `json:"type"`
	// Message is set for message_appended and message_promoted.
	Message *Message `json:"message,omitempty"`
	// Messages is set for backfill.
	Messages []Message `json:"messages,omitempty"`
	// PendingID is set for message_promoted and message_removed.
	PendingID string `json:"pending_id,omitempty"`
	// Status is set for status_changed.
	Status ConnectionStatus `json:"status,omitempty"`
	// OtherTyping is set for typing_changed.
	OtherTyping bool `json:"other_typing,omitempty"`
	// Error and RestoredContent are set for send_rejected; the UI puts
	// the content back into the input field for resubmission.
	Error           string `json:"error,omitempty"`
	RestoredContent string `json:"restored_content,omitempty"`
}
