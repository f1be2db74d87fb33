package chatroom

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gigmarket/backend/internal/config"
	"gigmarket/backend/internal/models"
)

var (
	// ErrEmptyContent rejects sends whose trimmed content is empty.
	ErrEmptyContent = errors.New("message content is empty")
	// ErrContentTooLong rejects content above the 5000 code-point cap.
	ErrContentTooLong = errors.New("message content is too long")
	// ErrSendInFlight rejects a send while another is unconfirmed.
	ErrSendInFlight = errors.New("previous message is still sending")
)

// NewPendingMessage builds a locally-originated message with a temp- id.
// The id space cannot collide with durable UUIDs.
func NewPendingMessage(roomID, senderID, content, clientRef string) models.Message {
	return models.Message{
		ID:        fmt.Sprintf("%s%d", models.PendingIDPrefix, time.Now().UnixNano()),
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now(),
		ClientRef: clientRef,
	}
}

// Timeline merges locally-originated pending messages with the confirmed
// event stream into one ordered, de-duplicated view. It is owned by a single
// session goroutine and needs no locking.
type Timeline struct {
	messages []models.Message
	// durable ids already ingested; channels may redeliver on reconnect.
	seen map[string]struct{}
}

func NewTimeline() *Timeline {
	return &Timeline{seen: make(map[string]struct{})}
}

// Seed loads the backfill: durable, non-deleted messages ascending by
// CreatedAt. Called once, before any live event is processed.
func (t *Timeline) Seed(backfill []models.Message) {
	t.messages = append(t.messages[:0], backfill...)
	for _, m := range backfill {
		t.seen[m.ID] = struct{}{}
	}
}

// AppendPending validates and inserts a pending message at the tail of the
// visible order. Oversized content is rejected, never truncated.
func (t *Timeline) AppendPending(msg models.Message) error {
	if strings.TrimSpace(msg.Content) == "" {
		return ErrEmptyContent
	}
	if utf8.RuneCountInString(msg.Content) > config.MaxContentRunes {
		return ErrContentTooLong
	}
	t.messages = append(t.messages, msg)
	return nil
}

// IngestDurable processes one insert event. A redelivered id leaves the
// timeline unchanged. A confirmation of an optimistic send replaces the
// first unmatched pending entry in place, so the message keeps its render
// position. Anything else appends at the tail.
//
// Matching is by (SenderID, Content); two identical unconfirmed sends are
// promoted first-in-first-matched, one pending entry per confirmation.
func (t *Timeline) IngestDurable(msg models.Message) (promotedID string, appended bool) {
	if _, dup := t.seen[msg.ID]; dup {
		return "", false
	}
	t.seen[msg.ID] = struct{}{}

	for i := range t.messages {
		m := &t.messages[i]
		if m.IsPending() && m.SenderID == msg.SenderID && m.Content == msg.Content {
			promotedID = m.ID
			t.messages[i] = msg
			return promotedID, false
		}
	}

	t.messages = append(t.messages, msg)
	return "", true
}

// Rollback removes a pending entry after a failed write and hands its
// content back so the caller can restore the input field.
func (t *Timeline) Rollback(pendingID string) (content string, ok bool) {
	for i := range t.messages {
		if t.messages[i].ID == pendingID && t.messages[i].IsPending() {
			content = t.messages[i].Content
			t.messages = append(t.messages[:i], t.messages[i+1:]...)
			return content, true
		}
	}
	return "", false
}

// Messages returns a copy of the rendered sequence.
func (t *Timeline) Messages() []models.Message {
	out := make([]models.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len reports the rendered sequence length.
func (t *Timeline) Len() int {
	return len(t.messages)
}
