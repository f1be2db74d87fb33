package chatroom

import "gigmarket/backend/internal/models"

// Client is the interface for the UI-facing side of a room session (e.g. a
// WebSocket connection). It abstracts the delivery mechanism so the session
// can push view events without knowing what renders them.
type Client interface {
	// GetUserID returns the viewer's user id.
	GetUserID() string

	// GetSendChannel returns the channel the session pushes view events
	// into. It is a send-only channel from the session's perspective.
	GetSendChannel() chan<- models.ViewEvent

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts down the client's connection and send channel. Called
	// by the session during teardown, exactly once.
	Close()
}
