package chatroom

import "gigmarket/backend/internal/models"

// connState projects raw subscription callbacks onto the three-state
// indicator the UI consumes. Disconnected is terminal for a handle, so any
// transition arriving afterwards is discarded; recovery means the caller
// opens a new session, never a silent reconnect.
type connState struct {
	current models.ConnectionStatus
}

func newConnState() *connState {
	return &connState{current: models.StatusConnecting}
}

// Apply folds in a status callback and reports whether the projection
// changed.
func (c *connState) Apply(st models.ConnectionStatus) (models.ConnectionStatus, bool) {
	if c.current == models.StatusDisconnected || st == c.current {
		return c.current, false
	}
	c.current = st
	return c.current, true
}

func (c *connState) Current() models.ConnectionStatus {
	return c.current
}
