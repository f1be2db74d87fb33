package chatroom

import (
	"gigmarket/backend/internal/models"
)

// handleSend runs the submit path: validate before any network call, stop
// the typing broadcast, append the optimistic entry, then issue the durable
// write off the loop. One send may be in flight at a time.
func (s *Session) handleSend(content, clientRef string) {
	if s.sending {
		s.reject(ErrSendInFlight.Error(), content)
		return
	}

	msg := NewPendingMessage(s.RoomID, s.UserID, content, clientRef)
	if err := s.timeline.AppendPending(msg); err != nil {
		s.reject(err.Error(), content)
		return
	}

	s.stopTyping()
	s.pushEvent(models.ViewEvent{Type: models.ViewMessageAppended, Message: &msg})

	s.sending = true
	go func(pending models.Message) {
		durable := pending
		err := s.store.SaveMessage(s.ctx, &durable)
		if err == nil {
			// The insert event is how every subscriber, this session
			// included, learns about the durable row.
			if pubErr := s.store.PublishMessage(s.ctx, durable); pubErr != nil {
				s.logger.Warn().Err(pubErr).Msg("durable row saved but event publish failed")
			}
		}
		select {
		case s.sendDoneCh <- sendResult{pendingID: pending.ID, err: err}:
		case <-s.done:
		}
	}(msg)
}

// handleSendResult finishes a write. Failure rolls the pending entry back
// out and restores the content for resubmission; there is no automatic
// retry against a possibly-degraded connection.
func (s *Session) handleSendResult(res sendResult) {
	s.sending = false
	if res.err == nil {
		return
	}
	s.logger.Error().Err(res.err).Msg("message write failed, rolling back")
	if content, ok := s.timeline.Rollback(res.pendingID); ok {
		s.pushEvent(models.ViewEvent{Type: models.ViewMessageRemoved, PendingID: res.pendingID})
		s.reject("failed to send message", content)
	}
}

// reject surfaces a send failure inline and hands the content back to the
// input field.
func (s *Session) reject(reason, content string) {
	s.pushEvent(models.ViewEvent{
		Type:            models.ViewSendRejected,
		Error:           reason,
		RestoredContent: content,
	})
}
