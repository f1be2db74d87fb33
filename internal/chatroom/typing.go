package chatroom

import "time"

// Typing submission protocol: every keystroke broadcasts isTyping=true and
// resets a 2-second idle timer; expiry broadcasts isTyping=false. An
// explicit send stops the timer and clears the flag immediately, so the
// other party's indicator is never stale by more than the idle window.

// handleTyping processes one keystroke notification from the UI.
func (s *Session) handleTyping() {
	if !s.typingActive {
		s.typingActive = true
		s.track(true)
	}
	s.resetTypingTimer()
}

// handleTypingIdle fires when the idle timer expires with no further
// keystrokes.
func (s *Session) handleTypingIdle() {
	if s.typingActive {
		s.typingActive = false
		s.track(false)
	}
}

// stopTyping cancels the timer and clears the broadcast, used on send.
func (s *Session) stopTyping() {
	s.clearTypingTimer()
	if s.typingActive {
		s.typingActive = false
		s.track(false)
	}
}

func (s *Session) track(isTyping bool) {
	if err := s.presence.Track(s.ctx, s.UserID, isTyping); err != nil {
		s.logger.Warn().Err(err).Bool("is_typing", isTyping).Msg("presence track failed")
	}
}

func (s *Session) resetTypingTimer() {
	if s.typingTimer == nil {
		s.typingTimer = time.NewTimer(s.typingIdle)
		return
	}
	if !s.typingTimer.Stop() {
		select {
		case <-s.typingTimer.C:
		default:
		}
	}
	s.typingTimer.Reset(s.typingIdle)
}

func (s *Session) clearTypingTimer() {
	if s.typingTimer == nil {
		return
	}
	if !s.typingTimer.Stop() {
		select {
		case <-s.typingTimer.C:
		default:
		}
	}
	s.typingTimer = nil
}
