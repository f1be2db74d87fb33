// Package chatroom implements the realtime direct-messaging core: one
// Session per open room, owning an optimistic timeline, a typing indicator,
// a read cursor, and the connection-health projection.
package chatroom

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gigmarket/backend/internal/config"
	"gigmarket/backend/internal/models"
	"gigmarket/backend/internal/realtime"
)

// Store is the persistence slice a session needs. Satisfied by
// storage.Storage.
type Store interface {
	GetRecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error)
	SaveMessage(ctx context.Context, msg *models.Message) error
	PublishMessage(ctx context.Context, msg models.Message) error
	MarkRead(ctx context.Context, roomID, userID string, at time.Time) error
}

type sendResult struct {
	pendingID string
	err       error
}

// Session is the controller for one viewer's visit to one room. All state
// is owned by the single run goroutine; the event channel, the presence
// channel, and the user's commands all feed it through channels, so no
// handler ever observes another mid-flight.
//
// No two sessions for the same room coexist in one client; the UI opens a
// session on room entry and closes it on navigation away.
type Session struct {
	RoomID string
	UserID string

	store  Store
	rt     realtime.Opener
	client Client
	logger zerolog.Logger

	sessionKey string
	timeline   *Timeline
	conn       *connState

	otherTyping  bool
	typingActive bool
	typingIdle   time.Duration
	typingTimer  *time.Timer

	// single in-flight send per session; concurrent submits are
	// rejected, not queued.
	sending bool

	events   realtime.EventSubscription
	presence realtime.PresenceSubscription

	commandCh  chan models.ClientCommand
	insertCh   chan models.Message
	statusCh   chan models.ConnectionStatus
	syncCh     chan models.PresenceSnapshot
	sendDoneCh chan sendResult

	ctx       context.Context
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession wires a session for one viewer and room. Call Start to
// subscribe and begin processing.
func NewSession(store Store, rt realtime.Opener, client Client, roomID string, logger zerolog.Logger) *Session {
	return &Session{
		RoomID:     roomID,
		UserID:     client.GetUserID(),
		store:      store,
		rt:         rt,
		client:     client,
		logger:     logger.With().Str("room_id", roomID).Str("user_id", client.GetUserID()).Logger(),
		sessionKey: uuid.New().String(),
		timeline:   NewTimeline(),
		conn:       newConnState(),
		typingIdle: config.TypingIdleTimeout,
		commandCh:  make(chan models.ClientCommand, 16),
		insertCh:   make(chan models.Message, 64),
		statusCh:   make(chan models.ConnectionStatus, 4),
		syncCh:     make(chan models.PresenceSnapshot, 16),
		sendDoneCh: make(chan sendResult, 1),
		done:       make(chan struct{}),
	}
}

// Start opens both channel subscriptions, seeds the timeline from the
// backfill, marks the room read, and launches the run loop.
//
// The event subscription is established before the backfill read so no
// insert can fall into the gap between the two; anything delivered both
// ways is collapsed by the timeline's duplicate guard.
func (s *Session) Start(ctx context.Context) error {
	s.ctx = ctx

	s.events = s.rt.OpenEvents(ctx, s.RoomID, s.deliverInsert, s.deliverStatus)
	s.presence = s.rt.OpenPresence(ctx, s.RoomID, s.sessionKey, s.deliverSync)

	backfill, err := s.store.GetRecentMessages(ctx, s.RoomID, config.BackfillLimit)
	if err != nil {
		s.events.Close()
		s.presence.Close()
		return fmt.Errorf("backfill for room %s: %w", s.RoomID, err)
	}
	s.timeline.Seed(backfill)
	s.pushEvent(models.ViewEvent{Type: models.ViewBackfill, Messages: s.timeline.Messages()})

	s.markRead()

	go s.run()
	return nil
}

// HandleCommand feeds a UI command into the session. A no-op once the
// session is closed.
func (s *Session) HandleCommand(cmd models.ClientCommand) {
	select {
	case s.commandCh <- cmd:
	case <-s.done:
	}
}

// Close tears the session down: both subscriptions are dropped, the typing
// timer is cleared, and any in-flight write completion becomes a no-op.
// Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// deliverInsert, deliverStatus and deliverSync run on the subscription
// goroutines; they only hand off into the run loop.
func (s *Session) deliverInsert(msg models.Message) {
	select {
	case s.insertCh <- msg:
	case <-s.done:
	}
}

func (s *Session) deliverStatus(st models.ConnectionStatus) {
	select {
	case s.statusCh <- st:
	case <-s.done:
	}
}

func (s *Session) deliverSync(snapshot models.PresenceSnapshot) {
	select {
	case s.syncCh <- snapshot:
	case <-s.done:
	}
}

func (s *Session) run() {
	defer func() {
		s.events.Close()
		s.presence.Close()
		s.clearTypingTimer()
		s.client.Close()
		s.logger.Info().Msg("room session closed")
	}()

	for {
		var typingIdleC <-chan time.Time
		if s.typingTimer != nil {
			typingIdleC = s.typingTimer.C
		}

		select {
		case <-s.done:
			return
		case cmd := <-s.commandCh:
			s.handleCommand(cmd)
		case msg := <-s.insertCh:
			s.handleInsert(msg)
		case st := <-s.statusCh:
			s.handleStatus(st)
		case snapshot := <-s.syncCh:
			s.handleSync(snapshot)
		case res := <-s.sendDoneCh:
			s.handleSendResult(res)
		case <-typingIdleC:
			s.typingTimer = nil
			s.handleTypingIdle()
		}
	}
}

func (s *Session) handleCommand(cmd models.ClientCommand) {
	switch cmd.Action {
	case "send":
		s.handleSend(cmd.Content, cmd.ClientRef)
	case "typing":
		s.handleTyping()
	default:
		s.logger.Warn().Str("action", cmd.Action).Msg("ignoring unknown client command")
	}
}

// handleInsert processes one durable insert event from the room's stream.
func (s *Session) handleInsert(msg models.Message) {
	promotedID, appended := s.timeline.IngestDurable(msg)
	switch {
	case promotedID != "":
		// Optimistic-to-confirmed promotion: same render position,
		// no flicker on the client.
		s.pushEvent(models.ViewEvent{Type: models.ViewMessagePromoted, Message: &msg, PendingID: promotedID})
	case appended:
		s.pushEvent(models.ViewEvent{Type: models.ViewMessageAppended, Message: &msg})
		if msg.SenderID != s.UserID {
			// The viewer has this room open, so inbound traffic
			// advances the read cursor.
			s.markRead()
		}
	default:
		// Redelivered id, e.g. after a broker hiccup. Nothing to do.
	}
}

func (s *Session) handleStatus(st models.ConnectionStatus) {
	current, changed := s.conn.Apply(st)
	if !changed {
		return
	}
	if current == models.StatusDisconnected {
		s.logger.Warn().Msg("event channel disconnected; manual reload required")
	}
	s.pushEvent(models.ViewEvent{Type: models.ViewStatusChanged, Status: current})
}

func (s *Session) handleSync(snapshot models.PresenceSnapshot) {
	typing := snapshot.OtherTyping(s.UserID)
	if typing == s.otherTyping {
		return
	}
	s.otherTyping = typing
	s.pushEvent(models.ViewEvent{Type: models.ViewTypingChanged, OtherTyping: typing})
}

// markRead advances the viewer's read cursor. Fire-and-forget: failures are
// logged and never block message display. Runs on its own context so a
// teardown mid-flight is harmless.
func (s *Session) markRead() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.MarkRead(ctx, s.RoomID, s.UserID, time.Now()); err != nil {
			s.logger.Warn().Err(err).Msg("read cursor update failed")
		}
	}()
}

// pushEvent hands a view event to the client without ever blocking the run
// loop. A full buffer means the socket is dead or hopelessly behind, so the
// session shuts down rather than rendering a stale view.
func (s *Session) pushEvent(ev models.ViewEvent) {
	select {
	case s.client.GetSendChannel() <- ev:
	default:
		s.logger.Warn().Str("event", ev.Type).Msg("client send buffer full, closing session")
		go s.Close()
	}
}
