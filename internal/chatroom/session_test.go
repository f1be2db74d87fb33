package chatroom_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gigmarket/backend/internal/chatroom"
	"gigmarket/backend/internal/models"
)

const settle = 150 * time.Millisecond

func newTestSession(t *testing.T, backfill []models.Message) (*chatroom.Session, *MockStore, *fakeRealtime, *mockClient) {
	t.Helper()

	storeMock := new(MockStore)
	storeMock.On("GetRecentMessages", mock.Anything, "room1", mock.AnythingOfType("int")).Return(backfill, nil)
	storeMock.On("MarkRead", mock.Anything, "room1", "user_A", mock.AnythingOfType("time.Time")).Return(nil)

	rt := newFakeRealtime()
	client := newMockClient("user_A")
	session := chatroom.NewSession(storeMock, rt, client, "room1", zerolog.Nop())
	return session, storeMock, rt, client
}

func TestSession_BackfillThenMarkRead(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	backfill := []models.Message{
		durableMsg("m-1", "user_B", "one", base),
		durableMsg("m-2", "user_B", "two", base.Add(time.Minute)),
		durableMsg("m-3", "user_B", "three", base.Add(2*time.Minute)),
	}
	session, storeMock, _, client := newTestSession(t, backfill)

	assert.NoError(t, session.Start(context.Background()))
	defer session.Close()
	time.Sleep(settle)

	events := client.drain()
	loaded := eventsOfType(events, models.ViewBackfill)
	assert.Len(t, loaded, 1)
	assert.Equal(t, backfill, loaded[0].Messages)

	// Opening a room with unread messages advances the read cursor.
	storeMock.AssertCalled(t, "MarkRead", mock.Anything, "room1", "user_A", mock.AnythingOfType("time.Time"))
}

func TestSession_SendPromotesWithoutDuplicate(t *testing.T) {
	session, storeMock, rt, client := newTestSession(t, nil)

	published := make(chan models.Message, 1)
	storeMock.On("SaveMessage", mock.Anything, mock.AnythingOfType("*models.Message")).
		Run(func(args mock.Arguments) {
			msg := args.Get(1).(*models.Message)
			msg.ID = "m-42"
			msg.CreatedAt = time.Now()
		}).Return(nil)
	storeMock.On("PublishMessage", mock.Anything, mock.AnythingOfType("models.Message")).
		Run(func(args mock.Arguments) {
			published <- args.Get(1).(models.Message)
		}).Return(nil)

	assert.NoError(t, session.Start(context.Background()))
	defer session.Close()
	time.Sleep(settle)
	client.drain()

	session.HandleCommand(models.ClientCommand{Action: "send", Content: "hi"})
	time.Sleep(settle)

	events := client.drain()
	appended := eventsOfType(events, models.ViewMessageAppended)
	assert.Len(t, appended, 1)
	pendingID := appended[0].Message.ID
	assert.True(t, strings.HasPrefix(pendingID, models.PendingIDPrefix))

	// The insert event for the durable row arrives, as it would from the
	// room's event stream.
	durable := <-published
	assert.Equal(t, "m-42", durable.ID)
	rt.emitInsert(durable)
	time.Sleep(settle)

	events = client.drain()
	promoted := eventsOfType(events, models.ViewMessagePromoted)
	assert.Len(t, promoted, 1)
	assert.Equal(t, pendingID, promoted[0].PendingID)
	assert.Equal(t, "m-42", promoted[0].Message.ID)
	assert.Empty(t, eventsOfType(events, models.ViewMessageAppended), "promotion must not append a second copy")

	// Own messages never advance the read cursor: only the open-time call.
	storeMock.AssertNumberOfCalls(t, "MarkRead", 1)
}

func TestSession_SendFailureRollsBackAndRestoresInput(t *testing.T) {
	session, storeMock, _, client := newTestSession(t, nil)

	storeMock.On("SaveMessage", mock.Anything, mock.AnythingOfType("*models.Message")).
		Return(errors.New("connection refused"))

	assert.NoError(t, session.Start(context.Background()))
	defer session.Close()
	time.Sleep(settle)
	client.drain()

	session.HandleCommand(models.ClientCommand{Action: "send", Content: "hello there"})
	time.Sleep(settle)

	events := client.drain()
	appended := eventsOfType(events, models.ViewMessageAppended)
	assert.Len(t, appended, 1)

	removed := eventsOfType(events, models.ViewMessageRemoved)
	assert.Len(t, removed, 1)
	assert.Equal(t, appended[0].Message.ID, removed[0].PendingID)

	rejected := eventsOfType(events, models.ViewSendRejected)
	assert.Len(t, rejected, 1)
	assert.Equal(t, "hello there", rejected[0].RestoredContent, "input is restored for resubmission")

	storeMock.AssertNotCalled(t, "PublishMessage", mock.Anything, mock.Anything)
}

func TestSession_RejectsOversizedSendBeforeAnyWrite(t *testing.T) {
	session, storeMock, _, client := newTestSession(t, nil)

	assert.NoError(t, session.Start(context.Background()))
	defer session.Close()
	time.Sleep(settle)
	client.drain()

	session.HandleCommand(models.ClientCommand{Action: "send", Content: strings.Repeat("x", 5001)})
	time.Sleep(settle)

	events := client.drain()
	assert.Empty(t, eventsOfType(events, models.ViewMessageAppended), "no pending message may be created")
	rejected := eventsOfType(events, models.ViewSendRejected)
	assert.Len(t, rejected, 1)

	storeMock.AssertNotCalled(t, "SaveMessage", mock.Anything, mock.Anything)
}

func TestSession_SecondSendWhileInFlightIsRejected(t *testing.T) {
	session, storeMock, _, client := newTestSession(t, nil)

	storeMock.On("SaveMessage", mock.Anything, mock.AnythingOfType("*models.Message")).
		Run(func(args mock.Arguments) {
			time.Sleep(400 * time.Millisecond)
			msg := args.Get(1).(*models.Message)
			msg.ID = "m-1"
		}).Return(nil)
	storeMock.On("PublishMessage", mock.Anything, mock.AnythingOfType("models.Message")).Return(nil)

	assert.NoError(t, session.Start(context.Background()))
	defer session.Close()
	time.Sleep(settle)
	client.drain()

	session.HandleCommand(models.ClientCommand{Action: "send", Content: "first"})
	time.Sleep(50 * time.Millisecond)
	session.HandleCommand(models.ClientCommand{Action: "send", Content: "second"})
	time.Sleep(settle)

	events := client.drain()
	rejected := eventsOfType(events, models.ViewSendRejected)
	assert.Len(t, rejected, 1)
	assert.Equal(t, "second", rejected[0].RestoredContent)
	assert.Len(t, eventsOfType(events, models.ViewMessageAppended), 1, "concurrent sends are rejected, not queued")
}

func TestSession_TypingIndicatorDecays(t *testing.T) {
	session, _, rt, client := newTestSession(t, nil)

	assert.NoError(t, session.Start(context.Background()))
	defer session.Close()
	time.Sleep(settle)
	client.drain()

	session.HandleCommand(models.ClientCommand{Action: "typing"})
	time.Sleep(settle)
	assert.Equal(t, []bool{true}, rt.presence.trackedStates())

	// No further keystrokes: the indicator decays within the idle window.
	time.Sleep(2*time.Second + settle)
	assert.Equal(t, []bool{true, false}, rt.presence.trackedStates())
}

func TestSession_SendStopsTypingImmediately(t *testing.T) {
	session, storeMock, rt, client := newTestSession(t, nil)

	storeMock.On("SaveMessage", mock.Anything, mock.AnythingOfType("*models.Message")).
		Run(func(args mock.Arguments) {
			msg := args.Get(1).(*models.Message)
			msg.ID = "m-9"
		}).Return(nil)
	storeMock.On("PublishMessage", mock.Anything, mock.AnythingOfType("models.Message")).Return(nil)

	assert.NoError(t, session.Start(context.Background()))
	defer session.Close()
	time.Sleep(settle)
	client.drain()

	session.HandleCommand(models.ClientCommand{Action: "typing"})
	session.HandleCommand(models.ClientCommand{Action: "send", Content: "done typing"})
	time.Sleep(settle)

	// isTyping=false is broadcast on send, well before the idle window.
	assert.Equal(t, []bool{true, false}, rt.presence.trackedStates())
}

func TestSession_DisconnectedIsTerminal(t *testing.T) {
	session, _, rt, client := newTestSession(t, nil)

	assert.NoError(t, session.Start(context.Background()))
	defer session.Close()
	time.Sleep(settle)
	client.drain()

	rt.emitStatus(models.StatusConnected)
	time.Sleep(settle)
	events := client.drain()
	statuses := eventsOfType(events, models.ViewStatusChanged)
	assert.Len(t, statuses, 1)
	assert.Equal(t, models.StatusConnected, statuses[0].Status)

	rt.emitStatus(models.StatusDisconnected)
	time.Sleep(settle)
	events = client.drain()
	statuses = eventsOfType(events, models.ViewStatusChanged)
	assert.Len(t, statuses, 1)
	assert.Equal(t, models.StatusDisconnected, statuses[0].Status)

	// A handle never comes back: a later "connected" is discarded and the
	// UI keeps showing the reload banner. Recovery is a new session.
	rt.emitStatus(models.StatusConnected)
	time.Sleep(settle)
	assert.Empty(t, eventsOfType(client.drain(), models.ViewStatusChanged))
}

func TestSession_PresenceSyncDrivesTypingIndicator(t *testing.T) {
	session, _, rt, client := newTestSession(t, nil)

	assert.NoError(t, session.Start(context.Background()))
	defer session.Close()
	time.Sleep(settle)
	client.drain()

	rt.emitSync(models.PresenceSnapshot{
		"sess-1": {UserID: "user_B", IsTyping: true},
	})
	time.Sleep(settle)
	events := eventsOfType(client.drain(), models.ViewTypingChanged)
	assert.Len(t, events, 1)
	assert.True(t, events[0].OtherTyping)

	// Unchanged derivation emits nothing.
	rt.emitSync(models.PresenceSnapshot{
		"sess-1": {UserID: "user_B", IsTyping: true},
		"sess-2": {UserID: "user_A", IsTyping: false},
	})
	time.Sleep(settle)
	assert.Empty(t, eventsOfType(client.drain(), models.ViewTypingChanged))

	// Own typing must not light the indicator.
	rt.emitSync(models.PresenceSnapshot{
		"sess-2": {UserID: "user_A", IsTyping: true},
	})
	time.Sleep(settle)
	events = eventsOfType(client.drain(), models.ViewTypingChanged)
	assert.Len(t, events, 1)
	assert.False(t, events[0].OtherTyping)
}

func TestSession_InboundMessageAdvancesReadCursor(t *testing.T) {
	session, storeMock, rt, client := newTestSession(t, nil)

	assert.NoError(t, session.Start(context.Background()))
	defer session.Close()
	time.Sleep(settle)
	client.drain()
	storeMock.AssertNumberOfCalls(t, "MarkRead", 1)

	rt.emitInsert(durableMsg("m-5", "user_B", "are you there?", time.Now()))
	time.Sleep(settle)

	appended := eventsOfType(client.drain(), models.ViewMessageAppended)
	assert.Len(t, appended, 1)
	storeMock.AssertNumberOfCalls(t, "MarkRead", 2)

	// Redelivery of the same id neither renders nor re-marks.
	rt.emitInsert(durableMsg("m-5", "user_B", "are you there?", time.Now()))
	time.Sleep(settle)
	assert.Empty(t, eventsOfType(client.drain(), models.ViewMessageAppended))
	storeMock.AssertNumberOfCalls(t, "MarkRead", 2)
}

func TestSession_ReadCursorFailureNeverBlocksDisplay(t *testing.T) {
	storeMock := new(MockStore)
	storeMock.On("GetRecentMessages", mock.Anything, "room1", mock.AnythingOfType("int")).
		Return([]models.Message(nil), nil)
	storeMock.On("MarkRead", mock.Anything, "room1", "user_A", mock.AnythingOfType("time.Time")).
		Return(errors.New("cursor table unavailable"))

	rt := newFakeRealtime()
	client := newMockClient("user_A")
	session := chatroom.NewSession(storeMock, rt, client, "room1", zerolog.Nop())

	assert.NoError(t, session.Start(context.Background()))
	defer session.Close()
	time.Sleep(settle)
	client.drain()

	rt.emitInsert(durableMsg("m-7", "user_B", "still visible?", time.Now()))
	time.Sleep(settle)

	// The cursor write keeps failing; the message renders regardless.
	appended := eventsOfType(client.drain(), models.ViewMessageAppended)
	assert.Len(t, appended, 1)
	assert.Equal(t, "m-7", appended[0].Message.ID)
	storeMock.AssertCalled(t, "MarkRead", mock.Anything, "room1", "user_A", mock.AnythingOfType("time.Time"))
}

func TestSession_CloseTearsDownSubscriptions(t *testing.T) {
	session, _, rt, _ := newTestSession(t, nil)

	assert.NoError(t, session.Start(context.Background()))
	time.Sleep(settle)

	session.Close()
	session.Close() // idempotent
	time.Sleep(settle)

	assert.GreaterOrEqual(t, rt.events.closeCount(), 1)
	assert.GreaterOrEqual(t, rt.presence.closeCount(), 1)

	// Late channel activity after teardown is a no-op.
	rt.emitInsert(durableMsg("m-99", "user_B", "late", time.Now()))
	rt.emitStatus(models.StatusDisconnected)
}
