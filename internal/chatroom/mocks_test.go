package chatroom_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"gigmarket/backend/internal/models"
	"gigmarket/backend/internal/realtime"
)

// MockStore is a testify mock of the chatroom.Store interface.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetRecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, roomID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockStore) SaveMessage(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStore) PublishMessage(ctx context.Context, msg models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockStore) MarkRead(ctx context.Context, roomID, userID string, at time.Time) error {
	args := m.Called(ctx, roomID, userID, at)
	return args.Error(0)
}

// fakeEventSub and fakePresenceSub stand in for the Redis-backed handles.
type fakeEventSub struct {
	mu     sync.Mutex
	closed int
}

func (f *fakeEventSub) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

func (f *fakeEventSub) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakePresenceSub struct {
	mu       sync.Mutex
	tracks   []bool
	trackErr error
	closed   int
}

func (f *fakePresenceSub) Track(ctx context.Context, userID string, isTyping bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.trackErr != nil {
		return f.trackErr
	}
	f.tracks = append(f.tracks, isTyping)
	return nil
}

func (f *fakePresenceSub) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

func (f *fakePresenceSub) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakePresenceSub) trackedStates() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.tracks))
	copy(out, f.tracks)
	return out
}

// fakeRealtime implements realtime.Opener and hands the test direct control
// over the callbacks a session registered.
type fakeRealtime struct {
	mu       sync.Mutex
	onInsert realtime.InsertFunc
	onStatus realtime.StatusFunc
	onSync   realtime.SyncFunc
	events   *fakeEventSub
	presence *fakePresenceSub
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{
		events:   &fakeEventSub{},
		presence: &fakePresenceSub{},
	}
}

func (f *fakeRealtime) OpenEvents(ctx context.Context, roomID string, onInsert realtime.InsertFunc, onStatus realtime.StatusFunc) realtime.EventSubscription {
	f.mu.Lock()
	f.onInsert = onInsert
	f.onStatus = onStatus
	f.mu.Unlock()
	// Real handles report "connecting" before OpenEvents returns.
	onStatus(models.StatusConnecting)
	return f.events
}

func (f *fakeRealtime) OpenPresence(ctx context.Context, roomID, sessionKey string, onSync realtime.SyncFunc) realtime.PresenceSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSync = onSync
	return f.presence
}

func (f *fakeRealtime) emitInsert(msg models.Message) {
	f.mu.Lock()
	deliver := f.onInsert
	f.mu.Unlock()
	deliver(msg)
}

func (f *fakeRealtime) emitStatus(st models.ConnectionStatus) {
	f.mu.Lock()
	deliver := f.onStatus
	f.mu.Unlock()
	deliver(st)
}

func (f *fakeRealtime) emitSync(snapshot models.PresenceSnapshot) {
	f.mu.Lock()
	deliver := f.onSync
	f.mu.Unlock()
	deliver(snapshot)
}

// mockClient collects the view events a session pushes.
type mockClient struct {
	userID    string
	send      chan models.ViewEvent
	closeOnce sync.Once
}

func newMockClient(userID string) *mockClient {
	return &mockClient{
		userID: userID,
		send:   make(chan models.ViewEvent, 256),
	}
}

func (c *mockClient) GetUserID() string                       { return c.userID }
func (c *mockClient) GetSendChannel() chan<- models.ViewEvent { return c.send }
func (c *mockClient) Run()                                    {}
func (c *mockClient) Close()                                  { c.closeOnce.Do(func() { close(c.send) }) }

// drain returns everything pushed so far without blocking.
func (c *mockClient) drain() []models.ViewEvent {
	var events []models.ViewEvent
	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return events
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}

func eventsOfType(events []models.ViewEvent, typ string) []models.ViewEvent {
	var out []models.ViewEvent
	for _, ev := range events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
