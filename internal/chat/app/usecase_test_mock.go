package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"

	"github.com/stretchr/testify/mock"
)

// MockRoomRepository Mock RoomRepository
type MockRoomRepository struct {
	mock.Mock
}

// CreateRoom moke create room
func (m *MockRoomRepository) CreateRoom(ctx context.Context, room *domain.ChatRoom) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

// FindByID moke find room by room id
func (m *MockRoomRepository) FindByID(ctx context.Context, roomID string) (*domain.ChatRoom, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.ChatRoom), args.Error(1)
	}
	return nil, args.Error(1)
}

// UpdateRoom moke update room
func (m *MockRoomRepository) UpdateRoom(ctx context.Context, room *domain.ChatRoom) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

// FindOnePrivateRoom moke find one private room
func (m *MockRoomRepository) FindOnePrivateRoom(ctx context.Context, userA, userB string) (*domain.ChatRoom, error) {
	args := m.Called(ctx, userA, userB)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.ChatRoom), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindUserContacts moke find co-members across rooms
func (m *MockRoomRepository) FindUserContacts(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// NextSeq moke allocate next per-chat sequence
func (m *MockMessageRepository) NextSeq(ctx context.Context, chatID string) (int64, error) {
	args := m.Called(ctx, chatID)
	return args.Get(0).(int64), args.Error(1)
}

// InsertMessage moke insert msg
func (m *MockMessageRepository) InsertMessage(ctx context.Context, msg *domain.ChatMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// FindByID moke find msg by id
func (m *MockMessageRepository) FindByID(ctx context.Context, messageID string) (*domain.ChatMessage, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.ChatMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByIDs moke find msgs by ids
func (m *MockMessageRepository) FindByIDs(ctx context.Context, messageIDs []string) ([]domain.ChatMessage, error) {
	args := m.Called(ctx, messageIDs)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.ChatMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

// MaskContent moke mask deleted msg content
func (m *MockMessageRepository) MaskContent(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

// MockStatusRepository Mock StatusRepository
type MockStatusRepository struct {
	mock.Mock
}

// EnsureIndexes moke ensure indexes
func (m *MockStatusRepository) EnsureIndexes(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// CreateRows moke create sent rows
func (m *MockStatusRepository) CreateRows(ctx context.Context, rows []domain.MessageStatusRow) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

// Advance moke monotonic advance
func (m *MockStatusRepository) Advance(ctx context.Context, row domain.MessageStatusRow) (domain.MessageStatus, repository.AdvanceOutcome, error) {
	args := m.Called(ctx, row)
	return args.Get(0).(domain.MessageStatus), args.Get(1).(repository.AdvanceOutcome), args.Error(2)
}

// FindPendingForUser moke find pending rows
func (m *MockStatusRepository) FindPendingForUser(ctx context.Context, userID string, limit int) ([]domain.MessageStatusRow, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.MessageStatusRow), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByMessage moke find rows of one message
func (m *MockStatusRepository) FindByMessage(ctx context.Context, messageID string) ([]domain.MessageStatusRow, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.MessageStatusRow), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindOne moke find one row
func (m *MockStatusRepository) FindOne(ctx context.Context, messageID, userID string) (*domain.MessageStatusRow, error) {
	args := m.Called(ctx, messageID, userID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.MessageStatusRow), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockPresenceCache Mock PresenceCacheRepository
type MockPresenceCache struct {
	mock.Mock
}

// SetOnline moke cache set online
func (m *MockPresenceCache) SetOnline(ctx context.Context, userID string, at time.Time) error {
	args := m.Called(ctx, userID, at)
	return args.Error(0)
}

// SetOffline moke cache set offline
func (m *MockPresenceCache) SetOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	args := m.Called(ctx, userID, lastSeen)
	return args.Error(0)
}

// Get moke cache batch get
func (m *MockPresenceCache) Get(ctx context.Context, userIDs []string) ([]domain.PresenceInfo, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.PresenceInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockUserRepository Mock UserRepository
type MockUserRepository struct {
	mock.Mock
}

// UpdatePresence moke update presence projection
func (m *MockUserRepository) UpdatePresence(ctx context.Context, userID string, isOnline bool, lastSeen time.Time) error {
	args := m.Called(ctx, userID, isOnline, lastSeen)
	return args.Error(0)
}

// FindPresence moke read presence projection
func (m *MockUserRepository) FindPresence(ctx context.Context, userIDs []string) ([]domain.PresenceInfo, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.PresenceInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockPubSub Mock PubSubRepository
type MockPubSub struct {
	mock.Mock
}

// Publish moke publish to a channel
func (m *MockPubSub) Publish(channel string, resp domain.WSResponse) error {
	args := m.Called(channel, resp)
	return args.Error(0)
}

// Subscribe moke subscribe a channel
func (m *MockPubSub) Subscribe(ctx context.Context, channel string, handler func(resp domain.WSResponse)) error {
	args := m.Called(ctx, channel)
	return args.Error(0)
}

// MockEventPublisher Mock EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

// Publish moke publish chat event
func (m *MockEventPublisher) Publish(ctx context.Context, event domain.ChatEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

var errConnClosed = errors.New("connection closed")

// fakeConn 測試用連線，記下每次寫入的 payload
type fakeConn struct {
	mu     sync.Mutex
	writes []domain.WSResponse
	fail   bool
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errConnClosed
	}
	var resp domain.WSResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	c.writes = append(c.writes, resp)
	return nil
}

func (c *fakeConn) pushed() []domain.WSResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.WSResponse, len(c.writes))
	copy(out, c.writes)
	return out
}

func (c *fakeConn) actions() []string {
	var out []string
	for _, w := range c.pushed() {
		out = append(out, w.Action)
	}
	return out
}
