package app

import (
	"context"
	"testing"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/mongo"
)

func messageFixture(roomRepo *MockRoomRepository, msgRepo *MockMessageRepository, statusRepo *MockStatusRepository) (*ConnectionRegistry, *MessageUseCase) {
	registry := NewConnectionRegistry()
	statusUC := NewStatusUseCase(msgRepo, statusRepo)
	events := new(MockEventPublisher)
	events.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	dispatcher := NewDeliveryDispatcher(registry, statusUC, events, nil)
	return registry, NewMessageUseCase(roomRepo, msgRepo, statusUC, dispatcher)
}

func TestMessageUseCase_Send(t *testing.T) {
	ctx := context.Background()
	logger.SetNewNop()

	room := &domain.ChatRoom{
		ID:      "chat-1",
		Members: []string{"alice", "bob", "carol"},
	}

	t.Run("線上收件人即時送達其餘排隊", func(t *testing.T) {
		roomRepo := new(MockRoomRepository)
		msgRepo := new(MockMessageRepository)
		statusRepo := new(MockStatusRepository)
		registry, uc := messageFixture(roomRepo, msgRepo, statusRepo)

		bobConn := &fakeConn{}
		registry.Register("bob", "conn-b", bobConn)

		roomRepo.On("FindByID", ctx, "chat-1").Return(room, nil).Once()
		msgRepo.On("NextSeq", ctx, "chat-1").Return(int64(42), nil).Once()
		msgRepo.On("InsertMessage", ctx, mock.MatchedBy(func(m *domain.ChatMessage) bool {
			return m.ChatID == "chat-1" && m.Seq == 42 && m.SenderID == "alice" && m.Content == "hello"
		})).Return(nil).Once()
		statusRepo.On("CreateRows", ctx, mock.MatchedBy(func(rows []domain.MessageStatusRow) bool {
			return len(rows) == 2
		})).Return(nil).Once()
		statusRepo.On("Advance", ctx, mock.MatchedBy(func(row domain.MessageStatusRow) bool {
			return row.UserID == "bob" && row.Rank == domain.StatusDelivered.Rank()
		})).Return(domain.StatusDelivered, repository.AdvanceUpdated, nil).Once()

		msg, report, err := uc.Send(ctx, "alice", "chat-1", "hello", domain.MessageTypeText, "tmp-1", "")

		assert.NoError(t, err)
		assert.NotEmpty(t, msg.ID)
		assert.Equal(t, int64(42), msg.Seq)
		assert.Equal(t, []string{"bob"}, report.Delivered)
		assert.Equal(t, []string{"carol"}, report.Queued)
		assert.Equal(t, []string{string(domain.NewMessage)}, bobConn.actions())
		roomRepo.AssertExpectations(t)
		msgRepo.AssertExpectations(t)
		statusRepo.AssertExpectations(t)
	})

	t.Run("非成員不能發訊息", func(t *testing.T) {
		roomRepo := new(MockRoomRepository)
		msgRepo := new(MockMessageRepository)
		statusRepo := new(MockStatusRepository)
		_, uc := messageFixture(roomRepo, msgRepo, statusRepo)

		roomRepo.On("FindByID", ctx, "chat-1").Return(room, nil).Once()

		_, _, err := uc.Send(ctx, "mallory", "chat-1", "hi", domain.MessageTypeText, "", "")

		assert.ErrorIs(t, err, ErrNotMember)
		msgRepo.AssertNotCalled(t, "NextSeq", mock.Anything, mock.Anything)
		msgRepo.AssertNotCalled(t, "InsertMessage", mock.Anything, mock.Anything)
	})

	t.Run("聊天室不存在", func(t *testing.T) {
		roomRepo := new(MockRoomRepository)
		_, uc := messageFixture(roomRepo, new(MockMessageRepository), new(MockStatusRepository))

		roomRepo.On("FindByID", ctx, "nope").Return(nil, mongo.ErrNoDocuments).Once()

		_, _, err := uc.Send(ctx, "alice", "nope", "hi", domain.MessageTypeText, "", "")

		assert.ErrorIs(t, err, ErrRoomNotFound)
	})

	t.Run("空內容與非法類型被拒絕", func(t *testing.T) {
		_, uc := messageFixture(new(MockRoomRepository), new(MockMessageRepository), new(MockStatusRepository))

		_, _, err := uc.Send(ctx, "alice", "chat-1", "", domain.MessageTypeText, "", "")
		assert.Error(t, err)

		_, _, err = uc.Send(ctx, "alice", "chat-1", "hi", domain.MessageType("sticker"), "", "")
		assert.Error(t, err)
	})
}

func TestMessageUseCase_MarkRead(t *testing.T) {
	ctx := context.Background()
	logger.SetNewNop()

	msg := &domain.ChatMessage{ID: "msg-1", ChatID: "chat-1", Seq: 1, SenderID: "alice"}
	room := &domain.ChatRoom{ID: "chat-1", Members: []string{"alice", "bob"}}

	t.Run("已讀通知發送者", func(t *testing.T) {
		roomRepo := new(MockRoomRepository)
		msgRepo := new(MockMessageRepository)
		statusRepo := new(MockStatusRepository)
		registry, uc := messageFixture(roomRepo, msgRepo, statusRepo)

		aliceConn := &fakeConn{}
		registry.Register("alice", "conn-a", aliceConn)

		msgRepo.On("FindByID", ctx, "msg-1").Return(msg, nil).Once()
		roomRepo.On("FindByID", ctx, "chat-1").Return(room, nil).Once()
		statusRepo.On("Advance", ctx, mock.MatchedBy(func(row domain.MessageStatusRow) bool {
			return row.UserID == "bob" && row.Rank == domain.StatusRead.Rank()
		})).Return(domain.StatusRead, repository.AdvanceUpdated, nil).Once()

		err := uc.MarkRead(ctx, "bob", "msg-1")

		assert.NoError(t, err)
		pushes := aliceConn.pushed()
		assert.Len(t, pushes, 1)
		assert.Equal(t, string(domain.MessageStatusUpdated), pushes[0].Action)
		assert.Equal(t, "read", pushes[0].Payload["status"])
	})

	t.Run("倒退的已讀不通知發送者", func(t *testing.T) {
		roomRepo := new(MockRoomRepository)
		msgRepo := new(MockMessageRepository)
		statusRepo := new(MockStatusRepository)
		registry, uc := messageFixture(roomRepo, msgRepo, statusRepo)

		aliceConn := &fakeConn{}
		registry.Register("alice", "conn-a", aliceConn)

		msgRepo.On("FindByID", ctx, "msg-1").Return(msg, nil).Once()
		roomRepo.On("FindByID", ctx, "chat-1").Return(room, nil).Once()
		statusRepo.On("Advance", ctx, mock.Anything).
			Return(domain.StatusRead, repository.AdvanceNoop, nil).Once()

		err := uc.MarkDelivered(ctx, "bob", "msg-1")

		assert.NoError(t, err)
		assert.Empty(t, aliceConn.pushed())
	})

	t.Run("非成員不能偽造回條", func(t *testing.T) {
		roomRepo := new(MockRoomRepository)
		msgRepo := new(MockMessageRepository)
		statusRepo := new(MockStatusRepository)
		registry, uc := messageFixture(roomRepo, msgRepo, statusRepo)

		aliceConn := &fakeConn{}
		registry.Register("alice", "conn-a", aliceConn)

		msgRepo.On("FindByID", ctx, "msg-1").Return(msg, nil).Once()
		roomRepo.On("FindByID", ctx, "chat-1").Return(room, nil).Once()

		err := uc.MarkRead(ctx, "mallory", "msg-1")

		assert.ErrorIs(t, err, ErrNotMember)
		// 不能替外人建出狀態列，發送者也不能收到假的回條
		statusRepo.AssertNotCalled(t, "Advance", mock.Anything, mock.Anything)
		assert.Empty(t, aliceConn.pushed())
	})

	t.Run("發送者不能對自己的訊息回報", func(t *testing.T) {
		msgRepo := new(MockMessageRepository)
		_, uc := messageFixture(new(MockRoomRepository), msgRepo, new(MockStatusRepository))

		msgRepo.On("FindByID", ctx, "msg-1").Return(msg, nil).Once()

		err := uc.MarkRead(ctx, "alice", "msg-1")

		assert.ErrorIs(t, err, ErrNotMember)
	})

	t.Run("訊息不存在", func(t *testing.T) {
		msgRepo := new(MockMessageRepository)
		_, uc := messageFixture(new(MockRoomRepository), msgRepo, new(MockStatusRepository))

		msgRepo.On("FindByID", ctx, "nope").Return(nil, mongo.ErrNoDocuments).Once()

		err := uc.MarkRead(ctx, "bob", "nope")

		assert.ErrorIs(t, err, ErrMessageNotFound)
	})
}

func TestMessageUseCase_MarkChatRead(t *testing.T) {
	ctx := context.Background()
	logger.SetNewNop()

	room := &domain.ChatRoom{ID: "chat-1", Members: []string{"alice", "bob"}}

	t.Run("批次已讀", func(t *testing.T) {
		roomRepo := new(MockRoomRepository)
		msgRepo := new(MockMessageRepository)
		statusRepo := new(MockStatusRepository)
		_, uc := messageFixture(roomRepo, msgRepo, statusRepo)

		roomRepo.On("FindByID", ctx, "chat-1").Return(room, nil).Once()
		msgRepo.On("FindByIDs", ctx, []string{"msg-1", "msg-2"}).Return([]domain.ChatMessage{
			{ID: "msg-1", ChatID: "chat-1", SenderID: "alice"},
			{ID: "msg-2", ChatID: "chat-1", SenderID: "alice"},
		}, nil).Once()
		statusRepo.On("Advance", ctx, mock.Anything).
			Return(domain.StatusRead, repository.AdvanceUpdated, nil).Twice()

		created, updated, err := uc.MarkChatRead(ctx, "bob", "chat-1", []string{"msg-1", "msg-2"})

		assert.NoError(t, err)
		assert.Equal(t, 0, created)
		assert.Equal(t, 2, updated)
	})

	t.Run("非成員拒絕", func(t *testing.T) {
		roomRepo := new(MockRoomRepository)
		_, uc := messageFixture(roomRepo, new(MockMessageRepository), new(MockStatusRepository))

		roomRepo.On("FindByID", ctx, "chat-1").Return(room, nil).Once()

		_, _, err := uc.MarkChatRead(ctx, "mallory", "chat-1", []string{"msg-1"})

		assert.ErrorIs(t, err, ErrNotMember)
	})
}

func TestMessageUseCase_Delete(t *testing.T) {
	ctx := context.Background()
	logger.SetNewNop()

	msg := &domain.ChatMessage{ID: "msg-1", ChatID: "chat-1", SenderID: "alice", Content: "secret"}

	t.Run("發送者刪除遮蔽內容", func(t *testing.T) {
		msgRepo := new(MockMessageRepository)
		_, uc := messageFixture(new(MockRoomRepository), msgRepo, new(MockStatusRepository))

		msgRepo.On("FindByID", ctx, "msg-1").Return(msg, nil).Once()
		msgRepo.On("MaskContent", ctx, "msg-1").Return(nil).Once()

		deleted, err := uc.Delete(ctx, "alice", "msg-1")

		assert.NoError(t, err)
		assert.True(t, deleted.Deleted)
		assert.Empty(t, deleted.Content)
		msgRepo.AssertExpectations(t)
	})

	t.Run("非發送者不能刪", func(t *testing.T) {
		msgRepo := new(MockMessageRepository)
		_, uc := messageFixture(new(MockRoomRepository), msgRepo, new(MockStatusRepository))

		msgRepo.On("FindByID", ctx, "msg-1").Return(msg, nil).Once()

		_, err := uc.Delete(ctx, "bob", "msg-1")

		assert.ErrorIs(t, err, ErrNotSender)
		msgRepo.AssertNotCalled(t, "MaskContent", mock.Anything, mock.Anything)
	})
}
