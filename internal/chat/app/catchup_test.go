package app

import (
	"context"
	"testing"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func catchupFixture(msgRepo *MockMessageRepository, statusRepo *MockStatusRepository, batch int) (*ConnectionRegistry, *CatchupLoader) {
	registry := NewConnectionRegistry()
	statusUC := NewStatusUseCase(msgRepo, statusRepo)
	events := new(MockEventPublisher)
	events.On("Publish", mock.Anything, mock.Anything).Return(nil).Maybe()
	dispatcher := NewDeliveryDispatcher(registry, statusUC, events, nil)
	return registry, NewCatchupLoader(registry, msgRepo, statusRepo, statusUC, dispatcher, batch)
}

func pendingRow(msgID string, seq int64) domain.MessageStatusRow {
	return domain.MessageStatusRow{
		MessageID: msgID,
		UserID:    "bob",
		ChatID:    "chat-1",
		Seq:       seq,
		Status:    domain.StatusSent,
		Rank:      domain.StatusSent.Rank(),
	}
}

func TestCatchupLoader_DeliverPending(t *testing.T) {
	ctx := context.Background()
	logger.SetNewNop()

	t.Run("補發並推進 delivered", func(t *testing.T) {
		msgRepo := new(MockMessageRepository)
		statusRepo := new(MockStatusRepository)
		registry, loader := catchupFixture(msgRepo, statusRepo, 10)

		conn := &fakeConn{}
		registry.Register("bob", "conn-b", conn)

		rows := []domain.MessageStatusRow{pendingRow("msg-1", 1), pendingRow("msg-2", 2)}
		msgs := []domain.ChatMessage{
			{ID: "msg-1", ChatID: "chat-1", Seq: 1, SenderID: "alice"},
			{ID: "msg-2", ChatID: "chat-1", Seq: 2, SenderID: "alice"},
		}
		statusRepo.On("FindPendingForUser", ctx, "bob", 10).Return(rows, nil).Once()
		msgRepo.On("FindByIDs", ctx, []string{"msg-1", "msg-2"}).Return(msgs, nil).Once()
		statusRepo.On("Advance", ctx, mock.MatchedBy(func(row domain.MessageStatusRow) bool {
			return row.Rank == domain.StatusDelivered.Rank() && row.UserID == "bob"
		})).Return(domain.StatusDelivered, repository.AdvanceUpdated, nil).Twice()

		n, err := loader.DeliverPending(ctx, "bob")

		assert.NoError(t, err)
		assert.Equal(t, 2, n)
		pushes := conn.pushed()
		assert.Len(t, pushes, 2)
		for _, push := range pushes {
			assert.Equal(t, string(domain.NewMessage), push.Action)
			assert.Equal(t, true, push.Payload["is_pending"])
		}
		statusRepo.AssertExpectations(t)
	})

	t.Run("撈滿一批就再撈下一批", func(t *testing.T) {
		msgRepo := new(MockMessageRepository)
		statusRepo := new(MockStatusRepository)
		registry, loader := catchupFixture(msgRepo, statusRepo, 2)

		registry.Register("bob", "conn-b", &fakeConn{})

		batch1 := []domain.MessageStatusRow{pendingRow("msg-1", 1), pendingRow("msg-2", 2)}
		batch2 := []domain.MessageStatusRow{pendingRow("msg-3", 3)}
		statusRepo.On("FindPendingForUser", ctx, "bob", 2).Return(batch1, nil).Once()
		statusRepo.On("FindPendingForUser", ctx, "bob", 2).Return(batch2, nil).Once()
		msgRepo.On("FindByIDs", ctx, []string{"msg-1", "msg-2"}).Return([]domain.ChatMessage{
			{ID: "msg-1", ChatID: "chat-1", Seq: 1, SenderID: "alice"},
			{ID: "msg-2", ChatID: "chat-1", Seq: 2, SenderID: "alice"},
		}, nil).Once()
		msgRepo.On("FindByIDs", ctx, []string{"msg-3"}).Return([]domain.ChatMessage{
			{ID: "msg-3", ChatID: "chat-1", Seq: 3, SenderID: "alice"},
		}, nil).Once()
		statusRepo.On("Advance", ctx, mock.Anything).
			Return(domain.StatusDelivered, repository.AdvanceUpdated, nil).Times(3)

		n, err := loader.DeliverPending(ctx, "bob")

		assert.NoError(t, err)
		assert.Equal(t, 3, n)
		statusRepo.AssertExpectations(t)
		msgRepo.AssertExpectations(t)
	})

	t.Run("沒有待補發訊息", func(t *testing.T) {
		msgRepo := new(MockMessageRepository)
		statusRepo := new(MockStatusRepository)
		registry, loader := catchupFixture(msgRepo, statusRepo, 10)
		registry.Register("bob", "conn-b", &fakeConn{})

		statusRepo.On("FindPendingForUser", ctx, "bob", 10).
			Return([]domain.MessageStatusRow{}, nil).Once()

		n, err := loader.DeliverPending(ctx, "bob")

		assert.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("補發途中斷線就中止", func(t *testing.T) {
		msgRepo := new(MockMessageRepository)
		statusRepo := new(MockStatusRepository)
		_, loader := catchupFixture(msgRepo, statusRepo, 10)
		// bob 完全沒有連線

		statusRepo.On("FindPendingForUser", ctx, "bob", 10).
			Return([]domain.MessageStatusRow{pendingRow("msg-1", 1)}, nil).Once()
		msgRepo.On("FindByIDs", ctx, []string{"msg-1"}).Return([]domain.ChatMessage{
			{ID: "msg-1", ChatID: "chat-1", Seq: 1, SenderID: "alice"},
		}, nil).Once()

		n, err := loader.DeliverPending(ctx, "bob")

		assert.NoError(t, err)
		assert.Equal(t, 0, n)
		// 推播失敗的列留在 sent
		statusRepo.AssertNotCalled(t, "Advance", mock.Anything, mock.Anything)
	})

	t.Run("狀態列沒有對應訊息時跳過並推進", func(t *testing.T) {
		msgRepo := new(MockMessageRepository)
		statusRepo := new(MockStatusRepository)
		registry, loader := catchupFixture(msgRepo, statusRepo, 10)
		conn := &fakeConn{}
		registry.Register("bob", "conn-b", conn)

		statusRepo.On("FindPendingForUser", ctx, "bob", 10).
			Return([]domain.MessageStatusRow{pendingRow("msg-gone", 1)}, nil).Once()
		msgRepo.On("FindByIDs", ctx, []string{"msg-gone"}).
			Return([]domain.ChatMessage{}, nil).Once()
		statusRepo.On("Advance", ctx, mock.MatchedBy(func(row domain.MessageStatusRow) bool {
			return row.MessageID == "msg-gone"
		})).Return(domain.StatusDelivered, repository.AdvanceUpdated, nil).Once()

		n, err := loader.DeliverPending(ctx, "bob")

		assert.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Empty(t, conn.pushed())
	})
}
