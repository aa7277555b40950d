package app

import (
	"context"
	"fmt"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg/logger"
)

const defaultCatchupBatch = 100

// CatchupLoader 重連補發：把仍停在 sent 的列依建立順序推給剛上線的使用者
type CatchupLoader struct {
	registry   *ConnectionRegistry
	msgRepo    repository.MessageRepository
	statusRepo repository.StatusRepository
	status     *StatusUseCase
	dispatcher *DeliveryDispatcher
	batchSize  int
}

// NewCatchupLoader create CatchupLoader, batchSize <= 0 falls back to default
func NewCatchupLoader(registry *ConnectionRegistry, msgRepo repository.MessageRepository, statusRepo repository.StatusRepository, status *StatusUseCase, dispatcher *DeliveryDispatcher, batchSize int) *CatchupLoader {
	if batchSize <= 0 {
		batchSize = defaultCatchupBatch
	}
	return &CatchupLoader{
		registry:   registry,
		msgRepo:    msgRepo,
		statusRepo: statusRepo,
		status:     status,
		dispatcher: dispatcher,
		batchSize:  batchSize,
	}
}

// DeliverPending 批次撈取、推播、推進 delivered，直到撈不滿一批為止。
// 使用者在補發途中斷線就中止，剩下的列留在 sent 等下次重連。
func (c *CatchupLoader) DeliverPending(ctx context.Context, userID string) (int, error) {
	delivered := 0
	for {
		rows, err := c.statusRepo.FindPendingForUser(ctx, userID, c.batchSize)
		if err != nil {
			return delivered, fmt.Errorf("find pending rows: %w", err)
		}
		if len(rows) == 0 {
			return delivered, nil
		}

		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.MessageID)
		}
		msgs, err := c.msgRepo.FindByIDs(ctx, ids)
		if err != nil {
			return delivered, fmt.Errorf("load pending messages: %w", err)
		}
		byID := make(map[string]*domain.ChatMessage, len(msgs))
		for i := range msgs {
			byID[msgs[i].ID] = &msgs[i]
		}

		for _, row := range rows {
			msg, ok := byID[row.MessageID]
			if !ok {
				// 訊息列遺失，推進掉避免每次重連都卡在同一列
				logger.Log.Warn(fmt.Sprintf("pending status without message, skipping [msg:%s user:%s]", row.MessageID, userID))
				if _, _, err := c.status.Advance(ctx, &domain.ChatMessage{ID: row.MessageID, ChatID: row.ChatID, Seq: row.Seq, CreatedAt: row.CreatedAt}, userID, domain.StatusDelivered); err != nil {
					return delivered, err
				}
				continue
			}

			if sent := c.registry.PushToUser(userID, domain.NewMessagePush(msg, true)); sent == 0 {
				// 使用者已離線，中止補發
				return delivered, nil
			}

			applied, outcome, err := c.status.Advance(ctx, msg, userID, domain.StatusDelivered)
			if err != nil {
				return delivered, err
			}
			delivered++
			if outcome != repository.AdvanceNoop {
				c.dispatcher.NotifySenderAdvance(ctx, msg, userID, applied)
			}
		}

		if len(rows) < c.batchSize {
			return delivered, nil
		}
	}
}
