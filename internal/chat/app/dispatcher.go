package app

import (
	"context"
	"fmt"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg/logger"
)

// DeliveryDispatcher 發送瞬間的線上判定與推播。
// 線上 → 推播並推進 delivered；離線 → 列停在 sent，交給 catch-up。
type DeliveryDispatcher struct {
	registry *ConnectionRegistry
	status   *StatusUseCase
	events   repository.EventPublisher
	pubsub   repository.PubSubRepository
}

// NewDeliveryDispatcher create DeliveryDispatcher
func NewDeliveryDispatcher(registry *ConnectionRegistry, status *StatusUseCase, events repository.EventPublisher, pubsub repository.PubSubRepository) *DeliveryDispatcher {
	return &DeliveryDispatcher{
		registry: registry,
		status:   status,
		events:   events,
		pubsub:   pubsub,
	}
}

// Dispatch 對每個收件人各自處理，單一收件人的失敗不影響其他人。
// 推播失敗不推進 delivered，讓訊息留在 sent 等重連補發。
func (d *DeliveryDispatcher) Dispatch(ctx context.Context, msg *domain.ChatMessage, recipients []string) *domain.DeliveryReport {
	report := &domain.DeliveryReport{}

	for _, userID := range recipients {
		if !d.registry.IsOnline(userID) {
			report.Queued = append(report.Queued, userID)
			continue
		}

		sent := d.registry.PushToUser(userID, domain.NewMessagePush(msg, false))
		if sent == 0 {
			// 所有連線都寫失敗，視同離線
			logger.Log.Warn(fmt.Sprintf("dispatch push failed, message queued [msg:%s user:%s]", msg.ID, userID))
			report.Queued = append(report.Queued, userID)
			continue
		}

		applied, outcome, err := d.status.Advance(ctx, msg, userID, domain.StatusDelivered)
		if err != nil {
			logger.Log.Errorf(fmt.Sprintf("dispatch advance delivered failed [msg:%s user:%s], err:", msg.ID, userID), err)
			report.Queued = append(report.Queued, userID)
			continue
		}
		report.Delivered = append(report.Delivered, userID)

		if outcome != repository.AdvanceNoop {
			d.registry.PushToUser(msg.SenderID, domain.StatusUpdatePush(msg.ID, applied, userID))
			d.publishEvent(ctx, domain.EventStatusAdvanced, msg, userID, applied)
		}
	}

	d.publishEvent(ctx, domain.EventMessageDispatched, msg, "", "")
	return report
}

// NotifySenderAdvance 收件人回報 delivered/read 後，通知發送者所有在線連線。
// 已讀另外廣播到聊天室頻道，訂閱中的成員會同步看到
func (d *DeliveryDispatcher) NotifySenderAdvance(ctx context.Context, msg *domain.ChatMessage, recipient string, applied domain.MessageStatus) {
	push := domain.StatusUpdatePush(msg.ID, applied, recipient)
	d.registry.PushToUser(msg.SenderID, push)
	if applied == domain.StatusRead && d.pubsub != nil {
		if err := d.pubsub.Publish(repository.RoomChannel(msg.ChatID), push); err != nil {
			logger.Log.Errorf(fmt.Sprintf("read receipt room publish failed [msg:%s chat:%s], err:", msg.ID, msg.ChatID), err)
		}
	}
	d.publishEvent(ctx, domain.EventStatusAdvanced, msg, recipient, applied)
}

func (d *DeliveryDispatcher) publishEvent(ctx context.Context, kind string, msg *domain.ChatMessage, recipientID string, status domain.MessageStatus) {
	if d.events == nil {
		return
	}
	ev := domain.ChatEvent{
		Kind:        kind,
		MessageID:   msg.ID,
		ChatID:      msg.ChatID,
		SenderID:    msg.SenderID,
		RecipientID: recipientID,
		Status:      status,
		At:          time.Now().Unix(),
	}
	if err := d.events.Publish(ctx, ev); err != nil {
		// 事件流是旁路，失敗只記錄
		logger.Log.Errorf(fmt.Sprintf("publish chat event failed [kind:%s msg:%s], err:", kind, msg.ID), err)
	}
}
