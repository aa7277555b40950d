package app

import (
	"context"
	"errors"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
)

// StatusUseCase 所有狀態讀寫都經過這裡，單調 rank 不變式只在這一個地方維護
type StatusUseCase struct {
	msgRepo    repository.MessageRepository
	statusRepo repository.StatusRepository
}

// NewStatusUseCase create StatusUseCase
func NewStatusUseCase(msgRepo repository.MessageRepository, statusRepo repository.StatusRepository) *StatusUseCase {
	return &StatusUseCase{
		msgRepo:    msgRepo,
		statusRepo: statusRepo,
	}
}

// CreateRows 發送時為每個收件人建立 sent 列
func (uc *StatusUseCase) CreateRows(ctx context.Context, msg *domain.ChatMessage, recipients []string) error {
	now := time.Now().Unix()
	rows := make([]domain.MessageStatusRow, 0, len(recipients))
	for _, r := range recipients {
		rows = append(rows, domain.NewStatusRow(msg, r, domain.StatusSent, now))
	}
	return uc.statusRepo.CreateRows(ctx, rows)
}

// Advance 單調推進一個 (message, recipient) 的狀態。
// 倒退嘗試不是錯誤：回傳既有狀態，不寫入。
func (uc *StatusUseCase) Advance(ctx context.Context, msg *domain.ChatMessage, recipient string, target domain.MessageStatus) (domain.MessageStatus, repository.AdvanceOutcome, error) {
	if target.Rank() == 0 {
		return "", repository.AdvanceNoop, errors.New("unknown status: " + string(target))
	}
	now := time.Now().Unix()
	row := domain.NewStatusRow(msg, recipient, target, now)
	return uc.statusRepo.Advance(ctx, row)
}

// BulkAdvance 批次推進；缺列建立、既有列條件更新，回傳 (created, updated)
func (uc *StatusUseCase) BulkAdvance(ctx context.Context, recipient, chatID string, messageIDs []string, target domain.MessageStatus) (int, int, error) {
	if target.Rank() == 0 {
		return 0, 0, errors.New("unknown status: " + string(target))
	}

	msgs, err := uc.msgRepo.FindByIDs(ctx, messageIDs)
	if err != nil {
		return 0, 0, err
	}

	now := time.Now().Unix()
	created, updated := 0, 0
	for i := range msgs {
		msg := &msgs[i]
		if msg.ChatID != chatID || msg.SenderID == recipient {
			continue
		}
		row := domain.NewStatusRow(msg, recipient, target, now)
		_, outcome, err := uc.statusRepo.Advance(ctx, row)
		if err != nil {
			return created, updated, err
		}
		switch outcome {
		case repository.AdvanceCreated:
			created++
		case repository.AdvanceUpdated:
			updated++
		}
	}
	return created, updated, nil
}

// Aggregate 發送者視角的聚合狀態，讀取時計算
func (uc *StatusUseCase) Aggregate(ctx context.Context, messageID string) (domain.MessageStatus, error) {
	rows, err := uc.statusRepo.FindByMessage(ctx, messageID)
	if err != nil {
		return "", err
	}
	return domain.AggregateStatus(rows), nil
}
