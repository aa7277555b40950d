package app

import (
	"context"
	"errors"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	errprocess "realtime_chat_service/pkg/err"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrNotMember 非成員動作一律拒絕，不留任何寫入
	ErrNotMember = errors.New("user is not a member of this chat")
	// ErrNotSender 只有發送者能刪自己的訊息
	ErrNotSender = errors.New("only the sender can delete this message")
	// ErrMessageNotFound message does not exist
	ErrMessageNotFound = errors.New("message not found")
	// ErrRoomNotFound chat room does not exist
	ErrRoomNotFound = errors.New("chat room not found")
)

// MessageUseCase 訊息的寫入路徑：落地 → 建狀態列 → 交給 dispatcher
type MessageUseCase struct {
	roomRepo   repository.RoomRepository
	msgRepo    repository.MessageRepository
	status     *StatusUseCase
	dispatcher *DeliveryDispatcher
}

// NewMessageUseCase create MessageUseCase
func NewMessageUseCase(roomRepo repository.RoomRepository, msgRepo repository.MessageRepository, status *StatusUseCase, dispatcher *DeliveryDispatcher) *MessageUseCase {
	return &MessageUseCase{
		roomRepo:   roomRepo,
		msgRepo:    msgRepo,
		status:     status,
		dispatcher: dispatcher,
	}
}

// Send 落地訊息並分發。回傳訊息本體與分發結果。
// seq 取號之後的任何失敗會留下一個號碼空洞，接受（序號只要求單調）。
func (uc *MessageUseCase) Send(ctx context.Context, senderID, chatID, content string, msgType domain.MessageType, tempID, replyTo string) (*domain.ChatMessage, *domain.DeliveryReport, error) {
	if content == "" {
		return nil, nil, errprocess.Set("message content is empty")
	}
	if !domain.IsValidMessageType(msgType) {
		return nil, nil, errprocess.Set("invalid message type: " + string(msgType))
	}

	room, err := uc.roomRepo.FindByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, ErrRoomNotFound
		}
		return nil, nil, err
	}
	if !room.HasMember(senderID) {
		return nil, nil, ErrNotMember
	}

	seq, err := uc.msgRepo.NextSeq(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}

	msg := &domain.ChatMessage{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		Seq:       seq,
		SenderID:  senderID,
		Content:   content,
		Type:      msgType,
		ReplyTo:   replyTo,
		CreatedAt: time.Now().Unix(),
	}
	if err := uc.msgRepo.InsertMessage(ctx, msg); err != nil {
		return nil, nil, err
	}

	recipients := room.Recipients(senderID)
	if err := uc.status.CreateRows(ctx, msg, recipients); err != nil {
		return nil, nil, err
	}

	report := uc.dispatcher.Dispatch(ctx, msg, recipients)
	return msg, report, nil
}

// MarkDelivered 收件人回報收到；倒退嘗試是 no-op
func (uc *MessageUseCase) MarkDelivered(ctx context.Context, userID, messageID string) error {
	return uc.advance(ctx, userID, messageID, domain.StatusDelivered)
}

// MarkRead 收件人回報已讀
func (uc *MessageUseCase) MarkRead(ctx context.Context, userID, messageID string) error {
	return uc.advance(ctx, userID, messageID, domain.StatusRead)
}

func (uc *MessageUseCase) advance(ctx context.Context, userID, messageID string, target domain.MessageStatus) error {
	msg, err := uc.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrMessageNotFound
		}
		return err
	}
	if msg.SenderID == userID {
		// 發送者沒有自己的狀態列
		return ErrNotMember
	}

	// 非成員的回條直接拒絕，否則 Advance 的 upsert 會替外人建出狀態列
	room, err := uc.roomRepo.FindByID(ctx, msg.ChatID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrRoomNotFound
		}
		return err
	}
	if !room.HasMember(userID) {
		return ErrNotMember
	}

	applied, outcome, err := uc.status.Advance(ctx, msg, userID, target)
	if err != nil {
		return err
	}
	if outcome != repository.AdvanceNoop {
		uc.dispatcher.NotifySenderAdvance(ctx, msg, userID, applied)
	}
	return nil
}

// MarkChatRead 批次已讀，回傳 (created, updated)
func (uc *MessageUseCase) MarkChatRead(ctx context.Context, userID, chatID string, messageIDs []string) (int, int, error) {
	room, err := uc.roomRepo.FindByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, 0, ErrRoomNotFound
		}
		return 0, 0, err
	}
	if !room.HasMember(userID) {
		return 0, 0, ErrNotMember
	}
	return uc.status.BulkAdvance(ctx, userID, chatID, messageIDs, domain.StatusRead)
}

// Delete 發送者刪除自己的訊息：內容遮蔽，訊息列與狀態列保留
func (uc *MessageUseCase) Delete(ctx context.Context, userID, messageID string) (*domain.ChatMessage, error) {
	msg, err := uc.msgRepo.FindByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if msg.SenderID != userID {
		return nil, ErrNotSender
	}
	if err := uc.msgRepo.MaskContent(ctx, messageID); err != nil {
		return nil, err
	}
	msg.Content = ""
	msg.Deleted = true
	return msg, nil
}

// AggregateStatus 發送者查單一訊息的聚合狀態
func (uc *MessageUseCase) AggregateStatus(ctx context.Context, messageID string) (domain.MessageStatus, error) {
	return uc.status.Aggregate(ctx, messageID)
}
