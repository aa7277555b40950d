package repository

import (
	"context"
	"fmt"
	"sort"

	"realtime_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository definition chat message storage
type MessageRepository interface {
	// NextSeq 取得 chat 內下一個單調遞增序號
	NextSeq(ctx context.Context, chatID string) (int64, error)
	InsertMessage(ctx context.Context, msg *domain.ChatMessage) error
	FindByID(ctx context.Context, messageID string) (*domain.ChatMessage, error)
	FindByIDs(ctx context.Context, messageIDs []string) ([]domain.ChatMessage, error)
	// MaskContent 刪除訊息 = 清空內容，不移除資料列
	MaskContent(ctx context.Context, messageID string) error
}

type chatMessageRepository struct {
	msgColl     *mongo.Collection
	counterColl *mongo.Collection
}

// NewMongoChatMessageRepository create a MessageRepository
func NewMongoChatMessageRepository(db *mongo.Database) MessageRepository {
	return &chatMessageRepository{
		msgColl:     db.Collection("messages"),
		counterColl: db.Collection("chat_counters"),
	}
}

// NextSeq - 用 counter document 的 $inc 取號，跨連線單調
func (r *chatMessageRepository) NextSeq(ctx context.Context, chatID string) (int64, error) {
	filter := bson.M{"_id": chatID}
	update := bson.M{"$inc": bson.M{"seq": int64(1)}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	if err := r.counterColl.FindOneAndUpdate(ctx, filter, update, opts).Decode(&counter); err != nil {
		return 0, fmt.Errorf("next seq for chat %s: %w", chatID, err)
	}
	return counter.Seq, nil
}

// InsertMessage - 寫入一筆聊天訊息
func (r *chatMessageRepository) InsertMessage(ctx context.Context, msg *domain.ChatMessage) error {
	_, err := r.msgColl.InsertOne(ctx, msg)
	return err
}

// FindByID find message by id
func (r *chatMessageRepository) FindByID(ctx context.Context, messageID string) (*domain.ChatMessage, error) {
	var msg domain.ChatMessage
	err := r.msgColl.FindOne(ctx, bson.M{"_id": messageID}).Decode(&msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindByIDs find messages by ids, ordered by (chat_id, seq)
func (r *chatMessageRepository) FindByIDs(ctx context.Context, messageIDs []string) ([]domain.ChatMessage, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	cur, err := r.msgColl.Find(ctx, bson.M{"_id": bson.M{"$in": messageIDs}})
	if err != nil {
		return nil, err
	}
	var msgs []domain.ChatMessage
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, err
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].ChatID != msgs[j].ChatID {
			return msgs[i].CreatedAt < msgs[j].CreatedAt
		}
		return msgs[i].Seq < msgs[j].Seq
	})
	return msgs, nil
}

// MaskContent mask the message content instead of deleting the row
func (r *chatMessageRepository) MaskContent(ctx context.Context, messageID string) error {
	filter := bson.M{"_id": messageID}
	update := bson.M{"$set": bson.M{"content": "", "deleted": true}}
	res, err := r.msgColl.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
