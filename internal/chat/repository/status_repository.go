package repository

import (
	"context"
	"fmt"

	"realtime_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AdvanceOutcome Advance 的三種結果
type AdvanceOutcome int

const (
	// AdvanceNoop rank 不高於現況，未寫入
	AdvanceNoop AdvanceOutcome = iota
	// AdvanceCreated 缺列，以目標狀態新建
	AdvanceCreated
	// AdvanceUpdated 既有列被推進
	AdvanceUpdated
)

// StatusRepository definition per-recipient message status rows
type StatusRepository interface {
	EnsureIndexes(ctx context.Context) error
	// CreateRows 發送時為每個收件人建立 sent 列；重複建立視為 no-op
	CreateRows(ctx context.Context, rows []domain.MessageStatusRow) error
	// Advance 單調推進：只有 rank 更高才會覆寫。回傳實際生效的狀態
	Advance(ctx context.Context, row domain.MessageStatusRow) (domain.MessageStatus, AdvanceOutcome, error)
	// FindPendingForUser rank=sent 的列，最舊優先
	FindPendingForUser(ctx context.Context, userID string, limit int) ([]domain.MessageStatusRow, error)
	FindByMessage(ctx context.Context, messageID string) ([]domain.MessageStatusRow, error)
	FindOne(ctx context.Context, messageID, userID string) (*domain.MessageStatusRow, error)
}

type statusRepository struct {
	coll *mongo.Collection
}

// NewMongoStatusRepository create a StatusRepository
func NewMongoStatusRepository(db *mongo.Database) StatusRepository {
	return &statusRepository{
		coll: db.Collection("message_statuses"),
	}
}

// EnsureIndexes - (message_id, user_id) 唯一索引是 Advance CAS 的前提
func (r *statusRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "message_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "rank", Value: 1}, {Key: "created_at", Value: 1}},
		},
	})
	return err
}

// CreateRows insert sent rows, duplicates ignored
func (r *statusRepository) CreateRows(ctx context.Context, rows []domain.MessageStatusRow) error {
	if len(rows) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row)
	}
	_, err := r.coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("create status rows: %w", err)
	}
	return nil
}

// Advance - 條件更新 + upsert 當作 row-level CAS：
// filter 带 rank < target，已在更高狀態的列不會被匹配；
// upsert 撞到唯一索引表示並發的倒退嘗試，按 no-op 處理並回報現況。
func (r *statusRepository) Advance(ctx context.Context, row domain.MessageStatusRow) (domain.MessageStatus, AdvanceOutcome, error) {
	filter := bson.M{
		"message_id": row.MessageID,
		"user_id":    row.UserID,
		"rank":       bson.M{"$lt": row.Rank},
	}
	update := bson.M{
		"$set": bson.M{
			"status":     row.Status,
			"rank":       row.Rank,
			"updated_at": row.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"chat_id":    row.ChatID,
			"seq":        row.Seq,
			"created_at": row.CreatedAt,
		},
	}

	res, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// regression attempt: row exists at an equal-or-higher rank
			current, ferr := r.FindOne(ctx, row.MessageID, row.UserID)
			if ferr != nil {
				return "", AdvanceNoop, ferr
			}
			return current.Status, AdvanceNoop, nil
		}
		return "", AdvanceNoop, err
	}

	if res.UpsertedCount > 0 {
		return row.Status, AdvanceCreated, nil
	}
	return row.Status, AdvanceUpdated, nil
}

// FindPendingForUser sent rows for the user, oldest first
func (r *statusRepository) FindPendingForUser(ctx context.Context, userID string, limit int) ([]domain.MessageStatusRow, error) {
	filter := bson.M{
		"user_id": userID,
		"rank":    domain.StatusSent.Rank(),
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "seq", Value: 1}}).
		SetLimit(int64(limit))

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var rows []domain.MessageStatusRow
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByMessage all recipient rows of one message
func (r *statusRepository) FindByMessage(ctx context.Context, messageID string) ([]domain.MessageStatusRow, error) {
	cur, err := r.coll.Find(ctx, bson.M{"message_id": messageID})
	if err != nil {
		return nil, err
	}
	var rows []domain.MessageStatusRow
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// FindOne one (message, recipient) row
func (r *statusRepository) FindOne(ctx context.Context, messageID, userID string) (*domain.MessageStatusRow, error) {
	var row domain.MessageStatusRow
	err := r.coll.FindOne(ctx, bson.M{"message_id": messageID, "user_id": userID}).Decode(&row)
	if err != nil {
		return nil, err
	}
	return &row, nil
}
