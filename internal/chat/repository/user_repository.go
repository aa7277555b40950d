package repository

import (
	"context"
	"fmt"
	"time"

	"realtime_chat_service/internal/chat/domain"

	"github.com/jackc/pgx/v4/pgxpool"
)

// UserRepository definition user presence projection (users table)
type UserRepository interface {
	// UpdatePresence 上下線轉換時寫回投影欄位
	UpdatePresence(ctx context.Context, userID string, isOnline bool, lastSeen time.Time) error
	// FindPresence 快取未命中時的後備查詢
	FindPresence(ctx context.Context, userIDs []string) ([]domain.PresenceInfo, error)
}

type userRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository create a UserRepository
func NewUserRepository(db *pgxpool.Pool) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) UpdatePresence(ctx context.Context, userID string, isOnline bool, lastSeen time.Time) error {
	_, err := r.db.Exec(ctx,
		"UPDATE users SET is_online = $1, last_seen = $2 WHERE user_id = $3",
		isOnline, lastSeen.Unix(), userID)
	return err
}

func (r *userRepository) FindPresence(ctx context.Context, userIDs []string) ([]domain.PresenceInfo, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx,
		"SELECT user_id, is_online, last_seen FROM users WHERE user_id = ANY($1)",
		userIDs)
	if err != nil {
		return nil, fmt.Errorf("find presence: %w", err)
	}
	defer rows.Close()

	var out []domain.PresenceInfo
	for rows.Next() {
		var p domain.PresenceInfo
		if err := rows.Scan(&p.UserID, &p.IsOnline, &p.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
