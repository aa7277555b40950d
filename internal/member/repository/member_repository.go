package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"realtime_chat_service/internal/member/domain"
)

// MemberRepository definition get User info
type MemberRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	SetOffline(ctx context.Context, userID string, lastSeen int64) error
	FindByUser(ctx context.Context, userQuery *domain.UserQuery) (*domain.User, error)
}

type memberRepository struct {
	db *pgxpool.Pool
}

// NewMemberRepository create a MemberRepository
func NewMemberRepository(db *pgxpool.Pool) MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := r.db.Exec(ctx,
		"INSERT INTO users(user_id, email, password) VALUES ($1, $2, $3)",
		user.UserID, user.Email, user.Password)
	return err
}

// SetOffline 登出時強制關閉線上投影；上線投影由聊天服務維護
func (r *memberRepository) SetOffline(ctx context.Context, userID string, lastSeen int64) error {
	_, err := r.db.Exec(ctx,
		"UPDATE users SET is_online = false, last_seen = $1 WHERE user_id = $2",
		lastSeen, userID)
	return err
}

func (r *memberRepository) FindByUser(ctx context.Context, userQuery *domain.UserQuery) (*domain.User, error) {
	queryStr := "SELECT id, user_id, email, password, is_online, last_seen FROM users WHERE 1=1"
	params := []interface{}{}
	paramCount := 1

	if userQuery.Email != nil {
		queryStr += fmt.Sprintf(" AND email = $%d", paramCount)
		params = append(params, *userQuery.Email)
		paramCount++
	}
	if userQuery.UserID != nil {
		queryStr += fmt.Sprintf(" AND user_id = $%d", paramCount)
		params = append(params, *userQuery.UserID)
		paramCount++
	}
	if userQuery.ID != nil {
		queryStr += fmt.Sprintf(" AND id = $%d", paramCount)
		params = append(params, *userQuery.ID)
		paramCount++
	}

	row := r.db.QueryRow(ctx, queryStr, params...)
	var user domain.User
	err := row.Scan(&user.ID, &user.UserID, &user.Email, &user.Password, &user.IsOnline, &user.LastSeen)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.New("no user found with given criteria")
		}
		return nil, err
	}

	return &user, nil
}
