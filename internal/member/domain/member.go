package domain

import (
	"time"

	"realtime_chat_service/pkg/encrypt"
)

// User 用來表示使用者
type User struct {
	ID       int64
	UserID   string
	Email    string
	Password string

	// IsOnline/LastSeen 是聊天服務維護的投影，這裡只讀
	IsOnline bool
	LastSeen int64
}

// UserSession 用來表示使用者的 Session
type UserSession struct {
	Token        string    `json:"Token"`
	UserID       string    `json:"UserID"`
	CreatedAt    time.Time `json:"CreatedAt"`
	LastActivity time.Time `json:"LastActivity"`
	ExpiredAt    time.Time `json:"ExpiredAt"`
}

// IsPasswordMatch 密碼驗證
func (u *User) IsPasswordMatch(inputPwd string) error {
	return encrypt.CheckPassword(u.Password, inputPwd)
}

// IsExpired 檢查 Session 是否已過期
func (s *UserSession) IsExpired() bool {
	return time.Now().After(s.ExpiredAt)
}

// UserQuery join conditions are used to query users
type UserQuery struct {
	ID     *int64  `db:"id"`
	UserID *string `db:"user_id"`
	Email  *string `db:"email"`
}
