package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"realtime_chat_service/internal/member/domain"
	"realtime_chat_service/internal/member/repository"
	"realtime_chat_service/pkg/database"
	"realtime_chat_service/pkg/encrypt"
	"realtime_chat_service/pkg/logger"
	token "realtime_chat_service/pkg/token"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MemberUseCase 這裡封裝了對外提供的應用服務
type MemberUseCase interface {
	Register(ctx context.Context, email, password string) error
	FindUser(ctx context.Context, param *domain.UserQuery) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	Logout(ctx context.Context, token string) error
	ForceLogout(ctx context.Context, userID string) error
	CheckSessionTimeout(ctx context.Context, token string) (bool, error)
	ReconnectSession(ctx context.Context, token string) error
}

type memberUseCase struct {
	memberRepo repository.MemberRepository
	sessionTTL time.Duration
	redisRepo  database.RedisRepository[domain.UserSession]
}

// NewMemberUseCase 建立一個新的 MemberUseCase
func NewMemberUseCase(memberRepo repository.MemberRepository,
	sessionTTL time.Duration,
	redisRepo database.RedisRepository[domain.UserSession],
) MemberUseCase {
	return &memberUseCase{
		memberRepo: memberRepo,
		sessionTTL: sessionTTL,
		redisRepo:  redisRepo,
	}
}

// Register
func (m *memberUseCase) Register(ctx context.Context, email, password string) error {
	// 檢查 email 是否已存在
	if _, err := m.memberRepo.FindByUser(ctx, &domain.UserQuery{Email: &email}); err == nil {
		return errors.New("email already exists")
	}

	if err := encrypt.ValidatePasswordStrength(password); err != nil {
		return err
	}
	pw, err := encrypt.HashPassword(password)
	if err != nil {
		logger.Log.Errorf("password err :", err)
		return err
	}

	user := domain.User{
		UserID:   uuid.New().String(),
		Email:    email,
		Password: pw,
	}

	logger.Log.Info(fmt.Sprintf("usecase Register : %s", user.UserID))

	return m.memberRepo.CreateUser(ctx, &user)
}

// FindUser 查詢使用者
func (m *memberUseCase) FindUser(ctx context.Context, param *domain.UserQuery) (*domain.User, error) {
	return m.memberRepo.FindByUser(ctx, param)
}

// Login 發 token 與 session。
// 線上狀態由聊天連線決定，登入本身不把使用者標成 online。
func (m *memberUseCase) Login(ctx context.Context, email, password string) (string, error) {
	user, err := m.memberRepo.FindByUser(ctx, &domain.UserQuery{Email: &email})
	if err != nil {
		logger.Log.Error("email can't find!!!")
		return "", errors.New("user not found")
	}

	if err = user.IsPasswordMatch(password); err != nil {
		logger.Log.Error("password can't match!!!")
		return "", err
	}

	t, err := token.GenerateJWTWrapper(user.UserID, string(token.RoleMember))
	if err != nil {
		return "", err
	}
	now := time.Now()
	session := domain.UserSession{
		Token:        t,
		UserID:       user.UserID,
		CreatedAt:    now,
		LastActivity: now,
		ExpiredAt:    now.Add(m.sessionTTL),
	}

	if err := m.redisRepo.Set(ctx, user.UserID, session, m.sessionTTL); err != nil {
		return "", err
	}

	return t, nil
}

// Logout 清 session，並把持久化投影關成 offline
func (m *memberUseCase) Logout(ctx context.Context, t string) error {
	tokenInfo, err := token.ParseJWTWrapper(t)
	if err != nil {
		logger.Log.Error("Logout err :", zap.String("err", err.Error()))
		return err
	}

	m.redisRepo.Del(ctx, tokenInfo.UserID)

	return m.memberRepo.SetOffline(ctx, tokenInfo.UserID, time.Now().Unix())
}

// ForceLogout 直接把該 userID 下所有 session 都清除
func (m *memberUseCase) ForceLogout(ctx context.Context, userID string) error {
	m.redisRepo.Del(ctx, userID)

	return m.memberRepo.SetOffline(ctx, userID, time.Now().Unix())
}

// CheckSessionTimeout session 是否已過期
func (m *memberUseCase) CheckSessionTimeout(ctx context.Context, t string) (bool, error) {
	tokenInfo, err := token.ParseJWTWrapper(t)
	if err != nil {
		logger.Log.Error("CheckSessionTimeout err :", zap.String("err", err.Error()))
		return true, err
	}

	ttl, err := m.redisRepo.GetTTL(ctx, tokenInfo.UserID)
	if err != nil {
		return true, err
	}

	if ttl > 0 {
		return false, nil
	}
	return true, nil
}

// ReconnectSession 重新連線時延長 session
func (m *memberUseCase) ReconnectSession(ctx context.Context, t string) error {
	tokenInfo, err := token.ParseJWTWrapper(t)
	if err != nil {
		logger.Log.Error("ReconnectSession err :", zap.String("err", err.Error()))
		return err
	}

	return m.redisRepo.ExtendTTL(ctx, tokenInfo.UserID, m.sessionTTL)
}
