package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"realtime_chat_service/internal/chat/domain"

	"github.com/go-redis/redis/v8"
)

// presence key: chat:presence:<user>
func presenceKey(userID string) string { return "chat:presence:" + userID }

// PresenceCacheRepository definition presence projection cache
type PresenceCacheRepository interface {
	SetOnline(ctx context.Context, userID string, at time.Time) error
	SetOffline(ctx context.Context, userID string, lastSeen time.Time) error
	// Get 批次查詢；快取沒有的使用者不在回傳值裡
	Get(ctx context.Context, userIDs []string) ([]domain.PresenceInfo, error)
}

type presenceCacheRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPresenceRepository create a PresenceCacheRepository
func NewRedisPresenceRepository(client *redis.Client, ttl time.Duration) PresenceCacheRepository {
	return &presenceCacheRepository{client: client, ttl: ttl}
}

// SetOnline mark user online and renew the TTL
func (r *presenceCacheRepository) SetOnline(ctx context.Context, userID string, at time.Time) error {
	return r.set(ctx, domain.PresenceInfo{UserID: userID, IsOnline: true, LastSeen: at.Unix()})
}

// SetOffline mark user offline with the disconnect time
func (r *presenceCacheRepository) SetOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	return r.set(ctx, domain.PresenceInfo{UserID: userID, IsOnline: false, LastSeen: lastSeen.Unix()})
}

func (r *presenceCacheRepository) set(ctx context.Context, p domain.PresenceInfo) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal presence: %w", err)
	}
	return r.client.Set(ctx, presenceKey(p.UserID), data, r.ttl).Err()
}

// Get batch lookup via MGET
func (r *presenceCacheRepository) Get(ctx context.Context, userIDs []string) ([]domain.PresenceInfo, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, presenceKey(id))
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget presence: %w", err)
	}

	out := make([]domain.PresenceInfo, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // cache miss
		}
		var p domain.PresenceInfo
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
