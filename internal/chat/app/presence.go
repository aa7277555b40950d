package app

import (
	"context"
	"fmt"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg/logger"
)

// PresenceNotifier 上下線轉換的扇出與查詢。
// 線上判定的唯一來源是 ConnectionRegistry；Redis 與 Postgres 只是投影。
type PresenceNotifier struct {
	registry *ConnectionRegistry
	roomRepo repository.RoomRepository
	cache    repository.PresenceCacheRepository
	userRepo repository.UserRepository
	events   repository.EventPublisher
}

// NewPresenceNotifier create PresenceNotifier
func NewPresenceNotifier(registry *ConnectionRegistry, roomRepo repository.RoomRepository, cache repository.PresenceCacheRepository, userRepo repository.UserRepository, events repository.EventPublisher) *PresenceNotifier {
	return &PresenceNotifier{
		registry: registry,
		roomRepo: roomRepo,
		cache:    cache,
		userRepo: userRepo,
		events:   events,
	}
}

// Notify 只在 0→1 / 1→0 轉換時被呼叫（registry hook 保證），
// 同一使用者的第二台裝置上線不會走到這裡。
func (p *PresenceNotifier) Notify(ctx context.Context, userID string, isOnline bool, at time.Time) {
	info := domain.PresenceInfo{
		UserID:   userID,
		IsOnline: isOnline,
		LastSeen: at.Unix(),
	}

	var cacheErr error
	if isOnline {
		cacheErr = p.cache.SetOnline(ctx, userID, at)
	} else {
		cacheErr = p.cache.SetOffline(ctx, userID, at)
	}
	if cacheErr != nil {
		logger.Log.Errorf(fmt.Sprintf("presence cache set failed [user:%s], err:", userID), cacheErr)
	}
	if err := p.userRepo.UpdatePresence(ctx, userID, isOnline, at); err != nil {
		logger.Log.Errorf(fmt.Sprintf("presence projection update failed [user:%s], err:", userID), err)
	}

	if p.events != nil {
		ev := domain.ChatEvent{
			Kind:        domain.EventPresenceChanged,
			RecipientID: userID,
			IsOnline:    isOnline,
			At:          at.Unix(),
		}
		if err := p.events.Publish(ctx, ev); err != nil {
			logger.Log.Errorf(fmt.Sprintf("publish presence event failed [user:%s], err:", userID), err)
		}
	}

	contacts, err := p.roomRepo.FindUserContacts(ctx, userID)
	if err != nil {
		logger.Log.Errorf(fmt.Sprintf("presence fanout contact lookup failed [user:%s], err:", userID), err)
		return
	}

	push := domain.PresencePush(info)
	for _, contact := range contacts {
		// 離線聯絡人直接跳過，presence 更新不排隊
		if !p.registry.IsOnline(contact) {
			continue
		}
		p.registry.PushToUser(contact, push)
	}
}

// GetPresence 先走 Redis 快取，缺的再回 Postgres 投影補
func (p *PresenceNotifier) GetPresence(ctx context.Context, userIDs []string) ([]domain.PresenceInfo, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	cached, err := p.cache.Get(ctx, userIDs)
	if err != nil {
		logger.Log.Errorf("presence cache read failed, err:", err)
		cached = nil
	}
	hits := make(map[string]domain.PresenceInfo, len(cached))
	for _, info := range cached {
		hits[info.UserID] = info
	}

	result := make([]domain.PresenceInfo, 0, len(userIDs))
	var misses []string
	for _, id := range userIDs {
		if info, ok := hits[id]; ok {
			result = append(result, info)
		} else {
			misses = append(misses, id)
		}
	}

	if len(misses) > 0 {
		persisted, err := p.userRepo.FindPresence(ctx, misses)
		if err != nil {
			return nil, fmt.Errorf("presence fallback query: %w", err)
		}
		found := make(map[string]struct{}, len(persisted))
		for _, info := range persisted {
			found[info.UserID] = struct{}{}
			result = append(result, info)
		}
		for _, id := range misses {
			// 沒見過的使用者回離線、零 last_seen
			if _, ok := found[id]; !ok {
				result = append(result, domain.PresenceInfo{UserID: id})
			}
		}
	}
	return result, nil
}
