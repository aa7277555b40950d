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

// ErrNotAdmin 群組管理操作需要 admin 角色
var ErrNotAdmin = errors.New("user is not an admin of this chat")

// RoomUseCase 聊天室的建立與成員管理
type RoomUseCase struct {
	roomRepo repository.RoomRepository
}

// NewRoomUseCase create RoomUseCase
func NewRoomUseCase(roomRepo repository.RoomRepository) *RoomUseCase {
	return &RoomUseCase{roomRepo: roomRepo}
}

// EnsurePrivateRoom 1對1 聊天室：已存在就回傳，否則建立
func (uc *RoomUseCase) EnsurePrivateRoom(ctx context.Context, userA, userB string) (*domain.ChatRoom, error) {
	if userA == userB {
		return nil, errprocess.Set("cannot open a private chat with yourself")
	}

	room, err := uc.roomRepo.FindOnePrivateRoom(ctx, userA, userB)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	room = &domain.ChatRoom{
		ID:        uuid.New().String(),
		IsGroup:   false,
		Members:   []string{userA, userB},
		CreatedAt: time.Now().Unix(),
	}
	if err := uc.roomRepo.CreateRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// CreateGroupRoom 建群，建立者自動成為 admin 與成員
func (uc *RoomUseCase) CreateGroupRoom(ctx context.Context, creatorID, name string, members []string) (*domain.ChatRoom, error) {
	if name == "" {
		return nil, errprocess.Set("group name is empty")
	}

	set := map[string]struct{}{creatorID: {}}
	all := []string{creatorID}
	for _, m := range members {
		if _, ok := set[m]; ok {
			continue
		}
		set[m] = struct{}{}
		all = append(all, m)
	}

	room := &domain.ChatRoom{
		ID:        uuid.New().String(),
		Name:      name,
		IsGroup:   true,
		Members:   all,
		Admins:    []string{creatorID},
		CreatedAt: time.Now().Unix(),
	}
	if err := uc.roomRepo.CreateRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// AddMember admin 加人；已是成員為 no-op
func (uc *RoomUseCase) AddMember(ctx context.Context, adminID, chatID, userID string) (*domain.ChatRoom, error) {
	room, err := uc.findGroup(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if room.RoleOf(adminID) != domain.RoleAdmin {
		return nil, ErrNotAdmin
	}
	if room.HasMember(userID) {
		return room, nil
	}
	room.Members = append(room.Members, userID)
	if err := uc.roomRepo.UpdateRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// RemoveMember admin 踢人，或成員自己退出
func (uc *RoomUseCase) RemoveMember(ctx context.Context, actorID, chatID, userID string) (*domain.ChatRoom, error) {
	room, err := uc.findGroup(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if actorID != userID && room.RoleOf(actorID) != domain.RoleAdmin {
		return nil, ErrNotAdmin
	}
	if !room.HasMember(userID) {
		return room, nil
	}

	members := make([]string, 0, len(room.Members))
	for _, m := range room.Members {
		if m != userID {
			members = append(members, m)
		}
	}
	admins := make([]string, 0, len(room.Admins))
	for _, a := range room.Admins {
		if a != userID {
			admins = append(admins, a)
		}
	}
	room.Members = members
	room.Admins = admins
	if err := uc.roomRepo.UpdateRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// GetRoom 查聊天室，僅限成員
func (uc *RoomUseCase) GetRoom(ctx context.Context, userID, chatID string) (*domain.ChatRoom, error) {
	room, err := uc.roomRepo.FindByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	if !room.HasMember(userID) {
		return nil, ErrNotMember
	}
	return room, nil
}

func (uc *RoomUseCase) findGroup(ctx context.Context, chatID string) (*domain.ChatRoom, error) {
	room, err := uc.roomRepo.FindByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	if !room.IsGroup {
		return nil, errprocess.Set("not a group chat: " + chatID)
	}
	return room, nil
}
