package app

import (
	"context"
	"testing"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestRoomUseCase_EnsurePrivateRoom(t *testing.T) {
	ctx := context.Background()
	logger.SetNewNop()

	t.Run("已存在就直接回傳", func(t *testing.T) {
		mockRepo := new(MockRoomRepository)
		existing := &domain.ChatRoom{ID: "room-1", Members: []string{"alice", "bob"}}
		mockRepo.On("FindOnePrivateRoom", ctx, "alice", "bob").Return(existing, nil).Once()

		uc := NewRoomUseCase(mockRepo)
		room, err := uc.EnsurePrivateRoom(ctx, "alice", "bob")

		assert.NoError(t, err)
		assert.Equal(t, existing, room)
		mockRepo.AssertNotCalled(t, "CreateRoom", mock.Anything, mock.Anything)
	})

	t.Run("不存在就建立", func(t *testing.T) {
		mockRepo := new(MockRoomRepository)
		mockRepo.On("FindOnePrivateRoom", ctx, "alice", "bob").Return(nil, mongo.ErrNoDocuments).Once()
		mockRepo.On("CreateRoom", ctx, mock.MatchedBy(func(room *domain.ChatRoom) bool {
			return !room.IsGroup && len(room.Members) == 2
		})).Return(nil).Once()

		uc := NewRoomUseCase(mockRepo)
		room, err := uc.EnsurePrivateRoom(ctx, "alice", "bob")

		assert.NoError(t, err)
		assert.NotEmpty(t, room.ID)
		mockRepo.AssertExpectations(t)
	})

	t.Run("不能跟自己開聊天室", func(t *testing.T) {
		uc := NewRoomUseCase(new(MockRoomRepository))
		_, err := uc.EnsurePrivateRoom(ctx, "alice", "alice")
		assert.Error(t, err)
	})
}

func TestRoomUseCase_CreateGroupRoom(t *testing.T) {
	ctx := context.Background()
	logger.SetNewNop()

	t.Run("建立者成為 admin 且成員去重", func(t *testing.T) {
		mockRepo := new(MockRoomRepository)
		mockRepo.On("CreateRoom", ctx, mock.MatchedBy(func(room *domain.ChatRoom) bool {
			return room.IsGroup &&
				len(room.Members) == 3 && // alice, bob, carol
				room.RoleOf("alice") == domain.RoleAdmin
		})).Return(nil).Once()

		uc := NewRoomUseCase(mockRepo)
		room, err := uc.CreateGroupRoom(ctx, "alice", "team", []string{"bob", "carol", "bob", "alice"})

		assert.NoError(t, err)
		assert.Equal(t, "team", room.Name)
		mockRepo.AssertExpectations(t)
	})

	t.Run("群組名稱必填", func(t *testing.T) {
		uc := NewRoomUseCase(new(MockRoomRepository))
		_, err := uc.CreateGroupRoom(ctx, "alice", "", []string{"bob"})
		assert.Error(t, err)
	})
}

func TestRoomUseCase_AddMember(t *testing.T) {
	ctx := context.Background()
	logger.SetNewNop()

	group := func() *domain.ChatRoom {
		return &domain.ChatRoom{
			ID:      "room-1",
			IsGroup: true,
			Members: []string{"alice", "bob"},
			Admins:  []string{"alice"},
		}
	}

	t.Run("admin 可以加人", func(t *testing.T) {
		mockRepo := new(MockRoomRepository)
		mockRepo.On("FindByID", ctx, "room-1").Return(group(), nil).Once()
		mockRepo.On("UpdateRoom", ctx, mock.MatchedBy(func(room *domain.ChatRoom) bool {
			return room.HasMember("carol")
		})).Return(nil).Once()

		uc := NewRoomUseCase(mockRepo)
		room, err := uc.AddMember(ctx, "alice", "room-1", "carol")

		assert.NoError(t, err)
		assert.True(t, room.HasMember("carol"))
	})

	t.Run("非 admin 不能加人", func(t *testing.T) {
		mockRepo := new(MockRoomRepository)
		mockRepo.On("FindByID", ctx, "room-1").Return(group(), nil).Once()

		uc := NewRoomUseCase(mockRepo)
		_, err := uc.AddMember(ctx, "bob", "room-1", "carol")

		assert.ErrorIs(t, err, ErrNotAdmin)
		mockRepo.AssertNotCalled(t, "UpdateRoom", mock.Anything, mock.Anything)
	})

	t.Run("已是成員為 no-op", func(t *testing.T) {
		mockRepo := new(MockRoomRepository)
		mockRepo.On("FindByID", ctx, "room-1").Return(group(), nil).Once()

		uc := NewRoomUseCase(mockRepo)
		room, err := uc.AddMember(ctx, "alice", "room-1", "bob")

		assert.NoError(t, err)
		assert.True(t, room.HasMember("bob"))
		mockRepo.AssertNotCalled(t, "UpdateRoom", mock.Anything, mock.Anything)
	})
}

func TestRoomUseCase_RemoveMember(t *testing.T) {
	ctx := context.Background()
	logger.SetNewNop()

	group := func() *domain.ChatRoom {
		return &domain.ChatRoom{
			ID:      "room-1",
			IsGroup: true,
			Members: []string{"alice", "bob"},
			Admins:  []string{"alice"},
		}
	}

	t.Run("成員可以自己退出", func(t *testing.T) {
		mockRepo := new(MockRoomRepository)
		mockRepo.On("FindByID", ctx, "room-1").Return(group(), nil).Once()
		mockRepo.On("UpdateRoom", ctx, mock.MatchedBy(func(room *domain.ChatRoom) bool {
			return !room.HasMember("bob")
		})).Return(nil).Once()

		uc := NewRoomUseCase(mockRepo)
		room, err := uc.RemoveMember(ctx, "bob", "room-1", "bob")

		assert.NoError(t, err)
		assert.False(t, room.HasMember("bob"))
	})

	t.Run("非 admin 不能踢別人", func(t *testing.T) {
		mockRepo := new(MockRoomRepository)
		mockRepo.On("FindByID", ctx, "room-1").Return(group(), nil).Once()

		uc := NewRoomUseCase(mockRepo)
		_, err := uc.RemoveMember(ctx, "bob", "room-1", "alice")

		assert.ErrorIs(t, err, ErrNotAdmin)
	})
}

func TestRoomUseCase_GetRoom(t *testing.T) {
	ctx := context.Background()
	logger.SetNewNop()

	room := &domain.ChatRoom{ID: "room-1", Members: []string{"alice", "bob"}}

	t.Run("成員可讀", func(t *testing.T) {
		mockRepo := new(MockRoomRepository)
		mockRepo.On("FindByID", ctx, "room-1").Return(room, nil).Once()

		uc := NewRoomUseCase(mockRepo)
		got, err := uc.GetRoom(ctx, "alice", "room-1")

		assert.NoError(t, err)
		assert.Equal(t, room, got)
	})

	t.Run("非成員拒絕", func(t *testing.T) {
		mockRepo := new(MockRoomRepository)
		mockRepo.On("FindByID", ctx, "room-1").Return(room, nil).Once()

		uc := NewRoomUseCase(mockRepo)
		_, err := uc.GetRoom(ctx, "mallory", "room-1")

		assert.ErrorIs(t, err, ErrNotMember)
	})
}
