package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func handlerFixture(registry *ConnectionRegistry) *ChatWebsocketHandler {
	return NewChatWebsocketHandler(registry, NewRoomUseCase(new(MockRoomRepository)), nil, nil, new(MockPubSub))
}

func wsPayload(t *testing.T, req domain.WSRequest) []byte {
	t.Helper()
	b, err := json.Marshal(req)
	assert.NoError(t, err)
	return b
}

func TestChatWebsocketHandler_Authenticate(t *testing.T) {
	ctx := context.Background()
	logger.SetNewNop()

	t.Run("ack 先於上線補發推播", func(t *testing.T) {
		registry := NewConnectionRegistry()
		// 上線 hook 同步推一則補發訊息，模擬 catch-up
		registry.SetTransitionHooks(func(userID string, at time.Time) {
			registry.PushToUser(userID, domain.NewMessagePush(&domain.ChatMessage{ID: "msg-1", ChatID: "chat-1"}, true))
		}, nil)
		h := handlerFixture(registry)

		conn := &fakeConn{}
		state := &connState{userID: "bob", connID: "conn-1", roomSubs: map[string]context.CancelFunc{}}

		h.textMessageAction(ctx, NewLockedConn(conn), state,
			wsPayload(t, domain.WSRequest{Action: string(domain.Authenticate), UserID: "bob"}))

		assert.True(t, state.authenticated)
		assert.True(t, registry.IsOnline("bob"))
		assert.Equal(t, []string{string(domain.Authenticate), string(domain.NewMessage)}, conn.actions())
	})

	t.Run("user id 與 token 不符拒絕註冊", func(t *testing.T) {
		registry := NewConnectionRegistry()
		h := handlerFixture(registry)

		conn := &fakeConn{}
		state := &connState{userID: "bob", connID: "conn-1", roomSubs: map[string]context.CancelFunc{}}

		h.textMessageAction(ctx, NewLockedConn(conn), state,
			wsPayload(t, domain.WSRequest{Action: string(domain.Authenticate), UserID: "mallory"}))

		assert.False(t, state.authenticated)
		assert.False(t, registry.IsOnline("bob"))
		pushes := conn.pushed()
		assert.Len(t, pushes, 1)
		assert.False(t, pushes[0].Success)
	})

	t.Run("未認證前其他動作一律拒絕", func(t *testing.T) {
		registry := NewConnectionRegistry()
		h := handlerFixture(registry)

		conn := &fakeConn{}
		state := &connState{userID: "bob", connID: "conn-1", roomSubs: map[string]context.CancelFunc{}}

		h.textMessageAction(ctx, NewLockedConn(conn), state,
			wsPayload(t, domain.WSRequest{Action: string(domain.SendMessage), ChatID: "chat-1", Content: "hi"}))

		pushes := conn.pushed()
		assert.Len(t, pushes, 1)
		assert.Equal(t, "not authenticated", pushes[0].Error)
	})
}
