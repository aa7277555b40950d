package app

import (
	"sync"
	"testing"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestConnectionRegistry_Register(t *testing.T) {
	logger.SetNewNop()

	t.Run("第一條連線觸發上線轉換", func(t *testing.T) {
		registry := NewConnectionRegistry()
		var onlineCalls []string
		registry.SetTransitionHooks(func(userID string, at time.Time) {
			onlineCalls = append(onlineCalls, userID)
		}, nil)

		wentOnline := registry.Register("user-1", "conn-1", &fakeConn{})

		assert.True(t, wentOnline)
		assert.True(t, registry.IsOnline("user-1"))
		assert.Equal(t, []string{"user-1"}, onlineCalls)
	})

	t.Run("第二台裝置不再觸發轉換", func(t *testing.T) {
		registry := NewConnectionRegistry()
		onlineCount := 0
		registry.SetTransitionHooks(func(userID string, at time.Time) {
			onlineCount++
		}, nil)

		registry.Register("user-1", "conn-1", &fakeConn{})
		wentOnline := registry.Register("user-1", "conn-2", &fakeConn{})

		assert.False(t, wentOnline)
		assert.Equal(t, 1, onlineCount)
		assert.Equal(t, 1, registry.ActiveUserCount())
	})

	t.Run("空參數不註冊", func(t *testing.T) {
		registry := NewConnectionRegistry()
		assert.False(t, registry.Register("", "conn-1", &fakeConn{}))
		assert.False(t, registry.Register("user-1", "", &fakeConn{}))
		assert.False(t, registry.Register("user-1", "conn-1", nil))
		assert.Equal(t, 0, registry.ActiveUserCount())
	})
}

func TestConnectionRegistry_Unregister(t *testing.T) {
	logger.SetNewNop()

	t.Run("最後一條斷線觸發下線轉換", func(t *testing.T) {
		registry := NewConnectionRegistry()
		var offlineCalls []string
		registry.SetTransitionHooks(nil, func(userID string, at time.Time) {
			offlineCalls = append(offlineCalls, userID)
		})

		registry.Register("user-1", "conn-1", &fakeConn{})
		registry.Register("user-1", "conn-2", &fakeConn{})

		assert.False(t, registry.Unregister("user-1", "conn-1"))
		assert.True(t, registry.IsOnline("user-1"))
		assert.Empty(t, offlineCalls)

		assert.True(t, registry.Unregister("user-1", "conn-2"))
		assert.False(t, registry.IsOnline("user-1"))
		assert.Equal(t, []string{"user-1"}, offlineCalls)
	})

	t.Run("重複解除註冊是 no-op", func(t *testing.T) {
		registry := NewConnectionRegistry()
		offlineCount := 0
		registry.SetTransitionHooks(nil, func(userID string, at time.Time) {
			offlineCount++
		})

		registry.Register("user-1", "conn-1", &fakeConn{})
		assert.True(t, registry.Unregister("user-1", "conn-1"))
		assert.False(t, registry.Unregister("user-1", "conn-1"))
		assert.False(t, registry.Unregister("user-2", "conn-9"))
		assert.Equal(t, 1, offlineCount)
	})

	t.Run("並發註冊解除每個使用者轉換各恰好一次", func(t *testing.T) {
		registry := NewConnectionRegistry()
		var mu sync.Mutex
		online, offline := 0, 0
		registry.SetTransitionHooks(
			func(userID string, at time.Time) {
				mu.Lock()
				online++
				mu.Unlock()
			},
			func(userID string, at time.Time) {
				mu.Lock()
				offline++
				mu.Unlock()
			},
		)

		var wg sync.WaitGroup
		connIDs := []string{"a", "b", "c", "d", "e"}
		for _, id := range connIDs {
			wg.Add(1)
			go func(connID string) {
				defer wg.Done()
				registry.Register("user-1", connID, &fakeConn{})
			}(id)
		}
		wg.Wait()

		for _, id := range connIDs {
			wg.Add(1)
			go func(connID string) {
				defer wg.Done()
				registry.Unregister("user-1", connID)
			}(id)
		}
		wg.Wait()

		assert.Equal(t, 1, online)
		assert.Equal(t, 1, offline)
		assert.False(t, registry.IsOnline("user-1"))
	})
}

func TestConnectionRegistry_PushToUser(t *testing.T) {
	logger.SetNewNop()

	t.Run("多裝置全部收到", func(t *testing.T) {
		registry := NewConnectionRegistry()
		connA := &fakeConn{}
		connB := &fakeConn{}
		registry.Register("user-1", "conn-a", connA)
		registry.Register("user-1", "conn-b", connB)

		sent := registry.PushToUser("user-1", domain.WSResponse{Action: string(domain.NewMessage), Success: true})

		assert.Equal(t, 2, sent)
		assert.Equal(t, []string{string(domain.NewMessage)}, connA.actions())
		assert.Equal(t, []string{string(domain.NewMessage)}, connB.actions())
	})

	t.Run("單條連線失敗不影響其他連線", func(t *testing.T) {
		registry := NewConnectionRegistry()
		broken := &fakeConn{fail: true}
		healthy := &fakeConn{}
		registry.Register("user-1", "conn-a", broken)
		registry.Register("user-1", "conn-b", healthy)

		sent := registry.PushToUser("user-1", domain.WSResponse{Action: string(domain.NewMessage)})

		assert.Equal(t, 1, sent)
		assert.Len(t, healthy.pushed(), 1)
	})

	t.Run("離線使用者寫入數為零", func(t *testing.T) {
		registry := NewConnectionRegistry()
		sent := registry.PushToUser("ghost", domain.WSResponse{Action: string(domain.NewMessage)})
		assert.Equal(t, 0, sent)
	})
}
