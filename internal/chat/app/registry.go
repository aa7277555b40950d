package app

import (
	"encoding/json"
	"sync"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// ClientConn websocket 連線的最小寫入介面 (單測可注入)
type ClientConn interface {
	WriteMessage(messageType int, data []byte) error
}

// client 包一層寫鎖：多個 goroutine (dispatcher/catch-up/presence) 會對同一條連線寫入
type client struct {
	conn ClientConn
	mu   sync.Mutex
}

func (c *client) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// LockedConn 把 handler 自己的寫入 (pubsub 轉送、ping、回應) 和
// registry 推播收斂到同一把寫鎖上
type LockedConn struct {
	conn ClientConn
	mu   sync.Mutex
}

// NewLockedConn wrap a raw connection with a write lock
func NewLockedConn(conn ClientConn) *LockedConn {
	return &LockedConn{conn: conn}
}

// WriteMessage serialized write
func (c *LockedConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

// TransitionHook 上線/下線轉換時的回呼
type TransitionHook func(userID string, at time.Time)

// ConnectionRegistry 為 userID -> 連線集合的唯一真實來源。
// 同一使用者可有多條連線 (多裝置)；只有 0→1 與 1→0 才算上/下線轉換，
// 轉換回呼在鎖外呼叫且每次轉換恰好一次。
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]map[string]*client // userID -> connID -> client

	onOnline  TransitionHook
	onOffline TransitionHook

	clock func() time.Time // 可注入時鐘（單測用）
}

// NewConnectionRegistry create ConnectionRegistry
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[string]map[string]*client),
		clock: time.Now,
	}
}

// SetTransitionHooks 掛上線/下線回呼；必須在收第一條連線前設定
func (r *ConnectionRegistry) SetTransitionHooks(onOnline, onOffline TransitionHook) {
	r.onOnline = onOnline
	r.onOffline = onOffline
}

// Register 加入一條連線；回傳是否觸發了上線轉換
func (r *ConnectionRegistry) Register(userID, connID string, conn ClientConn) bool {
	if userID == "" || connID == "" || conn == nil {
		return false
	}

	r.mu.Lock()
	set := r.conns[userID]
	if set == nil {
		set = make(map[string]*client)
		r.conns[userID] = set
	}
	wentOnline := len(set) == 0
	set[connID] = &client{conn: conn}
	now := r.clock()
	r.mu.Unlock()

	// 轉換副作用（presence 通知、catch-up、投影落地）在鎖外執行
	if wentOnline && r.onOnline != nil {
		r.onOnline(userID, now)
	}
	return wentOnline
}

// Unregister 移除一條連線；不存在的 connID 為 no-op。回傳是否觸發了下線轉換
func (r *ConnectionRegistry) Unregister(userID, connID string) bool {
	r.mu.Lock()
	set := r.conns[userID]
	if set == nil {
		r.mu.Unlock()
		return false
	}
	if _, ok := set[connID]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(set, connID)
	wentOffline := len(set) == 0
	if wentOffline {
		delete(r.conns, userID)
	}
	now := r.clock()
	r.mu.Unlock()

	if wentOffline && r.onOffline != nil {
		r.onOffline(userID, now)
	}
	return wentOffline
}

// IsOnline 使用者是否至少有一條活躍連線
func (r *ConnectionRegistry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// ActiveUserCount 目前在線使用者數
func (r *ConnectionRegistry) ActiveUserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// PushToUser 對使用者所有連線廣播 (多裝置)。單條連線寫入失敗只記 log，
// 不影響其他連線。回傳寫入成功的連線數
func (r *ConnectionRegistry) PushToUser(userID string, resp domain.WSResponse) int {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Log.Errorf("push marshal error:", err)
		return 0
	}

	r.mu.RLock()
	set := r.conns[userID]
	clients := make([]*client, 0, len(set))
	for _, c := range set {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		if err := c.send(data); err != nil {
			logger.Log.Error("push write error",
				zap.String("userID", userID),
				zap.String("action", resp.Action),
				zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}
