package domain

// PresenceInfo 使用者在線狀態的快取投影
// 真實來源是 Connection Registry，這裡只是投影值
type PresenceInfo struct {
	UserID   string `json:"user_id"`
	IsOnline bool   `json:"is_online"`
	LastSeen int64  `json:"last_seen"`
}

// ChatEvent 發布到 Kafka 的聊天事件（下游通知管線消費）
type ChatEvent struct {
	Kind        string        `json:"kind"`
	MessageID   string        `json:"message_id,omitempty"`
	ChatID      string        `json:"chat_id,omitempty"`
	SenderID    string        `json:"sender_id,omitempty"`
	RecipientID string        `json:"recipient_id,omitempty"`
	Status      MessageStatus `json:"status,omitempty"`
	IsOnline    bool          `json:"is_online,omitempty"`
	At          int64         `json:"at"`
}

const (
	// EventMessageDispatched message persisted and dispatch attempted
	EventMessageDispatched = "message_dispatched"
	// EventStatusAdvanced a recipient status row moved forward
	EventStatusAdvanced = "status_advanced"
	// EventPresenceChanged a user went online/offline
	EventPresenceChanged = "presence_changed"
)
