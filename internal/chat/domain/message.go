package domain

// MessageType 訊息內容類型
type MessageType string

const (
	// MessageTypeText text message
	MessageTypeText MessageType = "text"
	// MessageTypeImage image message
	MessageTypeImage MessageType = "image"
	// MessageTypeVideo video message
	MessageTypeVideo MessageType = "video"
	// MessageTypeAudio audio message
	MessageTypeAudio MessageType = "audio"
	// MessageTypeFile file message
	MessageTypeFile MessageType = "file"
)

// MessageStatus 單一收件人視角的訊息狀態
type MessageStatus string

const (
	// StatusSent message persisted, not yet pushed to the recipient
	StatusSent MessageStatus = "sent"
	// StatusDelivered message pushed to at least one of the recipient's connections
	StatusDelivered MessageStatus = "delivered"
	// StatusRead recipient confirmed reading
	StatusRead MessageStatus = "read"
)

// Rank 狀態的單調序：sent(1) < delivered(2) < read(3)
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return 0
}

// IsValidMessageType check ws payload type
func IsValidMessageType(t MessageType) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeAudio, MessageTypeFile:
		return true
	}
	return false
}

// ChatMessage 表示一則聊天訊息
type ChatMessage struct {
	ID        string      `bson:"_id" json:"id"`
	ChatID    string      `bson:"chat_id" json:"chat_id"`
	Seq       int64       `bson:"seq" json:"seq"` // 每個 chat 內單調遞增
	SenderID  string      `bson:"sender_id" json:"sender_id"`
	Content   string      `bson:"content" json:"content"`
	Type      MessageType `bson:"type" json:"type"`
	ReplyTo   string      `bson:"reply_to,omitempty" json:"reply_to,omitempty"`
	Deleted   bool        `bson:"deleted" json:"deleted"`
	CreatedAt int64       `bson:"created_at" json:"created_at"`
}

// MessageStatusRow 每個 (message, recipient) 一列
// chat_id/seq/created_at 為冗餘欄位，補發查詢不需要 join
type MessageStatusRow struct {
	MessageID string        `bson:"message_id" json:"message_id"`
	UserID    string        `bson:"user_id" json:"user_id"`
	ChatID    string        `bson:"chat_id" json:"chat_id"`
	Seq       int64         `bson:"seq" json:"seq"`
	Status    MessageStatus `bson:"status" json:"status"`
	Rank      int           `bson:"rank" json:"rank"`
	CreatedAt int64         `bson:"created_at" json:"created_at"`
	UpdatedAt int64         `bson:"updated_at" json:"updated_at"`
}

// NewStatusRow build a status row at the given status
func NewStatusRow(msg *ChatMessage, recipient string, status MessageStatus, now int64) MessageStatusRow {
	return MessageStatusRow{
		MessageID: msg.ID,
		UserID:    recipient,
		ChatID:    msg.ChatID,
		Seq:       msg.Seq,
		Status:    status,
		Rank:      status.Rank(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AggregateStatus 發送者視角的聚合狀態：全部已讀 → read；
// 沒有任何一列停留在 sent → delivered；其餘 → sent。讀取時計算，不落地。
func AggregateStatus(rows []MessageStatusRow) MessageStatus {
	if len(rows) == 0 {
		return StatusSent
	}
	minRank := StatusRead.Rank()
	for _, row := range rows {
		if row.Rank < minRank {
			minRank = row.Rank
		}
	}
	switch minRank {
	case StatusRead.Rank():
		return StatusRead
	case StatusDelivered.Rank():
		return StatusDelivered
	}
	return StatusSent
}

// DeliveryReport dispatch 結果：即時送達與等待補發的收件人
type DeliveryReport struct {
	Delivered []string `json:"delivered"`
	Queued    []string `json:"queued"`
}
