package domain

// Action websocket request action
type Action string

const (
	// Authenticate websocket action authenticate，註冊連線並觸發上線流程
	Authenticate Action = "authenticate"

	// CreateRoom websocket action create_room，單人或群組
	CreateRoom Action = "create_room"
	// AddMember websocket action add_member (group admin only)
	AddMember Action = "add_member"
	// RemoveMember websocket action remove_member (admin 踢人或自己退出)
	RemoveMember Action = "remove_member"
	// JoinRoom websocket action join_room (legacy room fan-out)
	JoinRoom Action = "join_room"
	// LeaveRoom websocket action leave_room
	LeaveRoom Action = "leave_room"

	// SendMessage websocket action send_message
	SendMessage Action = "send_message"
	// MessageDelivered websocket action message_delivered
	MessageDelivered Action = "message_delivered"
	// MessageRead websocket action message_read
	MessageRead Action = "message_read"
	// BulkMarkRead websocket action bulk_mark_read
	BulkMarkRead Action = "bulk_mark_read"
	// DeleteMessage websocket action delete_message
	DeleteMessage Action = "delete_message"
	// GetPresence websocket action get_presence
	GetPresence Action = "get_presence"

	// MessageSent server ack for send_message (帶 temp_id)
	MessageSent Action = "message_sent"
	// NewMessage server push of a chat message
	NewMessage Action = "new_message"
	// MessageStatusUpdated server push of a per-recipient status change
	MessageStatusUpdated Action = "message_status_updated"
	// PresenceUpdated server push of a contact online/offline transition
	PresenceUpdated Action = "presence_updated"
	// MessageDeleted server push of a content-masked message
	MessageDeleted Action = "message_deleted"
	// DeleteError delete_message failed
	DeleteError Action = "delete_error"
	// MessageError send/read path failed
	MessageError Action = "message_error"
)

// WSRequest websocket Request
type WSRequest struct {
	Action     string   `json:"action"`
	UserID     string   `json:"user_id,omitempty"`
	ChatID     string   `json:"chat_id,omitempty"`
	Name       string   `json:"name,omitempty"`
	Content    string   `json:"content,omitempty"`
	Type       string   `json:"type,omitempty"`
	TempID     string   `json:"temp_id,omitempty"`
	ReplyTo    string   `json:"reply_to,omitempty"`
	MessageID  string   `json:"message_id,omitempty"`
	MessageIDs []string `json:"message_ids,omitempty"`
	UserIDs    []string `json:"user_ids,omitempty"`
}

// WSResponse websocket Response
type WSResponse struct {
	Action  string                 `json:"action"`
	Success bool                   `json:"success"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// NewMessagePush build the new_message push payload
func NewMessagePush(msg *ChatMessage, isPending bool) WSResponse {
	return WSResponse{
		Action:  string(NewMessage),
		Success: true,
		Payload: map[string]interface{}{
			"message":    msg,
			"is_pending": isPending,
		},
	}
}

// StatusUpdatePush build the message_status_updated push payload
func StatusUpdatePush(messageID string, status MessageStatus, userID string) WSResponse {
	return WSResponse{
		Action:  string(MessageStatusUpdated),
		Success: true,
		Payload: map[string]interface{}{
			"message_id": messageID,
			"status":     string(status),
			"user_id":    userID,
		},
	}
}

// PresencePush build the presence_updated push payload
func PresencePush(p PresenceInfo) WSResponse {
	return WSResponse{
		Action:  string(PresenceUpdated),
		Success: true,
		Payload: map[string]interface{}{
			"user_id":   p.UserID,
			"is_online": p.IsOnline,
			"last_seen": p.LastSeen,
		},
	}
}

// DeletedPush build the message_deleted push payload
func DeletedPush(messageID, chatID string) WSResponse {
	return WSResponse{
		Action:  string(MessageDeleted),
		Success: true,
		Payload: map[string]interface{}{
			"message_id": messageID,
			"chat_id":    chatID,
		},
	}
}
