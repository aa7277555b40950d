package app

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg/logger"
	"realtime_chat_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatWebsocketHandler 可包含所有需要的 UseCase
type ChatWebsocketHandler struct {
	registry  *ConnectionRegistry
	roomUC    *RoomUseCase
	messageUC *MessageUseCase
	presence  *PresenceNotifier
	pubsub    repository.PubSubRepository
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(
	registry *ConnectionRegistry,
	roomUC *RoomUseCase,
	messageUC *MessageUseCase,
	presence *PresenceNotifier,
	pubsub repository.PubSubRepository,
) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{
		registry:  registry,
		roomUC:    roomUC,
		messageUC: messageUC,
		presence:  presence,
		pubsub:    pubsub,
	}
}

// connState 單一連線的狀態；只在該連線的 read loop goroutine 裡讀寫
type connState struct {
	userID        string
	connID        string
	authenticated bool
	roomSubs      map[string]context.CancelFunc
}

// HandleConnection 是 WebSocket 連線的進入點
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	tokenUser := conn.Locals(middlewares.TokenUserID)
	claimUserID, ok := tokenUser.(string)
	if !ok || claimUserID == "" {
		logger.Log.Warn("websocket connection without token claim")
		conn.Close()
		return
	}

	// 所有對這條連線的寫入 (回應、pubsub 轉送、registry 推播) 走同一把鎖
	locked := NewLockedConn(conn)
	state := &connState{
		userID:   claimUserID,
		connID:   uuid.New().String(),
		roomSubs: map[string]context.CancelFunc{},
	}
	logger.Log.Info("websocket connected",
		zap.String("userID", state.userID), zap.String("connID", state.connID))

	ticker := time.NewTicker(10 * time.Minute)
	ctxClose, cancel := context.WithCancel(context.Background())

	defer func() {
		ticker.Stop()
		for _, cancelSub := range state.roomSubs {
			cancelSub()
		}
		if state.authenticated {
			h.registry.Unregister(state.userID, state.connID)
		}
		logger.Log.Info("websocket close",
			zap.String("userID", state.userID), zap.String("connID", state.connID))
		conn.Close()
		cancel()
	}()

	//client發出close
	//fiber會自動處理(在read msg 回傳err),故需要SetCloseHandler另外接出
	conn.SetCloseHandler(func(code int, text string) error {
		logger.Log.Infof("WebSocket closed:", conn.RemoteAddr())
		return nil
	})

	//server發出ping之後client連線正常會回pong
	conn.SetPongHandler(func(appData string) error {
		return nil
	})

	//client發出ping,手動回pong
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(appData),
			time.Now().Add(time.Second),
		)
	})

	// 定期發送 Ping
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := locked.WriteMessage(websocket.PingMessage, []byte("ping message")); err != nil {
					logger.Log.Errorf("Ping error:", err)
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Infof("Connection closed:", err)
			} else {
				logger.Log.Errorf("websocket read error:", err)
			}
			return
		}
		h.execWebsocketAction(ctx, locked, state, mt, message)
	}
}

func (h *ChatWebsocketHandler) execWebsocketAction(ctx context.Context, conn *LockedConn, state *connState, mt int, msg []byte) {
	switch mt {
	case websocket.TextMessage:
		h.textMessageAction(ctx, conn, state, msg)
	default:
		h.sendError(conn, "unknown message type")
	}
}

func (h *ChatWebsocketHandler) textMessageAction(ctx context.Context, conn *LockedConn, state *connState, msg []byte) {
	var req domain.WSRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		logger.Log.Errorf("json unmarshal error:", err)
		h.sendError(conn, "malformed request")
		return
	}

	resp := domain.WSResponse{Action: req.Action, Success: false, Payload: map[string]interface{}{}}

	// authenticate 之前任何動作都拒絕，什麼都不寫
	if req.Action != string(domain.Authenticate) && !state.authenticated {
		resp.Error = "not authenticated"
		h.sendResponse(conn, resp)
		return
	}

	switch req.Action {
	//連線註冊；user_id 必須和 JWT claim 一致
	case string(domain.Authenticate):
		if req.UserID != state.userID {
			resp.Error = "user id does not match token"
			break
		}
		resp.Success = true
		resp.Payload["user_id"] = state.userID
		if state.authenticated {
			break
		}
		// ack 要先寫：Register 會同步觸發上線 hook，補發推播不能跑在 ack 前面
		h.sendResponse(conn, resp)
		state.authenticated = true
		h.registry.Register(state.userID, state.connID, conn)
		return

	//建立聊天室：帶 name 為群組，否則 user_ids[0] 為 1對1 對象
	case string(domain.CreateRoom):
		var room *domain.ChatRoom
		var err error
		if req.Name != "" {
			room, err = h.roomUC.CreateGroupRoom(ctx, state.userID, req.Name, req.UserIDs)
		} else if len(req.UserIDs) == 1 {
			room, err = h.roomUC.EnsurePrivateRoom(ctx, state.userID, req.UserIDs[0])
		} else {
			err = errors.New("create_room needs a name or exactly one user id")
		}
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
			resp.Payload["room"] = room
		}

	//群組加人
	case string(domain.AddMember):
		room, err := h.roomUC.AddMember(ctx, state.userID, req.ChatID, req.UserID)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
			resp.Payload["room"] = room
		}

	//群組踢人或自己退出
	case string(domain.RemoveMember):
		room, err := h.roomUC.RemoveMember(ctx, state.userID, req.ChatID, req.UserID)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
			resp.Payload["room"] = room
		}

	//訂閱聊天室廣播頻道
	case string(domain.JoinRoom):
		if _, subscribed := state.roomSubs[req.ChatID]; subscribed {
			resp.Success = true
			break
		}
		if _, err := h.roomUC.GetRoom(ctx, state.userID, req.ChatID); err != nil {
			resp.Error = err.Error()
			break
		}
		ctxRoom, cancelRoom := context.WithCancel(context.Background())
		if err := h.pubsub.Subscribe(ctxRoom, repository.RoomChannel(req.ChatID), func(push domain.WSResponse) {
			h.sendResponse(conn, push)
		}); err != nil {
			cancelRoom()
			resp.Error = err.Error()
			break
		}
		state.roomSubs[req.ChatID] = cancelRoom
		resp.Success = true
		resp.Payload["chat_id"] = req.ChatID

	//退訂聊天室廣播頻道
	case string(domain.LeaveRoom):
		if cancelRoom, subscribed := state.roomSubs[req.ChatID]; subscribed {
			cancelRoom()
			delete(state.roomSubs, req.ChatID)
		}
		resp.Success = true
		resp.Payload["chat_id"] = req.ChatID

	//傳送訊息：落地 → 建狀態列 → 線上推播/離線排隊
	case string(domain.SendMessage):
		message, report, err := h.messageUC.Send(ctx, state.userID, req.ChatID, req.Content, domain.MessageType(req.Type), req.TempID, req.ReplyTo)
		if err != nil {
			resp.Action = string(domain.MessageError)
			resp.Error = err.Error()
			resp.Payload["temp_id"] = req.TempID
		} else {
			resp.Action = string(domain.MessageSent)
			resp.Success = true
			resp.Payload["message"] = message
			resp.Payload["temp_id"] = req.TempID
			resp.Payload["report"] = report
		}

	//收件人回報收到
	case string(domain.MessageDelivered):
		if err := h.messageUC.MarkDelivered(ctx, state.userID, req.MessageID); err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
			resp.Payload["message_id"] = req.MessageID
		}

	//收件人回報已讀
	case string(domain.MessageRead):
		if err := h.messageUC.MarkRead(ctx, state.userID, req.MessageID); err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
			resp.Payload["message_id"] = req.MessageID
		}

	//批次已讀
	case string(domain.BulkMarkRead):
		created, updated, err := h.messageUC.MarkChatRead(ctx, state.userID, req.ChatID, req.MessageIDs)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
			resp.Payload["created"] = created
			resp.Payload["updated"] = updated
		}

	//發送者刪訊息：內容遮蔽後廣播
	case string(domain.DeleteMessage):
		deleted, err := h.messageUC.Delete(ctx, state.userID, req.MessageID)
		if err != nil {
			resp.Action = string(domain.DeleteError)
			resp.Error = err.Error()
			resp.Payload["message_id"] = req.MessageID
		} else {
			resp.Action = string(domain.MessageDeleted)
			resp.Success = true
			resp.Payload["message_id"] = deleted.ID
			resp.Payload["chat_id"] = deleted.ChatID
			h.broadcastDeleted(ctx, deleted)
		}

	//查線上狀態
	case string(domain.GetPresence):
		infos, err := h.presence.GetPresence(ctx, req.UserIDs)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Success = true
			resp.Payload["presence"] = infos
		}

	default:
		resp.Error = "unknown action: " + req.Action
	}

	if resp.Error != "" {
		logger.Log.Error("websocket err",
			zap.String("UserID", state.userID), zap.String("Action", req.Action), zap.String("err", resp.Error))
	}
	h.sendResponse(conn, resp)
}

// broadcastDeleted 對聊天室成員推 message_deleted，並廣播到 room 頻道
func (h *ChatWebsocketHandler) broadcastDeleted(ctx context.Context, msg *domain.ChatMessage) {
	push := domain.DeletedPush(msg.ID, msg.ChatID)

	room, err := h.roomUC.roomRepo.FindByID(ctx, msg.ChatID)
	if err != nil {
		logger.Log.Errorf("deleted broadcast room lookup error:", err)
	} else {
		for _, member := range room.Recipients(msg.SenderID) {
			h.registry.PushToUser(member, push)
		}
	}

	if err := h.pubsub.Publish(repository.RoomChannel(msg.ChatID), push); err != nil {
		logger.Log.Errorf("deleted broadcast publish error:", err)
	}
}

// sendResponse - 發送 JSON 給前端
func (h *ChatWebsocketHandler) sendResponse(conn ClientConn, resp domain.WSResponse) {
	b, _ := json.Marshal(resp)
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		logger.Log.Errorf("write message error:", err)
	}
}

func (h *ChatWebsocketHandler) sendError(conn ClientConn, errorMsg string) {
	h.sendResponse(conn, domain.WSResponse{
		Action:  "error",
		Success: false,
		Payload: map[string]interface{}{
			"error": errorMsg,
		},
	})
}
