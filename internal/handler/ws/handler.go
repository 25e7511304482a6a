package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chatHandler "github.com/zhouzirui/jr-studio/backend/internal/handler/chat"
	"github.com/zhouzirui/jr-studio/backend/internal/service/assistant"
	chatservice "github.com/zhouzirui/jr-studio/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	// base64 附件会让单条消息变大。
	maxMessageBytes = 64 << 20
)

// Handler WebSocket提交处理器
type Handler struct {
	chatSvc     *chatservice.Service
	assistant   *assistant.Service
	upgrader    websocket.Upgrader
	readTimeout time.Duration
}

// New 创建WebSocket处理器
func New(chatSvc *chatservice.Service, assistantSvc *assistant.Service) *Handler {
	return &Handler{
		chatSvc:     chatSvc,
		assistant:   assistantSvc,
		readTimeout: readTimeout,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/session/{sessionID}/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接，每条 submit 消息按到达顺序依次处理
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(maxMessageBytes)
	conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		return nil
	})

	go pingLoop(ctx, conn)

	h.send(conn, sessionID, "connected", nil)

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}

		switch msg.Type {
		case "submit":
			h.handleSubmit(ctx, conn, sessionID, msg.Data)
		case "snapshot":
			h.handleSnapshot(ctx, conn, sessionID)
		default:
			h.sendError(conn, sessionID, "unsupported message type: "+msg.Type)
		}

		// submit 可能比 readTimeout 更久，处理期间 pong 不会被读取
		conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	}
}

func (h *Handler) handleSubmit(ctx context.Context, conn *websocket.Conn, sessionID string, raw json.RawMessage) {
	var payload chatHandler.SubmissionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.sendError(conn, sessionID, "invalid submit payload")
		return
	}
	sub, err := payload.Submission()
	if err != nil {
		h.sendError(conn, sessionID, err.Error())
		return
	}

	out, err := h.assistant.Submit(ctx, sessionID, sub, func(label string) {
		h.send(conn, sessionID, "progress", map[string]string{"label": label})
	})
	if err != nil {
		h.sendError(conn, sessionID, err.Error())
		return
	}

	result := chatHandler.SubmitResponse{Outcome: out}
	if out.Err != nil {
		result.ModelError = out.Err.Error()
	}
	h.send(conn, sessionID, "result", result)
}

func (h *Handler) handleSnapshot(ctx context.Context, conn *websocket.Conn, sessionID string) {
	state, err := h.chatSvc.Snapshot(ctx, sessionID)
	if err != nil {
		h.sendError(conn, sessionID, err.Error())
		return
	}
	h.send(conn, sessionID, "snapshot", state)
}

func (h *Handler) send(conn *websocket.Conn, sessionID, kind string, data interface{}) {
	msg := outgoingMessage{
		Type:      kind,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write %s failed: %v", kind, err)
	}
}

func (h *Handler) sendError(conn *websocket.Conn, sessionID, message string) {
	h.send(conn, sessionID, "error", map[string]string{"message": message})
}

// pingLoop 定期发送ping消息。WriteControl 可与 WriteJSON 并发调用。
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
