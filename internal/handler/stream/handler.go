package stream

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatHandler "github.com/zhouzirui/jr-studio/backend/internal/handler/chat"
	"github.com/zhouzirui/jr-studio/backend/internal/model/chat"
	"github.com/zhouzirui/jr-studio/backend/internal/model/document"
	"github.com/zhouzirui/jr-studio/backend/internal/service/assistant"
	"github.com/zhouzirui/jr-studio/backend/pkg/utils"
)

// SSE event names.
const (
	EventProgress = "progress"
	EventMessage  = "message"
	EventDocument = "document"
	EventEnd      = "end"
	EventError    = "error"
)

// Handler manages submissions whose progress is pushed via Server-Sent Events
type Handler struct {
	assistant *assistant.Service
}

// New creates a new stream handler
func New(assistantSvc *assistant.Service) *Handler {
	return &Handler{assistant: assistantSvc}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string              `json:"event"`
	SessionID string              `json:"sessionId,omitempty"`
	Label     string              `json:"label,omitempty"`
	Message   *chat.Message       `json:"message,omitempty"`
	Document  *document.Generated `json:"document,omitempty"`
	Finished  bool                `json:"finished,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// RegisterRoutes 注册流式提交路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session/{sessionID}/stream", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sub, err := chatHandler.ParseSubmission(r)
	if err != nil {
		utils.RespondError(w, chatHandler.StatusFor(err), err.Error())
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, sessionID, sub); err != nil {
		log.Printf("[stream] error handling request: %v", err)
	}
}

// HandleStreamRequest runs one submission and reports each step as an event.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID string, sub assistant.Submission) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	out, err := h.assistant.Submit(ctx, sessionID, sub, func(label string) {
		h.sendSSE(w, flusher, StreamResponse{Event: EventProgress, SessionID: sessionID, Label: label})
	})
	if err != nil {
		h.sendSSE(w, flusher, StreamResponse{Event: EventError, SessionID: sessionID, Error: err.Error()})
		return err
	}

	h.sendSSE(w, flusher, StreamResponse{Event: EventMessage, SessionID: sessionID, Message: &out.User})
	h.sendSSE(w, flusher, StreamResponse{Event: EventMessage, SessionID: sessionID, Message: &out.Assistant})
	if out.Notice != nil {
		h.sendSSE(w, flusher, StreamResponse{Event: EventMessage, SessionID: sessionID, Message: out.Notice})
	}
	if out.Document != nil {
		h.sendSSE(w, flusher, StreamResponse{Event: EventDocument, SessionID: sessionID, Document: out.Document})
	}

	end := StreamResponse{Event: EventEnd, SessionID: sessionID, Finished: true}
	if out.Err != nil {
		end.Error = out.Err.Error()
	}
	h.sendSSE(w, flusher, end)

	log.Printf("[stream] completed submission for session=%s", sessionID)
	return nil
}

func (h *Handler) sendSSE(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	utils.SendSSEEvent(w, flusher, response.Event, response)
}
