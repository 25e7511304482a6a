package chat

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	analysis "github.com/zhouzirui/jr-studio/backend/internal/analysis/document"
	"github.com/zhouzirui/jr-studio/backend/internal/model/chat"
	"github.com/zhouzirui/jr-studio/backend/internal/model/document"
	"github.com/zhouzirui/jr-studio/backend/internal/service/assistant"
	chatService "github.com/zhouzirui/jr-studio/backend/internal/service/chat"
	"github.com/zhouzirui/jr-studio/backend/pkg/utils"
)

// Handler 会话与消息的HTTP处理器
type Handler struct {
	chatSvc   *chatService.Service
	assistant *assistant.Service
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service, assistantSvc *assistant.Service) *Handler {
	return &Handler{
		chatSvc:   chatSvc,
		assistant: assistantSvc,
	}
}

// SessionView is the client-facing snapshot of a session.
type SessionView struct {
	Session  chat.Session        `json:"session"`
	Turns    []chat.Message      `json:"turns"`
	Busy     bool                `json:"busy"`
	Progress []string            `json:"progress"`
	Document *document.Generated `json:"document,omitempty"`
}

// DocumentView is the current document with its preview layout.
type DocumentView struct {
	Document *document.Generated `json:"document"`
	Layout   []analysis.Block    `json:"layout"`
}

// SubmitResponse is returned by the messages endpoint.
type SubmitResponse struct {
	assistant.Outcome
	ModelError string `json:"modelError,omitempty"`
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Get("/session/{sessionID}", h.handleGetSession)
	r.Post("/session/{sessionID}/messages", h.handleSubmit)
	r.Get("/session/{sessionID}/document", h.handleGetDocument)
}

// handleCreateSession 创建会话，空 body 使用默认 profile
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ProfileID string `json:"profileId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, ErrInvalidBody.Error())
		return
	}

	session, err := h.assistant.StartSession(r.Context(), payload.ProfileID)
	if err != nil {
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}

	view, err := h.snapshot(r, session.ID)
	if err != nil {
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.snapshot(r, chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

// handleSubmit 处理一次提交。模型失败时仍返回 200，回复为兜底文案。
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sub, err := ParseSubmission(r)
	if err != nil {
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}

	out, err := h.assistant.Submit(r.Context(), sessionID, sub, nil)
	if err != nil {
		log.Printf("[chat] submission rejected for session=%s: %v", sessionID, err)
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}

	resp := SubmitResponse{Outcome: out}
	if out.Err != nil {
		resp.ModelError = out.Err.Error()
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	state, err := h.chatSvc.Snapshot(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}

	view := DocumentView{Document: state.Document, Layout: []analysis.Block{}}
	if state.Document != nil {
		view.Layout = analysis.Layout(state.Document.Content)
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) snapshot(r *http.Request, sessionID string) (SessionView, error) {
	session, err := h.chatSvc.GetSession(r.Context(), sessionID)
	if err != nil {
		return SessionView{}, err
	}
	state, err := h.chatSvc.Snapshot(r.Context(), sessionID)
	if err != nil {
		return SessionView{}, err
	}

	view := SessionView{
		Session:  session,
		Turns:    state.Turns,
		Busy:     state.Busy,
		Progress: state.Progress,
		Document: state.Document,
	}
	if view.Turns == nil {
		view.Turns = []chat.Message{}
	}
	if view.Progress == nil {
		view.Progress = []string{}
	}
	return view, nil
}
