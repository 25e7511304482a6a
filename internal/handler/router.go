package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/jr-studio/backend/internal/handler/chat"
	"github.com/zhouzirui/jr-studio/backend/internal/handler/profile"
	"github.com/zhouzirui/jr-studio/backend/internal/handler/source"
	"github.com/zhouzirui/jr-studio/backend/internal/handler/stream"
	"github.com/zhouzirui/jr-studio/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/jr-studio/backend/internal/middleware"
	profileModel "github.com/zhouzirui/jr-studio/backend/internal/model/profile"
	"github.com/zhouzirui/jr-studio/backend/internal/service/assistant"
	chatService "github.com/zhouzirui/jr-studio/backend/internal/service/chat"
	sourceService "github.com/zhouzirui/jr-studio/backend/internal/service/source"
	"github.com/zhouzirui/jr-studio/backend/pkg/utils"
)

// Deps groups the services the HTTP layer needs.
type Deps struct {
	Profiles   profileModel.Store
	Chats      *chatService.Service
	Assistant  *assistant.Service
	Sources    *sourceService.Registry
	ModelReady bool
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	profileHandler := profile.New(deps.Profiles)
	chatHandler := chat.New(deps.Chats, deps.Assistant)
	streamHandler := stream.New(deps.Assistant)
	wsHandler := ws.New(deps.Chats, deps.Assistant)
	sourceHandler := source.New(deps.Sources)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":  "ok",
				"model":   deps.ModelReady,
				"sources": deps.Sources.Len(),
			})
		})

		profileHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
		sourceHandler.RegisterRoutes(api)
	})

	return r
}
