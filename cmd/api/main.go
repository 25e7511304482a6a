package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/jr-studio/backend/internal/config"
	"github.com/zhouzirui/jr-studio/backend/internal/handler"
	"github.com/zhouzirui/jr-studio/backend/internal/model/profile"
	"github.com/zhouzirui/jr-studio/backend/internal/service/ai"
	"github.com/zhouzirui/jr-studio/backend/internal/service/assistant"
	"github.com/zhouzirui/jr-studio/backend/internal/service/chat"
	"github.com/zhouzirui/jr-studio/backend/internal/service/reader"
	"github.com/zhouzirui/jr-studio/backend/internal/service/source"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	profileStore := profile.NewMemoryStore(profile.Seed())
	chatService := chat.NewService()

	policy, err := source.ParsePolicy(cfg.Sources.BatchPolicy)
	if err != nil {
		log.Fatalf("invalid source configuration: %v", err)
	}
	fileReader := reader.New(cfg.Sources.MaxFileBytes)
	registry := source.NewRegistry(fileReader, policy)
	startSourceLibrary(ctx, cfg.Sources, registry)

	var generator assistant.Generator
	if cfg.AI.Enabled() {
		aiService, err := ai.NewServiceFromConfig(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI functionality - replies will use the fallback message")
		} else {
			generator = aiService
			log.Printf("AI service initialized successfully (provider=%s)", aiService.Provider())
		}
	} else {
		log.Printf("LLM credentials for provider %q not configured, skipping AI initialization", cfg.AI.Provider)
	}

	assistantService := assistant.NewService(chatService, profileStore, registry, fileReader, generator)

	router := handler.NewRouter(handler.Deps{
		Profiles:   profileStore,
		Chats:      chatService,
		Assistant:  assistantService,
		Sources:    registry,
		ModelReady: generator != nil,
	})

	startServer(ctx, cfg.Server, router)
}

// startSourceLibrary 预加载 SOURCE_DIR，并在开启时监听新文件。
func startSourceLibrary(ctx context.Context, cfg config.SourceConfig, registry *source.Registry) {
	if cfg.Dir == "" {
		log.Println("SOURCE_DIR not set, sources are added through the API only")
		return
	}

	if _, err := registry.LoadDir(ctx, cfg.Dir); err != nil {
		log.Printf("warning: failed to preload sources from %s: %v", cfg.Dir, err)
	}

	if !cfg.Watch {
		return
	}

	watcher, err := source.NewWatcher(registry, cfg.Dir)
	if err != nil {
		log.Printf("warning: failed to watch %s: %v", cfg.Dir, err)
		return
	}
	go watcher.Run(ctx, nil)
	log.Printf("watching %s for new sources", cfg.Dir)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Jr- Studio backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
