package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"lanchat/internal/auth"
	"lanchat/internal/config"
	"lanchat/internal/database"
	"lanchat/internal/handlers"
	"lanchat/internal/migrate"
	"lanchat/internal/services"
	"lanchat/internal/websocket"
	"lanchat/pkg/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.SetDebug(cfg.LogLevel == "debug")
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open %s store: %v", cfg.Store.Backend, err)
	}
	defer store.Close()

	// Initialize services
	authService := auth.NewService(cfg.JWT.Secret, cfg.JWT.ExpiresIn)
	hub := websocket.NewHub(authService, cfg.Chat.PurgeInterval)
	chatService := services.NewChatService(hub, store, store, services.Options{
		HistoryLimit:  cfg.Chat.HistoryLimit,
		RestoreWindow: cfg.Chat.RestoreWindow,
	})
	chatService.Load(ctx)

	// Initialize handlers
	identityHandlers := handlers.NewIdentityHandlers(authService)
	wsHandlers := handlers.NewWebSocketHandlers(hub, cfg.Server.TrustProxy, cfg.Server.SendBuffer)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandlers.HandleWebSocket)
	mux.HandleFunc("/identity", identityHandlers.Issue)
	mux.HandleFunc("/healthz", handlers.Health)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx, chatService)
		return nil
	})
	g.Go(func() error {
		logger.Info("Server started on http://localhost%s (store: %s)", cfg.Server.Port, cfg.Store.Backend)
		logger.Info("WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		if err := migrate.Up(ctx, cfg.Database.URL); err != nil {
			return nil, err
		}
		return database.NewPostgresStore(ctx, cfg.Database.URL)
	case config.BackendRedis:
		return database.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
	default:
		return database.NewFileStore(cfg.Store.DataDir)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
