package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ClareAI/astra-lead-service/internal/config"
	"github.com/ClareAI/astra-lead-service/internal/handler"
	"github.com/ClareAI/astra-lead-service/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Server represents the lead service HTTP server
type Server struct {
	config         *config.AppConfig
	router         *mux.Router
	handlerManager *handler.HandlerManager
}

// NewServer creates a new lead service server
func NewServer(cfg *config.AppConfig) (*Server, error) {
	router := mux.NewRouter()

	handlerManager, err := handler.NewHandlerManager(cfg)
	if err != nil {
		return nil, err
	}

	handlerManager.SetupAllRoutes(router)

	return &Server{
		config:         cfg,
		router:         router,
		handlerManager: handlerManager,
	}, nil
}

// Run starts the server and blocks until shutdown completes.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Base().Info("Starting server",
			zap.String("addr", addr),
			zap.String("instance_id", s.config.InstanceID))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		s.handlerManager.Close()
		return err
	case sig := <-quit:
		logger.Base().Info("Shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Base().Error("Forced shutdown", zap.Error(err))
	}

	s.handlerManager.Close()
	logger.Base().Info("Server stopped")
	return nil
}

func main() {
	// Load .env if present; real deployments set the environment directly
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	if _, err := logger.Init(os.Getenv("LOG_ENV")); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := config.LoadFromEnv()
	if cfg.JWTSecret == "" {
		logger.Base().Warn("JWT_SECRET not set, operator sessions cannot be validated securely")
	}

	server, err := NewServer(cfg)
	if err != nil {
		logger.Base().Fatal("Failed to initialize server", zap.Error(err))
	}

	if err := server.Run(); err != nil {
		logger.Base().Fatal("Server error", zap.Error(err))
	}
}
