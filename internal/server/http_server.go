// Package server constructs and starts the chat HTTP service with helpers
// that apply sensible production defaults.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/Tyrowin/nexus-chat-server/internal/auth"
	"github.com/Tyrowin/nexus-chat-server/internal/chat"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server owns the chat engine, the WebSocket hub and the HTTP handlers.
type Server struct {
	cfg      Config
	engine   *chat.Engine
	hub      *Hub
	origins  *originPolicy
	upgrader websocket.Upgrader
	uploads  *uploadStore
	log      *zap.Logger
}

// New wires a Server from cfg. Call StartHub before serving requests.
func New(cfg *Config, log *zap.Logger) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	sanitized := cfg.sanitize()

	hasher := auth.NewHasher(auth.Params{
		Memory:     sanitized.Argon2MemoryKiB,
		Iterations: sanitized.Argon2Iterations,
	})

	hub := NewHub(HubOptions{
		SendBufferSize: sanitized.SendBufferSize,
		MaxMessageSize: sanitized.MaxMessageSize,
	}, log.Named("hub"))
	engine := chat.NewEngine(chat.NewCredentialStore(hasher), hub, log.Named("chat"))
	hub.Attach(engine)

	s := &Server{
		cfg:     sanitized,
		engine:  engine,
		hub:     hub,
		origins: newOriginPolicy(sanitized.AllowedOrigins, log),
		uploads: newUploadStore(sanitized.UploadDir, sanitized.MaxUploadSize, sanitized.AllowedUploadTypes),
		log:     log,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	return s
}

// Engine returns the chat engine.
func (s *Server) Engine() *chat.Engine {
	return s.engine
}

// Hub returns the WebSocket hub for shutdown coordination.
func (s *Server) Hub() *Hub {
	return s.hub
}

// StartHub starts the hub loop in a separate goroutine.
func (s *Server) StartHub() {
	go s.hub.Run()
	s.log.Info("Hub started and ready to manage WebSocket connections")
}

// CreateServer creates and configures an HTTP server with the specified port and handler.
// It sets reasonable timeout values for production use.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer starts the HTTP server and blocks until it exits.
func StartServer(server *http.Server, log *zap.Logger) error {
	log.Info("Server listening", zap.String("addr", server.Addr))
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active connections.
// It waits for active connections to close or until the timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration, log *zap.Logger) error {
	log.Info("Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	log.Info("HTTP server shutdown completed")
	return nil
}
