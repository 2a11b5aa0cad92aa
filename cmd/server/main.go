package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/Tyrowin/nexus-chat-server/internal/server"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	config, err := server.NewConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		return 1
	}

	log, err := server.NewLogger(config.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting Nexus Chat Server...")

	srv := server.New(config, log)
	srv.StartHub()

	httpServer := server.CreateServer(config.Port, srv.SetupRoutes())

	errChan := make(chan error, 1)
	go func() {
		if err := server.StartServer(httpServer, log); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	wait := gfshutdown.GracefulShutdown(context.Background(), config.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(context.Context) error {
				return server.ShutdownServer(httpServer, config.ShutdownTimeout, log)
			},
			"hub": func(context.Context) error {
				return srv.Hub().Shutdown(config.ShutdownTimeout)
			},
		})

	select {
	case code := <-wait:
		log.Info("Server stopped", zap.Int("exit_code", code))
		return code
	case err := <-errChan:
		log.Error("HTTP server error", zap.Error(err))
		_ = srv.Hub().Shutdown(config.ShutdownTimeout)
		return 1
	}
}
