package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/sacco-portal/internal/bootstrap"
	"github.com/segyhp/sacco-portal/internal/config"
	"github.com/segyhp/sacco-portal/internal/handler"
	"github.com/segyhp/sacco-portal/internal/logging"
	"github.com/segyhp/sacco-portal/internal/session"
	"github.com/segyhp/sacco-portal/internal/tracing"
)

func main() {
	// a local .env is optional, real deployments use the environment
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.Logging)
	ctx := context.Background()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize tracing: %v", err)
	}

	// Initialize database
	db, err := bootstrap.OpenDB(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize Redis
	redisClient, err := bootstrap.OpenRedis(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize redis: %v", err)
	}
	defer redisClient.Close()

	services := bootstrap.NewServices(cfg, db, redisClient, logger)
	sessions := session.NewManager(cfg.Session.JWTSecret, cfg.Session.Issuer, session.NewRedisRevocationStore(redisClient))

	router := handler.NewRouter(handler.Handlers{
		Health:  handler.NewHealthHandler(db, redisClient, cfg.GetHealthTimeout()),
		Loans:   handler.NewLoanHandler(services.Loans),
		Members: handler.NewMemberHandler(services.Members),
		Session: handler.NewSessionHandler(sessions),
	}, sessions, logger)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.WithField("addr", server.Addr).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.WithError(err).Warn("failed to flush traces")
	}

	logger.Info("Server exited")
}
