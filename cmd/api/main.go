package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"taskplanner/internal/config"
	"taskplanner/internal/handler"
	"taskplanner/internal/httpserver"
	"taskplanner/internal/materializer"
	"taskplanner/internal/repository"
	"taskplanner/pkg/db"
	"taskplanner/pkg/logger"
	"taskplanner/pkg/mq"
	"taskplanner/pkg/outbox"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting task-api...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("mq_url", cfg.MQ.URL),
	)

	// DB
	log.Info("Initializing database connection...")
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()
	log.Info("Database connection established successfully")

	// MQ Publisher (outbox drain)
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	taskRepo := repository.NewTaskRepository(dbConn, log)
	mat := materializer.New(taskRepo, log)

	// Outbox dispatcher
	outboxRepo := outbox.NewRepository(dbConn)
	outboxDispatcher := outbox.NewDispatcher(outboxRepo, publisher, log)
	outboxCtx, outboxCancel := context.WithCancel(context.Background())
	defer outboxCancel()
	go outboxDispatcher.Start(outboxCtx)

	// HTTP Server
	httpPort := cfg.Server.Port
	if httpPort == "" {
		httpPort = "8086"
	}
	log.Info("Initializing HTTP server...", zap.String("port", httpPort))
	taskHandler := handler.NewTaskHandler(taskRepo, mat, log)
	router := httpserver.NewRouter(taskHandler, log, dbConn, cfg.JWT.Secret)

	srv := &http.Server{
		Addr:    ":" + httpPort,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("task-api is fully initialized and running",
		zap.String("http_port", httpPort),
	)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down task-api gracefully...")

	outboxCancel()

	log.Info("Shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	dbConn.Close()

	log.Info("task-api shutdown complete")
}
