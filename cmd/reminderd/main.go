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
	"taskplanner/internal/httpserver"
	"taskplanner/internal/notify"
	"taskplanner/internal/repository"
	"taskplanner/internal/scheduler"
	"taskplanner/internal/util"
	"taskplanner/pkg/db"
	"taskplanner/pkg/logger"
	"taskplanner/pkg/mq"
	"taskplanner/pkg/outbox"
	pkgredis "taskplanner/pkg/redis"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting reminderd...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("mq_url", cfg.MQ.URL),
		zap.Duration("poll_interval", cfg.Scheduler.PollInterval),
	)

	// DB
	log.Info("Initializing database connection...")
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()
	log.Info("Database connection established successfully")

	// Redis (replica claim arbitration)
	rdb := pkgredis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	// MQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Repositories
	taskRepo := repository.NewTaskRepository(dbConn, log)

	// Notification dispatcher over the broker port
	port := notify.NewMQPort(publisher, log)
	dispatcher := notify.NewDispatcher(port, log)

	state := dispatcher.EnsurePermission(context.Background())
	log.Info("Notification permission resolved", zap.String("state", string(state)))

	// Reminder scheduler
	claimer := util.NewReminderClaimer(rdb, 2*cfg.Scheduler.PollInterval, log)
	sched := scheduler.New(taskRepo, dispatcher, claimer, cfg.Scheduler, log)
	sched.Start()

	// Outbox dispatcher
	outboxRepo := outbox.NewRepository(dbConn)
	outboxDispatcher := outbox.NewDispatcher(outboxRepo, publisher, log)
	outboxCtx, outboxCancel := context.WithCancel(context.Background())
	defer outboxCancel()
	go outboxDispatcher.Start(outboxCtx)

	// MQ Consumer for reminder.clicked (click routing back from clients)
	log.Info("Initializing MQ consumer for reminder.clicked...",
		zap.String("queue", "reminder.clicked.q"),
		zap.String("routing_key", "reminder.clicked"),
	)
	clickedHandler := notify.NewReminderClickedHandler(dispatcher, log)
	clickedConsumer, err := mq.NewConsumer(cfg.MQ.URL, "reminder.clicked.q", "reminder.clicked", log)
	if err != nil {
		log.Fatal("Failed to init clicked consumer", zap.Error(err))
	}
	defer clickedConsumer.Close()
	clickedConsumer.SetHandler(clickedHandler.Handle)

	go func() {
		log.Info("Starting reminder.clicked consumer...")
		if err := clickedConsumer.StartConsuming(); err != nil {
			log.Fatal("Clicked consumer failed", zap.Error(err))
		}
	}()

	// HTTP Server (health + metrics)
	httpPort := cfg.Server.Port
	if httpPort == "" {
		httpPort = "8085"
	}
	log.Info("Initializing HTTP server...", zap.String("port", httpPort))
	router := httpserver.NewWorkerRouter(log, dbConn, sched)
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

	log.Info("reminderd is fully initialized and running")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down reminderd gracefully...")

	sched.Stop()
	outboxCancel()
	clickedConsumer.Stop()

	log.Info("Shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	publisher.Close()
	dbConn.Close()

	log.Info("reminderd shutdown complete")
}
