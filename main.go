package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docqueue/internal/api"
	"docqueue/internal/audit"
	"docqueue/internal/config"
	"docqueue/internal/intake"
	"docqueue/internal/queue"
	"docqueue/internal/redis"
	"docqueue/internal/storage"
)

func main() {
	cfgPath := os.Getenv("DOCQUEUE_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	db, err := storage.Open(cfg.Index)
	if err != nil {
		logger.Fatal("open index database", zap.Error(err))
	}
	defer db.Close()
	if err := storage.Migrate(db, cfg.Index.Driver); err != nil {
		logger.Fatal("migrate index database", zap.Error(err))
	}

	conn := redis.NewConn(cfg.Redis.Addr)
	defer conn.Close()

	auditStore := audit.NewStore(conn, cfg.Redis.LogsListName, logger)
	queueClient := queue.New(conn, queue.Config{
		QueueName:     cfg.Redis.QueueName,
		RetryInterval: cfg.RetryInterval(),
	}, auditStore, logger)
	queueClient.StartRetry()
	defer queueClient.StopRetry()

	fileStore, err := storage.New(cfg.Storage.UploadDir, storage.NewIndex(db), auditStore, logger)
	if err != nil {
		logger.Fatal("init file store", zap.Error(err))
	}

	intakeService := intake.New(fileStore, queueClient, logger)
	handlers := api.NewHandler(intakeService, auditStore, queueClient, fileStore, cfg.Redis.Addr, logger)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	logger.Info("server starting",
		zap.String("addr", cfg.ServerAddress),
		zap.String("redis", cfg.Redis.Addr),
		zap.String("uploads", cfg.Storage.UploadDir))
	if err := router.Run(cfg.ServerAddress); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
