package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/AmirMahdi-for/pipeline/internal/config"
	"github.com/AmirMahdi-for/pipeline/internal/queue"
	"github.com/AmirMahdi-for/pipeline/internal/repository"
	"github.com/AmirMahdi-for/pipeline/internal/service"
	"github.com/AmirMahdi-for/pipeline/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("CRITICAL: Failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.LogLevel)
	if err != nil {
		os.Stderr.WriteString("CRITICAL: Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		log.Sugar().Fatal("Failed to connect to database: ", err)
	}

	storage, err := repository.NewObjectStorage(&cfg.S3, log)
	if err != nil {
		log.Sugar().Fatal("Failed to create object storage: ", err)
	}

	docs := repository.NewDocumentRepository(db, log)
	processor := service.NewProcessor(docs, storage, service.NewThumbnailGenerator(log), log)
	consumer := queue.NewConsumer(&cfg.Kafka, processor, log)

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("Shutting down gracefully...")
		consumer.Close()
	}()

	if err := consumer.Run(ctx); err != nil {
		log.Sugar().Error("Worker stopped with error: ", err)
	}

	log.Info("Worker exited")
}
