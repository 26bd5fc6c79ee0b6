package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/AmirMahdi-for/pipeline/internal/config"
	"github.com/AmirMahdi-for/pipeline/internal/domain"
	"github.com/AmirMahdi-for/pipeline/internal/handler"
	"github.com/AmirMahdi-for/pipeline/internal/queue"
	"github.com/AmirMahdi-for/pipeline/internal/repository"
	"github.com/AmirMahdi-for/pipeline/internal/service"
)

type Server struct {
	httpServer *http.Server
	dispatcher *queue.Dispatcher
	cfg        *config.Config
	log        *zap.Logger
}

func New(cfg *config.Config, log *zap.Logger) (*Server, error) {
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&domain.Document{}, &domain.ProcessingLog{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	storage, err := repository.NewObjectStorage(&cfg.S3, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage: %w", err)
	}

	docs := repository.NewDocumentRepository(db, log)
	dispatcher := queue.NewDispatcher(&cfg.Kafka, log)
	docService := service.NewDocumentService(docs, storage, dispatcher, log)

	h := handler.NewHandler(docService, &cfg.App, log)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", h.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/upload", h.Upload)
		api.GET("/documents", h.ListDocuments)
		api.GET("/documents/:id", h.GetDocument)
		api.GET("/report", h.Report)
	}

	server := &Server{
		httpServer: &http.Server{
			Addr:           cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:        router,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log,
	}

	log.Info("Server created successfully",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port))

	return server, nil
}

func (s *Server) Run() error {
	s.log.Info("Server is running", zap.String("address", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	if err := s.dispatcher.Close(); err != nil {
		s.log.Error("Failed to close dispatcher", zap.Error(err))
	}
	return s.httpServer.Shutdown(ctx)
}
