package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/AmirMahdi-for/pipeline/internal/config"
	"github.com/AmirMahdi-for/pipeline/internal/domain"
	"github.com/AmirMahdi-for/pipeline/internal/repository"
	"github.com/AmirMahdi-for/pipeline/internal/service"
)

type Handler struct {
	service service.DocumentService
	cfg     *config.AppConfig
	log     *zap.Logger
}

func NewHandler(service service.DocumentService, cfg *config.AppConfig, log *zap.Logger) *Handler {
	return &Handler{
		service: service,
		cfg:     cfg,
		log:     log,
	}
}

// ownerID resolves the calling principal. Authentication itself lives
// upstream; the gateway forwards the user id in X-User-ID.
func ownerID(c *gin.Context) (uint, bool) {
	raw := c.GetHeader("X-User-ID")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) Upload(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid X-User-ID header"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		h.log.Error("Failed to get file from form", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}

	if file.Size > h.cfg.MaxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large"})
		return
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Filename)), ".")
	if !h.extensionAllowed(ext) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type. Only TXT, PNG, JPEG allowed"})
		return
	}

	src, err := file.Open()
	if err != nil {
		h.log.Error("Failed to open file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process file"})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		h.log.Error("Failed to read file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		if ext == "txt" {
			contentType = "text/plain"
		} else {
			contentType = domain.ContentType(ext)
		}
	}

	doc, err := h.service.Upload(c.Request.Context(), owner, file.Filename, data, contentType)
	if err != nil {
		h.log.Error("Failed to upload document", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process upload"})
		return
	}

	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) ListDocuments(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid X-User-ID header"})
		return
	}

	filter := repository.ListFilter{
		Extension: c.Query("extension"),
	}
	if from, ok := parseDate(c.Query("date_from")); ok {
		filter.DateFrom = &from
	}
	if to, ok := parseDate(c.Query("date_to")); ok {
		filter.DateTo = &to
	}

	docs, err := h.service.List(c.Request.Context(), owner, filter)
	if err != nil {
		h.log.Error("Failed to list documents", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list documents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (h *Handler) GetDocument(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid X-User-ID header"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document id"})
		return
	}

	doc, err := h.service.Get(c.Request.Context(), owner, uint(id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
			return
		}
		h.log.Error("Failed to get document", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get document"})
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *Handler) Report(c *gin.Context) {
	owner, ok := ownerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid X-User-ID header"})
		return
	}

	report, err := h.service.Report(c.Request.Context(), owner)
	if err != nil {
		h.log.Error("Failed to build report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build report"})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

func (h *Handler) extensionAllowed(ext string) bool {
	for _, allowed := range h.cfg.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func parseDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
