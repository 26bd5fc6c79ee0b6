package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AmirMahdi-for/pipeline/internal/domain"
	"github.com/AmirMahdi-for/pipeline/internal/repository"
)

const reportDays = 14

// Dispatcher hands accepted document ids to the processing workers.
// Delivery is at-least-once and fire-and-forget from this side.
type Dispatcher interface {
	Enqueue(ctx context.Context, documentID uint) error
}

// ReportEntry is one day of the upload report.
type ReportEntry struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// DocumentService is the thin create/read/list layer in front of the
// pipeline. Processing itself belongs to the Processor.
type DocumentService interface {
	Upload(ctx context.Context, ownerID uint, filename string, data []byte, contentType string) (*domain.Document, error)
	Get(ctx context.Context, ownerID, id uint) (*domain.Document, error)
	List(ctx context.Context, ownerID uint, filter repository.ListFilter) ([]domain.Document, error)
	Report(ctx context.Context, ownerID uint) ([]ReportEntry, error)
}

type documentService struct {
	docs       repository.DocumentRepository
	storage    repository.ObjectStorage
	dispatcher Dispatcher
	log        *zap.Logger
}

func NewDocumentService(docs repository.DocumentRepository, storage repository.ObjectStorage, dispatcher Dispatcher, log *zap.Logger) DocumentService {
	return &documentService{
		docs:       docs,
		storage:    storage,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Upload stores the original object, creates the pending document row
// and only then enqueues the id, so a worker can never observe a row
// before its bytes exist in storage.
func (s *documentService) Upload(ctx context.Context, ownerID uint, filename string, data []byte, contentType string) (*domain.Document, error) {
	location, err := s.storage.Upload(ctx, filename, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload original: %w", err)
	}

	doc := &domain.Document{
		OwnerID:          ownerID,
		OriginalFilename: filename,
		FileSize:         int64(len(data)),
		Extension:        extensionOf(filename),
		OriginalPath:     location,
		Status:           domain.StatusPending,
	}

	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	if err := s.dispatcher.Enqueue(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("enqueue document %d: %w", doc.ID, err)
	}

	s.log.Info("Document accepted",
		zap.Uint("document_id", doc.ID),
		zap.Uint("owner_id", ownerID),
		zap.String("filename", filename),
		zap.Int64("size", doc.FileSize))

	return doc, nil
}

func (s *documentService) Get(ctx context.Context, ownerID, id uint) (*domain.Document, error) {
	return s.docs.GetByID(ctx, ownerID, id)
}

func (s *documentService) List(ctx context.Context, ownerID uint, filter repository.ListFilter) ([]domain.Document, error) {
	return s.docs.List(ctx, ownerID, filter)
}

// Report returns daily upload counts for the last reportDays days,
// zero-filled so every day appears exactly once.
func (s *documentService) Report(ctx context.Context, ownerID uint) ([]ReportEntry, error) {
	today := time.Now().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -(reportDays - 1))
	end := today.AddDate(0, 0, 1)

	rows, err := s.docs.DailyCounts(ctx, ownerID, start, end)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Day.Format("2006-01-02")] = row.Count
	}

	report := make([]ReportEntry, 0, reportDays)
	for d := 0; d < reportDays; d++ {
		date := start.AddDate(0, 0, d).Format("2006-01-02")
		report = append(report, ReportEntry{Date: date, Count: counts[date]})
	}
	return report, nil
}

func extensionOf(filename string) string {
	for i := len(filename) - 1; i >= 0; i-- {
		if filename[i] == '.' {
			return strings.ToLower(filename[i+1:])
		}
	}
	return ""
}
