package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AmirMahdi-for/pipeline/internal/domain"
)

// ListFilter narrows a document listing. Zero values mean "no filter".
type ListFilter struct {
	Extension string
	DateFrom  *time.Time
	DateTo    *time.Time
}

// DailyCount is one row of the upload report.
type DailyCount struct {
	Day   time.Time `json:"-"`
	Count int64     `json:"count"`
}

// DocumentRepository is the persistence layer for documents and their
// audit trail. The claim operation is the only one that takes a row
// lock; every terminal transition commits together with its log entry.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, ownerID, id uint) (*domain.Document, error)
	List(ctx context.Context, ownerID uint, filter ListFilter) ([]domain.Document, error)
	DailyCounts(ctx context.Context, ownerID uint, from, to time.Time) ([]DailyCount, error)

	ClaimForProcessing(ctx context.Context, id uint) (*domain.Document, error)
	MarkDone(ctx context.Context, id uint, message string) error
	MarkFailed(ctx context.Context, id uint, message string) error
	SetThumbnail(ctx context.Context, id uint, path, message string) error
	AppendLog(ctx context.Context, id uint, message string) error
}

type documentRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewDocumentRepository(db *gorm.DB, log *zap.Logger) DocumentRepository {
	return &documentRepository{db: db, log: log}
}

func (r *documentRepository) Create(ctx context.Context, doc *domain.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *documentRepository) GetByID(ctx context.Context, ownerID, id uint) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.WithContext(ctx).
		Preload("Logs", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("timestamp DESC")
		}).
		Where("owner_id = ?", ownerID).
		First(&doc, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) List(ctx context.Context, ownerID uint, filter ListFilter) ([]domain.Document, error) {
	query := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC")

	if filter.Extension != "" {
		query = query.Where("extension = ?", filter.Extension)
	}
	if filter.DateFrom != nil {
		query = query.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("created_at <= ?", *filter.DateTo)
	}

	var docs []domain.Document
	if err := query.Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *documentRepository) DailyCounts(ctx context.Context, ownerID uint, from, to time.Time) ([]DailyCount, error) {
	var rows []DailyCount
	err := r.db.WithContext(ctx).
		Model(&domain.Document{}).
		Select("created_at::date AS day, COUNT(*) AS count").
		Where("owner_id = ? AND created_at >= ? AND created_at < ?", ownerID, from, to).
		Group("day").
		Order("day").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ClaimForProcessing locks the document row, clears any previous error
// message and moves it to the processing status, all inside one short
// transaction. The lock is released at commit and is never held across
// network I/O. Returns domain.ErrNotFound when the row is gone.
func (r *documentRepository) ClaimForProcessing(ctx context.Context, id uint) (*domain.Document, error) {
	var doc domain.Document
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&doc, id).Error; err != nil {
			return err
		}
		return tx.Model(&doc).Updates(map[string]interface{}{
			"status":        domain.StatusProcessing,
			"error_message": nil,
		}).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	doc.Status = domain.StatusProcessing
	doc.ErrorMessage = nil
	return &doc, nil
}

func (r *documentRepository) MarkDone(ctx context.Context, id uint, message string) error {
	return r.updateWithLog(ctx, id, map[string]interface{}{
		"status": domain.StatusDone,
	}, message)
}

func (r *documentRepository) MarkFailed(ctx context.Context, id uint, message string) error {
	return r.updateWithLog(ctx, id, map[string]interface{}{
		"status":        domain.StatusFailed,
		"error_message": message,
	}, message)
}

func (r *documentRepository) SetThumbnail(ctx context.Context, id uint, path, message string) error {
	return r.updateWithLog(ctx, id, map[string]interface{}{
		"thumbnail_path": path,
	}, message)
}

func (r *documentRepository) AppendLog(ctx context.Context, id uint, message string) error {
	return r.db.WithContext(ctx).Create(&domain.ProcessingLog{
		DocumentID: id,
		Message:    message,
		Timestamp:  time.Now(),
	}).Error
}

// updateWithLog commits a targeted field update and its audit entry as
// one unit. Neither is ever observable without the other.
func (r *documentRepository) updateWithLog(ctx context.Context, id uint, fields map[string]interface{}, message string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Document{}).
			Where("id = ?", id).
			Updates(fields).Error; err != nil {
			return err
		}
		return tx.Create(&domain.ProcessingLog{
			DocumentID: id,
			Message:    message,
			Timestamp:  time.Now(),
		}).Error
	})
}
