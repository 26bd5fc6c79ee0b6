package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AmirMahdi-for/pipeline/internal/domain"
)

// Fixed audit-trail messages. Downstream readers and the report layer
// match on these strings, so they are part of the wire contract.
const (
	msgCompleted   = "Processing completed successfully"
	msgThumbnailUp = "Thumbnail uploaded"
	msgNoThumbnail = "Thumbnail generation produced no result"
)

// StateStore is the slice of the persistence layer the worker drives.
// Claim is the only lock-taking operation; the Mark/Set operations each
// pair the field update with its audit entry atomically.
type StateStore interface {
	ClaimForProcessing(ctx context.Context, id uint) (*domain.Document, error)
	MarkDone(ctx context.Context, id uint, message string) error
	MarkFailed(ctx context.Context, id uint, message string) error
	SetThumbnail(ctx context.Context, id uint, path, message string) error
	AppendLog(ctx context.Context, id uint, message string) error
}

// ObjectStorage mirrors repository.ObjectStorage so the worker can be
// exercised without a real S3 endpoint.
type ObjectStorage interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeNotFound
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "failed"
	}
}

// Outcome is the terminal result of one processing run.
type Outcome struct {
	Kind    OutcomeKind
	Message string
}

// Processor drives one document through the processing state machine.
type Processor interface {
	Run(ctx context.Context, documentID uint) Outcome
}

type processor struct {
	store   StateStore
	storage ObjectStorage
	thumbs  *ThumbnailGenerator
	log     *zap.Logger
}

func NewProcessor(store StateStore, storage ObjectStorage, thumbs *ThumbnailGenerator, log *zap.Logger) Processor {
	return &processor{
		store:   store,
		storage: storage,
		thumbs:  thumbs,
		log:     log,
	}
}

// Run executes the pipeline for one document id. It is safe to invoke
// again for the same id: delivery is at-least-once and the claim step
// is the only mutual exclusion. Every terminal transition is written
// together with its audit entry; a run that never claims the row
// mutates nothing.
func (p *processor) Run(ctx context.Context, documentID uint) (out Outcome) {
	log := p.log.With(
		zap.Uint("document_id", documentID),
		zap.String("run_id", uuid.New().String()))

	log.Info("Starting document processing")

	var doc *domain.Document
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("Unexpected error: %v", r)
			log.Error("Processing panicked", zap.Any("panic", r))
			if doc != nil {
				p.recordFailure(ctx, log, doc.ID, msg)
			}
			out = Outcome{Kind: OutcomeFailed, Message: msg}
		}
	}()

	doc, err := p.store.ClaimForProcessing(ctx, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Error("Document not found")
			return Outcome{Kind: OutcomeNotFound, Message: "document not found"}
		}
		// Claim never committed, so no state may be written.
		log.Error("Failed to claim document", zap.Error(err))
		return Outcome{Kind: OutcomeFailed, Message: err.Error()}
	}

	log.Info("Document claimed for processing",
		zap.String("filename", doc.OriginalFilename),
		zap.String("extension", doc.Extension))

	content, err := p.storage.Download(ctx, doc.OriginalFilename)
	if err != nil {
		msg := fmt.Sprintf("Download failed: %v", err)
		log.Error("Download failed", zap.Error(err))
		p.recordFailure(ctx, log, doc.ID, msg)
		return Outcome{Kind: OutcomeFailed, Message: msg}
	}

	log.Info("Original downloaded", zap.Int("size", len(content)))

	if doc.IsImage() {
		if outcome, ok := p.deriveThumbnail(ctx, log, doc, content); !ok {
			return outcome
		}
	}

	if err := p.store.MarkDone(ctx, doc.ID, msgCompleted); err != nil {
		msg := fmt.Sprintf("Unexpected error: %v", err)
		log.Error("Failed to finalize document", zap.Error(err))
		p.recordFailure(ctx, log, doc.ID, msg)
		return Outcome{Kind: OutcomeFailed, Message: msg}
	}

	log.Info("Document processing completed")
	return Outcome{Kind: OutcomeSuccess}
}

// deriveThumbnail runs the image branch of the pipeline. It returns
// ok=false with a terminal outcome only for upload or bookkeeping
// failures; a generator that produces nothing never fails the document.
func (p *processor) deriveThumbnail(ctx context.Context, log *zap.Logger, doc *domain.Document, content []byte) (Outcome, bool) {
	thumb := p.thumbs.Generate(content, doc.Extension)
	if thumb == nil {
		log.Warn("No thumbnail produced", zap.String("extension", doc.Extension))
		if err := p.store.AppendLog(ctx, doc.ID, msgNoThumbnail); err != nil {
			log.Warn("Failed to append audit entry", zap.Error(err))
		}
		return Outcome{}, true
	}

	key := "thumb_" + doc.OriginalFilename
	location, err := p.storage.Upload(ctx, key, thumb, domain.ContentType(doc.Extension))
	if err != nil {
		msg := fmt.Sprintf("Thumbnail upload failed: %v", err)
		log.Error("Thumbnail upload failed", zap.Error(err))
		p.recordFailure(ctx, log, doc.ID, msg)
		return Outcome{Kind: OutcomeFailed, Message: msg}, false
	}

	if err := p.store.SetThumbnail(ctx, doc.ID, location, msgThumbnailUp); err != nil {
		msg := fmt.Sprintf("Unexpected error: %v", err)
		log.Error("Failed to record thumbnail", zap.Error(err))
		p.recordFailure(ctx, log, doc.ID, msg)
		return Outcome{Kind: OutcomeFailed, Message: msg}, false
	}

	log.Info("Thumbnail uploaded",
		zap.String("key", key),
		zap.String("location", location))

	return Outcome{}, true
}

// recordFailure writes the failed status and its audit entry. A
// secondary failure here is surfaced through the log only, never
// escalated.
func (p *processor) recordFailure(ctx context.Context, log *zap.Logger, id uint, message string) {
	if err := p.store.MarkFailed(ctx, id, message); err != nil {
		log.Error("Failed to record failure state", zap.Error(err))
	}
}
