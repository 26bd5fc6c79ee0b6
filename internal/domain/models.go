package domain

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// AllowedExtensions is the closed set of accepted upload types.
var AllowedExtensions = []string{"txt", "png", "jpeg", "jpg"}

type Document struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	OwnerID          uint            `gorm:"index:idx_documents_owner_status;not null" json:"owner_id"`
	OriginalFilename string          `gorm:"size:255;not null" json:"original_filename"`
	FileSize         int64           `gorm:"not null" json:"file_size"`
	Extension        string          `gorm:"size:10;not null" json:"extension"`
	OriginalPath     string          `gorm:"size:512;not null" json:"original_path"`
	ThumbnailPath    *string         `gorm:"size:512" json:"thumbnail_path"`
	Status           Status          `gorm:"size:20;not null;default:'pending';index:idx_documents_owner_status" json:"status"`
	ErrorMessage     *string         `json:"error_message"`
	CreatedAt        time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Logs             []ProcessingLog `gorm:"constraint:OnDelete:CASCADE" json:"logs,omitempty"`
}

// IsImage reports whether the document should get a thumbnail.
func (d *Document) IsImage() bool {
	switch strings.ToLower(d.Extension) {
	case "png", "jpeg", "jpg":
		return true
	}
	return false
}

// ContentType returns the MIME type matching an image extension.
// The jpg alias maps to image/jpeg, never image/jpg.
func ContentType(extension string) string {
	if strings.ToLower(extension) == "png" {
		return "image/png"
	}
	return "image/jpeg"
}

// ProcessingLog is an append-only audit entry owned by a Document.
// Rows are never updated after creation.
type ProcessingLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DocumentID uint      `gorm:"index;not null" json:"document_id"`
	Message    string    `gorm:"not null" json:"message"`
	Timestamp  time.Time `gorm:"index" json:"timestamp"`
}
