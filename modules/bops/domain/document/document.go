package document

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("document not found")

// Tag marks what a document evidences. Appeal documents are tagged by stage
// so lodging evidence and decision letters stay distinguishable.
type Tag string

const (
	TagApplication    Tag = "application"
	TagAppeal         Tag = "appeal"
	TagAppealDecision Tag = "appeal_decision"
	TagClosure        Tag = "closure"
)

type Document struct {
	TenantID      uuid.UUID `json:"tenant_id"`
	ID            uuid.UUID `json:"id"`
	ApplicationID uuid.UUID `json:"application_id"`

	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Tag         Tag    `json:"tag"`

	// Validated is tri-state: nil until a validation decision is recorded.
	Validated                 *bool  `json:"validated,omitempty"`
	InvalidatedDocumentReason string `json:"invalidated_document_reason,omitempty"`

	ArchivedAt    *time.Time `json:"archived_at,omitempty"`
	ArchiveReason string     `json:"archive_reason,omitempty"`

	// Representable is false when the security scan removed the content;
	// callers render an "unavailable" state instead of failing.
	Representable bool `json:"representable"`

	CreatedAt time.Time `json:"created_at"`
}

var supportingExtensions = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

var ErrUnsupportedFileType = errors.New("must be a PDF, JPG or PNG")

// ValidateSupportingFile checks a closure supporting document against the
// allow-list. When content is available its sniffed type must also match;
// an extension alone never overrides a mismatched body.
func ValidateSupportingFile(filename string, content []byte) error {
	ext := strings.ToLower(filepath.Ext(filename))
	want, ok := supportingExtensions[ext]
	if !ok {
		return ErrUnsupportedFileType
	}
	if len(content) == 0 {
		return nil
	}
	detected := mimetype.Detect(content)
	if !detected.Is(want) {
		return ErrUnsupportedFileType
	}
	return nil
}

type Repository interface {
	Create(ctx context.Context, d *Document) (*Document, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*Document, error)
	Update(ctx context.Context, d *Document) error
}
