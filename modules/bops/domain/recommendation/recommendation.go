package recommendation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("recommendation not found")

// Recommendation is one round of the assessor-writes / reviewer-signs-off
// cycle. Rounds are append-only: a rejected round stays untouched as history
// and a fresh row starts the next round.
type Recommendation struct {
	TenantID      uuid.UUID `json:"tenant_id"`
	ID            uuid.UUID `json:"id"`
	ApplicationID uuid.UUID `json:"application_id"`

	Decision        string `json:"decision,omitempty"` // granted/refused, empty while drafting
	AssessorComment string `json:"assessor_comment,omitempty"`
	// PublicComment is the applicant-facing reason, mandatory for refusals.
	PublicComment string `json:"public_comment,omitempty"`

	Submitted       bool       `json:"submitted"`
	ReviewerComment string     `json:"reviewer_comment,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	Accepted        *bool      `json:"accepted,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Challenged: reviewed but not approved.
func (r *Recommendation) Challenged() bool {
	return r.ReviewedAt != nil && (r.Accepted == nil || !*r.Accepted)
}

// Draft: the actionable round the assessor is still writing.
func (r *Recommendation) Draft() bool {
	return !r.Submitted && r.ReviewedAt == nil
}

// UnderReview: submitted and waiting for the reviewer.
func (r *Recommendation) UnderReview() bool {
	return r.Submitted && r.ReviewedAt == nil
}

type Repository interface {
	Create(ctx context.Context, r *Recommendation) (*Recommendation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Recommendation, error)
	// Latest returns the newest round for the application, ErrNotFound when
	// none exists yet.
	Latest(ctx context.Context, applicationID uuid.UUID) (*Recommendation, error)
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*Recommendation, error)
	Update(ctx context.Context, r *Recommendation) error
}
