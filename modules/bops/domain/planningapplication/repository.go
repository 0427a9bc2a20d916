package planningapplication

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("planning application not found")

type FindParams struct {
	Status Status
	Limit  int
	Offset int
}

// FieldChange records one attribute update for the audit trail.
type FieldChange struct {
	Field    string
	OldValue string
	NewValue string
}

type Update struct {
	Description        *string
	ApplicationType    *ApplicationType
	Reference          *string
	ValidFee           **bool
	DocumentsMissing   **bool
	ConstraintsChecked *bool
	PaymentAmount      *decimal.Decimal
	TargetDate         *time.Time
	AssignedUserID     **uuid.UUID
}

type Repository interface {
	Create(ctx context.Context, p *PlanningApplication) (*PlanningApplication, error)
	GetByID(ctx context.Context, id uuid.UUID) (*PlanningApplication, error)
	// GetByIDForUpdate locks the application row for the remainder of the
	// transaction so guard checks and the transition commit atomically.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*PlanningApplication, error)
	GetByReference(ctx context.Context, reference string) (*PlanningApplication, error)
	GetPaginated(ctx context.Context, params *FindParams) ([]*PlanningApplication, int64, error)
	NextReferenceCounter(ctx context.Context) (int64, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	UpdateFields(ctx context.Context, id uuid.UUID, update Update) error
	SetValidationDecision(ctx context.Context, id uuid.UUID, status Status, documentsValidatedAt *time.Time) error
	SetDetermination(ctx context.Context, id uuid.UUID, decision Decision, determinedAt time.Time) error
	SetClosure(ctx context.Context, id uuid.UUID, status Status, comment string, closedAt time.Time) error
}
