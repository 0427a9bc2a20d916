package validationrequest

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("validation request not found")

type Repository interface {
	Create(ctx context.Context, v *ValidationRequest) (*ValidationRequest, error)
	GetByID(ctx context.Context, id uuid.UUID) (*ValidationRequest, error)
	// GetByIDForUpdate locks the request row so response-vs-cancel races
	// resolve to whichever transaction commits first.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*ValidationRequest, error)
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*ValidationRequest, error)
	NextSequence(ctx context.Context, applicationID uuid.UUID, kind Kind) (int, error)
	Update(ctx context.Context, v *ValidationRequest) error
	Delete(ctx context.Context, id uuid.UUID) error
}
