package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is one append-only audit row. Every observable mutation to a
// planning application writes exactly one entry; entries are never updated
// or deleted.
type Entry struct {
	TenantID      uuid.UUID `json:"tenant_id"`
	ID            uuid.UUID `json:"id"`
	ApplicationID uuid.UUID `json:"application_id"`

	ActivityType        string          `json:"activity_type"`
	ActivityInformation json.RawMessage `json:"activity_information,omitempty"`
	Comment             string          `json:"comment,omitempty"`

	// Exactly one of UserID/APIUserID identifies the actor.
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	APIUserID *uuid.UUID `json:"api_user_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Insert is the value object services build inside a transition; the
// repository persists it verbatim.
type Insert struct {
	ApplicationID       uuid.UUID
	ActivityType        string
	ActivityInformation any
	Comment             string
	UserID              uuid.UUID
	APIUserID           uuid.UUID
}

func (i Insert) Validate() error {
	if i.ApplicationID == uuid.Nil {
		return fmt.Errorf("application_id is required")
	}
	if i.ActivityType == "" {
		return fmt.Errorf("activity_type is required")
	}
	if i.UserID == uuid.Nil && i.APIUserID == uuid.Nil {
		return fmt.Errorf("an actor is required")
	}
	return nil
}

func (i Insert) MarshalInformation() ([]byte, error) {
	if i.ActivityInformation == nil {
		return nil, nil
	}
	return json.Marshal(i.ActivityInformation)
}

type Repository interface {
	Create(ctx context.Context, insert Insert) (uuid.UUID, error)
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*Entry, error)
}
