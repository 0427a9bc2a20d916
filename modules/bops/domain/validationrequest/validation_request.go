package validationrequest

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind is the closed set of request variants. Each kind shares the same
// pending/open/closed/cancelled lifecycle and differs only in payload.
type Kind string

const (
	KindDescriptionChange     Kind = "description_change"
	KindReplacementDocument   Kind = "replacement_document"
	KindAdditionalDocument    Kind = "additional_document"
	KindRedLineBoundaryChange Kind = "red_line_boundary_change"
	KindTimeExtension         Kind = "time_extension"
	KindOtherChange           Kind = "other_change"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindDescriptionChange, KindReplacementDocument, KindAdditionalDocument,
		KindRedLineBoundaryChange, KindTimeExtension, KindOtherChange:
		return true
	}
	return false
}

// Label is the human-readable kind name used in audit messages, e.g.
// "new document#1".
func (k Kind) Label() string {
	switch k {
	case KindDescriptionChange:
		return "description change"
	case KindReplacementDocument:
		return "replacement document"
	case KindAdditionalDocument:
		return "new document"
	case KindRedLineBoundaryChange:
		return "red line boundary change"
	case KindTimeExtension:
		return "time extension"
	default:
		return "other change"
	}
}

type State string

const (
	// StatePending: created but not yet visible to the applicant. Requests
	// stay pending until the owning application is invalidated.
	StatePending State = "pending"
	// StateOpen: sent to the applicant and awaiting a response.
	StateOpen State = "open"
	// StateClosed: the counter-party responded.
	StateClosed State = "closed"
	// StateCancelled: withdrawn by staff before any response.
	StateCancelled State = "cancelled"
)

var (
	ErrNotEditable    = errors.New("validation request can no longer be edited")
	ErrNotCancellable = errors.New("validation request can no longer be cancelled")
	ErrNotOpen        = errors.New("validation request is not open for a response")
	ErrNotPending     = errors.New("validation request has already been sent")
)

// Payload carries the kind-specific request fields. Only the fields for the
// request's kind are populated.
type Payload struct {
	// description_change
	ProposedDescription string `json:"proposed_description,omitempty"`
	// replacement_document
	OldDocumentID *uuid.UUID `json:"old_document_id,omitempty"`
	// additional_document
	DocumentRequestType string `json:"document_request_type,omitempty"`
	// red_line_boundary_change
	NewGeojson json.RawMessage `json:"new_geojson,omitempty"`
	// time_extension
	ProposedTargetDate *time.Time `json:"proposed_target_date,omitempty"`
	// other_change (summary shown to the applicant, suggestion of the fix)
	Summary    string `json:"summary,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`

	Reason string `json:"reason,omitempty"`
}

// Response carries the counter-party's answer.
type Response struct {
	Approved       *bool      `json:"approved,omitempty"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	Text           string     `json:"text,omitempty"`
	NewDocumentID  *uuid.UUID `json:"new_document_id,omitempty"`
}

type ValidationRequest struct {
	TenantID      uuid.UUID `json:"tenant_id"`
	ID            uuid.UUID `json:"id"`
	ApplicationID uuid.UUID `json:"application_id"`
	Kind          Kind      `json:"kind"`
	State         State     `json:"state"`

	// FeeRelated marks the fee-flavoured other_change variant. Stored
	// explicitly; fee requests are excluded from the generic "other
	// validation issues" list and handled on the dedicated fee screen.
	FeeRelated bool `json:"fee_related"`

	// PostValidation requests never block the validate/invalidate decision,
	// they block recommendation submission instead.
	PostValidation bool `json:"post_validation"`

	// Sequence is the per-application, per-kind ordinal used in audit
	// messages and the UI.
	Sequence int `json:"sequence"`

	Payload  Payload   `json:"payload"`
	Response *Response `json:"response,omitempty"`

	NotifiedAt   *time.Time `json:"notified_at,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Unresolved reports whether the request still blocks progress. Cancelled and
// closed requests never block.
func (v *ValidationRequest) Unresolved() bool {
	return v.State == StatePending || v.State == StateOpen
}

// Editable: a request can be amended while it hasn't been sent, or while it
// is open without a response yet.
func (v *ValidationRequest) Editable() bool {
	switch v.State {
	case StatePending:
		return true
	case StateOpen:
		return v.Response == nil
	}
	return false
}

// MarkOpen transitions pending → open at the moment the owning application
// is invalidated and the notification batch goes out.
func (v *ValidationRequest) MarkOpen(notifiedAt time.Time) error {
	if v.State != StatePending {
		return ErrNotPending
	}
	v.State = StateOpen
	v.NotifiedAt = &notifiedAt
	return nil
}

// MarkClosed records the counter-party's response. Loses the race against a
// concurrent cancel: a cancelled request rejects the response.
func (v *ValidationRequest) MarkClosed(response Response, closedAt time.Time) error {
	if v.State != StateOpen {
		return ErrNotOpen
	}
	v.State = StateClosed
	v.Response = &response
	v.ClosedAt = &closedAt
	return nil
}

// MarkCancelled withdraws the request. A reason is always required and a
// request that already received a response cannot be cancelled.
func (v *ValidationRequest) MarkCancelled(reason string, cancelledAt time.Time) error {
	if reason == "" {
		return errors.New("cancel reason is required")
	}
	if v.State != StatePending && v.State != StateOpen {
		return ErrNotCancellable
	}
	v.State = StateCancelled
	v.CancelReason = reason
	v.CancelledAt = &cancelledAt
	return nil
}

// Overdue reports whether the statutory response window has elapsed.
// Display-only; nothing is enforced on expiry.
func (v *ValidationRequest) Overdue(now time.Time, responseDays int) bool {
	if v.State != StateOpen || v.NotifiedAt == nil {
		return false
	}
	return now.After(v.NotifiedAt.AddDate(0, 0, responseDays))
}
