package planningapplication

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Decision string

const (
	DecisionGranted Decision = "granted"
	DecisionRefused Decision = "refused"
)

func (d Decision) IsValid() bool {
	return d == DecisionGranted || d == DecisionRefused
}

// ClosureReason is the radio selection required by withdraw-or-cancel. Each
// reason maps to its own terminal status.
type ClosureReason string

const (
	ClosureWithdrawnByApplicant ClosureReason = "withdrawn_by_applicant"
	ClosureReturnedAsInvalid    ClosureReason = "returned_as_invalid"
	ClosureClosedOther          ClosureReason = "closed_other"
)

func (r ClosureReason) TargetStatus() (Status, bool) {
	switch r {
	case ClosureWithdrawnByApplicant:
		return StatusWithdrawn, true
	case ClosureReturnedAsInvalid:
		return StatusReturned, true
	case ClosureClosedOther:
		return StatusClosed, true
	}
	return "", false
}

func (r ClosureReason) Command() Command {
	switch r {
	case ClosureWithdrawnByApplicant:
		return CommandWithdraw
	case ClosureReturnedAsInvalid:
		return CommandReturn
	default:
		return CommandClose
	}
}

// PlanningApplication is the case record moving through the lifecycle.
// ValidFee and DocumentsMissing are tri-state: nil means "not checked yet".
type PlanningApplication struct {
	TenantID        uuid.UUID       `json:"tenant_id"`
	ID              uuid.UUID       `json:"id"`
	Reference       string          `json:"reference"`
	ApplicationType ApplicationType `json:"application_type"`
	Status          Status          `json:"status"`
	Description     string          `json:"description"`
	Decision        *Decision       `json:"decision,omitempty"`

	ApplicantName  string `json:"applicant_name"`
	ApplicantEmail string `json:"applicant_email"`

	DocumentsValidatedAt *time.Time      `json:"documents_validated_at,omitempty"`
	ValidFee             *bool           `json:"valid_fee,omitempty"`
	DocumentsMissing     *bool           `json:"documents_missing,omitempty"`
	ConstraintsChecked   bool            `json:"constraints_checked"`
	PaymentAmount        decimal.Decimal `json:"payment_amount"`
	TargetDate           time.Time       `json:"target_date"`

	DeterminedAt                *time.Time `json:"determined_at,omitempty"`
	ClosedOrCancellationComment *string    `json:"closed_or_cancellation_comment,omitempty"`
	ClosedAt                    *time.Time `json:"closed_at,omitempty"`

	AssignedUserID *uuid.UUID `json:"assigned_user_id,omitempty"`

	// AuditLog is the intake snapshot supplied by the external submission
	// API. Present only for applications created through that path; cloning
	// requires it.
	AuditLog json.RawMessage `json:"audit_log,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanBeClosed reports whether withdraw-or-cancel is still available.
func (p *PlanningApplication) CanBeClosed() bool {
	return !p.Status.IsTerminal()
}

// Cloneable reports whether the clone operation can run: the application
// must have come through the intake API (snapshot present).
func (p *PlanningApplication) Cloneable() bool {
	return len(p.AuditLog) > 0
}
