package appeal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("appeal not found")

// Stage is one step of the linear appeal sequence. Stages are appended in
// order and never removed.
type Stage string

const (
	StageLodged     Stage = "lodged"
	StageValidated  Stage = "validated"
	StageStarted    Stage = "started"
	StageDetermined Stage = "determined"
)

// stageOrder fixes the linear sequence.
var stageOrder = []Stage{StageLodged, StageValidated, StageStarted, StageDetermined}

func (s Stage) IsValid() bool {
	for _, stage := range stageOrder {
		if s == stage {
			return true
		}
	}
	return false
}

// Label is the human-readable stage name used in audit entries and
// validation messages.
func (s Stage) Label() string {
	switch s {
	case StageLodged:
		return "lodged at"
	case StageValidated:
		return "validated at"
	case StageStarted:
		return "started at"
	case StageDetermined:
		return "determined at"
	}
	return string(s)
}

// Previous returns the stage immediately before s, if any.
func (s Stage) Previous() (Stage, bool) {
	for i, stage := range stageOrder {
		if stage == s && i > 0 {
			return stageOrder[i-1], true
		}
	}
	return "", false
}

type Decision string

const (
	DecisionAllowed   Decision = "allowed"
	DecisionDismissed Decision = "dismissed"
	DecisionSplit     Decision = "split_decision"
	DecisionWithdrawn Decision = "withdrawn"
)

func (d Decision) IsValid() bool {
	switch d {
	case DecisionAllowed, DecisionDismissed, DecisionSplit, DecisionWithdrawn:
		return true
	}
	return false
}

type Appeal struct {
	TenantID      uuid.UUID `json:"tenant_id"`
	ID            uuid.UUID `json:"id"`
	ApplicationID uuid.UUID `json:"application_id"`

	Reason string `json:"reason"`

	LodgedAt     *time.Time `json:"lodged_at,omitempty"`
	ValidatedAt  *time.Time `json:"validated_at,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	DeterminedAt *time.Time `json:"determined_at,omitempty"`
	Decision     *Decision  `json:"decision,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StageDate returns the recorded date for a stage, nil when not yet reached.
func (a *Appeal) StageDate(stage Stage) *time.Time {
	switch stage {
	case StageLodged:
		return a.LodgedAt
	case StageValidated:
		return a.ValidatedAt
	case StageStarted:
		return a.StartedAt
	case StageDetermined:
		return a.DeterminedAt
	}
	return nil
}

// SetStageDate records a stage date after ValidateStageDate has passed.
func (a *Appeal) SetStageDate(stage Stage, date time.Time) {
	switch stage {
	case StageLodged:
		a.LodgedAt = &date
	case StageValidated:
		a.ValidatedAt = &date
	case StageStarted:
		a.StartedAt = &date
	case StageDetermined:
		a.DeterminedAt = &date
	}
}

// CurrentStage is the furthest stage with a recorded date.
func (a *Appeal) CurrentStage() (Stage, bool) {
	var current Stage
	found := false
	for _, stage := range stageOrder {
		if a.StageDate(stage) != nil {
			current = stage
			found = true
		}
	}
	return current, found
}

// ValidateStageDate enforces the clauses on every stage date: a real calendar
// date (checked upstream at parse time), on or before today, and on or after
// the latest earlier stage that has a recorded date. Intermediate stages can
// be skipped, so the comparison walks back past unrecorded ones. The returned
// message names the failed clause, scoped to the stage's field.
func (a *Appeal) ValidateStageDate(stage Stage, date time.Time, today time.Time) error {
	if date.IsZero() {
		return fmt.Errorf("%s must be a valid date", stage.Label())
	}
	if dateOnly(date).After(dateOnly(today)) {
		return fmt.Errorf("%s must be on or before today", stage.Label())
	}
	for prev, ok := stage.Previous(); ok; prev, ok = prev.Previous() {
		prevDate := a.StageDate(prev)
		if prevDate == nil {
			continue
		}
		if dateOnly(date).Before(dateOnly(*prevDate)) {
			return fmt.Errorf("%s must be on or after the %s date", stage.Label(), prev.Label())
		}
		break
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type Repository interface {
	Create(ctx context.Context, a *Appeal) (*Appeal, error)
	GetByApplication(ctx context.Context, applicationID uuid.UUID) (*Appeal, error)
	Update(ctx context.Context, a *Appeal) error
}
