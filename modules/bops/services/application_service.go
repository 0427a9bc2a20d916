package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bops-digital/bops/modules/bops/domain/audit"
	"github.com/bops-digital/bops/modules/bops/domain/document"
	"github.com/bops-digital/bops/modules/bops/domain/events"
	"github.com/bops-digital/bops/modules/bops/domain/planningapplication"
	"github.com/bops-digital/bops/modules/bops/domain/recommendation"
	"github.com/bops-digital/bops/modules/bops/domain/validationrequest"
	"github.com/bops-digital/bops/pkg/composables"
	"github.com/bops-digital/bops/pkg/eventbus"
	"github.com/bops-digital/bops/pkg/serrors"
)

// ApplicationService owns the top-level status machine: create, assign,
// validate/invalidate, determine, withdraw/return/close and clone. Sub-cycle
// transitions (recommendations, appeals, individual validation requests)
// live in their own services.
type ApplicationService struct {
	apps     planningapplication.Repository
	requests validationrequest.Repository
	recs     recommendation.Repository
	docs     document.Repository
	audits   audit.Repository
	bus      eventbus.EventBus

	cloningEnabled bool
}

func NewApplicationService(
	apps planningapplication.Repository,
	requests validationrequest.Repository,
	recs recommendation.Repository,
	docs document.Repository,
	audits audit.Repository,
	bus eventbus.EventBus,
	cloningEnabled bool,
) *ApplicationService {
	return &ApplicationService{
		apps:           apps,
		requests:       requests,
		recs:           recs,
		docs:           docs,
		audits:         audits,
		bus:            bus,
		cloningEnabled: cloningEnabled,
	}
}

func actorFrom(ctx context.Context) audit.Insert {
	entry := audit.Insert{}
	if actor, ok := composables.UseActor(ctx); ok {
		entry.UserID = actor.UserID
		entry.APIUserID = actor.APIUserID
	}
	return entry
}

func (s *ApplicationService) record(ctx context.Context, applicationID uuid.UUID, activityType string, information any, comment string) (uuid.UUID, error) {
	entry := actorFrom(ctx)
	entry.ApplicationID = applicationID
	entry.ActivityType = activityType
	entry.ActivityInformation = information
	entry.Comment = comment
	return s.audits.Create(ctx, entry)
}

// ---- create ----

type CreateApplicationInput struct {
	Description     string
	ApplicationType planningapplication.ApplicationType
	ApplicantName   string
	ApplicantEmail  string
	TargetDate      time.Time
	PaymentAmount   decimal.Decimal
	AuditLog        []byte
}

func (s *ApplicationService) Create(ctx context.Context, tenantID uuid.UUID, in CreateApplicationInput) (*planningapplication.PlanningApplication, error) {
	verrs := make(serrors.ValidationErrors)
	if strings.TrimSpace(in.Description) == "" {
		verrs.Add("description", "can't be blank")
	}
	if !in.ApplicationType.IsValid() {
		verrs.Add("application_type", "is not a valid option")
	}
	if strings.TrimSpace(in.ApplicantEmail) == "" {
		verrs.Add("applicant_email", "can't be blank")
	}
	if len(verrs) > 0 {
		return nil, verrs
	}

	return inTx(ctx, tenantID, func(txCtx context.Context) (*planningapplication.PlanningApplication, error) {
		counter, err := s.apps.NextReferenceCounter(txCtx)
		if err != nil {
			return nil, mapPgError(err)
		}
		now := time.Now().UTC()
		app := &planningapplication.PlanningApplication{
			TenantID:        tenantID,
			Reference:       planningapplication.NewReference(now, counter, in.ApplicationType),
			ApplicationType: in.ApplicationType,
			Status:          planningapplication.StatusNotStarted,
			Description:     strings.TrimSpace(in.Description),
			ApplicantName:   strings.TrimSpace(in.ApplicantName),
			ApplicantEmail:  strings.TrimSpace(in.ApplicantEmail),
			PaymentAmount:   in.PaymentAmount,
			TargetDate:      in.TargetDate,
			AuditLog:        in.AuditLog,
		}
		created, err := s.apps.Create(txCtx, app)
		if err != nil {
			return nil, mapPgError(err)
		}
		if _, err := s.record(txCtx, created.ID, "created", map[string]string{"reference": created.Reference}, ""); err != nil {
			return nil, mapPgError(err)
		}
		return created, nil
	})
}

// ---- queries ----

func (s *ApplicationService) Get(ctx context.Context, tenantID, id uuid.UUID) (*planningapplication.PlanningApplication, error) {
	return inTx(ctx, tenantID, func(txCtx context.Context) (*planningapplication.PlanningApplication, error) {
		app, err := s.apps.GetByID(txCtx, id)
		if err != nil {
			return nil, mapPgError(err)
		}
		return app, nil
	})
}

// GetByReference resolves the public reference printed on correspondence.
func (s *ApplicationService) GetByReference(ctx context.Context, tenantID uuid.UUID, reference string) (*planningapplication.PlanningApplication, error) {
	return inTx(ctx, tenantID, func(txCtx context.Context) (*planningapplication.PlanningApplication, error) {
		app, err := s.apps.GetByReference(txCtx, strings.TrimSpace(reference))
		if err != nil {
			return nil, mapPgError(err)
		}
		return app, nil
	})
}

func (s *ApplicationService) GetPaginated(ctx context.Context, tenantID uuid.UUID, params *planningapplication.FindParams) ([]*planningapplication.PlanningApplication, int64, error) {
	type page struct {
		apps  []*planningapplication.PlanningApplication
		total int64
	}
	out, err := inTx(ctx, tenantID, func(txCtx context.Context) (page, error) {
		apps, total, err := s.apps.GetPaginated(txCtx, params)
		if err != nil {
			return page{}, mapPgError(err)
		}
		return page{apps: apps, total: total}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return out.apps, out.total, nil
}

// AllowedActions lists the transitions available from the current status.
// The UI derives enable/disable state from this instead of re-deriving
// guard logic.
func (s *ApplicationService) AllowedActions(status planningapplication.Status) []planningapplication.Transition {
	return planningapplication.AllowedTransitions(status)
}

func (s *ApplicationService) AuditTrail(ctx context.Context, tenantID, id uuid.UUID) ([]*audit.Entry, error) {
	return inTx(ctx, tenantID, func(txCtx context.Context) ([]*audit.Entry, error) {
		entries, err := s.audits.ListByApplication(txCtx, id)
		if err != nil {
			return nil, mapPgError(err)
		}
		return entries, nil
	})
}

// ---- assignment ----

func (s *ApplicationService) Assign(ctx context.Context, tenantID, id uuid.UUID, userID *uuid.UUID) (*planningapplication.PlanningApplication, error) {
	app, err := inTx(ctx, tenantID, func(txCtx context.Context) (*planningapplication.PlanningApplication, error) {
		app, err := s.apps.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return nil, mapPgError(err)
		}
		if app.Status.IsTerminal() {
			return nil, terminalConflict(app.Status)
		}
		if err := s.apps.UpdateFields(txCtx, id, planningapplication.Update{AssignedUserID: &userID}); err != nil {
			return nil, mapPgError(err)
		}
		information := map[string]string{"assigned_to": "nobody"}
		if userID != nil {
			information["assigned_to"] = userID.String()
		}
		if _, err := s.record(txCtx, id, "assigned", information, ""); err != nil {
			return nil, mapPgError(err)
		}
		app.AssignedUserID = userID
		return app, nil
	})
	if err != nil {
		return nil, err
	}
	if userID != nil {
		s.bus.Publish(&events.ApplicationAssigned{Application: app, UserID: *userID})
	}
	return app, nil
}

// terminalConflict differentiates "already determined" from "already
// closed" so the UI can explain why the action is gone.
func terminalConflict(status planningapplication.Status) *ServiceError {
	if status == planningapplication.StatusDetermined {
		return newServiceError(http.StatusConflict, CodeAlreadyDetermined, "this application has already been determined", nil)
	}
	return newServiceError(http.StatusConflict, CodeAlreadyClosed, "this application has already been withdrawn or cancelled", nil)
}

// ---- validation decision ----

type ValidationDecisionInput struct {
	// Validated is the boolean decision; nil means the form was submitted
	// without choosing.
	Validated *bool
	// DocumentsValidatedAt is the raw form value; it must parse as a real
	// calendar date when validating. Backdating is permitted.
	DocumentsValidatedAt string
}

// validationDecisionGuard checks the form inputs. Pure so the guard is
// testable without storage.
func validationDecisionGuard(in ValidationDecisionInput) (time.Time, serrors.ValidationErrors) {
	verrs := make(serrors.ValidationErrors)
	if in.Validated == nil {
		verrs.Add("validated", "Please select one of the options")
		return time.Time{}, verrs
	}
	if !*in.Validated {
		return time.Time{}, nil
	}
	raw := strings.TrimSpace(in.DocumentsValidatedAt)
	if raw == "" {
		verrs.Add("documents_validated_at", "can't be blank")
		return time.Time{}, verrs
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		verrs.Add("documents_validated_at", "must be a valid date")
		return time.Time{}, verrs
	}
	return date, nil
}

// blockedByOpenRequests builds the count-bearing guard failure for the
// "send validation decision" gate.
func blockedByOpenRequests(requests []*validationrequest.ValidationRequest) *ServiceError {
	unresolved, resolved := 0, 0
	for _, req := range requests {
		if req.PostValidation {
			continue
		}
		if req.Unresolved() {
			unresolved++
		} else {
			resolved++
		}
	}
	if unresolved == 0 {
		return nil
	}
	return newServiceError(
		http.StatusConflict,
		CodeOpenRequests,
		fmt.Sprintf("this application has %d unresolved and %d resolved validation requests", unresolved, resolved),
		nil,
	)
}

type ValidationDecisionResult struct {
	Application *planningapplication.PlanningApplication
	AuditID     uuid.UUID
	// OpenedRequests lists the pending requests sent out when the decision
	// was "invalid"; one notification batch covers them all.
	OpenedRequests []*validationrequest.ValidationRequest
}

// RecordValidationDecision performs the validate/invalidate transition.
// Validation moves the application into assessment; invalidation opens every
// pending validation request in one batch.
func (s *ApplicationService) RecordValidationDecision(ctx context.Context, tenantID, id uuid.UUID, in ValidationDecisionInput) (*ValidationDecisionResult, error) {
	date, verrs := validationDecisionGuard(in)
	if len(verrs) > 0 {
		return nil, verrs
	}

	result, err := inTx(ctx, tenantID, func(txCtx context.Context) (*ValidationDecisionResult, error) {
		app, err := s.apps.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return nil, mapPgError(err)
		}

		if *in.Validated {
			return s.validate(txCtx, app, date)
		}
		return s.invalidate(txCtx, app)
	})
	if err != nil {
		return nil, err
	}

	if *in.Validated {
		s.bus.Publish(&events.ApplicationValidated{Application: result.Application})
	} else if len(result.OpenedRequests) > 0 {
		s.bus.Publish(&events.RequestsOpened{Application: result.Application, Requests: result.OpenedRequests})
	}
	return result, nil
}

func (s *ApplicationService) validate(txCtx context.Context, app *planningapplication.PlanningApplication, date time.Time) (*ValidationDecisionResult, error) {
	tr, ok := planningapplication.TransitionFor(app.Status, planningapplication.CommandValidate)
	if !ok {
		if app.Status.IsTerminal() {
			return nil, terminalConflict(app.Status)
		}
		return nil, newStateConflict(fmt.Sprintf("cannot validate an application in status %q", app.Status))
	}

	requests, err := s.requests.ListByApplication(txCtx, app.ID)
	if err != nil {
		return nil, mapPgError(err)
	}
	if blocked := blockedByOpenRequests(requests); blocked != nil {
		return nil, blocked
	}

	if err := s.apps.SetValidationDecision(txCtx, app.ID, tr.To, &date); err != nil {
		return nil, mapPgError(err)
	}
	auditID, err := s.record(txCtx, app.ID, "validated", map[string]string{
		"old_status":             string(app.Status),
		"new_status":             string(tr.To),
		"documents_validated_at": date.Format("2006-01-02"),
	}, "Application validated")
	if err != nil {
		return nil, mapPgError(err)
	}

	app.Status = tr.To
	app.DocumentsValidatedAt = &date
	return &ValidationDecisionResult{Application: app, AuditID: auditID}, nil
}

func (s *ApplicationService) invalidate(txCtx context.Context, app *planningapplication.PlanningApplication) (*ValidationDecisionResult, error) {
	tr, ok := planningapplication.TransitionFor(app.Status, planningapplication.CommandInvalidate)
	if !ok {
		if app.Status.IsTerminal() {
			return nil, terminalConflict(app.Status)
		}
		return nil, newStateConflict(fmt.Sprintf("cannot invalidate an application in status %q", app.Status))
	}

	if err := s.apps.SetValidationDecision(txCtx, app.ID, tr.To, nil); err != nil {
		return nil, mapPgError(err)
	}

	// Opening the pending requests is a fan-out triggered by this
	// transition, not by request creation.
	requests, err := s.requests.ListByApplication(txCtx, app.ID)
	if err != nil {
		return nil, mapPgError(err)
	}
	now := time.Now().UTC()
	var opened []*validationrequest.ValidationRequest
	for _, req := range requests {
		if req.State != validationrequest.StatePending {
			continue
		}
		if err := req.MarkOpen(now); err != nil {
			return nil, newStateConflict(err.Error())
		}
		if err := s.requests.Update(txCtx, req); err != nil {
			return nil, mapPgError(err)
		}
		opened = append(opened, req)
	}

	auditID, err := s.record(txCtx, app.ID, "invalidated", map[string]any{
		"old_status":    string(app.Status),
		"new_status":    string(tr.To),
		"requests_sent": len(opened),
	}, "Application invalidated")
	if err != nil {
		return nil, mapPgError(err)
	}

	app.Status = tr.To
	return &ValidationDecisionResult{Application: app, AuditID: auditID, OpenedRequests: opened}, nil
}

// ---- field edits ----

type UpdateFieldsInput struct {
	Description        *string
	ValidFee           **bool
	DocumentsMissing   **bool
	ConstraintsChecked *bool
	PaymentAmount      *decimal.Decimal
	TargetDate         *time.Time
}

// UpdateFields applies a multi-attribute edit atomically: one audit row per
// changed field, all or nothing. Refused while an incomplete draft
// recommendation exists so the decision notice never reflects a
// half-specified application.
func (s *ApplicationService) UpdateFields(ctx context.Context, tenantID, id uuid.UUID, in UpdateFieldsInput) (*planningapplication.PlanningApplication, error) {
	// Marking the fee invalid goes through a fee validation request so the
	// applicant always learns what to fix; only confirm/clear edits land here.
	if in.ValidFee != nil && *in.ValidFee != nil && !**in.ValidFee {
		verrs := make(serrors.ValidationErrors)
		verrs.Add("valid_fee", "must be marked invalid by raising a fee validation request")
		return nil, verrs
	}
	return inTx(ctx, tenantID, func(txCtx context.Context) (*planningapplication.PlanningApplication, error) {
		app, err := s.apps.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return nil, mapPgError(err)
		}
		if app.Status.IsTerminal() {
			return nil, terminalConflict(app.Status)
		}

		latest, err := s.recs.Latest(txCtx, id)
		if err != nil && !errors.Is(err, recommendation.ErrNotFound) {
			return nil, mapPgError(err)
		}
		if latest != nil && latest.Draft() {
			return nil, newServiceError(http.StatusConflict, CodeDraftRecommendation,
				"please complete or discard the draft recommendation before editing the application", nil)
		}

		update, changes := buildFieldUpdate(app, in)
		if len(changes) == 0 {
			return app, nil
		}
		if err := s.apps.UpdateFields(txCtx, id, update); err != nil {
			return nil, mapPgError(err)
		}
		for _, change := range changes {
			if _, err := s.record(txCtx, id, "updated", change, ""); err != nil {
				return nil, mapPgError(err)
			}
		}
		return s.apps.GetByID(txCtx, id)
	})
}

func buildFieldUpdate(app *planningapplication.PlanningApplication, in UpdateFieldsInput) (planningapplication.Update, []planningapplication.FieldChange) {
	var update planningapplication.Update
	var changes []planningapplication.FieldChange

	if in.Description != nil && *in.Description != app.Description {
		update.Description = in.Description
		changes = append(changes, planningapplication.FieldChange{
			Field: "description", OldValue: app.Description, NewValue: *in.Description,
		})
	}
	if in.ValidFee != nil {
		update.ValidFee = in.ValidFee
		changes = append(changes, planningapplication.FieldChange{
			Field: "valid_fee", OldValue: triState(app.ValidFee), NewValue: triState(*in.ValidFee),
		})
	}
	if in.DocumentsMissing != nil {
		update.DocumentsMissing = in.DocumentsMissing
		changes = append(changes, planningapplication.FieldChange{
			Field: "documents_missing", OldValue: triState(app.DocumentsMissing), NewValue: triState(*in.DocumentsMissing),
		})
	}
	if in.ConstraintsChecked != nil && *in.ConstraintsChecked != app.ConstraintsChecked {
		update.ConstraintsChecked = in.ConstraintsChecked
		changes = append(changes, planningapplication.FieldChange{
			Field: "constraints_checked", OldValue: fmt.Sprintf("%t", app.ConstraintsChecked), NewValue: fmt.Sprintf("%t", *in.ConstraintsChecked),
		})
	}
	if in.PaymentAmount != nil && !in.PaymentAmount.Equal(app.PaymentAmount) {
		update.PaymentAmount = in.PaymentAmount
		changes = append(changes, planningapplication.FieldChange{
			Field: "payment_amount", OldValue: app.PaymentAmount.String(), NewValue: in.PaymentAmount.String(),
		})
	}
	if in.TargetDate != nil && !in.TargetDate.Equal(app.TargetDate) {
		update.TargetDate = in.TargetDate
		changes = append(changes, planningapplication.FieldChange{
			Field: "target_date", OldValue: app.TargetDate.Format("2006-01-02"), NewValue: in.TargetDate.Format("2006-01-02"),
		})
	}
	return update, changes
}

func triState(v *bool) string {
	if v == nil {
		return "not checked"
	}
	return fmt.Sprintf("%t", *v)
}

// ---- application type change ----

// ChangeApplicationType re-derives the reference suffix while preserving the
// year/counter prefix. Exactly one audit row names both references.
func (s *ApplicationService) ChangeApplicationType(ctx context.Context, tenantID, id uuid.UUID, newType planningapplication.ApplicationType) (*planningapplication.PlanningApplication, error) {
	if !newType.IsValid() {
		verrs := make(serrors.ValidationErrors)
		verrs.Add("application_type", "is not a valid option")
		return nil, verrs
	}

	return inTx(ctx, tenantID, func(txCtx context.Context) (*planningapplication.PlanningApplication, error) {
		app, err := s.apps.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return nil, mapPgError(err)
		}
		if app.Status.IsTerminal() {
			return nil, terminalConflict(app.Status)
		}
		if app.ApplicationType == newType {
			return app, nil
		}

		newReference, err := planningapplication.ResuffixReference(app.Reference, newType)
		if err != nil {
			return nil, newStateConflict(err.Error())
		}
		update := planningapplication.Update{
			ApplicationType: &newType,
			Reference:       &newReference,
		}
		if err := s.apps.UpdateFields(txCtx, id, update); err != nil {
			return nil, mapPgError(err)
		}
		if _, err := s.record(txCtx, id, "application_type_changed", map[string]string{
			"old_reference": app.Reference,
			"new_reference": newReference,
			"old_type":      string(app.ApplicationType),
			"new_type":      string(newType),
		}, ""); err != nil {
			return nil, mapPgError(err)
		}
		app.ApplicationType = newType
		app.Reference = newReference
		return app, nil
	})
}

// ---- determination ----

type DetermineInput struct {
	// DeterminationDate is the raw form value; must parse and be on or
	// before today.
	DeterminationDate string
}

type DetermineResult struct {
	Application *planningapplication.PlanningApplication
	AuditID     uuid.UUID
	// Warnings carries non-blocking conditions present at determination,
	// e.g. an outstanding description change request.
	Warnings []string
}

func determinationDateGuard(raw string, today time.Time) (time.Time, serrors.ValidationErrors) {
	verrs := make(serrors.ValidationErrors)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		verrs.Add("determination_date", "can't be blank")
		return time.Time{}, verrs
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		verrs.Add("determination_date", "must be a valid date")
		return time.Time{}, verrs
	}
	if date.After(time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)) {
		verrs.Add("determination_date", "must be on or before today")
		return time.Time{}, verrs
	}
	return date, nil
}

// Determine publishes the decision: terminal for the main workflow. An open
// description change request only warns, it does not block.
func (s *ApplicationService) Determine(ctx context.Context, tenantID, id uuid.UUID, in DetermineInput) (*DetermineResult, error) {
	date, verrs := determinationDateGuard(in.DeterminationDate, time.Now().UTC())
	if len(verrs) > 0 {
		return nil, verrs
	}

	result, err := inTx(ctx, tenantID, func(txCtx context.Context) (*DetermineResult, error) {
		app, err := s.apps.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return nil, mapPgError(err)
		}
		tr, ok := planningapplication.TransitionFor(app.Status, planningapplication.CommandDetermine)
		if !ok {
			if app.Status.IsTerminal() {
				return nil, terminalConflict(app.Status)
			}
			return nil, newStateConflict(fmt.Sprintf("cannot determine an application in status %q", app.Status))
		}

		latest, err := s.recs.Latest(txCtx, id)
		if errors.Is(err, recommendation.ErrNotFound) {
			return nil, newStateConflict("the recommendation has not been accepted by a reviewer")
		}
		if err != nil {
			return nil, mapPgError(err)
		}
		if !latest.Submitted || latest.ReviewedAt == nil || latest.Accepted == nil || !*latest.Accepted {
			return nil, newStateConflict("the recommendation has not been accepted by a reviewer")
		}
		decision := planningapplication.Decision(latest.Decision)
		if !decision.IsValid() {
			return nil, newStateConflict("the recommendation carries no decision")
		}

		var warnings []string
		requests, err := s.requests.ListByApplication(txCtx, id)
		if err != nil {
			return nil, mapPgError(err)
		}
		for _, req := range requests {
			if req.Kind == validationrequest.KindDescriptionChange && req.State == validationrequest.StateOpen {
				warnings = append(warnings, "there is an outstanding description change request")
				break
			}
		}

		if err := s.apps.SetDetermination(txCtx, id, decision, date); err != nil {
			return nil, mapPgError(err)
		}
		auditID, err := s.record(txCtx, id, "determined", map[string]string{
			"old_status":    string(app.Status),
			"new_status":    string(tr.To),
			"decision":      string(decision),
			"determined_at": date.Format("2006-01-02"),
		}, "Decision published")
		if err != nil {
			return nil, mapPgError(err)
		}

		app.Status = tr.To
		app.Decision = &decision
		app.DeterminedAt = &date
		return &DetermineResult{Application: app, AuditID: auditID, Warnings: warnings}, nil
	})
	if err != nil {
		return nil, err
	}
	s.bus.Publish(&events.ApplicationDetermined{Application: result.Application})
	return result, nil
}

// ---- withdraw / return / close ----

type ClosureInput struct {
	Reason  planningapplication.ClosureReason
	Comment string
	// SupportingFile optionally evidences the closure. Only PDF/JPG/PNG.
	SupportingFilename string
	SupportingContent  []byte
}

func closureGuard(in ClosureInput) serrors.ValidationErrors {
	verrs := make(serrors.ValidationErrors)
	if _, ok := in.Reason.TargetStatus(); !ok {
		verrs.Add("reason", "Please select one of the options")
	}
	if strings.TrimSpace(in.Comment) == "" {
		verrs.Add("comment", "can't be blank")
	}
	if in.SupportingFilename != "" {
		if err := document.ValidateSupportingFile(in.SupportingFilename, in.SupportingContent); err != nil {
			verrs.Add("file", err.Error())
		}
	}
	if len(verrs) > 0 {
		return verrs
	}
	return nil
}

type ClosureResult struct {
	Application *planningapplication.PlanningApplication
	AuditID     uuid.UUID
}

// WithdrawOrCancel exits the workflow without a determination. The three
// reasons map to three terminal statuses with distinct audit activity types
// but share every guard.
func (s *ApplicationService) WithdrawOrCancel(ctx context.Context, tenantID, id uuid.UUID, in ClosureInput) (*ClosureResult, error) {
	if verrs := closureGuard(in); verrs != nil {
		return nil, verrs
	}
	target, _ := in.Reason.TargetStatus()

	result, err := inTx(ctx, tenantID, func(txCtx context.Context) (*ClosureResult, error) {
		app, err := s.apps.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return nil, mapPgError(err)
		}
		if _, ok := planningapplication.TransitionFor(app.Status, in.Reason.Command()); !ok {
			return nil, terminalConflict(app.Status)
		}

		now := time.Now().UTC()
		if err := s.apps.SetClosure(txCtx, id, target, strings.TrimSpace(in.Comment), now); err != nil {
			return nil, mapPgError(err)
		}

		if in.SupportingFilename != "" {
			if _, err := s.docs.Create(txCtx, &document.Document{
				TenantID:      tenantID,
				ApplicationID: id,
				Filename:      in.SupportingFilename,
				Tag:           document.TagClosure,
				Representable: true,
			}); err != nil {
				return nil, mapPgError(err)
			}
		}

		auditID, err := s.record(txCtx, id, string(target), map[string]string{
			"old_status": string(app.Status),
			"new_status": string(target),
			"reason":     string(in.Reason),
		}, strings.TrimSpace(in.Comment))
		if err != nil {
			return nil, mapPgError(err)
		}

		comment := strings.TrimSpace(in.Comment)
		app.Status = target
		app.ClosedOrCancellationComment = &comment
		app.ClosedAt = &now
		return &ClosureResult{Application: app, AuditID: auditID}, nil
	})
	if err != nil {
		return nil, err
	}
	s.bus.Publish(&events.ApplicationClosed{Application: result.Application, Reason: in.Reason})
	return result, nil
}

// ---- clone ----

// cloneGuard is the pure precondition check for cloning.
func cloneGuard(cloningEnabled bool, app *planningapplication.PlanningApplication) *ServiceError {
	if !cloningEnabled {
		return newServiceError(http.StatusForbidden, CodeCloneUnavailable, "cloning is not enabled in this environment", nil)
	}
	if !app.Cloneable() {
		return newServiceError(http.StatusConflict, CodeCloneUnavailable,
			"this application cannot be cloned because it has no intake snapshot", nil)
	}
	return nil
}

// Clone deep-copies an intake-created application: fresh reference, copied
// audit_log snapshot, documents re-attached, workflow state reset. Any
// failure rolls the whole operation back so no partial clone exists.
func (s *ApplicationService) Clone(ctx context.Context, tenantID, sourceID uuid.UUID) (*planningapplication.PlanningApplication, error) {
	return inTx(ctx, tenantID, func(txCtx context.Context) (*planningapplication.PlanningApplication, error) {
		source, err := s.apps.GetByID(txCtx, sourceID)
		if err != nil {
			return nil, mapPgError(err)
		}
		if guardErr := cloneGuard(s.cloningEnabled, source); guardErr != nil {
			return nil, guardErr
		}

		counter, err := s.apps.NextReferenceCounter(txCtx)
		if err != nil {
			return nil, mapPgError(err)
		}
		now := time.Now().UTC()
		clone := &planningapplication.PlanningApplication{
			TenantID:        tenantID,
			Reference:       planningapplication.NewReference(now, counter, source.ApplicationType),
			ApplicationType: source.ApplicationType,
			Status:          planningapplication.StatusNotStarted,
			Description:     source.Description,
			ApplicantName:   source.ApplicantName,
			ApplicantEmail:  source.ApplicantEmail,
			PaymentAmount:   source.PaymentAmount,
			TargetDate:      source.TargetDate,
			AuditLog:        source.AuditLog,
		}
		created, err := s.apps.Create(txCtx, clone)
		if err != nil {
			return nil, mapPgError(err)
		}

		docs, err := s.docs.ListByApplication(txCtx, sourceID)
		if err != nil {
			return nil, mapPgError(err)
		}
		for _, doc := range docs {
			copied := *doc
			copied.ID = uuid.Nil
			copied.ApplicationID = created.ID
			copied.Validated = nil
			copied.InvalidatedDocumentReason = ""
			if _, err := s.docs.Create(txCtx, &copied); err != nil {
				return nil, mapPgError(err)
			}
		}

		if _, err := s.record(txCtx, created.ID, "cloned", map[string]string{
			"source_reference": source.Reference,
			"reference":        created.Reference,
		}, ""); err != nil {
			return nil, mapPgError(err)
		}
		return created, nil
	})
}
