package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bops-digital/bops/modules/bops/domain/audit"
	"github.com/bops-digital/bops/modules/bops/domain/document"
	"github.com/bops-digital/bops/modules/bops/domain/events"
	"github.com/bops-digital/bops/modules/bops/domain/planningapplication"
	"github.com/bops-digital/bops/modules/bops/domain/validationrequest"
	"github.com/bops-digital/bops/pkg/eventbus"
	"github.com/bops-digital/bops/pkg/serrors"
)

// ValidationRequestService owns the request lifecycle for every kind:
// create (with kind-specific side effects on the application), edit, cancel,
// delete, respond and the list/partition queries.
type ValidationRequestService struct {
	apps     planningapplication.Repository
	requests validationrequest.Repository
	docs     document.Repository
	audits   audit.Repository
	bus      eventbus.EventBus

	responseDays int
}

func NewValidationRequestService(
	apps planningapplication.Repository,
	requests validationrequest.Repository,
	docs document.Repository,
	audits audit.Repository,
	bus eventbus.EventBus,
	responseDays int,
) *ValidationRequestService {
	return &ValidationRequestService{
		apps:         apps,
		requests:     requests,
		docs:         docs,
		audits:       audits,
		bus:          bus,
		responseDays: responseDays,
	}
}

func (s *ValidationRequestService) record(ctx context.Context, applicationID uuid.UUID, activityType string, information any, comment string) error {
	entry := actorFrom(ctx)
	entry.ApplicationID = applicationID
	entry.ActivityType = activityType
	entry.ActivityInformation = information
	entry.Comment = comment
	_, err := s.audits.Create(ctx, entry)
	return err
}

// requestTag is the "new document#2" style label used in audit rows.
func requestTag(req *validationrequest.ValidationRequest) string {
	return fmt.Sprintf("%s#%d", req.Kind.Label(), req.Sequence)
}

// ---- create ----

type CreateRequestInput struct {
	Kind    validationrequest.Kind
	Payload validationrequest.Payload
	// FeeRelated selects the fee-flavoured other_change variant.
	FeeRelated bool
}

// payloadGuard validates the kind-specific payload fields. Pure.
func payloadGuard(kind validationrequest.Kind, payload validationrequest.Payload, feeRelated bool) serrors.ValidationErrors {
	verrs := make(serrors.ValidationErrors)
	switch kind {
	case validationrequest.KindDescriptionChange:
		if strings.TrimSpace(payload.ProposedDescription) == "" {
			verrs.Add("proposed_description", "can't be blank")
		}
	case validationrequest.KindReplacementDocument:
		if payload.OldDocumentID == nil {
			verrs.Add("old_document_id", "can't be blank")
		}
	case validationrequest.KindAdditionalDocument:
		if strings.TrimSpace(payload.DocumentRequestType) == "" {
			verrs.Add("document_request_type", "can't be blank")
		}
		if strings.TrimSpace(payload.Reason) == "" {
			verrs.Add("reason", "can't be blank")
		}
	case validationrequest.KindRedLineBoundaryChange:
		if len(payload.NewGeojson) == 0 || !json.Valid(payload.NewGeojson) {
			verrs.Add("new_geojson", "must be valid GeoJSON")
		}
		if strings.TrimSpace(payload.Reason) == "" {
			verrs.Add("reason", "can't be blank")
		}
	case validationrequest.KindTimeExtension:
		if payload.ProposedTargetDate == nil {
			verrs.Add("proposed_target_date", "can't be blank")
		}
	case validationrequest.KindOtherChange:
		if strings.TrimSpace(payload.Summary) == "" {
			verrs.Add("summary", "can't be blank")
		}
		if strings.TrimSpace(payload.Suggestion) == "" {
			verrs.Add("suggestion", "can't be blank")
		}
		_ = feeRelated
	default:
		verrs.Add("kind", "is not a valid option")
	}
	if len(verrs) > 0 {
		return verrs
	}
	return nil
}

// Create registers a request against the application. Before validation the
// request stays pending; once the application is past validation it opens
// immediately as a post-validation request. Kind-specific side effects mark
// the application so the validation aggregate reflects the outstanding issue.
func (s *ValidationRequestService) Create(ctx context.Context, tenantID, applicationID uuid.UUID, in CreateRequestInput) (*validationrequest.ValidationRequest, error) {
	if verrs := payloadGuard(in.Kind, in.Payload, in.FeeRelated); verrs != nil {
		return nil, verrs
	}
	if in.FeeRelated && in.Kind != validationrequest.KindOtherChange {
		verrs := make(serrors.ValidationErrors)
		verrs.Add("fee_related", "only an other change request can be fee related")
		return nil, verrs
	}

	type created struct {
		app *planningapplication.PlanningApplication
		req *validationrequest.ValidationRequest
	}
	out, err := inTx(ctx, tenantID, func(txCtx context.Context) (created, error) {
		app, err := s.apps.GetByIDForUpdate(txCtx, applicationID)
		if err != nil {
			return created{}, mapPgError(err)
		}
		if app.Status.IsTerminal() {
			return created{}, terminalConflict(app.Status)
		}

		sequence, err := s.requests.NextSequence(txCtx, applicationID, in.Kind)
		if err != nil {
			return created{}, mapPgError(err)
		}

		req := &validationrequest.ValidationRequest{
			TenantID:       tenantID,
			ApplicationID:  applicationID,
			Kind:           in.Kind,
			State:          validationrequest.StatePending,
			FeeRelated:     in.FeeRelated,
			PostValidation: postValidation(app.Status),
			Sequence:       sequence,
			Payload:        in.Payload,
		}
		// An already-invalidated application has had its batch notification;
		// a request raised now goes straight out rather than waiting for a
		// re-invalidation that may never happen.
		if req.PostValidation || app.Status == planningapplication.StatusInvalidated {
			now := time.Now().UTC()
			req.State = validationrequest.StateOpen
			req.NotifiedAt = &now
		}

		saved, err := s.requests.Create(txCtx, req)
		if err != nil {
			return created{}, mapPgError(err)
		}

		if err := s.applyCreationSideEffects(txCtx, app, saved); err != nil {
			return created{}, err
		}

		if err := s.record(txCtx, applicationID, "validation_request_added", map[string]any{
			"request":  requestTag(saved),
			"kind":     string(saved.Kind),
			"sequence": saved.Sequence,
		}, ""); err != nil {
			return created{}, mapPgError(err)
		}
		return created{app: app, req: saved}, nil
	})
	if err != nil {
		return nil, err
	}

	// Pending requests notify in a batch when the application is
	// invalidated; a request that opened on creation notifies now.
	if out.req.State == validationrequest.StateOpen {
		s.bus.Publish(&events.RequestOpened{Application: out.app, Request: out.req})
	}
	return out.req, nil
}

func postValidation(status planningapplication.Status) bool {
	switch status {
	case planningapplication.StatusNotStarted, planningapplication.StatusInvalidated:
		return false
	}
	return true
}

// applyCreationSideEffects marks the owning application per kind: a fee
// request provisionally flags the fee invalid, an additional document request
// flags documents missing.
func (s *ValidationRequestService) applyCreationSideEffects(txCtx context.Context, app *planningapplication.PlanningApplication, req *validationrequest.ValidationRequest) error {
	var update planningapplication.Update
	switch {
	case req.FeeRelated:
		invalid := false
		ptr := &invalid
		update.ValidFee = &ptr
	case req.Kind == validationrequest.KindAdditionalDocument && !req.PostValidation:
		missing := true
		ptr := &missing
		update.DocumentsMissing = &ptr
	case req.Kind == validationrequest.KindReplacementDocument:
		return s.markDocumentInvalid(txCtx, req)
	default:
		return nil
	}
	if err := s.apps.UpdateFields(txCtx, app.ID, update); err != nil {
		return mapPgError(err)
	}
	return nil
}

// markDocumentInvalid flags the document being replaced so the validation
// screens show it as rejected while the request is outstanding.
func (s *ValidationRequestService) markDocumentInvalid(txCtx context.Context, req *validationrequest.ValidationRequest) error {
	if req.Payload.OldDocumentID == nil {
		return nil
	}
	doc, err := s.docs.GetByID(txCtx, *req.Payload.OldDocumentID)
	if err != nil {
		return mapPgError(err)
	}
	invalid := false
	doc.Validated = &invalid
	doc.InvalidatedDocumentReason = req.Payload.Reason
	if err := s.docs.Update(txCtx, doc); err != nil {
		return mapPgError(err)
	}
	return nil
}

// ---- edit ----

type EditRequestInput struct {
	Payload validationrequest.Payload
}

// Edit amends a request that hasn't been answered yet.
func (s *ValidationRequestService) Edit(ctx context.Context, tenantID, requestID uuid.UUID, in EditRequestInput) (*validationrequest.ValidationRequest, error) {
	return inTx(ctx, tenantID, func(txCtx context.Context) (*validationrequest.ValidationRequest, error) {
		req, err := s.requests.GetByIDForUpdate(txCtx, requestID)
		if err != nil {
			return nil, mapPgError(err)
		}
		if !req.Editable() {
			return nil, newStateConflict(validationrequest.ErrNotEditable.Error())
		}
		if verrs := payloadGuard(req.Kind, in.Payload, req.FeeRelated); verrs != nil {
			return nil, verrs
		}
		req.Payload = in.Payload
		if err := s.requests.Update(txCtx, req); err != nil {
			return nil, mapPgError(err)
		}
		if err := s.record(txCtx, req.ApplicationID, "validation_request_edited", map[string]string{
			"request": requestTag(req),
		}, ""); err != nil {
			return nil, mapPgError(err)
		}
		return req, nil
	})
}

// ---- cancel ----

// Cancel withdraws a pending or open request. Creation-time side effects on
// the application roll back: a cancelled fee request clears the provisional
// fee flag, a cancelled additional document request resets documents_missing
// to unknown rather than "present".
func (s *ValidationRequestService) Cancel(ctx context.Context, tenantID, requestID uuid.UUID, reason string) (*validationrequest.ValidationRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		verrs := make(serrors.ValidationErrors)
		verrs.Add("cancel_reason", "can't be blank")
		return nil, verrs
	}

	type cancelled struct {
		app *planningapplication.PlanningApplication
		req *validationrequest.ValidationRequest
	}
	out, err := inTx(ctx, tenantID, func(txCtx context.Context) (cancelled, error) {
		req, err := s.requests.GetByIDForUpdate(txCtx, requestID)
		if err != nil {
			return cancelled{}, mapPgError(err)
		}
		if err := req.MarkCancelled(reason, time.Now().UTC()); err != nil {
			return cancelled{}, newStateConflict(err.Error())
		}
		if err := s.requests.Update(txCtx, req); err != nil {
			return cancelled{}, mapPgError(err)
		}
		if err := s.rollbackCreationSideEffects(txCtx, req); err != nil {
			return cancelled{}, err
		}
		if err := s.record(txCtx, req.ApplicationID, "validation_request_cancelled", map[string]string{
			"request": requestTag(req),
		}, reason); err != nil {
			return cancelled{}, mapPgError(err)
		}
		app, err := s.apps.GetByID(txCtx, req.ApplicationID)
		if err != nil {
			return cancelled{}, mapPgError(err)
		}
		return cancelled{app: app, req: req}, nil
	})
	if err != nil {
		return nil, err
	}
	// A request cancelled before it was sent needs no retraction notice.
	if out.req.NotifiedAt != nil {
		s.bus.Publish(&events.RequestCancelled{Application: out.app, Request: out.req})
	}
	return out.req, nil
}

func (s *ValidationRequestService) rollbackCreationSideEffects(txCtx context.Context, req *validationrequest.ValidationRequest) error {
	var update planningapplication.Update
	switch {
	case req.FeeRelated:
		var cleared *bool
		update.ValidFee = &cleared
	case req.Kind == validationrequest.KindAdditionalDocument && !req.PostValidation:
		// Another outstanding missing-document request keeps the flag set.
		remaining, err := s.otherUnresolvedDocumentRequests(txCtx, req)
		if err != nil {
			return err
		}
		if remaining {
			return nil
		}
		var cleared *bool
		update.DocumentsMissing = &cleared
	case req.Kind == validationrequest.KindReplacementDocument:
		if req.Payload.OldDocumentID == nil {
			return nil
		}
		doc, err := s.docs.GetByID(txCtx, *req.Payload.OldDocumentID)
		if err != nil {
			return mapPgError(err)
		}
		doc.Validated = nil
		doc.InvalidatedDocumentReason = ""
		if err := s.docs.Update(txCtx, doc); err != nil {
			return mapPgError(err)
		}
		return nil
	default:
		return nil
	}
	if err := s.apps.UpdateFields(txCtx, req.ApplicationID, update); err != nil {
		return mapPgError(err)
	}
	return nil
}

func (s *ValidationRequestService) otherUnresolvedDocumentRequests(txCtx context.Context, req *validationrequest.ValidationRequest) (bool, error) {
	requests, err := s.requests.ListByApplication(txCtx, req.ApplicationID)
	if err != nil {
		return false, mapPgError(err)
	}
	for _, other := range requests {
		if other.ID == req.ID || other.Kind != validationrequest.KindAdditionalDocument || other.PostValidation {
			continue
		}
		if other.Unresolved() {
			return true, nil
		}
	}
	return false, nil
}

// ---- delete ----

// Delete removes a pending request outright. Once sent, a request can only
// be cancelled so the applicant-visible history stays intact.
func (s *ValidationRequestService) Delete(ctx context.Context, tenantID, requestID uuid.UUID) error {
	_, err := inTx(ctx, tenantID, func(txCtx context.Context) (struct{}, error) {
		req, err := s.requests.GetByIDForUpdate(txCtx, requestID)
		if err != nil {
			return struct{}{}, mapPgError(err)
		}
		if req.State != validationrequest.StatePending {
			return struct{}{}, newStateConflict(validationrequest.ErrNotPending.Error())
		}
		if err := s.rollbackCreationSideEffects(txCtx, req); err != nil {
			return struct{}{}, err
		}
		if err := s.requests.Delete(txCtx, requestID); err != nil {
			return struct{}{}, mapPgError(err)
		}
		if err := s.record(txCtx, req.ApplicationID, "validation_request_deleted", map[string]string{
			"request": requestTag(req),
		}, ""); err != nil {
			return struct{}{}, mapPgError(err)
		}
		return struct{}{}, nil
	})
	return err
}

// ---- respond ----

type RespondInput struct {
	Response validationrequest.Response
}

// responseGuard checks the answer against the request kind. Pure.
func responseGuard(req *validationrequest.ValidationRequest, resp validationrequest.Response) serrors.ValidationErrors {
	verrs := make(serrors.ValidationErrors)
	switch req.Kind {
	case validationrequest.KindDescriptionChange, validationrequest.KindRedLineBoundaryChange,
		validationrequest.KindTimeExtension:
		if resp.Approved == nil {
			verrs.Add("approved", "Please select one of the options")
		} else if !*resp.Approved && strings.TrimSpace(resp.RejectionReason) == "" {
			verrs.Add("rejection_reason", "can't be blank")
		}
	case validationrequest.KindReplacementDocument, validationrequest.KindAdditionalDocument:
		if resp.NewDocumentID == nil {
			verrs.Add("new_document_id", "can't be blank")
		}
	case validationrequest.KindOtherChange:
		if strings.TrimSpace(resp.Text) == "" {
			verrs.Add("response", "can't be blank")
		}
	}
	if len(verrs) > 0 {
		return verrs
	}
	return nil
}

// Respond closes an open request with the counter-party's answer and applies
// the approved change to the application. A response racing a cancel loses
// if the cancel committed first.
func (s *ValidationRequestService) Respond(ctx context.Context, tenantID, requestID uuid.UUID, in RespondInput) (*validationrequest.ValidationRequest, error) {
	type responded struct {
		app *planningapplication.PlanningApplication
		req *validationrequest.ValidationRequest
	}
	out, err := inTx(ctx, tenantID, func(txCtx context.Context) (responded, error) {
		req, err := s.requests.GetByIDForUpdate(txCtx, requestID)
		if err != nil {
			return responded{}, mapPgError(err)
		}
		if verrs := responseGuard(req, in.Response); verrs != nil {
			return responded{}, verrs
		}
		if err := req.MarkClosed(in.Response, time.Now().UTC()); err != nil {
			return responded{}, newStateConflict(err.Error())
		}
		if err := s.requests.Update(txCtx, req); err != nil {
			return responded{}, mapPgError(err)
		}
		if err := s.applyResponse(txCtx, req); err != nil {
			return responded{}, err
		}
		if err := s.record(txCtx, req.ApplicationID, "validation_request_responded", map[string]any{
			"request":  requestTag(req),
			"approved": req.Response.Approved,
		}, req.Response.Text); err != nil {
			return responded{}, mapPgError(err)
		}
		app, err := s.apps.GetByID(txCtx, req.ApplicationID)
		if err != nil {
			return responded{}, mapPgError(err)
		}
		return responded{app: app, req: req}, nil
	})
	if err != nil {
		return nil, err
	}
	s.bus.Publish(&events.RequestResponded{Application: out.app, Request: out.req})
	return out.req, nil
}

// applyResponse propagates an accepted answer onto the application.
func (s *ValidationRequestService) applyResponse(txCtx context.Context, req *validationrequest.ValidationRequest) error {
	var update planningapplication.Update
	switch req.Kind {
	case validationrequest.KindDescriptionChange:
		if req.Response.Approved == nil || !*req.Response.Approved {
			return nil
		}
		description := req.Payload.ProposedDescription
		update.Description = &description
	case validationrequest.KindTimeExtension:
		if req.Response.Approved == nil || !*req.Response.Approved || req.Payload.ProposedTargetDate == nil {
			return nil
		}
		update.TargetDate = req.Payload.ProposedTargetDate
	case validationrequest.KindAdditionalDocument:
		if req.PostValidation {
			return nil
		}
		present := false
		ptr := &present
		update.DocumentsMissing = &ptr
	case validationrequest.KindReplacementDocument:
		// Supersede the replaced document so it drops out of the working set.
		if req.Payload.OldDocumentID == nil {
			return nil
		}
		old, err := s.docs.GetByID(txCtx, *req.Payload.OldDocumentID)
		if err != nil {
			return mapPgError(err)
		}
		now := time.Now().UTC()
		old.ArchivedAt = &now
		old.ArchiveReason = "replaced via validation request"
		if err := s.docs.Update(txCtx, old); err != nil {
			return mapPgError(err)
		}
		return nil
	case validationrequest.KindOtherChange:
		if !req.FeeRelated {
			return nil
		}
		// The new payment is verified on the fee screen; the provisional
		// invalid flag clears back to unknown pending that check.
		var cleared *bool
		update.ValidFee = &cleared
	default:
		return nil
	}
	if err := s.apps.UpdateFields(txCtx, req.ApplicationID, update); err != nil {
		return mapPgError(err)
	}
	return nil
}

// ---- queries ----

type RequestList struct {
	PreValidation  []*validationrequest.ValidationRequest
	PostValidation []*validationrequest.ValidationRequest
	Unresolved     int
	Resolved       int
}

// List partitions the application's requests into pre- and post-validation
// with unresolved/resolved counts for the validation aggregate screen.
func (s *ValidationRequestService) List(ctx context.Context, tenantID, applicationID uuid.UUID) (*RequestList, error) {
	return inTx(ctx, tenantID, func(txCtx context.Context) (*RequestList, error) {
		requests, err := s.requests.ListByApplication(txCtx, applicationID)
		if err != nil {
			return nil, mapPgError(err)
		}
		list := &RequestList{}
		for _, req := range requests {
			if req.PostValidation {
				list.PostValidation = append(list.PostValidation, req)
			} else {
				list.PreValidation = append(list.PreValidation, req)
			}
			if req.Unresolved() {
				list.Unresolved++
			} else {
				list.Resolved++
			}
		}
		return list, nil
	})
}

func (s *ValidationRequestService) Get(ctx context.Context, tenantID, requestID uuid.UUID) (*validationrequest.ValidationRequest, error) {
	return inTx(ctx, tenantID, func(txCtx context.Context) (*validationrequest.ValidationRequest, error) {
		req, err := s.requests.GetByID(txCtx, requestID)
		if err != nil {
			return nil, mapPgError(err)
		}
		return req, nil
	})
}

// BlockingReasons explains why the validation decision (or recommendation
// submission) is blocked, one line per unresolved request.
func (s *ValidationRequestService) BlockingReasons(ctx context.Context, tenantID, applicationID uuid.UUID) ([]string, error) {
	return inTx(ctx, tenantID, func(txCtx context.Context) ([]string, error) {
		requests, err := s.requests.ListByApplication(txCtx, applicationID)
		if err != nil {
			return nil, mapPgError(err)
		}
		var reasons []string
		now := time.Now().UTC()
		for _, req := range requests {
			if !req.Unresolved() {
				continue
			}
			reason := fmt.Sprintf("%s is %s", requestTag(req), req.State)
			if req.Overdue(now, s.responseDays) {
				reason += " (overdue)"
			}
			reasons = append(reasons, reason)
		}
		return reasons, nil
	})
}
