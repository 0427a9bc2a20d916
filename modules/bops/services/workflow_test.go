package services

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bops-digital/bops/modules/bops/domain/document"
	"github.com/bops-digital/bops/modules/bops/domain/events"
	"github.com/bops-digital/bops/modules/bops/domain/planningapplication"
	"github.com/bops-digital/bops/modules/bops/domain/validationrequest"
)

func TestCreateRequest_OnInvalidatedApplicationOpensImmediately(t *testing.T) {
	f := newFixture()
	ctx := serviceCtx()
	tenant := uuid.New()
	app := f.seedApplication(tenant, planningapplication.StatusInvalidated)

	var opened []*events.RequestOpened
	f.bus.Subscribe(func(e *events.RequestOpened) { opened = append(opened, e) })

	req, err := f.requestSvc.Create(ctx, tenant, app.ID, CreateRequestInput{
		Kind:    validationrequest.KindDescriptionChange,
		Payload: validationrequest.Payload{ProposedDescription: "single storey rear extension"},
	})
	require.NoError(t, err)

	// The batch notification already went out with the invalidation, so a
	// late request must not sit pending waiting for another one.
	require.Equal(t, validationrequest.StateOpen, req.State)
	require.NotNil(t, req.NotifiedAt)
	require.False(t, req.PostValidation)
	require.Len(t, opened, 1)
	require.Equal(t, req.ID, opened[0].Request.ID)

	// The applicant can answer it straight away.
	approved := true
	closed, err := f.requestSvc.Respond(ctx, tenant, req.ID, RespondInput{
		Response: validationrequest.Response{Approved: &approved},
	})
	require.NoError(t, err)
	require.Equal(t, validationrequest.StateClosed, closed.State)

	// And the application can still be validated afterwards.
	validated := true
	result, err := f.applications.RecordValidationDecision(ctx, tenant, app.ID, ValidationDecisionInput{
		Validated:            &validated,
		DocumentsValidatedAt: "2026-08-01",
	})
	require.NoError(t, err)
	require.Equal(t, planningapplication.StatusInAssessment, result.Application.Status)
}

func TestInvalidate_OpensPendingRequestsAsBatch(t *testing.T) {
	f := newFixture()
	ctx := serviceCtx()
	tenant := uuid.New()
	app := f.seedApplication(tenant, planningapplication.StatusNotStarted)

	first, err := f.requestSvc.Create(ctx, tenant, app.ID, CreateRequestInput{
		Kind:    validationrequest.KindDescriptionChange,
		Payload: validationrequest.Payload{ProposedDescription: "two storey side extension"},
	})
	require.NoError(t, err)
	require.Equal(t, validationrequest.StatePending, first.State)

	second, err := f.requestSvc.Create(ctx, tenant, app.ID, CreateRequestInput{
		Kind:    validationrequest.KindOtherChange,
		Payload: validationrequest.Payload{Summary: "missing site plan scale", Suggestion: "resubmit at 1:500"},
	})
	require.NoError(t, err)
	require.Equal(t, validationrequest.StatePending, second.State)

	var batches []*events.RequestsOpened
	f.bus.Subscribe(func(e *events.RequestsOpened) { batches = append(batches, e) })

	invalid := false
	result, err := f.applications.RecordValidationDecision(ctx, tenant, app.ID, ValidationDecisionInput{Validated: &invalid})
	require.NoError(t, err)
	require.Equal(t, planningapplication.StatusInvalidated, result.Application.Status)
	require.Len(t, result.OpenedRequests, 2)

	require.Len(t, batches, 1)
	require.Len(t, batches[0].Requests, 2)

	for _, id := range []uuid.UUID{first.ID, second.ID} {
		stored, err := f.requests.GetByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, validationrequest.StateOpen, stored.State)
		require.NotNil(t, stored.NotifiedAt)
	}

	// Marking the application invalid again is a no-op fan-out: everything is
	// already open, so the state holds and nothing is re-sent.
	result, err = f.applications.RecordValidationDecision(ctx, tenant, app.ID, ValidationDecisionInput{Validated: &invalid})
	require.NoError(t, err)
	require.Equal(t, planningapplication.StatusInvalidated, result.Application.Status)
	require.Empty(t, result.OpenedRequests)
	require.Len(t, batches, 1)
}

func TestCancel_ClearsDocumentsMissingOnlyWithLastRequest(t *testing.T) {
	f := newFixture()
	ctx := serviceCtx()
	tenant := uuid.New()
	app := f.seedApplication(tenant, planningapplication.StatusNotStarted)

	payload := validationrequest.Payload{DocumentRequestType: "floor plan", Reason: "not supplied"}
	first, err := f.requestSvc.Create(ctx, tenant, app.ID, CreateRequestInput{
		Kind:    validationrequest.KindAdditionalDocument,
		Payload: payload,
	})
	require.NoError(t, err)
	second, err := f.requestSvc.Create(ctx, tenant, app.ID, CreateRequestInput{
		Kind:    validationrequest.KindAdditionalDocument,
		Payload: validationrequest.Payload{DocumentRequestType: "elevations", Reason: "not supplied"},
	})
	require.NoError(t, err)

	stored, err := f.apps.GetByID(ctx, app.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DocumentsMissing)
	require.True(t, *stored.DocumentsMissing)

	// Cancelling one of two outstanding document requests keeps the flag.
	_, err = f.requestSvc.Cancel(ctx, tenant, first.ID, "raised in error")
	require.NoError(t, err)
	stored, err = f.apps.GetByID(ctx, app.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DocumentsMissing)
	require.True(t, *stored.DocumentsMissing)

	// Cancelling the last one resets it to unknown, not to "present".
	_, err = f.requestSvc.Cancel(ctx, tenant, second.ID, "raised in error")
	require.NoError(t, err)
	stored, err = f.apps.GetByID(ctx, app.ID)
	require.NoError(t, err)
	require.Nil(t, stored.DocumentsMissing)
}

func TestCancel_FeeRequestResetsValidFeeToUnknown(t *testing.T) {
	f := newFixture()
	ctx := serviceCtx()
	tenant := uuid.New()
	app := f.seedApplication(tenant, planningapplication.StatusNotStarted)

	req, err := f.requestSvc.Create(ctx, tenant, app.ID, CreateRequestInput{
		Kind:       validationrequest.KindOtherChange,
		FeeRelated: true,
		Payload:    validationrequest.Payload{Summary: "underpaid", Suggestion: "pay the balance"},
	})
	require.NoError(t, err)

	stored, err := f.apps.GetByID(ctx, app.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ValidFee)
	require.False(t, *stored.ValidFee)

	_, err = f.requestSvc.Cancel(ctx, tenant, req.ID, "fee was correct after all")
	require.NoError(t, err)

	stored, err = f.apps.GetByID(ctx, app.ID)
	require.NoError(t, err)
	require.Nil(t, stored.ValidFee)
}

func TestGetByReference_ResolvesPublicReference(t *testing.T) {
	f := newFixture()
	ctx := serviceCtx()
	tenant := uuid.New()
	app := f.seedApplication(tenant, planningapplication.StatusNotStarted)

	found, err := f.applications.GetByReference(ctx, tenant, "  "+app.Reference+"  ")
	require.NoError(t, err)
	require.Equal(t, app.ID, found.ID)

	_, err = f.applications.GetByReference(ctx, tenant, "26-99999-LDCP")
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, http.StatusNotFound, svcErr.Status)
}

func TestClone_CopiesSnapshotAndResetsWorkflow(t *testing.T) {
	f := newFixture()
	ctx := serviceCtx()
	tenant := uuid.New()
	app := f.seedApplication(tenant, planningapplication.StatusDetermined)

	snapshot := json.RawMessage(`{"submission":{"description":"rear extension"}}`)
	f.apps.apps[app.ID].AuditLog = snapshot

	rejected := false
	_, err := f.docs.Create(ctx, &document.Document{
		TenantID:                  tenant,
		ApplicationID:             app.ID,
		Filename:                  "site-plan.pdf",
		Tag:                       document.TagApplication,
		Validated:                 &rejected,
		InvalidatedDocumentReason: "wrong scale",
		Representable:             true,
	})
	require.NoError(t, err)

	clone, err := f.applications.Clone(ctx, tenant, app.ID)
	require.NoError(t, err)

	require.NotEqual(t, app.ID, clone.ID)
	require.NotEqual(t, app.Reference, clone.Reference)
	require.Equal(t, planningapplication.StatusNotStarted, clone.Status)
	require.Equal(t, app.Description, clone.Description)
	require.Equal(t, app.ApplicantEmail, clone.ApplicantEmail)
	require.JSONEq(t, string(snapshot), string(clone.AuditLog))
	require.Nil(t, clone.Decision)
	require.Nil(t, clone.DeterminedAt)
	require.Nil(t, clone.DocumentsValidatedAt)

	docs, err := f.docs.ListByApplication(ctx, clone.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.Equal(t, "site-plan.pdf", docs[0].Filename)
	require.Nil(t, docs[0].Validated)
	require.Empty(t, docs[0].InvalidatedDocumentReason)

	require.Contains(t, f.audits.activityTypes(), "cloned")
}

func TestClone_WithoutSnapshotCreatesNothing(t *testing.T) {
	f := newFixture()
	ctx := serviceCtx()
	tenant := uuid.New()
	app := f.seedApplication(tenant, planningapplication.StatusDetermined)

	_, err := f.applications.Clone(ctx, tenant, app.ID)
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, http.StatusConflict, svcErr.Status)
	require.Equal(t, CodeCloneUnavailable, svcErr.Code)

	require.Len(t, f.apps.apps, 1)
	require.Empty(t, f.audits.inserts)
}
