package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bops-digital/bops/modules/bops/domain/planningapplication"
	"github.com/bops-digital/bops/modules/bops/domain/validationrequest"
	"github.com/bops-digital/bops/pkg/serrors"
)

func boolPtr(v bool) *bool { return &v }

func TestValidationDecisionGuard_NoDecision(t *testing.T) {
	_, verrs := validationDecisionGuard(ValidationDecisionInput{})
	require.Len(t, verrs, 1)
	require.Equal(t, "Please select one of the options", verrs["validated"].Message)
}

func TestValidationDecisionGuard_ValidateNeedsDate(t *testing.T) {
	_, verrs := validationDecisionGuard(ValidationDecisionInput{Validated: boolPtr(true)})
	require.Equal(t, "can't be blank", verrs["documents_validated_at"].Message)

	_, verrs = validationDecisionGuard(ValidationDecisionInput{
		Validated:            boolPtr(true),
		DocumentsValidatedAt: "2026-02-31",
	})
	require.Equal(t, "must be a valid date", verrs["documents_validated_at"].Message)

	date, verrs := validationDecisionGuard(ValidationDecisionInput{
		Validated:            boolPtr(true),
		DocumentsValidatedAt: "2026-02-10",
	})
	require.Empty(t, verrs)
	require.Equal(t, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), date)
}

func TestValidationDecisionGuard_InvalidateNeedsNoDate(t *testing.T) {
	_, verrs := validationDecisionGuard(ValidationDecisionInput{Validated: boolPtr(false)})
	require.Empty(t, verrs)
}

func TestBlockedByOpenRequests_CountsBothBuckets(t *testing.T) {
	requests := []*validationrequest.ValidationRequest{
		{State: validationrequest.StatePending},
		{State: validationrequest.StateOpen},
		{State: validationrequest.StateClosed},
		{State: validationrequest.StateCancelled},
	}
	err := blockedByOpenRequests(requests)
	require.NotNil(t, err)
	require.Equal(t, http.StatusConflict, err.Status)
	require.Equal(t, CodeOpenRequests, err.Code)
	require.Equal(t, "this application has 2 unresolved and 2 resolved validation requests", err.Message)
}

func TestBlockedByOpenRequests_IgnoresPostValidation(t *testing.T) {
	requests := []*validationrequest.ValidationRequest{
		{State: validationrequest.StateOpen, PostValidation: true},
	}
	require.Nil(t, blockedByOpenRequests(requests))
}

func TestBlockedByOpenRequests_AllResolvedPasses(t *testing.T) {
	requests := []*validationrequest.ValidationRequest{
		{State: validationrequest.StateClosed},
		{State: validationrequest.StateCancelled},
	}
	require.Nil(t, blockedByOpenRequests(requests))
}

func TestDeterminationDateGuard(t *testing.T) {
	today := time.Date(2026, 6, 15, 14, 30, 0, 0, time.UTC)

	_, verrs := determinationDateGuard("", today)
	require.Equal(t, "can't be blank", verrs["determination_date"].Message)

	_, verrs = determinationDateGuard("15/06/2026", today)
	require.Equal(t, "must be a valid date", verrs["determination_date"].Message)

	_, verrs = determinationDateGuard("2026-06-16", today)
	require.Equal(t, "must be on or before today", verrs["determination_date"].Message)

	date, verrs := determinationDateGuard("2026-06-15", today)
	require.Empty(t, verrs)
	require.Equal(t, time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC), date)

	// Backdating is allowed.
	_, verrs = determinationDateGuard("2026-01-02", today)
	require.Empty(t, verrs)
}

func TestClosureGuard_RequiresReasonAndComment(t *testing.T) {
	verrs := closureGuard(ClosureInput{})
	require.Equal(t, "Please select one of the options", verrs["reason"].Message)
	require.Equal(t, "can't be blank", verrs["comment"].Message)

	verrs = closureGuard(ClosureInput{Reason: "bad_reason", Comment: "x"})
	require.Equal(t, "Please select one of the options", verrs["reason"].Message)

	require.Nil(t, closureGuard(ClosureInput{
		Reason:  planningapplication.ClosureWithdrawnByApplicant,
		Comment: "applicant asked to withdraw",
	}))
}

func TestClosureGuard_FileAllowList(t *testing.T) {
	verrs := closureGuard(ClosureInput{
		Reason:             planningapplication.ClosureClosedOther,
		Comment:            "duplicate submission",
		SupportingFilename: "evidence.docx",
	})
	require.Equal(t, "must be a PDF, JPG or PNG", verrs["file"].Message)

	require.Nil(t, closureGuard(ClosureInput{
		Reason:             planningapplication.ClosureClosedOther,
		Comment:            "duplicate submission",
		SupportingFilename: "evidence.pdf",
	}))
}

func TestTerminalConflict_DistinguishesDeterminedFromClosed(t *testing.T) {
	err := terminalConflict(planningapplication.StatusDetermined)
	require.Equal(t, CodeAlreadyDetermined, err.Code)
	require.Equal(t, "this application has already been determined", err.Message)

	for _, status := range []planningapplication.Status{
		planningapplication.StatusWithdrawn,
		planningapplication.StatusReturned,
		planningapplication.StatusClosed,
	} {
		err := terminalConflict(status)
		require.Equal(t, CodeAlreadyClosed, err.Code)
		require.Equal(t, "this application has already been withdrawn or cancelled", err.Message)
	}
}

func TestCloneGuard(t *testing.T) {
	withSnapshot := &planningapplication.PlanningApplication{AuditLog: []byte(`{"submission":{}}`)}
	withoutSnapshot := &planningapplication.PlanningApplication{}

	require.Nil(t, cloneGuard(true, withSnapshot))

	err := cloneGuard(false, withSnapshot)
	require.Equal(t, http.StatusForbidden, err.Status)
	require.Equal(t, CodeCloneUnavailable, err.Code)

	err = cloneGuard(true, withoutSnapshot)
	require.Equal(t, http.StatusConflict, err.Status)
	require.Equal(t, CodeCloneUnavailable, err.Code)
}

func TestBuildFieldUpdate_OneChangePerField(t *testing.T) {
	app := &planningapplication.PlanningApplication{
		Description: "rear extension",
		ValidFee:    nil,
	}
	description := "rear extension and loft conversion"
	validFee := boolPtr(true)
	update, changes := buildFieldUpdate(app, UpdateFieldsInput{
		Description: &description,
		ValidFee:    &validFee,
	})
	require.NotNil(t, update.Description)
	require.NotNil(t, update.ValidFee)
	require.Len(t, changes, 2)

	fields := []string{changes[0].Field, changes[1].Field}
	require.ElementsMatch(t, []string{"description", "valid_fee"}, fields)
	for _, change := range changes {
		if change.Field == "valid_fee" {
			require.Equal(t, "not checked", change.OldValue)
			require.Equal(t, "true", change.NewValue)
		}
	}
}

func TestUpdateFields_RejectsDirectFeeInvalidation(t *testing.T) {
	svc := &ApplicationService{}
	invalid := boolPtr(false)
	_, err := svc.UpdateFields(context.Background(), uuid.New(), uuid.New(), UpdateFieldsInput{
		ValidFee: &invalid,
	})

	var verrs serrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Equal(t, "must be marked invalid by raising a fee validation request", verrs["valid_fee"].Message)
}

func TestBuildFieldUpdate_NoopWhenUnchanged(t *testing.T) {
	app := &planningapplication.PlanningApplication{Description: "rear extension"}
	description := "rear extension"
	_, changes := buildFieldUpdate(app, UpdateFieldsInput{Description: &description})
	require.Empty(t, changes)
}
