package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bops-digital/bops/modules/bops/domain/planningapplication"
	"github.com/bops-digital/bops/modules/bops/domain/validationrequest"
)

func TestPayloadGuard_DescriptionChange(t *testing.T) {
	verrs := payloadGuard(validationrequest.KindDescriptionChange, validationrequest.Payload{}, false)
	require.Equal(t, "can't be blank", verrs["proposed_description"].Message)

	require.Nil(t, payloadGuard(validationrequest.KindDescriptionChange, validationrequest.Payload{
		ProposedDescription: "single storey rear extension",
	}, false))
}

func TestPayloadGuard_ReplacementDocument(t *testing.T) {
	verrs := payloadGuard(validationrequest.KindReplacementDocument, validationrequest.Payload{}, false)
	require.Equal(t, "can't be blank", verrs["old_document_id"].Message)

	oldID := uuid.New()
	require.Nil(t, payloadGuard(validationrequest.KindReplacementDocument, validationrequest.Payload{
		OldDocumentID: &oldID,
	}, false))
}

func TestPayloadGuard_AdditionalDocument(t *testing.T) {
	verrs := payloadGuard(validationrequest.KindAdditionalDocument, validationrequest.Payload{}, false)
	require.Equal(t, "can't be blank", verrs["document_request_type"].Message)
	require.Equal(t, "can't be blank", verrs["reason"].Message)

	require.Nil(t, payloadGuard(validationrequest.KindAdditionalDocument, validationrequest.Payload{
		DocumentRequestType: "floor_plan",
		Reason:              "the submitted plan is unreadable",
	}, false))
}

func TestPayloadGuard_RedLineBoundaryChange(t *testing.T) {
	verrs := payloadGuard(validationrequest.KindRedLineBoundaryChange, validationrequest.Payload{
		NewGeojson: []byte("{not json"),
		Reason:     "boundary excludes the garage",
	}, false)
	require.Equal(t, "must be valid GeoJSON", verrs["new_geojson"].Message)

	verrs = payloadGuard(validationrequest.KindRedLineBoundaryChange, validationrequest.Payload{}, false)
	require.Equal(t, "must be valid GeoJSON", verrs["new_geojson"].Message)
	require.Equal(t, "can't be blank", verrs["reason"].Message)

	require.Nil(t, payloadGuard(validationrequest.KindRedLineBoundaryChange, validationrequest.Payload{
		NewGeojson: []byte(`{"type":"Polygon","coordinates":[]}`),
		Reason:     "boundary excludes the garage",
	}, false))
}

func TestPayloadGuard_TimeExtension(t *testing.T) {
	verrs := payloadGuard(validationrequest.KindTimeExtension, validationrequest.Payload{}, false)
	require.Equal(t, "can't be blank", verrs["proposed_target_date"].Message)

	proposed := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	require.Nil(t, payloadGuard(validationrequest.KindTimeExtension, validationrequest.Payload{
		ProposedTargetDate: &proposed,
	}, false))
}

func TestPayloadGuard_OtherChange(t *testing.T) {
	verrs := payloadGuard(validationrequest.KindOtherChange, validationrequest.Payload{}, true)
	require.Equal(t, "can't be blank", verrs["summary"].Message)
	require.Equal(t, "can't be blank", verrs["suggestion"].Message)

	require.Nil(t, payloadGuard(validationrequest.KindOtherChange, validationrequest.Payload{
		Summary:    "fee underpaid",
		Suggestion: "pay the outstanding balance",
	}, true))
}

func TestPayloadGuard_UnknownKind(t *testing.T) {
	verrs := payloadGuard(validationrequest.Kind("telepathy"), validationrequest.Payload{}, false)
	require.Equal(t, "is not a valid option", verrs["kind"].Message)
}

func TestResponseGuard_ApprovalKinds(t *testing.T) {
	for _, kind := range []validationrequest.Kind{
		validationrequest.KindDescriptionChange,
		validationrequest.KindRedLineBoundaryChange,
		validationrequest.KindTimeExtension,
	} {
		req := &validationrequest.ValidationRequest{Kind: kind}

		verrs := responseGuard(req, validationrequest.Response{})
		require.Equal(t, "Please select one of the options", verrs["approved"].Message)

		verrs = responseGuard(req, validationrequest.Response{Approved: boolPtr(false)})
		require.Equal(t, "can't be blank", verrs["rejection_reason"].Message)

		require.Nil(t, responseGuard(req, validationrequest.Response{Approved: boolPtr(true)}))
		require.Nil(t, responseGuard(req, validationrequest.Response{
			Approved:        boolPtr(false),
			RejectionReason: "the proposed wording changes the development",
		}))
	}
}

func TestResponseGuard_DocumentKinds(t *testing.T) {
	for _, kind := range []validationrequest.Kind{
		validationrequest.KindReplacementDocument,
		validationrequest.KindAdditionalDocument,
	} {
		req := &validationrequest.ValidationRequest{Kind: kind}

		verrs := responseGuard(req, validationrequest.Response{})
		require.Equal(t, "can't be blank", verrs["new_document_id"].Message)

		newID := uuid.New()
		require.Nil(t, responseGuard(req, validationrequest.Response{NewDocumentID: &newID}))
	}
}

func TestResponseGuard_OtherChange(t *testing.T) {
	req := &validationrequest.ValidationRequest{Kind: validationrequest.KindOtherChange}

	verrs := responseGuard(req, validationrequest.Response{Text: "  "})
	require.Equal(t, "can't be blank", verrs["response"].Message)

	require.Nil(t, responseGuard(req, validationrequest.Response{Text: "updated payment reference attached"}))
}

func TestPostValidation(t *testing.T) {
	require.False(t, postValidation(planningapplication.StatusNotStarted))
	require.False(t, postValidation(planningapplication.StatusInvalidated))

	for _, status := range []planningapplication.Status{
		planningapplication.StatusInAssessment,
		planningapplication.StatusAwaitingDetermination,
		planningapplication.StatusAwaitingCorrection,
	} {
		require.True(t, postValidation(status), string(status))
	}
}

func TestRequestTag(t *testing.T) {
	req := &validationrequest.ValidationRequest{
		Kind:     validationrequest.KindAdditionalDocument,
		Sequence: 2,
	}
	require.Equal(t, "new document#2", requestTag(req))
}
