package services

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bops-digital/bops/modules/bops/domain/recommendation"
	"github.com/bops-digital/bops/modules/bops/domain/validationrequest"
)

func TestSubmissionGuard_MissingDecision(t *testing.T) {
	verrs := submissionGuard(&recommendation.Recommendation{})
	require.Equal(t, "Please select one of the options", verrs["decision"].Message)
}

func TestSubmissionGuard_RefusalNeedsPublicReason(t *testing.T) {
	verrs := submissionGuard(&recommendation.Recommendation{Decision: "refused"})
	require.Equal(t, refusalReasonMessage, verrs["public_comment"].Message)

	verrs = submissionGuard(&recommendation.Recommendation{Decision: "refused", PublicComment: "   "})
	require.Equal(t, refusalReasonMessage, verrs["public_comment"].Message)

	require.Nil(t, submissionGuard(&recommendation.Recommendation{
		Decision:      "refused",
		PublicComment: "The proposal exceeds permitted development limits.",
	}))
}

func TestSubmissionGuard_GrantNeedsNoPublicComment(t *testing.T) {
	require.Nil(t, submissionGuard(&recommendation.Recommendation{Decision: "granted"}))
}

func TestOpenPostValidationRequests_BlocksSubmission(t *testing.T) {
	requests := []*validationrequest.ValidationRequest{
		{State: validationrequest.StateOpen, PostValidation: true},
		{State: validationrequest.StateOpen, PostValidation: true},
		{State: validationrequest.StateOpen},
		{State: validationrequest.StateClosed, PostValidation: true},
	}
	err := openPostValidationRequests(requests)
	require.NotNil(t, err)
	require.Equal(t, http.StatusConflict, err.Status)
	require.Equal(t, CodeOpenPostValidationRequests, err.Code)
	require.Equal(t, "this application has open non-validation requests", err.Message)
}

func TestOpenPostValidationRequests_ResolvedPass(t *testing.T) {
	requests := []*validationrequest.ValidationRequest{
		{State: validationrequest.StateClosed, PostValidation: true},
		{State: validationrequest.StateCancelled, PostValidation: true},
	}
	require.Nil(t, openPostValidationRequests(requests))
}

func TestReviewGuard(t *testing.T) {
	verrs := reviewGuard(ReviewInput{})
	require.Equal(t, "Please select one of the options", verrs["accepted"].Message)

	verrs = reviewGuard(ReviewInput{Accepted: boolPtr(false)})
	require.Equal(t, "can't be blank", verrs["reviewer_comment"].Message)

	require.Nil(t, reviewGuard(ReviewInput{Accepted: boolPtr(true)}))
	require.Nil(t, reviewGuard(ReviewInput{
		Accepted:        boolPtr(false),
		ReviewerComment: "check the site plan measurements",
	}))
}
