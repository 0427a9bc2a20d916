package services

import (
	"fmt"
	"net/http"
)

// Guard-failure and conflict codes returned by the workflow services. Field
// level input problems use serrors.ValidationErrors instead; these cover the
// transition-level taxonomy.
const (
	CodeNotFound                   = "BOPS_NOT_FOUND"
	CodeStateConflict              = "BOPS_STATE_CONFLICT"
	CodeAlreadyDetermined          = "BOPS_ALREADY_DETERMINED"
	CodeAlreadyClosed              = "BOPS_ALREADY_CLOSED"
	CodeOpenRequests               = "BOPS_OPEN_REQUESTS"
	CodeOpenPostValidationRequests = "BOPS_OPEN_POST_VALIDATION_REQUESTS"
	CodeDraftRecommendation        = "BOPS_DRAFT_RECOMMENDATION"
	CodeCloneUnavailable           = "BOPS_CLONE_UNAVAILABLE"
	CodeInvalidBody                = "BOPS_INVALID_BODY"
	CodeInternal                   = "BOPS_INTERNAL"
)

type ServiceError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func newServiceError(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

func newStateConflict(message string) *ServiceError {
	return newServiceError(http.StatusConflict, CodeStateConflict, message, nil)
}

func newNotFound(message string) *ServiceError {
	return newServiceError(http.StatusNotFound, CodeNotFound, message, nil)
}
