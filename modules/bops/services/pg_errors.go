package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bops-digital/bops/modules/bops/domain/appeal"
	"github.com/bops-digital/bops/modules/bops/domain/planningapplication"
	"github.com/bops-digital/bops/modules/bops/domain/recommendation"
	"github.com/bops-digital/bops/modules/bops/domain/validationrequest"
)

// mapPgError translates storage failures into the service taxonomy. Guard
// failures pass through untouched; everything else surfaces as a
// persistence-level error with the underlying message preserved.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}

	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}

	switch {
	case errors.Is(err, planningapplication.ErrNotFound):
		return newNotFound("planning application not found")
	case errors.Is(err, validationrequest.ErrNotFound):
		return newNotFound("validation request not found")
	case errors.Is(err, recommendation.ErrNotFound):
		return newNotFound("recommendation not found")
	case errors.Is(err, appeal.ErrNotFound):
		return newNotFound("appeal not found")
	case errors.Is(err, pgx.ErrNoRows):
		return newNotFound("not found")
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		if pgErr.ConstraintName == "planning_applications_tenant_id_reference_key" {
			return newServiceError(http.StatusConflict, CodeStateConflict, "reference already exists", err)
		}
		return newServiceError(http.StatusConflict, CodeStateConflict, "unique constraint violated", err)
	case "23503": // foreign_key_violation
		return newServiceError(http.StatusUnprocessableEntity, CodeInvalidBody, "referenced record not found", err)
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return newServiceError(http.StatusConflict, CodeStateConflict, "concurrent update, retry the request", err)
	default:
		return newServiceError(http.StatusInternalServerError, CodeInternal, fmt.Sprintf("database error (%s): %s", pgErr.Code, pgErr.Message), err)
	}
}
