package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/bops-digital/bops/modules/bops/presentation/controllers/dtos"
	"github.com/bops-digital/bops/modules/bops/services"
	"github.com/bops-digital/bops/pkg/composables"
	"github.com/bops-digital/bops/pkg/configuration"
	"github.com/bops-digital/bops/pkg/serrors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report failures against the wire field name, not the Go field name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateDTO checks a decoded request body against its validate tags.
func validateDTO(body any) serrors.ValidationErrors {
	err := validate.Struct(body)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return serrors.ProcessValidatorErrors(verrs)
	}
	out := make(serrors.ValidationErrors)
	out.Add("body", "is invalid")
	return out
}

func ensureRequestID(r *http.Request) string {
	if params, ok := composables.UseParams(r.Context()); ok && params.RequestID != "" {
		return params.RequestID
	}
	conf := configuration.Use()
	v := strings.TrimSpace(r.Header.Get(conf.RequestIDHeader))
	if v != "" {
		return v
	}
	v = uuid.NewString()
	r.Header.Set(conf.RequestIDHeader, v)
	return v
}

func requireTenant(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	requestID := ensureRequestID(r)
	tenantID, err := composables.UseTenantID(r.Context())
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "BOPS_NO_TENANT", "no local authority")
		return uuid.Nil, requestID, false
	}
	return tenantID, requestID, true
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)[name])
}

func decodeJSON(body io.ReadCloser, out any) error {
	defer func() { _ = body.Close() }()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, requestID string, err error) {
	var verrs serrors.ValidationErrors
	if errors.As(err, &verrs) {
		writeValidationErrors(w, requestID, verrs)
		return
	}
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		writeAPIError(w, svcErr.Status, requestID, svcErr.Code, svcErr.Message)
		return
	}
	composables.UseLogger(r.Context()).WithError(err).Error("unhandled service error")
	writeAPIError(w, http.StatusInternalServerError, requestID, "BOPS_INTERNAL", err.Error())
}

func writeValidationErrors(w http.ResponseWriter, requestID string, verrs serrors.ValidationErrors) {
	fields := make(map[string]string, len(verrs))
	for field, fieldErr := range verrs {
		fields[field] = fieldErr.Message
	}
	writeJSON(w, http.StatusUnprocessableEntity, dtos.APIError{
		Code:    "BOPS_VALIDATION",
		Message: "validation failed",
		Fields:  fields,
		Meta:    map[string]string{"request_id": requestID},
	})
}

func writeAPIError(w http.ResponseWriter, status int, requestID, code, message string) {
	meta := map[string]string{}
	if requestID != "" {
		meta["request_id"] = requestID
	}
	writeJSON(w, status, dtos.APIError{
		Code:    code,
		Message: message,
		Meta:    meta,
	})
}

func writeJSON[T any](w http.ResponseWriter, status int, payload T) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
