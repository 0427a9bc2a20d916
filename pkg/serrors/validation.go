package serrors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError is a validation failure scoped to a single input field. Messages
// are the public-facing text rendered inline next to the offending form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func NewFieldError(field, message string) *FieldError {
	return &FieldError{Field: field, Message: message}
}

func NewFieldRequiredError(field string) *FieldError {
	return &FieldError{Field: field, Message: "can't be blank"}
}

// ValidationErrors maps field name to its failure. A transition guarded by
// input validation returns the whole map so every bad field surfaces at once.
type ValidationErrors map[string]*FieldError

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, v[field].Error())
	}
	return strings.Join(parts, "; ")
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = NewFieldError(field, message)
}

// ProcessValidatorErrors converts go-playground validator failures into
// field-scoped errors keyed by struct field name.
func ProcessValidatorErrors(errs validator.ValidationErrors) ValidationErrors {
	out := make(ValidationErrors, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			out[fe.Field()] = NewFieldRequiredError(fe.Field())
		case "max":
			out[fe.Field()] = NewFieldError(fe.Field(), fmt.Sprintf("must be at most %s characters", fe.Param()))
		case "oneof":
			out[fe.Field()] = NewFieldError(fe.Field(), "is not a valid option")
		default:
			out[fe.Field()] = NewFieldError(fe.Field(), "is invalid")
		}
	}
	return out
}
