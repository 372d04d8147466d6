package validation

import (
	"fmt"
	"strings"

	"github.com/CoReason-AI/omopcloudetl-core/errors"
)

// FieldError is one failed check, addressed by its YAML path.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Report accumulates field errors across nested structures so that a
// document reports every problem at once.
type Report struct {
	fields []FieldError
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{fields: make([]FieldError, 0)}
}

// Add records a failure for field.
func (r *Report) Add(field, message string) *Report {
	r.fields = append(r.fields, FieldError{Field: field, Message: message})
	return r
}

// Require records field as missing when value is blank.
func (r *Report) Require(field, value string) *Report {
	if strings.TrimSpace(value) == "" {
		r.Add(field, "is required")
	}
	return r
}

// Merge folds err into the report under prefix. Field errors carried by a
// validation AppError keep their own paths; anything else is recorded
// against prefix.
func (r *Report) Merge(prefix string, err error) *Report {
	if err == nil {
		return r
	}
	if appErr, ok := errors.AsAppError(err); ok {
		if fields, ok := appErr.Details["fields"].([]FieldError); ok {
			for _, fe := range fields {
				r.Add(Join(prefix, fe.Field), fe.Message)
			}
			return r
		}
	}
	return r.Add(prefix, err.Error())
}

// Empty reports whether nothing failed.
func (r *Report) Empty() bool { return len(r.fields) == 0 }

// Fields returns the recorded failures in insertion order.
func (r *Report) Fields() []FieldError { return r.fields }

// Err returns an INVALID_INPUT AppError listing every failure, or nil.
func (r *Report) Err() *errors.AppError {
	if r.Empty() {
		return nil
	}
	return fieldErrorsToAppError(r.fields)
}

// Item returns the path of the i-th element of list, e.g. "steps[2]".
func Item(list string, i int) string {
	return fmt.Sprintf("%s[%d]", list, i)
}

// Join concatenates two path segments with a dot, skipping empty ones.
func Join(prefix, field string) string {
	switch {
	case prefix == "":
		return field
	case field == "":
		return prefix
	default:
		return prefix + "." + field
	}
}

func fieldErrorsToAppError(fields []FieldError) *errors.AppError {
	messages := make([]string, len(fields))
	for i, e := range fields {
		messages[i] = e.Field + ": " + e.Message
	}
	return errors.Validation(strings.Join(messages, "; ")).
		WithDetail("fields", fields)
}
