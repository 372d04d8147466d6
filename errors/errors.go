package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// AppError is the unified error type of the compilation pipeline.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Step is the workflow step being compiled when the error occurred.
	Step string `json:"step,omitempty"`
	// Path is the workflow-relative file involved, if any.
	Path string `json:"path,omitempty"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Step != "" || e.Path != "" {
		b.WriteString(" [")
		if e.Step != "" {
			fmt.Fprintf(&b, "step=%s", e.Step)
		}
		if e.Path != "" {
			if e.Step != "" {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "path=%s", e.Path)
		}
		b.WriteString("]")
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, " (cause: %v)", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithStep records the workflow step and returns the receiver.
func (e *AppError) WithStep(step string) *AppError {
	e.Step = step
	return e
}

// WithPath records the file path and returns the receiver.
func (e *AppError) WithPath(path string) *AppError {
	e.Path = path
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// --- Dependency errors ---

// UndefinedDependency reports a depends_on entry that names no step in the workflow.
func UndefinedDependency(step, missing string) *AppError {
	return &AppError{
		Code:    ErrCodeUndefinedDependency,
		Message: fmt.Sprintf("step %q has an undefined dependency: %q", step, missing),
		Step:    step,
		Details: map[string]any{"dependency": missing},
	}
}

// DependencyCycle reports a cycle; cycle lists the step names along it.
func DependencyCycle(cycle []string) *AppError {
	return &AppError{
		Code:    ErrCodeDependencyCycle,
		Message: fmt.Sprintf("workflow contains a dependency cycle: %s", strings.Join(cycle, " -> ")),
		Details: map[string]any{"cycle": cycle},
	}
}

// DuplicateStep reports a step name declared more than once.
func DuplicateStep(step string) *AppError {
	return &AppError{
		Code:    ErrCodeDuplicateStep,
		Message: fmt.Sprintf("step name %q is declared more than once", step),
		Step:    step,
	}
}

// --- Rendering and schema errors ---

// RenderFailed reports a template that could not be parsed or executed.
func RenderFailed(name string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeRenderFailed,
		Message: fmt.Sprintf("failed to render template %q", name),
		Path:    name,
		Cause:   cause,
	}
}

// DMLValidation reports a DML file that failed to load, render, parse or validate.
func DMLValidation(path string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeDMLValidation,
		Message: fmt.Sprintf("invalid DML definition in %s", path),
		Path:    path,
		Cause:   cause,
	}
}

// WorkflowValidation reports a workflow definition that failed to parse or validate.
func WorkflowValidation(message string) *AppError {
	return &AppError{
		Code:    ErrCodeWorkflowValidation,
		Message: message,
	}
}

// Validation creates a new AppError for struct validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidInput,
		Message: message,
	}
}

// SchemaRefNotFound reports a schema reference missing from the project schema mapping.
func SchemaRefNotFound(ref string) *AppError {
	return &AppError{
		Code:    ErrCodeSchemaRefNotFound,
		Message: fmt.Sprintf("schema reference %q not found in project config", ref),
		Details: map[string]any{"schema_ref": ref},
	}
}

// --- Collaborator errors ---

// SpecificationError reports a failure to fetch or parse a CDM specification.
func SpecificationError(message string, cause error) *AppError {
	return &AppError{
		Code:      ErrCodeSpecification,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// GeneratorError reports a failure raised by a dialect generator.
func GeneratorError(generator string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeGenerator,
		Message: fmt.Sprintf("%s generator failed", generator),
		Details: map[string]any{"generator": generator},
		Cause:   cause,
	}
}

// DiscoveryError reports a plugin that could not be resolved.
func DiscoveryError(kind, name string) *AppError {
	return &AppError{
		Code:    ErrCodeDiscovery,
		Message: fmt.Sprintf("%s %q not found", kind, name),
		Details: map[string]any{"kind": kind, "name": name},
	}
}

// --- Configuration errors ---

// ConfigurationError reports an invalid or unreadable project configuration.
func ConfigurationError(message string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeConfiguration,
		Message: message,
		Cause:   cause,
	}
}

// SecretAccess reports a secret that could not be read.
func SecretAccess(identifier string) *AppError {
	return &AppError{
		Code:    ErrCodeSecretAccess,
		Message: fmt.Sprintf("secret not found: %s", identifier),
		Details: map[string]any{"secret_id": identifier},
	}
}

// CompilationFailed wraps the failure of a single step.
func CompilationFailed(step, kind string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeCompilation,
		Message: fmt.Sprintf("failed to compile %s step %q", kind, step),
		Step:    step,
		Cause:   cause,
	}
}

// --- Inspection helpers ---

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether any AppError in err's chain carries code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}
