package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Dependency errors
const (
	// ErrCodeUndefinedDependency indicates a depends_on entry names no step.
	ErrCodeUndefinedDependency ErrorCode = "UNDEFINED_DEPENDENCY"
	// ErrCodeDependencyCycle indicates the step graph contains a cycle.
	ErrCodeDependencyCycle ErrorCode = "DEPENDENCY_CYCLE"
	// ErrCodeDuplicateStep indicates two steps share a name.
	ErrCodeDuplicateStep ErrorCode = "DUPLICATE_STEP"
)

// Rendering and declarative schema errors
const (
	// ErrCodeRenderFailed indicates a template could not be rendered.
	ErrCodeRenderFailed ErrorCode = "RENDER_FAILED"
	// ErrCodeDMLValidation indicates a DML file failed to parse or validate.
	ErrCodeDMLValidation ErrorCode = "DML_VALIDATION"
	// ErrCodeWorkflowValidation indicates a workflow file failed to parse or validate.
	ErrCodeWorkflowValidation ErrorCode = "WORKFLOW_VALIDATION"
	// ErrCodeInvalidInput indicates a struct failed tag validation.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Reference errors
const (
	// ErrCodeSchemaRefNotFound indicates a schema reference is absent from the schema mapping.
	ErrCodeSchemaRefNotFound ErrorCode = "SCHEMA_REF_NOT_FOUND"
)

// Collaborator errors
const (
	// ErrCodeSpecification indicates the CDM specification could not be fetched or parsed.
	ErrCodeSpecification ErrorCode = "SPECIFICATION_ERROR"
	// ErrCodeGenerator indicates a dialect generator failed.
	ErrCodeGenerator ErrorCode = "GENERATOR_ERROR"
	// ErrCodeDiscovery indicates a plugin could not be resolved.
	ErrCodeDiscovery ErrorCode = "DISCOVERY_ERROR"
)

// Configuration errors
const (
	// ErrCodeConfiguration indicates the project configuration is invalid.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	// ErrCodeSecretAccess indicates a secret could not be read.
	ErrCodeSecretAccess ErrorCode = "SECRET_ACCESS"
)

// Compilation errors
const (
	// ErrCodeCompilation wraps any failure while compiling a single step.
	ErrCodeCompilation ErrorCode = "COMPILATION_FAILED"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeSpecification: true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
