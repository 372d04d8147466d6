package logger

// Field keys shared by every component.
const (
	FieldComponent   = "component"
	FieldExecutionID = "execution_id"
	FieldWorkflow    = "workflow"
	FieldStep        = "step"
	FieldStepType    = "step_type"
	FieldFile        = "file"
	FieldCDMVersion  = "cdm_version"
	FieldDialect     = "dialect"
	FieldStatements  = "statements"
	FieldError       = "error"
	FieldDuration    = "duration_ms"
)

// Fields builds a field map from alternating key-value pairs. Pairs with a
// non-string key and a trailing odd value are dropped.
//
//	log.Info("step compiled", logger.Fields(logger.FieldStep, "load", logger.FieldStatements, 2))
func Fields(kvs ...any) map[string]any {
	m := make(map[string]any, len(kvs)/2)
	for i := 0; i+1 < len(kvs); i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}
