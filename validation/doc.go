// Package validation validates the declarative models loaded from YAML.
//
// It supports both struct tag validation (using the validator library) and
// programmatic validation with error collection. Field names in messages
// follow the yaml tags of the validated structs, so a failure points at
// the key the user actually wrote.
//
// # Struct Tag Validation
//
//	type SourceTable struct {
//	    Table string `yaml:"table" validate:"required"`
//	}
//	err := validation.Validate(src)
//
// # Collecting Nested Failures
//
//	r := validation.NewReport()
//	r.Merge("", validation.Validate(wf))
//	for i, s := range wf.Steps {
//	    r.Merge(validation.Item("steps", i), validation.Validate(s.Spec))
//	}
//	err := r.Err()
package validation
