package validation

import (
	"path"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/CoReason-AI/omopcloudetl-core/errors"
)

var structValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(documentKey)
	_ = v.RegisterValidation("relpath", func(fl validator.FieldLevel) bool {
		return IsRelativePath(fl.Field().String())
	})
	return v
})

// documentKey names a field the way it is spelled in YAML documents, so
// failures point at the line a user has to fix.
func documentKey(f reflect.StructField) string {
	for _, tag := range []string{"yaml", "mapstructure"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return toSnakeCase(f.Name)
}

// IsRelativePath reports whether p is a non-empty relative path that does not
// climb above its base directory.
func IsRelativePath(p string) bool {
	if strings.TrimSpace(p) == "" {
		return false
	}
	p = strings.ReplaceAll(p, "\\", "/")
	if strings.HasPrefix(p, "/") || (len(p) > 1 && p[1] == ':') {
		return false
	}
	clean := path.Clean(p)
	return clean != ".." && !strings.HasPrefix(clean, "../")
}

// Validate checks the `validate` struct tags of s. Failures come back as one
// INVALID_INPUT AppError whose "fields" detail lists every broken field.
func Validate(s any) error {
	err := structValidator().Struct(s)
	if err == nil {
		return nil
	}
	failures, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Validation("validation failed").WithCause(err)
	}

	r := NewReport()
	for _, fe := range failures {
		r.Add(fieldPath(fe), describe(fe))
	}
	return r.Err()
}

// fieldPath drops the root struct name from the namespace so nested failures
// read like "mappings[1].target_field".
func fieldPath(fe validator.FieldError) string {
	if _, rest, ok := strings.Cut(fe.Namespace(), "."); ok {
		return rest
	}
	return fe.Field()
}

var tagMessages = map[string]string{
	"required": "is required",
	"max":      "must be at most %s characters",
	"gte":      "must be greater than or equal to %s",
	"url":      "must be a valid URL",
	"oneof":    "must be one of: %s",
	"relpath":  "must be a relative path inside the workflow directory",
}

func describe(fe validator.FieldError) string {
	if fe.Tag() == "min" {
		switch fe.Kind() {
		case reflect.Slice, reflect.Map, reflect.Array:
			return "must contain at least " + fe.Param() + " item(s)"
		case reflect.String:
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	}
	msg, ok := tagMessages[fe.Tag()]
	if !ok {
		return "is invalid"
	}
	return strings.Replace(msg, "%s", fe.Param(), 1)
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if 'A' <= r && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
