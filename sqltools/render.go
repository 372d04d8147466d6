package sqltools

import (
	"fmt"
	"reflect"
	"strings"
	"text/template"

	"github.com/CoReason-AI/omopcloudetl-core/errors"
)

// reserved are names a context key must not shadow: template keywords and
// the text/template builtin functions.
var reserved = map[string]struct{}{
	"if": {}, "else": {}, "end": {}, "range": {}, "with": {}, "define": {},
	"template": {}, "block": {}, "break": {}, "continue": {}, "nil": {},
	"true": {}, "false": {},
	"and": {}, "or": {}, "not": {}, "len": {}, "index": {}, "slice": {},
	"print": {}, "printf": {}, "println": {}, "html": {}, "js": {},
	"urlquery": {}, "call": {}, "eq": {}, "ne": {}, "lt": {}, "le": {},
	"gt": {}, "ge": {},
}

// Render renders text as a template named name against ctx.
//
// Rendering is strict: a reference to a name or key that ctx does not
// define fails with a RENDER_FAILED error instead of producing an empty
// substitution.
func Render(name, text string, ctx map[string]any) (string, error) {
	if ctx == nil {
		ctx = map[string]any{}
	}

	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(contextFuncs(ctx)).
		Parse(text)
	if err != nil {
		return "", errors.RenderFailed(name, err)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, ctx); err != nil {
		return "", errors.RenderFailed(name, err)
	}
	return b.String(), nil
}

func contextFuncs(ctx map[string]any) template.FuncMap {
	funcs := make(template.FuncMap, len(ctx)+1)
	funcs["index"] = strictIndex
	for key, value := range ctx {
		if !isIdentifier(key) {
			continue
		}
		if _, ok := reserved[key]; ok {
			continue
		}
		funcs[key] = func() any { return value }
	}
	return funcs
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// strictIndex replaces the builtin index, which yields the zero value for a
// missing map key even under missingkey=error.
func strictIndex(item any, keys ...any) (any, error) {
	v := reflect.ValueOf(item)
	for _, key := range keys {
		v = indirect(v)
		if !v.IsValid() {
			return nil, fmt.Errorf("index of nil value with key %v", key)
		}
		switch v.Kind() {
		case reflect.Map:
			k, err := mapKey(v.Type().Key(), key)
			if err != nil {
				return nil, err
			}
			e := v.MapIndex(k)
			if !e.IsValid() {
				return nil, fmt.Errorf("map has no entry for key %q", fmt.Sprint(key))
			}
			v = e
		case reflect.Slice, reflect.Array, reflect.String:
			i, ok := intKey(key)
			if !ok {
				return nil, fmt.Errorf("cannot index %s with %T", v.Kind(), key)
			}
			if i < 0 || i >= v.Len() {
				return nil, fmt.Errorf("index %d out of range [0:%d]", i, v.Len())
			}
			v = v.Index(i)
		default:
			return nil, fmt.Errorf("cannot index value of type %s", v.Type())
		}
	}
	v = indirect(v)
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func mapKey(keyType reflect.Type, key any) (reflect.Value, error) {
	k := reflect.ValueOf(key)
	switch {
	case !k.IsValid():
		return reflect.Value{}, fmt.Errorf("nil map key")
	case k.Type().AssignableTo(keyType):
		return k, nil
	case k.Type().ConvertibleTo(keyType) && k.Kind() == keyType.Kind():
		return k.Convert(keyType), nil
	}
	return reflect.Value{}, fmt.Errorf("key %v of type %T does not match map key type %s", key, key, keyType)
}

func intKey(key any) (int, bool) {
	k := reflect.ValueOf(key)
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(k.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(k.Uint()), true
	}
	return 0, false
}
