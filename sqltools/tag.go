package sqltools

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strconv"
	"strings"

	"github.com/CoReason-AI/omopcloudetl-core/errors"
)

// QueryTagPrefix opens every query tag comment.
const QueryTagPrefix = "/* OmopCloudEtlContext: "

const queryTagSuffix = " */\n"

// ApplyQueryTag prepends a traceability comment to sql.
//
// Only scalar context values (strings, booleans and numbers) are kept, each
// stringified; keys are sorted. The SQL text itself is left untouched.
func ApplyQueryTag(sql string, ctx map[string]any) string {
	tags := make(map[string]string, len(ctx))
	for k, v := range ctx {
		if s, ok := scalarString(v); ok {
			tags[k] = s
		}
	}

	// map[string]string always encodes
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(tags)
	payload := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))

	var b strings.Builder
	b.Grow(len(QueryTagPrefix) + len(payload) + len(queryTagSuffix) + len(sql))
	b.WriteString(QueryTagPrefix)
	b.WriteString(neutralizeComments(string(payload)))
	b.WriteString(queryTagSuffix)
	b.WriteString(sql)
	return b.String()
}

// ExtractQueryTag splits a tagged statement back into its context and the
// original SQL text.
func ExtractQueryTag(tagged string) (map[string]string, string, error) {
	if !strings.HasPrefix(tagged, QueryTagPrefix) {
		return nil, "", errors.Validation("statement does not start with a query tag")
	}
	rest := tagged[len(QueryTagPrefix):]
	end := strings.Index(rest, queryTagSuffix)
	if end < 0 {
		return nil, "", errors.Validation("query tag is not terminated")
	}

	var tags map[string]string
	if err := json.Unmarshal([]byte(rest[:end]), &tags); err != nil {
		return nil, "", errors.Validation("query tag payload is not valid JSON").WithCause(err)
	}
	return tags, rest[end+len(queryTagSuffix):], nil
}

// neutralizeComments rewrites every "*" as the JSON escape \u002a. A "*"
// can only occur inside a JSON string, so the payload stays valid and can
// neither close the tag nor open a nested comment.
func neutralizeComments(s string) string {
	return strings.ReplaceAll(s, "*", `\u002a`)
}

func scalarString(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), true
	default:
		return "", false
	}
}
