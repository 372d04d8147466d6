package sqltools

import (
	"strings"
	"unicode"
)

// SplitScript splits a multi-statement SQL script into its statements.
//
// Comments are removed, statements are split at semicolons outside quotes,
// comments and dollar-quoted blocks, each statement is trimmed and empty
// fragments are dropped. The terminating semicolon is not part of the
// statement. An empty or comment-only script yields an empty slice.
func SplitScript(script string) []string {
	statements := make([]string, 0)
	tkn := NewStringTokenizer(script)

	var cur strings.Builder
	flush := func() {
		if stmt := strings.TrimSpace(cur.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		cur.Reset()
	}

	for {
		tok := tkn.Scan()
		switch {
		case tok.Kind == TokenEOF:
			flush()
			return statements
		case tok.Kind == TokenSemicolon:
			flush()
		case tok.IsComment():
			// keep the neighbouring tokens apart
			if s := cur.String(); s != "" && !endsWithSpace(s) {
				cur.WriteByte(' ')
			}
		default:
			cur.WriteString(tok.Text)
		}
	}
}

func endsWithSpace(s string) bool {
	r := rune(s[len(s)-1])
	return unicode.IsSpace(r)
}
