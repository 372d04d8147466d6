package sqltools

// TokenKind classifies a token produced by the Tokenizer.
type TokenKind int

const (
	// TokenEOF marks the end of input.
	TokenEOF TokenKind = iota
	// TokenText is any run of SQL outside quotes and comments.
	TokenText
	// TokenString is a single-quoted string literal.
	TokenString
	// TokenQuotedIdent is a double-quoted or backtick-quoted identifier.
	TokenQuotedIdent
	// TokenDollarQuoted is a $$...$$ or $tag$...$tag$ block.
	TokenDollarQuoted
	// TokenLineComment is a -- comment, without its terminating newline.
	TokenLineComment
	// TokenBlockComment is a /* ... */ comment.
	TokenBlockComment
	// TokenSemicolon is a statement terminator.
	TokenSemicolon
)

func (k TokenKind) String() string {
	switch k {
	case TokenEOF:
		return "EOF"
	case TokenText:
		return "text"
	case TokenString:
		return "string"
	case TokenQuotedIdent:
		return "quoted_ident"
	case TokenDollarQuoted:
		return "dollar_quoted"
	case TokenLineComment:
		return "line_comment"
	case TokenBlockComment:
		return "block_comment"
	case TokenSemicolon:
		return "semicolon"
	default:
		return "unknown"
	}
}

// Token is a slice of the input with its kind. Text is the raw source,
// quotes and comment markers included.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
	// Unterminated is set when a quote or block comment runs to end of input.
	Unterminated bool
}

// IsComment reports whether the token is a line or block comment.
func (t Token) IsComment() bool {
	return t.Kind == TokenLineComment || t.Kind == TokenBlockComment
}

// Tokenizer splits a SQL script into the tokens needed to find statement
// boundaries. It does not parse SQL; everything that is not a quote, a
// comment or a semicolon is returned as TokenText.
type Tokenizer struct {
	buf []byte
	pos int
}

// NewStringTokenizer creates a new Tokenizer for the sql string.
func NewStringTokenizer(sql string) *Tokenizer {
	return &Tokenizer{buf: []byte(sql)}
}

// Position returns the byte offset of the next token.
func (tkn *Tokenizer) Position() int {
	return tkn.pos
}

// Scan returns the next token, or a TokenEOF token once input is exhausted.
func (tkn *Tokenizer) Scan() Token {
	start := tkn.pos
	if start >= len(tkn.buf) {
		return Token{Kind: TokenEOF, Pos: start}
	}

	switch ch := tkn.buf[start]; {
	case ch == ';':
		tkn.pos++
		return tkn.token(TokenSemicolon, start, false)
	case ch == '\'':
		return tkn.scanQuoted(start, '\'', TokenString, true)
	case ch == '"':
		return tkn.scanQuoted(start, '"', TokenQuotedIdent, false)
	case ch == '`':
		return tkn.scanQuoted(start, '`', TokenQuotedIdent, false)
	case ch == '-' && tkn.peek(1) == '-':
		return tkn.scanLineComment(start)
	case ch == '/' && tkn.peek(1) == '*':
		return tkn.scanBlockComment(start)
	case ch == '$':
		if tag, ok := tkn.dollarTag(start); ok {
			return tkn.scanDollarQuoted(start, tag)
		}
	}
	return tkn.scanText(start)
}

// All returns every token up to, but excluding, TokenEOF.
func (tkn *Tokenizer) All() []Token {
	var tokens []Token
	for {
		t := tkn.Scan()
		if t.Kind == TokenEOF {
			return tokens
		}
		tokens = append(tokens, t)
	}
}

func (tkn *Tokenizer) token(kind TokenKind, start int, unterminated bool) Token {
	return Token{Kind: kind, Text: string(tkn.buf[start:tkn.pos]), Pos: start, Unterminated: unterminated}
}

func (tkn *Tokenizer) peek(offset int) byte {
	if i := tkn.pos + offset; i < len(tkn.buf) {
		return tkn.buf[i]
	}
	return 0
}

// scanText consumes bytes until something that starts another token kind.
func (tkn *Tokenizer) scanText(start int) Token {
	tkn.pos++
	for tkn.pos < len(tkn.buf) {
		ch := tkn.buf[tkn.pos]
		if ch == ';' || ch == '\'' || ch == '"' || ch == '`' {
			break
		}
		if ch == '-' && tkn.peek(1) == '-' {
			break
		}
		if ch == '/' && tkn.peek(1) == '*' {
			break
		}
		if ch == '$' {
			if _, ok := tkn.dollarTag(tkn.pos); ok {
				break
			}
		}
		tkn.pos++
	}
	return tkn.token(TokenText, start, false)
}

// scanQuoted consumes a quoted literal. A doubled quote character stands for
// itself; when backslash is set a backslash escapes the next byte.
func (tkn *Tokenizer) scanQuoted(start int, quote byte, kind TokenKind, backslash bool) Token {
	tkn.pos++
	for tkn.pos < len(tkn.buf) {
		ch := tkn.buf[tkn.pos]
		switch {
		case backslash && ch == '\\':
			tkn.pos += 2
		case ch == quote:
			if tkn.peek(1) == quote {
				tkn.pos += 2
				continue
			}
			tkn.pos++
			return tkn.token(kind, start, false)
		default:
			tkn.pos++
		}
	}
	tkn.pos = len(tkn.buf)
	return tkn.token(kind, start, true)
}

func (tkn *Tokenizer) scanLineComment(start int) Token {
	tkn.pos += 2
	for tkn.pos < len(tkn.buf) && tkn.buf[tkn.pos] != '\n' {
		tkn.pos++
	}
	return tkn.token(TokenLineComment, start, false)
}

// scanBlockComment honours nested /* */ pairs as PostgreSQL and the SQL
// standard do.
func (tkn *Tokenizer) scanBlockComment(start int) Token {
	tkn.pos += 2
	depth := 1
	for tkn.pos < len(tkn.buf) {
		switch {
		case tkn.buf[tkn.pos] == '/' && tkn.peek(1) == '*':
			depth++
			tkn.pos += 2
		case tkn.buf[tkn.pos] == '*' && tkn.peek(1) == '/':
			tkn.pos += 2
			if depth--; depth == 0 {
				return tkn.token(TokenBlockComment, start, false)
			}
		default:
			tkn.pos++
		}
	}
	return tkn.token(TokenBlockComment, start, true)
}

// dollarTag reports whether a dollar-quote opener ($$ or $tag$) starts at i
// and returns the full opener. Positional parameters such as $1 and dollar
// signs inside identifiers are not openers.
func (tkn *Tokenizer) dollarTag(i int) (string, bool) {
	if i > 0 && isIdentByte(tkn.buf[i-1]) {
		return "", false
	}
	j := i + 1
	for j < len(tkn.buf) && tkn.buf[j] != '$' {
		ch := tkn.buf[j]
		if !isIdentByte(ch) || (j == i+1 && isDigit(ch)) {
			return "", false
		}
		j++
	}
	if j >= len(tkn.buf) {
		return "", false
	}
	return string(tkn.buf[i : j+1]), true
}

func (tkn *Tokenizer) scanDollarQuoted(start int, tag string) Token {
	tkn.pos = start + len(tag)
	for tkn.pos < len(tkn.buf) {
		if tkn.buf[tkn.pos] == '$' && hasPrefixAt(tkn.buf, tkn.pos, tag) {
			tkn.pos += len(tag)
			return tkn.token(TokenDollarQuoted, start, false)
		}
		tkn.pos++
	}
	return tkn.token(TokenDollarQuoted, start, true)
}

func hasPrefixAt(buf []byte, i int, prefix string) bool {
	if len(buf)-i < len(prefix) {
		return false
	}
	return string(buf[i:i+len(prefix)]) == prefix
}

func isIdentByte(ch byte) bool {
	return ch == '_' || isDigit(ch) || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= 0x80
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
