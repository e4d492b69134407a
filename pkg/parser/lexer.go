package parser

import (
	"strings"

	"github.com/leapstack-labs/sqlgate/pkg/token"
)

// Lexer tokenizes SQL input.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	l.col++
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	return l.peekAt(1)
}

func (l *Lexer) peekAt(n int) byte {
	i := l.pos + n
	if i >= len(l.input) {
		return 0
	}
	return l.input[i]
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// currentPos returns the current position.
func (l *Lexer) currentPos() token.Position {
	return token.Position{
		Line:   l.line,
		Column: l.col,
		Offset: l.pos,
	}
}

// errUnterminatedComment is the literal of the ILLEGAL token for a block
// comment that runs to the end of the input.
const errUnterminatedComment = "unterminated block comment"

// NextToken returns the next token. Lexical errors surface as ILLEGAL
// tokens whose literal describes the problem.
func (l *Lexer) NextToken() token.Token {
	if msg, ok := l.skipWhitespaceAndComments(); !ok {
		return token.Token{Type: token.ILLEGAL, Literal: msg, Pos: l.currentPos(), End: len(l.input)}
	}

	pos := l.currentPos()
	tok := l.scan()
	tok.Pos = pos
	tok.End = l.pos
	return tok
}

func (l *Lexer) scan() token.Token {
	if l.atEOF() {
		return token.Token{Type: token.EOF}
	}

	ch := l.ch
	switch ch {
	case '\'':
		return l.readString(false)
	case '"':
		return l.readQuotedIdentifier()
	case '$':
		if isDigit(l.peekChar()) {
			l.readChar()
			start := l.pos
			for isDigit(l.ch) {
				l.readChar()
			}
			return token.Token{Type: token.PARAM, Literal: "$" + l.input[start:l.pos]}
		}
		return l.readDollarString()
	case '?':
		l.readChar()
		return token.Token{Type: token.PARAM, Literal: "?"}
	case ':':
		if l.peekChar() == ':' {
			return l.op(token.DCOLON, 2)
		}
		if isIdentStart(l.peekChar()) {
			l.readChar()
			start := l.pos
			for isIdentPart(l.ch) {
				l.readChar()
			}
			return token.Token{Type: token.PARAM, Literal: ":" + l.input[start:l.pos]}
		}
		return l.op(token.ILLEGAL, 1)
	case ';':
		return l.op(token.SEMICOLON, 1)
	case ',':
		return l.op(token.COMMA, 1)
	case '(':
		return l.op(token.LPAREN, 1)
	case ')':
		return l.op(token.RPAREN, 1)
	case '[':
		return l.op(token.LBRACKET, 1)
	case ']':
		return l.op(token.RBRACKET, 1)
	case '+':
		return l.op(token.PLUS, 1)
	case '*':
		return l.op(token.STAR, 1)
	case '/':
		return l.op(token.SLASH, 1)
	case '%':
		return l.op(token.PERCENT, 1)
	case '=':
		return l.op(token.EQ, 1)
	case '.':
		if isDigit(l.peekChar()) {
			return l.readNumber()
		}
		return l.op(token.DOT, 1)
	case '-':
		switch {
		case l.peekChar() == '>' && l.peekAt(2) == '>':
			return l.op(token.OP, 3)
		case l.peekChar() == '>':
			return l.op(token.OP, 2)
		}
		return l.op(token.MINUS, 1)
	case '<':
		switch l.peekChar() {
		case '=':
			return l.op(token.LE, 2)
		case '>':
			return l.op(token.NE, 2)
		case '@', '<':
			return l.op(token.OP, 2)
		}
		return l.op(token.LT, 1)
	case '>':
		switch l.peekChar() {
		case '=':
			return l.op(token.GE, 2)
		case '>':
			return l.op(token.OP, 2)
		}
		return l.op(token.GT, 1)
	case '!':
		switch {
		case l.peekChar() == '=':
			return l.op(token.NE, 2)
		case l.peekChar() == '~' && l.peekAt(2) == '*':
			return l.op(token.OP, 3)
		case l.peekChar() == '~':
			return l.op(token.OP, 2)
		}
		return l.op(token.ILLEGAL, 1)
	case '|':
		if l.peekChar() == '|' {
			return l.op(token.DPIPE, 2)
		}
		return l.op(token.OP, 1)
	case '~':
		if l.peekChar() == '*' {
			return l.op(token.OP, 2)
		}
		return l.op(token.OP, 1)
	case '#':
		switch {
		case l.peekChar() == '>' && l.peekAt(2) == '>':
			return l.op(token.OP, 3)
		case l.peekChar() == '>':
			return l.op(token.OP, 2)
		}
		return l.op(token.OP, 1)
	case '@':
		if l.peekChar() == '>' {
			return l.op(token.OP, 2)
		}
		return l.op(token.OP, 1)
	case '&':
		if l.peekChar() == '&' {
			return l.op(token.OP, 2)
		}
		return l.op(token.OP, 1)
	case '^':
		return l.op(token.OP, 1)
	}

	if (ch == 'e' || ch == 'E') && l.peekChar() == '\'' {
		l.readChar()
		return l.readString(true)
	}
	if isIdentStart(ch) {
		lit := l.readIdentifier()
		return token.Token{Type: token.LookupIdent(strings.ToLower(lit)), Literal: lit}
	}
	if isDigit(ch) {
		return l.readNumber()
	}
	return l.op(token.ILLEGAL, 1)
}

// op consumes n bytes and returns them as a token of type t.
func (l *Lexer) op(t token.TokenType, n int) token.Token {
	start := l.pos
	for i := 0; i < n; i++ {
		l.readChar()
	}
	return token.Token{Type: t, Literal: l.input[start:l.pos]}
}

// skipWhitespaceAndComments skips whitespace and comments. It reports false
// when a block comment is not terminated.
func (l *Lexer) skipWhitespaceAndComments() (string, bool) {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f' {
			l.readChar()
		}

		if l.ch == '-' && l.peekChar() == '-' {
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			if !l.skipBlockComment() {
				return errUnterminatedComment, false
			}
			continue
		}

		return "", true
	}
}

// skipBlockComment skips a block comment. Block comments nest.
func (l *Lexer) skipBlockComment() bool {
	depth := 0
	for !l.atEOF() {
		switch {
		case l.ch == '/' && l.peekChar() == '*':
			depth++
			l.readChar()
		case l.ch == '*' && l.peekChar() == '/':
			depth--
			l.readChar()
			if depth == 0 {
				l.readChar()
				return true
			}
		}
		l.readChar()
	}
	return false
}

// readString reads a single-quoted string literal.
// Handles doubled single quotes as escape: 'it''s' -> it's.
// With backslash escapes enabled (E'...') a backslash protects the next byte.
func (l *Lexer) readString(backslash bool) token.Token {
	l.readChar() // skip opening quote

	var result strings.Builder
	for {
		if l.atEOF() {
			return token.Token{Type: token.ILLEGAL, Literal: "unterminated string literal"}
		}
		if backslash && l.ch == '\\' {
			l.readChar()
			if l.atEOF() {
				continue
			}
			result.WriteByte(l.ch)
			l.readChar()
			continue
		}
		if l.ch == '\'' {
			if l.peekChar() == '\'' {
				result.WriteByte('\'')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			return token.Token{Type: token.STRING, Literal: result.String()}
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
}

// readDollarString reads $$...$$ or $tag$...$tag$.
func (l *Lexer) readDollarString() token.Token {
	start := l.pos
	l.readChar() // skip '$'
	for isIdentPart(l.ch) && l.ch != '$' {
		l.readChar()
	}
	if l.ch != '$' {
		return token.Token{Type: token.ILLEGAL, Literal: l.input[start:l.pos]}
	}
	l.readChar()
	delim := l.input[start:l.pos]

	end := strings.Index(l.input[l.pos:], delim)
	if end < 0 {
		for !l.atEOF() {
			l.readChar()
		}
		return token.Token{Type: token.ILLEGAL, Literal: "unterminated dollar-quoted string"}
	}
	bodyStart := l.pos
	for l.pos < bodyStart+end+len(delim) {
		l.readChar()
	}
	return token.Token{Type: token.STRING, Literal: l.input[bodyStart : bodyStart+end]}
}

// readQuotedIdentifier reads a double-quoted identifier.
// Handles doubled double quotes as escape: "col""name" -> col"name
func (l *Lexer) readQuotedIdentifier() token.Token {
	l.readChar() // skip opening quote

	var result strings.Builder
	for {
		if l.atEOF() {
			return token.Token{Type: token.ILLEGAL, Literal: "unterminated quoted identifier"}
		}
		if l.ch == '"' {
			if l.peekChar() == '"' {
				result.WriteByte('"')
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar()
			return token.Token{Type: token.IDENT, Literal: result.String(), Quoted: true}
		}
		result.WriteByte(l.ch)
		l.readChar()
	}
}

// readIdentifier reads an unquoted identifier.
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isIdentPart(l.ch) && !l.atEOF() {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal (integer, decimal, or scientific).
func (l *Lexer) readNumber() token.Token {
	start := l.pos

	for isDigit(l.ch) {
		l.readChar()
	}

	if l.ch == '.' && l.peekChar() != '.' {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	// Exponent (1e10, 1E-5)
	if (l.ch == 'e' || l.ch == 'E') && (isDigit(l.peekChar()) ||
		((l.peekChar() == '+' || l.peekChar() == '-') && isDigit(l.peekAt(2)))) {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	return token.Token{Type: token.NUMBER, Literal: l.input[start:l.pos]}
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= 0x80
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '$'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// Tokenize returns all tokens from the input, ending with EOF or the first
// ILLEGAL token.
func Tokenize(input string) []token.Token {
	l := NewLexer(input)
	var tokens []token.Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == token.EOF || tok.Type == token.ILLEGAL {
			break
		}
	}
	return tokens
}
