package lexer

import (
	"fmt"
	"iter"
	"strings"

	"github.com/kievzenit/minic/internal/compiler_errors"
)

func newUnexpectedError(unexpected byte) *compiler_errors.Error {
	return compiler_errors.Newf(
		compiler_errors.LexError,
		"unexpected character: %q", string(unexpected))
}

func newExpectedError(expected string) *compiler_errors.Error {
	return compiler_errors.Newf(
		compiler_errors.LexError,
		"expected %s", expected)
}

// Lexer turns source bytes into tokens one at a time. A Lexer holds no state
// beyond its cursor, so lexing the same buffer twice yields the same tokens.
type Lexer struct {
	fileName string
	buf      []byte
	pos      int

	line, col int
}

func NewLexer(fileName string, buf []byte) *Lexer {
	return &Lexer{
		fileName: fileName,
		buf:      buf,
		pos:      0,

		line: 1,
		col:  1,
	}
}

// Tokens lexes the buffer from the beginning every time the sequence is
// ranged over. Iteration stops after EOF or after the first error.
func (l *Lexer) Tokens() iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		fresh := NewLexer(l.fileName, l.buf)
		for {
			token, err := fresh.Next()
			if err != nil {
				yield(Token{}, err)
				return
			}

			if !yield(token, nil) || token.Kind == EOF {
				return
			}
		}
	}
}

// Tokenize collects every token up to and including EOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	tokens := make([]Token, 0)
	for token, err := range l.Tokens() {
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// Next returns the next token. Once EOF has been returned every further call
// returns EOF again.
func (l *Lexer) Next() (Token, error) {
	if err := l.skipTrivia(); err != nil {
		return Token{}, err
	}

	if !l.hasChars() {
		return l.token(EOF, EOF.String(), l.mark()), nil
	}

	start := l.mark()
	switch {
	case l.isCurrDigit():
		return l.processNumber(start)
	case l.isCurrIdentifier():
		return l.processIdentifier(start), nil
	case l.read() == '"':
		return l.processStringLiteral(start)
	case l.read() == '#':
		return l.processDirective(start)
	case l.read() == '.':
		return l.processDot(start)
	case l.isCurrPunctuation():
		return l.processPunctuation(start), nil
	}

	return Token{}, l.errorAt(newUnexpectedError(l.read()), start)
}

type mark struct {
	pos, line, col int
}

func (l *Lexer) mark() mark {
	return mark{pos: l.pos, line: l.line, col: l.col}
}

func (l *Lexer) token(kind TokenKind, value string, start mark) Token {
	return Token{
		Kind:  kind,
		Value: value,
		Metadata: Metadata{
			FileName: l.fileName,
			Line:     start.line,
			Column:   start.col,
			Offset:   start.pos,
			Length:   l.pos - start.pos,
		},
	}
}

func (l *Lexer) errorAt(err *compiler_errors.Error, at mark) *compiler_errors.Error {
	return err.At(l.fileName, at.line, at.col)
}

func (l *Lexer) skipTrivia() error {
	for l.hasChars() {
		switch {
		case l.isCurrSkippable():
			l.advance()
		case l.read() == '/' && l.peek() == '/':
			for l.hasChars() && l.read() != '\n' {
				l.advance()
			}
		case l.read() == '/' && l.peek() == '*':
			start := l.mark()
			l.advance()
			l.advance()
			closed := false
			for l.hasChars() {
				if l.read() == '*' && l.peek() == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				return l.errorAt(newExpectedError("'*/' to close block comment"), start)
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *Lexer) isCurrIdentifier() bool {
	return (l.read() >= 'a' && l.read() <= 'z') || (l.read() >= 'A' && l.read() <= 'Z') || l.read() == '_'
}

func (l *Lexer) isCurrDigit() bool {
	return isDigit(l.read())
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (l *Lexer) isCurrPunctuation() bool {
	switch l.read() {
	case '+', '-', '*', '/', '%', '=', '!', '<', '>', '(', ')', '{', '}', ';', ',':
		return true
	}
	return false
}

func (l *Lexer) isCurrSkippable() bool {
	switch l.read() {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}

	return false
}

func (l *Lexer) processIdentifier(start mark) Token {
	for l.hasChars() && (l.isCurrIdentifier() || l.isCurrDigit()) {
		l.advance()
	}
	identifier := string(l.buf[start.pos:l.pos])

	if kind, ok := keywords[identifier]; ok {
		return l.token(kind, identifier, start)
	}

	return l.token(IDENT, identifier, start)
}

// processNumber only checks lexical shape; range checking happens in the parser.
func (l *Lexer) processNumber(start mark) (Token, error) {
	isFloat := false
	for l.hasChars() && l.isCurrDigit() {
		l.advance()
	}

	if l.hasChars() && l.read() == '.' && isDigit(l.peek()) {
		isFloat = true
		l.advance()
		for l.hasChars() && l.isCurrDigit() {
			l.advance()
		}
	}

	if l.hasChars() && (l.read() == 'e' || l.read() == 'E') {
		isFloat = true
		l.advance()
		if l.hasChars() && (l.read() == '+' || l.read() == '-') {
			l.advance()
		}
		if !l.hasChars() || !l.isCurrDigit() {
			return Token{}, l.errorAt(newExpectedError("digits in exponent"), start)
		}
		for l.hasChars() && l.isCurrDigit() {
			l.advance()
		}
	}

	if l.hasChars() && l.isCurrIdentifier() {
		return Token{}, l.errorAt(newUnexpectedError(l.read()), l.mark())
	}

	number := string(l.buf[start.pos:l.pos])
	if isFloat {
		return l.token(FLOAT, number, start), nil
	}

	return l.token(INT, number, start), nil
}

func (l *Lexer) processStringLiteral(start mark) (Token, error) {
	l.advance()

	var sb strings.Builder
	for l.hasChars() {
		switch l.read() {
		case '"':
			l.advance()
			return l.token(STRING, sb.String(), start), nil
		case '\n':
			return Token{}, l.errorAt(newExpectedError("'\"' to close string literal"), start)
		case '\\':
			l.advance()
			if !l.hasChars() {
				return Token{}, l.errorAt(newExpectedError("'\"' to close string literal"), start)
			}
			escaped, ok := unescape(l.read())
			if !ok {
				return Token{}, l.errorAt(
					compiler_errors.Newf(compiler_errors.LexError, "unknown escape sequence: '\\%c'", l.read()),
					l.mark())
			}
			sb.WriteByte(escaped)
			l.advance()
		default:
			sb.WriteByte(l.read())
			l.advance()
		}
	}

	return Token{}, l.errorAt(newExpectedError("'\"' to close string literal"), start)
}

func unescape(c byte) (byte, bool) {
	switch c {
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case '0':
		return 0, true
	case '\\':
		return '\\', true
	case '"':
		return '"', true
	case '\'':
		return '\'', true
	}
	return 0, false
}

// processDirective recognises `#include <name>` and `#include "name"`. Any
// other directive is rejected; there is no preprocessor.
func (l *Lexer) processDirective(start mark) (Token, error) {
	l.advance()
	for l.hasChars() && (l.read() == ' ' || l.read() == '\t') {
		l.advance()
	}

	nameStart := l.pos
	for l.hasChars() && l.isCurrIdentifier() {
		l.advance()
	}
	if string(l.buf[nameStart:l.pos]) != "include" {
		return Token{}, l.errorAt(
			compiler_errors.Newf(compiler_errors.LexError, "unsupported directive: #%s", string(l.buf[nameStart:l.pos])),
			start)
	}

	for l.hasChars() && (l.read() == ' ' || l.read() == '\t') {
		l.advance()
	}

	if !l.hasChars() || (l.read() != '<' && l.read() != '"') {
		return Token{}, l.errorAt(newExpectedError("'<' or '\"' after #include"), start)
	}
	closing := byte('>')
	if l.read() == '"' {
		closing = '"'
	}
	l.advance()

	headerStart := l.pos
	for l.hasChars() && l.read() != closing && l.read() != '\n' {
		l.advance()
	}
	if !l.hasChars() || l.read() != closing {
		return Token{}, l.errorAt(newExpectedError(fmt.Sprintf("'%c' to close #include", closing)), start)
	}
	header := string(l.buf[headerStart:l.pos])
	l.advance()

	return l.token(INCLUDE, header, start), nil
}

func (l *Lexer) processDot(start mark) (Token, error) {
	if l.peek() == '.' && l.peekAt(2) == '.' {
		l.advance()
		l.advance()
		l.advance()
		return l.token(ELLIPSIS, "...", start), nil
	}

	return Token{}, l.errorAt(newUnexpectedError('.'), start)
}

// processTwoChar emits the two character operator when the next byte is
// second, otherwise the single character one.
func (l *Lexer) processTwoChar(start mark, second byte, double, single TokenKind) Token {
	l.advance()
	if l.hasChars() && l.read() == second {
		l.advance()
		return l.token(double, string(l.buf[start.pos:l.pos]), start)
	}

	return l.token(single, string(l.buf[start.pos:l.pos]), start)
}

func (l *Lexer) processSingle(start mark, kind TokenKind) Token {
	l.advance()
	return l.token(kind, string(l.buf[start.pos:l.pos]), start)
}

func (l *Lexer) processPunctuation(start mark) Token {
	switch l.read() {
	case '+':
		return l.processSingle(start, PLUS)
	case '-':
		return l.processSingle(start, MINUS)
	case '*':
		return l.processSingle(start, ASTERISK)
	case '/':
		return l.processSingle(start, SLASH)
	case '%':
		return l.processSingle(start, PERCENT)
	case '=':
		return l.processTwoChar(start, '=', EQ, ASSIGN)
	case '!':
		return l.processTwoChar(start, '=', NEQ, XMARK)
	case '<':
		return l.processTwoChar(start, '=', LEQ, LT)
	case '>':
		return l.processTwoChar(start, '=', GEQ, GT)
	case '(':
		return l.processSingle(start, LPAREN)
	case ')':
		return l.processSingle(start, RPAREN)
	case '{':
		return l.processSingle(start, LBRACE)
	case '}':
		return l.processSingle(start, RBRACE)
	case ';':
		return l.processSingle(start, SEMICOLON)
	case ',':
		return l.processSingle(start, COMMA)
	}

	panic("unreachable")
}

func (l *Lexer) hasChars() bool {
	return l.pos < len(l.buf)
}

func (l *Lexer) advance() {
	if l.buf[l.pos] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.pos++
}

func (l *Lexer) read() byte { return l.buf[l.pos] }
func (l *Lexer) peek() byte { return l.peekAt(1) }

func (l *Lexer) peekAt(offset int) byte {
	if l.pos+offset >= len(l.buf) {
		return 0
	}
	return l.buf[l.pos+offset]
}
