package lexer

import (
	"fmt"
	"strconv"
)

type TokenKind int

const (
	EOF TokenKind = iota

	INT
	FLOAT
	STRING

	IDENT

	PLUS     // +
	MINUS    // -
	ASTERISK // *
	SLASH    // /
	PERCENT  // %

	ASSIGN // =

	EQ  // ==
	NEQ // !=
	LT  // <
	LEQ // <=
	GT  // >
	GEQ // >=

	XMARK // !

	LPAREN // (
	LBRACE // {
	RPAREN // )
	RBRACE // }

	SEMICOLON // ;
	COMMA     // ,
	ELLIPSIS  // ...

	INCLUDE // #include <header>

	INT_KW
	FLOAT_KW
	VOID_KW
	EXTERN
	IF
	ELSE
	FOR
	RETURN
)

func (tk TokenKind) String() string {
	switch tk {
	case EOF:
		return "EOF"
	case INT:
		return "INT"
	case FLOAT:
		return "FLOAT"
	case STRING:
		return "STRING"
	case IDENT:
		return "IDENT"
	case PLUS:
		return "PLUS"
	case MINUS:
		return "MINUS"
	case ASTERISK:
		return "ASTERISK"
	case SLASH:
		return "SLASH"
	case PERCENT:
		return "PERCENT"
	case ASSIGN:
		return "ASSIGN"
	case EQ:
		return "EQ"
	case NEQ:
		return "NEQ"
	case LT:
		return "LT"
	case LEQ:
		return "LEQ"
	case GT:
		return "GT"
	case GEQ:
		return "GEQ"
	case XMARK:
		return "XMARK"
	case LPAREN:
		return "LPAREN"
	case LBRACE:
		return "LBRACE"
	case RPAREN:
		return "RPAREN"
	case RBRACE:
		return "RBRACE"
	case SEMICOLON:
		return "SEMICOLON"
	case COMMA:
		return "COMMA"
	case ELLIPSIS:
		return "ELLIPSIS"
	case INCLUDE:
		return "INCLUDE"
	case INT_KW:
		return "INT_KW"
	case FLOAT_KW:
		return "FLOAT_KW"
	case VOID_KW:
		return "VOID_KW"
	case EXTERN:
		return "EXTERN"
	case IF:
		return "IF"
	case ELSE:
		return "ELSE"
	case FOR:
		return "FOR"
	case RETURN:
		return "RETURN"
	default:
		panic(fmt.Sprintf("TokenKind.String(): received illegal token kind: %d", tk))
	}
}

// IsKeyword reports whether the kind is a reserved word.
func (tk TokenKind) IsKeyword() bool {
	return tk >= INT_KW
}

// IsTypeKeyword reports whether the kind starts a type name.
func (tk TokenKind) IsTypeKeyword() bool {
	switch tk {
	case INT_KW, FLOAT_KW, VOID_KW:
		return true
	}
	return false
}

var keywords = map[string]TokenKind{
	"int":    INT_KW,
	"float":  FLOAT_KW,
	"double": FLOAT_KW,
	"void":   VOID_KW,
	"extern": EXTERN,
	"if":     IF,
	"else":   ELSE,
	"for":    FOR,
	"return": RETURN,
}

type Metadata struct {
	FileName string
	Line     int
	Column   int
	Offset   int
	Length   int
}

type Token struct {
	Kind  TokenKind
	Value string

	Metadata Metadata
}

func (t *Token) hasActualValue() bool {
	switch t.Kind {
	case INT, FLOAT, STRING, IDENT, INCLUDE:
		return true
	}

	return false
}

func (t *Token) String() string {
	if !t.hasActualValue() {
		return fmt.Sprintf("%s()", t.Kind)
	}

	return fmt.Sprintf("%s(%s)", t.Kind, t.Value)
}

// Lexeme reconstructs source text for the token. String literals come back
// quoted and escaped, includes as a directive line.
func (t *Token) Lexeme() string {
	switch t.Kind {
	case EOF:
		return ""
	case STRING:
		return strconv.Quote(t.Value)
	case INCLUDE:
		return fmt.Sprintf("#include <%s>", t.Value)
	}

	return t.Value
}
