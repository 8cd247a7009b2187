package ast

import (
	"github.com/kievzenit/minic/internal/lexer"
	"github.com/kievzenit/minic/internal/types"
)

type AstNode interface {
	AstNode()
	FirstToken() *lexer.Token
}

// Program is the root of a translation unit. Decls keeps source order and
// holds definitions, prototypes and externs alike.
type Program struct {
	FileName string

	Includes []*Include
	Decls    []*FuncDeclStmt
}

type Include struct {
	StartToken *lexer.Token

	Header string
}

type Stmt interface {
	AstNode
	StmtNode()
}

type Expr interface {
	AstNode
	ExprNode()
	ExprType() types.Type
	SetExprType(typ types.Type)
}

// Typed carries the type written onto an expression by semantic analysis.
// It is nil until then.
type Typed struct {
	Type types.Type
}

func (t *Typed) ExprType() types.Type       { return t.Type }
func (t *Typed) SetExprType(typ types.Type) { t.Type = typ }

func (i *Include) AstNode() {}
func (i *Include) FirstToken() *lexer.Token {
	return i.StartToken
}

// Functions returns the declarations that carry a body.
func (p *Program) Functions() []*FuncDeclStmt {
	functions := make([]*FuncDeclStmt, 0, len(p.Decls))
	for _, decl := range p.Decls {
		if decl.Body != nil {
			functions = append(functions, decl)
		}
	}
	return functions
}
