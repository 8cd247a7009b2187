package ast

import (
	"github.com/kievzenit/minic/internal/lexer"
	"github.com/kievzenit/minic/internal/symbols"
	"github.com/kievzenit/minic/internal/types"
)

type IntExpr struct {
	StartToken *lexer.Token
	Typed

	Value int64
}

type FloatExpr struct {
	StartToken *lexer.Token
	Typed

	Value float64
}

type StringExpr struct {
	StartToken *lexer.Token
	Typed

	Value string
}

type IdentExpr struct {
	StartToken *lexer.Token
	Typed

	Value string

	Symbol *symbols.Symbol
}

type AssignExpr struct {
	StartToken *lexer.Token
	Typed

	Target *IdentExpr
	Value  Expr
}

type CallExpr struct {
	StartToken *lexer.Token
	Typed

	Name string
	Args []Expr

	Callee *symbols.Symbol
}

type UnaryExpr struct {
	StartToken *lexer.Token
	Typed

	Op    *lexer.Token
	Right Expr
}

// BinaryExpr.OperandType is the type both operands are brought to before
// the operator applies. For comparisons it differs from the result type.
type BinaryExpr struct {
	StartToken *lexer.Token
	Typed

	Left  Expr
	Op    *lexer.Token
	Right Expr

	OperandType types.Type
}

func (e *IntExpr) AstNode()    {}
func (e *FloatExpr) AstNode()  {}
func (e *StringExpr) AstNode() {}
func (e *IdentExpr) AstNode()  {}
func (e *AssignExpr) AstNode() {}
func (e *CallExpr) AstNode()   {}
func (e *UnaryExpr) AstNode()  {}
func (e *BinaryExpr) AstNode() {}

func (e *IntExpr) FirstToken() *lexer.Token    { return e.StartToken }
func (e *FloatExpr) FirstToken() *lexer.Token  { return e.StartToken }
func (e *StringExpr) FirstToken() *lexer.Token { return e.StartToken }
func (e *IdentExpr) FirstToken() *lexer.Token  { return e.StartToken }
func (e *AssignExpr) FirstToken() *lexer.Token { return e.StartToken }
func (e *CallExpr) FirstToken() *lexer.Token   { return e.StartToken }
func (e *UnaryExpr) FirstToken() *lexer.Token  { return e.StartToken }
func (e *BinaryExpr) FirstToken() *lexer.Token { return e.StartToken }

func (e *IntExpr) ExprNode()    {}
func (e *FloatExpr) ExprNode()  {}
func (e *StringExpr) ExprNode() {}
func (e *IdentExpr) ExprNode()  {}
func (e *AssignExpr) ExprNode() {}
func (e *CallExpr) ExprNode()   {}
func (e *UnaryExpr) ExprNode()  {}
func (e *BinaryExpr) ExprNode() {}
