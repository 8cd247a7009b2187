package ast

import (
	"github.com/kievzenit/minic/internal/lexer"
	"github.com/kievzenit/minic/internal/symbols"
)

type ScopeStmt struct {
	StartToken *lexer.Token

	Stmts []Stmt
}

// FuncDeclStmt is a function definition when Body is set, otherwise a
// prototype. Extern marks declarations written with the extern keyword or
// injected by an #include.
type FuncDeclStmt struct {
	StartToken *lexer.Token

	Name       string
	ReturnType *TypeNode
	Args       []FuncArg
	Variadic   bool
	Body       *ScopeStmt
	Extern     bool

	Symbol     *symbols.Symbol
	LocalCount int
}

type FuncArg struct {
	StartToken *lexer.Token

	Name string
	Type *TypeNode

	Symbol *symbols.Symbol
}

type VarDeclStmt struct {
	StartToken *lexer.Token

	Name  string
	Type  *TypeNode
	Value Expr

	Symbol *symbols.Symbol
}

type IfStmt struct {
	StartToken *lexer.Token

	Cond Expr
	Body *ScopeStmt
	Else *ScopeStmt
}

// ForStmt parts are all optional. Init is a *VarDeclStmt or an *ExprStmt.
type ForStmt struct {
	StartToken *lexer.Token

	Init Stmt
	Cond Expr
	Post Expr
	Body *ScopeStmt
}

type ExprStmt struct {
	Expr Expr
}

type ReturnStmt struct {
	StartToken *lexer.Token

	Expr Expr
}

func (s *ScopeStmt) AstNode()    {}
func (f *FuncDeclStmt) AstNode() {}
func (v *VarDeclStmt) AstNode()  {}
func (e *ExprStmt) AstNode()     {}
func (i *IfStmt) AstNode()       {}
func (f *ForStmt) AstNode()      {}
func (r *ReturnStmt) AstNode()   {}

func (s *ScopeStmt) FirstToken() *lexer.Token    { return s.StartToken }
func (f *FuncDeclStmt) FirstToken() *lexer.Token { return f.StartToken }
func (v *VarDeclStmt) FirstToken() *lexer.Token  { return v.StartToken }
func (e *ExprStmt) FirstToken() *lexer.Token     { return e.Expr.FirstToken() }
func (i *IfStmt) FirstToken() *lexer.Token       { return i.StartToken }
func (f *ForStmt) FirstToken() *lexer.Token      { return f.StartToken }
func (r *ReturnStmt) FirstToken() *lexer.Token   { return r.StartToken }

func (s *ScopeStmt) StmtNode()    {}
func (f *FuncDeclStmt) StmtNode() {}
func (v *VarDeclStmt) StmtNode()  {}
func (e *ExprStmt) StmtNode()     {}
func (i *IfStmt) StmtNode()       {}
func (f *ForStmt) StmtNode()      {}
func (r *ReturnStmt) StmtNode()   {}
