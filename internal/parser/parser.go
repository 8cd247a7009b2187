package parser

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/kievzenit/minic/internal/ast"
	"github.com/kievzenit/minic/internal/compiler_errors"
	"github.com/kievzenit/minic/internal/lexer"
)

// bailout carries the first syntax error up to Parse.
type bailout struct {
	err *compiler_errors.Error
}

type Parser struct {
	fileName string

	scanner lexer.TokenScanner

	curr *lexer.Token
}

var bindingPowerLookup map[lexer.TokenKind]int = map[lexer.TokenKind]int{
	lexer.EQ:       10,
	lexer.NEQ:      10,
	lexer.LT:       20,
	lexer.LEQ:      20,
	lexer.GT:       20,
	lexer.GEQ:      20,
	lexer.PLUS:     30,
	lexer.MINUS:    30,
	lexer.ASTERISK: 40,
	lexer.SLASH:    40,
	lexer.PERCENT:  40,
}

func NewParser(fileName string, scanner lexer.TokenScanner) *Parser {
	return &Parser{
		fileName: fileName,
		scanner:  scanner,
		curr:     scanner.Read(),
	}
}

// Parse builds the whole program or stops at the first structurally invalid
// token. No partial tree is returned on failure.
func (p *Parser) Parse() (program *ast.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			program = nil
			err = b.err
		}
	}()

	program = &ast.Program{
		FileName: p.fileName,
		Includes: make([]*ast.Include, 0),
		Decls:    make([]*ast.FuncDeclStmt, 0),
	}

	for p.curr.Kind != lexer.EOF {
		switch p.curr.Kind {
		case lexer.INCLUDE:
			program.Includes = append(program.Includes, &ast.Include{
				StartToken: p.curr,

				Header: p.curr.Value,
			})
			p.read()
		case lexer.EXTERN:
			startToken := p.curr
			p.read()
			program.Decls = append(program.Decls, p.parseFuncDeclStmt(true, startToken))
		default:
			if !p.curr.Kind.IsTypeKeyword() {
				p.unexpected()
			}
			program.Decls = append(program.Decls, p.parseFuncDeclStmt(false, nil))
		}
	}

	return program, nil
}

func (p *Parser) parseFuncDeclStmt(extern bool, startToken *lexer.Token) *ast.FuncDeclStmt {
	if startToken == nil {
		startToken = p.curr
	}
	returnType := p.parseTypeNode()

	p.expect(lexer.IDENT)
	name := p.curr.Value
	p.read()

	p.expect(lexer.LPAREN)
	p.read()

	args, variadic := p.parseFuncArgs()

	p.expect(lexer.RPAREN)
	p.read()

	funcDeclStmt := &ast.FuncDeclStmt{
		StartToken: startToken,

		Name:       name,
		ReturnType: returnType,
		Args:       args,
		Variadic:   variadic,
		Extern:     extern,
	}

	if extern || p.curr.Kind == lexer.SEMICOLON {
		p.expect(lexer.SEMICOLON)
		p.read()
		return funcDeclStmt
	}

	for _, arg := range args {
		if arg.Name == "" {
			p.fail(compiler_errors.Newf(
				compiler_errors.SyntaxError,
				"parameter name omitted in definition of %s", name), arg.StartToken)
		}
	}
	if variadic {
		p.fail(compiler_errors.Newf(
			compiler_errors.SyntaxError,
			"variadic function %s can only be declared, not defined", name), startToken)
	}

	funcDeclStmt.Body = p.parseScopeStmt()
	return funcDeclStmt
}

func (p *Parser) parseFuncArgs() ([]ast.FuncArg, bool) {
	args := make([]ast.FuncArg, 0)

	if p.curr.Kind == lexer.VOID_KW && p.scanner.Peek().Kind == lexer.RPAREN {
		p.read()
		return args, false
	}

	for p.curr.Kind != lexer.EOF && p.curr.Kind != lexer.RPAREN {
		if p.curr.Kind == lexer.ELLIPSIS {
			p.read()
			return args, true
		}

		startToken := p.curr
		argType := p.parseTypeNode()

		argName := ""
		if p.curr.Kind == lexer.IDENT {
			argName = p.curr.Value
			p.read()
		}

		args = append(args, ast.FuncArg{
			StartToken: startToken,

			Name: argName,
			Type: argType,
		})

		if p.curr.Kind != lexer.COMMA {
			break
		}
		p.read()
		p.expectAny(lexer.INT_KW, lexer.FLOAT_KW, lexer.VOID_KW, lexer.ELLIPSIS)
	}

	return args, false
}

func (p *Parser) parseTypeNode() *ast.TypeNode {
	p.expectAny(lexer.INT_KW, lexer.FLOAT_KW, lexer.VOID_KW)
	typeNode := &ast.TypeNode{
		StartToken: p.curr,

		Name: p.curr.Value,
	}
	p.read()

	return typeNode
}

func (p *Parser) parseStmt() ast.Stmt {
	switch p.curr.Kind {
	case lexer.LBRACE:
		return p.parseScopeStmt()
	case lexer.IF:
		return p.parseIfStmt()
	case lexer.FOR:
		return p.parseForStmt()
	case lexer.RETURN:
		return p.parseReturnStmt()
	case lexer.SEMICOLON:
		p.read()
		return nil
	case lexer.INT_KW, lexer.FLOAT_KW, lexer.VOID_KW:
		varDeclStmt := p.parseVarDeclStmt()
		p.expect(lexer.SEMICOLON)
		p.read()
		return varDeclStmt
	}

	exprStmt := &ast.ExprStmt{Expr: p.parseExpr()}
	p.expect(lexer.SEMICOLON)
	p.read()

	return exprStmt
}

func (p *Parser) parseScopeStmt() *ast.ScopeStmt {
	p.expect(lexer.LBRACE)
	startToken := p.curr
	p.read()

	stmts := make([]ast.Stmt, 0)
	for p.curr.Kind != lexer.EOF && p.curr.Kind != lexer.RBRACE {
		if stmt := p.parseStmt(); stmt != nil {
			stmts = append(stmts, stmt)
		}
	}

	p.expect(lexer.RBRACE)
	p.read()

	return &ast.ScopeStmt{
		StartToken: startToken,

		Stmts: stmts,
	}
}

// parseBody parses the body of an if or for. A single statement is wrapped
// into a scope of its own.
func (p *Parser) parseBody() *ast.ScopeStmt {
	if p.curr.Kind == lexer.LBRACE {
		return p.parseScopeStmt()
	}

	startToken := p.curr
	stmts := make([]ast.Stmt, 0, 1)
	if stmt := p.parseStmt(); stmt != nil {
		stmts = append(stmts, stmt)
	}

	return &ast.ScopeStmt{
		StartToken: startToken,

		Stmts: stmts,
	}
}

func (p *Parser) parseIfStmt() *ast.IfStmt {
	p.expect(lexer.IF)
	startToken := p.curr
	p.read()

	cond := p.parseParenExpr()
	body := p.parseBody()

	if p.curr.Kind != lexer.ELSE {
		return &ast.IfStmt{
			StartToken: startToken,

			Cond: cond,
			Body: body,
			Else: nil,
		}
	}
	p.read()

	return &ast.IfStmt{
		StartToken: startToken,

		Cond: cond,
		Body: body,
		Else: p.parseBody(),
	}
}

func (p *Parser) parseForStmt() *ast.ForStmt {
	p.expect(lexer.FOR)
	startToken := p.curr
	p.read()

	p.expect(lexer.LPAREN)
	p.read()

	var init ast.Stmt
	switch {
	case p.curr.Kind == lexer.SEMICOLON:
	case p.curr.Kind.IsTypeKeyword():
		init = p.parseVarDeclStmt()
	default:
		init = &ast.ExprStmt{Expr: p.parseExpr()}
	}
	p.expect(lexer.SEMICOLON)
	p.read()

	var cond ast.Expr
	if p.curr.Kind != lexer.SEMICOLON {
		cond = p.parseExpr()
	}
	p.expect(lexer.SEMICOLON)
	p.read()

	var post ast.Expr
	if p.curr.Kind != lexer.RPAREN {
		post = p.parseExpr()
	}
	p.expect(lexer.RPAREN)
	p.read()

	body := p.parseBody()

	return &ast.ForStmt{
		StartToken: startToken,

		Init: init,
		Cond: cond,
		Post: post,
		Body: body,
	}
}

func (p *Parser) parseReturnStmt() *ast.ReturnStmt {
	p.expect(lexer.RETURN)
	startToken := p.curr
	p.read()

	if p.curr.Kind == lexer.SEMICOLON {
		p.read()
		return &ast.ReturnStmt{
			StartToken: startToken,
		}
	}

	expr := p.parseExpr()
	p.expect(lexer.SEMICOLON)
	p.read()

	return &ast.ReturnStmt{
		StartToken: startToken,

		Expr: expr,
	}
}

func (p *Parser) parseVarDeclStmt() *ast.VarDeclStmt {
	startToken := p.curr
	varType := p.parseTypeNode()

	p.expect(lexer.IDENT)
	name := p.curr.Value
	p.read()

	var value ast.Expr
	if p.curr.Kind == lexer.ASSIGN {
		p.read()
		value = p.parseExpr()
	}

	return &ast.VarDeclStmt{
		StartToken: startToken,

		Name:  name,
		Type:  varType,
		Value: value,
	}
}

func (p *Parser) parseExpr() ast.Expr {
	return p.parseAssignExpr()
}

// parseAssignExpr handles the right associative assignment level. The
// target is parsed as an ordinary operand and checked afterwards.
func (p *Parser) parseAssignExpr() ast.Expr {
	left := p.parseBinaryExpr(p.parseUnaryExpr(), 0)
	if p.curr.Kind != lexer.ASSIGN {
		return left
	}

	assignToken := p.curr
	target, ok := left.(*ast.IdentExpr)
	if !ok {
		p.fail(compiler_errors.New(compiler_errors.SyntaxError, "invalid assignment target"), assignToken)
	}
	p.read()

	return &ast.AssignExpr{
		StartToken: target.StartToken,

		Target: target,
		Value:  p.parseAssignExpr(),
	}
}

func (p *Parser) parseBinaryExpr(left ast.Expr, bindingPower int) ast.Expr {
	for {
		op := p.curr
		currentBindingPower, ok := bindingPowerLookup[op.Kind]
		if !ok || currentBindingPower < bindingPower {
			return left
		}
		p.read()

		right := p.parseBinaryExpr(p.parseUnaryExpr(), currentBindingPower+10)

		left = &ast.BinaryExpr{
			StartToken: left.FirstToken(),

			Left:  left,
			Op:    op,
			Right: right,
		}
	}
}

func (p *Parser) parseUnaryExpr() ast.Expr {
	if !p.isCurrAny(lexer.PLUS, lexer.MINUS, lexer.XMARK) {
		return p.parsePrimaryExpr()
	}

	op := p.curr
	p.read()

	if op.Kind == lexer.MINUS && p.curr.Kind == lexer.INT && p.curr.Value == minInt64Magnitude {
		p.read()
		return &ast.IntExpr{
			StartToken: op,

			Value: math.MinInt64,
		}
	}

	return &ast.UnaryExpr{
		StartToken: op,

		Op:    op,
		Right: p.parseUnaryExpr(),
	}
}

// minInt64Magnitude is the one integer literal that only fits in int64 when
// negated.
const minInt64Magnitude = "9223372036854775808"

func (p *Parser) parsePrimaryExpr() ast.Expr {
	switch p.curr.Kind {
	case lexer.LPAREN:
		return p.parseParenExpr()
	case lexer.IDENT:
		if p.scanner.Peek().Kind == lexer.LPAREN {
			return p.parseCallExpr()
		}
		return p.parseIdentExpr()
	case lexer.INT:
		return p.parseIntegerExpr()
	case lexer.FLOAT:
		return p.parseFloatExpr()
	case lexer.STRING:
		return p.parseStringExpr()
	}

	p.unexpected()
	panic("unreachable")
}

func (p *Parser) parseParenExpr() ast.Expr {
	p.expect(lexer.LPAREN)
	p.read()

	expr := p.parseExpr()

	p.expect(lexer.RPAREN)
	p.read()

	return expr
}

func (p *Parser) parseCallExpr() *ast.CallExpr {
	p.expect(lexer.IDENT)
	startToken := p.curr
	name := p.curr.Value
	p.read()

	p.expect(lexer.LPAREN)
	p.read()

	args := make([]ast.Expr, 0)
	for p.curr.Kind != lexer.EOF && p.curr.Kind != lexer.RPAREN {
		args = append(args, p.parseExpr())
		if p.curr.Kind != lexer.COMMA {
			break
		}
		p.read()
		if p.curr.Kind == lexer.RPAREN {
			p.unexpected()
		}
	}

	p.expect(lexer.RPAREN)
	p.read()

	return &ast.CallExpr{
		StartToken: startToken,

		Name: name,
		Args: args,
	}
}

func (p *Parser) parseIdentExpr() *ast.IdentExpr {
	p.expect(lexer.IDENT)

	startToken := p.curr
	ident := p.curr.Value
	p.read()

	return &ast.IdentExpr{
		StartToken: startToken,

		Value: ident,
	}
}

func (p *Parser) parseIntegerExpr() *ast.IntExpr {
	p.expect(lexer.INT)
	startToken := p.curr

	value, err := strconv.ParseInt(p.curr.Value, 10, 64)
	if err != nil {
		p.fail(compiler_errors.Newf(
			compiler_errors.SyntaxError,
			"integer literal %s out of range", p.curr.Value), startToken)
	}
	p.read()

	return &ast.IntExpr{
		StartToken: startToken,

		Value: value,
	}
}

func (p *Parser) parseFloatExpr() *ast.FloatExpr {
	p.expect(lexer.FLOAT)
	startToken := p.curr

	value, err := strconv.ParseFloat(p.curr.Value, 64)
	if err != nil {
		p.fail(compiler_errors.Newf(
			compiler_errors.SyntaxError,
			"float literal %s out of range", p.curr.Value), startToken)
	}
	p.read()

	return &ast.FloatExpr{
		StartToken: startToken,

		Value: value,
	}
}

func (p *Parser) parseStringExpr() *ast.StringExpr {
	p.expect(lexer.STRING)
	startToken := p.curr
	p.read()

	return &ast.StringExpr{
		StartToken: startToken,

		Value: startToken.Value,
	}
}

func (p *Parser) read() *lexer.Token {
	p.curr = p.scanner.Read()
	return p.curr
}

func (p *Parser) fail(err *compiler_errors.Error, at *lexer.Token) {
	panic(bailout{err: err.At(p.fileName, at.Metadata.Line, at.Metadata.Column)})
}

func (p *Parser) expect(kind lexer.TokenKind) {
	if p.curr.Kind != kind {
		p.fail(compiler_errors.Newf(
			compiler_errors.SyntaxError,
			"unexpected token: '%s', expected: '%s'", describe(p.curr), kind), p.curr)
	}
}

func (p *Parser) expectAny(kinds ...lexer.TokenKind) {
	if p.isCurrAny(kinds...) {
		return
	}

	expectedKinds := make([]string, len(kinds))
	for i, kind := range kinds {
		expectedKinds[i] = kind.String()
	}
	p.fail(compiler_errors.Newf(
		compiler_errors.SyntaxError,
		"unexpected token: '%s', expected one of: '%s'", describe(p.curr), strings.Join(expectedKinds, "', '")), p.curr)
}

func (p *Parser) isCurrAny(kinds ...lexer.TokenKind) bool {
	return slices.Contains(kinds, p.curr.Kind)
}

func (p *Parser) unexpected() {
	p.fail(compiler_errors.Newf(
		compiler_errors.SyntaxError,
		"unexpected token: '%s'", describe(p.curr)), p.curr)
}

func describe(token *lexer.Token) string {
	if token.Kind == lexer.EOF {
		return "end of input"
	}
	return fmt.Sprintf("%s %s", token.Kind, token.Lexeme())
}
