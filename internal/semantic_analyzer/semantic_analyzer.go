package semantic_analyzer

import (
	"errors"
	"fmt"

	"github.com/kievzenit/minic/internal/ast"
	"github.com/kievzenit/minic/internal/compiler_errors"
	"github.com/kievzenit/minic/internal/headers"
	"github.com/kievzenit/minic/internal/lexer"
	"github.com/kievzenit/minic/internal/symbols"
	"github.com/kievzenit/minic/internal/types"
)

// bailout carries the first semantic error up to Analyze.
type bailout struct {
	err *compiler_errors.Error
}

type SemanticAnalyzer struct {
	program  *ast.Program
	headers  *headers.Registry
	resolver *TypeResolver

	symbols     *symbols.SymbolTable
	currentFunc *types.FunctionType
}

func NewSemanticAnalyzer(program *ast.Program, registry *headers.Registry) *SemanticAnalyzer {
	return &SemanticAnalyzer{
		program:  program,
		headers:  registry,
		resolver: NewTypeResolver(),

		symbols: symbols.NewSymbolTable(),
	}
}

// Analyze resolves every name and writes types onto the tree. On success the
// returned table holds the global frame with every function and extern.
func (sa *SemanticAnalyzer) Analyze() (table *symbols.SymbolTable, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			table = nil
			err = b.err
		}
	}()

	sa.scanProgramForFunctions()

	for _, funcDeclStmt := range sa.program.Decls {
		if funcDeclStmt.Body != nil {
			sa.analyzeFuncDeclStmt(funcDeclStmt)
		}
	}

	return sa.symbols, nil
}

func (sa *SemanticAnalyzer) scanProgramForFunctions() {
	for _, include := range sa.program.Includes {
		prototypes, _ := sa.headers.Lookup(include.Header)
		for _, prototype := range prototypes {
			if _, err := sa.symbols.DeclareFunction(prototype, false); err != nil {
				sa.failWith(err, include.StartToken)
			}
		}
	}

	for _, funcDeclStmt := range sa.program.Decls {
		functionType, ok := sa.resolver.FunctionType(funcDeclStmt)
		if !ok {
			sa.fail(compiler_errors.TypeMismatch, funcDeclStmt.StartToken,
				"function %s uses an unknown type", funcDeclStmt.Name)
		}

		for i, arg := range functionType.Args {
			if types.IsVoid(arg.Type) {
				sa.fail(compiler_errors.TypeMismatch, funcDeclStmt.Args[i].StartToken,
					"parameter %d of %s cannot be of type void", i+1, funcDeclStmt.Name)
			}
		}

		if funcDeclStmt.Name == "main" && funcDeclStmt.Body != nil {
			if !functionType.ReturnType.SameAs(types.Int64) || functionType.Arity() != 0 || functionType.Variadic {
				sa.fail(compiler_errors.TypeMismatch, funcDeclStmt.StartToken,
					"main must return int and take no parameters, got %s", functionType.Type())
			}
		}

		symbol, err := sa.symbols.DeclareFunction(functionType, funcDeclStmt.Body != nil)
		if err != nil {
			sa.failWith(err, funcDeclStmt.StartToken)
		}
		funcDeclStmt.Symbol = symbol
	}
}

func (sa *SemanticAnalyzer) analyzeFuncDeclStmt(funcDeclStmt *ast.FuncDeclStmt) {
	functionType := funcDeclStmt.Symbol.Type.(*types.FunctionType)
	sa.currentFunc = functionType
	defer func() { sa.currentFunc = nil }()

	sa.symbols.EnterFunction()
	defer func() { funcDeclStmt.LocalCount = sa.symbols.ExitFunction() }()

	for i := range funcDeclStmt.Args {
		arg := &funcDeclStmt.Args[i]
		symbol, err := sa.symbols.DeclareParam(arg.Name, functionType.Args[i].Type)
		if err != nil {
			sa.failWith(err, arg.StartToken)
		}
		arg.Symbol = symbol
	}

	// parameters and top level body statements share one scope
	for _, stmt := range funcDeclStmt.Body.Stmts {
		sa.analyzeStmt(stmt)
	}
}

func (sa *SemanticAnalyzer) enterScope() {
	sa.symbols.EnterScope()
}

func (sa *SemanticAnalyzer) exitScope() {
	sa.symbols.ExitScope()
}

func (sa *SemanticAnalyzer) analyzeStmt(stmt ast.Stmt) {
	switch stmt := stmt.(type) {
	case *ast.ScopeStmt:
		sa.analyzeScopeStmt(stmt)
	case *ast.VarDeclStmt:
		sa.analyzeVarDeclStmt(stmt)
	case *ast.ExprStmt:
		sa.analyzeExprStmt(stmt)
	case *ast.IfStmt:
		sa.analyzeIfStmt(stmt)
	case *ast.ForStmt:
		sa.analyzeForStmt(stmt)
	case *ast.ReturnStmt:
		sa.analyzeReturnStmt(stmt)
	default:
		sa.fail(compiler_errors.InternalError, stmt.FirstToken(), "unexpected statement %T", stmt)
	}
}

func (sa *SemanticAnalyzer) analyzeScopeStmt(scopeStmt *ast.ScopeStmt) {
	sa.enterScope()
	defer sa.exitScope()

	for _, stmt := range scopeStmt.Stmts {
		sa.analyzeStmt(stmt)
	}
}

func (sa *SemanticAnalyzer) analyzeVarDeclStmt(varDeclStmt *ast.VarDeclStmt) {
	varType, ok := sa.resolver.GetType(varDeclStmt.Type)
	if !ok {
		sa.fail(compiler_errors.TypeMismatch, varDeclStmt.Type.StartToken,
			"unknown type %s", varDeclStmt.Type.TypeName())
	}
	if types.IsVoid(varType) {
		sa.fail(compiler_errors.TypeMismatch, varDeclStmt.StartToken,
			"variable %s cannot be of type void", varDeclStmt.Name)
	}

	// the initializer is checked before the name exists, so it cannot refer
	// to the variable being declared
	if varDeclStmt.Value != nil {
		valueType := sa.analyzeValueExpr(varDeclStmt.Value)
		if !types.Assignable(valueType, varType) {
			sa.fail(compiler_errors.TypeMismatch, varDeclStmt.Value.FirstToken(),
				"cannot initialize %s variable %s with %s value",
				varType.Type(), varDeclStmt.Name, valueType.Type())
		}
	}

	symbol, err := sa.symbols.Declare(varDeclStmt.Name, varType)
	if err != nil {
		sa.failWith(err, varDeclStmt.StartToken)
	}
	varDeclStmt.Symbol = symbol
}

func (sa *SemanticAnalyzer) analyzeExprStmt(exprStmt *ast.ExprStmt) {
	exprType := sa.analyzeExpr(exprStmt.Expr)
	if exprType.SameAs(types.String) {
		sa.failStringLiteral(exprStmt.Expr)
	}
}

func (sa *SemanticAnalyzer) analyzeIfStmt(ifStmt *ast.IfStmt) {
	sa.analyzeCondition(ifStmt.Cond)
	sa.analyzeScopeStmt(ifStmt.Body)
	if ifStmt.Else != nil {
		sa.analyzeScopeStmt(ifStmt.Else)
	}
}

// analyzeForStmt declares the init variable in the enclosing scope; only the
// body gets a scope of its own.
func (sa *SemanticAnalyzer) analyzeForStmt(forStmt *ast.ForStmt) {
	if forStmt.Init != nil {
		sa.analyzeStmt(forStmt.Init)
	}
	if forStmt.Cond != nil {
		sa.analyzeCondition(forStmt.Cond)
	}
	if forStmt.Post != nil {
		sa.analyzeExprStmt(&ast.ExprStmt{Expr: forStmt.Post})
	}
	sa.analyzeScopeStmt(forStmt.Body)
}

func (sa *SemanticAnalyzer) analyzeReturnStmt(returnStmt *ast.ReturnStmt) {
	returnType := sa.currentFunc.ReturnType

	if types.IsVoid(returnType) {
		if returnStmt.Expr != nil {
			sa.fail(compiler_errors.TypeMismatch, returnStmt.StartToken,
				"void function %s cannot return a value", sa.currentFunc.Name)
		}
		return
	}

	if returnStmt.Expr == nil {
		sa.fail(compiler_errors.TypeMismatch, returnStmt.StartToken,
			"function %s must return a %s value", sa.currentFunc.Name, returnType.Type())
	}

	valueType := sa.analyzeValueExpr(returnStmt.Expr)
	if !types.Assignable(valueType, returnType) {
		sa.fail(compiler_errors.TypeMismatch, returnStmt.Expr.FirstToken(),
			"cannot return %s value from function %s returning %s",
			valueType.Type(), sa.currentFunc.Name, returnType.Type())
	}
}

func (sa *SemanticAnalyzer) analyzeCondition(cond ast.Expr) {
	sa.analyzeNumericExpr(cond)
}

// analyzeExpr types expr and everything below it. Void and string results
// are allowed here; callers that need a value narrow that down.
func (sa *SemanticAnalyzer) analyzeExpr(expr ast.Expr) types.Type {
	var exprType types.Type

	switch expr := expr.(type) {
	case *ast.IntExpr:
		exprType = types.Int64
	case *ast.FloatExpr:
		exprType = types.Float64
	case *ast.StringExpr:
		exprType = types.String
	case *ast.IdentExpr:
		exprType = sa.analyzeIdentExpr(expr)
	case *ast.AssignExpr:
		exprType = sa.analyzeAssignExpr(expr)
	case *ast.CallExpr:
		exprType = sa.analyzeCallExpr(expr)
	case *ast.UnaryExpr:
		exprType = sa.analyzeUnaryExpr(expr)
	case *ast.BinaryExpr:
		exprType = sa.analyzeBinaryExpr(expr)
	default:
		sa.fail(compiler_errors.InternalError, expr.FirstToken(), "unexpected expression %T", expr)
	}

	expr.SetExprType(exprType)
	return exprType
}

// analyzeArgExpr rejects void calls used as values. String literals pass.
func (sa *SemanticAnalyzer) analyzeArgExpr(expr ast.Expr) types.Type {
	exprType := sa.analyzeExpr(expr)
	if types.IsVoid(exprType) {
		sa.fail(compiler_errors.VoidValueUsed, expr.FirstToken(),
			"void value of %s used as a value", describeExpr(expr))
	}
	return exprType
}

// analyzeValueExpr is analyzeArgExpr for places a string cannot go.
func (sa *SemanticAnalyzer) analyzeValueExpr(expr ast.Expr) types.Type {
	exprType := sa.analyzeArgExpr(expr)
	if exprType.SameAs(types.String) {
		sa.failStringLiteral(expr)
	}
	return exprType
}

func (sa *SemanticAnalyzer) analyzeNumericExpr(expr ast.Expr) types.Type {
	exprType := sa.analyzeValueExpr(expr)
	if !exprType.IsNumeric() {
		sa.fail(compiler_errors.TypeMismatch, expr.FirstToken(),
			"expected a numeric value, got %s", exprType.Type())
	}
	return exprType
}

func (sa *SemanticAnalyzer) analyzeIdentExpr(identExpr *ast.IdentExpr) types.Type {
	symbol := sa.resolveVariable(identExpr.Value, identExpr.StartToken)
	identExpr.Symbol = symbol
	return symbol.Type
}

func (sa *SemanticAnalyzer) analyzeAssignExpr(assignExpr *ast.AssignExpr) types.Type {
	target := assignExpr.Target
	symbol := sa.resolveVariable(target.Value, target.StartToken)
	target.Symbol = symbol
	target.SetExprType(symbol.Type)

	valueType := sa.analyzeValueExpr(assignExpr.Value)
	if !types.Assignable(valueType, symbol.Type) {
		sa.fail(compiler_errors.TypeMismatch, assignExpr.Value.FirstToken(),
			"cannot assign %s value to %s variable %s",
			valueType.Type(), symbol.Type.Type(), symbol.Name)
	}

	return symbol.Type
}

func (sa *SemanticAnalyzer) resolveVariable(name string, at *lexer.Token) *symbols.Symbol {
	symbol, err := sa.symbols.Resolve(name)
	if err != nil {
		sa.failWith(err, at)
	}
	if symbol.Kind == symbols.Function {
		sa.fail(compiler_errors.TypeMismatch, at, "function %s used as a value", name)
	}
	return symbol
}

func (sa *SemanticAnalyzer) analyzeCallExpr(callExpr *ast.CallExpr) types.Type {
	symbol, err := sa.symbols.Resolve(callExpr.Name)
	if err != nil {
		sa.failWith(err, callExpr.StartToken)
	}
	functionType, ok := symbol.Type.(*types.FunctionType)
	if !ok || symbol.Kind != symbols.Function {
		sa.fail(compiler_errors.TypeMismatch, callExpr.StartToken,
			"%s is not a function", callExpr.Name)
	}

	fixed := functionType.Arity()
	if len(callExpr.Args) < fixed || (!functionType.Variadic && len(callExpr.Args) != fixed) {
		atLeast := ""
		if functionType.Variadic {
			atLeast = "at least "
		}
		sa.fail(compiler_errors.ArityMismatch, callExpr.StartToken,
			"function %s expects %s%d arguments, got %d", callExpr.Name, atLeast, fixed, len(callExpr.Args))
	}

	for i, arg := range callExpr.Args {
		argType := sa.analyzeArgExpr(arg)

		if i < fixed {
			paramType := functionType.Args[i].Type
			if !types.Assignable(argType, paramType) {
				if argType.SameAs(types.String) {
					sa.failStringLiteral(arg)
				}
				sa.fail(compiler_errors.TypeMismatch, arg.FirstToken(),
					"argument %d of %s: cannot use %s value as %s",
					i+1, callExpr.Name, argType.Type(), paramType.Type())
			}
			continue
		}

		if !argType.IsNumeric() && !argType.SameAs(types.String) {
			sa.fail(compiler_errors.TypeMismatch, arg.FirstToken(),
				"argument %d of %s: cannot pass %s value as variadic argument",
				i+1, callExpr.Name, argType.Type())
		}
	}

	callExpr.Callee = symbol
	return functionType.ReturnType
}

func (sa *SemanticAnalyzer) analyzeUnaryExpr(unaryExpr *ast.UnaryExpr) types.Type {
	operandType := sa.analyzeNumericExpr(unaryExpr.Right)

	if unaryExpr.Op.Kind == lexer.XMARK {
		return types.Int64
	}
	return operandType
}

func (sa *SemanticAnalyzer) analyzeBinaryExpr(binaryExpr *ast.BinaryExpr) types.Type {
	leftType := sa.analyzeNumericExpr(binaryExpr.Left)
	rightType := sa.analyzeNumericExpr(binaryExpr.Right)

	operandType, ok := types.Promote(leftType, rightType)
	if !ok {
		sa.fail(compiler_errors.TypeMismatch, binaryExpr.Op,
			"binary expression operands %s and %s are incompatible", leftType.Type(), rightType.Type())
	}

	if binaryExpr.Op.Kind == lexer.PERCENT && !types.IsInt(operandType) {
		sa.fail(compiler_errors.TypeMismatch, binaryExpr.Op,
			"operator %% requires int operands, got %s and %s", leftType.Type(), rightType.Type())
	}

	binaryExpr.OperandType = operandType

	if isComparison(binaryExpr.Op.Kind) {
		return types.Int64
	}
	return operandType
}

func isComparison(kind lexer.TokenKind) bool {
	switch kind {
	case lexer.EQ, lexer.NEQ, lexer.LT, lexer.LEQ, lexer.GT, lexer.GEQ:
		return true
	}
	return false
}

func describeExpr(expr ast.Expr) string {
	if call, ok := expr.(*ast.CallExpr); ok {
		return fmt.Sprintf("call to %s", call.Name)
	}
	return "expression"
}

func (sa *SemanticAnalyzer) failStringLiteral(expr ast.Expr) {
	sa.fail(compiler_errors.TypeMismatch, expr.FirstToken(),
		"string literal can only be passed to an extern function")
}

func (sa *SemanticAnalyzer) fail(kind compiler_errors.Kind, at *lexer.Token, format string, args ...any) {
	err := compiler_errors.Newf(kind, format, args...)
	panic(bailout{err: err.At(at.Metadata.FileName, at.Metadata.Line, at.Metadata.Column)})
}

// failWith positions an error returned by the symbol table.
func (sa *SemanticAnalyzer) failWith(err error, at *lexer.Token) {
	var ce *compiler_errors.Error
	if !errors.As(err, &ce) {
		ce = compiler_errors.New(compiler_errors.InternalError, err.Error())
	}
	panic(bailout{err: ce.At(at.Metadata.FileName, at.Metadata.Line, at.Metadata.Column)})
}
