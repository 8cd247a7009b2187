package codegen

import (
	"github.com/kievzenit/minic/internal/ast"
	"github.com/kievzenit/minic/internal/bytecode"
	"github.com/kievzenit/minic/internal/compiler_errors"
	"github.com/kievzenit/minic/internal/lexer"
	"github.com/kievzenit/minic/internal/symbols"
	"github.com/kievzenit/minic/internal/types"
)

// bailout carries an internal error up to Generate.
type bailout struct {
	err *compiler_errors.Error
}

// CodeGenerator lowers an analyzed program to bytecode. It trusts the
// annotations and only fails on trees analysis could not have produced.
type CodeGenerator struct {
	program *ast.Program
	table   *symbols.SymbolTable

	out *bytecode.Program

	fn         *bytecode.Function
	constIndex map[bytecode.Value]int
	returnType types.Type
}

func NewCodeGenerator(program *ast.Program, table *symbols.SymbolTable) *CodeGenerator {
	return &CodeGenerator{
		program: program,
		table:   table,
	}
}

func (cg *CodeGenerator) Generate() (out *bytecode.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			out = nil
			err = b.err
		}
	}()

	out = &bytecode.Program{
		Functions: make([]*bytecode.Function, 0),
		Externs:   make([]*bytecode.Extern, 0),
		Entry:     -1,
	}

	cg.out = out
	defer func() { cg.out = nil }()

	// Every function gets its index before any body is lowered so calls can
	// reach functions defined later in the file.
	functions := cg.program.Functions()
	for i, funcDeclStmt := range functions {
		out.Functions = append(out.Functions, &bytecode.Function{Name: funcDeclStmt.Name})
		if funcDeclStmt.Name == "main" {
			out.Entry = i
		}
	}

	for _, symbol := range cg.table.Functions() {
		if symbol.Defined {
			continue
		}
		functionType := symbol.Type.(*types.FunctionType)
		out.Externs = append(out.Externs, &bytecode.Extern{
			Name:         symbol.Name,
			Arity:        functionType.Arity(),
			Variadic:     functionType.Variadic,
			ReturnsValue: !types.IsVoid(functionType.ReturnType),
		})
	}

	for i, funcDeclStmt := range functions {
		cg.generateFunction(out.Functions[i], funcDeclStmt)
	}

	return out, nil
}

func (cg *CodeGenerator) generateFunction(fn *bytecode.Function, funcDeclStmt *ast.FuncDeclStmt) {
	if funcDeclStmt.Symbol == nil {
		cg.fail(funcDeclStmt.StartToken, "function %s was not analyzed", funcDeclStmt.Name)
	}
	functionType := funcDeclStmt.Symbol.Type.(*types.FunctionType)

	fn.Arity = len(funcDeclStmt.Args)
	fn.LocalCount = funcDeclStmt.LocalCount
	fn.ReturnsValue = !types.IsVoid(functionType.ReturnType)
	fn.Constants = make([]bytecode.Value, 0)
	fn.Code = make([]bytecode.Instruction, 0)

	cg.fn = fn
	cg.constIndex = make(map[bytecode.Value]int)
	cg.returnType = functionType.ReturnType

	if !cg.generateStmts(funcDeclStmt.Body.Stmts) {
		cg.generateDefaultReturn()
	}

	cg.fn = nil
}

func (cg *CodeGenerator) generateDefaultReturn() {
	switch {
	case types.IsVoid(cg.returnType):
		cg.emit(bytecode.ReturnVoid, 0, 0)
		return
	case types.IsFloat(cg.returnType):
		cg.pushConst(bytecode.FloatValue(0))
	default:
		cg.pushConst(bytecode.IntValue(0))
	}
	cg.emit(bytecode.Return, 0, 0)
}

// generateStmts lowers stmts in order and reports whether control can no
// longer reach the end. Statements after a return are not emitted.
func (cg *CodeGenerator) generateStmts(stmts []ast.Stmt) bool {
	for _, stmt := range stmts {
		if cg.generateStmt(stmt) {
			return true
		}
	}
	return false
}

func (cg *CodeGenerator) generateStmt(stmt ast.Stmt) bool {
	switch stmt := stmt.(type) {
	case *ast.ScopeStmt:
		return cg.generateStmts(stmt.Stmts)
	case *ast.VarDeclStmt:
		cg.generateVarDeclStmt(stmt)
	case *ast.ExprStmt:
		cg.generateExprStmt(stmt.Expr)
	case *ast.IfStmt:
		return cg.generateIfStmt(stmt)
	case *ast.ForStmt:
		cg.generateForStmt(stmt)
	case *ast.ReturnStmt:
		cg.generateReturnStmt(stmt)
		return true
	default:
		cg.fail(stmt.FirstToken(), "unexpected statement %T", stmt)
	}
	return false
}

// generateVarDeclStmt zero-fills declarations without an initializer.
func (cg *CodeGenerator) generateVarDeclStmt(varDeclStmt *ast.VarDeclStmt) {
	symbol := cg.symbolOf(varDeclStmt.Symbol, varDeclStmt.StartToken)

	switch {
	case varDeclStmt.Value != nil:
		cg.generateExprAs(varDeclStmt.Value, symbol.Type)
	case types.IsFloat(symbol.Type):
		cg.pushConst(bytecode.FloatValue(0))
	default:
		cg.pushConst(bytecode.IntValue(0))
	}
	cg.emit(bytecode.StoreLocal, symbol.Slot, 0)
}

func (cg *CodeGenerator) generateExprStmt(expr ast.Expr) {
	if assignExpr, ok := expr.(*ast.AssignExpr); ok {
		symbol := cg.symbolOf(assignExpr.Target.Symbol, assignExpr.StartToken)
		cg.generateExprAs(assignExpr.Value, symbol.Type)
		cg.emit(bytecode.StoreLocal, symbol.Slot, 0)
		return
	}

	cg.generateExpr(expr)
	if !types.IsVoid(expr.ExprType()) {
		cg.emit(bytecode.Pop, 0, 0)
	}
}

func (cg *CodeGenerator) generateIfStmt(ifStmt *ast.IfStmt) bool {
	jumpToElse := cg.generateBranchIfFalse(ifStmt.Cond)

	thenTerminates := cg.generateStmts(ifStmt.Body.Stmts)

	if ifStmt.Else == nil {
		cg.patch(jumpToElse)
		return false
	}

	jumpToEnd := -1
	if !thenTerminates {
		jumpToEnd = cg.emit(bytecode.Jump, -1, 0)
	}
	cg.patch(jumpToElse)

	elseTerminates := cg.generateStmts(ifStmt.Else.Stmts)
	if jumpToEnd >= 0 {
		cg.patch(jumpToEnd)
	}

	return thenTerminates && elseTerminates
}

func (cg *CodeGenerator) generateForStmt(forStmt *ast.ForStmt) {
	if forStmt.Init != nil {
		cg.generateStmt(forStmt.Init)
	}

	head := len(cg.fn.Code)
	jumpToExit := -1
	if forStmt.Cond != nil {
		jumpToExit = cg.generateBranchIfFalse(forStmt.Cond)
	}

	cg.generateStmts(forStmt.Body.Stmts)

	if forStmt.Post != nil {
		cg.generateExprStmt(forStmt.Post)
	}
	cg.emit(bytecode.Jump, head, 0)

	if jumpToExit >= 0 {
		cg.patch(jumpToExit)
	}
}

// generateBranchIfFalse lowers cond followed by a jump taken when cond is
// zero and returns the jump to patch. A negated condition branches on its
// operand instead of materializing the negation.
func (cg *CodeGenerator) generateBranchIfFalse(cond ast.Expr) int {
	if unaryExpr, ok := cond.(*ast.UnaryExpr); ok && unaryExpr.Op.Kind == lexer.XMARK {
		cg.generateExpr(unaryExpr.Right)
		return cg.emit(bytecode.JumpIfTrue, -1, 0)
	}

	cg.generateExpr(cond)
	return cg.emit(bytecode.JumpIfFalse, -1, 0)
}

func (cg *CodeGenerator) generateReturnStmt(returnStmt *ast.ReturnStmt) {
	if returnStmt.Expr == nil {
		cg.emit(bytecode.ReturnVoid, 0, 0)
		return
	}

	cg.generateExprAs(returnStmt.Expr, cg.returnType)
	cg.emit(bytecode.Return, 0, 0)
}

// generateExprAs lowers expr and widens the result when want is float and
// the expression is int.
func (cg *CodeGenerator) generateExprAs(expr ast.Expr, want types.Type) {
	cg.generateExpr(expr)
	if types.IsInt(expr.ExprType()) && types.IsFloat(want) {
		cg.emit(bytecode.IntToFloat, 0, 0)
	}
}

func (cg *CodeGenerator) generateExpr(expr ast.Expr) {
	if expr.ExprType() == nil {
		cg.fail(expr.FirstToken(), "expression %T has no type", expr)
	}

	switch expr := expr.(type) {
	case *ast.IntExpr:
		cg.pushConst(bytecode.IntValue(expr.Value))
	case *ast.FloatExpr:
		cg.pushConst(bytecode.FloatValue(expr.Value))
	case *ast.StringExpr:
		cg.pushConst(bytecode.StringValue(expr.Value))
	case *ast.IdentExpr:
		symbol := cg.symbolOf(expr.Symbol, expr.StartToken)
		cg.emit(bytecode.LoadLocal, symbol.Slot, 0)
	case *ast.AssignExpr:
		symbol := cg.symbolOf(expr.Target.Symbol, expr.StartToken)
		cg.generateExprAs(expr.Value, symbol.Type)
		cg.emit(bytecode.Dup, 0, 0)
		cg.emit(bytecode.StoreLocal, symbol.Slot, 0)
	case *ast.CallExpr:
		cg.generateCallExpr(expr)
	case *ast.UnaryExpr:
		cg.generateUnaryExpr(expr)
	case *ast.BinaryExpr:
		cg.generateBinaryExpr(expr)
	default:
		cg.fail(expr.FirstToken(), "unexpected expression %T", expr)
	}
}

func (cg *CodeGenerator) generateCallExpr(callExpr *ast.CallExpr) {
	if callExpr.Callee == nil {
		cg.fail(callExpr.StartToken, "call to %s was not resolved", callExpr.Name)
	}
	functionType, ok := callExpr.Callee.Type.(*types.FunctionType)
	if !ok {
		cg.fail(callExpr.StartToken, "callee %s is not a function", callExpr.Name)
	}

	for i, arg := range callExpr.Args {
		if i < functionType.Arity() {
			cg.generateExprAs(arg, functionType.Args[i].Type)
			continue
		}
		cg.generateExpr(arg)
	}

	if index, ok := cg.out.FunctionIndex(callExpr.Name); ok {
		cg.emit(bytecode.Call, index, len(callExpr.Args))
		return
	}
	if index, ok := cg.out.ExternIndex(callExpr.Name); ok {
		cg.emit(bytecode.CallExtern, index, len(callExpr.Args))
		return
	}
	cg.fail(callExpr.StartToken, "function %s has no body and is not extern", callExpr.Name)
}

func (cg *CodeGenerator) generateUnaryExpr(unaryExpr *ast.UnaryExpr) {
	cg.generateExpr(unaryExpr.Right)

	switch unaryExpr.Op.Kind {
	case lexer.PLUS:
	case lexer.MINUS:
		cg.emit(bytecode.Neg, 0, 0)
	case lexer.XMARK:
		cg.emit(bytecode.Not, 0, 0)
	default:
		cg.fail(unaryExpr.Op, "unexpected unary operator %s", unaryExpr.Op.Kind)
	}
}

var binaryOps = map[lexer.TokenKind]bytecode.Opcode{
	lexer.PLUS:     bytecode.Add,
	lexer.MINUS:    bytecode.Sub,
	lexer.ASTERISK: bytecode.Mul,
	lexer.SLASH:    bytecode.Div,
	lexer.PERCENT:  bytecode.Mod,
	lexer.EQ:       bytecode.Eq,
	lexer.NEQ:      bytecode.Ne,
	lexer.LT:       bytecode.Lt,
	lexer.LEQ:      bytecode.Le,
	lexer.GT:       bytecode.Gt,
	lexer.GEQ:      bytecode.Ge,
}

func (cg *CodeGenerator) generateBinaryExpr(binaryExpr *ast.BinaryExpr) {
	if binaryExpr.OperandType == nil {
		cg.fail(binaryExpr.Op, "binary expression has no operand type")
	}
	op, ok := binaryOps[binaryExpr.Op.Kind]
	if !ok {
		cg.fail(binaryExpr.Op, "unexpected binary operator %s", binaryExpr.Op.Kind)
	}

	cg.generateExprAs(binaryExpr.Left, binaryExpr.OperandType)
	cg.generateExprAs(binaryExpr.Right, binaryExpr.OperandType)
	cg.emit(op, 0, 0)
}

func (cg *CodeGenerator) symbolOf(symbol *symbols.Symbol, at *lexer.Token) *symbols.Symbol {
	if symbol == nil {
		cg.fail(at, "identifier was not resolved")
	}
	if symbol.Slot < 0 || symbol.Slot >= cg.fn.LocalCount {
		cg.fail(at, "slot %d of %s outside of %d locals", symbol.Slot, symbol.Name, cg.fn.LocalCount)
	}
	return symbol
}

func (cg *CodeGenerator) pushConst(value bytecode.Value) {
	index, ok := cg.constIndex[value]
	if !ok {
		index = len(cg.fn.Constants)
		cg.fn.Constants = append(cg.fn.Constants, value)
		cg.constIndex[value] = index
	}
	cg.emit(bytecode.PushConst, index, 0)
}

// emit appends an instruction and returns its index for later patching.
func (cg *CodeGenerator) emit(op bytecode.Opcode, a, b int) int {
	cg.fn.Code = append(cg.fn.Code, bytecode.Instruction{Op: op, A: a, B: b})
	return len(cg.fn.Code) - 1
}

// patch points the jump at index to the next instruction to be emitted.
func (cg *CodeGenerator) patch(index int) {
	if !cg.fn.Code[index].Op.IsJump() {
		cg.fail(nil, "patching %s at %d, which is not a jump", cg.fn.Code[index].Op, index)
	}
	cg.fn.Code[index].A = len(cg.fn.Code)
}

func (cg *CodeGenerator) fail(at *lexer.Token, format string, args ...any) {
	err := compiler_errors.Newf(compiler_errors.InternalError, format, args...)
	if at != nil {
		err = err.At(at.Metadata.FileName, at.Metadata.Line, at.Metadata.Column)
	}
	panic(bailout{err: err})
}
