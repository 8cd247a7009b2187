package emitter

import (
	"github.com/kievzenit/minic/internal/ast"
	"github.com/kievzenit/minic/internal/compiler_errors"
	"github.com/kievzenit/minic/internal/lexer"
	"github.com/kievzenit/minic/internal/symbols"
	"github.com/kievzenit/minic/internal/types"
	"tinygo.org/x/go-llvm"
)

type bailout struct {
	err *compiler_errors.Error
}

// Emitter lowers an analyzed program to an LLVM module. It reads the same
// annotations as the bytecode generator: symbol slots, expression types and
// binary operand types.
type Emitter struct {
	program *ast.Program
	table   *symbols.SymbolTable

	typesMap map[string]llvm.Type
	funcsMap map[string]llvm.Value
	slotsMap map[int]llvm.Value

	context llvm.Context
	module  llvm.Module
	builder llvm.Builder

	currentFunc            llvm.Value
	currentReturnType      types.Type
	currentAllocBasicBlock llvm.BasicBlock

	controlFlowHappen bool
}

func NewEmitter(program *ast.Program, table *symbols.SymbolTable) *Emitter {
	context := llvm.NewContext()

	moduleName := program.FileName
	if moduleName == "" {
		moduleName = "main"
	}

	return &Emitter{
		program: program,
		table:   table,

		typesMap: make(map[string]llvm.Type),
		funcsMap: make(map[string]llvm.Value),

		context: context,
		module:  context.NewModule(moduleName),
		builder: context.NewBuilder(),
	}
}

// Emit builds and verifies the module. The module lives in the emitter's
// context and stays valid until Dispose.
func (e *Emitter) Emit() (module llvm.Module, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			e.module.Dispose()
			module = llvm.Module{}
			err = b.err
		}
	}()
	defer e.builder.Dispose()

	e.declareTypes()
	e.declareFuncPrototypes()

	for _, funcDeclStmt := range e.program.Functions() {
		e.emitForFuncDeclStmt(funcDeclStmt)
	}

	if verifyErr := llvm.VerifyModule(e.module, llvm.ReturnStatusAction); verifyErr != nil {
		e.fail(nil, "module verification failed: %s", verifyErr)
	}

	return e.module, nil
}

// Dispose releases the LLVM context together with every module emitted in it.
func (e *Emitter) Dispose() {
	e.context.Dispose()
}

func (e *Emitter) declareTypes() {
	e.typesMap[types.Int64.Type()] = e.context.Int64Type()
	e.typesMap[types.Float64.Type()] = e.context.DoubleType()
	e.typesMap[types.Void.Type()] = e.context.VoidType()
	e.typesMap[types.String.Type()] = llvm.PointerType(e.context.Int8Type(), 0)
}

func (e *Emitter) getLlvmTypeForType(typ types.Type) llvm.Type {
	if typ == nil {
		e.fail(nil, "missing type")
	}
	if llvmType, ok := e.typesMap[typ.Type()]; ok {
		return llvmType
	}

	e.fail(nil, "type %s has no native representation", typ.Type())
	return llvm.Type{}
}

// declareFuncPrototypes declares every function before any body is emitted
// so calls can reach functions defined later in the file.
func (e *Emitter) declareFuncPrototypes() {
	for _, symbol := range e.table.Functions() {
		functionType, ok := symbol.Type.(*types.FunctionType)
		if !ok {
			e.fail(nil, "symbol %s is not a function", symbol.Name)
		}

		argsTypes := make([]llvm.Type, 0, functionType.Arity())
		for _, arg := range functionType.Args {
			argsTypes = append(argsTypes, e.getLlvmTypeForType(arg.Type))
		}
		llvmFuncType := llvm.FunctionType(
			e.getLlvmTypeForType(functionType.ReturnType),
			argsTypes,
			functionType.Variadic)

		funcValue := llvm.AddFunction(e.module, symbol.Name, llvmFuncType)
		e.funcsMap[symbol.Name] = funcValue

		if symbol.Defined {
			framePointerAttr := e.context.CreateStringAttribute("frame-pointer", "all")
			noTrappingMathAttr := e.context.CreateStringAttribute("no-trapping-math", "true")
			funcValue.AddFunctionAttr(framePointerAttr)
			funcValue.AddFunctionAttr(noTrappingMathAttr)
		}
	}
}

func (e *Emitter) emitForFuncDeclStmt(funcDeclStmt *ast.FuncDeclStmt) {
	if funcDeclStmt.Symbol == nil {
		e.fail(funcDeclStmt.StartToken, "function %s was not analyzed", funcDeclStmt.Name)
	}
	functionType := funcDeclStmt.Symbol.Type.(*types.FunctionType)

	funcValue := e.funcsMap[funcDeclStmt.Name]
	e.currentFunc = funcValue
	e.currentReturnType = functionType.ReturnType
	e.slotsMap = make(map[int]llvm.Value)

	allocBasicBlock := e.context.AddBasicBlock(funcValue, "alloc")
	e.currentAllocBasicBlock = allocBasicBlock
	entryBasicBlock := e.context.AddBasicBlock(funcValue, "entry")

	e.builder.SetInsertPointAtEnd(entryBasicBlock)
	for i, arg := range funcDeclStmt.Args {
		slot := e.slotFor(arg.Symbol, arg.StartToken)
		e.builder.CreateStore(funcValue.Param(i), slot)
	}

	e.emitForStmts(funcDeclStmt.Body.Stmts)
	if !e.controlFlowHappen {
		e.emitDefaultReturn()
	}

	e.builder.SetInsertPointAtEnd(allocBasicBlock)
	e.builder.CreateBr(entryBasicBlock)

	e.currentAllocBasicBlock = llvm.BasicBlock{}
	e.currentReturnType = nil
	e.slotsMap = nil
	e.controlFlowHappen = false
}

func (e *Emitter) emitDefaultReturn() {
	switch {
	case types.IsVoid(e.currentReturnType):
		e.builder.CreateRetVoid()
	case types.IsFloat(e.currentReturnType):
		e.builder.CreateRet(llvm.ConstFloat(e.context.DoubleType(), 0))
	default:
		e.builder.CreateRet(llvm.ConstInt(e.context.Int64Type(), 0, true))
	}
	e.controlFlowHappen = true
}

// slotFor returns the stack slot of symbol, allocating it in the alloc
// block on first use.
func (e *Emitter) slotFor(symbol *symbols.Symbol, at *lexer.Token) llvm.Value {
	if symbol == nil {
		e.fail(at, "identifier was not resolved")
	}
	if slot, ok := e.slotsMap[symbol.Slot]; ok {
		return slot
	}

	currBasicBlock := e.builder.GetInsertBlock()
	e.builder.SetInsertPointAtEnd(e.currentAllocBasicBlock)
	slot := e.builder.CreateAlloca(e.getLlvmTypeForType(symbol.Type), symbol.Name)
	e.builder.SetInsertPointAtEnd(currBasicBlock)

	e.slotsMap[symbol.Slot] = slot
	return slot
}

// emitForStmts stops at the first statement after which control cannot
// continue.
func (e *Emitter) emitForStmts(stmts []ast.Stmt) {
	for _, stmt := range stmts {
		if e.controlFlowHappen {
			return
		}
		e.emitForStmt(stmt)
	}
}

func (e *Emitter) emitForStmt(stmt ast.Stmt) {
	switch stmt := stmt.(type) {
	case *ast.ScopeStmt:
		e.emitForStmts(stmt.Stmts)
	case *ast.VarDeclStmt:
		e.emitForVarDeclStmt(stmt)
	case *ast.IfStmt:
		e.emitForIfStmt(stmt)
	case *ast.ForStmt:
		e.emitForForStmt(stmt)
	case *ast.ReturnStmt:
		e.emitForReturnStmt(stmt)
	case *ast.ExprStmt:
		e.emitForExpr(stmt.Expr)
	default:
		e.fail(stmt.FirstToken(), "unexpected statement %T", stmt)
	}
}

func (e *Emitter) emitForVarDeclStmt(varDeclStmt *ast.VarDeclStmt) {
	slot := e.slotFor(varDeclStmt.Symbol, varDeclStmt.StartToken)
	symbolType := varDeclStmt.Symbol.Type

	var value llvm.Value
	switch {
	case varDeclStmt.Value != nil:
		value = e.emitForExprAs(varDeclStmt.Value, symbolType)
	case types.IsFloat(symbolType):
		value = llvm.ConstFloat(e.context.DoubleType(), 0)
	default:
		value = llvm.ConstInt(e.context.Int64Type(), 0, true)
	}
	e.builder.CreateStore(value, slot)
}

func (e *Emitter) emitForIfStmt(ifStmt *ast.IfStmt) {
	ifBody := e.context.AddBasicBlock(e.currentFunc, "ifbody")
	elseBlock := e.context.AddBasicBlock(e.currentFunc, "ifelse")
	afterIfBlock := e.context.AddBasicBlock(e.currentFunc, "ifafter")

	condResult := e.emitForCondition(ifStmt.Cond)
	e.builder.CreateCondBr(condResult, ifBody, elseBlock)

	e.builder.SetInsertPointAtEnd(ifBody)
	e.emitForStmts(ifStmt.Body.Stmts)
	thenTerminated := e.controlFlowHappen
	if !thenTerminated {
		e.builder.CreateBr(afterIfBlock)
	}
	e.controlFlowHappen = false

	e.builder.SetInsertPointAtEnd(elseBlock)
	if ifStmt.Else != nil {
		e.emitForStmts(ifStmt.Else.Stmts)
	}
	elseTerminated := e.controlFlowHappen
	if !elseTerminated {
		e.builder.CreateBr(afterIfBlock)
	}

	if thenTerminated && elseTerminated {
		afterIfBlock.EraseFromParent()
		e.controlFlowHappen = true
		return
	}

	e.controlFlowHappen = false
	e.builder.SetInsertPointAtEnd(afterIfBlock)
}

func (e *Emitter) emitForForStmt(forStmt *ast.ForStmt) {
	if forStmt.Init != nil {
		e.emitForStmt(forStmt.Init)
	}

	checkBlock := e.context.AddBasicBlock(e.currentFunc, "forcheck")
	bodyBlock := e.context.AddBasicBlock(e.currentFunc, "forbody")
	postBlock := e.context.AddBasicBlock(e.currentFunc, "forpost")
	afterBlock := e.context.AddBasicBlock(e.currentFunc, "forafter")

	e.builder.CreateBr(checkBlock)
	e.builder.SetInsertPointAtEnd(checkBlock)
	if forStmt.Cond != nil {
		condValue := e.emitForCondition(forStmt.Cond)
		e.builder.CreateCondBr(condValue, bodyBlock, afterBlock)
	} else {
		e.builder.CreateBr(bodyBlock)
	}

	e.builder.SetInsertPointAtEnd(bodyBlock)
	e.emitForStmts(forStmt.Body.Stmts)
	if !e.controlFlowHappen {
		e.builder.CreateBr(postBlock)
	}
	e.controlFlowHappen = false

	e.builder.SetInsertPointAtEnd(postBlock)
	if forStmt.Post != nil {
		e.emitForExpr(forStmt.Post)
	}
	e.builder.CreateBr(checkBlock)

	e.builder.SetInsertPointAtEnd(afterBlock)
}

func (e *Emitter) emitForReturnStmt(returnStmt *ast.ReturnStmt) {
	if returnStmt.Expr == nil {
		e.builder.CreateRetVoid()
	} else {
		e.builder.CreateRet(e.emitForExprAs(returnStmt.Expr, e.currentReturnType))
	}
	e.controlFlowHappen = true
}

// emitForCondition turns an int or float value into an i1 that is true when
// the value is non-zero.
func (e *Emitter) emitForCondition(cond ast.Expr) llvm.Value {
	value := e.emitForExpr(cond)
	if types.IsFloat(cond.ExprType()) {
		return e.builder.CreateFCmp(llvm.FloatONE, value, llvm.ConstFloat(e.context.DoubleType(), 0), "condtmp")
	}
	return e.builder.CreateICmp(llvm.IntNE, value, llvm.ConstInt(e.context.Int64Type(), 0, true), "condtmp")
}

func (e *Emitter) emitForExprAs(expr ast.Expr, want types.Type) llvm.Value {
	value := e.emitForExpr(expr)
	if types.IsInt(expr.ExprType()) && types.IsFloat(want) {
		return e.builder.CreateSIToFP(value, e.context.DoubleType(), "promotetmp")
	}
	return value
}

func (e *Emitter) emitForExpr(expr ast.Expr) llvm.Value {
	if expr.ExprType() == nil {
		e.fail(expr.FirstToken(), "expression %T has no type", expr)
	}

	switch expr := expr.(type) {
	case *ast.IntExpr:
		return llvm.ConstInt(e.context.Int64Type(), uint64(expr.Value), true)
	case *ast.FloatExpr:
		return llvm.ConstFloat(e.context.DoubleType(), expr.Value)
	case *ast.StringExpr:
		return e.builder.CreateGlobalStringPtr(expr.Value, ".str")
	case *ast.IdentExpr:
		slot := e.slotFor(expr.Symbol, expr.StartToken)
		return e.builder.CreateLoad(e.getLlvmTypeForType(expr.Symbol.Type), slot, "loadtmp")
	case *ast.AssignExpr:
		return e.emitForAssignExpr(expr)
	case *ast.CallExpr:
		return e.emitForCallExpr(expr)
	case *ast.UnaryExpr:
		return e.emitForUnaryExpr(expr)
	case *ast.BinaryExpr:
		return e.emitForBinExpr(expr)
	}

	e.fail(expr.FirstToken(), "unexpected expression %T", expr)
	return llvm.Value{}
}

func (e *Emitter) emitForAssignExpr(assignExpr *ast.AssignExpr) llvm.Value {
	slot := e.slotFor(assignExpr.Target.Symbol, assignExpr.StartToken)
	value := e.emitForExprAs(assignExpr.Value, assignExpr.Target.Symbol.Type)
	e.builder.CreateStore(value, slot)
	return value
}

func (e *Emitter) emitForCallExpr(callExpr *ast.CallExpr) llvm.Value {
	funcValue, ok := e.funcsMap[callExpr.Name]
	if !ok || callExpr.Callee == nil {
		e.fail(callExpr.StartToken, "call to %s was not resolved", callExpr.Name)
	}
	functionType := callExpr.Callee.Type.(*types.FunctionType)

	args := make([]llvm.Value, 0, len(callExpr.Args))
	for i, arg := range callExpr.Args {
		if i < functionType.Arity() {
			args = append(args, e.emitForExprAs(arg, functionType.Args[i].Type))
			continue
		}
		args = append(args, e.emitForExpr(arg))
	}

	name := "calltmp"
	if types.IsVoid(functionType.ReturnType) {
		name = ""
	}
	return e.builder.CreateCall(funcValue.GlobalValueType(), funcValue, args, name)
}

func (e *Emitter) emitForUnaryExpr(unaryExpr *ast.UnaryExpr) llvm.Value {
	value := e.emitForExpr(unaryExpr.Right)
	isFloat := types.IsFloat(unaryExpr.Right.ExprType())

	switch unaryExpr.Op.Kind {
	case lexer.PLUS:
		return value
	case lexer.MINUS:
		if isFloat {
			return e.builder.CreateFNeg(value, "negtmp")
		}
		return e.builder.CreateNeg(value, "negtmp")
	case lexer.XMARK:
		var isZero llvm.Value
		if isFloat {
			isZero = e.builder.CreateFCmp(llvm.FloatOEQ, value, llvm.ConstFloat(e.context.DoubleType(), 0), "nottmp")
		} else {
			isZero = e.builder.CreateICmp(llvm.IntEQ, value, llvm.ConstInt(e.context.Int64Type(), 0, true), "nottmp")
		}
		return e.builder.CreateZExt(isZero, e.context.Int64Type(), "booltmp")
	}

	e.fail(unaryExpr.Op, "unexpected unary operator %s", unaryExpr.Op.Kind)
	return llvm.Value{}
}

var intPredicates = map[lexer.TokenKind]llvm.IntPredicate{
	lexer.EQ:  llvm.IntEQ,
	lexer.NEQ: llvm.IntNE,
	lexer.LT:  llvm.IntSLT,
	lexer.LEQ: llvm.IntSLE,
	lexer.GT:  llvm.IntSGT,
	lexer.GEQ: llvm.IntSGE,
}

var floatPredicates = map[lexer.TokenKind]llvm.FloatPredicate{
	lexer.EQ:  llvm.FloatOEQ,
	lexer.NEQ: llvm.FloatUNE,
	lexer.LT:  llvm.FloatOLT,
	lexer.LEQ: llvm.FloatOLE,
	lexer.GT:  llvm.FloatOGT,
	lexer.GEQ: llvm.FloatOGE,
}

func (e *Emitter) emitForBinExpr(binExpr *ast.BinaryExpr) llvm.Value {
	if binExpr.OperandType == nil {
		e.fail(binExpr.Op, "binary expression has no operand type")
	}
	isFloat := types.IsFloat(binExpr.OperandType)

	leftValue := e.emitForExprAs(binExpr.Left, binExpr.OperandType)
	rightValue := e.emitForExprAs(binExpr.Right, binExpr.OperandType)

	switch binExpr.Op.Kind {
	case lexer.PLUS:
		if isFloat {
			return e.builder.CreateFAdd(leftValue, rightValue, "addtmp")
		}
		return e.builder.CreateAdd(leftValue, rightValue, "addtmp")
	case lexer.MINUS:
		if isFloat {
			return e.builder.CreateFSub(leftValue, rightValue, "subtmp")
		}
		return e.builder.CreateSub(leftValue, rightValue, "subtmp")
	case lexer.ASTERISK:
		if isFloat {
			return e.builder.CreateFMul(leftValue, rightValue, "multmp")
		}
		return e.builder.CreateMul(leftValue, rightValue, "multmp")
	case lexer.SLASH:
		if isFloat {
			return e.builder.CreateFDiv(leftValue, rightValue, "divtmp")
		}
		return e.builder.CreateSDiv(leftValue, rightValue, "divtmp")
	case lexer.PERCENT:
		if isFloat {
			e.fail(binExpr.Op, "operator %% on float operands")
		}
		return e.builder.CreateSRem(leftValue, rightValue, "modtmp")
	}

	var cmpValue llvm.Value
	if isFloat {
		predicate, ok := floatPredicates[binExpr.Op.Kind]
		if !ok {
			e.fail(binExpr.Op, "unexpected binary operator %s", binExpr.Op.Kind)
		}
		cmpValue = e.builder.CreateFCmp(predicate, leftValue, rightValue, "cmptmp")
	} else {
		predicate, ok := intPredicates[binExpr.Op.Kind]
		if !ok {
			e.fail(binExpr.Op, "unexpected binary operator %s", binExpr.Op.Kind)
		}
		cmpValue = e.builder.CreateICmp(predicate, leftValue, rightValue, "cmptmp")
	}
	return e.builder.CreateZExt(cmpValue, e.context.Int64Type(), "booltmp")
}

func (e *Emitter) fail(at *lexer.Token, format string, args ...any) {
	err := compiler_errors.Newf(compiler_errors.InternalError, format, args...)
	if at != nil {
		err = err.At(at.Metadata.FileName, at.Metadata.Line, at.Metadata.Column)
	}
	panic(bailout{err: err})
}
