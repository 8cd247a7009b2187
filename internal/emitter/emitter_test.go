package emitter

import (
	"strings"
	"testing"

	"github.com/kievzenit/minic/internal/ast"
	"github.com/kievzenit/minic/internal/compiler_errors"
	"github.com/kievzenit/minic/internal/headers"
	"github.com/kievzenit/minic/internal/lexer"
	"github.com/kievzenit/minic/internal/parser"
	"github.com/kievzenit/minic/internal/semantic_analyzer"
	"github.com/kievzenit/minic/internal/symbols"
	"github.com/nalgeon/be"
)

func analyze(t *testing.T, source string) (*ast.Program, *symbols.SymbolTable) {
	t.Helper()
	tokens, err := lexer.NewLexer("native.c", []byte(source)).Tokenize()
	be.Err(t, err, nil)
	program, err := parser.NewParser("native.c", lexer.NewTokenScanner(tokens)).Parse()
	be.Err(t, err, nil)
	table, err := semantic_analyzer.NewSemanticAnalyzer(program, headers.NewRegistry()).Analyze()
	be.Err(t, err, nil)
	return program, table
}

func emit(t *testing.T, source string) string {
	t.Helper()
	program, table := analyze(t, source)

	e := NewEmitter(program, table)
	defer e.Dispose()

	module, err := e.Emit()
	be.Err(t, err, nil)

	return module.String()
}

func TestFunctionsAndPrototypes(t *testing.T) {
	ir := emit(t, `
#include <stdio.h>
int twice(int x);
int main() { printf("%d\n", twice(21)); return 0; }
int twice(int x) { return x * 2; }
`)

	be.True(t, strings.Contains(ir, "declare i64 @printf(ptr, ...)") ||
		strings.Contains(ir, "declare i64 @printf(i8*, ...)"))
	be.True(t, strings.Contains(ir, "define i64 @main()"))
	be.True(t, strings.Contains(ir, "define i64 @twice(i64"))
	be.True(t, strings.Contains(ir, "call i64 @twice(i64 21)"))
	be.True(t, strings.Contains(ir, "alloc:"))
	be.True(t, strings.Contains(ir, "entry:"))
	be.True(t, strings.Contains(ir, "mul i64"))
}

func TestControlFlow(t *testing.T) {
	ir := emit(t, `
int abs(int x) { if (x < 0) { return -x; } else { return x; } }
int main() {
	int s = 0;
	for (int i = 0; i < 5; i = i + 1) s = s + abs(i);
	return s;
}`)

	for _, fragment := range []string{
		"icmp slt i64",
		"zext i1",
		"ifbody:", "ifelse:",
		"forcheck:", "forbody:", "forpost:", "forafter:",
		"br i1",
	} {
		be.True(t, strings.Contains(ir, fragment))
	}

	// both branches return, so abs has no join block
	abs := ir[strings.Index(ir, "define i64 @abs"):strings.Index(ir, "define i64 @main")]
	be.True(t, !strings.Contains(abs, "ifafter"))
}

func TestFloatLowering(t *testing.T) {
	ir := emit(t, `
double half(double x) { return x / 2; }
int main() { float f = half(3); if (f) return 1; return 0; }`)

	be.True(t, strings.Contains(ir, "define double @half(double"))
	be.True(t, strings.Contains(ir, "fdiv double"))
	be.True(t, strings.Contains(ir, "fcmp one double"))
	be.True(t, strings.Contains(ir, "call double @half(double 3.000000e+00)"))
}

func TestImplicitReturns(t *testing.T) {
	ir := emit(t, `
void nothing() { }
float zero() { }
int main() { nothing(); }`)

	be.True(t, strings.Contains(ir, "ret void"))
	be.True(t, strings.Contains(ir, "ret double 0.000000e+00"))
	be.True(t, strings.Contains(ir, "ret i64 0"))
	be.True(t, strings.Contains(ir, "call void @nothing()"))
}

func TestUnanalyzedProgram(t *testing.T) {
	tokens, err := lexer.NewLexer("native.c", []byte("int main() { return 0; }")).Tokenize()
	be.Err(t, err, nil)
	program, err := parser.NewParser("native.c", lexer.NewTokenScanner(tokens)).Parse()
	be.Err(t, err, nil)

	e := NewEmitter(program, symbols.NewSymbolTable())
	defer e.Dispose()

	_, err = e.Emit()
	kind, ok := compiler_errors.KindOf(err)
	be.True(t, ok)
	be.Equal(t, kind, compiler_errors.InternalError)
}

func TestRepeatedEmissionsReleaseContexts(t *testing.T) {
	program, table := analyze(t, "int main() { return 1; }")

	for range 100 {
		e := NewEmitter(program, table)
		module, err := e.Emit()
		be.Err(t, err, nil)
		be.True(t, strings.Contains(module.String(), "ret i64 1"))
		e.Dispose()
	}
}
