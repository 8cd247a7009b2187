package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func writeSource(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prog.c")
	be.Err(t, os.WriteFile(path, []byte(source), 0o644), nil)
	return path
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunExitCode(t *testing.T) {
	path := writeSource(t, "int main() { return 2 + 3 * 4; }")

	code, stdout, stderr := runCLI("run", path)
	be.Equal(t, code, 14)
	be.Equal(t, stdout, "")
	be.Equal(t, stderr, "")
}

func TestRunPrintsOutput(t *testing.T) {
	path := writeSource(t, "#include <stdio.h>\nint main() { printf(\"%d\\n\", 7); return 0; }")

	code, stdout, _ := runCLI("run", path)
	be.Equal(t, code, 0)
	be.Equal(t, stdout, "7\n")
}

func TestRunVerbose(t *testing.T) {
	path := writeSource(t, "int main() { return 3; }")

	code, _, stderr := runCLI("run", "-v", path)
	be.Equal(t, code, 3)
	be.True(t, strings.Contains(stderr, "lexed 10 tokens"))
	be.True(t, strings.Contains(stderr, "main returned 3"))
}

func TestRunDump(t *testing.T) {
	path := writeSource(t, "int main() { return 3; }")

	code, _, stderr := runCLI("run", "-dump", path)
	be.Equal(t, code, 3)
	be.True(t, strings.Contains(stderr, "ast.ReturnStmt"))
}

func TestRunCompileError(t *testing.T) {
	path := writeSource(t, "int main() { return nope; }")

	code, _, stderr := runCLI("run", path)
	be.Equal(t, code, 1)
	be.True(t, strings.HasPrefix(stderr, "Build failed with errors:\n"))
	be.True(t, strings.Contains(stderr, "prog.c:1:21: UnknownSymbol: nope is not declared"))
}

func TestRunFault(t *testing.T) {
	path := writeSource(t, "int main() { return 5 / 0; }")

	code, _, stderr := runCLI("run", path)
	be.Equal(t, code, 3)
	be.True(t, strings.Contains(stderr, "ERROR: DivideByZero: integer division by zero"))
}

func TestRunMaxDepth(t *testing.T) {
	path := writeSource(t, "int f(int n) { return f(n + 1); } int main() { return f(0); }")

	code, _, stderr := runCLI("run", "-max-depth", "50", path)
	be.Equal(t, code, 3)
	be.True(t, strings.Contains(stderr, "CallDepthExceeded"))
}

func TestRunEntry(t *testing.T) {
	path := writeSource(t, "int other() { return 9; } int main() { return 1; }")

	code, _, _ := runCLI("run", "-entry", "other", path)
	be.Equal(t, code, 9)
}

func TestEval(t *testing.T) {
	code, _, _ := runCLI("eval", "int main() { int s = 0; for (int i = 0; i < 5; i = i + 1) s = s + i; return s; }")
	be.Equal(t, code, 10)
}

func TestExitCodeIsLowByte(t *testing.T) {
	code, _, _ := runCLI("eval", "int main() { return 258; }")
	be.Equal(t, code, 2)
}

func TestCheck(t *testing.T) {
	path := writeSource(t, "int helper(int x) { return x; } int main() { return helper(1); }")

	code, stdout, _ := runCLI("check", path)
	be.Equal(t, code, 0)
	be.True(t, strings.HasPrefix(stdout, "Scope 0:\n"))
	be.True(t, strings.Contains(stdout, "helper"))
	be.True(t, strings.Contains(stdout, "main"))
}

func TestTokens(t *testing.T) {
	path := writeSource(t, "int main() { return 0; }")

	code, stdout, _ := runCLI("tokens", path)
	be.Equal(t, code, 0)

	lines := strings.Split(strings.TrimSuffix(stdout, "\n"), "\n")
	be.Equal(t, len(lines), 10)
	be.Equal(t, lines[0], "1:1\tINT_KW()")
	be.Equal(t, lines[1], "1:5\tIDENT(main)")
	be.Equal(t, lines[9], "1:25\tEOF()")
}

func TestAST(t *testing.T) {
	path := writeSource(t, "int main() { return 1 + 2; }")

	code, stdout, _ := runCLI("ast", path)
	be.Equal(t, code, 0)
	be.True(t, strings.Contains(stdout, "ast.BinaryExpr"))
}

func TestBytecode(t *testing.T) {
	path := writeSource(t, "int main() { return 2 + 3 * 4; }")

	code, stdout, _ := runCLI("bytecode", path)
	be.Equal(t, code, 0)
	be.Equal(t, stdout, ""+
		"func #0 main/0 locals=0 (entry)\n"+
		"  0000  PUSH_CONST 0  ; 2\n"+
		"  0001  PUSH_CONST 1  ; 3\n"+
		"  0002  PUSH_CONST 2  ; 4\n"+
		"  0003  MUL\n"+
		"  0004  ADD\n"+
		"  0005  RETURN\n")
}

func TestUsage(t *testing.T) {
	code, _, stderr := runCLI()
	be.Equal(t, code, 2)
	be.True(t, strings.Contains(stderr, "Usage:"))

	code, stdout, _ := runCLI("help")
	be.Equal(t, code, 0)
	be.True(t, strings.Contains(stdout, "bytecode <file>"))

	code, _, stderr = runCLI("compile", "x.c")
	be.Equal(t, code, 2)
	be.True(t, strings.Contains(stderr, `unknown command "compile"`))
}

func TestMissingArgument(t *testing.T) {
	code, _, stderr := runCLI("run")
	be.Equal(t, code, 2)
	be.True(t, strings.Contains(stderr, "expected exactly one argument"))
	be.True(t, strings.Contains(stderr, "Usage: minic run [flags] <file>"))
}

func TestMissingFile(t *testing.T) {
	code, _, stderr := runCLI("check", filepath.Join(t.TempDir(), "absent.c"))
	be.Equal(t, code, 1)
	be.True(t, strings.Contains(stderr, "Error reading file"))
}

func TestCommandHelp(t *testing.T) {
	code, _, stderr := runCLI("build", "-h")
	be.Equal(t, code, 0)
	be.True(t, strings.Contains(stderr, "-o"))
}
