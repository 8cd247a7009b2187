package casebook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"
)

const fence = "```"

func TestParse(t *testing.T) {
	markdown := "# Arithmetic\n\n" +
		"Some prose that is ignored.\n\n" +
		"## Test: precedence\n" +
		fence + "c\nint main() { return 2 + 3 * 4; }\n" + fence + "\n" +
		fence + "exit\n14\n" + fence + "\n\n" +
		"## Test: hello\n" +
		fence + "c\n#include <stdio.h>\nint main() { printf(\"hi\\n\"); return 0; }\n" + fence + "\n" +
		fence + "stdout\nhi\n" + fence + "\n" +
		fence + "exit\n0\n" + fence + "\n"

	cases, err := Parse([]byte(markdown))
	be.Err(t, err, nil)
	be.Equal(t, len(cases), 2)

	first := cases[0]
	be.Equal(t, first.Name, "precedence")
	be.Equal(t, first.Source, "int main() { return 2 + 3 * 4; }\n")
	be.Equal(t, first.Line, 5)
	code, ok, err := first.ExitCode()
	be.Err(t, err, nil)
	be.True(t, ok)
	be.Equal(t, code, int64(14))

	second := cases[1]
	be.Equal(t, second.Name, "hello")
	stdout, ok := second.Expect(FenceStdout)
	be.True(t, ok)
	be.Equal(t, stdout.Content, "hi\n")
	be.Equal(t, len(second.Expectations), 2)

	_, ok = second.Expect(FenceFault)
	be.True(t, !ok)
}

func TestErrorExpectation(t *testing.T) {
	markdown := "## Test: undeclared\n" +
		fence + "c\nint main() { return y; }\n" + fence + "\n" +
		fence + "compile-error\nUnknownSymbol: y is not declared\n" + fence + "\n" +
		"## Test: divide\n" +
		fence + "c\nint main() { int z = 0; return 1 / z; }\n" + fence + "\n" +
		fence + "fault\nDivideByZero\n" + fence + "\n"

	cases, err := Parse([]byte(markdown))
	be.Err(t, err, nil)
	be.Equal(t, len(cases), 2)

	compileError, ok := cases[0].Expect(FenceCompileError)
	be.True(t, ok)
	kind, message := compileError.ErrorExpectation()
	be.Equal(t, kind, "UnknownSymbol")
	be.Equal(t, message, "y is not declared")

	fault, ok := cases[1].Expect(FenceFault)
	be.True(t, ok)
	kind, message = fault.ErrorExpectation()
	be.Equal(t, kind, "DivideByZero")
	be.Equal(t, message, "")

	_, ok, err = cases[1].ExitCode()
	be.Err(t, err, nil)
	be.True(t, !ok)
}

func TestUntaggedFencesAreIgnored(t *testing.T) {
	markdown := fence + "\nnot a test\n" + fence + "\n" +
		"## Test: one\n" +
		fence + "c\nint main() { return 1; }\n" + fence + "\n" +
		fence + "\nnotes\n" + fence + "\n" +
		fence + "exit\n1\n" + fence + "\n"

	cases, err := Parse([]byte(markdown))
	be.Err(t, err, nil)
	be.Equal(t, len(cases), 1)
	be.Equal(t, len(cases[0].Expectations), 1)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		want     string
	}{
		{
			name:     "fence outside test",
			markdown: fence + "c\nint main() { return 0; }\n" + fence + "\n",
			want:     "line 2: c fence outside of a test",
		},
		{
			name:     "unknown fence",
			markdown: "## Test: x\n" + fence + "python\nprint(1)\n" + fence + "\n",
			want:     "unknown fence 'python'",
		},
		{
			name:     "no source",
			markdown: "## Test: x\n" + fence + "exit\n0\n" + fence + "\n",
			want:     "test 'x' has no c fence",
		},
		{
			name:     "no expectations",
			markdown: "## Test: x\n" + fence + "c\nint main() { return 0; }\n" + fence + "\n",
			want:     "test 'x' has no expectations",
		},
		{
			name: "two sources",
			markdown: "## Test: x\n" +
				fence + "c\nint main() { return 0; }\n" + fence + "\n" +
				fence + "c\nint main() { return 1; }\n" + fence + "\n",
			want: "second c fence in test 'x'",
		},
		{
			name: "two exits",
			markdown: "## Test: x\n" +
				fence + "c\nint main() { return 0; }\n" + fence + "\n" +
				fence + "exit\n0\n" + fence + "\n" +
				fence + "exit\n1\n" + fence + "\n",
			want: "second exit fence in test 'x'",
		},
		{
			name: "compile error with exit",
			markdown: "## Test: x\n" +
				fence + "c\nint main() { return y; }\n" + fence + "\n" +
				fence + "compile-error\nUnknownSymbol\n" + fence + "\n" +
				fence + "exit\n0\n" + fence + "\n",
			want: "expects a compile error and something else",
		},
		{
			name: "fault with exit",
			markdown: "## Test: x\n" +
				fence + "c\nint main() { return 1 / 0; }\n" + fence + "\n" +
				fence + "fault\nDivideByZero\n" + fence + "\n" +
				fence + "exit\n0\n" + fence + "\n",
			want: "expects both an exit code and a fault",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cases, err := Parse([]byte(tt.markdown))
			be.Err(t, err, tt.want)
			be.Equal(t, len(cases), 0)
		})
	}
}

func TestInvalidExitCode(t *testing.T) {
	markdown := "## Test: x\n" +
		fence + "c\nint main() { return 0; }\n" + fence + "\n" +
		fence + "exit\nzero\n" + fence + "\n"

	cases, err := Parse([]byte(markdown))
	be.Err(t, err, nil)

	_, ok, err := cases[0].ExitCode()
	be.True(t, ok)
	be.Err(t, err, "invalid exit code in test 'x'")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.md")
	content := "## Test: file\n" +
		fence + "c\nint main() { return 3; }\n" + fence + "\n" +
		fence + "exit\n3\n" + fence + "\n"
	be.Err(t, os.WriteFile(path, []byte(content), 0o644), nil)

	cases, err := Load(path)
	be.Err(t, err, nil)
	be.Equal(t, len(cases), 1)
	be.Equal(t, cases[0].Name, "file")

	_, err = Load(filepath.Join(t.TempDir(), "missing.md"))
	be.True(t, err != nil)
}
