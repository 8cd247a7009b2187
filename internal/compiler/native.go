package compiler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kievzenit/minic/internal/emitter"
)

// EmitNative lowers src to textual LLVM IR.
func EmitNative(src []byte, options Options) (string, error) {
	options = options.withDefaults()

	unit, err := Check(src, options)
	if err != nil {
		return "", err
	}

	e := emitter.NewEmitter(unit.Program, unit.Symbols)
	defer e.Dispose()

	module, err := e.Emit()
	if err != nil {
		return "", err
	}

	ir := module.String()
	options.tracef("emitted %d bytes of IR", len(ir))
	return ir, nil
}

// OutputName is the default executable name for a source file: the input
// path without its .c extension, plus .out.
func OutputName(input string) string {
	return strings.TrimSuffix(input, ".c") + ".out"
}

// BuildExecutable compiles src to an executable at output by handing the IR
// to clang, or to the driver named by the CC environment variable.
func BuildExecutable(ctx context.Context, src []byte, output string, options Options) error {
	options = options.withDefaults()

	ir, err := EmitNative(src, options)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "minic-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	irPath := filepath.Join(dir, strings.TrimSuffix(filepath.Base(options.FileName), ".c")+".ll")
	if err := os.WriteFile(irPath, []byte(ir), 0o644); err != nil {
		return err
	}

	driver := os.Getenv("CC")
	if driver == "" {
		driver = "clang"
	}

	cmd := exec.CommandContext(ctx, driver, irPath, "-o", output, "-Wno-override-module")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s failed: %w\n%s", driver, err, out)
	}
	options.tracef("linked %s with %s", output, driver)
	return nil
}
