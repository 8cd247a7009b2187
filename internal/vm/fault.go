package vm

import (
	"fmt"

	"github.com/kievzenit/minic/internal/compiler_errors"
)

// Fault stops an execution. It is terminal for the run that raised it.
type Fault struct {
	Kind    compiler_errors.Kind
	Message string

	Function string
	PC       int
}

func (f *Fault) GetMessage() string           { return f.Message }
func (f *Fault) GetKind() compiler_errors.Kind { return f.Kind }

func (f *Fault) Error() string {
	if f.Function == "" {
		return fmt.Sprintf("%s: %s", f.Kind, f.Message)
	}
	return fmt.Sprintf("%s: %s (in %s at pc %d)", f.Kind, f.Message, f.Function, f.PC)
}

func newFault(kind compiler_errors.Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
