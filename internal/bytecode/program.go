package bytecode

import (
	"fmt"
	"strings"
)

// Function is one lowered function. Jump targets in Code are absolute
// indices into Code.
type Function struct {
	Name         string
	Arity        int
	LocalCount   int
	ReturnsValue bool
	Constants    []Value
	Code         []Instruction
}

// Extern is a function without a body, bound at run time to a host
// function of the same name.
type Extern struct {
	Name         string
	Arity        int
	Variadic     bool
	ReturnsValue bool
}

type Program struct {
	Functions []*Function
	Externs   []*Extern

	// Entry is the index of main in Functions, or -1.
	Entry int
}

func (p *Program) FunctionIndex(name string) (int, bool) {
	for i, fn := range p.Functions {
		if fn.Name == name {
			return i, true
		}
	}
	return -1, false
}

func (p *Program) ExternIndex(name string) (int, bool) {
	for i, ext := range p.Externs {
		if ext.Name == name {
			return i, true
		}
	}
	return -1, false
}

// String disassembles the whole program.
func (p *Program) String() string {
	var sb strings.Builder

	for i, ext := range p.Externs {
		variadic := ""
		if ext.Variadic {
			variadic = ", ..."
		}
		fmt.Fprintf(&sb, "extern #%d %s/%d%s\n", i, ext.Name, ext.Arity, variadic)
	}
	if len(p.Externs) > 0 {
		sb.WriteString("\n")
	}

	for i, fn := range p.Functions {
		if i > 0 {
			sb.WriteString("\n")
		}
		entry := ""
		if i == p.Entry {
			entry = " (entry)"
		}
		fmt.Fprintf(&sb, "func #%d %s/%d locals=%d%s\n", i, fn.Name, fn.Arity, fn.LocalCount, entry)
		sb.WriteString(fn.Disassemble(p))
	}

	return sb.String()
}

// Disassemble lists the instructions of fn. When p is not nil call operands
// are annotated with callee names.
func (fn *Function) Disassemble(p *Program) string {
	var sb strings.Builder
	for pc, instruction := range fn.Code {
		fmt.Fprintf(&sb, "  %04d  %s", pc, instruction)

		switch instruction.Op {
		case PushConst:
			if instruction.A >= 0 && instruction.A < len(fn.Constants) {
				fmt.Fprintf(&sb, "  ; %s", fn.Constants[instruction.A])
			}
		case Call:
			if p != nil && instruction.A >= 0 && instruction.A < len(p.Functions) {
				fmt.Fprintf(&sb, "  ; %s", p.Functions[instruction.A].Name)
			}
		case CallExtern:
			if p != nil && instruction.A >= 0 && instruction.A < len(p.Externs) {
				fmt.Fprintf(&sb, "  ; %s", p.Externs[instruction.A].Name)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
