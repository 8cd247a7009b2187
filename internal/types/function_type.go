package types

import (
	"fmt"
	"strings"
)

type FunctionType struct {
	Name       string
	Args       []FunctionArgType
	ReturnType Type
	Variadic   bool
	Extern     bool
}

type FunctionArgType struct {
	Name string
	Type
}

func (f *FunctionType) Type() string {
	args := make([]string, 0, len(f.Args)+1)
	for _, arg := range f.Args {
		args = append(args, arg.Type.Type())
	}
	if f.Variadic {
		args = append(args, "...")
	}
	return fmt.Sprintf("fun %s(%s) %s", f.Name, strings.Join(args, ", "), f.ReturnType.Type())
}

// SameAs compares signatures only; parameter names and the extern flag do
// not take part.
func (f *FunctionType) SameAs(t Type) bool {
	other, ok := t.(*FunctionType)
	if !ok {
		return false
	}

	if len(f.Args) != len(other.Args) || f.Variadic != other.Variadic {
		return false
	}

	for i := range f.Args {
		if !f.Args[i].Type.SameAs(other.Args[i].Type) {
			return false
		}
	}

	return f.ReturnType.SameAs(other.ReturnType)
}

func (f *FunctionType) IsNumeric() bool {
	return false
}

func (f *FunctionType) CanBeImplicitlyCastedTo(t Type) bool {
	return false
}

func (f *FunctionType) Arity() int {
	return len(f.Args)
}
