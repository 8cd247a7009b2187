package headers

import (
	"testing"

	"github.com/kievzenit/minic/internal/types"
	"github.com/nalgeon/be"
)

func TestStdioProvidesPrintf(t *testing.T) {
	r := NewRegistry()

	prototypes, ok := r.Lookup("stdio.h")
	be.True(t, ok)
	be.Equal(t, len(prototypes), 1)

	printf := prototypes[0]
	be.Equal(t, printf.Name, "printf")
	be.True(t, printf.Variadic)
	be.True(t, printf.Extern)
	be.Equal(t, printf.Arity(), 1)
	be.True(t, printf.ReturnType.SameAs(types.Int64))
}

func TestUnknownHeader(t *testing.T) {
	r := NewRegistry()

	prototypes, ok := r.Lookup("stdlib.h")
	be.True(t, !ok)
	be.Equal(t, len(prototypes), 0)
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	r.Register("mylib.h", &types.FunctionType{Name: "tick", ReturnType: types.Void, Extern: true})

	prototypes, ok := r.Lookup("mylib.h")
	be.True(t, ok)
	be.Equal(t, prototypes[0].Name, "tick")
	be.Equal(t, r.Headers(), []string{"mylib.h", "stdio.h"})
}
