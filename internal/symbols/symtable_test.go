package symbols

import (
	"testing"

	"github.com/kievzenit/minic/internal/compiler_errors"
	"github.com/kievzenit/minic/internal/types"
	"github.com/nalgeon/be"
)

func kindOf(t *testing.T, err error) compiler_errors.Kind {
	t.Helper()
	kind, ok := compiler_errors.KindOf(err)
	be.True(t, ok)
	return kind
}

func TestDeclareAndResolve(t *testing.T) {
	st := NewSymbolTable()
	st.EnterFunction()

	x, err := st.Declare("x", types.Int64)
	be.Err(t, err, nil)
	be.Equal(t, x.Slot, 0)
	be.Equal(t, x.Depth, 1)

	y, err := st.Declare("y", types.Float64)
	be.Err(t, err, nil)
	be.Equal(t, y.Slot, 1)

	got, err := st.Resolve("x")
	be.Err(t, err, nil)
	be.True(t, got == x)

	be.Equal(t, st.ExitFunction(), 2)
}

func TestDuplicateInSameScope(t *testing.T) {
	st := NewSymbolTable()
	st.EnterFunction()

	_, err := st.Declare("x", types.Int64)
	be.Err(t, err, nil)

	_, err = st.Declare("x", types.Float64)
	be.Equal(t, kindOf(t, err), compiler_errors.DuplicateSymbol)
}

func TestShadowingOuterScope(t *testing.T) {
	st := NewSymbolTable()
	st.EnterFunction()

	outer, err := st.Declare("x", types.Int64)
	be.Err(t, err, nil)

	st.EnterScope()
	inner, err := st.Declare("x", types.Float64)
	be.Err(t, err, nil)
	be.True(t, inner.Slot != outer.Slot)

	got, err := st.Resolve("x")
	be.Err(t, err, nil)
	be.True(t, got == inner)

	st.ExitScope()
	got, err = st.Resolve("x")
	be.Err(t, err, nil)
	be.True(t, got == outer)
}

func TestSlotsAreNotReusedAfterExit(t *testing.T) {
	st := NewSymbolTable()
	st.EnterFunction()

	st.EnterScope()
	a, _ := st.Declare("a", types.Int64)
	st.ExitScope()

	b, err := st.Declare("b", types.Int64)
	be.Err(t, err, nil)
	be.True(t, b.Slot != a.Slot)

	_, err = st.Resolve("a")
	be.Equal(t, kindOf(t, err), compiler_errors.UnknownSymbol)
	be.Equal(t, st.ExitFunction(), 2)
}

func TestUnknownSymbol(t *testing.T) {
	st := NewSymbolTable()
	_, err := st.Resolve("missing")
	be.Equal(t, kindOf(t, err), compiler_errors.UnknownSymbol)
	be.Err(t, err, "missing is not declared")
}

func TestDeclareOutsideFunction(t *testing.T) {
	st := NewSymbolTable()
	_, err := st.Declare("x", types.Int64)
	be.Equal(t, kindOf(t, err), compiler_errors.InternalError)
}

func TestDeclareFunction(t *testing.T) {
	proto := &types.FunctionType{
		Name:       "helper",
		Args:       []types.FunctionArgType{{Type: types.Int64}},
		ReturnType: types.Int64,
	}
	def := &types.FunctionType{
		Name:       "helper",
		Args:       []types.FunctionArgType{{Name: "n", Type: types.Int64}},
		ReturnType: types.Int64,
	}

	t.Run("forward visibility", func(t *testing.T) {
		st := NewSymbolTable()
		_, err := st.DeclareFunction(def, true)
		be.Err(t, err, nil)

		st.EnterFunction()
		st.EnterScope()
		got, err := st.Resolve("helper")
		be.Err(t, err, nil)
		be.Equal(t, got.Kind, Function)
		be.Equal(t, got.Depth, 0)
	})

	t.Run("prototype then definition", func(t *testing.T) {
		st := NewSymbolTable()
		first, err := st.DeclareFunction(proto, false)
		be.Err(t, err, nil)
		second, err := st.DeclareFunction(def, true)
		be.Err(t, err, nil)
		be.True(t, first == second)
		be.True(t, second.Defined)
	})

	t.Run("two bodies", func(t *testing.T) {
		st := NewSymbolTable()
		_, err := st.DeclareFunction(def, true)
		be.Err(t, err, nil)
		_, err = st.DeclareFunction(def, true)
		be.Equal(t, kindOf(t, err), compiler_errors.DuplicateSymbol)
	})

	t.Run("conflicting signature", func(t *testing.T) {
		st := NewSymbolTable()
		_, err := st.DeclareFunction(def, true)
		be.Err(t, err, nil)
		_, err = st.DeclareFunction(&types.FunctionType{
			Name:       "helper",
			ReturnType: types.Float64,
		}, false)
		be.Equal(t, kindOf(t, err), compiler_errors.TypeMismatch)
	})
}

func TestFunctionsSorted(t *testing.T) {
	st := NewSymbolTable()
	for _, name := range []string{"main", "add", "fib"} {
		_, err := st.DeclareFunction(&types.FunctionType{Name: name, ReturnType: types.Int64}, true)
		be.Err(t, err, nil)
	}

	functions := st.Functions()
	be.Equal(t, len(functions), 3)
	be.Equal(t, functions[0].Name, "add")
	be.Equal(t, functions[1].Name, "fib")
	be.Equal(t, functions[2].Name, "main")
}
