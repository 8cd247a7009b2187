package vm

import (
	"bytes"
	"math"
	"testing"

	"github.com/kievzenit/minic/internal/bytecode"
	"github.com/kievzenit/minic/internal/compiler_errors"
	"github.com/nalgeon/be"
)

func ins(op bytecode.Opcode, operands ...int) bytecode.Instruction {
	instruction := bytecode.Instruction{Op: op}
	if len(operands) > 0 {
		instruction.A = operands[0]
	}
	if len(operands) > 1 {
		instruction.B = operands[1]
	}
	return instruction
}

func mainOnly(locals int, constants []bytecode.Value, code ...bytecode.Instruction) *bytecode.Program {
	return &bytecode.Program{
		Functions: []*bytecode.Function{{
			Name:         "main",
			LocalCount:   locals,
			ReturnsValue: true,
			Constants:    constants,
			Code:         code,
		}},
		Entry: 0,
	}
}

func ints(values ...int64) []bytecode.Value {
	result := make([]bytecode.Value, len(values))
	for i, v := range values {
		result[i] = bytecode.IntValue(v)
	}
	return result
}

func faultKind(t *testing.T, err error) compiler_errors.Kind {
	t.Helper()
	kind, ok := compiler_errors.KindOf(err)
	be.True(t, ok)
	return kind
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		a, b int64
		op   bytecode.Opcode
		want int64
	}{
		{"add", 2, 3, bytecode.Add, 5},
		{"sub", 2, 3, bytecode.Sub, -1},
		{"mul", 6, 7, bytecode.Mul, 42},
		{"div truncates", -7, 2, bytecode.Div, -3},
		{"mod sign follows dividend", -7, 2, bytecode.Mod, -1},
		{"add wraps", math.MaxInt64, 1, bytecode.Add, math.MinInt64},
		{"min div minus one wraps", math.MinInt64, -1, bytecode.Div, math.MinInt64},
		{"lt", 1, 2, bytecode.Lt, 1},
		{"ge", 1, 2, bytecode.Ge, 0},
		{"eq", 4, 4, bytecode.Eq, 1},
		{"ne", 4, 4, bytecode.Ne, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program := mainOnly(0, ints(tt.a, tt.b),
				ins(bytecode.PushConst, 0),
				ins(bytecode.PushConst, 1),
				ins(tt.op),
				ins(bytecode.Return),
			)

			machine := New(program, Options{})
			got, err := machine.Run()
			be.Err(t, err, nil)
			be.Equal(t, got, tt.want)
			be.Equal(t, machine.State(), Halted)
		})
	}
}

func TestFloatArithmeticAndPromotion(t *testing.T) {
	// (1 + 2.5) > 3 leaves 1
	program := mainOnly(0, []bytecode.Value{bytecode.IntValue(1), bytecode.FloatValue(2.5), bytecode.IntValue(3)},
		ins(bytecode.PushConst, 0),
		ins(bytecode.PushConst, 1),
		ins(bytecode.Add),
		ins(bytecode.PushConst, 2),
		ins(bytecode.Gt),
		ins(bytecode.Return),
	)

	got, err := New(program, Options{}).Run()
	be.Err(t, err, nil)
	be.Equal(t, got, int64(1))

	result, fault := binary(bytecode.Div, bytecode.FloatValue(1), bytecode.IntValue(0))
	be.True(t, fault == nil)
	be.True(t, math.IsInf(result.Float, 1))

	widened, fault := unary(bytecode.IntToFloat, bytecode.IntValue(3))
	be.True(t, fault == nil)
	be.Equal(t, widened, bytecode.FloatValue(3))

	not, fault := unary(bytecode.Not, bytecode.FloatValue(0))
	be.True(t, fault == nil)
	be.Equal(t, not, bytecode.IntValue(1))
}

func TestLocalsAndJumps(t *testing.T) {
	// sum = 0; for i = 0; i < 5; i++ { sum += i }; return sum
	program := mainOnly(2, ints(0, 5, 1),
		ins(bytecode.PushConst, 0), // 0
		ins(bytecode.StoreLocal, 0),
		ins(bytecode.PushConst, 0),
		ins(bytecode.StoreLocal, 1),
		ins(bytecode.LoadLocal, 1), // 4: head
		ins(bytecode.PushConst, 1),
		ins(bytecode.Lt),
		ins(bytecode.JumpIfFalse, 17),
		ins(bytecode.LoadLocal, 0),
		ins(bytecode.LoadLocal, 1),
		ins(bytecode.Add),
		ins(bytecode.StoreLocal, 0),
		ins(bytecode.LoadLocal, 1),
		ins(bytecode.PushConst, 2),
		ins(bytecode.Add),
		ins(bytecode.StoreLocal, 1),
		ins(bytecode.Jump, 4),
		ins(bytecode.LoadLocal, 0), // 17: exit
		ins(bytecode.Return),
	)

	got, err := New(program, Options{}).Run()
	be.Err(t, err, nil)
	be.Equal(t, got, int64(10))
}

func TestJumpIfTrueAndDup(t *testing.T) {
	program := mainOnly(1, ints(7, 99),
		ins(bytecode.PushConst, 0),
		ins(bytecode.Dup),
		ins(bytecode.StoreLocal, 0),
		ins(bytecode.JumpIfTrue, 6),
		ins(bytecode.PushConst, 1),
		ins(bytecode.Return),
		ins(bytecode.LoadLocal, 0),
		ins(bytecode.Return),
	)

	got, err := New(program, Options{}).Run()
	be.Err(t, err, nil)
	be.Equal(t, got, int64(7))
}

func TestDupFeedsJumpIfFalse(t *testing.T) {
	program := mainOnly(1, ints(0, 99),
		ins(bytecode.PushConst, 0),
		ins(bytecode.Dup),
		ins(bytecode.StoreLocal, 0),
		ins(bytecode.JumpIfFalse, 6),
		ins(bytecode.PushConst, 1),
		ins(bytecode.Return),
		ins(bytecode.LoadLocal, 0),
		ins(bytecode.Return),
	)

	got, err := New(program, Options{}).Run()
	be.Err(t, err, nil)
	be.Equal(t, got, int64(0))
}

func TestCallsAndFrames(t *testing.T) {
	add := &bytecode.Function{
		Name:         "add",
		Arity:        2,
		LocalCount:   2,
		ReturnsValue: true,
		Code: []bytecode.Instruction{
			ins(bytecode.LoadLocal, 0),
			ins(bytecode.LoadLocal, 1),
			ins(bytecode.Add),
			ins(bytecode.Return),
		},
	}
	noop := &bytecode.Function{
		Name: "noop",
		Code: []bytecode.Instruction{ins(bytecode.ReturnVoid)},
	}
	main := &bytecode.Function{
		Name:         "main",
		ReturnsValue: true,
		Constants:    ints(30, 12),
		Code: []bytecode.Instruction{
			ins(bytecode.Call, 1, 0),
			ins(bytecode.PushConst, 0),
			ins(bytecode.PushConst, 1),
			ins(bytecode.Call, 0, 2),
			ins(bytecode.Return),
		},
	}

	program := &bytecode.Program{Functions: []*bytecode.Function{add, noop, main}, Entry: 2}
	got, err := New(program, Options{}).Run()
	be.Err(t, err, nil)
	be.Equal(t, got, int64(42))
}

func TestHalt(t *testing.T) {
	program := mainOnly(0, ints(3),
		ins(bytecode.PushConst, 0),
		ins(bytecode.Halt),
		ins(bytecode.Return),
	)

	machine := New(program, Options{})
	got, err := machine.Run()
	be.Err(t, err, nil)
	be.Equal(t, got, int64(3))
	be.Equal(t, machine.Result(), int64(3))
}

func TestFaults(t *testing.T) {
	recursive := &bytecode.Function{
		Name:         "main",
		ReturnsValue: true,
		Code: []bytecode.Instruction{
			ins(bytecode.Call, 0, 0),
			ins(bytecode.Return),
		},
	}

	tests := []struct {
		name    string
		program *bytecode.Program
		options Options
		kind    compiler_errors.Kind
	}{
		{"divide by zero", mainOnly(0, ints(5, 0), ins(bytecode.PushConst, 0), ins(bytecode.PushConst, 1), ins(bytecode.Div), ins(bytecode.Return)), Options{}, compiler_errors.DivideByZero},
		{"remainder by zero", mainOnly(0, ints(5, 0), ins(bytecode.PushConst, 0), ins(bytecode.PushConst, 1), ins(bytecode.Mod), ins(bytecode.Return)), Options{}, compiler_errors.DivideByZero},
		{"underflow", mainOnly(0, nil, ins(bytecode.Add), ins(bytecode.Return)), Options{}, compiler_errors.StackUnderflow},
		{"return underflow", mainOnly(0, nil, ins(bytecode.Return)), Options{}, compiler_errors.StackUnderflow},
		{"load slot", mainOnly(1, nil, ins(bytecode.LoadLocal, 1), ins(bytecode.Return)), Options{}, compiler_errors.InvalidSlot},
		{"store slot", mainOnly(0, ints(1), ins(bytecode.PushConst, 0), ins(bytecode.StoreLocal, -1)), Options{}, compiler_errors.InvalidSlot},
		{"bad jump", mainOnly(0, nil, ins(bytecode.Jump, 10)), Options{}, compiler_errors.InvalidJump},
		{"fall off end", mainOnly(0, ints(1), ins(bytecode.PushConst, 0)), Options{}, compiler_errors.InvalidJump},
		{"unknown function", mainOnly(0, nil, ins(bytecode.Call, 4, 0), ins(bytecode.Return)), Options{}, compiler_errors.UnknownFunction},
		{"unbound extern", &bytecode.Program{
			Functions: mainOnly(0, nil, ins(bytecode.CallExtern, 0, 0), ins(bytecode.ReturnVoid)).Functions,
			Externs:   []*bytecode.Extern{{Name: "launch"}},
			Entry:     0,
		}, Options{}, compiler_errors.UnknownFunction},
		{"missing entry", &bytecode.Program{Entry: -1}, Options{}, compiler_errors.MissingEntry},
		{"call depth", &bytecode.Program{Functions: []*bytecode.Function{recursive}, Entry: 0}, Options{MaxCallDepth: 64}, compiler_errors.CallDepthExceeded},
		{"string arithmetic", mainOnly(0, []bytecode.Value{bytecode.StringValue("a"), bytecode.IntValue(1)},
			ins(bytecode.PushConst, 0), ins(bytecode.PushConst, 1), ins(bytecode.Add), ins(bytecode.Return)), Options{}, compiler_errors.TypeFault},
		{"float result from main", mainOnly(0, []bytecode.Value{bytecode.FloatValue(1)},
			ins(bytecode.PushConst, 0), ins(bytecode.Return)), Options{}, compiler_errors.TypeFault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := New(tt.program, tt.options)
			got, err := machine.Run()
			be.Equal(t, got, int64(0))
			be.Equal(t, faultKind(t, err), tt.kind)
			be.Equal(t, machine.State(), Faulted)

			fault, ok := err.(*Fault)
			be.True(t, ok)
			be.True(t, fault.Message != "")
		})
	}
}

func TestFaultPosition(t *testing.T) {
	program := mainOnly(0, ints(5, 0),
		ins(bytecode.PushConst, 0),
		ins(bytecode.PushConst, 1),
		ins(bytecode.Div),
		ins(bytecode.Return),
	)

	_, err := New(program, Options{}).Run()
	be.Err(t, err, "DivideByZero: integer division by zero (in main at pc 2)")
}

func TestRunIsRepeatable(t *testing.T) {
	program := mainOnly(0, ints(14), ins(bytecode.PushConst, 0), ins(bytecode.Return))
	machine := New(program, Options{})

	for range 3 {
		got, err := machine.Run()
		be.Err(t, err, nil)
		be.Equal(t, got, int64(14))
	}
}

func TestRegisterNative(t *testing.T) {
	var seen []bytecode.Value
	program := &bytecode.Program{
		Functions: mainOnly(0, ints(20, 22),
			ins(bytecode.PushConst, 0),
			ins(bytecode.PushConst, 1),
			ins(bytecode.CallExtern, 0, 2),
			ins(bytecode.Return),
		).Functions,
		Externs: []*bytecode.Extern{{Name: "sum", Arity: 2, ReturnsValue: true}},
		Entry:   0,
	}

	machine := New(program, Options{})
	machine.RegisterNative("sum", func(args []bytecode.Value) (bytecode.Value, error) {
		seen = args
		return bytecode.IntValue(args[0].Int + args[1].Int), nil
	})

	got, err := machine.Run()
	be.Err(t, err, nil)
	be.Equal(t, got, int64(42))
	be.Equal(t, seen, ints(20, 22))
}

func TestPrintfExtern(t *testing.T) {
	var out bytes.Buffer
	program := &bytecode.Program{
		Functions: mainOnly(0, []bytecode.Value{bytecode.StringValue("n=%d f=%.2f\n"), bytecode.IntValue(7), bytecode.FloatValue(1.5)},
			ins(bytecode.PushConst, 0),
			ins(bytecode.PushConst, 1),
			ins(bytecode.PushConst, 2),
			ins(bytecode.CallExtern, 0, 3),
			ins(bytecode.Return),
		).Functions,
		Externs: []*bytecode.Extern{{Name: "printf", Arity: 1, Variadic: true, ReturnsValue: true}},
		Entry:   0,
	}

	got, err := New(program, Options{Output: &out}).Run()
	be.Err(t, err, nil)
	be.Equal(t, out.String(), "n=7 f=1.50\n")
	be.Equal(t, got, int64(len("n=7 f=1.50\n")))
}

func TestFormatC(t *testing.T) {
	tests := []struct {
		format string
		args   []bytecode.Value
		want   string
	}{
		{"plain", nil, "plain"},
		{"%d%%", ints(5), "5%"},
		{"%i %ld %lld", ints(1, 2, 3), "1 2 3"},
		{"[%5d|%-3d]", ints(42, 7), "[   42|7  ]"},
		{"%f", []bytecode.Value{bytecode.FloatValue(3)}, "3.000000"},
		{"%g %g", []bytecode.Value{bytecode.FloatValue(0.1), bytecode.FloatValue(123456789)}, "0.1 1.23457e+08"},
		{"%e", []bytecode.Value{bytecode.FloatValue(1234.5)}, "1.234500e+03"},
		{"%s!", []bytecode.Value{bytecode.StringValue("hi")}, "hi!"},
		{"%c%c", ints(72, 105), "Hi"},
		{"%x", ints(255), "ff"},
		{"%u %x %X %o", ints(-1, -1, -1, 8), "18446744073709551615 ffffffffffffffff FFFFFFFFFFFFFFFF 10"},
		{"%d|%u", ints(-1, 3), "-1|3"},
		{"%f", ints(2), "2.000000"},
		{"%d", []bytecode.Value{bytecode.FloatValue(2.9)}, "2"},
		{"%q", nil, "%q"},
		{"%.2f|%5g|%E", []bytecode.Value{
			bytecode.FloatValue(math.Inf(1)), bytecode.FloatValue(math.Inf(-1)), bytecode.FloatValue(math.NaN()),
		}, "inf| -inf|NAN"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			got, err := FormatC(tt.format, tt.args)
			be.Err(t, err, nil)
			be.Equal(t, got, tt.want)
		})
	}

	_, err := FormatC("%d %d", ints(1))
	be.Err(t, err, errMissingArgument)
}
