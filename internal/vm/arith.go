package vm

import (
	"github.com/kievzenit/minic/internal/bytecode"
	"github.com/kievzenit/minic/internal/compiler_errors"
)

// binary applies op to two values. Int operands use wrapping two's
// complement arithmetic with truncating division. A mixed pair is widened
// to float.
func binary(op bytecode.Opcode, left, right bytecode.Value) (bytecode.Value, *Fault) {
	if !left.IsNumeric() || !right.IsNumeric() {
		return bytecode.Value{}, newFault(compiler_errors.TypeFault, "%s on %s and %s values", op, left.Kind, right.Kind)
	}

	if left.Kind == bytecode.IntKind && right.Kind == bytecode.IntKind {
		return intBinary(op, left.Int, right.Int)
	}
	return floatBinary(op, left.AsFloat(), right.AsFloat())
}

func intBinary(op bytecode.Opcode, l, r int64) (bytecode.Value, *Fault) {
	switch op {
	case bytecode.Add:
		return bytecode.IntValue(l + r), nil
	case bytecode.Sub:
		return bytecode.IntValue(l - r), nil
	case bytecode.Mul:
		return bytecode.IntValue(l * r), nil
	case bytecode.Div:
		if r == 0 {
			return bytecode.Value{}, newFault(compiler_errors.DivideByZero, "integer division by zero")
		}
		return bytecode.IntValue(l / r), nil
	case bytecode.Mod:
		if r == 0 {
			return bytecode.Value{}, newFault(compiler_errors.DivideByZero, "integer remainder by zero")
		}
		return bytecode.IntValue(l % r), nil
	case bytecode.Eq:
		return bytecode.BoolValue(l == r), nil
	case bytecode.Ne:
		return bytecode.BoolValue(l != r), nil
	case bytecode.Lt:
		return bytecode.BoolValue(l < r), nil
	case bytecode.Le:
		return bytecode.BoolValue(l <= r), nil
	case bytecode.Gt:
		return bytecode.BoolValue(l > r), nil
	case bytecode.Ge:
		return bytecode.BoolValue(l >= r), nil
	}
	return bytecode.Value{}, newFault(compiler_errors.TypeFault, "%s is not a binary operator", op)
}

func floatBinary(op bytecode.Opcode, l, r float64) (bytecode.Value, *Fault) {
	switch op {
	case bytecode.Add:
		return bytecode.FloatValue(l + r), nil
	case bytecode.Sub:
		return bytecode.FloatValue(l - r), nil
	case bytecode.Mul:
		return bytecode.FloatValue(l * r), nil
	case bytecode.Div:
		return bytecode.FloatValue(l / r), nil
	case bytecode.Eq:
		return bytecode.BoolValue(l == r), nil
	case bytecode.Ne:
		return bytecode.BoolValue(l != r), nil
	case bytecode.Lt:
		return bytecode.BoolValue(l < r), nil
	case bytecode.Le:
		return bytecode.BoolValue(l <= r), nil
	case bytecode.Gt:
		return bytecode.BoolValue(l > r), nil
	case bytecode.Ge:
		return bytecode.BoolValue(l >= r), nil
	}
	return bytecode.Value{}, newFault(compiler_errors.TypeFault, "%s is not defined on float values", op)
}

func unary(op bytecode.Opcode, v bytecode.Value) (bytecode.Value, *Fault) {
	if !v.IsNumeric() {
		return bytecode.Value{}, newFault(compiler_errors.TypeFault, "%s on %s value", op, v.Kind)
	}

	switch op {
	case bytecode.Neg:
		if v.Kind == bytecode.IntKind {
			return bytecode.IntValue(-v.Int), nil
		}
		return bytecode.FloatValue(-v.Float), nil
	case bytecode.Not:
		return bytecode.BoolValue(!v.Truthy()), nil
	case bytecode.IntToFloat:
		return bytecode.FloatValue(v.AsFloat()), nil
	}
	return bytecode.Value{}, newFault(compiler_errors.TypeFault, "%s is not a unary operator", op)
}
