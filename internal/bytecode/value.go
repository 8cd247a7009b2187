package bytecode

import (
	"fmt"
	"strconv"
)

type ValueKind byte

const (
	IntKind ValueKind = iota
	FloatKind
	StringKind
)

func (k ValueKind) String() string {
	switch k {
	case IntKind:
		return "int"
	case FloatKind:
		return "float"
	case StringKind:
		return "string"
	default:
		panic(fmt.Sprintf("ValueKind.String(): received illegal value kind: %d", k))
	}
}

// Value is a tagged runtime value. Only the field matching Kind is set.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Str   string
}

func IntValue(v int64) Value     { return Value{Kind: IntKind, Int: v} }
func FloatValue(v float64) Value { return Value{Kind: FloatKind, Float: v} }
func StringValue(v string) Value { return Value{Kind: StringKind, Str: v} }

func BoolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}

func (v Value) IsNumeric() bool {
	return v.Kind == IntKind || v.Kind == FloatKind
}

// AsFloat widens an int value; float values pass through.
func (v Value) AsFloat() float64 {
	if v.Kind == IntKind {
		return float64(v.Int)
	}
	return v.Float
}

// Truthy is the nonzero test used by conditional jumps.
func (v Value) Truthy() bool {
	switch v.Kind {
	case IntKind:
		return v.Int != 0
	case FloatKind:
		return v.Float != 0
	}
	return v.Str != ""
}

func (v Value) String() string {
	switch v.Kind {
	case IntKind:
		return strconv.FormatInt(v.Int, 10)
	case FloatKind:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	}
	return strconv.Quote(v.Str)
}
