package types

import "fmt"

type FloatType struct {
	Bits int
}

func (f *FloatType) Type() string {
	return fmt.Sprintf("f%d", f.Bits)
}

func (f *FloatType) SameAs(t Type) bool {
	floatType, ok := t.(*FloatType)
	return ok && floatType.Bits == f.Bits
}

func (f *FloatType) IsNumeric() bool {
	return true
}

// CanBeImplicitlyCastedTo never allows narrowing to an integer.
func (f *FloatType) CanBeImplicitlyCastedTo(t Type) bool {
	floatType, ok := t.(*FloatType)
	if !ok {
		return false
	}

	return f.Bits < floatType.Bits
}
