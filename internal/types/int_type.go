package types

import "fmt"

type IntType struct {
	Bits int
}

func (i *IntType) Type() string {
	return fmt.Sprintf("i%d", i.Bits)
}

func (i *IntType) SameAs(t Type) bool {
	intType, ok := t.(*IntType)
	return ok && intType.Bits == i.Bits
}

func (i *IntType) IsNumeric() bool {
	return true
}

func (i *IntType) CanBeImplicitlyCastedTo(t Type) bool {
	if intType, ok := t.(*IntType); ok {
		return i.Bits < intType.Bits
	}

	_, ok := t.(*FloatType)
	return ok
}
