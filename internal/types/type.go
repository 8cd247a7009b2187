package types

// Type is the resolved type of an expression, variable or function.
type Type interface {
	Type() string
	SameAs(t Type) bool
	IsNumeric() bool
	CanBeImplicitlyCastedTo(t Type) bool
}

var (
	Int64   Type = &IntType{Bits: 64}
	Float64 Type = &FloatType{Bits: 64}
	Void    Type = &VoidType{}
	String  Type = &StringType{}
)

// Promote returns the common type of a binary arithmetic operation, or false
// when the pair cannot take part in arithmetic.
func Promote(left, right Type) (Type, bool) {
	if !left.IsNumeric() || !right.IsNumeric() {
		return nil, false
	}

	if left.SameAs(right) {
		return left, true
	}

	if left.CanBeImplicitlyCastedTo(right) {
		return right, true
	}

	if right.CanBeImplicitlyCastedTo(left) {
		return left, true
	}

	return nil, false
}

// Assignable reports whether a value of type from may be stored into a
// location of type to without an explicit conversion.
func Assignable(from, to Type) bool {
	return from.SameAs(to) || from.CanBeImplicitlyCastedTo(to)
}

func IsVoid(t Type) bool {
	_, ok := t.(*VoidType)
	return ok
}

func IsFloat(t Type) bool {
	_, ok := t.(*FloatType)
	return ok
}

func IsInt(t Type) bool {
	_, ok := t.(*IntType)
	return ok
}
