package types

// StringType is the type of string literals. Strings only travel into extern
// functions; they cannot be stored or computed on.
type StringType struct{}

func (*StringType) Type() string {
	return "string"
}

func (*StringType) SameAs(t Type) bool {
	_, ok := t.(*StringType)
	return ok
}

func (*StringType) IsNumeric() bool {
	return false
}

func (*StringType) CanBeImplicitlyCastedTo(t Type) bool {
	return false
}
