package ast

import "github.com/kievzenit/minic/internal/lexer"

// TypeNode is a type name as written in source: int, float, double or void.
type TypeNode struct {
	StartToken *lexer.Token

	Name string
}

func (t *TypeNode) TypeName() string {
	return t.Name
}
