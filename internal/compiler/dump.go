package compiler

import (
	"io"
	"reflect"
	"regexp"
	"strconv"

	"github.com/kievzenit/minic/internal/ast"
	"github.com/kievzenit/minic/internal/lexer"
	"github.com/sanity-io/litter"
)

var tokenPtrType = reflect.TypeOf((*lexer.Token)(nil))

var dumpOptions = litter.Options{
	HidePrivateFields: true,
	HideZeroValues:    true,
	FieldExclusions:   regexp.MustCompile(`^(StartToken|Symbol|Callee)$`),
	DumpFunc:          dumpToken,
}

// dumpToken prints operator tokens as their source text.
func dumpToken(v reflect.Value, w io.Writer) bool {
	if !v.IsValid() || v.Type() != tokenPtrType || v.IsNil() {
		return false
	}
	token := v.Interface().(*lexer.Token)
	io.WriteString(w, strconv.Quote(token.Lexeme()))
	return true
}

// DumpAST pretty-prints the tree. Source positions and symbol links are left
// out.
func DumpAST(w io.Writer, program *ast.Program) error {
	_, err := io.WriteString(w, dumpOptions.Sdump(program)+"\n")
	return err
}
