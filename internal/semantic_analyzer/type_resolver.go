package semantic_analyzer

import (
	"github.com/kievzenit/minic/internal/ast"
	"github.com/kievzenit/minic/internal/types"
)

// TypeResolver maps type names written in source to resolved types.
type TypeResolver struct {
	builtinTypesMap map[string]types.Type
}

func (tr *TypeResolver) defineBuiltInTypes() {
	tr.builtinTypesMap["int"] = types.Int64
	tr.builtinTypesMap["float"] = types.Float64
	tr.builtinTypesMap["double"] = types.Float64
	tr.builtinTypesMap["void"] = types.Void
}

func NewTypeResolver() *TypeResolver {
	tr := &TypeResolver{
		builtinTypesMap: make(map[string]types.Type),
	}
	tr.defineBuiltInTypes()
	return tr
}

func (tr *TypeResolver) GetType(typeNode *ast.TypeNode) (types.Type, bool) {
	t, ok := tr.builtinTypesMap[typeNode.TypeName()]
	return t, ok
}

// FunctionType builds the signature of a declaration. The bool result is
// false when a name does not resolve to a type.
func (tr *TypeResolver) FunctionType(funcDeclStmt *ast.FuncDeclStmt) (*types.FunctionType, bool) {
	returnType, ok := tr.GetType(funcDeclStmt.ReturnType)
	if !ok {
		return nil, false
	}

	args := make([]types.FunctionArgType, 0, len(funcDeclStmt.Args))
	for _, arg := range funcDeclStmt.Args {
		argType, ok := tr.GetType(arg.Type)
		if !ok {
			return nil, false
		}
		args = append(args, types.FunctionArgType{
			Name: arg.Name,
			Type: argType,
		})
	}

	return &types.FunctionType{
		Name:       funcDeclStmt.Name,
		Args:       args,
		ReturnType: returnType,
		Variadic:   funcDeclStmt.Variadic,
		Extern:     funcDeclStmt.Extern || funcDeclStmt.Body == nil,
	}, true
}
