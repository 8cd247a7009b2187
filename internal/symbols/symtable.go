package symbols

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kievzenit/minic/internal/compiler_errors"
	"github.com/kievzenit/minic/internal/types"
)

type SymbolKind int

const (
	Variable SymbolKind = iota
	Parameter
	Function
)

func (k SymbolKind) String() string {
	switch k {
	case Variable:
		return "variable"
	case Parameter:
		return "parameter"
	case Function:
		return "function"
	default:
		return "unknown"
	}
}

// Symbol is a declared name. Slot is the local-slot index inside the
// enclosing function and is -1 for functions.
type Symbol struct {
	Name  string
	Kind  SymbolKind
	Type  types.Type
	Slot  int
	Depth int

	// Defined is set on function symbols once a body has been seen.
	Defined bool
}

func (s *Symbol) String() string {
	if s.Kind == Function {
		return fmt.Sprintf("%s %s: %s", s.Kind, s.Name, s.Type.Type())
	}
	return fmt.Sprintf("%s %s: %s (slot %d, depth %d)", s.Kind, s.Name, s.Type.Type(), s.Slot, s.Depth)
}

// SymbolTable is a stack of scope frames. Frame 0 is the global frame and
// holds functions; frames above it belong to the function being analyzed.
//
// Slots are handed out monotonically per function and never reused, so a
// slot stays valid after its scope has been exited.
type SymbolTable struct {
	scopes   []map[string]*Symbol
	nextSlot int
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		scopes: []map[string]*Symbol{make(map[string]*Symbol)},
	}
}

// Depth is the index of the innermost frame; 0 means global.
func (s *SymbolTable) Depth() int {
	return len(s.scopes) - 1
}

func (s *SymbolTable) EnterFunction() {
	s.nextSlot = 0
	s.EnterScope()
}

// ExitFunction pops the function frame and returns how many slots the
// function used.
func (s *SymbolTable) ExitFunction() int {
	s.ExitScope()
	used := s.nextSlot
	s.nextSlot = 0
	return used
}

func (s *SymbolTable) EnterScope() {
	s.scopes = append(s.scopes, make(map[string]*Symbol))
}

func (s *SymbolTable) ExitScope() {
	if len(s.scopes) == 1 {
		panic("ExitScope called on the global scope")
	}
	s.scopes = s.scopes[:len(s.scopes)-1]
}

func (s *SymbolTable) Declare(name string, typ types.Type) (*Symbol, error) {
	return s.declare(name, Variable, typ)
}

func (s *SymbolTable) DeclareParam(name string, typ types.Type) (*Symbol, error) {
	return s.declare(name, Parameter, typ)
}

func (s *SymbolTable) declare(name string, kind SymbolKind, typ types.Type) (*Symbol, error) {
	if s.Depth() == 0 {
		return nil, compiler_errors.Newf(
			compiler_errors.InternalError,
			"%s %s declared outside of a function", kind, name)
	}

	current := s.scopes[len(s.scopes)-1]
	if existing, ok := current[name]; ok {
		return nil, compiler_errors.Newf(
			compiler_errors.DuplicateSymbol,
			"%s %s already declared in this scope as %s", kind, name, existing.Kind)
	}

	symbol := &Symbol{
		Name:  name,
		Kind:  kind,
		Type:  typ,
		Slot:  s.nextSlot,
		Depth: s.Depth(),
	}
	s.nextSlot++
	current[name] = symbol

	return symbol, nil
}

// DeclareFunction puts a function in the global frame. A prototype may be
// repeated or followed by a definition with the same signature; two bodies
// for one name are a duplicate.
func (s *SymbolTable) DeclareFunction(fnType *types.FunctionType, hasBody bool) (*Symbol, error) {
	global := s.scopes[0]
	if existing, ok := global[fnType.Name]; ok {
		if !existing.Type.SameAs(fnType) {
			return nil, compiler_errors.Newf(
				compiler_errors.TypeMismatch,
				"conflicting declarations of function %s: %s and %s",
				fnType.Name, existing.Type.Type(), fnType.Type())
		}

		if existing.Defined && hasBody {
			return nil, compiler_errors.Newf(
				compiler_errors.DuplicateSymbol,
				"function %s already defined", fnType.Name)
		}

		if hasBody {
			existing.Defined = true
			existing.Type = fnType
		}
		return existing, nil
	}

	symbol := &Symbol{
		Name:    fnType.Name,
		Kind:    Function,
		Type:    fnType,
		Slot:    -1,
		Depth:   0,
		Defined: hasBody,
	}
	global[fnType.Name] = symbol

	return symbol, nil
}

func (s *SymbolTable) Resolve(name string) (*Symbol, error) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if symbol, ok := s.scopes[i][name]; ok {
			return symbol, nil
		}
	}

	return nil, compiler_errors.Newf(compiler_errors.UnknownSymbol, "%s is not declared", name)
}

// Functions returns the global function symbols sorted by name.
func (s *SymbolTable) Functions() []*Symbol {
	functions := make([]*Symbol, 0, len(s.scopes[0]))
	for _, symbol := range s.scopes[0] {
		functions = append(functions, symbol)
	}
	sort.Slice(functions, func(i, j int) bool {
		return functions[i].Name < functions[j].Name
	})
	return functions
}

// String returns a deterministically ordered dump of the active frames.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	for depth, scope := range s.scopes {
		fmt.Fprintf(&sb, "Scope %d:\n", depth)
		names := make([]string, 0, len(scope))
		for name := range scope {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&sb, "  %s\n", scope[name])
		}
	}
	return sb.String()
}
