package headers

import (
	"sort"

	"github.com/kievzenit/minic/internal/types"
)

// Registry maps header names to the extern prototypes an #include brings
// into scope. There is no preprocessor; a header is only a list of
// signatures resolved later by the VM host or the native linker.
type Registry struct {
	headers map[string][]*types.FunctionType
}

func NewRegistry() *Registry {
	r := &Registry{
		headers: make(map[string][]*types.FunctionType),
	}

	r.Register("stdio.h", &types.FunctionType{
		Name: "printf",
		Args: []types.FunctionArgType{
			{Name: "format", Type: types.String},
		},
		ReturnType: types.Int64,
		Variadic:   true,
		Extern:     true,
	})

	return r
}

func (r *Registry) Register(header string, prototypes ...*types.FunctionType) {
	r.headers[header] = append(r.headers[header], prototypes...)
}

// Lookup returns the prototypes of header. Unknown headers yield nothing
// and ok is false.
func (r *Registry) Lookup(header string) ([]*types.FunctionType, bool) {
	prototypes, ok := r.headers[header]
	return prototypes, ok
}

func (r *Registry) Headers() []string {
	names := make([]string, 0, len(r.headers))
	for name := range r.headers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
