package model

// TypeRegistry indexes two trees (AST and runtime-state) by type tag.
// An element with N types is registered under each of its N type tags.
type TypeRegistry struct {
	astByType          map[string][]*ModelElement
	runtimeStateByType map[string][]*ModelElement
}

// NewTypeRegistry builds an empty registry; call SetAST/SetRuntimeState
// to (re)populate either half.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		astByType:          make(map[string][]*ModelElement),
		runtimeStateByType: make(map[string][]*ModelElement),
	}
}

// SetAST (re)indexes the AST half of the registry from root.
func (r *TypeRegistry) SetAST(root *ModelElement) {
	r.astByType = indexByType(root)
}

// SetRuntimeState (re)indexes the runtime-state half of the registry
// from root.
func (r *TypeRegistry) SetRuntimeState(root *ModelElement) {
	r.runtimeStateByType = indexByType(root)
}

func indexByType(root *ModelElement) map[string][]*ModelElement {
	out := make(map[string][]*ModelElement)
	Walk(root, func(e *ModelElement) {
		for _, t := range e.Types {
			out[t] = append(out[t], e)
		}
	})
	return out
}

// GetModelElementsFromType concatenates the AST matches (first) and the
// runtime-state matches (second) for the given type tag.
func (r *TypeRegistry) GetModelElementsFromType(t string) []*ModelElement {
	out := make([]*ModelElement, 0, len(r.astByType[t])+len(r.runtimeStateByType[t]))
	out = append(out, r.astByType[t]...)
	out = append(out, r.runtimeStateByType[t]...)
	return out
}
