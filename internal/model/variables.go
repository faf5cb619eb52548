package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Variable is one entry returned by VariableHandler.GetVariables: the
// generic (name, display value, child handle) triple the IDE's
// variables request is projected into, independent of DAP's own wire
// shape (internal/dap maps this onto dap.Variable).
type Variable struct {
	Name               string
	Value              string
	VariablesReference int // 0 when the value has no children
}

// AST root / runtime-state root get permanently reserved handles.
const (
	ASTRootHandle          = 1
	RuntimeStateRootHandle = 2
	firstDynamicHandle     = 3
)

type entryKind int

const (
	kindElement entryKind = iota
	kindChildSeq
	kindRefSeq
)

type tableEntry struct {
	kind     entryKind
	element  *ModelElement
	childSeq []*ModelElement
	refSeq   []string
}

type seqKey struct {
	elem  *ModelElement
	field string
}

// VariableHandler projects the AST and runtime-state trees into the flat
// (handle -> children) shape the IDE's variables request walks lazily,
// minting a fresh handle the first time a given element or sequence is
// referenced and memoizing it for the life of the current runtime state.
type VariableHandler struct {
	astRoot     *ModelElement
	runtimeRoot *ModelElement
	astIndex    map[string]*ModelElement
	runtimeIdx  map[string]*ModelElement

	table          map[int]tableEntry
	nextHandle     int
	elemHandle     map[*ModelElement]int
	childSeqHandle map[seqKey]int
	refSeqHandle   map[seqKey]int
}

// NewVariableHandler constructs a handler from the AST root, seeding the
// reference table with AST-root -> ASTRootHandle.
func NewVariableHandler(astRoot *ModelElement) *VariableHandler {
	h := &VariableHandler{astRoot: astRoot, astIndex: Index(astRoot)}
	h.reset(false)
	return h
}

// InvalidateRuntime drops the runtime-state tree and clears the handle
// table, re-seeding only the AST root.
func (h *VariableHandler) InvalidateRuntime() {
	h.runtimeRoot = nil
	h.runtimeIdx = nil
	h.reset(false)
}

// UpdateRuntime replaces the runtime-state tree and clears the handle
// table, re-seeding both roots.
func (h *VariableHandler) UpdateRuntime(root *ModelElement) {
	h.runtimeRoot = root
	h.runtimeIdx = Index(root)
	h.reset(true)
}

func (h *VariableHandler) reset(seedRuntime bool) {
	h.table = make(map[int]tableEntry)
	h.elemHandle = make(map[*ModelElement]int)
	h.childSeqHandle = make(map[seqKey]int)
	h.refSeqHandle = make(map[seqKey]int)
	h.nextHandle = firstDynamicHandle

	h.table[ASTRootHandle] = tableEntry{kind: kindElement, element: h.astRoot}
	h.elemHandle[h.astRoot] = ASTRootHandle

	if seedRuntime && h.runtimeRoot != nil {
		h.table[RuntimeStateRootHandle] = tableEntry{kind: kindElement, element: h.runtimeRoot}
		h.elemHandle[h.runtimeRoot] = RuntimeStateRootHandle
	}
}

func (h *VariableHandler) handleForElement(e *ModelElement) int {
	if hdl, ok := h.elemHandle[e]; ok {
		return hdl
	}
	hdl := h.nextHandle
	h.nextHandle++
	h.elemHandle[e] = hdl
	h.table[hdl] = tableEntry{kind: kindElement, element: e}
	return hdl
}

func (h *VariableHandler) handleForChildSeq(owner *ModelElement, field string, seq []*ModelElement) int {
	key := seqKey{owner, field}
	if hdl, ok := h.childSeqHandle[key]; ok {
		return hdl
	}
	hdl := h.nextHandle
	h.nextHandle++
	h.childSeqHandle[key] = hdl
	h.table[hdl] = tableEntry{kind: kindChildSeq, childSeq: seq}
	return hdl
}

func (h *VariableHandler) handleForRefSeq(owner *ModelElement, field string, seq []string) int {
	key := seqKey{owner, field}
	if hdl, ok := h.refSeqHandle[key]; ok {
		return hdl
	}
	hdl := h.nextHandle
	h.nextHandle++
	h.refSeqHandle[key] = hdl
	h.table[hdl] = tableEntry{kind: kindRefSeq, refSeq: seq}
	return hdl
}

func (h *VariableHandler) resolveRef(id string) (*ModelElement, bool) {
	if e, ok := h.astIndex[id]; ok {
		return e, true
	}
	if h.runtimeIdx != nil {
		if e, ok := h.runtimeIdx[id]; ok {
			return e, true
		}
	}
	return nil, false
}

// GetVariables dispatches on the object behind handle across three
// cases: a ModelElement (attributes, then refs, then children), a
// child sequence (generic object rendering per element), or a ref
// sequence (each id rendered as a reference).
func (h *VariableHandler) GetVariables(handle int) ([]Variable, error) {
	entry, ok := h.table[handle]
	if !ok {
		return nil, fmt.Errorf("model: unknown variable reference %d", handle)
	}
	switch entry.kind {
	case kindElement:
		return h.variablesForElement(entry.element), nil
	case kindChildSeq:
		return h.variablesForChildSeq(entry.childSeq), nil
	case kindRefSeq:
		return h.variablesForRefSeq(entry.refSeq), nil
	}
	return nil, fmt.Errorf("model: unreachable entry kind for reference %d", handle)
}

func (h *VariableHandler) variablesForElement(e *ModelElement) []Variable {
	var out []Variable
	for _, name := range sortedKeys(e.Attributes) {
		out = append(out, Variable{Name: name, Value: serializePrimitive(e.Attributes[name].Value)})
	}
	for _, name := range sortedRefKeys(e.Refs) {
		out = append(out, h.renderRefField(e, name, e.Refs[name])...)
	}
	for _, name := range sortedChildKeys(e.Children) {
		out = append(out, h.renderChildField(e, name, e.Children[name])...)
	}
	return out
}

func (h *VariableHandler) renderRefField(owner *ModelElement, name string, r Ref) []Variable {
	if r.IsMany() {
		hdl := h.handleForRefSeq(owner, name, r.Many)
		return []Variable{{Name: name, Value: fmt.Sprintf("Array[%d]", len(r.Many)), VariablesReference: hdl}}
	}
	target, ok := h.resolveRef(r.Single)
	if !ok {
		return []Variable{{Name: name, Value: fmt.Sprintf("<unresolved: %s>", r.Single)}}
	}
	return []Variable{{Name: name, Value: refLabel(target), VariablesReference: h.handleForElement(target)}}
}

func (h *VariableHandler) renderChildField(owner *ModelElement, name string, c Child) []Variable {
	if c.IsMany() {
		return []Variable{h.renderObject(name, childSeqAsObject{owner, name, c.Many}, h)}
	}
	return []Variable{h.renderObject(name, c.Single, h)}
}

// childSeqAsObject carries enough context to mint a memoized handle for
// a children-sequence value when rendered via the generic object rule.
type childSeqAsObject struct {
	owner *ModelElement
	field string
	seq   []*ModelElement
}

// renderObject applies the generic object rendering rule: nil -> literal
// "null" leaf; empty sequence -> "Array[0]" with no handle; non-empty
// sequence -> "Array[N]" with a child handle; element -> its display
// label with a child handle; other primitives -> JSON leaf.
func (h *VariableHandler) renderObject(name string, v interface{}, handler *VariableHandler) Variable {
	switch t := v.(type) {
	case nil:
		return Variable{Name: name, Value: "null"}
	case *ModelElement:
		if t == nil {
			return Variable{Name: name, Value: "null"}
		}
		return Variable{Name: name, Value: t.DisplayLabel(), VariablesReference: handler.handleForElement(t)}
	case childSeqAsObject:
		if len(t.seq) == 0 {
			return Variable{Name: name, Value: "Array[0]"}
		}
		hdl := handler.handleForChildSeq(t.owner, t.field, t.seq)
		return Variable{Name: name, Value: fmt.Sprintf("Array[%d]", len(t.seq)), VariablesReference: hdl}
	default:
		return Variable{Name: name, Value: serializePrimitive(v)}
	}
}

func (h *VariableHandler) variablesForChildSeq(seq []*ModelElement) []Variable {
	out := make([]Variable, 0, len(seq))
	for i, e := range seq {
		out = append(out, h.renderObject(fmt.Sprintf("%d", i), e, h))
	}
	return out
}

func (h *VariableHandler) variablesForRefSeq(ids []string) []Variable {
	out := make([]Variable, 0, len(ids))
	for i, id := range ids {
		target, ok := h.resolveRef(id)
		if !ok {
			out = append(out, Variable{Name: fmt.Sprintf("%d", i), Value: fmt.Sprintf("<unresolved: %s>", id)})
			continue
		}
		out = append(out, Variable{Name: fmt.Sprintf("%d", i), Value: refLabel(target), VariablesReference: h.handleForElement(target)})
	}
	return out
}

// refLabel is the display value of a resolved reference: the target's
// label if it has one, else its id.
func refLabel(e *ModelElement) string {
	if e.Label != "" {
		return e.Label
	}
	return e.ID
}

func serializePrimitive(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func sortedKeys(m map[string]Attribute) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedRefKeys(m map[string]Ref) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedChildKeys(m map[string]Child) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
