package model

import "testing"

func TestTypeRegistrySetASTAndLookup(t *testing.T) {
	stmt := &ModelElement{ID: "stmt-1", Types: []string{"Statement", "Loop"}}
	root := &ModelElement{
		ID:       "root",
		Types:    []string{"Program"},
		Children: map[string]Child{"body": {Single: stmt}},
	}

	reg := NewTypeRegistry()
	reg.SetAST(root)

	loops := reg.GetModelElementsFromType("Loop")
	if len(loops) != 1 || loops[0].ID != "stmt-1" {
		t.Fatalf("expected exactly [stmt-1] under Loop, got %v", loops)
	}
	if len(reg.GetModelElementsFromType("Expression")) != 0 {
		t.Error("expected no matches for an unused type tag")
	}
}

func TestTypeRegistryCombinesASTAndRuntimeState(t *testing.T) {
	astNode := &ModelElement{ID: "ast-1", Types: []string{"Variable"}}
	runtimeNode := &ModelElement{ID: "rt-1", Types: []string{"Variable"}}

	reg := NewTypeRegistry()
	reg.SetAST(astNode)
	reg.SetRuntimeState(runtimeNode)

	got := reg.GetModelElementsFromType("Variable")
	if len(got) != 2 {
		t.Fatalf("expected 2 matches (AST + runtime state), got %d", len(got))
	}
	if got[0].ID != "ast-1" || got[1].ID != "rt-1" {
		t.Errorf("expected AST matches first and runtime-state matches second, got %v", got)
	}
}

func TestTypeRegistrySetRuntimeStateReplacesPreviousIndex(t *testing.T) {
	reg := NewTypeRegistry()
	reg.SetRuntimeState(&ModelElement{ID: "first", Types: []string{"Frame"}})
	reg.SetRuntimeState(&ModelElement{ID: "second", Types: []string{"Frame"}})

	got := reg.GetModelElementsFromType("Frame")
	if len(got) != 1 || got[0].ID != "second" {
		t.Fatalf("expected SetRuntimeState to replace, not accumulate, got %v", got)
	}
}
