package model

import "testing"

func TestGetElementFromPositionExactMatch(t *testing.T) {
	stmt := &ModelElement{
		ID:       "stmt-1",
		Types:    []string{"Statement"},
		Location: &Location{Line: 5, Column: 2, EndLine: 5, EndColumn: 10},
	}
	root := &ModelElement{
		ID:       "root",
		Types:    []string{"Program"},
		Location: &Location{Line: 1, Column: 0, EndLine: 20, EndColumn: 0},
		Children: map[string]Child{"body": {Single: stmt}},
	}
	locator := NewElementLocator(root)

	got, ok := locator.GetElementFromPosition(5, 4, 0, 0)
	if !ok {
		t.Fatal("expected a match at (5, 4)")
	}
	if got.ID != "stmt-1" {
		t.Errorf("expected the innermost containing element (stmt-1), got %q", got.ID)
	}
}

func TestGetElementFromPositionOutsideColumnRange(t *testing.T) {
	stmt := &ModelElement{
		ID:       "stmt-1",
		Types:    []string{"Statement"},
		Location: &Location{Line: 5, Column: 2, EndLine: 5, EndColumn: 10},
	}
	locator := NewElementLocator(stmt)

	if _, ok := locator.GetElementFromPosition(5, 1, 0, 0); ok {
		t.Error("expected no match before the start column")
	}
	if _, ok := locator.GetElementFromPosition(5, 11, 0, 0); ok {
		t.Error("expected no match past the end column")
	}
}

func TestGetElementFromPositionAppliesOffset(t *testing.T) {
	stmt := &ModelElement{
		ID:       "stmt-1",
		Types:    []string{"Statement"},
		Location: &Location{Line: 0, Column: 0, EndLine: 0, EndColumn: 5},
	}
	locator := NewElementLocator(stmt)

	// The query arrives in IDE (1-based) coordinates; -1/-1 translates it
	// back to the runtime's 0-based Location.
	got, ok := locator.GetElementFromPosition(1, 1, -1, -1)
	if !ok || got.ID != "stmt-1" {
		t.Fatalf("expected the offset-translated query to resolve to stmt-1, got %v %v", got, ok)
	}
}

func TestGetElementFromPositionMultilineSpan(t *testing.T) {
	block := &ModelElement{
		ID:       "block",
		Types:    []string{"Block"},
		Location: &Location{Line: 2, Column: 4, EndLine: 8, EndColumn: 1},
	}
	locator := NewElementLocator(block)

	if _, ok := locator.GetElementFromPosition(5, 0, 0, 0); !ok {
		t.Error("expected a line strictly between start and end to match regardless of column")
	}
	if _, ok := locator.GetElementFromPosition(8, 2, 0, 0); ok {
		t.Error("expected the end line to reject a column past EndColumn")
	}
}

func TestGetElementFromPositionNoMatch(t *testing.T) {
	root := &ModelElement{ID: "root", Types: []string{"Program"}}
	locator := NewElementLocator(root)
	if _, ok := locator.GetElementFromPosition(1, 0, 0, 0); ok {
		t.Error("expected no match when no element carries a Location")
	}
}
