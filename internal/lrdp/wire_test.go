package lrdp

import (
	"encoding/json"
	"testing"

	"github.com/kestrel-dbg/lrdp-dap/internal/model"
)

func TestDecodeElementSingleChildAndRef(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "stmt-1",
		"types": ["Statement"],
		"location": {"line": 1, "column": 0, "endLine": 1, "endColumn": 5},
		"refs": {"target": "var-1"},
		"children": {"value": {"id": "lit-1", "types": ["Literal"], "attributes": {"raw": 5}}},
		"attributes": {"comment": "hi"}
	}`)

	e, err := decodeElement(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.ID != "stmt-1" || e.Location == nil || e.Location.EndColumn != 5 {
		t.Fatalf("unexpected decoded element: %+v", e)
	}
	if e.Refs["target"].Single != "var-1" {
		t.Errorf("expected ref target var-1, got %+v", e.Refs["target"])
	}
	child := e.Children["value"]
	if child.IsMany() || child.Single == nil || child.Single.ID != "lit-1" {
		t.Errorf("expected a single child lit-1, got %+v", child)
	}
}

func TestDecodeElementSequenceChildAndRef(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "block-1",
		"types": ["Block"],
		"refs": {"uses": ["a", "b"]},
		"children": {"statements": [
			{"id": "s1", "types": ["Statement"]},
			{"id": "s2", "types": ["Statement"]}
		]}
	}`)

	e, err := decodeElement(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !e.Refs["uses"].IsMany() || len(e.Refs["uses"].Many) != 2 {
		t.Errorf("expected a ref sequence of length 2, got %+v", e.Refs["uses"])
	}
	statements := e.Children["statements"]
	if !statements.IsMany() || len(statements.Many) != 2 {
		t.Fatalf("expected a child sequence of length 2, got %+v", statements)
	}
	if statements.Many[0].ID != "s1" || statements.Many[1].ID != "s2" {
		t.Errorf("expected sequence order preserved, got %v", statements.Many)
	}
}

func TestDecodeElementNullIsNilNoError(t *testing.T) {
	e, err := decodeElement(json.RawMessage(`null`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e != nil {
		t.Errorf("expected nil element for a null payload, got %+v", e)
	}
}

func TestDecodeElementMissingTypesIsAnError(t *testing.T) {
	_, err := decodeElement(json.RawMessage(`{"id": "x", "types": []}`))
	if err == nil {
		t.Error("expected an element with no type tags to be rejected")
	}
}

func TestWireLocationToModelNilSafe(t *testing.T) {
	var w *wireLocation
	if got := w.toModel(); got != nil {
		t.Errorf("expected a nil *wireLocation to decode to a nil *model.Location, got %v", got)
	}
}

func TestWireParameterToModel(t *testing.T) {
	elementParam := wireParameter{Name: "target", ElementType: "Statement", IsMultivalued: true}
	p := elementParam.toModel()
	if p.Kind != model.ParameterElement || !p.IsMultivalued {
		t.Errorf("expected an element parameter, got %+v", p)
	}

	primitiveParam := wireParameter{Name: "count", PrimitiveType: "number"}
	p2 := primitiveParam.toModel()
	if p2.Kind != model.ParameterPrimitive || p2.PrimitiveType != model.PrimitiveNumber {
		t.Errorf("expected a primitive number parameter, got %+v", p2)
	}
}

func TestEntryValueToWire(t *testing.T) {
	single := model.EntryValue{Single: "stmt-1"}
	if got := entryValueToWire(single); got != "stmt-1" {
		t.Errorf("expected single value passthrough, got %v", got)
	}
	many := model.EntryValue{Many: []interface{}{"a", "b"}}
	got, ok := entryValueToWire(many).([]interface{})
	if !ok || len(got) != 2 {
		t.Errorf("expected a sequence passthrough, got %v", entryValueToWire(many))
	}
}
