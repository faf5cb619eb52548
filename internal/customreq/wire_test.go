package customreq

import (
	"encoding/json"
	"testing"

	"github.com/kestrel-dbg/lrdp-dap/internal/model"
)

func TestOwnKeysExactSet(t *testing.T) {
	args := json.RawMessage(`{"sourceFile": "x.lang", "stepId": "s1"}`)
	raw, err := ownKeys(args, "sourceFile", "stepId")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(raw) != 2 {
		t.Errorf("expected exactly 2 keys, got %d", len(raw))
	}
}

func TestOwnKeysRejectsExtraKey(t *testing.T) {
	args := json.RawMessage(`{"sourceFile": "x.lang", "stepId": "s1", "extra": true}`)
	if _, err := ownKeys(args, "sourceFile", "stepId"); err == nil {
		t.Error("expected an extra key to be rejected")
	}
}

func TestOwnKeysRejectsMissingKey(t *testing.T) {
	args := json.RawMessage(`{"sourceFile": "x.lang"}`)
	if _, err := ownKeys(args, "sourceFile", "stepId"); err == nil {
		t.Error("expected a missing required key to be rejected")
	}
}

func TestOwnKeysRejectsNonObject(t *testing.T) {
	if _, err := ownKeys(json.RawMessage(`[1,2,3]`), "sourceFile"); err == nil {
		t.Error("expected a non-object payload to be rejected")
	}
}

func TestDecodeEntryValueSingleAndSequence(t *testing.T) {
	single := decodeEntryValue(json.RawMessage(`"stmt-1"`))
	if single.IsMany() || single.Single != "stmt-1" {
		t.Errorf("expected a single string entry, got %+v", single)
	}

	seq := decodeEntryValue(json.RawMessage(`[1, 2, 3]`))
	if !seq.IsMany() || len(seq.Many) != 3 {
		t.Errorf("expected a sequence of 3, got %+v", seq)
	}
}

func TestBreakpointTypesToWire(t *testing.T) {
	types := []model.BreakpointType{
		{
			ID:   "line",
			Name: "Line breakpoint",
			Parameters: []model.Parameter{
				{Name: "target", Kind: model.ParameterElement, ElementType: "Statement", IsMultivalued: true},
			},
		},
	}
	wire := breakpointTypesToWire(types)
	if len(wire) != 1 || wire[0].Parameters[0].ElementType != "Statement" || !wire[0].Parameters[0].Multivalued {
		t.Errorf("unexpected wire shape: %+v", wire)
	}
}

func TestElementToReferenceFallsBackToID(t *testing.T) {
	e := &model.ModelElement{ID: "e1", Types: []string{"Statement"}}
	ref := elementToReference(e)
	if ref.Label != "e1" {
		t.Errorf("expected an unlabeled element's reference label to fall back to its id, got %q", ref.Label)
	}

	labeled := &model.ModelElement{ID: "e2", Types: []string{"Statement"}, Label: "x = 1"}
	if got := elementToReference(labeled).Label; got != "x = 1" {
		t.Errorf("expected the element's own label, got %q", got)
	}
}
