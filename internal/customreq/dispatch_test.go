package customreq

import (
	"encoding/json"
	"testing"

	"github.com/kestrel-dbg/lrdp-dap/internal/lrdperr"
	"github.com/kestrel-dbg/lrdp-dap/internal/runtime"
)

func TestDispatchUnknownCommand(t *testing.T) {
	rt := runtime.NewDebugRuntime(nil, true)
	_, err := Dispatch("doesNotExist", json.RawMessage(`{}`), rt, 0, 0)
	if err == nil {
		t.Fatal("expected an unknown command to fail")
	}
	lerr, ok := lrdperr.As(err)
	if !ok || lerr.Code != lrdperr.CodeUnknownCommand {
		t.Errorf("expected CodeUnknownCommand, got %v", err)
	}
}

func TestGetBreakpointTypesBeforeInitIsAnError(t *testing.T) {
	rt := runtime.NewDebugRuntime(nil, true)
	args, _ := json.Marshal(map[string]string{"sourceFile": "x.lang"})
	_, err := Dispatch("getBreakpointTypes", args, rt, 0, 0)
	if err == nil {
		t.Fatal("expected getBreakpointTypes before initialization to fail")
	}
	lerr, ok := lrdperr.As(err)
	if !ok || lerr.Code != lrdperr.CodeNotInitialized {
		t.Errorf("expected CodeNotInitialized, got %v", err)
	}
}

func TestSetDomainSpecificBreakpointsBeforeInitIsAnError(t *testing.T) {
	rt := runtime.NewDebugRuntime(nil, true)
	args, _ := json.Marshal(map[string]interface{}{"sourceFile": "x.lang", "breakpoints": []interface{}{}})
	_, err := Dispatch("setDomainSpecificBreakpoints", args, rt, 0, 0)
	if err == nil {
		t.Fatal("expected setDomainSpecificBreakpoints before initialization to fail")
	}
}

func TestGetAvailableStepsBeforeInitReturnsEmpty(t *testing.T) {
	rt := runtime.NewDebugRuntime(nil, true)
	args, _ := json.Marshal(map[string]string{"sourceFile": "x.lang"})
	out, err := Dispatch("getAvailableSteps", args, rt, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, ok := out.Body.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected body shape: %#v", out.Body)
	}
	steps, ok := body["availableSteps"].([]wireStep)
	if !ok || len(steps) != 0 {
		t.Errorf("expected an empty availableSteps list before initialization, got %#v", body["availableSteps"])
	}
}

func TestSelectStepRejectsUnavailableID(t *testing.T) {
	rt := runtime.NewDebugRuntime(nil, true)
	args, _ := json.Marshal(map[string]string{"sourceFile": "x.lang", "stepId": "s1"})
	_, err := Dispatch("selectStep", args, rt, 0, 0)
	if err == nil {
		t.Fatal("expected selecting a never-available step id to fail")
	}
}

func TestSelectStepArgsRejectExtraKey(t *testing.T) {
	rt := runtime.NewDebugRuntime(nil, true)
	args := json.RawMessage(`{"sourceFile": "x.lang", "stepId": "s1", "extra": 1}`)
	_, err := Dispatch("selectStep", args, rt, 0, 0)
	if err == nil {
		t.Fatal("expected the exact-own-key-set rule to reject an extra argument")
	}
}

func TestGetModelElementReferenceFromSourceBeforeInitIsAnError(t *testing.T) {
	rt := runtime.NewDebugRuntime(nil, true)
	args, _ := json.Marshal(map[string]interface{}{"sourceFile": "x.lang", "line": 1, "column": 2})
	_, err := Dispatch("getModelElementReferenceFromSource", args, rt, 0, 0)
	if err == nil {
		t.Fatal("expected a locator query before initialization to fail")
	}
}

func TestGetModelElementsReferencesBeforeInitReturnsEmpty(t *testing.T) {
	rt := runtime.NewDebugRuntime(nil, true)
	args, _ := json.Marshal(map[string]string{"sourceFile": "x.lang", "type": "Statement"})
	out, err := Dispatch("getModelElementsReferences", args, rt, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := out.Body.(map[string]interface{})
	elems, ok := body["elements"].([]wireElementReference)
	if !ok || len(elems) != 0 {
		t.Errorf("expected no matches before any AST is indexed, got %#v", body["elements"])
	}
}
