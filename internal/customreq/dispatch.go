package customreq

import (
	"encoding/json"

	"github.com/kestrel-dbg/lrdp-dap/internal/lrdperr"
	"github.com/kestrel-dbg/lrdp-dap/internal/model"
	"github.com/kestrel-dbg/lrdp-dap/internal/runtime"
)

// Outcome is what Dispatch produces for one successfully handled custom
// request.
type Outcome struct {
	Body interface{}
	// InvalidatedStacks is set when the request changed the selected
	// step, so the caller should follow its response with an
	// invalidated(['stacks']) event.
	InvalidatedStacks bool
}

// Dispatch routes one custom request by command name.
// linesOffset/columnsOffset carry the session's IDE coordinate origin,
// needed only by getModelElementReferenceFromSource. It returns an
// *lrdperr.Error on any failure so the caller can translate it into the
// response shape.
func Dispatch(command string, args json.RawMessage, rt *runtime.DebugRuntime, linesOffset, columnsOffset int) (*Outcome, error) {
	switch command {
	case "getBreakpointTypes":
		return getBreakpointTypes(args, rt)
	case "setDomainSpecificBreakpoints":
		return setDomainSpecificBreakpoints(args, rt)
	case "getAvailableSteps":
		return getAvailableSteps(args, rt)
	case "selectStep":
		return selectStep(args, rt)
	case "getModelElementsReferences":
		return getModelElementsReferences(args, rt)
	case "getModelElementReferenceFromSource":
		return getModelElementReferenceFromSource(args, rt, linesOffset, columnsOffset)
	default:
		return nil, lrdperr.New(lrdperr.CodeUnknownCommand, "unknown custom command: "+command)
	}
}

func getBreakpointTypes(args json.RawMessage, rt *runtime.DebugRuntime) (*Outcome, error) {
	if _, err := ownKeys(args, "sourceFile"); err != nil {
		return nil, err
	}
	bm := rt.Breakpoints()
	if bm == nil {
		return nil, lrdperr.New(lrdperr.CodeNotInitialized, "execution not yet initialized")
	}
	return &Outcome{Body: map[string]interface{}{
		"breakpointTypes": breakpointTypesToWire(bm.AvailableBreakpointTypes()),
	}}, nil
}

func setDomainSpecificBreakpoints(args json.RawMessage, rt *runtime.DebugRuntime) (*Outcome, error) {
	raw, err := ownKeys(args, "sourceFile", "breakpoints")
	if err != nil {
		return nil, err
	}
	var wireList []wireBreakpointInstance
	if err := json.Unmarshal(raw["breakpoints"], &wireList); err != nil {
		return nil, lrdperr.Wrap(lrdperr.CodeMalformedArguments, "breakpoints must be an array", err)
	}
	list := make([]model.DomainSpecificBreakpoint, len(wireList))
	for i, w := range wireList {
		entries := make(map[string]model.EntryValue, len(w.Entries))
		for name, v := range w.Entries {
			entries[name] = decodeEntryValue(v)
		}
		list[i] = model.DomainSpecificBreakpoint{BreakpointTypeID: w.BreakpointTypeID, Entries: entries}
	}
	bm := rt.Breakpoints()
	if bm == nil {
		return nil, lrdperr.New(lrdperr.CodeNotInitialized, "execution not yet initialized")
	}
	verified := bm.SetDomainSpecificBreakpoints(list)
	out := make([]map[string]bool, len(verified))
	for i, v := range verified {
		out[i] = map[string]bool{"verified": v}
	}
	return &Outcome{Body: map[string]interface{}{"breakpoints": out}}, nil
}

func getAvailableSteps(args json.RawMessage, rt *runtime.DebugRuntime) (*Outcome, error) {
	if _, err := ownKeys(args, "sourceFile"); err != nil {
		return nil, err
	}
	return &Outcome{Body: map[string]interface{}{
		"availableSteps": stepsToWire(rt.Steps().AvailableSteps()),
	}}, nil
}

func selectStep(args json.RawMessage, rt *runtime.DebugRuntime) (*Outcome, error) {
	raw, err := ownKeys(args, "sourceFile", "stepId")
	if err != nil {
		return nil, err
	}
	var stepID string
	if err := json.Unmarshal(raw["stepId"], &stepID); err != nil {
		return nil, lrdperr.Wrap(lrdperr.CodeMalformedArguments, "stepId must be a string", err)
	}
	previous, hadSelection := rt.Steps().Selected()
	if err := rt.SelectStep(stepID); err != nil {
		return nil, err
	}
	changed := !hadSelection || previous.ID != stepID
	return &Outcome{Body: map[string]interface{}{}, InvalidatedStacks: changed}, nil
}

func getModelElementsReferences(args json.RawMessage, rt *runtime.DebugRuntime) (*Outcome, error) {
	raw, err := ownKeys(args, "sourceFile", "type")
	if err != nil {
		return nil, err
	}
	var typeTag string
	if err := json.Unmarshal(raw["type"], &typeTag); err != nil {
		return nil, lrdperr.Wrap(lrdperr.CodeMalformedArguments, "type must be a string", err)
	}
	elems := rt.TypeRegistry().GetModelElementsFromType(typeTag)
	return &Outcome{Body: map[string]interface{}{"elements": elementsToReferences(elems)}}, nil
}

func getModelElementReferenceFromSource(args json.RawMessage, rt *runtime.DebugRuntime, linesOffset, columnsOffset int) (*Outcome, error) {
	raw, err := ownKeys(args, "sourceFile", "line", "column")
	if err != nil {
		return nil, err
	}
	var line, column int
	if err := json.Unmarshal(raw["line"], &line); err != nil {
		return nil, lrdperr.Wrap(lrdperr.CodeMalformedArguments, "line must be a number", err)
	}
	if err := json.Unmarshal(raw["column"], &column); err != nil {
		return nil, lrdperr.Wrap(lrdperr.CodeMalformedArguments, "column must be a number", err)
	}
	locator := rt.Locator()
	if locator == nil {
		return nil, lrdperr.New(lrdperr.CodeNotInitialized, "execution not yet initialized")
	}
	elem, ok := locator.GetElementFromPosition(line, column, linesOffset, columnsOffset)
	if !ok {
		return &Outcome{Body: map[string]interface{}{}}, nil
	}
	return &Outcome{Body: map[string]interface{}{"element": elementToReference(elem)}}, nil
}
