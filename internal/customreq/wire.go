// Package customreq implements the six domain-facing requests this
// server adds on top of standard DAP: getBreakpointTypes,
// setDomainSpecificBreakpoints, getAvailableSteps, selectStep,
// getModelElementsReferences and getModelElementReferenceFromSource.
// Each is dispatched by command name against a runtime.DebugRuntime and
// produces a JSON-serializable body or a structured error, mirroring
// the request/response shape the lrdp package uses for its own wire
// codec.
package customreq

import (
	"encoding/json"

	"github.com/google/go-dap"

	"github.com/kestrel-dbg/lrdp-dap/internal/lrdperr"
	"github.com/kestrel-dbg/lrdp-dap/internal/model"
)

// Request is the envelope one custom command arrives in. It mirrors a
// dap.Request but keeps Arguments raw since none of these six commands
// correspond to a go-dap struct.
type Request struct {
	dap.ProtocolMessage
	Command   string          `json:"command"`
	Arguments json.RawMessage `json:"arguments"`
}

// Response is the envelope a custom command's result or error is sent
// back in. Embedding dap.ProtocolMessage gives it the same GetSeq
// method promotion a dap.Response gets, so it satisfies dap.Message and
// can go straight through dap.WriteProtocolMessage.
type Response struct {
	dap.ProtocolMessage
	RequestSeq int         `json:"request_seq"`
	Success    bool        `json:"success"`
	Command    string      `json:"command"`
	Message    string      `json:"message,omitempty"`
	Body       interface{} `json:"body,omitempty"`
}

// MalformedArgsBody is the diagnostic shape returned when a custom
// request's arguments fail the exact-own-key-set check.
type MalformedArgsBody struct {
	Exception string          `json:"_exception"`
	Args      json.RawMessage `json:"_args"`
}

type wireParameter struct {
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	PrimitiveType string `json:"primitiveType,omitempty"`
	ElementType   string `json:"elementType,omitempty"`
	Multivalued   bool   `json:"multivalued"`
}

type wireBreakpointType struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []wireParameter `json:"parameters"`
}

func breakpointTypesToWire(types []model.BreakpointType) []wireBreakpointType {
	out := make([]wireBreakpointType, len(types))
	for i, t := range types {
		params := make([]wireParameter, len(t.Parameters))
		for j, p := range t.Parameters {
			params[j] = wireParameter{
				Name:          p.Name,
				Kind:          string(p.Kind),
				PrimitiveType: string(p.PrimitiveType),
				ElementType:   p.ElementType,
				Multivalued:   p.IsMultivalued,
			}
		}
		out[i] = wireBreakpointType{ID: t.ID, Name: t.Name, Description: t.Description, Parameters: params}
	}
	return out
}

type wireBreakpointInstance struct {
	BreakpointTypeID string                     `json:"breakpointTypeId"`
	Entries          map[string]json.RawMessage `json:"entries"`
}

func decodeEntryValue(raw json.RawMessage) model.EntryValue {
	var arr []interface{}
	if err := json.Unmarshal(raw, &arr); err == nil {
		return model.EntryValue{Many: arr}
	}
	var single interface{}
	json.Unmarshal(raw, &single)
	return model.EntryValue{Single: single}
}

type wireStep struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsComposite bool   `json:"isComposite"`
}

func stepsToWire(steps []model.Step) []wireStep {
	out := make([]wireStep, len(steps))
	for i, s := range steps {
		out[i] = wireStep{ID: s.ID, Name: s.Name, Description: s.Description, IsComposite: s.IsComposite}
	}
	return out
}

// wireElementReference is a ModelElementReference: an id/types pair
// plus a display label, which defaults to the id when the element
// carries no label of its own.
type wireElementReference struct {
	ID    string   `json:"id"`
	Types []string `json:"types"`
	Label string   `json:"label"`
}

func elementToReference(e *model.ModelElement) wireElementReference {
	label := e.Label
	if label == "" {
		label = e.ID
	}
	return wireElementReference{ID: e.ID, Types: e.Types, Label: label}
}

func elementsToReferences(elems []*model.ModelElement) []wireElementReference {
	out := make([]wireElementReference, len(elems))
	for i, e := range elems {
		out[i] = elementToReference(e)
	}
	return out
}

// ownKeys unmarshals args as a JSON object and requires its key set to
// equal expected exactly, the exact-own-key-set argument-validation rule.
func ownKeys(args json.RawMessage, expected ...string) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(args, &raw); err != nil {
		return nil, lrdperr.Wrap(lrdperr.CodeMalformedArguments, "arguments must be a JSON object", err)
	}
	if len(raw) != len(expected) {
		return nil, lrdperr.New(lrdperr.CodeMalformedArguments, "arguments must carry exactly the expected keys")
	}
	for _, k := range expected {
		if _, ok := raw[k]; !ok {
			return nil, lrdperr.New(lrdperr.CodeMalformedArguments, "missing argument: "+k)
		}
	}
	return raw, nil
}
