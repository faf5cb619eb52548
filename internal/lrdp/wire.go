package lrdp

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kestrel-dbg/lrdp-dap/internal/model"
)

type wireLocation struct {
	Line      int `json:"line"`
	Column    int `json:"column"`
	EndLine   int `json:"endLine"`
	EndColumn int `json:"endColumn"`
}

func (w *wireLocation) toModel() *model.Location {
	if w == nil {
		return nil
	}
	return &model.Location{Line: w.Line, Column: w.Column, EndLine: w.EndLine, EndColumn: w.EndColumn}
}

func locationToWire(l *model.Location) *wireLocation {
	if l == nil {
		return nil
	}
	return &wireLocation{Line: l.Line, Column: l.Column, EndLine: l.EndLine, EndColumn: l.EndColumn}
}

type wireElement struct {
	ID         string                     `json:"id"`
	Types      []string                   `json:"types"`
	Children   map[string]json.RawMessage `json:"children,omitempty"`
	Refs       map[string]json.RawMessage `json:"refs,omitempty"`
	Attributes map[string]interface{}     `json:"attributes,omitempty"`
	Location   *wireLocation              `json:"location,omitempty"`
	Label      string                     `json:"label,omitempty"`
}

// decodeElement converts the wire representation of a ModelElement tree
// (field-name-keyed children/refs maps whose values are either a single
// object/string or a JSON array) into model.ModelElement
// Children/Refs shapes.
func decodeElement(raw json.RawMessage) (*model.ModelElement, error) {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil, nil
	}
	var w wireElement
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("lrdp: malformed model element: %w", err)
	}
	if len(w.Types) == 0 {
		return nil, fmt.Errorf("lrdp: model element %q has no types", w.ID)
	}

	e := &model.ModelElement{
		ID:         w.ID,
		Types:      w.Types,
		Location:   w.Location.toModel(),
		Label:      w.Label,
		Children:   make(map[string]model.Child, len(w.Children)),
		Refs:       make(map[string]model.Ref, len(w.Refs)),
		Attributes: make(map[string]model.Attribute, len(w.Attributes)),
	}
	for field, rawChild := range w.Children {
		c, err := decodeChild(rawChild)
		if err != nil {
			return nil, err
		}
		e.Children[field] = c
	}
	for field, rawRef := range w.Refs {
		r, err := decodeRef(rawRef)
		if err != nil {
			return nil, err
		}
		e.Refs[field] = r
	}
	for field, v := range w.Attributes {
		e.Attributes[field] = model.Attribute{Value: v}
	}
	return e, nil
}

func decodeChild(raw json.RawMessage) (model.Child, error) {
	if isJSONArray(raw) {
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil {
			return model.Child{}, fmt.Errorf("lrdp: malformed child sequence: %w", err)
		}
		elems := make([]*model.ModelElement, len(arr))
		for i, r := range arr {
			e, err := decodeElement(r)
			if err != nil {
				return model.Child{}, err
			}
			elems[i] = e
		}
		return model.Child{Many: elems}, nil
	}
	e, err := decodeElement(raw)
	if err != nil {
		return model.Child{}, err
	}
	return model.Child{Single: e}, nil
}

func decodeRef(raw json.RawMessage) (model.Ref, error) {
	if isJSONArray(raw) {
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			return model.Ref{}, fmt.Errorf("lrdp: malformed ref sequence: %w", err)
		}
		return model.Ref{Many: ids}, nil
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return model.Ref{}, fmt.Errorf("lrdp: malformed ref: %w", err)
	}
	return model.Ref{Single: id}, nil
}

func isJSONArray(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '['
}

type wireParameter struct {
	Name          string `json:"name"`
	IsMultivalued bool   `json:"isMultivalued"`
	PrimitiveType string `json:"primitiveType,omitempty"`
	ElementType   string `json:"elementType,omitempty"`
}

func (w wireParameter) toModel() model.Parameter {
	if w.ElementType != "" {
		return model.Parameter{Name: w.Name, Kind: model.ParameterElement, ElementType: w.ElementType, IsMultivalued: w.IsMultivalued}
	}
	return model.Parameter{Name: w.Name, Kind: model.ParameterPrimitive, PrimitiveType: model.PrimitiveType(w.PrimitiveType), IsMultivalued: w.IsMultivalued}
}

type wireBreakpointType struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  []wireParameter `json:"parameters"`
}

func (w wireBreakpointType) toModel() model.BreakpointType {
	params := make([]model.Parameter, len(w.Parameters))
	for i, p := range w.Parameters {
		params[i] = p.toModel()
	}
	return model.BreakpointType{ID: w.ID, Name: w.Name, Description: w.Description, Parameters: params}
}

type wireStep struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsComposite bool   `json:"isComposite"`
}

func (w wireStep) toModel() model.Step {
	return model.Step{ID: w.ID, Name: w.Name, Description: w.Description, IsComposite: w.IsComposite}
}

// entryValueToWire converts an EntryValue into a plain JSON-encodable
// value for the checkBreakpoint "entries" map.
func entryValueToWire(v model.EntryValue) interface{} {
	if v.IsMany() {
		return v.Many
	}
	return v.Single
}
