package runtime

import (
	"context"

	"github.com/kestrel-dbg/lrdp-dap/internal/lrdp"
	"github.com/kestrel-dbg/lrdp-dap/internal/model"
)

// SourceBreakpoint is one IDE-provided source breakpoint slot, per the
// setBreakpoints contract. Column is optional — the boundary case
// requires an absent column to verify as false.
type SourceBreakpoint struct {
	Line      int
	Column    int
	HasColumn bool
}

// SourceBreakpointOutcome is one verification result, in input order.
// ID is only meaningful when Verified.
type SourceBreakpointOutcome struct {
	ID       int
	Verified bool
}

// ActivatedBreakpoint is one positive checkBreakpoint response.
type ActivatedBreakpoint struct {
	BreakpointTypeID string
	Message          string
}

// BreakpointManager owns the breakpoint-type catalog and the installed
// domain-specific breakpoints.
type BreakpointManager struct {
	types     map[string]model.BreakpointType
	typeOrder []string

	installed []model.DomainSpecificBreakpoint

	locator *model.ElementLocator
}

// NewBreakpointManager builds a manager from the runtime-reported
// breakpoint-type catalog.
func NewBreakpointManager(types []model.BreakpointType) *BreakpointManager {
	m := &BreakpointManager{
		types: make(map[string]model.BreakpointType, len(types)),
	}
	for _, t := range types {
		m.types[t.ID] = t
		m.typeOrder = append(m.typeOrder, t.ID)
	}
	return m
}

// SetLocator wires the AST element locator used to verify source
// breakpoints; it is rebuilt whenever the AST tree changes.
func (m *BreakpointManager) SetLocator(l *model.ElementLocator) { m.locator = l }

// AvailableBreakpointTypes projects the catalog to IDE-facing shape,
// in runtime-reported order, for getBreakpointTypes.
func (m *BreakpointManager) AvailableBreakpointTypes() []model.BreakpointType {
	out := make([]model.BreakpointType, 0, len(m.typeOrder))
	for _, id := range m.typeOrder {
		out = append(out, m.types[id])
	}
	return out
}

// SetBreakpoints verifies each source breakpoint slot against the AST:
// a slot is verifiable iff it resolves (through the given IDE origin
// offset) to a model element that has a location and whose types
// include some breakpoint type's first element parameter's elementType.
// It installs no parameterized breakpoints — only setDomainSpecificBreakpoints
// does that. IDs are assigned fresh within each call, starting at 1, so
// that calling SetBreakpoints twice with the same sources is idempotent:
// it yields the same verification outcomes and the same ids both times.
func (m *BreakpointManager) SetBreakpoints(sources []SourceBreakpoint, linesOffset, columnsOffset int) []SourceBreakpointOutcome {
	out := make([]SourceBreakpointOutcome, len(sources))
	nextID := 1
	for i, sb := range sources {
		if !sb.HasColumn || m.locator == nil {
			out[i] = SourceBreakpointOutcome{Verified: false}
			continue
		}
		elem, ok := m.locator.GetElementFromPosition(sb.Line, sb.Column, linesOffset, columnsOffset)
		if !ok || elem.Location == nil || !m.hasVerifiableType(elem) {
			out[i] = SourceBreakpointOutcome{Verified: false}
			continue
		}
		out[i] = SourceBreakpointOutcome{ID: nextID, Verified: true}
		nextID++
	}
	return out
}

func (m *BreakpointManager) hasVerifiableType(e *model.ModelElement) bool {
	for _, id := range m.typeOrder {
		p, ok := m.types[id].FirstElementParameter()
		if ok && e.HasType(p.ElementType) {
			return true
		}
	}
	return false
}

// SetDomainSpecificBreakpoints validates each breakpoint against its
// declared BreakpointType and replaces the installed list with the
// validated subset. The returned slice is parallel to input.
func (m *BreakpointManager) SetDomainSpecificBreakpoints(list []model.DomainSpecificBreakpoint) []bool {
	results := make([]bool, len(list))
	valid := make([]model.DomainSpecificBreakpoint, 0, len(list))
	for i, bp := range list {
		t, ok := m.types[bp.BreakpointTypeID]
		if !ok || !model.IsValidBreakpoint(t, bp) {
			results[i] = false
			continue
		}
		results[i] = true
		valid = append(valid, bp)
	}
	m.installed = valid
	return results
}

// CheckBreakpoints sends one checkBreakpoint request per installed
// breakpoint for stepID, collecting every activation. A transport
// failure propagates as fatal; a malformed individual response degrades
// to "not activated" inside Proxy.CheckBreakpoint and is never surfaced
// here as an error.
func (m *BreakpointManager) CheckBreakpoints(ctx context.Context, proxy *lrdp.Proxy, sourceFile, stepID string) ([]ActivatedBreakpoint, error) {
	var activated []ActivatedBreakpoint
	for _, bp := range m.installed {
		res, err := proxy.CheckBreakpoint(ctx, sourceFile, stepID, bp.BreakpointTypeID, bp.Entries)
		if err != nil {
			return nil, err
		}
		if res.IsActivated {
			activated = append(activated, ActivatedBreakpoint{BreakpointTypeID: bp.BreakpointTypeID, Message: res.Message})
		}
	}
	return activated, nil
}
