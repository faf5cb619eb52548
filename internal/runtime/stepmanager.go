package runtime

import "github.com/kestrel-dbg/lrdp-dap/internal/model"

// StepManager tracks the currently-available steps, the selected step,
// the call stack of entered composite steps, and two location caches
// keyed by step id.
type StepManager struct {
	available   []model.Step
	selected    model.Step
	hasSelected bool

	stack []model.Step

	availableLocations map[string]*model.Location
	stackLocations     map[string]*model.Location
}

// NewStepManager returns an empty manager; call Update with the initial
// available-step list to seed it.
func NewStepManager() *StepManager {
	return &StepManager{
		availableLocations: make(map[string]*model.Location),
		stackLocations:     make(map[string]*model.Location),
	}
}

// AvailableSteps returns the currently-available steps, in runtime-
// reported order.
func (m *StepManager) AvailableSteps() []model.Step { return m.available }

// Selected returns the currently-selected step and whether one exists.
func (m *StepManager) Selected() (model.Step, bool) { return m.selected, m.hasSelected }

// Stack returns the composite-step call stack, outermost first.
func (m *StepManager) Stack() []model.Step { return m.stack }

// SelectStep overrides the selected step; id must be present in the
// current available-step list.
func (m *StepManager) SelectStep(id string) bool {
	s, ok := model.ByID(m.available, id)
	if !ok {
		return false
	}
	m.selected = s
	m.hasSelected = true
	return true
}

// CacheAvailableLocation records the source location of a currently
// available step, populated lazily by the owner (DebugRuntime) via an
// LRDP getStepLocation call.
func (m *StepManager) CacheAvailableLocation(id string, loc *model.Location) {
	m.availableLocations[id] = loc
}

// AvailableLocation returns the cached location for a currently
// available step id, if any.
func (m *StepManager) AvailableLocation(id string) (*model.Location, bool) {
	loc, ok := m.availableLocations[id]
	return loc, ok
}

// StackLocation returns the cached location for a step id on the stack,
// if any; stackTrace falls back to (0,0) when this misses.
func (m *StepManager) StackLocation(id string) (*model.Location, bool) {
	loc, ok := m.stackLocations[id]
	return loc, ok
}

// Update applies one getAvailableSteps/executeAtomicStep/
// enterCompositeStep result:
//
//   - completedSteps empty: a composite was just entered. The selected
//     step is pushed onto the stack and its cached (possibly absent)
//     location copied into the stack location cache.
//   - completedSteps non-empty: at least one atomic step completed. The
//     pop loop removes every stack-top composite whose id appears in
//     completedSteps, consuming that id from completedSteps and
//     dropping its location-cache entries.
//
// In both cases available is then replaced, the default selection reset
// to available[0] (or cleared if empty), and the available-location
// cache cleared.
func (m *StepManager) Update(available []model.Step, completedSteps []string) {
	if len(completedSteps) == 0 {
		if m.hasSelected {
			m.stack = append(m.stack, m.selected)
			m.stackLocations[m.selected.ID] = m.availableLocations[m.selected.ID]
		}
	} else {
		remaining := make(map[string]bool, len(completedSteps))
		for _, id := range completedSteps {
			remaining[id] = true
		}
		for len(m.stack) > 0 && remaining[m.stack[len(m.stack)-1].ID] {
			top := m.stack[len(m.stack)-1]
			m.stack = m.stack[:len(m.stack)-1]
			delete(remaining, top.ID)
			delete(m.availableLocations, top.ID)
			delete(m.stackLocations, top.ID)
		}
	}

	m.available = available
	if len(available) > 0 {
		m.selected = available[0]
		m.hasSelected = true
	} else {
		m.selected = model.Step{}
		m.hasSelected = false
	}
	m.availableLocations = make(map[string]*model.Location)
}

// StackTop returns the innermost entered composite step, if any — the
// condition the pop loop in Update tests.
func (m *StepManager) StackTop() (model.Step, bool) {
	if len(m.stack) == 0 {
		return model.Step{}, false
	}
	return m.stack[len(m.stack)-1], true
}
