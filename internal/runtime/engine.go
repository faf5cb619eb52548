// Package runtime implements the debug session execution engine: the
// state machine that drives an execution forward atomic-step by
// atomic-step while enforcing pause semantics, together with the step
// stack manager and the breakpoint manager.
package runtime

import (
	"context"
	"sync"

	"github.com/kestrel-dbg/lrdp-dap/internal/lrdp"
	"github.com/kestrel-dbg/lrdp-dap/internal/lrdperr"
	"github.com/kestrel-dbg/lrdp-dap/internal/model"
)

// State is one node of the state machine.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateRunning
	StatePaused
	StateTerminated
)

// StopOutcome is what every motion operation (initializeExecution, run,
// nextStep, stepIn, stepOut) resolves to: either a stopped checkpoint
// (Reason/Description ready for a DAP stopped event) or termination.
type StopOutcome struct {
	Terminated  bool
	Reason      string
	Description string
}

func stoppedOutcome(p *PauseInformation) StopOutcome {
	return StopOutcome{Reason: p.Reason(), Description: p.Description()}
}

// deferredBreakpoints is the one-shot promise of the initialization
// race: a setBreakpoints call received before initializeExecution has
// produced a BreakpointManager is parked here until it does.
type deferredBreakpoints struct {
	sources       []SourceBreakpoint
	linesOffset   int
	columnsOffset int
	done          chan []SourceBreakpointOutcome
}

// DebugRuntime orchestrates one session's execution against a single
// LanguageRuntimeProxy. It owns a StepManager and a BreakpointManager
// (created once initializeExecution completes) and the AST/runtime-state
// side components (locator, type registry, variable handler) that depend
// on the current tree roots.
type DebugRuntime struct {
	proxy *lrdp.Proxy

	skipRedundantPauses bool

	mu sync.Mutex

	sourceFile string
	pauseOnEnd bool

	state               State
	pauseRequired       bool
	pausedOnCurrentStep bool
	executionDone       bool
	terminatedEventSent bool

	steps       *StepManager
	breakpoints *BreakpointManager

	astRoot      *model.ModelElement
	runtimeRoot  *model.ModelElement
	locator      *model.ElementLocator
	typeRegistry *model.TypeRegistry
	variables    *model.VariableHandler

	pending *deferredBreakpoints
}

// NewDebugRuntime constructs an uninitialized engine bound to proxy.
// skipRedundantPauses wires the configuration knob that suppresses a
// breakpoint check against a step it already stopped on.
func NewDebugRuntime(proxy *lrdp.Proxy, skipRedundantPauses bool) *DebugRuntime {
	return &DebugRuntime{
		proxy:               proxy,
		skipRedundantPauses: skipRedundantPauses,
		state:               StateUninitialized,
		steps:               NewStepManager(),
		typeRegistry:        model.NewTypeRegistry(),
		pausedOnCurrentStep: true, // session start counts as "already paused here"
	}
}

// State returns the current state-machine node.
func (r *DebugRuntime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// ExecutionDone reports whether the runtime has reported an empty
// available-step list at least once.
func (r *DebugRuntime) ExecutionDone() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.executionDone
}

// TerminatedEventSent reports whether MarkTerminatedEventSent was
// already called.
func (r *DebugRuntime) TerminatedEventSent() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.terminatedEventSent
}

// MarkTerminatedEventSent records that the session has emitted (or is
// about to emit) the terminated event.
func (r *DebugRuntime) MarkTerminatedEventSent() {
	r.mu.Lock()
	r.terminatedEventSent = true
	r.mu.Unlock()
}

// CloseProxy closes the underlying language-runtime connection.
func (r *DebugRuntime) CloseProxy() error {
	return r.proxy.Close()
}

// Steps exposes the step manager for read-only queries (stackTrace,
// getAvailableSteps).
func (r *DebugRuntime) Steps() *StepManager { return r.steps }

// Breakpoints exposes the breakpoint manager, or nil before
// initializeExecution completes.
func (r *DebugRuntime) Breakpoints() *BreakpointManager {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.breakpoints
}

// Locator exposes the AST element locator, or nil before initialization.
func (r *DebugRuntime) Locator() *model.ElementLocator {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locator
}

// TypeRegistry exposes the AST/runtime-state type index.
func (r *DebugRuntime) TypeRegistry() *model.TypeRegistry { return r.typeRegistry }

// Variables exposes the variable-reference projection.
func (r *DebugRuntime) Variables() *model.VariableHandler {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.variables
}

// SourceFile returns the source file this session was launched against.
func (r *DebugRuntime) SourceFile() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sourceFile
}

// EnsureRuntimeState fetches the runtime-state tree and rebuilds the
// type registry's runtime half and the variable handler's runtime-state
// indices. Called before any variables request that targets the
// runtime-state scope.
func (r *DebugRuntime) EnsureRuntimeState(ctx context.Context) (*model.ModelElement, error) {
	root, err := r.proxy.GetRuntimeState(ctx, r.SourceFile())
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.runtimeRoot = root
	r.typeRegistry.SetRuntimeState(root)
	r.variables.UpdateRuntime(root)
	r.mu.Unlock()
	return root, nil
}

// InitializeExecution parses the source, initializes the runtime,
// fetches the breakpoint-type catalog and initial step list, resolves
// any deferred setBreakpoints, and runs to the first checkpoint.
func (r *DebugRuntime) InitializeExecution(ctx context.Context, sourceFile string, pauseOnStart, pauseOnEnd bool, extraArgs map[string]interface{}) (StopOutcome, error) {
	r.mu.Lock()
	if r.state != StateUninitialized {
		r.mu.Unlock()
		return StopOutcome{}, lrdperr.New(lrdperr.CodeAlreadyInitialized, "initializeExecution already called for this session")
	}
	r.state = StateInitializing
	r.sourceFile = sourceFile
	r.pauseOnEnd = pauseOnEnd
	r.mu.Unlock()

	astRoot, err := r.proxy.Parse(ctx, sourceFile)
	if err != nil {
		return StopOutcome{}, err
	}
	if err := r.proxy.InitializeExecution(ctx, sourceFile, extraArgs); err != nil {
		return StopOutcome{}, err
	}
	breakpointTypes, err := r.proxy.GetBreakpointTypes(ctx)
	if err != nil {
		return StopOutcome{}, err
	}

	locator := model.NewElementLocator(astRoot)
	bm := NewBreakpointManager(breakpointTypes)
	bm.SetLocator(locator)

	r.mu.Lock()
	r.astRoot = astRoot
	r.locator = locator
	r.typeRegistry.SetAST(astRoot)
	r.variables = model.NewVariableHandler(astRoot)
	r.breakpoints = bm
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()

	if pending != nil {
		pending.done <- bm.SetBreakpoints(pending.sources, pending.linesOffset, pending.columnsOffset)
	}

	available, err := r.proxy.GetAvailableSteps(ctx, sourceFile)
	if err != nil {
		return StopOutcome{}, err
	}
	r.steps.Update(available, nil)
	if err := r.cacheSelectedLocation(ctx); err != nil {
		return StopOutcome{}, err
	}

	if len(available) == 0 {
		r.mu.Lock()
		r.executionDone = true
		if !pauseOnEnd {
			r.state = StateTerminated
			r.mu.Unlock()
			return StopOutcome{Terminated: true}, nil
		}
		r.state = StatePaused
		r.pausedOnCurrentStep = true
		r.mu.Unlock()
		p := NewPauseInformation()
		p.Add(ReasonEnd)
		return stoppedOutcome(p), nil
	}

	selected, _ := r.steps.Selected()
	activated, err := bm.CheckBreakpoints(ctx, r.proxy, sourceFile, selected.ID)
	if err != nil {
		return StopOutcome{}, err
	}

	p := NewPauseInformation()
	if pauseOnStart {
		p.Add(ReasonStart)
	}
	if len(available) > 1 {
		p.Add(ReasonChoice)
	}
	for _, a := range activated {
		p.Add(ReasonBreakpoint)
		p.AddMessage(a.Message)
	}

	if !p.IsEmpty() {
		r.mu.Lock()
		r.state = StatePaused
		r.pausedOnCurrentStep = true
		r.mu.Unlock()
		return stoppedOutcome(p), nil
	}

	r.mu.Lock()
	r.state = StateRunning
	r.pausedOnCurrentStep = false
	r.mu.Unlock()
	return r.driveLoop(ctx, "", false)
}

// beginMotion checks the preconditions shared by run/nextStep/stepIn/
// stepOut: not-yet-initialized is an error; already-terminated
// idempotently resends termination rather than erroring, the resend
// choice for motion operations.
func (r *DebugRuntime) beginMotion() (terminated bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case StateUninitialized, StateInitializing:
		return false, lrdperr.New(lrdperr.CodeNotInitialized, "execution not yet initialized")
	case StateTerminated:
		return true, nil
	default:
		r.state = StateRunning
		return false, nil
	}
}

// Run advances atomic-step by atomic-step with no target.
func (r *DebugRuntime) Run(ctx context.Context) (StopOutcome, error) {
	terminated, err := r.beginMotion()
	if err != nil || terminated {
		return StopOutcome{Terminated: terminated}, err
	}
	return r.driveLoop(ctx, "", false)
}

// NextStep drives execution until the currently selected step's id
// appears in a reported completedSteps.
func (r *DebugRuntime) NextStep(ctx context.Context) (StopOutcome, error) {
	terminated, err := r.beginMotion()
	if err != nil || terminated {
		return StopOutcome{Terminated: terminated}, err
	}
	selected, ok := r.steps.Selected()
	if !ok {
		return StopOutcome{}, lrdperr.New(lrdperr.CodeNoSelectedStep, "no step is selected")
	}
	return r.driveLoop(ctx, selected.ID, true)
}

// StepIn distinguishes itself from NextStep only when the selected step
// is composite: rather than running it to completion, it performs
// exactly one EnterCompositeStep, pushes the stack, refreshes available
// steps, and stops paused inside the composite. An atomic selected step
// has nothing to enter, so the two coincide in that case.
func (r *DebugRuntime) StepIn(ctx context.Context) (StopOutcome, error) {
	terminated, err := r.beginMotion()
	if err != nil || terminated {
		return StopOutcome{Terminated: terminated}, err
	}
	selected, ok := r.steps.Selected()
	if !ok {
		return StopOutcome{}, lrdperr.New(lrdperr.CodeNoSelectedStep, "no step is selected")
	}
	if !selected.IsComposite {
		return r.driveLoop(ctx, selected.ID, true)
	}
	return r.enterOneLevel(ctx, selected)
}

// enterOneLevel performs the composite-selected-step half of StepIn:
// one EnterCompositeStep call, pushing composite onto the call stack and
// refreshing the available-step list, then stopping — it never drives
// further like driveLoop does.
func (r *DebugRuntime) enterOneLevel(ctx context.Context, composite model.Step) (StopOutcome, error) {
	r.mu.Lock()
	pauseRequired := r.pauseRequired
	r.pauseRequired = false
	pausedOnCurrentStep := r.pausedOnCurrentStep
	r.mu.Unlock()

	if pauseRequired {
		p := NewPauseInformation()
		p.Add(ReasonPause)
		return r.stopHere(p), nil
	}

	var activated []ActivatedBreakpoint
	skip := pausedOnCurrentStep && r.skipRedundantPauses
	if !skip {
		var cerr error
		activated, cerr = r.breakpoints.CheckBreakpoints(ctx, r.proxy, r.sourceFile, composite.ID)
		if cerr != nil {
			return StopOutcome{}, cerr
		}
		if len(activated) > 0 {
			p := NewPauseInformation()
			for _, a := range activated {
				p.Add(ReasonBreakpoint)
				p.AddMessage(a.Message)
			}
			return r.stopHere(p), nil
		}
	}

	if err := r.proxy.EnterCompositeStep(ctx, r.sourceFile, composite.ID); err != nil {
		return StopOutcome{}, err
	}
	r.pausedOnCurrentStep = false

	available, err := r.proxy.GetAvailableSteps(ctx, r.sourceFile)
	if err != nil {
		return StopOutcome{}, err
	}
	r.steps.Update(available, nil)
	if err := r.cacheSelectedLocation(ctx); err != nil {
		return StopOutcome{}, err
	}

	switch {
	case len(available) == 0:
		if outcome, terminated := r.handleEndOfProgram(nil); terminated {
			return outcome, nil
		}
		p := NewPauseInformation()
		p.Add(ReasonEnd)
		return r.stopHere(p), nil
	case len(available) > 1:
		p := NewPauseInformation()
		p.Add(ReasonChoice)
		return r.stopHere(p), nil
	default:
		p := NewPauseInformation()
		p.Add(ReasonStep)
		return r.stopHere(p), nil
	}
}

// StepOut drives execution until the stack-top composite's id is
// reported completed, or behaves like Run if the stack is empty. Uses
// id-membership as the loop's exit condition, resolved in favor of the
// existing StepManager pop-loop mechanics rather than tracking stack
// depth separately.
func (r *DebugRuntime) StepOut(ctx context.Context) (StopOutcome, error) {
	terminated, err := r.beginMotion()
	if err != nil || terminated {
		return StopOutcome{Terminated: terminated}, err
	}
	top, ok := r.steps.StackTop()
	if !ok {
		return r.driveLoop(ctx, "", false)
	}
	return r.driveLoop(ctx, top.ID, true)
}

// Pause requests a pause at the next checkpoint; a no-op if the engine
// isn't currently running, so pausing while already paused is itself a
// no-op.
func (r *DebugRuntime) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateRunning {
		r.pauseRequired = true
	}
}

// SelectStep overrides the selected step; id must be currently
// available.
func (r *DebugRuntime) SelectStep(id string) error {
	if !r.steps.SelectStep(id) {
		return lrdperr.New(lrdperr.CodeUnknownStep, "step id is not currently available: "+id)
	}
	return nil
}

// SetBreakpoints verifies source breakpoint slots against the AST. If
// the breakpoint manager doesn't exist yet (initialization still in
// flight), the call blocks on the one-shot deferred promise; a second
// call arriving before the first resolves replaces it, last-writer-wins,
// and the superseded caller receives an all-unverified outcome of its
// own length so it never blocks forever.
func (r *DebugRuntime) SetBreakpoints(sources []SourceBreakpoint, linesOffset, columnsOffset int) []SourceBreakpointOutcome {
	r.mu.Lock()
	if r.breakpoints == nil {
		superseded := r.pending
		pending := &deferredBreakpoints{
			sources:       sources,
			linesOffset:   linesOffset,
			columnsOffset: columnsOffset,
			done:          make(chan []SourceBreakpointOutcome, 1),
		}
		r.pending = pending
		r.mu.Unlock()
		if superseded != nil {
			superseded.done <- make([]SourceBreakpointOutcome, len(superseded.sources))
		}
		return <-pending.done
	}
	bm := r.breakpoints
	r.mu.Unlock()
	return bm.SetBreakpoints(sources, linesOffset, columnsOffset)
}

// findNextAtomicStep walks composite -> composite from selected,
// entering each one via EnterCompositeStep, until an atomic step is
// reached or an interrupt (choice/breakpoint/end) preempts it.
func (r *DebugRuntime) findNextAtomicStep(ctx context.Context, selected model.Step) (atomic model.Step, interrupt *PauseInformation, err error) {
	current := selected
	for current.IsComposite {
		skip := r.pausedOnCurrentStep && r.skipRedundantPauses
		if !skip {
			activated, cerr := r.breakpoints.CheckBreakpoints(ctx, r.proxy, r.sourceFile, current.ID)
			if cerr != nil {
				return model.Step{}, nil, cerr
			}
			if len(activated) > 0 {
				p := NewPauseInformation()
				for _, a := range activated {
					p.Add(ReasonBreakpoint)
					p.AddMessage(a.Message)
				}
				return model.Step{}, p, nil
			}
		}

		if err := r.proxy.EnterCompositeStep(ctx, r.sourceFile, current.ID); err != nil {
			return model.Step{}, nil, err
		}
		r.pausedOnCurrentStep = false

		available, err := r.proxy.GetAvailableSteps(ctx, r.sourceFile)
		if err != nil {
			return model.Step{}, nil, err
		}
		r.steps.Update(available, nil)
		if err := r.cacheSelectedLocation(ctx); err != nil {
			return model.Step{}, nil, err
		}

		switch {
		case len(available) == 0:
			p := NewPauseInformation()
			p.Add(ReasonEnd)
			return model.Step{}, p, nil
		case len(available) > 1:
			p := NewPauseInformation()
			p.Add(ReasonChoice)
			return model.Step{}, p, nil
		}

		current, _ = r.steps.Selected()
	}
	return current, nil, nil
}

// executeAtomicStep performs the pre-step breakpoint check (subject to
// the redundancy skip), executes the atomic step, invalidates the
// variable-reference table, and refreshes available steps.
func (r *DebugRuntime) executeAtomicStep(ctx context.Context, atomic model.Step) (completed []string, activated []ActivatedBreakpoint, err error) {
	skip := r.pausedOnCurrentStep && r.skipRedundantPauses
	if !skip {
		activated, err = r.breakpoints.CheckBreakpoints(ctx, r.proxy, r.sourceFile, atomic.ID)
		if err != nil {
			return nil, nil, err
		}
	}

	completed, err = r.proxy.ExecuteAtomicStep(ctx, r.sourceFile, atomic.ID)
	if err != nil {
		return nil, nil, err
	}
	r.pausedOnCurrentStep = false
	r.variables.InvalidateRuntime()

	available, err := r.proxy.GetAvailableSteps(ctx, r.sourceFile)
	if err != nil {
		return nil, nil, err
	}
	r.steps.Update(available, completed)
	if err := r.cacheSelectedLocation(ctx); err != nil {
		return nil, nil, err
	}
	return completed, activated, nil
}

// cacheSelectedLocation fetches and caches the source location of the
// step StepManager currently has selected, so that a later Update call
// which pushes this step onto the composite stack (on entering it) has
// something to copy into the stack-location cache. A no-op when nothing
// is selected.
func (r *DebugRuntime) cacheSelectedLocation(ctx context.Context) error {
	selected, ok := r.steps.Selected()
	if !ok {
		return nil
	}
	loc, err := r.proxy.GetStepLocation(ctx, r.sourceFile, selected.ID)
	if err != nil {
		return err
	}
	r.steps.CacheAvailableLocation(selected.ID, loc)
	return nil
}

// driveLoop is the shared atomic-step protocol loop behind run,
// nextStep, stepIn and stepOut: it repeats the find/execute cycle until
// a checkpoint or termination condition is reached. hasTarget/target
// enables the "step" reason: when true, the loop also stops as soon as
// target appears in a reported completedSteps.
func (r *DebugRuntime) driveLoop(ctx context.Context, target string, hasTarget bool) (StopOutcome, error) {
	for {
		r.mu.Lock()
		pauseRequired := r.pauseRequired
		r.pauseRequired = false
		pausedOnCurrentStep := r.pausedOnCurrentStep
		r.mu.Unlock()

		if pauseRequired {
			p := NewPauseInformation()
			p.Add(ReasonPause)
			return r.stopHere(p), nil
		}

		if !pausedOnCurrentStep && len(r.steps.AvailableSteps()) > 1 {
			p := NewPauseInformation()
			p.Add(ReasonChoice)
			return r.stopHere(p), nil
		}

		selected, ok := r.steps.Selected()
		if !ok {
			return StopOutcome{}, lrdperr.New(lrdperr.CodeNoSelectedStep, "no step is selected")
		}

		atomic, interrupt, err := r.findNextAtomicStep(ctx, selected)
		if err != nil {
			return StopOutcome{}, err
		}
		if interrupt != nil {
			if interrupt.Has(ReasonEnd) {
				if outcome, terminated := r.handleEndOfProgram(nil); terminated {
					return outcome, nil
				}
			}
			return r.stopHere(interrupt), nil
		}

		completed, activated, err := r.executeAtomicStep(ctx, atomic)
		if err != nil {
			return StopOutcome{}, err
		}

		if len(r.steps.AvailableSteps()) == 0 {
			if outcome, terminated := r.handleEndOfProgram(activated); terminated {
				return outcome, nil
			}
			p := NewPauseInformation()
			p.Add(ReasonEnd)
			for _, a := range activated {
				p.Add(ReasonBreakpoint)
				p.AddMessage(a.Message)
			}
			return r.stopHere(p), nil
		}

		targetHit := hasTarget && containsID(completed, target)
		if targetHit || len(activated) > 0 {
			p := NewPauseInformation()
			if targetHit {
				p.Add(ReasonStep)
			}
			for _, a := range activated {
				p.Add(ReasonBreakpoint)
				p.AddMessage(a.Message)
			}
			return r.stopHere(p), nil
		}
	}
}

// handleEndOfProgram records executionDone and, when pauseOnEnd is not
// set, transitions straight to Terminated, discarding any other reason
// that would otherwise have combined with "end" (the wire's valid
// reason-combination set never pairs "end" with "step" or "choice").
func (r *DebugRuntime) handleEndOfProgram(activated []ActivatedBreakpoint) (StopOutcome, bool) {
	r.mu.Lock()
	r.executionDone = true
	pauseOnEnd := r.pauseOnEnd
	if !pauseOnEnd {
		r.state = StateTerminated
	}
	r.mu.Unlock()
	if !pauseOnEnd {
		return StopOutcome{Terminated: true}, true
	}
	return StopOutcome{}, false
}

func (r *DebugRuntime) stopHere(p *PauseInformation) StopOutcome {
	r.mu.Lock()
	r.state = StatePaused
	r.pausedOnCurrentStep = true
	r.mu.Unlock()
	return stoppedOutcome(p)
}

func containsID(ids []string, target string) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
