package lrdp

import (
	"context"
	"encoding/json"

	"github.com/kestrel-dbg/lrdp-dap/internal/lrdperr"
	"github.com/kestrel-dbg/lrdp-dap/internal/model"
)

// Proxy is the LanguageRuntimeProxy: a thin typed wrapper over the
// JSON-RPC transport to the language runtime. Every method suspends for
// exactly one request/response round trip and every blocking call
// takes a context.Context, the convention this corpus uses for
// cancelable I/O (grounded in the fansqz-go-debugger Debugger
// interface's per-method ctx parameter).
type Proxy struct {
	transport *Transport
}

// NewProxy wraps an already-dialed transport.
func NewProxy(t *Transport) *Proxy {
	return &Proxy{transport: t}
}

// Close closes the underlying transport.
func (p *Proxy) Close() error { return p.transport.Close() }

// Parse is idempotent: parse({sourceFile}) -> {astRoot}.
func (p *Proxy) Parse(ctx context.Context, sourceFile string) (*model.ModelElement, error) {
	var result struct {
		ASTRoot json.RawMessage `json:"astRoot"`
	}
	if err := p.transport.Call(ctx, "parse", map[string]interface{}{"sourceFile": sourceFile}, &result); err != nil {
		return nil, err
	}
	return decodeElement(result.ASTRoot)
}

// InitializeExecution must be called exactly once per session:
// initializeExecution({sourceFile, entries}) -> {}.
func (p *Proxy) InitializeExecution(ctx context.Context, sourceFile string, entries map[string]interface{}) error {
	return p.transport.Call(ctx, "initializeExecution", map[string]interface{}{
		"sourceFile": sourceFile,
		"entries":    entries,
	}, nil)
}

// GetRuntimeState is called before any variables request targeting the
// runtime-state scope: getRuntimeState({sourceFile}) -> {runtimeStateRoot}.
func (p *Proxy) GetRuntimeState(ctx context.Context, sourceFile string) (*model.ModelElement, error) {
	var result struct {
		RuntimeStateRoot json.RawMessage `json:"runtimeStateRoot"`
	}
	if err := p.transport.Call(ctx, "getRuntimeState", map[string]interface{}{"sourceFile": sourceFile}, &result); err != nil {
		return nil, err
	}
	return decodeElement(result.RuntimeStateRoot)
}

// GetBreakpointTypes is called once, post-init: getBreakpointTypes ->
// {breakpointTypes}.
func (p *Proxy) GetBreakpointTypes(ctx context.Context) ([]model.BreakpointType, error) {
	var result struct {
		BreakpointTypes []wireBreakpointType `json:"breakpointTypes"`
	}
	if err := p.transport.Call(ctx, "getBreakpointTypes", map[string]interface{}{}, &result); err != nil {
		return nil, err
	}
	out := make([]model.BreakpointType, len(result.BreakpointTypes))
	for i, t := range result.BreakpointTypes {
		out[i] = t.toModel()
	}
	return out, nil
}

// CheckResult is the outcome of one checkBreakpoint call.
type CheckResult struct {
	IsActivated bool
	Message     string
}

// CheckBreakpoint is called once per installed breakpoint per step
// check: checkBreakpoint({sourceFile, stepId, typeId, entries}) ->
// {isActivated, message?} | {isActivated: false}.
func (p *Proxy) CheckBreakpoint(ctx context.Context, sourceFile, stepID, typeID string, entries map[string]model.EntryValue) (CheckResult, error) {
	wireEntries := make(map[string]interface{}, len(entries))
	for k, v := range entries {
		wireEntries[k] = entryValueToWire(v)
	}
	var result struct {
		IsActivated bool   `json:"isActivated"`
		Message     string `json:"message,omitempty"`
	}
	if err := p.transport.Call(ctx, "checkBreakpoint", map[string]interface{}{
		"sourceFile": sourceFile,
		"stepId":     stepID,
		"typeId":     typeID,
		"entries":    wireEntries,
	}, &result); err != nil {
		// A malformed checkBreakpoint response degrades to "not
		// activated" so execution keeps making progress; a genuine
		// transport failure stays fatal for the session.
		if lerr, ok := lrdperr.As(err); ok && !lerr.IsFatal() {
			return CheckResult{IsActivated: false}, nil
		}
		return CheckResult{}, err
	}
	return CheckResult{IsActivated: result.IsActivated, Message: result.Message}, nil
}

// GetAvailableSteps is called post-init and after every step action:
// getAvailableSteps({sourceFile}) -> {availableSteps}.
func (p *Proxy) GetAvailableSteps(ctx context.Context, sourceFile string) ([]model.Step, error) {
	var result struct {
		AvailableSteps []wireStep `json:"availableSteps"`
	}
	if err := p.transport.Call(ctx, "getAvailableSteps", map[string]interface{}{"sourceFile": sourceFile}, &result); err != nil {
		return nil, err
	}
	out := make([]model.Step, len(result.AvailableSteps))
	for i, s := range result.AvailableSteps {
		out[i] = s.toModel()
	}
	return out, nil
}

// EnterCompositeStep: enterCompositeStep({sourceFile, stepId}) -> {}.
// stepId must denote a composite step.
func (p *Proxy) EnterCompositeStep(ctx context.Context, sourceFile, stepID string) error {
	return p.transport.Call(ctx, "enterCompositeStep", map[string]interface{}{
		"sourceFile": sourceFile,
		"stepId":     stepID,
	}, nil)
}

// ExecuteAtomicStep: executeAtomicStep({sourceFile, stepId}) ->
// {completedSteps}. stepId must denote an atomic step; completedSteps
// lists ids (innermost-first) of steps finished by this execution.
func (p *Proxy) ExecuteAtomicStep(ctx context.Context, sourceFile, stepID string) ([]string, error) {
	var result struct {
		CompletedSteps []string `json:"completedSteps"`
	}
	if err := p.transport.Call(ctx, "executeAtomicStep", map[string]interface{}{
		"sourceFile": sourceFile,
		"stepId":     stepID,
	}, &result); err != nil {
		return nil, err
	}
	return result.CompletedSteps, nil
}

// GetStepLocation: getStepLocation({sourceFile, stepId}) -> {location?}.
// May legitimately return {} (no location); this is normalized to a nil
// *model.Location, never a non-nil zero value.
func (p *Proxy) GetStepLocation(ctx context.Context, sourceFile, stepID string) (*model.Location, error) {
	var result struct {
		Location *wireLocation `json:"location,omitempty"`
	}
	if err := p.transport.Call(ctx, "getStepLocation", map[string]interface{}{
		"sourceFile": sourceFile,
		"stepId":     stepID,
	}, &result); err != nil {
		return nil, err
	}
	return result.Location.toModel(), nil
}
