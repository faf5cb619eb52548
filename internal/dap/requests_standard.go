package dap

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/go-dap"

	"github.com/kestrel-dbg/lrdp-dap/internal/lrdp"
	"github.com/kestrel-dbg/lrdp-dap/internal/model"
	"github.com/kestrel-dbg/lrdp-dap/internal/runtime"
	"github.com/kestrel-dbg/lrdp-dap/internal/runtimeproc"
)

func (s *DebugSession) handleInitialize(raw json.RawMessage) error {
	var req dap.InitializeRequest
	if err := unmarshalRequest(raw, &req); err != nil {
		return s.respondError(0, "initialize", 100, err.Error())
	}

	s.linesStartAt1 = req.Arguments.LinesStartAt1
	s.columnsStartAt1 = req.Arguments.ColumnsStartAt1

	if err := s.send(&dap.InitializeResponse{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Seq: s.transport.NextSeq(), Type: "response"},
			RequestSeq:      req.Seq,
			Success:         true,
			Command:         "initialize",
		},
		Body: dap.Capabilities{
			SupportsConfigurationDoneRequest: true,
		},
	}); err != nil {
		return err
	}

	return s.send(&dap.InitializedEvent{
		Event: dap.Event{ProtocolMessage: dap.ProtocolMessage{Seq: s.transport.NextSeq(), Type: "event"}, Event: "initialized"},
	})
}

// launchArguments is the launch arguments shape, plus the optional
// runtime-process-launch fields nested inside additionalArgs.
type launchArguments struct {
	SourceFile          string                 `json:"sourceFile"`
	LanguageRuntimePort int                    `json:"languageRuntimePort"`
	PauseOnStart        bool                   `json:"pauseOnStart"`
	PauseOnEnd          bool                   `json:"pauseOnEnd"`
	AdditionalArgs      map[string]interface{} `json:"additionalArgs"`
	NoDebug             bool                   `json:"noDebug"`
}

func (s *DebugSession) handleLaunch(ctx context.Context, raw json.RawMessage) error {
	var req dap.LaunchRequest
	if err := unmarshalRequest(raw, &req); err != nil {
		return s.respondError(0, "launch", 100, err.Error())
	}

	var args launchArguments
	if err := json.Unmarshal(req.Arguments, &args); err != nil {
		return s.respondError(req.Seq, "launch", 100, "malformed launch arguments: "+err.Error())
	}
	if args.NoDebug {
		return s.respondError(req.Seq, "launch", 100, "noDebug launch is not supported")
	}

	address := fmt.Sprintf("127.0.0.1:%d", args.LanguageRuntimePort)

	if spec, ok := runtimeProcessSpec(args.AdditionalArgs); ok {
		process, err := runtimeproc.Spawn(ctx, spec)
		if err != nil {
			return s.respondError(req.Seq, "launch", 0, err.Error())
		}
		s.setProcess(process)
		if err := runtimeproc.WaitForPort(ctx, address); err != nil {
			return s.respondError(req.Seq, "launch", 0, err.Error())
		}
	}

	transport, err := lrdp.Dial(address)
	if err != nil {
		return s.respondError(req.Seq, "launch", 0, err.Error())
	}
	proxy := lrdp.NewProxy(transport)
	rt := runtime.NewDebugRuntime(proxy, s.cfg.SkipRedundantPauses)
	s.setRuntime(rt)

	outcome, err := rt.InitializeExecution(ctx, args.SourceFile, args.PauseOnStart, args.PauseOnEnd, args.AdditionalArgs)
	if err != nil {
		return s.respondRuntimeError(req.Seq, "launch", err)
	}

	if err := s.send(&dap.LaunchResponse{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Seq: s.transport.NextSeq(), Type: "response"},
			RequestSeq:      req.Seq,
			Success:         true,
			Command:         "launch",
		},
	}); err != nil {
		return err
	}
	return s.sendOutcome(outcome)
}

// runtimeProcessSpec extracts the optional runtimeCommand/runtimeArgs/
// runtimeCwd/runtimeEnv fields from launch's additionalArgs.
func runtimeProcessSpec(additionalArgs map[string]interface{}) (runtimeproc.Spec, bool) {
	command, ok := additionalArgs["runtimeCommand"].(string)
	if !ok || command == "" {
		return runtimeproc.Spec{}, false
	}
	spec := runtimeproc.Spec{Command: command}
	if rawArgs, ok := additionalArgs["runtimeArgs"].([]interface{}); ok {
		for _, a := range rawArgs {
			if str, ok := a.(string); ok {
				spec.Args = append(spec.Args, str)
			}
		}
	}
	if cwd, ok := additionalArgs["runtimeCwd"].(string); ok {
		spec.Cwd = cwd
	}
	if env, ok := additionalArgs["runtimeEnv"].(map[string]interface{}); ok {
		spec.Env = make(map[string]string, len(env))
		for k, v := range env {
			if str, ok := v.(string); ok {
				spec.Env[k] = str
			}
		}
	}
	return spec, true
}

func (s *DebugSession) handleConfigurationDone(raw json.RawMessage) error {
	var req dap.ConfigurationDoneRequest
	if err := unmarshalRequest(raw, &req); err != nil {
		return s.respondError(0, "configurationDone", 100, err.Error())
	}
	return s.send(&dap.ConfigurationDoneResponse{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Seq: s.transport.NextSeq(), Type: "response"},
			RequestSeq:      req.Seq,
			Success:         true,
			Command:         "configurationDone",
		},
	})
}

func (s *DebugSession) handleDisconnect(raw json.RawMessage) {
	var req dap.DisconnectRequest
	_ = unmarshalRequest(raw, &req)
	_ = s.send(&dap.DisconnectResponse{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Seq: s.transport.NextSeq(), Type: "response"},
			RequestSeq:      req.Seq,
			Success:         true,
			Command:         "disconnect",
		},
	})
}

func (s *DebugSession) handleThreads(raw json.RawMessage) error {
	var req dap.ThreadsRequest
	if err := unmarshalRequest(raw, &req); err != nil {
		return s.respondError(0, "threads", 100, err.Error())
	}
	return s.send(&dap.ThreadsResponse{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Seq: s.transport.NextSeq(), Type: "response"},
			RequestSeq:      req.Seq,
			Success:         true,
			Command:         "threads",
		},
		Body: dap.ThreadsResponseBody{Threads: []dap.Thread{{Id: 1, Name: "Unique Thread"}}},
	})
}

func (s *DebugSession) handlePause(raw json.RawMessage) error {
	var req dap.PauseRequest
	if err := unmarshalRequest(raw, &req); err != nil {
		return s.respondError(0, "pause", 100, err.Error())
	}
	rt := s.getRuntime()
	if rt == nil {
		return s.respondError(req.Seq, "pause", 200, "execution not yet initialized")
	}
	rt.Pause()
	return s.send(&dap.PauseResponse{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Seq: s.transport.NextSeq(), Type: "response"},
			RequestSeq:      req.Seq,
			Success:         true,
			Command:         "pause",
		},
	})
}

// handleMotion is the shared shape of continue/next/stepIn/stepOut: ack
// the request, then drive the motion function and emit the resulting
// event.
func (s *DebugSession) handleMotion(ctx context.Context, raw json.RawMessage, command string, motion func(context.Context) (runtime.StopOutcome, error)) error {
	var env requestEnvelope
	_ = json.Unmarshal(raw, &env)

	if s.getRuntime() == nil {
		return s.respondError(env.Seq, command, 200, "execution not yet initialized")
	}

	outcome, err := motion(ctx)
	if err != nil {
		return s.respondRuntimeError(env.Seq, command, err)
	}

	if err := s.ackMotion(env.Seq, command); err != nil {
		return err
	}
	return s.sendOutcome(outcome)
}

// ackMotion sends the (body-less, for every motion command but
// continue) success response. continue is the only one of the four
// with a Body, so it gets its own branch.
func (s *DebugSession) ackMotion(requestSeq int, command string) error {
	base := dap.Response{
		ProtocolMessage: dap.ProtocolMessage{Seq: s.transport.NextSeq(), Type: "response"},
		RequestSeq:      requestSeq,
		Success:         true,
		Command:         command,
	}
	switch command {
	case "continue":
		return s.send(&dap.ContinueResponse{Response: base, Body: dap.ContinueResponseBody{AllThreadsContinued: true}})
	case "next":
		return s.send(&dap.NextResponse{Response: base})
	case "stepIn":
		return s.send(&dap.StepInResponse{Response: base})
	case "stepOut":
		return s.send(&dap.StepOutResponse{Response: base})
	default:
		return s.send(&base)
	}
}

func (s *DebugSession) handleSetBreakpoints(raw json.RawMessage) error {
	var req dap.SetBreakpointsRequest
	if err := unmarshalRequest(raw, &req); err != nil {
		return s.respondError(0, "setBreakpoints", 100, err.Error())
	}

	rt := s.getRuntime()
	if rt == nil {
		return s.respondError(req.Seq, "setBreakpoints", 200, "launch has not produced a runtime yet")
	}

	sources := make([]runtime.SourceBreakpoint, len(req.Arguments.Breakpoints))
	for i, bp := range req.Arguments.Breakpoints {
		sources[i] = runtime.SourceBreakpoint{Line: bp.Line, Column: bp.Column, HasColumn: bp.Column != 0}
	}

	outcomes := rt.SetBreakpoints(sources, s.linesOffset(), s.columnsOffset())
	breakpoints := make([]dap.Breakpoint, len(outcomes))
	for i, o := range outcomes {
		breakpoints[i] = dap.Breakpoint{Id: o.ID, Verified: o.Verified}
	}

	return s.send(&dap.SetBreakpointsResponse{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Seq: s.transport.NextSeq(), Type: "response"},
			RequestSeq:      req.Seq,
			Success:         true,
			Command:         "setBreakpoints",
		},
		Body: dap.SetBreakpointsResponseBody{Breakpoints: breakpoints},
	})
}

// frameSource pairs a step with its cached location, if any, so
// handleStackTrace can build every frame entry the same way.
type frameSource struct {
	step model.Step
	loc  *model.Location
}

// handleStackTrace projects the step manager's call stack into DAP stack
// frames: one frame per composite step on the stack, innermost first,
// plus a trailing root frame named Main. A step with no cached location
// yet renders at (0,0).
func (s *DebugSession) handleStackTrace(raw json.RawMessage) error {
	var req dap.StackTraceRequest
	if err := unmarshalRequest(raw, &req); err != nil {
		return s.respondError(0, "stackTrace", 100, err.Error())
	}
	rt := s.getRuntime()
	if rt == nil {
		return s.respondError(req.Seq, "stackTrace", 200, "execution not yet initialized")
	}

	steps := rt.Steps()
	stack := steps.Stack()
	var sources []frameSource
	for i := len(stack) - 1; i >= 0; i-- {
		loc, _ := steps.StackLocation(stack[i].ID)
		sources = append(sources, frameSource{step: stack[i], loc: loc})
	}
	sources = append(sources, frameSource{step: model.Step{Name: "Main"}})

	frames := make([]dap.StackFrame, len(sources))
	for i, src := range sources {
		frames[i] = s.stackFrame(i, src)
	}

	return s.send(&dap.StackTraceResponse{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Seq: s.transport.NextSeq(), Type: "response"},
			RequestSeq:      req.Seq,
			Success:         true,
			Command:         "stackTrace",
		},
		Body: dap.StackTraceResponseBody{StackFrames: frames, TotalFrames: len(frames)},
	})
}

func (s *DebugSession) stackFrame(id int, src frameSource) dap.StackFrame {
	frame := dap.StackFrame{Id: id, Name: src.step.Name}
	if src.loc != nil {
		ide := src.loc.Offset(-s.linesOffset(), -s.columnsOffset())
		frame.Line = ide.Line
		frame.Column = ide.Column
		frame.EndLine = ide.EndLine
		frame.EndColumn = ide.EndColumn
	}
	return frame
}

func (s *DebugSession) handleScopes(raw json.RawMessage) error {
	var req dap.ScopesRequest
	if err := unmarshalRequest(raw, &req); err != nil {
		return s.respondError(0, "scopes", 100, err.Error())
	}
	scopes := []dap.Scope{
		{Name: "AST", VariablesReference: 1, Expensive: false},
		{Name: "Runtime State", VariablesReference: 2, Expensive: false},
	}
	return s.send(&dap.ScopesResponse{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Seq: s.transport.NextSeq(), Type: "response"},
			RequestSeq:      req.Seq,
			Success:         true,
			Command:         "scopes",
		},
		Body: dap.ScopesResponseBody{Scopes: scopes},
	})
}

func (s *DebugSession) handleVariables(ctx context.Context, raw json.RawMessage) error {
	var req dap.VariablesRequest
	if err := unmarshalRequest(raw, &req); err != nil {
		return s.respondError(0, "variables", 100, err.Error())
	}
	rt := s.getRuntime()
	if rt == nil {
		return s.respondError(req.Seq, "variables", 200, "execution not yet initialized")
	}

	if req.Arguments.VariablesReference == model.RuntimeStateRootHandle {
		if _, err := rt.EnsureRuntimeState(ctx); err != nil {
			return s.respondRuntimeError(req.Seq, "variables", err)
		}
	}

	vars, err := rt.Variables().GetVariables(req.Arguments.VariablesReference)
	if err != nil {
		return s.respondError(req.Seq, "variables", 0, err.Error())
	}

	out := make([]dap.Variable, len(vars))
	for i, v := range vars {
		out[i] = dap.Variable{Name: v.Name, Value: v.Value, VariablesReference: v.VariablesReference}
	}

	return s.send(&dap.VariablesResponse{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Seq: s.transport.NextSeq(), Type: "response"},
			RequestSeq:      req.Seq,
			Success:         true,
			Command:         "variables",
		},
		Body: dap.VariablesResponseBody{Variables: out},
	})
}
