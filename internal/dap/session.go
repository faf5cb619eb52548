package dap

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/go-dap"
	"github.com/google/uuid"

	"github.com/kestrel-dbg/lrdp-dap/internal/config"
	"github.com/kestrel-dbg/lrdp-dap/internal/lrdperr"
	"github.com/kestrel-dbg/lrdp-dap/internal/runtime"
	"github.com/kestrel-dbg/lrdp-dap/internal/runtimeproc"
)

// DebugSession owns one IDE connection end to end: it reads DAP
// requests off a Transport, drives a runtime.DebugRuntime, and writes
// back responses and events. One session serves exactly one IDE
// connection and, once launched, exactly one language runtime
// connection — there are no compound sessions.
//
// Requests are dispatched onto their own goroutine as they arrive, not
// handled one at a time off the read loop: a slow launch (dialing the
// runtime, running its initialize round trip) must not block a
// concurrently-arriving setBreakpoints, whose deferred-promise handoff
// with DebugRuntime.SetBreakpoints depends on that concurrency.
type DebugSession struct {
	id        string
	transport *Transport
	cfg       *config.Config

	linesStartAt1   bool
	columnsStartAt1 bool

	mu         sync.Mutex
	runtime    *runtime.DebugRuntime
	process    *runtimeproc.Process
	onActivity func()
}

// OnActivity registers fn to be called once per inbound frame, before
// dispatch. The session registry wires this to Touch so its idle
// reaper measures time since the last request, not time since
// registration.
func (s *DebugSession) OnActivity(fn func()) { s.onActivity = fn }

// NewDebugSession wraps an accepted IDE connection.
func NewDebugSession(transport *Transport, cfg *config.Config) *DebugSession {
	return &DebugSession{
		id:              uuid.NewString(),
		transport:       transport,
		cfg:             cfg,
		linesStartAt1:   true,
		columnsStartAt1: true,
	}
}

// ID satisfies session.Handle.
func (s *DebugSession) ID() string { return s.id }

// Close satisfies session.Handle: it tears down the language-runtime
// connection and any spawned process, then closes the IDE connection.
func (s *DebugSession) Close() error {
	if rt := s.getRuntime(); rt != nil {
		rt.CloseProxy()
	}
	if p := s.getProcess(); p != nil {
		p.Kill()
	}
	return s.transport.Close()
}

func (s *DebugSession) getRuntime() *runtime.DebugRuntime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runtime
}

func (s *DebugSession) setRuntime(rt *runtime.DebugRuntime) {
	s.mu.Lock()
	s.runtime = rt
	s.mu.Unlock()
}

func (s *DebugSession) getProcess() *runtimeproc.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.process
}

func (s *DebugSession) setProcess(p *runtimeproc.Process) {
	s.mu.Lock()
	s.process = p
	s.mu.Unlock()
}

// Run reads frames until disconnect or a transport failure. Every
// request is dispatched on its own goroutine; a handler that fails to
// send its response closes the transport, which in turn unblocks this
// read loop with an error. The caller is responsible for calling Close
// once Run returns.
func (s *DebugSession) Run(ctx context.Context) error {
	for {
		raw, err := s.transport.ReceiveFrame()
		if err != nil {
			return err
		}

		if s.onActivity != nil {
			s.onActivity()
		}

		var env requestEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("dap[%s]: dropping malformed frame: %v", s.id, err)
			continue
		}

		if env.Command == "disconnect" {
			s.handleDisconnect(raw)
			return nil
		}

		go s.dispatchAsync(ctx, env, raw)
	}
}

func (s *DebugSession) dispatchAsync(ctx context.Context, env requestEnvelope, raw json.RawMessage) {
	if err := s.dispatchOne(ctx, env, raw); err != nil {
		log.Printf("dap[%s]: %s failed, closing session: %v", s.id, env.Command, err)
		s.transport.Close()
	}
}

// requestEnvelope is peeked out of every inbound frame before deciding
// whether it's a standard DAP request (dispatched into a go-dap
// struct) or one of this server's six custom requests. go-dap's own
// ReadProtocolMessage has no typed struct for the latter, so every
// frame is read as raw JSON first (Transport.ReceiveFrame) and
// re-decoded here once the command is known.
type requestEnvelope struct {
	Seq     int    `json:"seq"`
	Type    string `json:"type"`
	Command string `json:"command"`
}

func (s *DebugSession) dispatchOne(ctx context.Context, env requestEnvelope, raw json.RawMessage) error {
	switch env.Command {
	case "initialize":
		return s.handleInitialize(raw)
	case "launch":
		return s.handleLaunch(ctx, raw)
	case "configurationDone":
		return s.handleConfigurationDone(raw)
	case "threads":
		return s.handleThreads(raw)
	case "pause":
		return s.handlePause(raw)
	case "continue":
		return s.handleMotion(ctx, raw, "continue", s.runtimeMotion((*runtime.DebugRuntime).Run))
	case "next":
		return s.handleMotion(ctx, raw, "next", s.runtimeMotion((*runtime.DebugRuntime).NextStep))
	case "stepIn":
		return s.handleMotion(ctx, raw, "stepIn", s.runtimeMotion((*runtime.DebugRuntime).StepIn))
	case "stepOut":
		return s.handleMotion(ctx, raw, "stepOut", s.runtimeMotion((*runtime.DebugRuntime).StepOut))
	case "setBreakpoints":
		return s.handleSetBreakpoints(raw)
	case "stackTrace":
		return s.handleStackTrace(raw)
	case "scopes":
		return s.handleScopes(raw)
	case "variables":
		return s.handleVariables(ctx, raw)
	case "source", "evaluate", "attach":
		return s.respondError(env.Seq, env.Command, 100, env.Command+" is not implemented")
	default:
		return s.handleCustom(ctx, env, raw)
	}
}

// runtimeMotion binds one of DebugRuntime's motion methods to the
// session's current runtime, resolved at call time rather than at
// dispatch time, so it always sees the latest value set by launch.
func (s *DebugSession) runtimeMotion(fn func(*runtime.DebugRuntime, context.Context) (runtime.StopOutcome, error)) func(context.Context) (runtime.StopOutcome, error) {
	return func(ctx context.Context) (runtime.StopOutcome, error) {
		return fn(s.getRuntime(), ctx)
	}
}

// linesOffset/columnsOffset translate an IDE-origin coordinate into the
// runtime-origin (0-based) coordinates the model package works in.
func (s *DebugSession) linesOffset() int {
	if s.linesStartAt1 {
		return -1
	}
	return 0
}

func (s *DebugSession) columnsOffset() int {
	if s.columnsStartAt1 {
		return -1
	}
	return 0
}

func (s *DebugSession) send(msg dap.Message) error {
	return s.transport.Send(msg)
}

// respondError writes a standard DAP ErrorResponse.
func (s *DebugSession) respondError(requestSeq int, command string, id int, message string) error {
	return s.send(&dap.ErrorResponse{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Seq: s.transport.NextSeq(), Type: "response"},
			RequestSeq:      requestSeq,
			Success:         false,
			Command:         command,
			Message:         message,
		},
		Body: dap.ErrorResponseBody{Error: &dap.ErrorMessage{Id: id, Format: message}},
	})
}

// respondRuntimeError translates an *lrdperr.Error (or any other error)
// from the runtime into an ErrorResponse: 100 for
// not-implemented/unknown-command/malformed-arguments, 200 for
// not-yet-initialized, 201 for already-initialized, 0 (no reserved DAP
// meaning) for everything else.
func (s *DebugSession) respondRuntimeError(requestSeq int, command string, err error) error {
	id, message := 0, err.Error()
	if e, ok := lrdperr.As(err); ok {
		message = e.Message
		switch e.Code {
		case lrdperr.CodeNotImplemented, lrdperr.CodeUnknownCommand, lrdperr.CodeMalformedArguments:
			id = 100
		case lrdperr.CodeNotInitialized:
			id = 200
		case lrdperr.CodeAlreadyInitialized:
			id = 201
		}
	}
	return s.respondError(requestSeq, command, id, message)
}

// sendOutcome translates a runtime.StopOutcome into the matching DAP
// event. The caller must have already sent the triggering request's
// response.
func (s *DebugSession) sendOutcome(outcome runtime.StopOutcome) error {
	if outcome.Terminated {
		return s.sendTerminated()
	}
	return s.send(&dap.StoppedEvent{
		Event: dap.Event{ProtocolMessage: dap.ProtocolMessage{Seq: s.transport.NextSeq(), Type: "event"}, Event: "stopped"},
		Body: dap.StoppedEventBody{
			Reason:            outcome.Reason,
			Description:       outcome.Description,
			ThreadId:          1,
			AllThreadsStopped: true,
		},
	})
}

// sendTerminated emits the terminated event. Repeat sends against an
// already-terminated runtime are tolerated, so nothing here guards
// against calling it twice; MarkTerminatedEventSent only records that
// it happened at least once, for diagnostics.
func (s *DebugSession) sendTerminated() error {
	if rt := s.getRuntime(); rt != nil {
		rt.MarkTerminatedEventSent()
	}
	return s.send(&dap.TerminatedEvent{
		Event: dap.Event{ProtocolMessage: dap.ProtocolMessage{Seq: s.transport.NextSeq(), Type: "event"}, Event: "terminated"},
	})
}

func unmarshalRequest(raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("dap: malformed request: %w", err)
	}
	return nil
}
