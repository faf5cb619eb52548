package dap

import (
	"context"
	"encoding/json"

	"github.com/google/go-dap"

	"github.com/kestrel-dbg/lrdp-dap/internal/customreq"
	"github.com/kestrel-dbg/lrdp-dap/internal/lrdperr"
)

// handleCustom dispatches one of the six domain requests that have no
// go-dap struct of their own. A malformed-arguments failure gets the
// diagnostic {_exception, _args} body instead of a plain message, so an
// IDE extension can show the caller exactly what it sent.
func (s *DebugSession) handleCustom(ctx context.Context, env requestEnvelope, raw json.RawMessage) error {
	var req customreq.Request
	if err := unmarshalRequest(raw, &req); err != nil {
		return s.respondCustomError(env.Seq, env.Command, err.Error(), nil)
	}

	rt := s.getRuntime()
	if rt == nil {
		return s.respondCustomError(env.Seq, env.Command, "execution not yet initialized", nil)
	}

	outcome, err := customreq.Dispatch(env.Command, req.Arguments, rt, s.linesOffset(), s.columnsOffset())
	if err != nil {
		if e, ok := lrdperr.As(err); ok && e.Code == lrdperr.CodeMalformedArguments {
			return s.respondCustomError(env.Seq, env.Command, e.Message, &customreq.MalformedArgsBody{
				Exception: e.Message,
				Args:      req.Arguments,
			})
		}
		return s.respondCustomError(env.Seq, env.Command, err.Error(), nil)
	}

	if err := s.send(&customreq.Response{
		ProtocolMessage: dap.ProtocolMessage{Seq: s.transport.NextSeq(), Type: "response"},
		RequestSeq:      env.Seq,
		Success:         true,
		Command:         env.Command,
		Body:            outcome.Body,
	}); err != nil {
		return err
	}

	if outcome.InvalidatedStacks {
		return s.send(&dap.InvalidatedEvent{
			Event: dap.Event{ProtocolMessage: dap.ProtocolMessage{Seq: s.transport.NextSeq(), Type: "event"}, Event: "invalidated"},
			Body:  dap.InvalidatedEventBody{Areas: []dap.InvalidatedAreas{"stacks"}},
		})
	}
	return nil
}

func (s *DebugSession) respondCustomError(requestSeq int, command, message string, body interface{}) error {
	return s.send(&customreq.Response{
		ProtocolMessage: dap.ProtocolMessage{Seq: s.transport.NextSeq(), Type: "response"},
		RequestSeq:      requestSeq,
		Success:         false,
		Command:         command,
		Message:         message,
		Body:            body,
	})
}
