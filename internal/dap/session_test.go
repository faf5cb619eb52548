package dap

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/go-dap"

	"github.com/kestrel-dbg/lrdp-dap/internal/config"
	"github.com/kestrel-dbg/lrdp-dap/internal/lrdperr"
)

func newPipedSession(t *testing.T) (*DebugSession, *Transport) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close() })

	sess := NewDebugSession(NewConnTransport(serverConn), config.DefaultConfig())
	client := NewConnTransport(clientConn)
	return sess, client
}

func sendRequest(t *testing.T, client *Transport, req map[string]interface{}) {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	client.mu.Lock()
	defer client.mu.Unlock()
	if _, err := fmt.Fprintf(client.writer, "Content-Length: %d\r\n\r\n%s", len(body), body); err != nil {
		t.Fatalf("failed to write request: %v", err)
	}
	if err := client.writer.Flush(); err != nil {
		t.Fatalf("failed to write request: %v", err)
	}
}

func TestNewDebugSessionHasUniqueID(t *testing.T) {
	s1, _ := newPipedSession(t)
	s2, _ := newPipedSession(t)
	if s1.ID() == "" || s1.ID() == s2.ID() {
		t.Errorf("expected two sessions to receive distinct non-empty ids, got %q and %q", s1.ID(), s2.ID())
	}
}

func TestLinesAndColumnsOffsetDefaultToOneBased(t *testing.T) {
	s, _ := newPipedSession(t)
	if s.linesOffset() != -1 || s.columnsOffset() != -1 {
		t.Errorf("expected the default 1-based IDE origin to offset by -1, got lines=%d columns=%d", s.linesOffset(), s.columnsOffset())
	}
}

func TestRespondRuntimeErrorMapsReservedIDs(t *testing.T) {
	s, client := newPipedSession(t)

	done := make(chan error, 1)
	go func() { done <- s.respondRuntimeError(1, "launch", lrdperr.New(lrdperr.CodeNotInitialized, "not ready")) }()

	raw, err := client.ReceiveFrame()
	if err != nil {
		t.Fatalf("unexpected error receiving frame: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("unexpected error sending: %v", err)
	}

	var resp dap.ErrorResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Body.Error.Id != 200 {
		t.Errorf("expected CodeNotInitialized to map to DAP error id 200, got %d", resp.Body.Error.Id)
	}
}

func TestHandleInitializeSetsOriginAndResponds(t *testing.T) {
	s, client := newPipedSession(t)

	raw := []byte(`{"seq":1,"type":"request","command":"initialize","arguments":{"linesStartAt1":false,"columnsStartAt1":false}}`)
	done := make(chan error, 1)
	go func() { done <- s.handleInitialize(raw) }()

	initResp, err := client.ReceiveFrame()
	if err != nil {
		t.Fatalf("unexpected error receiving initialize response: %v", err)
	}
	if _, err := client.ReceiveFrame(); err != nil {
		t.Fatalf("unexpected error receiving initialized event: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("unexpected error from handleInitialize: %v", err)
	}

	var resp dap.Response
	if err := json.Unmarshal(initResp, &resp); err != nil {
		t.Fatalf("failed to decode initialize response: %v", err)
	}
	if !resp.Success || resp.Command != "initialize" {
		t.Errorf("unexpected initialize response: %+v", resp)
	}
	if s.linesOffset() != 0 {
		t.Errorf("expected linesStartAt1=false to zero out linesOffset, got %d", s.linesOffset())
	}
}

func TestHandlePauseBeforeLaunchIsAnError(t *testing.T) {
	s, client := newPipedSession(t)

	raw := []byte(`{"seq":2,"type":"request","command":"pause","arguments":{"threadId":1}}`)
	done := make(chan error, 1)
	go func() { done <- s.handlePause(raw) }()

	respRaw, err := client.ReceiveFrame()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-done

	var resp dap.ErrorResponse
	json.Unmarshal(respRaw, &resp)
	if resp.Success {
		t.Error("expected pause before launch to fail")
	}
	if resp.Body.Error.Id != 200 {
		t.Errorf("expected error id 200 (not yet initialized), got %d", resp.Body.Error.Id)
	}
}

func TestCloseWithNoRuntimeClosesTransportOnly(t *testing.T) {
	s, client := newPipedSession(t)
	if err := s.Close(); err != nil {
		t.Errorf("unexpected error closing a session with no runtime or process: %v", err)
	}
	client.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, err := client.ReceiveFrame(); err == nil {
		t.Error("expected the peer connection to observe the session's transport closing")
	}
}

func TestDispatchOneRoutesUnimplementedCommands(t *testing.T) {
	s, client := newPipedSession(t)

	raw := []byte(`{"seq":3,"type":"request","command":"evaluate"}`)
	done := make(chan error, 1)
	go func() { done <- s.dispatchOne(context.Background(), requestEnvelope{Seq: 3, Command: "evaluate"}, raw) }()

	respRaw, err := client.ReceiveFrame()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-done

	var resp dap.ErrorResponse
	json.Unmarshal(respRaw, &resp)
	if resp.Success || resp.Body.Error.Id != 100 {
		t.Errorf("expected evaluate to respond not-implemented (id 100), got %+v", resp)
	}
}
