package lrdp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"
)

// fakeRuntimeServer serves one side of a net.Pipe as a minimal LRDP
// peer: it decodes a request and calls respond with its id and method
// to build the reply.
func fakeRuntimeServer(t *testing.T, conn net.Conn, respond func(id int, method string) rpcResponse) {
	t.Helper()
	dec := json.NewDecoder(bufio.NewReader(conn))
	enc := json.NewEncoder(conn)
	for {
		var req rpcRequest
		if err := dec.Decode(&req); err != nil {
			return
		}
		if err := enc.Encode(respond(req.ID, req.Method)); err != nil {
			return
		}
	}
}

func TestTransportCallRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	go fakeRuntimeServer(t, server, func(id int, method string) rpcResponse {
		result, _ := json.Marshal(map[string]string{"echo": method})
		return rpcResponse{JSONRPC: "2.0", ID: id, Result: result}
	})

	tr := newTransport(client)
	defer tr.Close()

	var out struct {
		Echo string `json:"echo"`
	}
	if err := tr.Call(context.Background(), "parse", map[string]interface{}{"sourceFile": "x"}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Echo != "parse" {
		t.Errorf("expected echo of the method name, got %q", out.Echo)
	}
}

func TestTransportCallPropagatesRPCError(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	go fakeRuntimeServer(t, server, func(id int, method string) rpcResponse {
		return rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: 1, Message: "boom"}}
	})

	tr := newTransport(client)
	defer tr.Close()

	err := tr.Call(context.Background(), "parse", nil, nil)
	if err == nil {
		t.Fatal("expected an error response to surface as an error")
	}
}

func TestTransportCallHonorsContextCancellation(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	// The fake peer reads requests but never responds.
	go io.Copy(io.Discard, server)

	tr := newTransport(client)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// No response ever arrives, so the call must return via ctx.Done.
	err := tr.Call(ctx, "parse", nil, nil)
	if err == nil {
		t.Fatal("expected a context deadline error")
	}
}

func TestTransportCallAfterCloseFails(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	tr := newTransport(client)
	tr.Close()

	err := tr.Call(context.Background(), "parse", nil, nil)
	if err == nil {
		t.Error("expected a call against a closed transport to fail")
	}
}
