package dap

import (
	"net"
	"testing"

	"github.com/google/go-dap"
)

func TestNextSeqIncrements(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	tr := NewConnTransport(server)
	if tr.NextSeq() != 1 || tr.NextSeq() != 2 || tr.NextSeq() != 3 {
		t.Error("expected NextSeq to hand out increasing sequence numbers starting at 1")
	}
}

func TestSendAndReceiveFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	serverSide := NewConnTransport(server)
	clientSide := NewConnTransport(client)

	resp := &dap.InitializeResponse{
		Response: dap.Response{
			ProtocolMessage: dap.ProtocolMessage{Seq: 1, Type: "response"},
			RequestSeq:      1,
			Success:         true,
			Command:         "initialize",
		},
	}

	done := make(chan error, 1)
	go func() { done <- serverSide.Send(resp) }()

	raw, err := clientSide.ReceiveFrame()
	if err != nil {
		t.Fatalf("unexpected error receiving frame: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("unexpected error sending: %v", err)
	}

	if len(raw) == 0 {
		t.Fatal("expected a non-empty frame body")
	}
}

func TestReceiveFrameRejectsMissingContentLength(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	tr := NewConnTransport(server)
	go func() {
		client.Write([]byte("\r\n{}"))
	}()

	if _, err := tr.ReceiveFrame(); err == nil {
		t.Error("expected a frame with no Content-Length header to be rejected")
	}
}
