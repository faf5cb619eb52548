// Package lrdp is a thin typed client for LRDP, the JSON-RPC contract
// the debugger uses to ask the language runtime to parse, initialize,
// step, check breakpoints, and report state. It carries no
// runtime semantics of its own — every method is a single
// request/response round trip.
//
// No JSON-RPC client library appears anywhere in the example pack this
// repository was grounded on, so the transport below is hand-rolled
// from encoding/json + net + bufio, structured the same way the
// teacher structures its own DAP transport/client pair (one
// bufio.Reader/Writer over a net.Conn, a sequence counter, a map of
// pending-request channels keyed by request id, and a single reader
// goroutine demultiplexing responses).
package lrdp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/kestrel-dbg/lrdp-dap/internal/lrdperr"
)

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("lrdp error %d: %s", e.Code, e.Message) }

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// Transport is a JSON-RPC 2.0 client over a single persistent TCP
// connection to the language runtime. Requests are issued in program
// order and their responses are consumed in whatever order they
// arrive. Calls made from different goroutines can be in flight at
// once; the read loop matches each response to its call by id.
type Transport struct {
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder

	mu      sync.Mutex
	nextID  int
	pending map[int]chan rpcResponse

	closeOnce sync.Once
	closed    chan struct{}
	broken    error
}

// Dial connects to the language runtime at address.
func Dial(address string) (*Transport, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, lrdperr.Wrap(lrdperr.CodeRuntimeTransport, fmt.Sprintf("failed to connect to language runtime at %s", address), err)
	}
	return newTransport(conn), nil
}

func newTransport(conn net.Conn) *Transport {
	t := &Transport{
		conn:    conn,
		enc:     json.NewEncoder(conn),
		dec:     json.NewDecoder(bufio.NewReader(conn)),
		pending: make(map[int]chan rpcResponse),
		closed:  make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *Transport) readLoop() {
	for {
		var resp rpcResponse
		if err := t.dec.Decode(&resp); err != nil {
			t.fail(lrdperr.Wrap(lrdperr.CodeRuntimeTransport, "language runtime connection closed", err))
			return
		}
		t.mu.Lock()
		ch, ok := t.pending[resp.ID]
		if ok {
			delete(t.pending, resp.ID)
		}
		t.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

// fail marks the transport broken and wakes every pending call with the
// same fatal error; treats any transport failure as fatal for the
// owning session, with no retry.
func (t *Transport) fail(err error) {
	t.mu.Lock()
	if t.broken == nil {
		t.broken = err
	}
	pending := t.pending
	t.pending = make(map[int]chan rpcResponse)
	t.mu.Unlock()

	for _, ch := range pending {
		ch <- rpcResponse{Error: &rpcError{Message: err.Error()}}
	}
	t.closeOnce.Do(func() { close(t.closed) })
}

// Call issues one JSON-RPC request and blocks for its response. ctx is
// honored while waiting for the response; the write of the request
// itself is not interrupted by ctx. result, if non-nil, receives the
// decoded "result" field.
func (t *Transport) Call(ctx context.Context, method string, params interface{}, result interface{}) error {
	t.mu.Lock()
	if t.broken != nil {
		err := t.broken
		t.mu.Unlock()
		return err
	}
	t.nextID++
	id := t.nextID
	ch := make(chan rpcResponse, 1)
	t.pending[id] = ch
	t.mu.Unlock()

	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	if err := t.enc.Encode(req); err != nil {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
		return lrdperr.Wrap(lrdperr.CodeRuntimeTransport, fmt.Sprintf("failed to send %s request", method), err)
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return lrdperr.Wrap(lrdperr.CodeRuntimeTransport, fmt.Sprintf("%s failed", method), resp.Error)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return lrdperr.Wrap(lrdperr.CodeMalformedResponse, fmt.Sprintf("malformed %s response", method), err)
			}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.closed:
		t.mu.Lock()
		err := t.broken
		t.mu.Unlock()
		if err == nil {
			err = lrdperr.New(lrdperr.CodeRuntimeTransport, "language runtime transport closed")
		}
		return err
	}
}

// Close closes the underlying connection.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return t.conn.Close()
}
