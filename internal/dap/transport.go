// Package dap implements the IDE-facing side of the Debug Adapter
// Protocol: wire framing (Transport) and the per-connection request
// loop (DebugSession) that dispatches DAP requests into a
// runtime.DebugRuntime and translates its results back into DAP
// responses and events.
//
// Unlike the teacher's client-role transport, this one only ever
// accepts connections: a DebugSession reads requests and writes
// responses/events, never the reverse.
package dap

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/google/go-dap"
)

// Transport reads and writes framed DAP messages over one accepted
// IDE connection.
type Transport struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	mu     sync.Mutex
	seq    int
}

// NewConnTransport wraps an accepted IDE connection.
func NewConnTransport(conn net.Conn) *Transport {
	return &Transport{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
		seq:    1,
	}
}

// NextSeq returns the next protocol message sequence number.
func (t *Transport) NextSeq() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	seq := t.seq
	t.seq++
	return seq
}

// Send writes one DAP response or event. Serialized against concurrent
// event emission (e.g. an invalidated event following a custom-request
// response).
func (t *Transport) Send(msg dap.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := dap.WriteProtocolMessage(t.writer, msg); err != nil {
		return fmt.Errorf("failed to write DAP message: %w", err)
	}
	return t.writer.Flush()
}

// ReceiveFrame blocks for the next inbound message and returns its raw
// JSON body, header-framing stripped. go-dap's own ReadProtocolMessage
// only returns typed structs for the command names it knows about,
// which excludes every one of this server's custom requests; a session
// needs the raw bytes to peek at "command" before deciding whether to
// decode into a dap.Request or a customreq.Request. The Content-Length
// framing this replicates is the same one dap.WriteProtocolMessage
// writes on the way out.
func (t *Transport) ReceiveFrame() (json.RawMessage, error) {
	var contentLength int
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read DAP header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		const prefix = "Content-Length:"
		if strings.HasPrefix(line, prefix) {
			n, err := strconv.Atoi(strings.TrimSpace(line[len(prefix):]))
			if err != nil {
				return nil, fmt.Errorf("malformed Content-Length header: %w", err)
			}
			contentLength = n
		}
	}
	if contentLength <= 0 {
		return nil, fmt.Errorf("DAP frame missing Content-Length header")
	}
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, fmt.Errorf("failed to read DAP body: %w", err)
	}
	return json.RawMessage(body), nil
}

// Close closes the underlying connection.
func (t *Transport) Close() error {
	return t.conn.Close()
}
