package runtimeproc

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestSpawnAndKill(t *testing.T) {
	proc, err := Spawn(context.Background(), Spec{Command: "sleep", Args: []string{"5"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := proc.Kill(); err != nil {
		t.Errorf("unexpected error killing process: %v", err)
	}
}

func TestSpawnInvalidCommand(t *testing.T) {
	if _, err := Spawn(context.Background(), Spec{Command: "no-such-command-in-path-xyz"}); err == nil {
		t.Error("expected an unresolvable command to fail to start")
	}
}

func TestKillOnNilProcessIsNoOp(t *testing.T) {
	var p *Process
	if err := p.Kill(); err != nil {
		t.Errorf("expected Kill on a nil *Process to be a no-op, got %v", err)
	}
}

func TestWaitForPortSucceedsOnceListening(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to set up listener: %v", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := WaitForPort(ctx, ln.Addr().String()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestWaitForPortTimesOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	// Port 1 is reserved and effectively never accepts in test environments.
	if err := WaitForPort(ctx, "127.0.0.1:1"); err == nil {
		t.Error("expected WaitForPort to time out against an unreachable address")
	}
}
