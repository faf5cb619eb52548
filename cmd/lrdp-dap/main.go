package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/kestrel-dbg/lrdp-dap/internal/config"
	"github.com/kestrel-dbg/lrdp-dap/internal/dap"
	"github.com/kestrel-dbg/lrdp-dap/internal/session"
	"github.com/kestrel-dbg/lrdp-dap/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	port := flag.Int("port", 0, "TCP port to listen on for IDE connections (required)")
	maxSessions := flag.Int("max-sessions", 0, "override the configured maximum concurrent sessions")
	sessionTimeout := flag.Duration("session-timeout", 0, "override the configured idle session timeout")
	skipRedundantPauses := flag.Bool("skip-redundant-pauses", true, "skip the breakpoint pre-check on the step already paused on")
	showVersion := flag.Bool("version", false, "show version and exit")
	help := flag.Bool("help", false, "show help and exit")

	flag.Parse()

	if *showVersion {
		fmt.Printf("lrdp-dap version %s\n", version.GetVersion())
		os.Exit(0)
	}
	if *help {
		printHelp()
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if *maxSessions > 0 {
		cfg.MaxSessions = *maxSessions
	}
	if *sessionTimeout > 0 {
		cfg.SessionTimeout = *sessionTimeout
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "skip-redundant-pauses" {
			cfg.SkipRedundantPauses = *skipRedundantPauses
		}
	})

	if *port < 4000 || *port > 99999 {
		log.Fatalf("--port is required and must be between 4000 and 99999, got %d", *port)
	}

	registry := session.NewRegistry(cfg.MaxSessions, cfg.SessionTimeout)
	defer registry.Shutdown()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		log.Fatalf("failed to listen on port %d: %v", *port, err)
	}
	defer listener.Close()

	var shuttingDown atomicBool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutting down...")
		shuttingDown.set()
		listener.Close()
		os.Exit(0)
	}()

	log.Printf("waiting for debug protocol at %s", listener.Addr())
	for {
		conn, err := listener.Accept()
		if err != nil {
			if shuttingDown.get() {
				return
			}
			log.Printf("fatal: accept error: %v", err)
			os.Exit(1)
		}
		go serve(conn, cfg, registry)
	}
}

// atomicBool guards the one read/write race between the signal
// goroutine (which sets it before closing the listener) and the accept
// loop (which reads it to decide whether a broken listener is an
// intentional shutdown or a fatal I/O error), per the CLI's exit-code
// contract: 0 on signal, non-zero on a fatal listener error.
type atomicBool struct {
	mu sync.Mutex
	v  bool
}

func (b *atomicBool) set() {
	b.mu.Lock()
	b.v = true
	b.mu.Unlock()
}

func (b *atomicBool) get() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.v
}

func serve(conn net.Conn, cfg *config.Config, registry *session.Registry) {
	transport := dap.NewConnTransport(conn)
	sess := dap.NewDebugSession(transport, cfg)
	sess.OnActivity(func() { registry.Touch(sess.ID()) })

	if err := registry.Register(sess); err != nil {
		log.Printf("dap[%s]: rejected: %v", sess.ID(), err)
		sess.Close()
		return
	}
	defer func() {
		registry.Remove(sess.ID())
		sess.Close()
	}()

	log.Printf("dap[%s]: session started", sess.ID())
	if err := sess.Run(context.Background()); err != nil {
		log.Printf("dap[%s]: session ended: %v", sess.ID(), err)
	}
}

func printHelp() {
	fmt.Println(`lrdp-dap: a Debug Adapter Protocol server fronting an LRDP language runtime

USAGE:
    lrdp-dap --port <port> [OPTIONS]

OPTIONS:
    --port <port>                  TCP port to listen on for IDE connections (required, 4000-99999)
    --config <path>                Path to a JSON configuration file
    --max-sessions <n>             Override the configured maximum concurrent sessions
    --session-timeout <duration>   Override the configured idle session timeout (e.g. 30m)
    --skip-redundant-pauses        Skip the breakpoint pre-check on the step already paused on (default true)
    --version                      Show version and exit
    --help                         Show this help message

Each accepted TCP connection is served as one DAP session. A session
launches its own connection to the language runtime's LRDP endpoint in
response to the IDE's launch request; sessions never share a runtime
connection.`)
}
