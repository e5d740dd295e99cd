package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/albertocavalcante/morphir-make/internal/log"
)

// ErrNotRunning is returned when no engine listens on the given socket.
var ErrNotRunning = errors.New("engine not running")

// closeGrace is how long a spawned engine gets to exit after stdin closes.
const closeGrace = 5 * time.Second

// Spawn starts the engine binary and talks to it over stdin/stdout.
// The engine's stderr is passed through. Cancelling ctx kills the process.
func Spawn(ctx context.Context, path string, args []string, opts ...Option) (*Client, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open engine stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start engine %s: %w", path, err)
	}
	log.Debug("engine started", "component", "engine", "path", path, "pid", cmd.Process.Pid)

	return NewClient(&process{cmd: cmd, stdin: stdin, stdout: stdout}, opts...), nil
}

// Dial connects to an engine already listening on a unix socket.
func Dial(ctx context.Context, socketPath string, opts ...Option) (*Client, error) {
	dialer := net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		if isConnectionRefused(err) {
			return nil, fmt.Errorf("%w at %s", ErrNotRunning, socketPath)
		}
		return nil, fmt.Errorf("failed to connect to engine: %w", err)
	}
	return NewClient(conn, opts...), nil
}

// isConnectionRefused checks if the error is a connection refused error.
func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	// Covers both ECONNREFUSED and ENOENT (socket file doesn't exist)
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// process adapts a child process's stdio to io.ReadWriteCloser.
type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func (p *process) Read(b []byte) (int, error)  { return p.stdout.Read(b) }
func (p *process) Write(b []byte) (int, error) { return p.stdin.Write(b) }

// Close ends stdin so the engine can exit, then reaps it, killing it if it
// outlives closeGrace.
func (p *process) Close() error {
	_ = p.stdin.Close()
	_ = p.stdout.Close()

	exited := make(chan error, 1)
	go func() { exited <- p.cmd.Wait() }()

	select {
	case err := <-exited:
		logExit(p.cmd, err)
	case <-time.After(closeGrace):
		_ = p.cmd.Process.Kill()
		logExit(p.cmd, <-exited)
	}
	return nil
}

func logExit(cmd *exec.Cmd, err error) {
	if err != nil {
		log.Debug("engine exited", "component", "engine", "error", err)
		return
	}
	log.Debug("engine exited", "component", "engine", "code", cmd.ProcessState.ExitCode())
}
