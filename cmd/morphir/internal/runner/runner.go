// Package runner locates and starts the compilation engine.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/engine"
	"github.com/albertocavalcante/morphir-make/internal/log"
)

// EngineBinary is the engine executable name looked up next to morphir and on PATH.
const EngineBinary = "morphir-engine"

// EnvEngine overrides the engine location.
const EnvEngine = "MORPHIR_ENGINE"

// ErrEngineNotFound is returned when the engine binary cannot be located.
var ErrEngineNotFound = errors.New("morphir-engine binary not found")

// Runner handles finding and starting the engine.
type Runner struct {
	executablePath string // Path to morphir executable (for finding sibling)
	enginePath     string
	engineArgs     []string
	socketPath     string
	getenv         func(string) string
}

// Option configures a Runner.
type Option func(*Runner)

// WithExecutablePath sets the path to the morphir executable.
// Used primarily for testing.
func WithExecutablePath(path string) Option {
	return func(r *Runner) {
		r.executablePath = path
	}
}

// WithEnginePath sets an explicit engine binary, skipping the search.
func WithEnginePath(path string) Option {
	return func(r *Runner) {
		r.enginePath = path
	}
}

// WithEngineArgs sets extra arguments passed to a spawned engine.
func WithEngineArgs(args []string) Option {
	return func(r *Runner) {
		r.engineArgs = args
	}
}

// WithSocket makes Start dial a running engine instead of spawning one.
func WithSocket(path string) Option {
	return func(r *Runner) {
		r.socketPath = path
	}
}

// WithGetenv replaces os.Getenv. Used for testing.
func WithGetenv(getenv func(string) string) Option {
	return func(r *Runner) {
		r.getenv = getenv
	}
}

// New creates a new Runner with the given options.
func New(opts ...Option) *Runner {
	r := &Runner{getenv: os.Getenv}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FindEngineBinary locates the engine using the following search order:
// 1. Explicit path (flag or config)
// 2. MORPHIR_ENGINE environment variable
// 3. Sibling binary (morphir-engine next to morphir)
// 4. PATH lookup
func (r *Runner) FindEngineBinary() (string, error) {
	// 1. Explicit path
	if r.enginePath != "" {
		if !fileExists(r.enginePath) {
			return "", fmt.Errorf("%w: %s does not exist", ErrEngineNotFound, r.enginePath)
		}
		return r.enginePath, nil
	}

	// 2. Environment
	if path := r.getenv(EnvEngine); path != "" {
		if !fileExists(path) {
			return "", fmt.Errorf("%w: %s=%s does not exist", ErrEngineNotFound, EnvEngine, path)
		}
		return path, nil
	}

	// 3. Check sibling binary
	exe := r.executablePath
	if exe == "" {
		var err error
		exe, err = os.Executable()
		if err != nil {
			return "", fmt.Errorf("failed to get executable path: %w", err)
		}
	}
	if path := findSibling(exe); path != "" {
		return path, nil
	}

	// 4. Check PATH
	if path, err := exec.LookPath(EngineBinary); err == nil {
		return path, nil
	}

	return "", ErrEngineNotFound
}

// Start connects to the engine: it dials the configured socket if any,
// otherwise spawns the engine binary. The caller closes the client.
func (r *Runner) Start(ctx context.Context, opts ...engine.Option) (*engine.Client, error) {
	if r.socketPath != "" {
		log.Debug("dialing engine", "component", "runner", "socket", r.socketPath)
		return engine.Dial(ctx, r.socketPath, opts...)
	}

	path, err := r.FindEngineBinary()
	if err != nil {
		return nil, err
	}
	log.Debug("spawning engine", "component", "runner", "path", path, "args", r.engineArgs)
	return engine.Spawn(ctx, path, r.engineArgs, opts...)
}

// findSibling looks for morphir-engine next to the morphir binary.
func findSibling(exe string) string {
	sibling := filepath.Join(filepath.Dir(exe), EngineBinary)
	if fileExists(sibling) {
		return sibling
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
