package cli

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/changes"
	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/engine"
	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/reconcile"
	"github.com/albertocavalcante/morphir-make/internal/log"
	"github.com/albertocavalcante/morphir-make/pkg/config"
)

// lazyEngine connects on first use, so an up-to-date make never starts the
// engine, and reconnects after the engine goes away.
type lazyEngine struct {
	cfg *config.Config

	mu     sync.Mutex
	engine engine.Engine
	closer io.Closer
}

var _ engine.Engine = (*lazyEngine)(nil)

func newLazyEngine(cfg *config.Config) *lazyEngine {
	return &lazyEngine{cfg: cfg}
}

func (l *lazyEngine) get(ctx context.Context) (engine.Engine, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.engine != nil {
		return l.engine, nil
	}
	e, closer, err := connectEngine(ctx, l.cfg)
	if err != nil {
		return nil, err
	}
	l.engine, l.closer = e, closer
	return e, nil
}

// check drops the connection if err says the engine is gone.
func (l *lazyEngine) check(err error) {
	if !errors.Is(err, engine.ErrClosed) {
		return
	}
	log.Component("engine").Warn("engine connection lost; reconnecting on next request")
	_ = l.Close()
}

func (l *lazyEngine) SubmitFullBuild(ctx context.Context, req engine.FullBuildRequest) (*engine.Artifact, error) {
	e, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	a, err := e.SubmitFullBuild(ctx, req)
	l.check(err)
	return a, err
}

func (l *lazyEngine) SubmitIncrementalBuild(ctx context.Context, req engine.IncrementalBuildRequest) (*engine.Artifact, error) {
	e, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	a, err := e.SubmitIncrementalBuild(ctx, req)
	l.check(err)
	return a, err
}

func (l *lazyEngine) SubmitGenerate(ctx context.Context, req engine.GenerateRequest) ([]reconcile.GeneratedFile, error) {
	e, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	files, err := e.SubmitGenerate(ctx, req)
	l.check(err)
	return files, err
}

// Close shuts the engine down if it was started.
func (l *lazyEngine) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	closer := l.closer
	l.engine, l.closer = nil, nil
	if closer == nil {
		return nil
	}
	return closer.Close()
}

// scanConfig maps the [scan] config section onto the detector's config.
func scanConfig(cfg *config.Config) changes.ScanConfig {
	return changes.ScanConfig{
		Extensions: cfg.Scan.Extensions,
		IgnoreDirs: cfg.Scan.IgnoreDirs,
		Workers:    cfg.Scan.Workers,
	}
}
