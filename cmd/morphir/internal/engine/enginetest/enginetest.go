// Package enginetest provides a scriptable in-memory engine for tests.
package enginetest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/engine"
	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/reconcile"
)

// Call records one request the engine received.
type Call struct {
	Method      string
	Full        *engine.FullBuildRequest
	Incremental *engine.IncrementalBuildRequest
	Generate    *engine.GenerateRequest
}

// Engine is an engine.Engine whose responses are set per method.
// Unset handlers return an empty artifact or no files.
type Engine struct {
	FullBuild        func(engine.FullBuildRequest) (*engine.Artifact, error)
	IncrementalBuild func(engine.IncrementalBuildRequest) (*engine.Artifact, error)
	Generate         func(engine.GenerateRequest) ([]reconcile.GeneratedFile, error)

	mu    sync.Mutex
	calls []Call
}

var _ engine.Engine = (*Engine)(nil)

// New creates an Engine with no handlers.
func New() *Engine {
	return &Engine{}
}

// Returning makes every build succeed with the given artifact JSON.
func (e *Engine) Returning(raw string) *Engine {
	build := func() (*engine.Artifact, error) {
		return &engine.Artifact{Raw: json.RawMessage(raw)}, nil
	}
	e.FullBuild = func(engine.FullBuildRequest) (*engine.Artifact, error) { return build() }
	e.IncrementalBuild = func(engine.IncrementalBuildRequest) (*engine.Artifact, error) { return build() }
	return e
}

// Failing makes every request fail with err.
func (e *Engine) Failing(err error) *Engine {
	e.FullBuild = func(engine.FullBuildRequest) (*engine.Artifact, error) { return nil, err }
	e.IncrementalBuild = func(engine.IncrementalBuildRequest) (*engine.Artifact, error) { return nil, err }
	e.Generate = func(engine.GenerateRequest) ([]reconcile.GeneratedFile, error) { return nil, err }
	return e
}

func (e *Engine) SubmitFullBuild(ctx context.Context, req engine.FullBuildRequest) (*engine.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.record(Call{Method: engine.MethodBuildFromScratch, Full: &req})
	if e.FullBuild == nil {
		return &engine.Artifact{Raw: json.RawMessage(`{}`)}, nil
	}
	return e.FullBuild(req)
}

func (e *Engine) SubmitIncrementalBuild(ctx context.Context, req engine.IncrementalBuildRequest) (*engine.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.record(Call{Method: engine.MethodBuildIncrementally, Incremental: &req})
	if e.IncrementalBuild == nil {
		return &engine.Artifact{Raw: json.RawMessage(`{}`)}, nil
	}
	return e.IncrementalBuild(req)
}

func (e *Engine) SubmitGenerate(ctx context.Context, req engine.GenerateRequest) ([]reconcile.GeneratedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.record(Call{Method: engine.MethodGenerate, Generate: &req})
	if e.Generate == nil {
		return nil, nil
	}
	return e.Generate(req)
}

// Calls returns a copy of the recorded requests.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// Methods returns the method of each recorded request in order.
func (e *Engine) Methods() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	methods := make([]string, len(e.calls))
	for i, c := range e.calls {
		methods[i] = c.Method
	}
	return methods
}

func (e *Engine) record(c Call) {
	e.mu.Lock()
	e.calls = append(e.calls, c)
	e.mu.Unlock()
}
