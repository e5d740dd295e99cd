// Package build decides between full, incremental and no-op builds and
// drives the make workflow around that decision.
package build

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/changes"
	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/engine"
	"github.com/albertocavalcante/morphir-make/internal/log"
)

// Mode is the kind of build the orchestrator chose.
type Mode string

const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
	ModeUpToDate    Mode = "up-to-date"
)

// State tracks one orchestrated build.
type State string

const (
	StateIdle      State = "idle"
	StateAwaiting  State = "awaiting-engine"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Request is the input of one build.
type Request struct {
	// SourceRoot is the directory scanned for source files.
	SourceRoot  string
	PackageInfo json.RawMessage
	Options     engine.BuildOptions

	// Prior is the previously built artifact and PriorHashes the hash state
	// recorded with it. A nil value for either forces a full build.
	Prior       *engine.Artifact
	PriorHashes changes.Hashes
}

// Result is the outcome of one build.
type Result struct {
	Mode     Mode
	State    State
	Artifact *engine.Artifact
	Changes  changes.ChangeSet
	Stats    changes.Stats

	// NextHashes is the hash state to persist once Artifact has been written.
	NextHashes changes.Hashes
}

// Orchestrator chooses the build mode and submits the matching engine request.
// It never persists anything.
type Orchestrator struct {
	engine   engine.Engine
	detector *changes.Detector
	out      io.Writer
	logger   *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithDetector replaces the default change detector.
func WithDetector(d *changes.Detector) OrchestratorOption {
	return func(o *Orchestrator) {
		o.detector = d
	}
}

// WithMessages sets where user-facing status lines are printed.
func WithMessages(w io.Writer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.out = w
	}
}

// WithLogger sets the logger, typically one carrying a build ID.
func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// NewOrchestrator creates an Orchestrator backed by e.
func NewOrchestrator(e engine.Engine, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		engine: e,
		out:    io.Discard,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.detector == nil {
		o.detector = changes.NewDetector(changes.ScanConfig{})
	}
	if o.logger == nil {
		o.logger = log.Component("build")
	}
	return o
}

// Build detects changes under req.SourceRoot and runs the build they call for.
// In up-to-date mode the engine is not called and the returned artifact is
// req.Prior itself.
func (o *Orchestrator) Build(ctx context.Context, req Request) (*Result, error) {
	res := &Result{State: StateIdle}

	if req.Prior == nil || req.PriorHashes == nil {
		return o.full(ctx, req, res)
	}

	cs, err := o.detector.Detect(ctx, req.PriorHashes, req.SourceRoot)
	if err != nil {
		return nil, err
	}
	res.Changes = cs
	res.Stats = cs.Stats()
	res.NextHashes = cs.ContentHashes()

	if !res.Stats.HasChanges() {
		fmt.Fprintln(o.out, "No file changes were detected.")
		fmt.Fprintln(o.out, "There were no file changes and there is an existing IR. No actions needed.")
		res.Mode = ModeUpToDate
		res.State = StateSucceeded
		res.Artifact = req.Prior
		o.logger.Info("up to date", "unchanged", res.Stats.Unchanged)
		return res, nil
	}

	fmt.Fprintf(o.out, "The following file changes were detected:\n  %s\n", res.Stats)
	fmt.Fprintln(o.out, "There were file changes and there is an existing IR. Building incrementally.")
	res.Mode = ModeIncremental

	return o.submit(res, func() (*engine.Artifact, error) {
		return o.engine.SubmitIncrementalBuild(ctx, engine.IncrementalBuildRequest{
			Options:      req.Options,
			PackageInfo:  req.PackageInfo,
			FileChanges:  cs,
			Distribution: req.Prior,
		})
	})
}

func (o *Orchestrator) full(ctx context.Context, req Request, res *Result) (*Result, error) {
	fmt.Fprintln(o.out, "There is no existing IR or hash file. Building from scratch.")
	res.Mode = ModeFull

	// Empty prior hashes classify every file as an insert, so the snapshot is
	// the whole tree.
	cs, err := o.detector.Detect(ctx, changes.Hashes{}, req.SourceRoot)
	if err != nil {
		return nil, err
	}
	res.Changes = cs
	res.Stats = cs.Stats()
	res.NextHashes = cs.ContentHashes()

	return o.submit(res, func() (*engine.Artifact, error) {
		return o.engine.SubmitFullBuild(ctx, engine.FullBuildRequest{
			Options:      req.Options,
			PackageInfo:  req.PackageInfo,
			FileSnapshot: cs.Snapshot(),
		})
	})
}

func (o *Orchestrator) submit(res *Result, call func() (*engine.Artifact, error)) (*Result, error) {
	res.State = StateAwaiting
	o.logger.Debug("submitting build", "mode", res.Mode, "state", res.State,
		"inserted", res.Stats.Inserted, "updated", res.Stats.Updated,
		"deleted", res.Stats.Deleted, "unchanged", res.Stats.Unchanged)

	artifact, err := call()
	if err != nil {
		res.State = StateFailed
		o.logger.Debug("build failed", "mode", res.Mode, "state", res.State, "error", err)
		return res, err
	}

	res.State = StateSucceeded
	res.Artifact = artifact
	o.logger.Info("build completed", "mode", res.Mode, "files", res.Stats.Total())
	return res, nil
}
