// Package generate runs code generation from a built IR and reconciles the
// output directory with the result.
package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/engine"
	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/reconcile"
	"github.com/albertocavalcante/morphir-make/internal/errs"
	"github.com/albertocavalcante/morphir-make/internal/log"
)

// Defaults for the gen command.
const (
	DefaultInput         = "morphir-ir.json"
	DefaultOutput        = "dist"
	DefaultTargetVersion = "2.11"
)

// Options are the inputs of one gen invocation.
type Options struct {
	Input  string
	Output string
	// ModulesToInclude is a comma-separated module list; empty means all.
	ModulesToInclude string
	TargetVersion    string
	// RedistributableDir holds Scala/sdk/src and Scala/sdk/src-<version>.
	// Empty skips the copy.
	RedistributableDir string
}

// Result reports what a gen invocation did.
type Result struct {
	BuildID string
	Files   int
	Report  *reconcile.Report
	Copied  []reconcile.Entry
}

// Generator runs the gen workflow.
type Generator struct {
	engine  engine.Engine
	out     io.Writer
	workers int
}

// Option configures a Generator.
type Option func(*Generator)

// WithOutput sets where INSERT/UPDATE/DELETE/COPY lines are printed.
func WithOutput(w io.Writer) Option {
	return func(g *Generator) {
		g.out = w
	}
}

// WithWorkers bounds concurrent file writes.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		g.workers = n
	}
}

// New creates a Generator backed by e.
func New(e engine.Engine, opts ...Option) *Generator {
	g := &Generator{engine: e, out: io.Discard}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run reads the IR, asks the engine to generate code and reconciles the
// output directory, then copies the redistributable sources into it.
func (g *Generator) Run(ctx context.Context, opts Options) (*Result, error) {
	opts = withDefaults(opts)
	id := uuid.NewString()
	logger := log.Build("generate", id)

	if err := os.MkdirAll(opts.Output, 0o755); err != nil {
		return nil, errs.ReconcileIO("create output directory", opts.Output, err)
	}

	ir, err := readIR(opts.Input)
	if err != nil {
		return nil, err
	}

	req := engine.GenerateRequest{
		Options: engine.GenerateOptions{LimitToModules: ParseModules(opts.ModulesToInclude)},
		IR:      ir,
	}
	logger.Debug("generating", "input", opts.Input, "modules", req.Options.LimitToModules)

	files, err := g.engine.SubmitGenerate(ctx, req)
	if err != nil {
		return nil, err
	}
	logger.Info("generated files", "count", len(files))

	rec := reconcile.New(reconcile.WithOutput(g.out), reconcile.WithWorkers(g.workers))
	report, err := rec.Reconcile(ctx, opts.Output, files)
	res := &Result{BuildID: id, Files: len(files), Report: report}
	if err != nil {
		return res, err
	}

	copied, err := CopyRedistributables(opts.RedistributableDir, opts.TargetVersion, opts.Output, g.out)
	res.Copied = copied
	if err != nil {
		return res, errs.ReconcileIO("copy redistributables", opts.Output, err)
	}

	return res, nil
}

// ParseModules splits a comma-separated module list. Empty input yields nil,
// meaning no restriction.
func ParseModules(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var modules []string
	for _, m := range strings.Split(s, ",") {
		if m = strings.TrimSpace(m); m != "" {
			modules = append(modules, m)
		}
	}
	return modules
}

// CopyRedistributables copies <dir>/Scala/sdk/src and then
// <dir>/Scala/sdk/src-<targetVersion> into output. Missing sources are skipped.
func CopyRedistributables(dir, targetVersion, output string, out io.Writer) ([]reconcile.Entry, error) {
	if dir == "" {
		return nil, nil
	}

	var copied []reconcile.Entry
	for _, src := range []string{
		filepath.Join(dir, "Scala", "sdk", "src"),
		filepath.Join(dir, "Scala", "sdk", "src-"+targetVersion),
	} {
		entries, err := reconcile.CopyTree(src, output, out)
		copied = append(copied, entries...)
		if err != nil {
			return copied, err
		}
	}
	return copied, nil
}

func readIR(path string) (*engine.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.E(errs.KindArtifactIO, "read IR", path, err)
	}
	if !json.Valid(data) {
		return nil, errs.E(errs.KindArtifactIO, "read IR", path, fmt.Errorf("invalid JSON"))
	}
	return &engine.Artifact{Raw: data}, nil
}

func withDefaults(opts Options) Options {
	if opts.Input == "" {
		opts.Input = DefaultInput
	}
	if opts.Output == "" {
		opts.Output = DefaultOutput
	}
	if opts.TargetVersion == "" {
		opts.TargetVersion = DefaultTargetVersion
	}
	return opts
}
