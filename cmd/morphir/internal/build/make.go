package build

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/changes"
	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/engine"
	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/manifest"
	"github.com/albertocavalcante/morphir-make/internal/errs"
	"github.com/albertocavalcante/morphir-make/internal/log"
)

// DefaultOutput is the artifact file name.
const DefaultOutput = "morphir-ir.json"

// MakeOptions are the inputs of one make invocation.
type MakeOptions struct {
	ProjectDir string
	Output     string // artifact path; defaults to <ProjectDir>/morphir-ir.json
	TypesOnly  bool
	// Force discards the recorded hashes so the build starts from scratch.
	Force bool
}

// MakeResult reports what a make invocation did.
type MakeResult struct {
	*Result
	BuildID      string
	ArtifactPath string
	// Written is false when nothing was persisted (up to date).
	Written bool
}

// Maker runs the make workflow: read the manifest, build, write the
// artifact and only then record the new hashes.
type Maker struct {
	engine  engine.Engine
	scan    changes.ScanConfig
	out     io.Writer
	store   func(projectDir string) changes.Store
	buildID func() string
}

// MakerOption configures a Maker.
type MakerOption func(*Maker)

// WithScan sets the source scan configuration.
func WithScan(cfg changes.ScanConfig) MakerOption {
	return func(m *Maker) {
		m.scan = cfg
	}
}

// WithOutput sets where user-facing messages are printed.
func WithOutput(w io.Writer) MakerOption {
	return func(m *Maker) {
		m.out = w
	}
}

// WithStore replaces the hash store opened for a project directory.
func WithStore(fn func(projectDir string) changes.Store) MakerOption {
	return func(m *Maker) {
		m.store = fn
	}
}

// NewMaker creates a Maker backed by e.
func NewMaker(e engine.Engine, opts ...MakerOption) *Maker {
	m := &Maker{
		engine:  e,
		out:     io.Discard,
		store:   openProjectStore,
		buildID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func openProjectStore(projectDir string) changes.Store {
	return changes.NewProjectStore(projectDir)
}

// Make builds the project in opts.ProjectDir.
func (m *Maker) Make(ctx context.Context, opts MakeOptions) (*MakeResult, error) {
	projectDir := opts.ProjectDir
	if projectDir == "" {
		projectDir = "."
	}
	output := opts.Output
	if output == "" {
		output = filepath.Join(projectDir, DefaultOutput)
	}

	id := m.buildID()
	logger := log.Build("make", id)

	man, err := manifest.Load(projectDir)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded manifest", "name", man.Name, "source_directory", man.SourceDirectory)

	store := m.store(projectDir)
	if opts.Force {
		if err := store.Clear(); err != nil {
			return nil, fmt.Errorf("failed to clear hashes: %w", err)
		}
		logger.Info("cleared recorded hashes", "path", store.Path())
	}

	req := Request{
		SourceRoot:  man.SourceRoot(projectDir),
		PackageInfo: man.PackageInfo(),
		Options:     engine.BuildOptions{TypesOnly: opts.TypesOnly},
	}

	if store.Exists() {
		req.Prior = readArtifact(output, logger)
		if req.Prior != nil {
			hashes, err := store.Load()
			if err != nil {
				logger.Warn("ignoring unreadable hash store", "error", err)
			} else {
				req.PriorHashes = hashes
			}
		}
	}

	orch := NewOrchestrator(m.engine,
		WithDetector(changes.NewDetector(m.scan)),
		WithMessages(m.out),
		WithLogger(logger))

	res, err := orch.Build(ctx, req)
	if err != nil {
		return nil, err
	}

	mr := &MakeResult{Result: res, BuildID: id, ArtifactPath: output}
	if res.Mode == ModeUpToDate {
		return mr, nil
	}

	if err := m.writeArtifact(output, res.Artifact); err != nil {
		return nil, err
	}
	if err := store.Save(res.NextHashes); err != nil {
		return nil, fmt.Errorf("failed to save hashes: %w", err)
	}
	mr.Written = true

	logger.Debug("recorded hashes", "path", store.Path(), "files", len(res.NextHashes))
	return mr, nil
}

// readArtifact loads the prior artifact, or returns nil if there is no
// usable one.
func readArtifact(path string, logger *slog.Logger) *engine.Artifact {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("ignoring unreadable artifact", "path", path, "error", err)
		}
		return nil
	}
	if !json.Valid(data) {
		logger.Warn("ignoring malformed artifact", "path", path)
		return nil
	}
	return &engine.Artifact{Raw: data}
}

// writeArtifact writes the artifact as 4-space indented JSON.
func (m *Maker) writeArtifact(path string, a *engine.Artifact) error {
	if a == nil || len(a.Raw) == 0 {
		return errs.E(errs.KindArtifactIO, "write artifact", path, fmt.Errorf("engine returned no artifact"))
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, a.Raw, "", "    "); err != nil {
		return errs.E(errs.KindArtifactIO, "format artifact", path, err)
	}

	fmt.Fprintf(m.out, "Writing file %s.\n", path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.E(errs.KindArtifactIO, "create directory", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errs.E(errs.KindArtifactIO, "write artifact", path, err)
	}
	fmt.Fprintln(m.out, "Done.")
	return nil
}
