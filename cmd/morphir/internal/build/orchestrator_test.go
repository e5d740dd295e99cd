package build

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/changes"
	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/engine"
	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/engine/enginetest"
	"github.com/albertocavalcante/morphir-make/internal/errs"
)

func writeSources(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for p, content := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func hashOf(s string) changes.Hash {
	return changes.HashBytes([]byte(s))
}

func TestOrchestrator_NoPriorArtifactBuildsFromScratch(t *testing.T) {
	root := t.TempDir()
	writeSources(t, root, map[string]string{"a.src": "x"})
	eng := enginetest.New().Returning(`{"ir":1}`)

	var out bytes.Buffer
	res, err := NewOrchestrator(eng, WithMessages(&out)).Build(context.Background(), Request{
		SourceRoot:  root,
		PackageInfo: json.RawMessage(`{"name":"P"}`),
		PriorHashes: changes.Hashes{"a.src": hashOf("x")},
	})
	require.NoError(t, err)

	assert.Equal(t, ModeFull, res.Mode)
	assert.Equal(t, StateSucceeded, res.State)
	assert.Equal(t, changes.Stats{Inserted: 1}, res.Stats)
	assert.Equal(t, changes.Hashes{"a.src": hashOf("x")}, res.NextHashes)

	calls := eng.Calls()
	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].Full)
	assert.Equal(t, map[changes.Path]string{"a.src": "x"}, calls[0].Full.FileSnapshot)
	assert.JSONEq(t, `{"name":"P"}`, string(calls[0].Full.PackageInfo))
	assert.Contains(t, out.String(), "Building from scratch.")
}

func TestOrchestrator_NoPriorHashesBuildsFromScratch(t *testing.T) {
	root := t.TempDir()
	writeSources(t, root, map[string]string{"a.src": "x", "b.src": "y"})
	eng := enginetest.New()

	res, err := NewOrchestrator(eng).Build(context.Background(), Request{
		SourceRoot: root,
		Prior:      &engine.Artifact{Raw: json.RawMessage(`{}`)},
	})
	require.NoError(t, err)

	assert.Equal(t, ModeFull, res.Mode)
	assert.Equal(t, []string{engine.MethodBuildFromScratch}, eng.Methods())
	assert.Len(t, eng.Calls()[0].Full.FileSnapshot, 2)
}

func TestOrchestrator_UpToDateSkipsEngine(t *testing.T) {
	root := t.TempDir()
	writeSources(t, root, map[string]string{"a.src": "x"})
	eng := enginetest.New()
	prior := &engine.Artifact{Raw: json.RawMessage(`{"ir":"old"}`)}

	var out bytes.Buffer
	res, err := NewOrchestrator(eng, WithMessages(&out)).Build(context.Background(), Request{
		SourceRoot:  root,
		Prior:       prior,
		PriorHashes: changes.Hashes{"a.src": hashOf("x")},
	})
	require.NoError(t, err)

	assert.Equal(t, ModeUpToDate, res.Mode)
	assert.Equal(t, StateSucceeded, res.State)
	assert.Same(t, prior, res.Artifact)
	assert.False(t, res.Stats.HasChanges())
	assert.Empty(t, eng.Calls())
	assert.Contains(t, out.String(), "No actions needed.")
}

func TestOrchestrator_IncrementalBuild(t *testing.T) {
	root := t.TempDir()
	writeSources(t, root, map[string]string{"a.src": "x2"})
	eng := enginetest.New().Returning(`{"ir":"new"}`)
	prior := &engine.Artifact{Raw: json.RawMessage(`{"ir":"old"}`)}

	var out bytes.Buffer
	res, err := NewOrchestrator(eng, WithMessages(&out)).Build(context.Background(), Request{
		SourceRoot:  root,
		Options:     engine.BuildOptions{TypesOnly: true},
		Prior:       prior,
		PriorHashes: changes.Hashes{"a.src": hashOf("x"), "b.src": hashOf("y")},
	})
	require.NoError(t, err)

	assert.Equal(t, ModeIncremental, res.Mode)
	assert.JSONEq(t, `{"ir":"new"}`, string(res.Artifact.Raw))
	assert.Equal(t, changes.Stats{Updated: 1, Deleted: 1}, res.Stats)
	assert.Equal(t, changes.Hashes{"a.src": hashOf("x2")}, res.NextHashes)

	calls := eng.Calls()
	require.Len(t, calls, 1)
	inc := calls[0].Incremental
	require.NotNil(t, inc)
	assert.Same(t, prior, inc.Distribution)
	assert.True(t, inc.Options.TypesOnly)
	assert.Equal(t, changes.Update{Content: []byte("x2"), Hash: hashOf("x2"), Previous: hashOf("x")}, inc.FileChanges["a.src"])
	assert.Equal(t, changes.Delete{Previous: hashOf("y")}, inc.FileChanges["b.src"])

	assert.Contains(t, out.String(), "The following file changes were detected:\n  - inserted:  0\n  - updated:   1\n  - deleted:   1\n  - unchanged: 0\n")
	assert.Contains(t, out.String(), "Building incrementally.")
}

func TestOrchestrator_EngineFailure(t *testing.T) {
	root := t.TempDir()
	writeSources(t, root, map[string]string{"a.src": "x"})
	boom := errs.EngineBuild(errors.New("type mismatch"))
	eng := enginetest.New().Failing(boom)

	res, err := NewOrchestrator(eng).Build(context.Background(), Request{SourceRoot: root})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindEngineBuild))
	require.NotNil(t, res)
	assert.Equal(t, StateFailed, res.State)
	assert.Nil(t, res.Artifact)
}

func TestOrchestrator_DetectionFailureSkipsEngine(t *testing.T) {
	eng := enginetest.New()

	_, err := NewOrchestrator(eng).Build(context.Background(), Request{
		SourceRoot: filepath.Join(t.TempDir(), "missing"),
	})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindDetectionIO))
	assert.Empty(t, eng.Calls())
}
