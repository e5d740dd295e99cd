package manifest

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/morphir-make/internal/errs"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	content := `{
    "name": "Morphir.Reference.Model",
    "sourceDirectory": "src",
    "exposedModules": ["Issues", "Orders"],
    "dependencies": ["morphir-sdk"]
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	m, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "Morphir.Reference.Model", m.Name)
	assert.Equal(t, "src", m.SourceDirectory)
	assert.Equal(t, []string{"Issues", "Orders"}, m.ExposedModules)
	assert.Equal(t, filepath.Join(dir, "src"), m.SourceRoot(dir))

	var info map[string]any
	require.NoError(t, json.Unmarshal(m.PackageInfo(), &info))
	assert.Contains(t, info, "dependencies", "unknown fields pass through to the engine")
}

func TestLoad_Missing(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(dir)
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindManifestRead))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Equal(t, "Could not find file at '"+filepath.Join(dir, FileName)+"'", errs.Format(err, false))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "malformed", content: `{"name":`},
		{name: "no source directory", content: `{"name":"P","exposedModules":[]}`, wantErr: ErrNoSourceDirectory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(tt.content), 0o644))

			_, err := Load(dir)
			require.Error(t, err)
			assert.True(t, errs.IsKind(err, errs.KindManifestRead))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestSourceRoot_Absolute(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "sources")
	m := &Manifest{SourceDirectory: abs}
	assert.Equal(t, abs, m.SourceRoot("/elsewhere"))
}

func TestPackageInfo_WithoutRaw(t *testing.T) {
	m := &Manifest{Name: "P", SourceDirectory: "src", ExposedModules: []string{"A"}}
	assert.JSONEq(t, `{"name":"P","sourceDirectory":"src","exposedModules":["A"]}`, string(m.PackageInfo()))
}
