// Package manifest reads the morphir.json project manifest.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/albertocavalcante/morphir-make/internal/errs"
)

// FileName is the manifest file name inside a project directory.
const FileName = "morphir.json"

// ErrNoSourceDirectory is returned for a manifest without sourceDirectory.
var ErrNoSourceDirectory = errors.New("manifest has no sourceDirectory")

// Manifest is the parsed morphir.json. Raw keeps the original document so
// fields unknown here still reach the engine as packageInfo.
type Manifest struct {
	Name            string   `json:"name"`
	SourceDirectory string   `json:"sourceDirectory"`
	ExposedModules  []string `json:"exposedModules"`

	Raw json.RawMessage `json:"-"`
}

// Load reads <projectDir>/morphir.json.
func Load(projectDir string) (*Manifest, error) {
	return Read(filepath.Join(projectDir, FileName))
}

// Read parses the manifest at path.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.ManifestRead(path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, errs.ManifestRead(path, err)
	}
	return m, nil
}

// Parse decodes manifest JSON.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if m.SourceDirectory == "" {
		return nil, ErrNoSourceDirectory
	}
	m.Raw = append(json.RawMessage(nil), data...)
	return &m, nil
}

// SourceRoot resolves the source directory against the project directory.
func (m *Manifest) SourceRoot(projectDir string) string {
	if filepath.IsAbs(m.SourceDirectory) {
		return filepath.Clean(m.SourceDirectory)
	}
	return filepath.Join(projectDir, m.SourceDirectory)
}

// PackageInfo returns the manifest as sent to the engine.
func (m *Manifest) PackageInfo() json.RawMessage {
	if len(m.Raw) > 0 {
		return m.Raw
	}
	data, _ := json.Marshal(m)
	return data
}
