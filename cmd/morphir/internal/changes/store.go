package changes

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/albertocavalcante/morphir-make/internal/errs"
)

// HashFileName is the hash store file kept next to morphir.json.
const HashFileName = "morphir-hashes.json"

// Store defines hash store persistence.
type Store interface {
	Path() string
	Load() (Hashes, error)
	Save(h Hashes) error
	Exists() bool
	Clear() error
}

var _ Store = (*JSONStore)(nil)

// JSONStore persists hashes as a flat JSON object {"path": "hash"}.
type JSONStore struct {
	path string
}

// NewJSONStore creates a store backed by the file at path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// NewProjectStore creates the store for a project directory.
func NewProjectStore(projectDir string) *JSONStore {
	return NewJSONStore(filepath.Join(projectDir, HashFileName))
}

// Path returns the backing file path.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the hashes. A missing file yields empty hashes; a malformed
// file yields a HashStoreRead error which callers treat as no prior state.
func (s *JSONStore) Load() (Hashes, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Hashes{}, nil
	}
	if err != nil {
		return nil, errs.HashStoreRead(s.path, err)
	}

	var h Hashes
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, errs.HashStoreRead(s.path, err)
	}
	if h == nil {
		h = Hashes{}
	}

	return h, nil
}

// Save replaces the store contents atomically.
func (s *JSONStore) Save(h Hashes) error {
	if h == nil {
		return fmt.Errorf("cannot save nil hashes")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create hash store directory: %w", err)
	}

	data, err := json.MarshalIndent(h, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal hashes: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp hash store: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename hash store: %w", err)
	}

	return nil
}

// Exists returns true if the hash store file exists.
func (s *JSONStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Clear removes the hash store file.
func (s *JSONStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
