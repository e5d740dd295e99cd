// Package reconcile makes an output directory match a set of generated files.
package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
)

// ErrUnsafePath is returned for a generated file whose path leaves the
// output directory.
var ErrUnsafePath = errors.New("generated file path escapes the output directory")

// GeneratedFile is one file produced by the engine's generate call.
// On the wire it is the tuple [[dirSegments, fileName], content].
type GeneratedFile struct {
	Dir     []string
	Name    string
	Content []byte
}

// RelPath joins the directory segments and the file name.
func (f GeneratedFile) RelPath() string {
	parts := make([]string, 0, len(f.Dir)+1)
	parts = append(parts, f.Dir...)
	parts = append(parts, f.Name)
	return filepath.Join(parts...)
}

// Path joins root and RelPath.
func (f GeneratedFile) Path(root string) string {
	return filepath.Join(root, f.RelPath())
}

// Local reports whether the file lands inside the output root: no absolute
// segments and no ".." climbing out of it.
func (f GeneratedFile) Local() bool {
	return filepath.IsLocal(f.RelPath())
}

func (f GeneratedFile) MarshalJSON() ([]byte, error) {
	dir := f.Dir
	if dir == nil {
		dir = []string{}
	}
	return json.Marshal([]any{
		[]any{dir, f.Name},
		string(f.Content),
	})
}

func (f *GeneratedFile) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("generated file: %w", err)
	}
	if len(tuple) != 2 {
		return fmt.Errorf("generated file: expected [location, content], got %d elements", len(tuple))
	}

	var location []json.RawMessage
	if err := json.Unmarshal(tuple[0], &location); err != nil {
		return fmt.Errorf("generated file location: %w", err)
	}
	if len(location) != 2 {
		return fmt.Errorf("generated file location: expected [dirs, name], got %d elements", len(location))
	}

	var (
		dir     []string
		name    string
		content string
	)
	if err := json.Unmarshal(location[0], &dir); err != nil {
		return fmt.Errorf("generated file directory: %w", err)
	}
	if err := json.Unmarshal(location[1], &name); err != nil {
		return fmt.Errorf("generated file name: %w", err)
	}
	if name == "" {
		return fmt.Errorf("generated file: empty file name")
	}
	if err := json.Unmarshal(tuple[1], &content); err != nil {
		return fmt.Errorf("generated file content: %w", err)
	}

	*f = GeneratedFile{Dir: dir, Name: name, Content: []byte(content)}
	return nil
}
