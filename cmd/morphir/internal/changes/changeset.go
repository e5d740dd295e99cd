package changes

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Hashes maps each tracked path to its content hash.
type Hashes map[Path]Hash

// ChangeSet classifies every path in the current tree or the prior hashes
// exactly once.
type ChangeSet map[Path]Change

// Stats counts ChangeSet entries per kind.
type Stats struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`
}

// HasChanges reports whether anything was inserted, updated or deleted.
func (s Stats) HasChanges() bool {
	return s.Inserted+s.Updated+s.Deleted > 0
}

// Total returns the number of classified paths.
func (s Stats) Total() int {
	return s.Inserted + s.Updated + s.Deleted + s.Unchanged
}

// String renders the stats block printed by make.
func (s Stats) String() string {
	return strings.Join([]string{
		fmt.Sprintf("- inserted:  %d", s.Inserted),
		fmt.Sprintf("- updated:   %d", s.Updated),
		fmt.Sprintf("- deleted:   %d", s.Deleted),
		fmt.Sprintf("- unchanged: %d", s.Unchanged),
	}, "\n  ")
}

// Stats aggregates the change set in one pass.
func (cs ChangeSet) Stats() Stats {
	var s Stats
	for _, c := range cs {
		switch c.(type) {
		case Insert:
			s.Inserted++
		case Update:
			s.Updated++
		case Delete:
			s.Deleted++
		case Unchanged:
			s.Unchanged++
		}
	}
	return s
}

// ContentHashes projects every non-Delete entry to its current hash.
// The result becomes the next hash store.
func (cs ChangeSet) ContentHashes() Hashes {
	out := make(Hashes, len(cs))
	for p, c := range cs {
		switch c := c.(type) {
		case Insert:
			out[p] = c.Hash
		case Update:
			out[p] = c.Hash
		case Unchanged:
			out[p] = c.Hash
		case Delete:
		}
	}
	return out
}

// Snapshot returns path -> content for every entry that carries content.
// For a change set detected against empty prior hashes this is the full tree.
func (cs ChangeSet) Snapshot() map[Path]string {
	out := make(map[Path]string, len(cs))
	for p, c := range cs {
		switch c := c.(type) {
		case Insert:
			out[p] = string(c.Content)
		case Update:
			out[p] = string(c.Content)
		}
	}
	return out
}

// Paths returns all paths sorted.
func (cs ChangeSet) Paths() []Path {
	paths := make([]Path, 0, len(cs))
	for p := range cs {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// PathsOf returns the sorted paths whose change has the given kind.
func (cs ChangeSet) PathsOf(kind Kind) []Path {
	var paths []Path
	for p, c := range cs {
		if c.Kind() == kind {
			paths = append(paths, p)
		}
	}
	slices.Sort(paths)
	return paths
}

type wireChange struct {
	Kind     Kind    `json:"kind"`
	Content  *string `json:"content,omitempty"`
	Hash     Hash    `json:"hash,omitempty"`
	Previous Hash    `json:"previousHash,omitempty"`
}

// MarshalJSON encodes the change set in the engine's fileChanges shape:
// {"path": {"kind": "Update", "content": "...", "hash": "...", "previousHash": "..."}}.
func (cs ChangeSet) MarshalJSON() ([]byte, error) {
	out := make(map[Path]wireChange, len(cs))
	for p, c := range cs {
		switch c := c.(type) {
		case Insert:
			content := string(c.Content)
			out[p] = wireChange{Kind: KindInsert, Content: &content, Hash: c.Hash}
		case Update:
			content := string(c.Content)
			out[p] = wireChange{Kind: KindUpdate, Content: &content, Hash: c.Hash, Previous: c.Previous}
		case Delete:
			out[p] = wireChange{Kind: KindDelete, Previous: c.Previous}
		case Unchanged:
			out[p] = wireChange{Kind: KindUnchanged, Hash: c.Hash}
		default:
			return nil, fmt.Errorf("unknown change type %T for %s", c, p)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the shape produced by MarshalJSON.
func (cs *ChangeSet) UnmarshalJSON(data []byte) error {
	var in map[Path]wireChange
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	out := make(ChangeSet, len(in))
	for p, w := range in {
		var content []byte
		if w.Content != nil {
			content = []byte(*w.Content)
		}
		switch w.Kind {
		case KindInsert:
			out[p] = Insert{Content: content, Hash: w.Hash}
		case KindUpdate:
			out[p] = Update{Content: content, Hash: w.Hash, Previous: w.Previous}
		case KindDelete:
			out[p] = Delete{Previous: w.Previous}
		case KindUnchanged:
			out[p] = Unchanged{Hash: w.Hash}
		default:
			return fmt.Errorf("unknown change kind %q for %s", w.Kind, p)
		}
	}
	*cs = out
	return nil
}
