// Package changes detects source file changes against the hashes recorded
// by the last successful build.
package changes

import (
	"path"
	"path/filepath"
	"strings"
)

// Path is a slash-separated path relative to the source root.
type Path = string

// NormalizePath converts an OS or slash path into the canonical Path form.
func NormalizePath(p string) Path {
	p = filepath.ToSlash(p)
	p = path.Clean(p)
	return strings.TrimPrefix(p, "./")
}

// Kind names a Change variant.
type Kind string

const (
	KindInsert    Kind = "Insert"
	KindUpdate    Kind = "Update"
	KindDelete    Kind = "Delete"
	KindUnchanged Kind = "Unchanged"
)

// Change is one of Insert, Update, Delete or Unchanged.
// The set is closed; switch on the concrete type.
type Change interface {
	Kind() Kind
	change()
}

// Insert is a path present now and absent from the prior hashes.
type Insert struct {
	Content []byte
	Hash    Hash
}

// Update is a path present in both whose hash differs.
type Update struct {
	Content  []byte
	Hash     Hash
	Previous Hash
}

// Delete is a path in the prior hashes that no longer exists.
type Delete struct {
	Previous Hash
}

// Unchanged is a path present in both with an identical hash.
type Unchanged struct {
	Hash Hash
}

func (Insert) Kind() Kind    { return KindInsert }
func (Update) Kind() Kind    { return KindUpdate }
func (Delete) Kind() Kind    { return KindDelete }
func (Unchanged) Kind() Kind { return KindUnchanged }

func (Insert) change()    {}
func (Update) change()    {}
func (Delete) change()    {}
func (Unchanged) change() {}

// classify builds the Change for a file that currently exists.
func classify(prior Hashes, p Path, content []byte, hash Hash) Change {
	previous, existed := prior[p]
	switch {
	case !existed:
		return Insert{Content: content, Hash: hash}
	case previous != hash:
		return Update{Content: content, Hash: hash, Previous: previous}
	default:
		return Unchanged{Hash: hash}
	}
}
