// Package errs provides the categorized error type used across morphir.
//
// Every failure that reaches the CLI is either an *Error carrying a Kind or a
// plain wrapped error; both print as a single human-readable line and exit 1.
package errs

import (
	"errors"
	"fmt"
	"io/fs"
)

// Kind classifies a failure by the stage that produced it.
type Kind string

const (
	KindManifestRead  Kind = "manifest"
	KindHashStoreRead Kind = "hash-store"
	KindDetectionIO   Kind = "detection"
	KindEngineDecode  Kind = "engine-decode"
	KindEngineBuild   Kind = "engine-build"
	KindEngineIO      Kind = "engine-io"
	KindArtifactIO    Kind = "artifact"
	KindReconcileIO   Kind = "reconcile"
	KindConfig        Kind = "config"
)

// Error is a failure tagged with its Kind and the operation/path involved.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E constructs an *Error.
func E(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf returns the Kind of the outermost *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err's chain contains an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// ManifestRead wraps a failure to read or parse morphir.json.
func ManifestRead(path string, err error) *Error {
	return E(KindManifestRead, "read manifest", path, err)
}

// HashStoreRead wraps a malformed hash store. Callers treat it as "no prior state".
func HashStoreRead(path string, err error) *Error {
	return E(KindHashStoreRead, "read hash store", path, err)
}

// DetectionIO wraps an unreadable source file; it aborts the whole detection pass.
func DetectionIO(path string, err error) *Error {
	return E(KindDetectionIO, "read source", path, err)
}

// EngineDecode wraps a request the engine rejected as malformed.
func EngineDecode(err error) *Error {
	return E(KindEngineDecode, "engine rejected request", "", err)
}

// EngineBuild wraps a semantic build failure reported by the engine.
func EngineBuild(err error) *Error {
	return E(KindEngineBuild, "build failed", "", err)
}

// ReconcileIO wraps a write or delete failure while reconciling output.
func ReconcileIO(op, path string, err error) *Error {
	return E(KindReconcileIO, op, path, err)
}

// Format renders err for the terminal. Verbose output keeps the full chain.
func Format(err error, verbose bool) string {
	if err == nil {
		return ""
	}
	if verbose {
		return "Error: " + err.Error()
	}

	var e *Error
	if !errors.As(err, &e) {
		return "Error: " + err.Error()
	}

	switch e.Kind {
	case KindManifestRead:
		if errors.Is(e.Err, fs.ErrNotExist) {
			return fmt.Sprintf("Could not find file at '%s'", e.Path)
		}
		return fmt.Sprintf("Could not read project manifest %s: %v", e.Path, e.Err)
	case KindDetectionIO:
		return fmt.Sprintf("Could not read source file %s: %v", e.Path, e.Err)
	case KindEngineDecode:
		return fmt.Sprintf("The compiler rejected the request: %v", e.Err)
	case KindEngineBuild:
		return fmt.Sprintf("Build failed:\n%v", e.Err)
	case KindArtifactIO:
		return fmt.Sprintf("Could not write file: %v", e.Err)
	default:
		return "Error: " + err.Error()
	}
}
