package engine

import (
	"context"

	"github.com/albertocavalcante/morphir-make/cmd/morphir/internal/reconcile"
)

// Engine is the compilation engine port. Each call submits one request and
// resolves on the first terminal signal the engine sends back.
type Engine interface {
	SubmitFullBuild(ctx context.Context, req FullBuildRequest) (*Artifact, error)
	SubmitIncrementalBuild(ctx context.Context, req IncrementalBuildRequest) (*Artifact, error)
	SubmitGenerate(ctx context.Context, req GenerateRequest) ([]reconcile.GeneratedFile, error)
}

// ProgressFunc receives reportProgress messages in the order they arrive.
type ProgressFunc func(message string)
