// Package pipeline drives one scan from validation to persisted findings.
package pipeline

import (
	"context"

	"github.com/user/sentinel-adk/pkg/engine"
	"github.com/user/sentinel-adk/pkg/orchestrator"
)

// Validation is the verdict of a Validator.
type Validation struct {
	Valid  bool
	Reason string
}

type Validator interface {
	Validate(ctx context.Context, target string, consent bool) Validation
}

// Recon gathers the surface the reasoner works from.
type Recon interface {
	Web(ctx context.Context, target string) (*engine.ReconData, error)
	Repo(ctx context.Context, target string) (*engine.ReconData, error)
}

// Reasoner turns recon data into findings.
type Reasoner interface {
	Reason(ctx context.Context, data *engine.ReconData) ([]engine.Finding, error)
}

// Stager provides a local working copy of a repository. Release must be safe
// to call with any path Acquire returned.
type Stager interface {
	Acquire(ctx context.Context, target string) (string, error)
	Release(path string) error
}

// StaticRunner runs the static analyzers over a working copy.
type StaticRunner interface {
	Run(ctx context.Context, targetPath string) (orchestrator.Result, error)
}

// Observer receives scan-level metrics.
type Observer interface {
	ObserveScan(status string)
	ObserveFindings(findings []engine.Finding)
}
