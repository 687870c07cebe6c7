package stage

import (
	"github.com/mattjoyce/site2ts/internal/artifact"
	"github.com/mattjoyce/site2ts/internal/rpc"
)

// Ordering preconditions are checked locally against persisted
// manifests before delegating, so the contract holds even against a
// worker that performs no validation of its own. Each violated
// precondition has its own error code and a message naming the missing
// upstream stage.

// requireAnalysis loads the analysis manifest, optionally requiring a
// specific id.
func (r *Registry) requireAnalysis(id string) (*artifact.Analysis, error) {
	a, err := r.store.LoadAnalysis()
	if err == nil && (id == "" || a.ID == id) {
		return a, nil
	}
	if id == "" {
		return nil, rpc.NewError(rpc.CodeAnalysisRequired, "no analysis found: run analyze first")
	}
	return nil, rpc.NewError(rpc.CodeAnalysisRequired, "no analysis for %q: run analyze first", id)
}

// requireScaffold loads the scaffold manifest, optionally requiring a
// specific id.
func (r *Registry) requireScaffold(id string) (*artifact.Scaffold, error) {
	sc, err := r.store.LoadScaffold()
	if err == nil && (id == "" || sc.ID == id) {
		return sc, nil
	}
	if id == "" {
		return nil, rpc.NewError(rpc.CodeScaffoldRequired, "no scaffold found: run scaffold first")
	}
	return nil, rpc.NewError(rpc.CodeScaffoldRequired, "no scaffold for %q: run scaffold first", id)
}

// requireGeneration loads the generation manifest, optionally requiring
// a specific id.
func (r *Registry) requireGeneration(id string) (*artifact.Generation, error) {
	g, err := r.store.LoadGeneration()
	if err == nil && (id == "" || g.ID == id) {
		return g, nil
	}
	if id == "" {
		return nil, rpc.NewError(rpc.CodeGenerationRequired, "no generation found: run generate first")
	}
	return nil, rpc.NewError(rpc.CodeGenerationRequired, "no generation for %q: run generate first", id)
}
