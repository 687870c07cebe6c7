package stage

import (
	"encoding/json"
	"time"

	"github.com/mattjoyce/site2ts/internal/artifact"
)

// runScaffold lays down the application skeleton for a persisted
// analysis.
func (r *Registry) runScaffold(jobID string, params json.RawMessage) (outcome, error) {
	var p scaffoldParams
	if err := decodeParams(params, &p); err != nil {
		return outcome{}, err
	}

	analysis, err := r.requireAnalysis(p.AnalysisID)
	if err != nil {
		return outcome{}, err
	}

	appRouter := boolOr(p.AppRouter, true)
	outDir := p.OutDir
	if outDir == "" {
		outDir = "staging/app"
	}

	result, err := r.caller.Call("scaffold", map[string]any{
		"analysisId": analysis.ID,
		"appRouter":  appRouter,
		"outDir":     outDir,
	})
	if err != nil {
		return outcome{}, err
	}

	scaffoldID := coalesceID(result, "scaffoldId")
	if v, ok := result["outDir"].(string); ok && v != "" {
		outDir = v
	}

	sc := &artifact.Scaffold{
		ID:         scaffoldID,
		AnalysisID: analysis.ID,
		OutDir:     outDir,
		AppRouter:  appRouter,
		CreatedAt:  time.Now().UTC(),
	}
	digest, err := r.store.WriteScaffold(sc)
	if err != nil {
		return outcome{}, err
	}

	return outcome{
		artifactID: scaffoldID,
		digest:     digest,
		result: map[string]any{
			"scaffoldId": scaffoldID,
			"analysisId": analysis.ID,
			"outDir":     outDir,
			"appRouter":  appRouter,
		},
	}, nil
}
