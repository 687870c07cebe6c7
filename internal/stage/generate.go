package stage

import (
	"encoding/json"
	"time"

	"github.com/mattjoyce/site2ts/internal/artifact"
)

// runGenerate produces application code from a persisted scaffold.
func (r *Registry) runGenerate(jobID string, params json.RawMessage) (outcome, error) {
	var p generateParams
	if err := decodeParams(params, &p); err != nil {
		return outcome{}, err
	}

	scaffold, err := r.requireScaffold(p.ScaffoldID)
	if err != nil {
		return outcome{}, err
	}

	analysisID := p.AnalysisID
	if analysisID == "" {
		analysisID = scaffold.AnalysisID
	}
	tailwindMode := p.TailwindMode
	if tailwindMode == "" {
		tailwindMode = "full"
	}

	result, err := r.caller.Call("generate", map[string]any{
		"analysisId":   analysisID,
		"scaffoldId":   scaffold.ID,
		"tailwindMode": tailwindMode,
	})
	if err != nil {
		return outcome{}, err
	}

	generationID := coalesceID(result, "generationId")

	g := &artifact.Generation{
		ID:         generationID,
		AnalysisID: analysisID,
		ScaffoldID: scaffold.ID,
		CreatedAt:  time.Now().UTC(),
	}
	digest, err := r.store.WriteGeneration(g)
	if err != nil {
		return outcome{}, err
	}

	out := map[string]any{
		"generationId": generationID,
		"analysisId":   analysisID,
		"scaffoldId":   scaffold.ID,
	}
	if v, ok := result["fileCount"]; ok {
		out["fileCount"] = v
	}

	return outcome{artifactID: generationID, digest: digest, result: out}, nil
}
