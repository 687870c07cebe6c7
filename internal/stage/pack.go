package stage

import (
	"encoding/json"
	"path/filepath"
)

// runPack archives the generated application into exports/.
func (r *Registry) runPack(jobID string, params json.RawMessage) (outcome, error) {
	var p packParams
	if err := decodeParams(params, &p); err != nil {
		return outcome{}, err
	}

	generation, err := r.requireGeneration(p.GenerationID)
	if err != nil {
		return outcome{}, err
	}

	out := p.Out
	if out == "" {
		out = filepath.Join(r.layout.ExportsDir(), generation.ID+".zip")
	}

	result, err := r.caller.Call("pack", map[string]any{
		"generationId": generation.ID,
		"out":          out,
	})
	if err != nil {
		return outcome{}, err
	}

	exportID := coalesceID(result, "exportId")
	if v, ok := result["out"].(string); ok && v != "" {
		out = v
	}

	report := map[string]any{
		"id":           exportID,
		"generationId": generation.ID,
		"out":          out,
	}
	if v, ok := result["bytes"]; ok {
		report["bytes"] = v
	}

	digest, err := r.store.WriteReport("pack-"+exportID, report)
	if err != nil {
		return outcome{}, err
	}

	resultOut := map[string]any{
		"exportId":     exportID,
		"generationId": generation.ID,
		"out":          out,
	}
	if v, ok := result["bytes"]; ok {
		resultOut["bytes"] = v
	}

	return outcome{artifactID: exportID, digest: digest, result: resultOut}, nil
}
