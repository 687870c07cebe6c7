package stage

import "encoding/json"

// runAssets downloads and rewrites the static assets referenced by the
// generated code.
func (r *Registry) runAssets(jobID string, params json.RawMessage) (outcome, error) {
	var p assetsParams
	if err := decodeParams(params, &p); err != nil {
		return outcome{}, err
	}

	generation, err := r.requireGeneration(p.GenerationID)
	if err != nil {
		return outcome{}, err
	}

	result, err := r.caller.Call("assets", map[string]any{
		"generationId": generation.ID,
	})
	if err != nil {
		return outcome{}, err
	}

	reportID := coalesceID(result, "reportId")
	report := map[string]any{
		"id":           reportID,
		"generationId": generation.ID,
	}
	for _, k := range []string{"images", "fonts", "styles", "bytes"} {
		if v, ok := result[k]; ok {
			report[k] = v
		}
	}

	digest, err := r.store.WriteReport("assets-"+reportID, report)
	if err != nil {
		return outcome{}, err
	}

	out := map[string]any{
		"reportId":     reportID,
		"generationId": generation.ID,
	}
	for _, k := range []string{"images", "fonts", "styles"} {
		if v, ok := result[k]; ok {
			out[k] = v
		}
	}

	return outcome{artifactID: reportID, digest: digest, result: out}, nil
}
