package stage

import "encoding/json"

// runDiff compares screenshots of the generated app against baselines
// of the original site and persists the comparison report.
func (r *Registry) runDiff(jobID string, params json.RawMessage) (outcome, error) {
	var p diffParams
	if err := decodeParams(params, &p); err != nil {
		return outcome{}, err
	}

	generation, err := r.requireGeneration(p.GenerationID)
	if err != nil {
		return outcome{}, err
	}

	baselines, vp, threshold := p.normalize()

	result, err := r.caller.Call("diff", map[string]any{
		"generationId": generation.ID,
		"baselines":    baselines,
		"viewport":     vp,
		"threshold":    threshold,
	})
	if err != nil {
		return outcome{}, err
	}

	reportID := coalesceID(result, "reportId")
	report := map[string]any{
		"id":           reportID,
		"generationId": generation.ID,
		"baselines":    baselines,
		"viewport":     vp,
		"threshold":    threshold,
	}
	for _, k := range []string{"pages", "pagesCompared", "failures", "maxDelta"} {
		if v, ok := result[k]; ok {
			report[k] = v
		}
	}

	digest, err := r.store.WriteReport("diff-"+reportID, report)
	if err != nil {
		return outcome{}, err
	}

	out := map[string]any{
		"reportId":     reportID,
		"generationId": generation.ID,
	}
	for _, k := range []string{"pagesCompared", "failures", "maxDelta"} {
		if v, ok := result[k]; ok {
			out[k] = v
		}
	}

	return outcome{artifactID: reportID, digest: digest, result: out}, nil
}
