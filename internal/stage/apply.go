package stage

import "encoding/json"

// runApply copies the generated code out of staging into the target
// directory. With dryRun the worker only reports what would change.
func (r *Registry) runApply(jobID string, params json.RawMessage) (outcome, error) {
	var p applyParams
	if err := decodeParams(params, &p); err != nil {
		return outcome{}, err
	}

	generation, err := r.requireGeneration(p.GenerationID)
	if err != nil {
		return outcome{}, err
	}

	target := p.Target
	if target == "" {
		target = "./"
	}
	dryRun := boolOr(p.DryRun, false)

	result, err := r.caller.Call("apply", map[string]any{
		"generationId": generation.ID,
		"target":       target,
		"dryRun":       dryRun,
	})
	if err != nil {
		return outcome{}, err
	}

	reportID := coalesceID(result, "reportId")
	report := map[string]any{
		"id":           reportID,
		"generationId": generation.ID,
		"target":       target,
		"dryRun":       dryRun,
	}
	for _, k := range []string{"written", "skipped", "conflicts"} {
		if v, ok := result[k]; ok {
			report[k] = v
		}
	}

	digest, err := r.store.WriteReport("apply-"+reportID, report)
	if err != nil {
		return outcome{}, err
	}

	out := map[string]any{
		"reportId":     reportID,
		"generationId": generation.ID,
		"target":       target,
		"dryRun":       dryRun,
	}
	for _, k := range []string{"written", "skipped", "conflicts"} {
		if v, ok := result[k]; ok {
			out[k] = v
		}
	}

	return outcome{artifactID: reportID, digest: digest, result: out}, nil
}
