package stage

import "encoding/json"

// runAudit type-checks and lints the generated code and persists the
// audit report.
func (r *Registry) runAudit(jobID string, params json.RawMessage) (outcome, error) {
	var p auditParams
	if err := decodeParams(params, &p); err != nil {
		return outcome{}, err
	}

	generation, err := r.requireGeneration(p.GenerationID)
	if err != nil {
		return outcome{}, err
	}

	tsStrict := boolOr(p.TSStrict, true)
	eslintConfig := p.ESLintConfig
	if eslintConfig == "" {
		eslintConfig = "recommended"
	}

	result, err := r.caller.Call("audit", map[string]any{
		"generationId": generation.ID,
		"tsStrict":     tsStrict,
		"eslintConfig": eslintConfig,
	})
	if err != nil {
		return outcome{}, err
	}

	reportID := coalesceID(result, "reportId")
	report := map[string]any{
		"id":           reportID,
		"generationId": generation.ID,
		"tsStrict":     tsStrict,
		"eslintConfig": eslintConfig,
	}
	for _, k := range []string{"errors", "warnings", "findings"} {
		if v, ok := result[k]; ok {
			report[k] = v
		}
	}

	digest, err := r.store.WriteReport("audit-"+reportID, report)
	if err != nil {
		return outcome{}, err
	}

	out := map[string]any{
		"reportId":     reportID,
		"generationId": generation.ID,
	}
	for _, k := range []string{"errors", "warnings"} {
		if v, ok := result[k]; ok {
			out[k] = v
		}
	}

	return outcome{artifactID: reportID, digest: digest, result: out}, nil
}
