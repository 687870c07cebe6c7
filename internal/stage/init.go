package stage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mattjoyce/site2ts/internal/artifact"
)

// defaultPins are the tool versions recorded when the worker does not
// report its own. The worker's versions win when present.
var defaultPins = map[string]string{
	"node":        "20.11.1",
	"playwright":  "1.41.2",
	"typescript":  "5.3.3",
	"next":        "14.1.0",
	"tailwindcss": "3.4.1",
	"eslint":      "8.56.0",
}

// runInit creates the working-directory skeleton and writes the pins
// manifest. It is idempotent: re-running leaves the skeleton intact and
// simply rewrites pins.json.
func (r *Registry) runInit(jobID string, params json.RawMessage) (outcome, error) {
	var p struct{}
	if err := decodeParams(params, &p); err != nil {
		return outcome{}, err
	}

	if err := r.layout.EnsureSkeleton(); err != nil {
		return outcome{}, fmt.Errorf("create project skeleton: %w", err)
	}

	result, err := r.caller.Call("init", map[string]any{"root": r.layout.Root()})
	if err != nil {
		return outcome{}, err
	}

	versions := make(map[string]string, len(defaultPins))
	for k, v := range defaultPins {
		versions[k] = v
	}
	if reported, ok := result["versions"]; ok {
		var workerVersions map[string]string
		if err := remarshal(reported, &workerVersions); err == nil {
			for k, v := range workerVersions {
				versions[k] = v
			}
		}
	}

	pins := &artifact.Pins{Versions: versions, CreatedAt: time.Now().UTC()}
	digest, err := r.store.WritePins(pins)
	if err != nil {
		return outcome{}, err
	}

	return outcome{
		artifactID: "pins",
		digest:     digest,
		result: map[string]any{
			"root":     r.layout.Root(),
			"versions": versions,
		},
	}, nil
}
