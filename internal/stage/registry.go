// Package stage implements one handler per pipeline stage. Handlers
// share a single contract: normalize parameters, check ordering
// preconditions against persisted manifests, delegate to the worker,
// persist a manifest, append one job-log record, and return the
// worker's normalized result merged with the local identifiers.
package stage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/mattjoyce/site2ts/internal/artifact"
	"github.com/mattjoyce/site2ts/internal/history"
	"github.com/mattjoyce/site2ts/internal/ids"
	"github.com/mattjoyce/site2ts/internal/joblog"
	"github.com/mattjoyce/site2ts/internal/layout"
	"github.com/mattjoyce/site2ts/internal/log"
	"github.com/mattjoyce/site2ts/internal/rpc"
	"github.com/mattjoyce/site2ts/internal/worker"
)

// Stages is the fixed pipeline order.
var Stages = []string{
	"init", "crawl", "analyze", "scaffold", "generate",
	"diff", "audit", "apply", "assets", "pack",
}

// Registry wires the stage handlers to their collaborators.
type Registry struct {
	caller  worker.Caller
	store   *artifact.Store
	layout  *layout.Layout
	joblog  *joblog.Appender
	history *history.Store
	logger  *slog.Logger
}

// NewRegistry builds a Registry. history may be nil when no index
// database is open (the pipeline itself does not depend on it).
func NewRegistry(caller worker.Caller, store *artifact.Store, l *layout.Layout, jl *joblog.Appender, hist *history.Store) *Registry {
	return &Registry{
		caller:  caller,
		store:   store,
		layout:  l,
		joblog:  jl,
		history: hist,
		logger:  log.WithComponent("stage"),
	}
}

// Handlers returns the fixed dispatch table for the RPC front-end.
func (r *Registry) Handlers() map[string]rpc.HandlerFunc {
	return map[string]rpc.HandlerFunc{
		"init":     r.wrap("init", r.runInit),
		"crawl":    r.wrap("crawl", r.runCrawl),
		"analyze":  r.wrap("analyze", r.runAnalyze),
		"scaffold": r.wrap("scaffold", r.runScaffold),
		"generate": r.wrap("generate", r.runGenerate),
		"diff":     r.wrap("diff", r.runDiff),
		"audit":    r.wrap("audit", r.runAudit),
		"apply":    r.wrap("apply", r.runApply),
		"assets":   r.wrap("assets", r.runAssets),
		"pack":     r.wrap("pack", r.runPack),
	}
}

// outcome is what one stage run persists and reports.
type outcome struct {
	artifactID string
	digest     string
	result     map[string]any
}

type runFunc func(jobID string, params json.RawMessage) (outcome, error)

// wrap applies the shared invocation contract around one stage run:
// a fresh job id, exactly one job-log record, one history row, and the
// job id merged into the result.
func (r *Registry) wrap(stage string, fn runFunc) rpc.HandlerFunc {
	return func(params json.RawMessage) (map[string]any, error) {
		jobID := ids.New()
		started := time.Now()

		out, err := fn(jobID, params)
		elapsed := time.Since(started).Milliseconds()

		if err != nil {
			var rpcErr *rpc.Error
			if errors.As(err, &rpcErr) && rpcErr.Code == rpc.CodeInvalidParams {
				// Parameter failures never started the stage; they are
				// protocol errors and leave no trace in the job log.
				return nil, err
			}
			r.record(jobID, stage, out, elapsed, err)
			return nil, err
		}

		r.record(jobID, stage, out, elapsed, nil)

		if out.result == nil {
			out.result = map[string]any{}
		}
		out.result["jobId"] = jobID
		return out.result, nil
	}
}

// record appends the job-log line and the history row for one run.
func (r *Registry) record(jobID, stage string, out outcome, elapsed int64, runErr error) {
	level, msg := "info", stage+" complete"
	data := map[string]any{"durationMs": elapsed}
	status, errText := history.StatusOK, ""

	if runErr != nil {
		level, msg = "error", runErr.Error()
		status, errText = history.StatusFailed, runErr.Error()
		var rpcErr *rpc.Error
		if errors.As(runErr, &rpcErr) {
			data["code"] = rpcErr.Code
		}
	} else {
		if out.artifactID != "" {
			data["artifactId"] = out.artifactID
		}
		if out.digest != "" {
			data["digest"] = out.digest
		}
	}

	if err := r.joblog.Append(jobID, level, stage, msg, data); err != nil {
		r.logger.Error("failed to append job log", "job_id", jobID, "error", err)
	}

	if r.history == nil {
		return
	}
	run := history.Run{
		JobID:      jobID,
		Stage:      stage,
		ArtifactID: out.artifactID,
		Status:     status,
		Digest:     out.digest,
		Error:      errText,
		StartedAt:  time.Now().Add(-time.Duration(elapsed) * time.Millisecond),
		DurationMs: elapsed,
	}
	if err := r.history.Append(context.Background(), run); err != nil {
		r.logger.Error("failed to index stage run", "job_id", jobID, "error", err)
	}
}

// coalesceID applies the identifier policy: the worker's id wins when
// present, otherwise a fresh local one is minted, so every successful
// call yields a usable id.
func coalesceID(result map[string]any, key string) string {
	if v, ok := result[key].(string); ok && v != "" {
		return v
	}
	return ids.New()
}

// remarshal copies a loosely-typed worker result field into dst.
func remarshal(src, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
