// Package joblog appends structured records to per-job ndjson files.
// A log file is append-only: lines are never rewritten.
package joblog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattjoyce/site2ts/internal/layout"
)

// tsLayout renders millisecond-precision UTC timestamps.
const tsLayout = "2006-01-02T15:04:05.000Z"

// Record is one log line. Every stage invocation appends exactly one.
type Record struct {
	TS    string         `json:"ts"`
	Level string         `json:"level"`
	JobID string         `json:"jobId"`
	Phase string         `json:"phase"`
	Msg   string         `json:"msg"`
	Data  map[string]any `json:"data"`
}

// Appender writes records under the project's logs directory.
type Appender struct {
	layout *layout.Layout
	now    func() time.Time
}

// NewAppender creates an Appender over the given layout.
func NewAppender(l *layout.Layout) *Appender {
	return &Appender{layout: l, now: time.Now}
}

// Append writes one record to logs/<jobId>.ndjson, stamping TS if unset.
func (a *Appender) Append(jobID, level, phase, msg string, data map[string]any) error {
	path, err := a.layout.JobLog(jobID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create logs directory: %w", err)
	}

	if data == nil {
		data = map[string]any{}
	}
	rec := Record{
		TS:    a.now().UTC().Format(tsLayout),
		Level: level,
		JobID: jobID,
		Phase: phase,
		Msg:   msg,
		Data:  data,
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal log record: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open job log %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append job log %s: %w", path, err)
	}
	return nil
}
