// Package layout resolves the on-disk project layout. Everything the
// pipeline persists lives under one hidden project-relative root:
//
//	.site2ts/
//	  pins.json                      tool version pins written by init
//	  staging/meta/                  analysis/scaffold/generation manifests
//	  cache/sitemaps/<id>.json       crawl results
//	  cache/pw/                      worker-owned browser cache (opaque)
//	  reports/                       diff and audit reports
//	  logs/<jobId>.ndjson            append-only per-job logs
//	  exports/                       packed archives
//	  state.db                       stage-run history index
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultRootName is the hidden directory created inside the project.
const DefaultRootName = ".site2ts"

// Layout resolves paths under a single project root.
type Layout struct {
	root string
}

// New returns a Layout rooted at root. An empty root is an error.
func New(root string) (*Layout, error) {
	trimmed := strings.TrimSpace(root)
	if trimmed == "" {
		return nil, fmt.Errorf("project root is empty")
	}
	return &Layout{root: filepath.Clean(trimmed)}, nil
}

// Root returns the project root directory.
func (l *Layout) Root() string { return l.root }

// Pins returns the path of the pins manifest.
func (l *Layout) Pins() string { return filepath.Join(l.root, "pins.json") }

// SiteMap returns the manifest path for one crawl result.
func (l *Layout) SiteMap(id string) (string, error) {
	if err := validateArtifactID(id); err != nil {
		return "", err
	}
	return filepath.Join(l.root, "cache", "sitemaps", id+".json"), nil
}

// Analysis returns the path of the analysis manifest.
func (l *Layout) Analysis() string {
	return filepath.Join(l.root, "staging", "meta", "analysis.json")
}

// Scaffold returns the path of the scaffold manifest.
func (l *Layout) Scaffold() string {
	return filepath.Join(l.root, "staging", "meta", "scaffold.json")
}

// Generation returns the path of the generation manifest.
func (l *Layout) Generation() string {
	return filepath.Join(l.root, "staging", "meta", "generation.json")
}

// Report returns the path of a named report under reports/.
func (l *Layout) Report(name string) (string, error) {
	if err := validateArtifactID(name); err != nil {
		return "", err
	}
	return filepath.Join(l.root, "reports", name+".json"), nil
}

// JobLog returns the ndjson log path for one job.
func (l *Layout) JobLog(jobID string) (string, error) {
	if err := validateArtifactID(jobID); err != nil {
		return "", err
	}
	return filepath.Join(l.root, "logs", jobID+".ndjson"), nil
}

// LogsDir returns the directory holding per-job logs.
func (l *Layout) LogsDir() string { return filepath.Join(l.root, "logs") }

// ExportsDir returns the directory packed archives are written to.
func (l *Layout) ExportsDir() string { return filepath.Join(l.root, "exports") }

// HistoryDB returns the path of the stage-run index database.
func (l *Layout) HistoryDB() string { return filepath.Join(l.root, "state.db") }

// EnsureSkeleton creates the full working-directory skeleton. It is
// idempotent: re-running against an existing tree succeeds and leaves
// prior contents untouched.
func (l *Layout) EnsureSkeleton() error {
	dirs := []string{
		filepath.Join(l.root, "staging", "meta"),
		filepath.Join(l.root, "cache", "sitemaps"),
		filepath.Join(l.root, "cache", "pw"),
		filepath.Join(l.root, "reports"),
		filepath.Join(l.root, "logs"),
		filepath.Join(l.root, "exports"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

// validateArtifactID rejects identifiers that would escape the layout.
func validateArtifactID(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("artifact id is empty")
	}
	if trimmed == "." || trimmed == ".." {
		return fmt.Errorf("artifact id %q is invalid", id)
	}
	if strings.Contains(trimmed, "/") || strings.Contains(trimmed, `\`) {
		return fmt.Errorf("artifact id %q must not contain path separators", id)
	}
	if filepath.Clean(trimmed) != trimmed {
		return fmt.Errorf("artifact id %q is invalid", id)
	}
	return nil
}
