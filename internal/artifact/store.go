// Package artifact persists stage manifests under the project layout.
// Each manifest has a single writer (the stage that creates it) and is
// replaced wholesale on re-invocation, never patched.
package artifact

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/mattjoyce/site2ts/internal/layout"
)

// ErrNotFound reports a manifest that no earlier stage has persisted.
var ErrNotFound = errors.New("manifest not found")

// Store reads and writes JSON manifests keyed by generated identifiers.
type Store struct {
	layout *layout.Layout
}

// NewStore creates a Store over the given layout.
func NewStore(l *layout.Layout) *Store {
	return &Store{layout: l}
}

// WriteSiteMap persists one crawl result and returns its content digest.
func (s *Store) WriteSiteMap(sm *SiteMap) (string, error) {
	path, err := s.layout.SiteMap(sm.ID)
	if err != nil {
		return "", err
	}
	return writeJSON(path, sm)
}

// LoadSiteMap reads the sitemap manifest for id.
func (s *Store) LoadSiteMap(id string) (*SiteMap, error) {
	path, err := s.layout.SiteMap(id)
	if err != nil {
		return nil, err
	}
	var sm SiteMap
	if err := readJSON(path, &sm); err != nil {
		return nil, err
	}
	return &sm, nil
}

// HasSiteMap reports whether a sitemap manifest exists for id.
func (s *Store) HasSiteMap(id string) bool {
	path, err := s.layout.SiteMap(id)
	if err != nil {
		return false
	}
	return exists(path)
}

// WriteAnalysis persists the analysis manifest.
func (s *Store) WriteAnalysis(a *Analysis) (string, error) {
	return writeJSON(s.layout.Analysis(), a)
}

// LoadAnalysis reads the analysis manifest.
func (s *Store) LoadAnalysis() (*Analysis, error) {
	var a Analysis
	if err := readJSON(s.layout.Analysis(), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// HasAnalysis reports whether an analysis manifest exists, optionally
// requiring it to carry the given id.
func (s *Store) HasAnalysis(id string) bool {
	a, err := s.LoadAnalysis()
	if err != nil {
		return false
	}
	return id == "" || a.ID == id
}

// WriteScaffold persists the scaffold manifest.
func (s *Store) WriteScaffold(sc *Scaffold) (string, error) {
	return writeJSON(s.layout.Scaffold(), sc)
}

// LoadScaffold reads the scaffold manifest.
func (s *Store) LoadScaffold() (*Scaffold, error) {
	var sc Scaffold
	if err := readJSON(s.layout.Scaffold(), &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// HasScaffold reports whether a scaffold manifest exists, optionally
// requiring it to carry the given id.
func (s *Store) HasScaffold(id string) bool {
	sc, err := s.LoadScaffold()
	if err != nil {
		return false
	}
	return id == "" || sc.ID == id
}

// WriteGeneration persists the generation manifest.
func (s *Store) WriteGeneration(g *Generation) (string, error) {
	return writeJSON(s.layout.Generation(), g)
}

// LoadGeneration reads the generation manifest.
func (s *Store) LoadGeneration() (*Generation, error) {
	var g Generation
	if err := readJSON(s.layout.Generation(), &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// HasGeneration reports whether a generation manifest exists, optionally
// requiring it to carry the given id.
func (s *Store) HasGeneration(id string) bool {
	g, err := s.LoadGeneration()
	if err != nil {
		return false
	}
	return id == "" || g.ID == id
}

// WritePins persists the pins manifest.
func (s *Store) WritePins(p *Pins) (string, error) {
	return writeJSON(s.layout.Pins(), p)
}

// LoadPins reads the pins manifest.
func (s *Store) LoadPins() (*Pins, error) {
	var p Pins
	if err := readJSON(s.layout.Pins(), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// WriteReport persists a named report under reports/.
func (s *Store) WriteReport(name string, v any) (string, error) {
	path, err := s.layout.Report(name)
	if err != nil {
		return "", err
	}
	return writeJSON(path, v)
}

// writeJSON pretty-prints v to path, creating missing parents. A second
// write to the same path fully replaces the prior content. Returns the
// blake3 digest of the written document.
func writeJSON(path string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write manifest %s: %w", path, err)
	}

	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read manifest %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
