package stage

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/mattjoyce/site2ts/internal/artifact"
	"github.com/mattjoyce/site2ts/internal/rpc"
)

// decodeParams unmarshals the raw params object into v. Failures map to
// invalid-params errors whose message names the offending field.
func decodeParams(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(params))
	if err := dec.Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return rpc.InvalidParams(typeErr.Field, "expected "+typeErr.Type.String())
		}
		return rpc.InvalidParams("params", err.Error())
	}
	return nil
}

// Pointer fields distinguish "absent" from zero so the documented
// defaults only fill gaps the caller left.

type crawlParams struct {
	StartURL    string   `json:"startUrl"`
	SameOrigin  *bool    `json:"sameOrigin"`
	MaxPages    *int     `json:"maxPages"`
	MaxDepth    *int     `json:"maxDepth"`
	Allow       []string `json:"allow"`
	Deny        []string `json:"deny"`
	Concurrency *int     `json:"concurrency"`
	DelayMs     *int     `json:"delayMs"`
	UseSitemap  *bool    `json:"useSitemap"`
	ObeyRobots  *bool    `json:"obeyRobots"`
}

func (p crawlParams) normalize() artifact.CrawlOptions {
	return artifact.CrawlOptions{
		SameOrigin:  boolOr(p.SameOrigin, true),
		MaxPages:    intOr(p.MaxPages, 50),
		MaxDepth:    intOr(p.MaxDepth, 5),
		Allow:       p.Allow,
		Deny:        p.Deny,
		Concurrency: intOr(p.Concurrency, 4),
		DelayMs:     intOr(p.DelayMs, 0),
		UseSitemap:  boolOr(p.UseSitemap, true),
		ObeyRobots:  boolOr(p.ObeyRobots, true),
	}
}

type analyzeParams struct {
	SiteMapID string `json:"siteMapId"`
}

type scaffoldParams struct {
	AnalysisID string `json:"analysisId"`
	AppRouter  *bool  `json:"appRouter"`
	OutDir     string `json:"outDir"`
}

type generateParams struct {
	AnalysisID   string `json:"analysisId"`
	ScaffoldID   string `json:"scaffoldId"`
	TailwindMode string `json:"tailwindMode"`
}

// viewport is the rendering surface used for screenshot comparison.
type viewport struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	DeviceScale float64 `json:"deviceScale"`
}

type diffParams struct {
	GenerationID string    `json:"generationId"`
	Baselines    string    `json:"baselines"`
	Viewport     *viewport `json:"viewport"`
	Threshold    *float64  `json:"threshold"`
}

func (p diffParams) normalize() (string, viewport, float64) {
	baselines := p.Baselines
	if baselines == "" {
		baselines = "recrawl"
	}
	vp := viewport{Width: 1280, Height: 800, DeviceScale: 1}
	if p.Viewport != nil {
		vp = *p.Viewport
	}
	threshold := 0.01
	if p.Threshold != nil {
		threshold = *p.Threshold
	}
	return baselines, vp, threshold
}

type auditParams struct {
	GenerationID string `json:"generationId"`
	TSStrict     *bool  `json:"tsStrict"`
	ESLintConfig string `json:"eslintConfig"`
}

type applyParams struct {
	GenerationID string `json:"generationId"`
	Target       string `json:"target"`
	DryRun       *bool  `json:"dryRun"`
}

type assetsParams struct {
	GenerationID string `json:"generationId"`
}

type packParams struct {
	GenerationID string `json:"generationId"`
	Out          string `json:"out"`
}

func boolOr(p *bool, def bool) bool {
	if p != nil {
		return *p
	}
	return def
}

func intOr(p *int, def int) int {
	if p != nil {
		return *p
	}
	return def
}
