package stage

import (
	"encoding/json"
	"time"

	"github.com/mattjoyce/site2ts/internal/artifact"
	"github.com/mattjoyce/site2ts/internal/rpc"
)

// runAnalyze derives routes, forms, and categorized assets from a
// persisted sitemap. It is an ordering error to analyze a siteMapId no
// crawl has produced.
func (r *Registry) runAnalyze(jobID string, params json.RawMessage) (outcome, error) {
	var p analyzeParams
	if err := decodeParams(params, &p); err != nil {
		return outcome{}, err
	}
	if p.SiteMapID == "" {
		return outcome{}, rpc.InvalidParams("siteMapId", "missing")
	}

	if !r.store.HasSiteMap(p.SiteMapID) {
		return outcome{}, rpc.NewError(rpc.CodeCrawlRequired,
			"no sitemap for %q: run crawl first", p.SiteMapID)
	}

	result, err := r.caller.Call("analyze", map[string]any{"siteMapId": p.SiteMapID})
	if err != nil {
		return outcome{}, err
	}

	analysisID := coalesceID(result, "analysisId")

	a := &artifact.Analysis{
		ID:        analysisID,
		SiteMapID: p.SiteMapID,
		Routes:    []artifact.Route{},
		Forms:     []artifact.Form{},
		Assets:    artifact.Assets{Images: []string{}, Fonts: []string{}, Styles: []string{}},
		CreatedAt: time.Now().UTC(),
	}
	if raw, ok := result["routes"]; ok {
		if err := remarshal(raw, &a.Routes); err != nil {
			return outcome{}, rpc.Internal(err)
		}
	}
	if raw, ok := result["forms"]; ok {
		if err := remarshal(raw, &a.Forms); err != nil {
			return outcome{}, rpc.Internal(err)
		}
	}
	if raw, ok := result["assets"]; ok {
		if err := remarshal(raw, &a.Assets); err != nil {
			return outcome{}, rpc.Internal(err)
		}
	}

	digest, err := r.store.WriteAnalysis(a)
	if err != nil {
		return outcome{}, err
	}

	return outcome{
		artifactID: analysisID,
		digest:     digest,
		result: map[string]any{
			"analysisId": analysisID,
			"siteMapId":  p.SiteMapID,
			"routeCount": len(a.Routes),
			"formCount":  len(a.Forms),
		},
	}, nil
}
