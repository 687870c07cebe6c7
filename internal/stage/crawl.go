package stage

import (
	"encoding/json"
	"time"

	"github.com/mattjoyce/site2ts/internal/artifact"
	"github.com/mattjoyce/site2ts/internal/rpc"
)

// crawlRequest is the normalized parameter object delegated to the
// worker. Options are flattened next to the start URL, matching the
// manifest shape.
type crawlRequest struct {
	StartURL string `json:"startUrl"`
	artifact.CrawlOptions
}

// runCrawl discovers the site reachable from startUrl and persists the
// resulting sitemap manifest.
func (r *Registry) runCrawl(jobID string, params json.RawMessage) (outcome, error) {
	var p crawlParams
	if err := decodeParams(params, &p); err != nil {
		return outcome{}, err
	}
	if p.StartURL == "" {
		return outcome{}, rpc.InvalidParams("startUrl", "missing")
	}

	req := crawlRequest{StartURL: p.StartURL, CrawlOptions: p.normalize()}
	result, err := r.caller.Call("crawl", req)
	if err != nil {
		return outcome{}, err
	}

	siteMapID := coalesceID(result, "siteMapId")

	var pages []artifact.Page
	if raw, ok := result["pages"]; ok {
		if err := remarshal(raw, &pages); err != nil {
			return outcome{}, rpc.Internal(err)
		}
	}
	if pages == nil {
		pages = []artifact.Page{}
	}

	sm := &artifact.SiteMap{
		ID:           siteMapID,
		StartURL:     p.StartURL,
		CrawlOptions: req.CrawlOptions,
		Pages:        pages,
		CreatedAt:    time.Now().UTC(),
	}
	digest, err := r.store.WriteSiteMap(sm)
	if err != nil {
		return outcome{}, err
	}

	return outcome{
		artifactID: siteMapID,
		digest:     digest,
		result: map[string]any{
			"siteMapId": siteMapID,
			"startUrl":  p.StartURL,
			"pageCount": len(pages),
		},
	}, nil
}
