package artifact

import "time"

// CrawlOptions capture the normalized crawl parameters. They are
// embedded in the SiteMap manifest so a crawl is reproducible from its
// manifest alone.
type CrawlOptions struct {
	SameOrigin  bool     `json:"sameOrigin"`
	MaxPages    int      `json:"maxPages"`
	MaxDepth    int      `json:"maxDepth"`
	Allow       []string `json:"allow,omitempty"`
	Deny        []string `json:"deny,omitempty"`
	Concurrency int      `json:"concurrency"`
	DelayMs     int      `json:"delayMs"`
	UseSitemap  bool     `json:"useSitemap"`
	ObeyRobots  bool     `json:"obeyRobots"`
}

// Page is one discovered page in crawl order.
type Page struct {
	URL   string `json:"url"`
	Depth int    `json:"depth,omitempty"`
	Title string `json:"title,omitempty"`
}

// SiteMap is the durable result of the crawl stage.
type SiteMap struct {
	ID       string    `json:"id"`
	StartURL string    `json:"startUrl"`
	CrawlOptions
	Pages     []Page    `json:"pages"`
	CreatedAt time.Time `json:"createdAt"`
}

// Route is one application route derived from the crawled site.
type Route struct {
	Path   string `json:"path"`
	Source string `json:"source,omitempty"`
}

// Form is one form discovered during analysis.
type Form struct {
	Page   string   `json:"page"`
	Action string   `json:"action,omitempty"`
	Method string   `json:"method,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

// Assets groups discovered static assets by category.
type Assets struct {
	Images []string `json:"images"`
	Fonts  []string `json:"fonts"`
	Styles []string `json:"styles"`
}

// Analysis is the durable result of the analyze stage.
type Analysis struct {
	ID        string    `json:"id"`
	SiteMapID string    `json:"siteMapId"`
	Routes    []Route   `json:"routes"`
	Forms     []Form    `json:"forms"`
	Assets    Assets    `json:"assets"`
	CreatedAt time.Time `json:"createdAt"`
}

// Scaffold is the durable result of the scaffold stage.
type Scaffold struct {
	ID         string    `json:"id"`
	AnalysisID string    `json:"analysisId"`
	OutDir     string    `json:"outDir"`
	AppRouter  bool      `json:"appRouter"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Generation is the durable result of the generate stage. It records
// the analysis and scaffold it was built from.
type Generation struct {
	ID         string    `json:"id"`
	AnalysisID string    `json:"analysisId"`
	ScaffoldID string    `json:"scaffoldId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Pins is the process-wide reproducibility record written by init:
// exact pinned tool versions and the creation instant.
type Pins struct {
	Versions  map[string]string `json:"versions"`
	CreatedAt time.Time         `json:"createdAt"`
}
