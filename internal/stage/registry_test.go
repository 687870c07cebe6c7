package stage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/site2ts/internal/artifact"
	"github.com/mattjoyce/site2ts/internal/history"
	"github.com/mattjoyce/site2ts/internal/joblog"
	"github.com/mattjoyce/site2ts/internal/layout"
	"github.com/mattjoyce/site2ts/internal/rpc"
)

// fakeCaller is a worker stub. It performs no validation, which is
// exactly the case the local ordering checks must hold up against.
type fakeCaller struct {
	results map[string]map[string]any
	errs    map[string]error
	calls   []recordedCall
}

type recordedCall struct {
	method string
	params map[string]any
}

func (f *fakeCaller) Call(method string, params any) (map[string]any, error) {
	var asMap map[string]any
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &asMap); err != nil {
			return nil, err
		}
	}
	f.calls = append(f.calls, recordedCall{method: method, params: asMap})

	if err, ok := f.errs[method]; ok {
		return nil, err
	}
	if res, ok := f.results[method]; ok {
		return res, nil
	}
	return map[string]any{}, nil
}

func (f *fakeCaller) lastCall(t *testing.T, method string) recordedCall {
	t.Helper()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].method == method {
			return f.calls[i]
		}
	}
	t.Fatalf("no call recorded for %q", method)
	return recordedCall{}
}

type fixture struct {
	registry *Registry
	caller   *fakeCaller
	store    *artifact.Store
	root     string
	hist     *history.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := filepath.Join(t.TempDir(), layout.DefaultRootName)
	l, err := layout.New(root)
	require.NoError(t, err)

	db, err := history.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	caller := &fakeCaller{
		results: map[string]map[string]any{},
		errs:    map[string]error{},
	}
	store := artifact.NewStore(l)
	hist := history.NewStore(db)
	reg := NewRegistry(caller, store, l, joblog.NewAppender(l), hist)

	return &fixture{registry: reg, caller: caller, store: store, root: root, hist: hist}
}

// invoke dispatches through the registry's handler table.
func (fx *fixture) invoke(t *testing.T, method, params string) (map[string]any, error) {
	t.Helper()
	handler, ok := fx.registry.Handlers()[method]
	require.True(t, ok, "no handler for %q", method)
	var raw json.RawMessage
	if params != "" {
		raw = json.RawMessage(params)
	}
	return handler(raw)
}

// readJobLog returns the decoded lines of one job's log.
func (fx *fixture) readJobLog(t *testing.T, jobID string) []joblog.Record {
	t.Helper()
	f, err := os.Open(filepath.Join(fx.root, "logs", jobID+".ndjson"))
	require.NoError(t, err)
	defer f.Close()

	var out []joblog.Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec joblog.Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		out = append(out, rec)
	}
	return out
}

func TestCrawlScenario(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	result, err := fx.invoke(t, "crawl", `{"startUrl":"https://example.com"}`)
	require.NoError(t, err)

	siteMapID, _ := result["siteMapId"].(string)
	require.Len(t, siteMapID, 26, "siteMapId must be a 26-character sortable identifier")

	raw, err := os.ReadFile(filepath.Join(fx.root, "cache", "sitemaps", siteMapID+".json"))
	require.NoError(t, err, "manifest must exist under cache/sitemaps")

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Equal(t, "https://example.com", doc["startUrl"])
	require.Equal(t, float64(50), doc["maxPages"])
	require.Equal(t, float64(5), doc["maxDepth"])

	// The worker saw the normalized defaults.
	call := fx.caller.lastCall(t, "crawl")
	require.Equal(t, true, call.params["sameOrigin"])
	require.Equal(t, float64(4), call.params["concurrency"])
	require.Equal(t, float64(0), call.params["delayMs"])
	require.Equal(t, true, call.params["useSitemap"])
	require.Equal(t, true, call.params["obeyRobots"])

	// Exactly one job-log record.
	jobID, _ := result["jobId"].(string)
	require.Len(t, jobID, 26)
	records := fx.readJobLog(t, jobID)
	require.Len(t, records, 1)
	require.Equal(t, "info", records[0].Level)
	require.Equal(t, "crawl", records[0].Phase)
	require.Equal(t, jobID, records[0].JobID)

	// One history row.
	runs, err := fx.hist.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "crawl", runs[0].Stage)
	require.Equal(t, history.StatusOK, runs[0].Status)
	require.Equal(t, siteMapID, runs[0].ArtifactID)
}

func TestTwoCrawlsDoNotOverwrite(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	first, err := fx.invoke(t, "crawl", `{"startUrl":"https://a.example"}`)
	require.NoError(t, err)
	second, err := fx.invoke(t, "crawl", `{"startUrl":"https://b.example"}`)
	require.NoError(t, err)

	idA := first["siteMapId"].(string)
	idB := second["siteMapId"].(string)
	require.NotEqual(t, idA, idB)

	smA, err := fx.store.LoadSiteMap(idA)
	require.NoError(t, err)
	smB, err := fx.store.LoadSiteMap(idB)
	require.NoError(t, err)
	require.Equal(t, "https://a.example", smA.StartURL)
	require.Equal(t, "https://b.example", smB.StartURL)
}

func TestCrawlMissingStartURL(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	_, err := fx.invoke(t, "crawl", `{}`)
	require.Error(t, err)

	var rpcErr *rpc.Error
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, rpc.CodeInvalidParams, rpcErr.Code)
	require.Contains(t, rpcErr.Message, "startUrl")
	require.Empty(t, fx.caller.calls, "invalid params must not reach the worker")
}

func TestCrawlMistypedParamNamesField(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	_, err := fx.invoke(t, "crawl", `{"startUrl":"https://example.com","maxPages":"many"}`)
	require.Error(t, err)

	var rpcErr *rpc.Error
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, rpc.CodeInvalidParams, rpcErr.Code)
	require.Contains(t, rpcErr.Message, "maxPages")
}

func TestAnalyzeBeforeCrawlIsOrderingError(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	_, err := fx.invoke(t, "analyze", `{"siteMapId":"01J8ZXNOSUCH0000000000001A"}`)
	require.Error(t, err)

	var rpcErr *rpc.Error
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, rpc.CodeCrawlRequired, rpcErr.Code)
	require.Contains(t, rpcErr.Message, "crawl")
	require.Empty(t, fx.caller.calls, "ordering check happens before delegation")
}

func TestGenerateBeforeScaffold(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	_, err := fx.invoke(t, "generate", `{}`)
	require.Error(t, err)

	var rpcErr *rpc.Error
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, rpc.CodeScaffoldRequired, rpcErr.Code)
	require.Contains(t, rpcErr.Message, "scaffold")
}

func TestApplyBeforeGenerate(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	for _, method := range []string{"diff", "audit", "apply", "assets", "pack"} {
		_, err := fx.invoke(t, method, `{}`)
		require.Error(t, err, method)

		var rpcErr *rpc.Error
		require.True(t, errors.As(err, &rpcErr), method)
		require.Equal(t, rpc.CodeGenerationRequired, rpcErr.Code, method)
		require.Contains(t, rpcErr.Message, "generate", method)
	}
}

func TestInitIsIdempotent(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	for i := 0; i < 2; i++ {
		_, err := fx.invoke(t, "init", `{}`)
		require.NoError(t, err, "init run %d", i+1)
	}

	for _, d := range []string{"staging/meta", "cache/sitemaps", "cache/pw", "reports", "logs", "exports"} {
		info, err := os.Stat(filepath.Join(fx.root, filepath.FromSlash(d)))
		require.NoError(t, err, d)
		require.True(t, info.IsDir(), d)
	}

	pins, err := fx.store.LoadPins()
	require.NoError(t, err)
	require.NotEmpty(t, pins.Versions["node"])
	require.False(t, pins.CreatedAt.IsZero())
}

func TestInitWorkerVersionsWin(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.caller.results["init"] = map[string]any{
		"versions": map[string]any{"node": "22.2.0"},
	}

	result, err := fx.invoke(t, "init", `{}`)
	require.NoError(t, err)

	versions := result["versions"].(map[string]string)
	require.Equal(t, "22.2.0", versions["node"])
	require.Equal(t, defaultPins["typescript"], versions["typescript"])
}

func TestWorkerIDWinsOverLocalMint(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.caller.results["crawl"] = map[string]any{
		"siteMapId": "01J8ZXFROMWORKER0000000001",
		"pages":     []any{map[string]any{"url": "https://example.com/"}},
	}

	result, err := fx.invoke(t, "crawl", `{"startUrl":"https://example.com"}`)
	require.NoError(t, err)
	require.Equal(t, "01J8ZXFROMWORKER0000000001", result["siteMapId"])
	require.Equal(t, 1, result["pageCount"])
}

func TestWorkerErrorPassesThroughAndIsLogged(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.caller.errs["crawl"] = &rpc.Error{Code: 4300, Message: "navigation blocked"}

	_, err := fx.invoke(t, "crawl", `{"startUrl":"https://example.com"}`)
	require.Error(t, err)

	var rpcErr *rpc.Error
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, 4300, rpcErr.Code)

	runs, err := fx.hist.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, history.StatusFailed, runs[0].Status)
	require.Contains(t, runs[0].Error, "navigation blocked")

	records := fx.readJobLog(t, runs[0].JobID)
	require.Len(t, records, 1)
	require.Equal(t, "error", records[0].Level)
}

// runPipeline drives init through a given stage in order.
func runPipeline(t *testing.T, fx *fixture, until string) map[string]map[string]any {
	t.Helper()

	results := map[string]map[string]any{}
	steps := []struct{ method, params string }{
		{"init", `{}`},
		{"crawl", `{"startUrl":"https://example.com"}`},
		{"analyze", ""},
		{"scaffold", `{}`},
		{"generate", `{}`},
		{"diff", `{}`},
		{"audit", `{}`},
		{"apply", `{"dryRun":true}`},
		{"assets", `{}`},
		{"pack", `{}`},
	}
	for _, step := range steps {
		params := step.params
		if step.method == "analyze" {
			params = fmt.Sprintf(`{"siteMapId":%q}`, results["crawl"]["siteMapId"])
		}
		result, err := fx.invoke(t, step.method, params)
		require.NoError(t, err, step.method)
		results[step.method] = result
		if step.method == until {
			break
		}
	}
	return results
}

func TestFullPipeline(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	results := runPipeline(t, fx, "pack")

	// Every stage ran, minted a job, and indexed a run.
	runs, err := fx.hist.Recent(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, runs, len(Stages))
	for _, run := range runs {
		require.Equal(t, history.StatusOK, run.Status)
		records := fx.readJobLog(t, run.JobID)
		require.Len(t, records, 1, "stage %s", run.Stage)
	}

	// Downstream manifests reference their upstream ids.
	gen, err := fx.store.LoadGeneration()
	require.NoError(t, err)
	require.Equal(t, results["scaffold"]["scaffoldId"], gen.ScaffoldID)
	require.Equal(t, results["analyze"]["analysisId"], gen.AnalysisID)

	sc, err := fx.store.LoadScaffold()
	require.NoError(t, err)
	require.True(t, sc.AppRouter)
	require.Equal(t, "staging/app", sc.OutDir)
}

func TestDiffDefaultsForwardedToWorker(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	runPipeline(t, fx, "diff")

	call := fx.caller.lastCall(t, "diff")
	require.Equal(t, "recrawl", call.params["baselines"])
	require.Equal(t, 0.01, call.params["threshold"])

	vp := call.params["viewport"].(map[string]any)
	require.Equal(t, float64(1280), vp["width"])
	require.Equal(t, float64(800), vp["height"])
	require.Equal(t, float64(1), vp["deviceScale"])
}

func TestAuditAndApplyDefaults(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	runPipeline(t, fx, "generate")

	_, err := fx.invoke(t, "audit", `{}`)
	require.NoError(t, err)
	auditCall := fx.caller.lastCall(t, "audit")
	require.Equal(t, true, auditCall.params["tsStrict"])
	require.Equal(t, "recommended", auditCall.params["eslintConfig"])

	_, err = fx.invoke(t, "apply", `{}`)
	require.NoError(t, err)
	applyCall := fx.caller.lastCall(t, "apply")
	require.Equal(t, "./", applyCall.params["target"])
	require.Equal(t, false, applyCall.params["dryRun"])
}

func TestScaffoldRejectsForeignAnalysisID(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	runPipeline(t, fx, "analyze")

	_, err := fx.invoke(t, "scaffold", `{"analysisId":"01J8ZXSOMEOTHER00000000001"}`)
	require.Error(t, err)

	var rpcErr *rpc.Error
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, rpc.CodeAnalysisRequired, rpcErr.Code)
	require.Contains(t, rpcErr.Message, "analyze")
}
