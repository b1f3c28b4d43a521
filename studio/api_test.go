package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/podstudio-labs/podstudio-go/internal/config"
	"github.com/podstudio-labs/podstudio-go/internal/domain"
	"github.com/podstudio-labs/podstudio-go/internal/logging"
	"github.com/podstudio-labs/podstudio-go/internal/pipeline"
	"github.com/podstudio-labs/podstudio-go/internal/progress"
	"github.com/podstudio-labs/podstudio-go/internal/repo/jsonfile"
	"github.com/podstudio-labs/podstudio-go/internal/service/runs"
)

type runnerFunc func(ctx context.Context, cfg domain.PipelineConfig, onProgress pipeline.ProgressFunc) (domain.PipelineResult, error)

func (f runnerFunc) Run(ctx context.Context, cfg domain.PipelineConfig, onProgress pipeline.ProgressFunc) (domain.PipelineResult, error) {
	return f(ctx, cfg, onProgress)
}

// instantRunner completes immediately with the given result.
func instantRunner(result domain.PipelineResult) runnerFunc {
	return func(ctx context.Context, cfg domain.PipelineConfig, onProgress pipeline.ProgressFunc) (domain.PipelineResult, error) {
		return result, nil
	}
}

type testStudio struct {
	mux  *http.ServeMux
	runs *runs.Service
}

func newTestStudio(t *testing.T, maxConcurrent int, runner pipeline.Runner) *testStudio {
	t.Helper()
	logger := logging.NewForTest()
	dir := t.TempDir()

	history := jsonfile.NewHistoryStore(filepath.Join(dir, "history.json"), 20, logger)
	presets, err := jsonfile.NewPresetStore(filepath.Join(dir, "presets.json"), logger)
	if err != nil {
		t.Fatalf("NewPresetStore: %v", err)
	}

	svc := runs.NewService(
		context.Background(),
		logger,
		runs.NewRegistry(maxConcurrent),
		runs.NewBroadcaster(logger),
		runner,
		history,
		progress.NewNormalizer(progress.Default()),
	)

	api := newStudioAPI(logger, svc, presets, config.Default().Defaults)
	mux := http.NewServeMux()
	api.register(mux)
	return &testStudio{mux: mux, runs: svc}
}

func (ts *testStudio) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "http://studio.test"+path, rd)
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &body)
	return body.Error
}

func (ts *testStudio) createRun(t *testing.T, body string) string {
	t.Helper()
	rec := ts.do(t, "POST", "/api/runs", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create run status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp createRunResponse
	decodeBody(t, rec, &resp)
	if resp.RunID == "" {
		t.Fatalf("create run returned empty run_id")
	}
	return resp.RunID
}

func (ts *testStudio) waitForStatus(t *testing.T, runID string, want domain.RunStatus) domain.Run {
	t.Helper()
	var run domain.Run
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := ts.runs.GetRun(runID)
		if err == nil && got.Status == want {
			return got
		}
		if err == nil {
			run = got
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("run %s never reached %s, last status %s", runID, want, run.Status)
	return run
}

func TestCreateRun(t *testing.T) {
	ts := newTestStudio(t, 1, instantRunner(domain.PipelineResult{Duration: 1.5}))

	rec := ts.do(t, "POST", "/api/runs", `{"url": "https://www.youtube.com/watch?v=abc123"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp createRunResponse
	decodeBody(t, rec, &resp)
	if resp.RunID == "" {
		t.Fatalf("empty run_id")
	}
	if got, want := rec.Header().Get("Location"), "/api/runs/"+resp.RunID; got != want {
		t.Fatalf("Location=%q, want %q", got, want)
	}

	run := ts.waitForStatus(t, resp.RunID, domain.RunCompleted)
	if run.Config.YouTubeURL != "https://www.youtube.com/watch?v=abc123" {
		t.Fatalf("youtube_url=%q", run.Config.YouTubeURL)
	}
	if run.Config.RSSURL != "" {
		t.Fatalf("rss_url should be empty for a youtube source, got %q", run.Config.RSSURL)
	}
}

func TestCreateRun_FillsDefaults(t *testing.T) {
	ts := newTestStudio(t, 1, instantRunner(domain.PipelineResult{}))

	runID := ts.createRun(t, `{"url": "https://example.com/feed.xml"}`)
	run := ts.waitForStatus(t, runID, domain.RunCompleted)

	if run.Config.RSSURL != "https://example.com/feed.xml" {
		t.Fatalf("rss_url=%q", run.Config.RSSURL)
	}
	if run.Config.Model != "large-v3-turbo" {
		t.Fatalf("model=%q, want default fill", run.Config.Model)
	}
	if run.Config.Compute != "int8" {
		t.Fatalf("compute=%q, want default fill", run.Config.Compute)
	}
	if run.Config.DeepcastModel != "gpt-4.1" {
		t.Fatalf("deepcast_model=%q, want default fill", run.Config.DeepcastModel)
	}
	if run.Config.DeepcastTemp != 0.2 {
		t.Fatalf("deepcast_temp=%v, want default fill", run.Config.DeepcastTemp)
	}
}

func TestCreateRun_AppliesPresetAndAdvanced(t *testing.T) {
	ts := newTestStudio(t, 1, instantRunner(domain.PipelineResult{}))

	rec := ts.do(t, "POST", "/api/presets", `{"name": "deep", "config": {"diarize": false, "deepcast_temp": 0.7}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create preset status=%d body=%s", rec.Code, rec.Body.String())
	}

	runID := ts.createRun(t, `{"url": "https://example.com/feed.xml", "preset": "deep", "advanced": {"model": "medium", "deepcast_temp": 0.9}}`)
	run := ts.waitForStatus(t, runID, domain.RunCompleted)

	if run.Config.Diarize {
		t.Fatalf("preset diarize=false was not applied")
	}
	if run.Config.Model != "medium" {
		t.Fatalf("model=%q, want advanced override", run.Config.Model)
	}
	if run.Config.DeepcastTemp != 0.9 {
		t.Fatalf("deepcast_temp=%v, want advanced to win over preset", run.Config.DeepcastTemp)
	}
}

func TestCreateRun_InvalidJSON(t *testing.T) {
	ts := newTestStudio(t, 1, instantRunner(domain.PipelineResult{}))

	for _, body := range []string{`{"url":`, `{"unknown_field": 1}`, `{"url": "a"} {"url": "b"}`} {
		rec := ts.do(t, "POST", "/api/runs", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status=%d, want 400", body, rec.Code)
		}
		if code := errorCode(t, rec); code != "invalid_json" {
			t.Fatalf("body %q: error=%q", body, code)
		}
	}
}

func TestCreateRun_URLRequired(t *testing.T) {
	ts := newTestStudio(t, 1, instantRunner(domain.PipelineResult{}))

	rec := ts.do(t, "POST", "/api/runs", `{"url": "  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rec.Code)
	}
	if code := errorCode(t, rec); code != "url_required" {
		t.Fatalf("error=%q", code)
	}
}

func TestCreateRun_InvalidURL(t *testing.T) {
	ts := newTestStudio(t, 1, instantRunner(domain.PipelineResult{}))

	rec := ts.do(t, "POST", "/api/runs", `{"url": "ftp://example.com/feed"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	decodeBody(t, rec, &body)
	if body.Error != "invalid_url" {
		t.Fatalf("error=%q", body.Error)
	}
	if body.Details == "" {
		t.Fatalf("expected classification error in details")
	}
}

func TestCreateRun_PresetCheckedBeforeURL(t *testing.T) {
	ts := newTestStudio(t, 1, instantRunner(domain.PipelineResult{}))

	// Even with a bad URL the unknown preset is reported first.
	rec := ts.do(t, "POST", "/api/runs", `{"url": "not a url", "preset": "nope"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != "preset_not_found" {
		t.Fatalf("error=%q", code)
	}
}

func TestCreateRun_CapacityExceeded(t *testing.T) {
	release := make(chan struct{})
	runner := runnerFunc(func(ctx context.Context, cfg domain.PipelineConfig, onProgress pipeline.ProgressFunc) (domain.PipelineResult, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return domain.PipelineResult{}, nil
	})
	ts := newTestStudio(t, 1, runner)

	first := ts.createRun(t, `{"url": "https://example.com/feed.xml"}`)

	rec := ts.do(t, "POST", "/api/runs", `{"url": "https://example.com/feed.xml"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d, want 429", rec.Code)
	}
	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	decodeBody(t, rec, &body)
	if body.Error != "capacity_exceeded" {
		t.Fatalf("error=%q", body.Error)
	}
	if !strings.Contains(body.Details, "maximum concurrent runs (1) reached") {
		t.Fatalf("details=%q", body.Details)
	}

	close(release)
	ts.waitForStatus(t, first, domain.RunCompleted)

	// A finished run frees its slot; wait for it so its async history
	// write does not race the TempDir cleanup.
	next := ts.createRun(t, `{"url": "https://example.com/feed.xml"}`)
	ts.waitForStatus(t, next, domain.RunCompleted)
}

func TestListRuns(t *testing.T) {
	ts := newTestStudio(t, 2, instantRunner(domain.PipelineResult{}))

	a := ts.createRun(t, `{"url": "https://example.com/feed.xml"}`)
	b := ts.createRun(t, `{"url": "https://www.youtube.com/watch?v=abc"}`)
	ts.waitForStatus(t, a, domain.RunCompleted)
	ts.waitForStatus(t, b, domain.RunCompleted)

	rec := ts.do(t, "GET", "/api/runs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var body struct {
		Runs []domain.Run `json:"runs"`
	}
	decodeBody(t, rec, &body)
	if len(body.Runs) != 2 {
		t.Fatalf("len(runs)=%d, want 2", len(body.Runs))
	}

	rec = ts.do(t, "GET", "/api/runs?limit=1", "")
	decodeBody(t, rec, &body)
	if len(body.Runs) != 1 {
		t.Fatalf("len(runs)=%d with limit=1", len(body.Runs))
	}
}

func TestGetRun_NotFound(t *testing.T) {
	ts := newTestStudio(t, 1, instantRunner(domain.PipelineResult{}))

	rec := ts.do(t, "GET", "/api/runs/does-not-exist", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", rec.Code)
	}
	if code := errorCode(t, rec); code != "not_found" {
		t.Fatalf("error=%q", code)
	}
}

func TestCancelRun(t *testing.T) {
	entered := make(chan struct{})
	runner := runnerFunc(func(ctx context.Context, cfg domain.PipelineConfig, onProgress pipeline.ProgressFunc) (domain.PipelineResult, error) {
		close(entered)
		<-ctx.Done()
		return domain.PipelineResult{}, ctx.Err()
	})
	ts := newTestStudio(t, 1, runner)

	runID := ts.createRun(t, `{"url": "https://example.com/feed.xml"}`)
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("runner never started")
	}

	rec := ts.do(t, "POST", "/api/runs/"+runID+"/cancel", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status=%d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Status string `json:"status"`
	}
	decodeBody(t, rec, &body)
	if body.Status != "canceled" {
		t.Fatalf("status=%q", body.Status)
	}
	ts.waitForStatus(t, runID, domain.RunCanceled)

	rec = ts.do(t, "POST", "/api/runs/"+runID+"/cancel", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second cancel status=%d, want 409", rec.Code)
	}
	if code := errorCode(t, rec); code != "not_cancelable" {
		t.Fatalf("error=%q", code)
	}

	rec = ts.do(t, "POST", "/api/runs/missing/cancel", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing cancel status=%d, want 404", rec.Code)
	}
}

func TestValidateURL(t *testing.T) {
	ts := newTestStudio(t, 1, instantRunner(domain.PipelineResult{}))

	cases := []struct {
		url       string
		wantValid bool
		wantType  string
	}{
		{"https://www.youtube.com/watch?v=abc123", true, "youtube"},
		{"https://example.com/feed.xml", true, "rss"},
		{"https://example.com/shows/daily", true, "podcast_page"},
		{"not a url", false, "invalid"},
	}
	for _, tc := range cases {
		rec := ts.do(t, "POST", "/api/validate-url", `{"url": "`+tc.url+`"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status=%d", tc.url, rec.Code)
		}
		var body struct {
			Valid bool   `json:"valid"`
			Type  string `json:"type"`
			Error string `json:"error"`
		}
		decodeBody(t, rec, &body)
		if body.Valid != tc.wantValid || body.Type != tc.wantType {
			t.Fatalf("%s: got (%v, %q), want (%v, %q)", tc.url, body.Valid, body.Type, tc.wantValid, tc.wantType)
		}
		if !tc.wantValid && body.Error == "" {
			t.Fatalf("%s: invalid classification should carry an error", tc.url)
		}
	}

	rec := ts.do(t, "POST", "/api/validate-url", `{"url":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status=%d, want 400", rec.Code)
	}
}

func TestDebugCLI(t *testing.T) {
	ts := newTestStudio(t, 1, instantRunner(domain.PipelineResult{}))

	runID := ts.createRun(t, `{"url": "https://example.com/feed.xml", "advanced": {"diarize": false}}`)
	ts.waitForStatus(t, runID, domain.RunCompleted)

	rec := ts.do(t, "GET", "/api/runs/"+runID+"/debug-cli", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Command string `json:"command"`
	}
	decodeBody(t, rec, &body)
	if !strings.HasPrefix(body.Command, "podx run ") {
		t.Fatalf("command=%q", body.Command)
	}
	if !strings.Contains(body.Command, `--rss-url "https://example.com/feed.xml"`) {
		t.Fatalf("command missing source url: %q", body.Command)
	}
	if !strings.Contains(body.Command, "--no-diarize") {
		t.Fatalf("command missing --no-diarize: %q", body.Command)
	}

	rec = ts.do(t, "GET", "/api/runs/missing/debug-cli", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing run status=%d, want 404", rec.Code)
	}
}
