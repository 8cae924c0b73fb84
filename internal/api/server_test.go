package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gajesh2007/discovery-archaeology-agent/internal/engine"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/extract"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/llm"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/models"
	"github.com/Gajesh2007/discovery-archaeology-agent/internal/store"
)

// apiTestExtractor returns a small fixed analysis for any invention.
type apiTestExtractor struct {
	calls atomic.Int32
	err   error
}

func (f *apiTestExtractor) AnalyzeInvention(_ context.Context, name string, _ []string) (*models.InventionAnalysis, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	year := 1928
	return &models.InventionAnalysis{
		InventionName: name,
		InventionYear: &year,
		Summary:       "summary of " + name,
		Discoveries: []models.Discovery{
			{ID: "d1", Title: "Contaminated dish", Description: "mould", DiscoveryType: models.DiscoveryAccidental, ActualOutcome: "o", Significance: "s"},
		},
		PatternsIdentified:  []models.PatternType{models.PatternAccidentToInnovation},
		PatternExplanations: map[models.PatternType]string{models.PatternAccidentToInnovation: "accident"},
		SerendipityMoments:  []string{"An accidental contamination"},
		Narrative:           "n",
		KeyLesson:           "k",
	}, nil
}

type apiTestComparer struct{}

func (apiTestComparer) ComparePattern(context.Context, []string, models.PatternType) models.PatternComparison {
	return models.FailedComparison()
}

func newTestServer(t *testing.T, ex extract.Analyzer, opts Options) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "api.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	eng := engine.New(st, ex, apiTestComparer{}, nil, logger)
	ts := httptest.NewServer(NewServer(eng, logger, opts).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, method, url, body, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, url, bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestRootAndHealth(t *testing.T) {
	ts := newTestServer(t, &apiTestExtractor{}, Options{AuthToken: "secret"})

	resp := doRequest(t, http.MethodGet, ts.URL+"/", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	root := decode[map[string]string](t, resp)
	assert.Equal(t, "running", root["status"])
	assert.Equal(t, Version, root["version"])

	resp = doRequest(t, http.MethodGet, ts.URL+"/health", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"status": "healthy"}, decode[map[string]string](t, resp))
}

func TestAnalyzeListGetDelete(t *testing.T) {
	ex := &apiTestExtractor{}
	ts := newTestServer(t, ex, Options{})

	resp := doRequest(t, http.MethodPost, ts.URL+"/inventions/analyze", `{"invention_name":"Penicillin"}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec := decode[models.InventionRecord](t, resp)
	assert.Equal(t, "Penicillin", rec.Analysis.InventionName)
	assert.NotZero(t, rec.ID)

	// Second call is served from the store.
	resp = doRequest(t, http.MethodPost, ts.URL+"/inventions/analyze", `{"invention_name":"Penicillin"}`, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	again := decode[models.InventionRecord](t, resp)
	assert.Equal(t, rec.ID, again.ID)
	assert.EqualValues(t, 1, ex.calls.Load())

	resp = doRequest(t, http.MethodGet, ts.URL+"/inventions", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]models.InventionSummary](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, "Penicillin", list[0].Name)

	resp = doRequest(t, http.MethodGet, fmt.Sprintf("%s/inventions/%d", ts.URL, rec.ID), "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[models.InventionRecord](t, resp)
	assert.Equal(t, rec.Analysis.Summary, got.Analysis.Summary)

	resp = doRequest(t, http.MethodDelete, fmt.Sprintf("%s/inventions/%d", ts.URL, rec.ID), "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, fmt.Sprintf("%s/inventions/%d", ts.URL, rec.ID), "", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, KindNotFound, body["kind"])
}

func TestAnalyze_BadRequests(t *testing.T) {
	ex := &apiTestExtractor{}
	ts := newTestServer(t, ex, Options{})

	resp := doRequest(t, http.MethodPost, ts.URL+"/inventions/analyze", `{not json`, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, KindValidation, decode[map[string]string](t, resp)["kind"])

	resp = doRequest(t, http.MethodPost, ts.URL+"/inventions/analyze", `{"invention_name":""}`, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	long := strings.Repeat("x", 201)
	resp = doRequest(t, http.MethodPost, ts.URL+"/inventions/analyze", `{"invention_name":"`+long+`"}`, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/inventions/abc", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Zero(t, ex.calls.Load())
}

func TestAnalyze_ExtractionFailure(t *testing.T) {
	ex := &apiTestExtractor{err: &extract.Error{Invention: "X", Err: errors.New("garbage")}}
	ts := newTestServer(t, ex, Options{})

	resp := doRequest(t, http.MethodPost, ts.URL+"/inventions/analyze", `{"invention_name":"X"}`, "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, KindExtraction, decode[map[string]string](t, resp)["kind"])
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t, &apiTestExtractor{}, Options{AuthToken: "secret"})

	resp := doRequest(t, http.MethodGet, ts.URL+"/inventions", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/inventions", "", "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, ts.URL+"/inventions", "", "secret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, &apiTestExtractor{}, Options{AnalyzeRPS: 0.001, AnalyzeBurst: 1})

	resp := doRequest(t, http.MethodPost, ts.URL+"/patterns/analyze", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, ts.URL+"/patterns/analyze", "", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Read routes are not limited.
	resp = doRequest(t, http.MethodGet, ts.URL+"/patterns", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPatternRoutes(t *testing.T) {
	ts := newTestServer(t, &apiTestExtractor{}, Options{})

	for _, name := range []string{"Penicillin", "Post-it Note"} {
		resp := doRequest(t, http.MethodPost, ts.URL+"/inventions/analyze", `{"invention_name":"`+name+`"}`, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := doRequest(t, http.MethodGet, ts.URL+"/patterns", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	aggs := decode[[]models.PatternAggregate](t, resp)
	require.Len(t, aggs, 1)
	assert.Equal(t, []string{"Penicillin", "Post-it Note"}, aggs[0].Inventions)

	resp = doRequest(t, http.MethodPost, ts.URL+"/patterns/analyze", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.PatternAggregate](t, resp), 1)

	resp = doRequest(t, http.MethodGet, ts.URL+"/patterns/themes", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	themes := decode[map[string][]string](t, resp)
	assert.Equal(t, []string{"Penicillin", "Post-it Note"}, themes["Accidental Discoveries"])

	resp = doRequest(t, http.MethodGet, ts.URL+"/patterns/timeline", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	timeline := decode[[]models.TimelineEntry](t, resp)
	require.Len(t, timeline, 2)
	assert.Equal(t, 1928, timeline[0].Year)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, &apiTestExtractor{}, Options{CORSOrigins: []string{"http://localhost:3000"}})

	req, err := http.NewRequestWithContext(context.Background(), http.MethodOptions, ts.URL+"/inventions", http.NoBody)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"validation", &models.ValidationError{Problems: []string{"x"}}, http.StatusUnprocessableEntity, KindValidation},
		{"not found", fmt.Errorf("get: %w", store.ErrNotFound), http.StatusNotFound, KindNotFound},
		{"store down", fmt.Errorf("ping: %w", store.ErrUnavailable), http.StatusServiceUnavailable, KindStoreUnavailable},
		{"breaker open", &extract.Error{Invention: "X", Err: fmt.Errorf("%w: too many failures", llm.ErrCircuitOpen)}, http.StatusServiceUnavailable, KindExtraction},
		{"extraction", &extract.Error{Invention: "X", Err: errors.New("bad")}, http.StatusBadGateway, KindExtraction},
		{"other", errors.New("boom"), http.StatusInternalServerError, KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, kind := Classify(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, kind)
		})
	}
}
