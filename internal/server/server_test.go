package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aznory/listinglens/internal/assembler"
	"github.com/aznory/listinglens/internal/clients"
	"github.com/aznory/listinglens/internal/models"
	"github.com/aznory/listinglens/internal/pipeline"
	"github.com/aznory/listinglens/internal/plan"
	"github.com/aznory/listinglens/internal/reasoning"
	"github.com/aznory/listinglens/internal/usage"
)

func newTestServer(t *testing.T, planKey models.PlanKey) (*Server, *usage.Guard) {
	t.Helper()
	guard := usage.NewGuard(usage.NewMemoryStore(), &usage.StaticPlanResolver{Default: planKey})
	var engine *reasoning.Engine
	var synthesizer *plan.Synthesizer
	p := pipeline.New(guard, engine, synthesizer, nil, nil)
	return New(p, guard, nil), guard
}

func TestHandleAnalyzeScoreOnly(t *testing.T) {
	srv, _ := newTestServer(t, models.PlanFree)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body := `{"asin": "B000TEST01", "title": "高性能 防水 トレーニング グリップ 強化 素材 セット"}`
	resp, err := http.Post(ts.URL+"/analyze", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	var result assembler.CombinedResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.ASIN != "B000TEST01" {
		t.Fatalf("unexpected asin %s", result.ASIN)
	}
	if result.Score.Breakdown[models.CategoryTitle].Score != 10 {
		t.Fatalf("title score lost: %+v", result.Score.Breakdown)
	}
}

func TestHandleAnalyzeScoreEndpointSkipsLaterStages(t *testing.T) {
	srv, _ := newTestServer(t, models.PlanPro)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/analyze/score", "application/json", strings.NewReader(`{"asin": "B000TEST01"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	var result assembler.CombinedResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Reasoning != nil {
		t.Fatal("score endpoint must not carry a reasoning result")
	}
}

func TestHandleAnalyzeRejectsMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t, models.PlanFree)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/analyze", "application/json", strings.NewReader("{nope"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
}

func TestHandleAnalyzeRejectsMissingASIN(t *testing.T) {
	srv, _ := newTestServer(t, models.PlanFree)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/analyze", "application/json", strings.NewReader(`{"title": "no asin"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
}

func TestHandleAnalyzeLimitDenialReturns429(t *testing.T) {
	srv, guard := newTestServer(t, models.PlanFree)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := guard.Record(ctx, "acct-1", models.FeatureScore); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/analyze", strings.NewReader(`{"asin": "B000TEST01"}`))
	req.Header.Set("X-Account-ID", "acct-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", resp.StatusCode)
	}
	var denial models.GuardResult
	if err := json.NewDecoder(resp.Body).Decode(&denial); err != nil {
		t.Fatalf("decode denial: %v", err)
	}
	if denial.Code != "LIMIT_EXCEEDED" || denial.ResetAt == nil {
		t.Fatalf("unexpected denial body %+v", denial)
	}
}

func TestHandleAnalyzeReasoningDeniedReturns429(t *testing.T) {
	srv, _ := newTestServer(t, models.PlanFree)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	// FREE has no reasoning entitlement. The stage-specific route must
	// fail with the guard result, not degrade to a score-only 200.
	resp, err := http.Post(ts.URL+"/analyze/reasoning", "application/json", strings.NewReader(`{"asin": "B000TEST01"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", resp.StatusCode)
	}
	var denial models.GuardResult
	if err := json.NewDecoder(resp.Body).Decode(&denial); err != nil {
		t.Fatalf("decode denial: %v", err)
	}
	if denial.Code != "LIMIT_EXCEEDED" || denial.Feature != models.FeatureReasoning {
		t.Fatalf("unexpected denial body %+v", denial)
	}
}

type planChat struct{}

func (planChat) Complete(ctx context.Context, system, user string, opts clients.CompletionOptions) (string, error) {
	return `{"priority_actions": [{"section": "title", "category": "rule", "action": "add keywords", "estimated_rule_score_delta": 10}]}`, nil
}

type seededCache map[string][]byte

func (c seededCache) CacheAnalysisRun(ctx context.Context, asin string, payload []byte) error {
	c[asin] = payload
	return nil
}

func (c seededCache) CachedAnalysisRun(ctx context.Context, asin string) []byte {
	return c[asin]
}

func TestHandleImprovementPlanUsesStoredRun(t *testing.T) {
	rule := models.RuleScoreResult{
		Total: 20,
		Breakdown: models.ScoreBreakdown{
			models.CategoryTitle:     {Score: 10, Max: 10},
			models.CategoryMainImage: {Score: 10, Max: 10},
		},
	}
	reasoningResult := &models.ReasoningScoreResult{
		Total:     30,
		Breakdown: models.ReasoningBreakdown{MainImage: 10, SubImages: 20},
	}
	prior, err := assembler.Assemble("B000TEST01", rule, reasoningResult, nil, false, time.Now())
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	payload, err := json.Marshal(prior)
	if err != nil {
		t.Fatalf("marshal prior run: %v", err)
	}
	cache := seededCache{"B000TEST01": payload}

	guard := usage.NewGuard(usage.NewMemoryStore(), &usage.StaticPlanResolver{Default: models.PlanPro})
	p := pipeline.New(guard, nil, plan.NewSynthesizer(planChat{}), nil, cache)
	ts := httptest.NewServer(New(p, guard, nil).Handler())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/analyze/improvement-plan", strings.NewReader(`{"asin": "B000TEST01", "title": "高性能 防水 グリップ"}`))
	req.Header.Set("X-Account-ID", "acct-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	var result assembler.CombinedResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Plan == nil {
		t.Fatal("expected a synthesized plan")
	}
	if result.Reasoning == nil || result.Reasoning.Total != 30 {
		t.Fatal("stored reasoning result was lost")
	}

	status, err := guard.Status(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if used := status.Features[models.FeatureReasoning].Used; used != 0 {
		t.Fatalf("improvement plan must not spend reasoning quota, used %d", used)
	}
	if used := status.Features[models.FeatureImprove].Used; used != 1 {
		t.Fatalf("improve usage %d, want 1", used)
	}
}

func TestHandleUsageStatus(t *testing.T) {
	srv, guard := newTestServer(t, models.PlanSimple)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	if err := guard.Record(context.Background(), "acct-1", models.FeatureReasoning); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/usage/status", nil)
	req.Header.Set("X-Account-ID", "acct-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	var status models.UsageStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Plan != models.PlanSimple {
		t.Fatalf("plan %s, want SIMPLE", status.Plan)
	}
	if status.Features[models.FeatureReasoning].Used != 1 {
		t.Fatalf("expected 1 reasoning use: %+v", status.Features)
	}
}

func TestHandleRunsNotFound(t *testing.T) {
	srv, _ := newTestServer(t, models.PlanFree)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/runs/B000NOPE")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}
}

func TestHandleRunsFromHistory(t *testing.T) {
	guard := usage.NewGuard(usage.NewMemoryStore(), &usage.StaticPlanResolver{Default: models.PlanFree})
	p := pipeline.New(guard, nil, nil, nil, nil)
	history := func(ctx context.Context, asin string, limit int) ([]assembler.CombinedResult, error) {
		return []assembler.CombinedResult{{RunID: "abc", ASIN: asin}}, nil
	}
	srv := New(p, guard, history)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/runs/B000TEST01")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
	var runs []assembler.CombinedResult
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "abc" {
		t.Fatalf("unexpected runs %+v", runs)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, models.PlanFree)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
}
