package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMetricsSummaryReportsDailyUsage(t *testing.T) {
	env := newTestApp(t)
	env.usage.generated = 3
	env.usage.failed = 1
	env.usage.images = 5

	rec := httptest.NewRecorder()
	env.app.MetricsSummary(rec, authedRequest(http.MethodGet, "/v1/metrics/summary", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Today struct {
			Generated    int `json:"generated"`
			Failed       int `json:"failed"`
			ImagesStored int `json:"images_stored"`
		} `json:"today"`
		Service map[string]any `json:"service"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Today.Generated != 3 || resp.Today.Failed != 1 || resp.Today.ImagesStored != 5 {
		t.Fatalf("unexpected usage block: %+v", resp.Today)
	}
	if len(resp.Service) == 0 {
		t.Fatalf("service metrics snapshot missing")
	}
}

func TestMetricsSummaryRequiresUser(t *testing.T) {
	env := newTestApp(t)

	rec := httptest.NewRecorder()
	env.app.MetricsSummary(rec, httptest.NewRequest(http.MethodGet, "/v1/metrics/summary", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestProvidersListIncludesDefault(t *testing.T) {
	env := newTestApp(t)

	rec := httptest.NewRecorder()
	env.app.ProvidersList(rec, authedRequest(http.MethodGet, "/v1/providers", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Providers []string `json:"providers"`
		Default   string   `json:"default"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Default != "paint" {
		t.Fatalf("default = %q, want paint", resp.Default)
	}
	found := false
	for _, name := range resp.Providers {
		if name == "paint" {
			found = true
		}
	}
	if !found {
		t.Fatalf("providers %v does not include the default", resp.Providers)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestApp(t)

	rec := httptest.NewRecorder()
	env.app.Health(rec, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	env.app.Ready(rec, httptest.NewRequest(http.MethodGet, "/v1/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, want 200", rec.Code)
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ready" {
		t.Fatalf("status = %q, want ready", resp.Status)
	}
}
