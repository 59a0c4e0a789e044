package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPromptEnhanceRewritesPrompt(t *testing.T) {
	env := newTestApp(t)

	rec := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/v1/prompts/enhance", strings.NewReader(`{"prompt":"cooking pasta at home"}`))
	env.app.PromptEnhance(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Prompt   string   `json:"prompt"`
		Negative string   `json:"negative"`
		Keywords []string `json:"keywords"`
		Provider string   `json:"provider"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.HasPrefix(resp.Prompt, "cooking pasta at home") {
		t.Fatalf("prompt = %q, want it to keep the subject", resp.Prompt)
	}
	if !strings.Contains(resp.Prompt, "bold composition") {
		t.Fatalf("prompt = %q, want composition guidance added", resp.Prompt)
	}
	if resp.Negative == "" {
		t.Fatalf("negative prompt missing")
	}
	if resp.Provider != "static" {
		t.Fatalf("provider = %q, want static", resp.Provider)
	}
}

func TestPromptEnhanceRequiresUser(t *testing.T) {
	env := newTestApp(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/prompts/enhance", strings.NewReader(`{"prompt":"x"}`))
	env.app.PromptEnhance(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestPromptEnhanceRejectsBlankPrompt(t *testing.T) {
	env := newTestApp(t)

	rec := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/v1/prompts/enhance", strings.NewReader(`{"prompt":" "}`))
	env.app.PromptEnhance(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if code, _ := decodeError(t, rec.Body); code != "INVALID_PROMPT" {
		t.Fatalf("code = %q, want INVALID_PROMPT", code)
	}
}

func TestPromptIdeasListsSuggestions(t *testing.T) {
	env := newTestApp(t)

	rec := httptest.NewRecorder()
	env.app.PromptIdeas(rec, authedRequest(http.MethodGet, "/v1/prompts/ideas", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Items []struct {
			Prompt string `json:"prompt"`
		} `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) == 0 {
		t.Fatalf("no prompt ideas returned")
	}
	for i, item := range resp.Items {
		if item.Prompt == "" {
			t.Fatalf("idea %d has an empty prompt", i)
		}
	}
}
