package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
)

type responseStub struct {
	status int
	body   []byte
}

func (s responseStub) toResponse() *http.Response {
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(bytes.NewReader(s.body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

type captureTransport struct {
	responses map[string]responseStub
	lastBody  []byte
}

func newCaptureTransport() *captureTransport {
	return &captureTransport{responses: map[string]responseStub{}}
}

func (t *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		t.lastBody, _ = io.ReadAll(req.Body)
	}
	stub, ok := t.responses[req.URL.Path]
	if !ok {
		return nil, fmt.Errorf("unexpected request: %s %s", req.Method, req.URL)
	}
	return stub.toResponse(), nil
}

func (t *captureTransport) setChatResponse(status int, content string) {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	t.responses["/v1/chat/completions"] = responseStub{status: status, body: body}
}

func newTestEnhancer(t *testing.T, transport *captureTransport) *OpenAIEnhancer {
	t.Helper()
	enhancer, err := NewOpenAIEnhancer(OpenAIOptions{
		APIKey:     "sk-test",
		Model:      "gpt-4o-mini",
		BaseURL:    "https://openai.test/v1",
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("NewOpenAIEnhancer returned error: %v", err)
	}
	return enhancer
}

func TestOpenAIEnhanceParsesPayload(t *testing.T) {
	transport := newCaptureTransport()
	transport.setChatResponse(http.StatusOK, `{"prompt":"red sports car at golden hour, dramatic rim lighting","negative":"blurry, text","keywords":["car","cinematic"],"metadata":{"locale":"en-US"}}`)

	res, err := newTestEnhancer(t, transport).Enhance(context.Background(), EnhanceRequest{Prompt: "red car", Locale: "en-US"})
	if err != nil {
		t.Fatalf("Enhance returned error: %v", err)
	}

	if res.Provider != "openai" {
		t.Fatalf("expected openai provider, got %s", res.Provider)
	}
	if !strings.Contains(res.Prompt, "red sports car") {
		t.Fatalf("unexpected prompt: %q", res.Prompt)
	}
	if res.Negative != "blurry, text" {
		t.Fatalf("unexpected negative: %q", res.Negative)
	}
	if len(res.Keywords) != 2 {
		t.Fatalf("unexpected keywords: %v", res.Keywords)
	}

	if !bytes.Contains(transport.lastBody, []byte(`"response_format":{"type":"json_object"}`)) {
		t.Fatalf("expected json_object response format in request: %s", transport.lastBody)
	}
}

func TestOpenAIEnhanceParsesFencedJSON(t *testing.T) {
	transport := newCaptureTransport()
	transport.setChatResponse(http.StatusOK, "```json\n{\"prompt\":\"neon skyline thumbnail\"}\n```")

	res, err := newTestEnhancer(t, transport).Enhance(context.Background(), EnhanceRequest{Prompt: "skyline"})
	if err != nil {
		t.Fatalf("Enhance returned error: %v", err)
	}
	if res.Prompt != "neon skyline thumbnail" {
		t.Fatalf("unexpected prompt: %q", res.Prompt)
	}
}

func TestOpenAIEnhanceFallsBackOnHTTPError(t *testing.T) {
	transport := newCaptureTransport()
	transport.setChatResponse(http.StatusInternalServerError, "")

	var fallbackReason string
	enhancer, err := NewOpenAIEnhancer(OpenAIOptions{
		APIKey:     "sk-test",
		BaseURL:    "https://openai.test/v1",
		HTTPClient: &http.Client{Transport: transport},
		Fallback:   NewStaticEnhancer(),
		OnFallback: func(reason string, _ error) { fallbackReason = reason },
	})
	if err != nil {
		t.Fatalf("NewOpenAIEnhancer returned error: %v", err)
	}

	res, err := enhancer.Enhance(context.Background(), EnhanceRequest{Prompt: "red car", Locale: "en-US"})
	if err != nil {
		t.Fatalf("fallback must not error: %v", err)
	}

	if res.Provider != "static" {
		t.Fatalf("expected static fallback, got %s", res.Provider)
	}
	if res.Metadata["fallback_reason"] != "http_500" {
		t.Fatalf("expected fallback_reason http_500, got %q", res.Metadata["fallback_reason"])
	}
	if fallbackReason != "http_500" {
		t.Fatalf("expected OnFallback http_500, got %q", fallbackReason)
	}
	if !strings.Contains(res.Prompt, "red car") {
		t.Fatalf("fallback must keep the user's subject: %q", res.Prompt)
	}
}

func TestOpenAIEnhancerRequiresKey(t *testing.T) {
	if _, err := NewOpenAIEnhancer(OpenAIOptions{}); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestNormalizeOpenAIModel(t *testing.T) {
	cases := []struct {
		in, want, reason string
	}{
		{"gpt-4o-mini", "gpt-4o-mini", ""},
		{"GPT4o-Mini", "gpt-4o-mini", "alias"},
		{"", "gpt-4o-mini", ""},
		{"some-future-model", "gpt-4o-mini", "defaulted"},
	}
	for _, tc := range cases {
		got, reason := normalizeOpenAIModel(tc.in)
		if got != tc.want || reason != tc.reason {
			t.Fatalf("normalizeOpenAIModel(%q) = (%q, %q), want (%q, %q)", tc.in, got, reason, tc.want, tc.reason)
		}
	}
}

func TestStaticEnhancer(t *testing.T) {
	res, err := NewStaticEnhancer().Enhance(context.Background(), EnhanceRequest{Prompt: "mountain sunrise timelapse", Locale: "en-US"})
	if err != nil {
		t.Fatalf("Enhance returned error: %v", err)
	}

	if !strings.HasPrefix(res.Prompt, "mountain sunrise timelapse") {
		t.Fatalf("static enhancer must keep the subject first: %q", res.Prompt)
	}
	if len(res.Keywords) == 0 || res.Keywords[0] != "Mountain" {
		t.Fatalf("expected title-cased keywords, got %v", res.Keywords)
	}

	ideas, err := NewStaticEnhancer().Suggest(context.Background(), "en-US")
	if err != nil {
		t.Fatalf("Suggest returned error: %v", err)
	}
	if len(ideas) != 3 {
		t.Fatalf("expected 3 suggestions, got %d", len(ideas))
	}
}
