package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
)

type responseStub struct {
	status      int
	body        []byte
	contentType string
}

func (s responseStub) toResponse() *http.Response {
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(bytes.NewReader(s.body)),
		Header:     http.Header{"Content-Type": []string{s.contentType}},
	}
}

type captureTransport struct {
	responses   map[string]responseStub
	lastBody    []byte
	lastHeaders http.Header
}

func newCaptureTransport() *captureTransport {
	return &captureTransport{responses: map[string]responseStub{}}
}

func (t *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	key := req.URL.Path
	if req.Method == http.MethodGet {
		key = req.URL.String()
	}
	t.lastHeaders = req.Header.Clone()
	if req.Body != nil {
		t.lastBody, _ = io.ReadAll(req.Body)
	}

	stub, ok := t.responses[key]
	if !ok {
		return nil, fmt.Errorf("unexpected request: %s %s", req.Method, req.URL)
	}
	return stub.toResponse(), nil
}

func (t *captureTransport) setJSONResponse(key string, status int, payload any) {
	body, _ := json.Marshal(payload)
	t.responses[key] = responseStub{status: status, body: body, contentType: "application/json"}
}

func newTestClient(transport *captureTransport) *Client {
	return NewClient(Options{
		APIKey:     "sk-test",
		BaseURL:    "https://dashscope.test/api/v1",
		HTTPClient: &http.Client{Transport: transport},
	})
}

func TestGenerateImageReturnsURLs(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSONResponse("/api/v1/services/aigc/multimodal-generation/generation", http.StatusOK, map[string]any{
		"output": map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": []map[string]any{
					{"image": "https://results.test/one.png"},
					{"image": "https://results.test/two.png"},
				}}},
			},
		},
		"request_id": "req-1",
	})

	client := newTestClient(transport)
	urls, err := client.GenerateImage(context.Background(), ImageRequest{
		Model:  "qwen-image-plus",
		Prompt: "neon skyline",
		Size:   "1664*928",
		Count:  2,
	})
	if err != nil {
		t.Fatalf("GenerateImage returned error: %v", err)
	}

	if len(urls) != 2 || urls[0] != "https://results.test/one.png" || urls[1] != "https://results.test/two.png" {
		t.Fatalf("unexpected urls: %#v", urls)
	}

	if got := transport.lastHeaders.Get("Authorization"); got != "Bearer sk-test" {
		t.Fatalf("unexpected authorization header: %q", got)
	}
	if !bytes.Contains(transport.lastBody, []byte(`"size":"1664*928"`)) {
		t.Fatalf("expected size in request body: %s", transport.lastBody)
	}
}

func TestCreateTaskSetsAsyncHeader(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSONResponse("/api/v1/services/aigc/text2image/image-synthesis", http.StatusOK, map[string]any{
		"output":     map[string]any{"task_id": "task-42", "task_status": "PENDING"},
		"request_id": "req-2",
	})

	client := newTestClient(transport)
	taskID, err := client.CreateTask(context.Background(), TaskRequest{
		Model:  "wanx2.1-t2i-turbo",
		Prompt: "mountain sunrise",
		Size:   "1280*720",
		Count:  2,
	})
	if err != nil {
		t.Fatalf("CreateTask returned error: %v", err)
	}

	if taskID != "task-42" {
		t.Fatalf("expected task-42, got %s", taskID)
	}
	if got := transport.lastHeaders.Get("X-DashScope-Async"); got != "enable" {
		t.Fatalf("expected async header, got %q", got)
	}
}

func TestTaskStatusParsesResults(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSONResponse("https://dashscope.test/api/v1/tasks/task-42", http.StatusOK, map[string]any{
		"output": map[string]any{
			"task_id":     "task-42",
			"task_status": "SUCCEEDED",
			"results": []map[string]any{
				{"url": "https://results.test/a.png"},
				{"code": "InternalError", "message": "slot failed"},
			},
		},
	})

	client := newTestClient(transport)
	status, err := client.TaskStatus(context.Background(), "task-42")
	if err != nil {
		t.Fatalf("TaskStatus returned error: %v", err)
	}

	if status.Status != TaskSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s", status.Status)
	}
	if len(status.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(status.Results))
	}
	if status.Results[0].URL != "https://results.test/a.png" {
		t.Fatalf("unexpected first result: %+v", status.Results[0])
	}
	if status.Results[1].Code != "InternalError" {
		t.Fatalf("unexpected second result: %+v", status.Results[1])
	}
}

func TestCancelTask(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSONResponse("/api/v1/tasks/task-42/cancel", http.StatusOK, map[string]any{"request_id": "req-3"})

	client := newTestClient(transport)
	if err := client.CancelTask(context.Background(), "task-42"); err != nil {
		t.Fatalf("CancelTask returned error: %v", err)
	}
}

func TestInvokeAPIError(t *testing.T) {
	transport := newCaptureTransport()
	transport.setJSONResponse("/api/v1/services/aigc/text2image/image-synthesis", http.StatusTooManyRequests, map[string]any{
		"code":       "Throttling.RateQuota",
		"message":    "Requests throttled due to rate limits",
		"request_id": "req-4",
	})

	client := newTestClient(transport)
	_, err := client.CreateTask(context.Background(), TaskRequest{Model: "wanx2.1-t2i-turbo", Prompt: "x"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", apiErr.StatusCode)
	}
	if apiErr.Code != "Throttling.RateQuota" {
		t.Fatalf("unexpected code: %s", apiErr.Code)
	}
}
