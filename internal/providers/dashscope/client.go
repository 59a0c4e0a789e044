// Package dashscope is a REST client for Alibaba Cloud Model Studio. It
// covers the synchronous qwen-image generation call and the asynchronous
// wanx text-to-image task API, including task polling and cancellation.
package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://dashscope-intl.aliyuncs.com/api/v1"

// Task lifecycle states as reported by the service.
const (
	TaskPending   = "PENDING"
	TaskRunning   = "RUNNING"
	TaskSucceeded = "SUCCEEDED"
	TaskFailed    = "FAILED"
	TaskCanceled  = "CANCELED"
	TaskUnknown   = "UNKNOWN"
)

// APIError is a non-2xx answer from DashScope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("dashscope: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("dashscope: status %d: %s", e.StatusCode, e.Message)
}

// Options configures the client.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// Client calls the DashScope REST API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient builds a client, applying defaults for anything unset.
func NewClient(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// ImageRequest is one synchronous qwen-image generation call.
type ImageRequest struct {
	Model        string
	Prompt       string
	Negative     string
	Size         string
	Count        int
	PromptExtend bool
}

type syncRequest struct {
	Model      string         `json:"model"`
	Input      syncInput      `json:"input"`
	Parameters syncParameters `json:"parameters"`
}

type syncInput struct {
	Messages []syncMessage `json:"messages"`
}

type syncMessage struct {
	Role    string        `json:"role"`
	Content []syncContent `json:"content"`
}

type syncContent struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

type syncParameters struct {
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Size           string `json:"size,omitempty"`
	N              int    `json:"n,omitempty"`
	PromptExtend   bool   `json:"prompt_extend"`
	Watermark      bool   `json:"watermark"`
}

type syncResponse struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content []syncContent `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	RequestID string `json:"request_id"`
}

// GenerateImage performs one synchronous generation call and returns the
// produced image URLs in response order.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) ([]string, error) {
	payload := syncRequest{
		Model: req.Model,
		Input: syncInput{
			Messages: []syncMessage{{
				Role:    "user",
				Content: []syncContent{{Text: req.Prompt}},
			}},
		},
		Parameters: syncParameters{
			NegativePrompt: req.Negative,
			Size:           req.Size,
			N:              req.Count,
			PromptExtend:   req.PromptExtend,
		},
	}

	var decoded syncResponse
	if err := c.invoke(ctx, http.MethodPost, "/services/aigc/multimodal-generation/generation", false, payload, &decoded); err != nil {
		return nil, err
	}

	var urls []string
	for _, choice := range decoded.Output.Choices {
		for _, content := range choice.Message.Content {
			if content.Image != "" {
				urls = append(urls, content.Image)
			}
		}
	}

	return urls, nil
}

// TaskRequest is one asynchronous text-to-image task submission.
type TaskRequest struct {
	Model    string
	Prompt   string
	Negative string
	Size     string
	Count    int
	Seed     int64
}

type taskCreateRequest struct {
	Model      string         `json:"model"`
	Input      taskInput      `json:"input"`
	Parameters taskParameters `json:"parameters"`
}

type taskInput struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

type taskParameters struct {
	Size string `json:"size,omitempty"`
	N    int    `json:"n,omitempty"`
	Seed int64  `json:"seed,omitempty"`
}

type taskCreateResponse struct {
	Output struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
	} `json:"output"`
	RequestID string `json:"request_id"`
}

// CreateTask submits an asynchronous generation task and returns its id.
func (c *Client) CreateTask(ctx context.Context, req TaskRequest) (string, error) {
	payload := taskCreateRequest{
		Model: req.Model,
		Input: taskInput{Prompt: req.Prompt, NegativePrompt: req.Negative},
		Parameters: taskParameters{
			Size: req.Size,
			N:    req.Count,
			Seed: req.Seed,
		},
	}

	var decoded taskCreateResponse
	if err := c.invoke(ctx, http.MethodPost, "/services/aigc/text2image/image-synthesis", true, payload, &decoded); err != nil {
		return "", err
	}
	if decoded.Output.TaskID == "" {
		return "", fmt.Errorf("dashscope: task submission returned no task id (request %s)", decoded.RequestID)
	}

	return decoded.Output.TaskID, nil
}

// TaskResult is one output slot of a finished task. Either URL is set, or
// Code and Message explain why this slot failed.
type TaskResult struct {
	URL     string `json:"url"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TaskStatusResponse is one poll observation.
type TaskStatusResponse struct {
	TaskID  string
	Status  string
	Results []TaskResult
	Code    string
	Message string
}

type taskQueryResponse struct {
	Output struct {
		TaskID     string       `json:"task_id"`
		TaskStatus string       `json:"task_status"`
		Results    []TaskResult `json:"results"`
		Code       string       `json:"code"`
		Message    string       `json:"message"`
	} `json:"output"`
	RequestID string `json:"request_id"`
}

// TaskStatus fetches the current state of a task.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*TaskStatusResponse, error) {
	var decoded taskQueryResponse
	if err := c.invoke(ctx, http.MethodGet, "/tasks/"+taskID, false, nil, &decoded); err != nil {
		return nil, err
	}

	status := decoded.Output.TaskStatus
	if status == "" {
		status = TaskUnknown
	}

	return &TaskStatusResponse{
		TaskID:  decoded.Output.TaskID,
		Status:  status,
		Results: decoded.Output.Results,
		Code:    decoded.Output.Code,
		Message: decoded.Output.Message,
	}, nil
}

// CancelTask asks the service to abandon a task. Only queued tasks can be
// cancelled; the service rejects the call once work has started.
func (c *Client) CancelTask(ctx context.Context, taskID string) error {
	return c.invoke(ctx, http.MethodPost, "/tasks/"+taskID+"/cancel", false, nil, nil)
}

func (c *Client) invoke(ctx context.Context, method, path string, async bool, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("dashscope: marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("dashscope: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if async {
		req.Header.Set("X-DashScope-Async", "enable")
	}

	c.logger.Debug().Str("method", method).Str("path", path).Msg("calling dashscope")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dashscope: call %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("dashscope: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(raw)}
		var parsed struct {
			Code      string `json:"code"`
			Message   string `json:"message"`
			RequestID string `json:"request_id"`
		}
		if json.Unmarshal(raw, &parsed) == nil && parsed.Message != "" {
			apiErr.Code = parsed.Code
			apiErr.Message = parsed.Message
			apiErr.RequestID = parsed.RequestID
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("dashscope: decode response: %w", err)
	}

	return nil
}
