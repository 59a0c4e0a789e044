package image

import (
	"context"
	"net/http"
	"time"

	"thumbgen/internal/domain"
	"thumbgen/internal/infra"
	"thumbgen/internal/providers/dashscope"
)

// Pixel dimensions the wanx text-to-image models accept.
var wanxSizes = map[string]string{
	"16:9": "1280*720",
	"1:1":  "1024*1024",
	"9:16": "720*1280",
}

// WanxAdapter exposes DashScope's asynchronous wanx text-to-image API. The
// submit call only enqueues a task; results arrive through polling.
type WanxAdapter struct {
	client *dashscope.Client
	model  string
	logger infra.Logger
}

var _ PollingAdapter = (*WanxAdapter)(nil)

// NewWanxAdapter wraps a dashscope client for the given wanx model.
func NewWanxAdapter(client *dashscope.Client, model string, logger infra.Logger) *WanxAdapter {
	return &WanxAdapter{client: client, model: model, logger: logger}
}

func (a *WanxAdapter) Name() string { return "wanx" }

func (a *WanxAdapter) Configured() bool { return a.client.Configured() }

// Submit enqueues one task and returns its handle.
func (a *WanxAdapter) Submit(ctx context.Context, req Request) (*Submission, error) {
	size, ok := wanxSizes[req.Aspect]
	if !ok {
		size = wanxSizes["16:9"]
	}

	taskID, err := a.client.CreateTask(ctx, dashscope.TaskRequest{
		Model:    a.model,
		Prompt:   req.Prompt,
		Negative: req.Negative,
		Size:     size,
		Count:    clampQuantity(req.Quantity, 4),
		Seed:     req.Seed,
	})
	if err != nil {
		return nil, wrapDashScopeError(a.Name(), err)
	}

	a.logger.Debug().Str("task_id", taskID).Msg("wanx task submitted")
	return &Submission{Handle: &JobHandle{
		Provider:    a.Name(),
		TaskID:      taskID,
		SubmittedAt: time.Now().UTC(),
	}}, nil
}

// PollJob fetches the task state once. Transport failures come back as an
// error so the caller can decide whether to keep polling; a FAILED task is a
// terminal observation, not an error.
func (a *WanxAdapter) PollJob(ctx context.Context, handle JobHandle) (*PollResult, error) {
	status, err := a.client.TaskStatus(ctx, handle.TaskID)
	if err != nil {
		return nil, wrapDashScopeError(a.Name(), err)
	}

	switch status.Status {
	case dashscope.TaskPending:
		return &PollResult{Status: StatusQueued}, nil
	case dashscope.TaskRunning, dashscope.TaskUnknown:
		return &PollResult{Status: StatusRunning}, nil
	case dashscope.TaskCanceled:
		return &PollResult{Status: StatusCancelled}, nil
	case dashscope.TaskFailed:
		return &PollResult{
			Status: StatusFailed,
			Failure: &domain.ProviderError{
				Provider:   a.Name(),
				StatusCode: http.StatusUnprocessableEntity,
				Code:       status.Code,
				Message:    status.Message,
			},
		}, nil
	case dashscope.TaskSucceeded:
		out := &Output{}
		for _, result := range status.Results {
			if result.URL == "" {
				a.logger.Warn().
					Str("task_id", handle.TaskID).
					Str("code", result.Code).
					Str("message", result.Message).
					Msg("wanx result slot failed")
				continue
			}
			out.Parts = append(out.Parts, Part{URL: result.URL})
		}
		return &PollResult{Status: StatusSucceeded, Output: out}, nil
	default:
		return &PollResult{Status: StatusRunning}, nil
	}
}

// CancelJob asks the service to abandon the task. Best effort: the service
// rejects cancellation once work has started, and callers ignore the error.
func (a *WanxAdapter) CancelJob(ctx context.Context, handle JobHandle) error {
	if err := a.client.CancelTask(ctx, handle.TaskID); err != nil {
		return wrapDashScopeError(a.Name(), err)
	}
	return nil
}
