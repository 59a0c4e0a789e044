package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"thumbgen/internal/domain"
	"thumbgen/internal/providers/image"
)

type pollStep struct {
	result *image.PollResult
	err    error
}

func runningStep() pollStep {
	return pollStep{result: &image.PollResult{Status: image.StatusRunning}}
}

func succeededStep(parts ...image.Part) pollStep {
	return pollStep{result: &image.PollResult{Status: image.StatusSucceeded, Output: &image.Output{Parts: parts}}}
}

// jobAdapter is a scripted task-style provider. Every poll consumes the next
// step; the final step repeats once the script runs out.
type jobAdapter struct {
	name  string
	steps []pollStep

	submitted atomic.Int32
	polls     atomic.Int32
	cancels   atomic.Int32

	mu        sync.Mutex
	polledIDs []string
}

var _ image.PollingAdapter = (*jobAdapter)(nil)

func (a *jobAdapter) Name() string {
	if a.name == "" {
		return "taskfake"
	}
	return a.name
}

func (a *jobAdapter) Configured() bool { return true }

func (a *jobAdapter) Submit(ctx context.Context, req image.Request) (*image.Submission, error) {
	n := a.submitted.Add(1)
	return &image.Submission{Handle: &image.JobHandle{
		Provider:    a.Name(),
		TaskID:      fmt.Sprintf("task-%d", n),
		SubmittedAt: time.Now(),
	}}, nil
}

func (a *jobAdapter) PollJob(ctx context.Context, handle image.JobHandle) (*image.PollResult, error) {
	a.mu.Lock()
	a.polledIDs = append(a.polledIDs, handle.TaskID)
	a.mu.Unlock()

	idx := int(a.polls.Add(1)) - 1
	if len(a.steps) == 0 {
		return &image.PollResult{Status: image.StatusRunning}, nil
	}
	if idx >= len(a.steps) {
		idx = len(a.steps) - 1
	}
	return a.steps[idx].result, a.steps[idx].err
}

func (a *jobAdapter) CancelJob(ctx context.Context, handle image.JobHandle) error {
	a.cancels.Add(1)
	return nil
}

// waitForCancels blocks until the adapter has seen want cancel calls, then
// verifies no extra ones trail in.
func waitForCancels(t *testing.T, adapter *jobAdapter, want int32) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for adapter.cancels.Load() < want {
		if time.Now().After(deadline) {
			t.Fatalf("cancel count stuck at %d, want %d", adapter.cancels.Load(), want)
		}
		time.Sleep(time.Millisecond)
	}

	time.Sleep(20 * time.Millisecond)
	if got := adapter.cancels.Load(); got != want {
		t.Fatalf("cancel fired %d times, want exactly %d", got, want)
	}
}

func newTestPoller(interval, timeout time.Duration) *Poller {
	return NewPoller(interval, timeout, zerolog.New(io.Discard))
}

func TestWaitReturnsOutputWhenJobSucceeds(t *testing.T) {
	adapter := &jobAdapter{steps: []pollStep{
		runningStep(),
		runningStep(),
		succeededStep(image.Part{URL: "https://img.test/a"}, image.Part{URL: "https://img.test/b"}),
	}}
	p := newTestPoller(2*time.Millisecond, time.Second)

	out, err := p.Wait(context.Background(), adapter, image.JobHandle{Provider: "taskfake", TaskID: "task-1", SubmittedAt: time.Now()})
	if err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if len(out.Parts) != 2 || out.Parts[0].URL != "https://img.test/a" || out.Parts[1].URL != "https://img.test/b" {
		t.Fatalf("unexpected output: %+v", out)
	}
	if got := adapter.polls.Load(); got != 3 {
		t.Fatalf("expected 3 polls, got %d", got)
	}
	if adapter.cancels.Load() != 0 {
		t.Fatal("successful job must not be cancelled")
	}
}

func TestWaitTimesOutAndCancelsExactlyOnce(t *testing.T) {
	adapter := &jobAdapter{steps: []pollStep{runningStep()}}
	p := newTestPoller(2*time.Millisecond, 25*time.Millisecond)

	_, err := p.Wait(context.Background(), adapter, image.JobHandle{Provider: "taskfake", TaskID: "task-9", SubmittedAt: time.Now()})

	var timeoutErr *domain.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if timeoutErr.Provider != "taskfake" || timeoutErr.JobID != "task-9" {
		t.Fatalf("timeout error misses job identity: %+v", timeoutErr)
	}
	if timeoutErr.Elapsed < 25*time.Millisecond {
		t.Fatalf("elapsed %s shorter than the budget", timeoutErr.Elapsed)
	}
	waitForCancels(t, adapter, 1)
}

func TestWaitMeasuresBudgetFromSubmission(t *testing.T) {
	adapter := &jobAdapter{}
	p := newTestPoller(2*time.Millisecond, 50*time.Millisecond)

	handle := image.JobHandle{Provider: "taskfake", TaskID: "task-3", SubmittedAt: time.Now().Add(-time.Minute)}
	_, err := p.Wait(context.Background(), adapter, handle)

	var timeoutErr *domain.TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if adapter.polls.Load() != 0 {
		t.Fatalf("job past its budget still polled %d times", adapter.polls.Load())
	}
	waitForCancels(t, adapter, 1)
}

func TestWaitRetriesTransientPollFailures(t *testing.T) {
	adapter := &jobAdapter{steps: []pollStep{
		{err: &domain.ProviderError{Provider: "taskfake", StatusCode: http.StatusServiceUnavailable, Message: "unavailable"}},
		{err: errors.New("connection reset")},
		succeededStep(image.Part{Inline: inlineB64("done")}),
	}}
	p := newTestPoller(2*time.Millisecond, time.Second)

	out, err := p.Wait(context.Background(), adapter, image.JobHandle{SubmittedAt: time.Now()})
	if err != nil {
		t.Fatalf("transient poll failures must not end the job: %v", err)
	}
	if len(out.Parts) != 1 {
		t.Fatalf("unexpected output: %+v", out)
	}
	if got := adapter.polls.Load(); got != 3 {
		t.Fatalf("expected 3 polls, got %d", got)
	}
}

func TestWaitStopsOnTerminalPollError(t *testing.T) {
	adapter := &jobAdapter{steps: []pollStep{
		{err: &domain.ProviderError{Provider: "taskfake", StatusCode: http.StatusBadRequest, Message: "unknown task"}},
	}}
	p := newTestPoller(2*time.Millisecond, time.Second)

	_, err := p.Wait(context.Background(), adapter, image.JobHandle{SubmittedAt: time.Now()})

	var provErr *domain.ProviderError
	if !errors.As(err, &provErr) || provErr.Retryable() {
		t.Fatalf("expected terminal provider error, got %v", err)
	}
	if adapter.polls.Load() != 1 {
		t.Fatalf("terminal error must stop polling, saw %d polls", adapter.polls.Load())
	}
}

func TestWaitSurfacesJobFailure(t *testing.T) {
	failure := &domain.ProviderError{Provider: "taskfake", StatusCode: http.StatusUnprocessableEntity, Code: "DataInspection", Message: "prompt rejected"}
	adapter := &jobAdapter{steps: []pollStep{
		{result: &image.PollResult{Status: image.StatusFailed, Failure: failure}},
	}}
	p := newTestPoller(2*time.Millisecond, time.Second)

	_, err := p.Wait(context.Background(), adapter, image.JobHandle{SubmittedAt: time.Now()})
	if !errors.Is(err, failure) {
		t.Fatalf("expected the provider failure, got %v", err)
	}
	if adapter.cancels.Load() != 0 {
		t.Fatal("failed job needs no cancel")
	}
}

func TestWaitReportsFailureWithoutDetail(t *testing.T) {
	adapter := &jobAdapter{steps: []pollStep{
		{result: &image.PollResult{Status: image.StatusFailed}},
	}}
	p := newTestPoller(2*time.Millisecond, time.Second)

	_, err := p.Wait(context.Background(), adapter, image.JobHandle{Provider: "taskfake", SubmittedAt: time.Now()})

	var provErr *domain.ProviderError
	if !errors.As(err, &provErr) || provErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 provider error, got %v", err)
	}
}

func TestWaitReportsUpstreamCancellation(t *testing.T) {
	adapter := &jobAdapter{steps: []pollStep{
		{result: &image.PollResult{Status: image.StatusCancelled}},
	}}
	p := newTestPoller(2*time.Millisecond, time.Second)

	_, err := p.Wait(context.Background(), adapter, image.JobHandle{Provider: "taskfake", SubmittedAt: time.Now()})

	var provErr *domain.ProviderError
	if !errors.As(err, &provErr) || provErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict provider error, got %v", err)
	}
}

func TestWaitCancelsOnceWhenCallerGivesUp(t *testing.T) {
	adapter := &jobAdapter{steps: []pollStep{runningStep()}}
	p := newTestPoller(5*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()

	_, err := p.Wait(ctx, adapter, image.JobHandle{Provider: "taskfake", TaskID: "task-4", SubmittedAt: time.Now()})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	waitForCancels(t, adapter, 1)
}
