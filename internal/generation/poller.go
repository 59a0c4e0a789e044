package generation

import (
	"context"
	"errors"
	"net/http"
	"time"

	"thumbgen/internal/domain"
	"thumbgen/internal/infra"
	"thumbgen/internal/providers/image"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultPollTimeout  = 120 * time.Second
)

// Poller drives an asynchronous provider job to a terminal state. It checks
// at a fixed interval, without backoff, until the job finishes or the
// wall-clock budget measured from submission runs out. Transient poll
// failures do not end the job; the deadline is the only thing that does.
type Poller struct {
	interval time.Duration
	timeout  time.Duration
	logger   infra.Logger
}

// NewPoller builds a poller. Non-positive interval or timeout fall back to
// the defaults.
func NewPoller(interval, timeout time.Duration, logger infra.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}
	return &Poller{interval: interval, timeout: timeout, logger: logger}
}

// Wait polls the job until it succeeds, fails, is cancelled remotely, or the
// deadline passes. On deadline or caller cancellation it fires exactly one
// best-effort cancel for the remote job and does not wait for its answer.
func (p *Poller) Wait(ctx context.Context, adapter image.PollingAdapter, handle image.JobHandle) (*image.Output, error) {
	deadline := handle.SubmittedAt.Add(p.timeout)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	attempts := 0
	for {
		if time.Now().After(deadline) {
			p.logger.Warn().
				Str("provider", handle.Provider).
				Str("task_id", handle.TaskID).
				Int("attempts", attempts).
				Msg("job exceeded poll budget")
			p.cancelAsync(adapter, handle)
			return nil, &domain.TimeoutError{
				Provider: handle.Provider,
				JobID:    handle.TaskID,
				Elapsed:  time.Since(handle.SubmittedAt),
			}
		}

		attempts++
		result, err := adapter.PollJob(ctx, handle)
		switch {
		case err != nil && ctx.Err() != nil:
			p.cancelAsync(adapter, handle)
			return nil, ctx.Err()
		case err != nil:
			var provErr *domain.ProviderError
			if errors.As(err, &provErr) && !provErr.Retryable() {
				return nil, err
			}
			p.logger.Warn().Err(err).
				Str("task_id", handle.TaskID).
				Int("attempt", attempts).
				Msg("poll attempt failed; will retry")
		default:
			switch result.Status {
			case image.StatusSucceeded:
				p.logger.Debug().
					Str("task_id", handle.TaskID).
					Int("attempts", attempts).
					Msg("job succeeded")
				return result.Output, nil
			case image.StatusFailed:
				if result.Failure != nil {
					return nil, result.Failure
				}
				return nil, &domain.ProviderError{
					Provider:   handle.Provider,
					StatusCode: http.StatusUnprocessableEntity,
					Message:    "job failed without detail",
				}
			case image.StatusCancelled:
				return nil, &domain.ProviderError{
					Provider:   handle.Provider,
					StatusCode: http.StatusConflict,
					Message:    "job was cancelled upstream",
				}
			}
		}

		select {
		case <-ctx.Done():
			p.cancelAsync(adapter, handle)
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// cancelAsync fires one fire-and-forget cancel. The job is already being
// abandoned; its outcome only matters for provider-side quota hygiene.
func (p *Poller) cancelAsync(adapter image.PollingAdapter, handle image.JobHandle) {
	logger := p.logger
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := adapter.CancelJob(ctx, handle); err != nil {
			logger.Debug().Err(err).Str("task_id", handle.TaskID).Msg("best-effort cancel failed")
		}
	}()
}
