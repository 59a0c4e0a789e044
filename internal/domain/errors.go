package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidPrompt         = errors.New("invalid prompt")
	ErrEmptyResult           = errors.New("no images produced")
	ErrUnknownProvider       = errors.New("unknown provider")
	ErrProviderNotConfigured = errors.New("provider not configured")
)

// ProviderError reports a non-2xx or malformed response from a provider's
// submission or polling endpoint. StatusCode carries the provider's HTTP
// status, or the closest equivalent when the provider signals errors in-band.
type ProviderError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Code)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Provider, e.StatusCode)
}

// Retryable reports whether resubmitting the same request could succeed.
// Auth and validation rejections (4xx) are terminal; transport failures,
// rate limits and 5xx are not.
func (e *ProviderError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	if e.StatusCode == 429 {
		return true
	}
	return e.StatusCode >= 500
}

// TimeoutError indicates the poll deadline elapsed before a provider job
// reached a terminal state. Distinct from ProviderError so callers can
// re-submit with a longer budget instead of treating the provider as broken.
type TimeoutError struct {
	Provider string
	JobID    string
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: job %s timed out after %s", e.Provider, e.JobID, e.Elapsed.Round(time.Millisecond))
}
