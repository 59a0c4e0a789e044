// Package image defines the canonical types every image provider adapter
// speaks, plus the registry that picks an adapter per request.
//
// Providers fall into two families. Chat-style APIs answer the submit call
// with image payloads inline; task-style APIs answer with a job handle that
// must be polled until the work finishes. Submit reflects that split by
// returning exactly one of Output or Handle.
package image

import (
	"context"
	"time"
)

// Part is one ordered element of a provider response. Exactly one of Inline
// or URL is set: Inline carries a base64 payload (optionally a full data:
// URI), URL points at a remote image to download. MIME is the provider's
// declared type and may be empty.
type Part struct {
	Inline string
	URL    string
	MIME   string
}

// Output is an ordered list of image parts. Order is preserved end to end so
// stored results line up with what the provider produced. RevisedPrompt is
// set by providers that rewrite the prompt before rendering.
type Output struct {
	Parts         []Part
	RevisedPrompt string
}

// JobHandle identifies an asynchronous provider job.
type JobHandle struct {
	Provider    string
	TaskID      string
	SubmittedAt time.Time
}

// Submission is the result of Submit. Exactly one field is set: Output when
// the provider answered inline, Handle when the work continues remotely.
type Submission struct {
	Output *Output
	Handle *JobHandle
}

// JobStatus is the lifecycle state a task-style provider reports.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status ends the job.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// PollResult is one poll observation. Output is set only on success; Failure
// carries the provider's reason when the job ended in failure.
type PollResult struct {
	Status  JobStatus
	Output  *Output
	Failure error
}

// Reference is an optional input image guiding generation. Data always holds
// the fetched bytes; URL is a public location for providers that take
// references by link instead.
type Reference struct {
	Data []byte
	MIME string
	URL  string
}

// Request describes one generation job in provider-neutral terms.
type Request struct {
	Prompt    string
	Negative  string
	Quantity  int
	Aspect    string
	Seed      int64
	Reference *Reference
}

// Adapter is the surface every provider implements. Submit performs exactly
// one outbound call; it never retries.
type Adapter interface {
	Name() string
	Configured() bool
	Submit(ctx context.Context, req Request) (*Submission, error)
}

// PollingAdapter extends Adapter for task-style providers. CancelJob is
// best effort; callers ignore its error.
type PollingAdapter interface {
	Adapter
	PollJob(ctx context.Context, handle JobHandle) (*PollResult, error)
	CancelJob(ctx context.Context, handle JobHandle) error
}

// InlineParts is a convenience for adapters that answer synchronously.
func InlineParts(parts ...Part) *Submission {
	return &Submission{Output: &Output{Parts: parts}}
}

// clampQuantity bounds the requested image count to what providers accept.
func clampQuantity(n, max int) int {
	if n < 1 {
		return 1
	}
	if n > max {
		return max
	}
	return n
}
