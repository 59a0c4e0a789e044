package image

import (
	"context"
	"errors"

	"thumbgen/internal/domain"
	"thumbgen/internal/infra"
	"thumbgen/internal/providers/dashscope"
)

// Pixel dimensions qwen-image accepts, keyed by aspect ratio.
var qwenSizes = map[string]string{
	"16:9": "1664*928",
	"1:1":  "1328*1328",
	"9:16": "928*1664",
}

// QwenAdapter exposes DashScope's synchronous qwen-image generation. The
// submit call blocks until the service answers with result URLs.
type QwenAdapter struct {
	client *dashscope.Client
	model  string
	logger infra.Logger
}

var _ Adapter = (*QwenAdapter)(nil)

// NewQwenAdapter wraps a dashscope client for the given qwen-image model.
func NewQwenAdapter(client *dashscope.Client, model string, logger infra.Logger) *QwenAdapter {
	return &QwenAdapter{client: client, model: model, logger: logger}
}

func (a *QwenAdapter) Name() string { return "qwen-image" }

func (a *QwenAdapter) Configured() bool { return a.client.Configured() }

// Submit performs one generation call and returns the produced image URLs as
// ordered parts.
func (a *QwenAdapter) Submit(ctx context.Context, req Request) (*Submission, error) {
	size, ok := qwenSizes[req.Aspect]
	if !ok {
		size = qwenSizes["16:9"]
	}

	urls, err := a.client.GenerateImage(ctx, dashscope.ImageRequest{
		Model:        a.model,
		Prompt:       req.Prompt,
		Negative:     req.Negative,
		Size:         size,
		Count:        clampQuantity(req.Quantity, 4),
		PromptExtend: true,
	})
	if err != nil {
		return nil, wrapDashScopeError(a.Name(), err)
	}

	out := &Output{}
	for _, url := range urls {
		out.Parts = append(out.Parts, Part{URL: url})
	}

	a.logger.Debug().Int("parts", len(out.Parts)).Msg("qwen-image submission complete")
	return &Submission{Output: out}, nil
}

func wrapDashScopeError(provider string, err error) error {
	var apiErr *dashscope.APIError
	if errors.As(err, &apiErr) {
		return &domain.ProviderError{
			Provider:   provider,
			StatusCode: apiErr.StatusCode,
			Code:       apiErr.Code,
			Message:    apiErr.Message,
		}
	}
	return &domain.ProviderError{Provider: provider, Message: err.Error()}
}
