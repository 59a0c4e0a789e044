package image

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"thumbgen/internal/domain"
	"thumbgen/internal/infra"
)

// OpenAIOptions configures the OpenAI image adapter.
type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
}

// OpenAIAdapter exposes the OpenAI Images API. dall-e-3 renders a single
// image per call, so the requested quantity collapses to one.
type OpenAIAdapter struct {
	client     openai.Client
	model      string
	configured bool
	logger     infra.Logger
}

var _ Adapter = (*OpenAIAdapter)(nil)

// NewOpenAIAdapter builds the adapter from options.
func NewOpenAIAdapter(opts OpenAIOptions, logger infra.Logger) *OpenAIAdapter {
	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.Organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(opts.Organization))
	}

	model := opts.Model
	if model == "" {
		model = string(openai.ImageModelDallE3)
	}

	return &OpenAIAdapter{
		client:     openai.NewClient(reqOpts...),
		model:      model,
		configured: opts.APIKey != "",
		logger:     logger,
	}
}

func (a *OpenAIAdapter) Name() string { return "openai" }

func (a *OpenAIAdapter) Configured() bool { return a.configured }

// Submit performs one Images.Generate call and returns the base64 payload as
// a single inline part.
func (a *OpenAIAdapter) Submit(ctx context.Context, req Request) (*Submission, error) {
	size := openai.ImageGenerateParamsSize1792x1024
	if req.Aspect == "1:1" {
		size = openai.ImageGenerateParamsSize1024x1024
	}

	resp, err := a.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         buildThumbnailPrompt(req),
		Model:          openai.ImageModel(a.model),
		N:              openai.Int(1),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
		Size:           size,
	})
	if err != nil {
		return nil, a.wrapError(err)
	}

	out := &Output{}
	for _, img := range resp.Data {
		if img.B64JSON == "" {
			continue
		}
		out.Parts = append(out.Parts, Part{Inline: img.B64JSON, MIME: "image/png"})
		if img.RevisedPrompt != "" {
			out.RevisedPrompt = img.RevisedPrompt
		}
	}

	a.logger.Debug().Int("parts", len(out.Parts)).Msg("openai submission complete")
	return &Submission{Output: out}, nil
}

func (a *OpenAIAdapter) wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &domain.ProviderError{
			Provider:   a.Name(),
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
		}
	}
	return &domain.ProviderError{Provider: a.Name(), Message: err.Error()}
}
