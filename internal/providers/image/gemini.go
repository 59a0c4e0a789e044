package image

import (
	"context"
	"errors"

	"thumbgen/internal/domain"
	"thumbgen/internal/infra"
	"thumbgen/internal/providers/genai"
)

// GeminiAdapter exposes Gemini's chat-style image generation. Responses are
// inline: the submit call already carries the image payloads.
type GeminiAdapter struct {
	client *genai.Client
	logger infra.Logger
}

var _ Adapter = (*GeminiAdapter)(nil)

// NewGeminiAdapter wraps a genai client.
func NewGeminiAdapter(client *genai.Client, logger infra.Logger) *GeminiAdapter {
	return &GeminiAdapter{client: client, logger: logger}
}

func (a *GeminiAdapter) Name() string { return "gemini" }

func (a *GeminiAdapter) Configured() bool { return a.client.Configured() }

// Submit performs one generateContent call and maps the candidate parts onto
// canonical image parts, keeping provider order. Text parts are scanned for
// pasted data: URIs; pure narration is dropped.
func (a *GeminiAdapter) Submit(ctx context.Context, req Request) (*Submission, error) {
	in := genai.GenerateInput{Prompt: buildThumbnailPrompt(req)}
	if req.Reference != nil && len(req.Reference.Data) > 0 {
		in.ReferenceMIME = req.Reference.MIME
		in.ReferenceData = req.Reference.Data
	}

	parts, err := a.client.GenerateContent(ctx, in)
	if err != nil {
		return nil, a.wrapError(err)
	}

	out := &Output{}
	for _, p := range parts {
		switch {
		case p.InlineData != "":
			out.Parts = append(out.Parts, Part{Inline: p.InlineData, MIME: p.InlineMIME})
		case p.FileURI != "":
			out.Parts = append(out.Parts, Part{URL: p.FileURI, MIME: p.FileMIME})
		case p.Text != "":
			if uri := extractDataURI(p.Text); uri != "" {
				out.Parts = append(out.Parts, Part{Inline: uri})
			}
		}
	}

	a.logger.Debug().Int("parts", len(out.Parts)).Msg("gemini submission complete")
	return &Submission{Output: out}, nil
}

func (a *GeminiAdapter) wrapError(err error) error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return &domain.ProviderError{
			Provider:   a.Name(),
			StatusCode: apiErr.StatusCode,
			Code:       apiErr.Status,
			Message:    apiErr.Message,
		}
	}
	return &domain.ProviderError{Provider: a.Name(), Message: err.Error()}
}
