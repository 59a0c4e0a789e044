package prompt

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// EnhanceRequest carries the raw prompt to rewrite and the caller's locale.
type EnhanceRequest struct {
	Prompt string
	Locale string
}

// EnhanceResponse is the rewritten prompt plus guidance extracted from it.
type EnhanceResponse struct {
	Prompt   string            `json:"prompt"`
	Negative string            `json:"negative,omitempty"`
	Keywords []string          `json:"keywords,omitempty"`
	Metadata map[string]string `json:"metadata"`
	Provider string            `json:"-"`
}

// Enhancer rewrites a raw prompt into one tuned for thumbnail generation.
// Suggest produces ready-to-use prompt ideas for an empty editor.
type Enhancer interface {
	Enhance(ctx context.Context, req EnhanceRequest) (*EnhanceResponse, error)
	Suggest(ctx context.Context, locale string) ([]EnhanceResponse, error)
}

// StaticEnhancer rewrites prompts with fixed composition rules. It needs no
// network and backs the model-based enhancer when that fails.
type StaticEnhancer struct{}

func NewStaticEnhancer() *StaticEnhancer {
	return &StaticEnhancer{}
}

func (s *StaticEnhancer) Enhance(_ context.Context, req EnhanceRequest) (*EnhanceResponse, error) {
	subject := strings.TrimSpace(req.Prompt)
	if subject == "" {
		subject = "eye-catching video thumbnail"
	}

	res := &EnhanceResponse{
		Prompt:   fmt.Sprintf("%s, bold composition, high contrast, sharp focus, vibrant colors, clear space for title text", subject),
		Negative: "blurry, low quality, watermark, cluttered text, distorted faces",
		Keywords: subjectKeywords(subject),
		Metadata: map[string]string{"locale": req.Locale},
		Provider: staticProviderName,
	}
	return res, nil
}

func (s *StaticEnhancer) Suggest(_ context.Context, locale string) ([]EnhanceResponse, error) {
	items := []EnhanceResponse{
		{Prompt: "Shocked streamer reacting to gameplay, neon rim lighting, bold red arrow", Keywords: []string{"gaming", "reaction"}, Metadata: map[string]string{"locale": locale}, Provider: staticProviderName},
		{Prompt: "Before and after kitchen makeover split screen, warm natural light", Keywords: []string{"diy", "makeover"}, Metadata: map[string]string{"locale": locale}, Provider: staticProviderName},
		{Prompt: "Close-up of sizzling smash burger with melting cheese, dramatic studio lighting", Keywords: []string{"food", "recipe"}, Metadata: map[string]string{"locale": locale}, Provider: staticProviderName},
	}
	return items, nil
}

var _ Enhancer = (*StaticEnhancer)(nil)

// subjectKeywords title-cases the leading words of the subject so lists and
// search stay readable regardless of how the prompt was typed.
func subjectKeywords(subject string) []string {
	c := cases.Title(language.Und)
	var keywords []string
	for _, word := range strings.FieldsFunc(subject, func(r rune) bool {
		return r == ' ' || r == ','
	}) {
		if len(word) < 4 {
			continue
		}
		keywords = append(keywords, c.String(word))
		if len(keywords) == 3 {
			break
		}
	}
	return keywords
}
