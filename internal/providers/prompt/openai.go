package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OpenAIOptions configures the model-backed enhancer. Fallback handles
// requests when the API misbehaves; OnFallback and OnWarning surface those
// events to the caller's logger.
type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	HTTPClient   *http.Client
	Fallback     Enhancer
	OnFallback   func(reason string, err error)
	OnWarning    func(reason, detail string)
}

// OpenAIEnhancer rewrites prompts with a chat model. Any failure falls back
// to the static enhancer; enhancement never blocks generation.
type OpenAIEnhancer struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	client       *http.Client
	fallback     Enhancer
	onFallback   func(reason string, err error)
}

const openAIDefaultTimeout = 15 * time.Second

const defaultOpenAIModel = "gpt-4o-mini"

var openAIModelCanonical = map[string]string{
	"gpt-3.5-turbo": "gpt-3.5-turbo",
	"gpt-4o-mini":   "gpt-4o-mini",
}

var openAIModelAliases = map[string]string{
	"gpt-3.5":                "gpt-3.5-turbo",
	"gpt3.5":                 "gpt-3.5-turbo",
	"gpt-35-turbo":           "gpt-3.5-turbo",
	"gpt4o-mini":             "gpt-4o-mini",
	"gpt4omini":              "gpt-4o-mini",
	"gpt-4o-mini-2024-07-18": "gpt-4o-mini",
}

type openAIChatRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *openAIFormat   `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIFormat struct {
	Type string `json:"type"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewOpenAIEnhancer validates options and builds the enhancer.
func NewOpenAIEnhancer(opts OpenAIOptions) (*OpenAIEnhancer, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	modelInput := strings.TrimSpace(opts.Model)
	normalizedModel, normalizationReason := normalizeOpenAIModel(modelInput)
	if normalizationReason != "" && opts.OnWarning != nil {
		detail := fmt.Sprintf("requested=%s resolved=%s", coalesce(modelInput, defaultOpenAIModel), normalizedModel)
		opts.OnWarning("model_"+normalizationReason, detail)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: openAIDefaultTimeout}
	}

	return &OpenAIEnhancer{
		apiKey:       strings.TrimSpace(opts.APIKey),
		model:        normalizedModel,
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		client:       client,
		fallback:     opts.Fallback,
		onFallback:   opts.OnFallback,
	}, nil
}

func (o *OpenAIEnhancer) Enhance(ctx context.Context, req EnhanceRequest) (*EnhanceResponse, error) {
	text, reason, err := o.complete(ctx, 0.6, buildEnhancePromptPayload(req))
	if err != nil {
		return o.useFallback(ctx, req, reason, err)
	}

	parsed, err := parseModelPayload[modelEnhancePayload](text)
	if err != nil {
		return o.useFallback(ctx, req, "parse_payload", err)
	}

	return &EnhanceResponse{
		Prompt:   coalesce(parsed.Prompt, req.Prompt),
		Negative: parsed.Negative,
		Keywords: normalizeKeywords(parsed.Keywords, ""),
		Metadata: ensureMetadata(parsed.Metadata, req.Locale),
		Provider: openAIProviderName,
	}, nil
}

func (o *OpenAIEnhancer) Suggest(ctx context.Context, locale string) ([]EnhanceResponse, error) {
	text, reason, err := o.complete(ctx, 0.8, buildSuggestPromptPayload(locale))
	if err != nil {
		return o.useFallbackSuggest(ctx, locale, reason, err)
	}

	parsed, err := parseModelPayload[modelSuggestPayload](text)
	if err != nil {
		return o.useFallbackSuggest(ctx, locale, "parse_payload", err)
	}
	if len(parsed.Items) == 0 {
		return o.useFallbackSuggest(ctx, locale, "empty_items", errors.New("no items"))
	}

	var items []EnhanceResponse
	for _, item := range parsed.Items {
		items = append(items, EnhanceResponse{
			Prompt:   item.Prompt,
			Keywords: normalizeKeywords(item.Keywords, ""),
			Metadata: ensureMetadata(map[string]string{"locale": parsed.Locale}, locale),
			Provider: openAIProviderName,
		})
	}
	return items, nil
}

// complete performs one chat completion call and returns the raw text, or a
// fallback reason plus error when anything goes wrong.
func (o *OpenAIEnhancer) complete(ctx context.Context, temperature float64, userPayload string) (string, string, error) {
	payload := openAIChatRequest{
		Model:          o.model,
		Temperature:    temperature,
		ResponseFormat: &openAIFormat{Type: "json_object"},
		Messages: []openAIMessage{
			{Role: "system", Content: "You are a thumbnail prompt assistant that only responds with valid JSON."},
			{Role: "user", Content: userPayload},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", "encode_request", err
	}

	endpoint := fmt.Sprintf("%s/chat/completions", o.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", "build_request", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", o.organization)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", "http_request", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return "", fmt.Sprintf("http_%d", resp.StatusCode), fmt.Errorf("openai status %d", resp.StatusCode)
	}

	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "decode_response", err
	}
	if len(out.Choices) == 0 {
		return "", "empty_choices", errors.New("no choices")
	}

	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", "empty_response", errors.New("empty response")
	}
	return text, "", nil
}

func (o *OpenAIEnhancer) useFallback(ctx context.Context, req EnhanceRequest, reason string, fallbackErr error) (*EnhanceResponse, error) {
	o.emitFallback(reason, fallbackErr)

	fallback := o.fallback
	if fallback == nil {
		fallback = NewStaticEnhancer()
	}

	res, err := fallback.Enhance(ctx, req)
	if res != nil {
		if res.Provider == "" {
			res.Provider = staticProviderName
		}
		if res.Metadata == nil {
			res.Metadata = map[string]string{}
		}
		if reason != "" {
			res.Metadata["fallback_reason"] = reason
		}
	}
	return res, err
}

func (o *OpenAIEnhancer) useFallbackSuggest(ctx context.Context, locale, reason string, fallbackErr error) ([]EnhanceResponse, error) {
	o.emitFallback(reason, fallbackErr)

	fallback := o.fallback
	if fallback == nil {
		fallback = NewStaticEnhancer()
	}

	items, err := fallback.Suggest(ctx, locale)
	for i := range items {
		if items[i].Provider == "" {
			items[i].Provider = staticProviderName
		}
		if items[i].Metadata == nil {
			items[i].Metadata = map[string]string{}
		}
		if reason != "" {
			items[i].Metadata["fallback_reason"] = reason
		}
	}
	return items, err
}

func (o *OpenAIEnhancer) emitFallback(reason string, err error) {
	if o.onFallback != nil {
		o.onFallback(reason, err)
	}
}

var _ Enhancer = (*OpenAIEnhancer)(nil)

func normalizeOpenAIModel(name string) (string, string) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return defaultOpenAIModel, ""
	}
	normalized := strings.ToLower(trimmed)
	normalized = strings.ReplaceAll(normalized, "_", "-")
	normalized = strings.ReplaceAll(normalized, " ", "-")
	if canonical, ok := openAIModelCanonical[normalized]; ok {
		return canonical, ""
	}
	if alias, ok := openAIModelAliases[normalized]; ok {
		return alias, "alias"
	}
	return defaultOpenAIModel, "defaulted"
}
