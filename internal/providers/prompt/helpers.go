package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	staticProviderName = "static"
	openAIProviderName = "openai"
)

const defaultLocale = "en-US"

type modelEnhancePayload struct {
	Prompt   string            `json:"prompt"`
	Negative string            `json:"negative"`
	Keywords []string          `json:"keywords"`
	Metadata map[string]string `json:"metadata"`
}

type modelSuggestItem struct {
	Prompt   string   `json:"prompt"`
	Keywords []string `json:"keywords"`
}

type modelSuggestPayload struct {
	Items  []modelSuggestItem `json:"items"`
	Locale string             `json:"locale"`
}

func buildEnhancePromptPayload(req EnhanceRequest) string {
	locale := coalesce(req.Locale, defaultLocale)
	sb := &strings.Builder{}
	sb.WriteString("You are an expert at writing text-to-image prompts for YouTube thumbnails. Respond strictly with JSON matching this schema: ")
	sb.WriteString(`{"prompt":string,"negative":string,"keywords":string[],"metadata":{"locale":string}}`)
	fmt.Fprintf(sb, ". Rewrite the user's idea into one vivid prompt that reads well at small sizes: strong subject, bold colors, high contrast, space for title text. Keep the user's intent. Use locale '%s' for language choices. User idea: %q.", locale, req.Prompt)
	return sb.String()
}

func buildSuggestPromptPayload(locale string) string {
	if locale == "" {
		locale = defaultLocale
	}
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "Generate three unique text-to-image prompts for YouTube thumbnails across different video genres. Respond strictly as JSON: {\"items\":[{\"prompt\":string,\"keywords\":string[]}],\"locale\":%q}. Use locale '%s' and make each idea noticeably different. randomness_token=%d.", locale, locale, time.Now().UnixNano())
	return sb.String()
}

func ensureMetadata(meta map[string]string, locale string) map[string]string {
	if meta == nil {
		meta = map[string]string{}
	}
	if locale != "" {
		meta["locale"] = locale
	} else if _, ok := meta["locale"]; !ok {
		meta["locale"] = defaultLocale
	}
	return meta
}

func normalizeKeywords(keywords []string, fallback string) []string {
	seen := make(map[string]struct{})
	var result []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		kwLower := strings.ToLower(kw)
		if _, ok := seen[kwLower]; ok {
			continue
		}
		seen[kwLower] = struct{}{}
		result = append(result, kw)
	}
	if len(result) == 0 && fallback != "" {
		result = []string{fallback}
	}
	return result
}

func coalesce(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}

func parseModelPayload[T any](raw string) (T, error) {
	var zero T
	cleaned := extractJSONFragment(raw)
	if cleaned == "" {
		return zero, errors.New("empty payload")
	}
	var decoded T
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return zero, err
	}
	return decoded, nil
}

func extractJSONFragment(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	text = trimCodeFence(text)
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "]}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
