package image

import (
	"fmt"
	"strings"
)

// buildThumbnailPrompt shapes the request for chat-style providers that take
// a single free-text instruction. Task-style providers pass prompt and
// negative prompt as separate wire fields and skip this.
func buildThumbnailPrompt(req Request) string {
	segments := []string{strings.TrimSpace(req.Prompt)}

	if ratio := strings.TrimSpace(req.Aspect); ratio != "" {
		segments = append(segments, fmt.Sprintf("Use a %s aspect ratio composition suited to a video thumbnail", ratio))
	}
	if negative := strings.TrimSpace(req.Negative); negative != "" {
		segments = append(segments, fmt.Sprintf("Avoid: %s", negative))
	}

	return strings.Join(segments, ". ")
}

// extractDataURI pulls the first data: image URI out of free text. Chat
// models occasionally paste the image into their narration instead of
// attaching it as a structured part.
func extractDataURI(text string) string {
	start := strings.Index(text, "data:image/")
	if start < 0 {
		return ""
	}

	uri := text[start:]
	if end := strings.IndexFunc(uri, func(r rune) bool {
		switch r {
		case ' ', '\n', '\t', '"', '\'', ')', ']':
			return true
		}
		return false
	}); end > 0 {
		uri = uri[:end]
	}

	if !strings.Contains(uri, ";base64,") {
		return ""
	}
	return uri
}
