// Package generation orchestrates one thumbnail generation run: submit to a
// provider, poll asynchronous jobs to completion, materialize the output
// into bytes, and store what survived.
package generation

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"thumbgen/internal/domain"
	"thumbgen/internal/infra"
	"thumbgen/internal/providers/image"
)

const maxImageBytes = 64 << 20

// MaterializedImage is one provider part resolved to raw bytes.
type MaterializedImage struct {
	Data []byte
	MIME string
}

// Materializer converts provider output parts into image bytes. Inline parts
// are base64-decoded, URL parts downloaded one at a time in order. A part
// that fails is dropped with a warning; the run only fails when nothing at
// all could be materialized.
type Materializer struct {
	httpClient *http.Client
	logger     infra.Logger
}

// NewMaterializer builds a materializer. A nil client gets a default with a
// per-download timeout.
func NewMaterializer(httpClient *http.Client, logger infra.Logger) *Materializer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Materializer{httpClient: httpClient, logger: logger}
}

// Materialize resolves every part of out, preserving order. Returns
// ErrEmptyResult when the provider produced nothing usable.
func (m *Materializer) Materialize(ctx context.Context, out *image.Output) ([]MaterializedImage, error) {
	if out == nil || len(out.Parts) == 0 {
		return nil, fmt.Errorf("generation: provider returned no parts: %w", domain.ErrEmptyResult)
	}

	images := make([]MaterializedImage, 0, len(out.Parts))
	for i, part := range out.Parts {
		img, err := m.materializePart(ctx, part)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m.logger.Warn().Err(err).Int("part", i).Msg("dropping unusable image part")
			continue
		}
		images = append(images, img)
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("generation: all %d parts failed to materialize: %w", len(out.Parts), domain.ErrEmptyResult)
	}
	return images, nil
}

func (m *Materializer) materializePart(ctx context.Context, part image.Part) (MaterializedImage, error) {
	switch {
	case part.Inline != "":
		return decodeInline(part)
	case part.URL != "":
		return m.download(ctx, part)
	default:
		return MaterializedImage{}, fmt.Errorf("generation: part carries neither payload nor url")
	}
}

// decodeInline handles both bare base64 payloads and full data: URIs. A MIME
// type embedded in a data: URI wins over the provider-declared one.
func decodeInline(part image.Part) (MaterializedImage, error) {
	payload := part.Inline
	mime := part.MIME

	if strings.HasPrefix(payload, "data:") {
		meta, rest, ok := strings.Cut(strings.TrimPrefix(payload, "data:"), ",")
		if !ok {
			return MaterializedImage{}, fmt.Errorf("generation: malformed data uri")
		}
		if !strings.HasSuffix(meta, ";base64") {
			return MaterializedImage{}, fmt.Errorf("generation: data uri is not base64 encoded")
		}
		if embedded := strings.TrimSuffix(meta, ";base64"); embedded != "" {
			mime = embedded
		}
		payload = rest
	}

	// Some providers wrap base64 across lines.
	payload = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ':
			return -1
		}
		return r
	}, payload)

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return MaterializedImage{}, fmt.Errorf("generation: decode inline payload: %w", err)
	}
	if len(data) == 0 {
		return MaterializedImage{}, fmt.Errorf("generation: inline payload is empty")
	}

	if mime == "" {
		mime = "image/png"
	}
	return MaterializedImage{Data: data, MIME: mime}, nil
}

func (m *Materializer) download(ctx context.Context, part image.Part) (MaterializedImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, part.URL, nil)
	if err != nil {
		return MaterializedImage{}, fmt.Errorf("generation: build download request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return MaterializedImage{}, fmt.Errorf("generation: download %s: %w", part.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return MaterializedImage{}, fmt.Errorf("generation: download %s: status %d", part.URL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return MaterializedImage{}, fmt.Errorf("generation: read %s: %w", part.URL, err)
	}
	if len(data) == 0 {
		return MaterializedImage{}, fmt.Errorf("generation: download %s: empty body", part.URL)
	}

	mime := resp.Header.Get("Content-Type")
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	if !strings.HasPrefix(mime, "image/") {
		mime = part.MIME
	}
	if mime == "" {
		mime = "image/png"
	}

	return MaterializedImage{Data: data, MIME: mime}, nil
}
