// Package refimage fetches reference images supplied with a generation
// request. Fetched bytes are cached briefly so a burst of generations
// against the same reference does not refetch it every time.
package refimage

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

const (
	defaultTTL      = 15 * time.Minute
	defaultMaxBytes = 20 << 20
)

// Image is a fetched reference.
type Image struct {
	Data []byte
	MIME string
}

// Options configures the fetcher.
type Options struct {
	HTTPClient *http.Client
	TTL        time.Duration
	MaxBytes   int64
	Logger     *zerolog.Logger
}

// Fetcher resolves reference locations to bytes. It accepts http(s) URLs and
// inline data: URIs.
type Fetcher struct {
	httpClient *http.Client
	cache      *gocache.Cache
	maxBytes   int64
	logger     zerolog.Logger
}

// NewFetcher builds a fetcher, applying defaults for anything unset.
func NewFetcher(opts Options) *Fetcher {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}

	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Fetcher{
		httpClient: httpClient,
		cache:      gocache.New(ttl, 2*ttl),
		maxBytes:   maxBytes,
		logger:     logger,
	}
}

// Fetch resolves ref to image bytes. Remote fetches are cached; data: URIs
// are decoded directly.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (*Image, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("refimage: empty reference")
	}

	if strings.HasPrefix(ref, "data:") {
		return decodeDataURI(ref)
	}

	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		return nil, fmt.Errorf("refimage: unsupported reference scheme: %.24s", ref)
	}

	if cached, ok := f.cache.Get(ref); ok {
		f.logger.Debug().Str("ref", ref).Msg("reference image cache hit")
		return cached.(*Image), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("refimage: build request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refimage: fetch %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("refimage: fetch %s: status %d", ref, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("refimage: read %s: %w", ref, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("refimage: fetch %s: empty body", ref)
	}

	mime := resp.Header.Get("Content-Type")
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = "image/png"
	}

	img := &Image{Data: data, MIME: mime}
	f.cache.Set(ref, img, gocache.DefaultExpiration)
	return img, nil
}

func decodeDataURI(uri string) (*Image, error) {
	rest := strings.TrimPrefix(uri, "data:")
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("refimage: malformed data uri")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("refimage: data uri must be base64 encoded")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("refimage: decode data uri: %w", err)
	}

	mime := strings.TrimSuffix(meta, ";base64")
	if mime == "" {
		mime = "image/png"
	}
	return &Image{Data: data, MIME: mime}, nil
}
