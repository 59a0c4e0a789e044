package storage

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Thumbnails are normalized to the standard player frame.
const (
	thumbWidth  = 1280
	thumbHeight = 720
)

// Normalizer crops and scales provider output to the 1280x720 thumbnail
// frame. Providers render at whatever size they like; normalization keeps
// stored thumbnails uniform.
type Normalizer struct {
	enabled bool
}

// NewNormalizer builds a normalizer. When disabled, Normalize passes bytes
// through untouched.
func NewNormalizer(enabled bool) *Normalizer {
	return &Normalizer{enabled: enabled}
}

// Normalize returns the image fitted to 1280x720 and its output MIME type.
// JPEG input stays JPEG; everything else is re-encoded as PNG. On failure
// the original bytes come back alongside the error so callers can choose to
// store them anyway.
func (n *Normalizer) Normalize(data []byte, mime string) ([]byte, string, error) {
	if n == nil || !n.enabled {
		return data, mime, nil
	}

	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return data, mime, fmt.Errorf("storage: decode image: %w", err)
	}

	format := imaging.PNG
	outMIME := "image/png"
	if strings.EqualFold(mime, "image/jpeg") || strings.EqualFold(mime, "image/jpg") {
		format = imaging.JPEG
		outMIME = "image/jpeg"
	}

	bounds := src.Bounds()
	if bounds.Dx() != thumbWidth || bounds.Dy() != thumbHeight {
		src = imaging.Fill(src, thumbWidth, thumbHeight, imaging.Center, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, src, format, imaging.JPEGQuality(90)); err != nil {
		return data, mime, fmt.Errorf("storage: encode image: %w", err)
	}

	return buf.Bytes(), outMIME, nil
}

// Dimensions reports an image's pixel size, or zeros when it cannot be
// decoded.
func Dimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
