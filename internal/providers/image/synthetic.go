package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	goimage "image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	"thumbgen/internal/infra"
)

// SyntheticAdapter renders deterministic placeholder thumbnails locally. It
// needs no credentials and exists for development and tests; the same prompt
// always yields the same image.
type SyntheticAdapter struct {
	logger infra.Logger
}

var _ Adapter = (*SyntheticAdapter)(nil)

// NewSyntheticAdapter builds the local renderer.
func NewSyntheticAdapter(logger infra.Logger) *SyntheticAdapter {
	return &SyntheticAdapter{logger: logger}
}

func (a *SyntheticAdapter) Name() string { return "synthetic" }

func (a *SyntheticAdapter) Configured() bool { return true }

// Submit renders the requested number of images and returns them as data:
// URI inline parts.
func (a *SyntheticAdapter) Submit(_ context.Context, req Request) (*Submission, error) {
	quantity := clampQuantity(req.Quantity, 4)
	width, height := syntheticDimensions(req.Aspect)

	out := &Output{Parts: make([]Part, 0, quantity)}
	for i := 0; i < quantity; i++ {
		seed := syntheticSeed(req.Prompt, req.Seed, i)
		data := renderSyntheticThumbnail(width, height, seed)
		out.Parts = append(out.Parts, Part{
			Inline: "data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
			MIME:   "image/png",
		})
	}

	a.logger.Debug().Int("parts", len(out.Parts)).Msg("synthetic submission complete")
	return &Submission{Output: out}, nil
}

func syntheticDimensions(aspect string) (int, int) {
	switch strings.TrimSpace(aspect) {
	case "", "16:9":
		return 1280, 720
	case "1:1", "square":
		return 1024, 1024
	case "9:16":
		return 720, 1280
	default:
		return 1280, 720
	}
}

func syntheticSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(fmt.Sprintf("%v", part)))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

func renderSyntheticThumbnail(width, height int, seed string) []byte {
	img := goimage.NewRGBA(goimage.Rect(0, 0, width, height))
	base := colorFromSeed(seed, 0)
	accent := colorFromSeed(seed, 1)
	draw.Draw(img, img.Bounds(), &goimage.Uniform{C: base}, goimage.Point{}, draw.Src)

	stripeHeight := maxInt(32, height/12)
	for y := 0; y < height; y += stripeHeight * 2 {
		stripe := goimage.Rect(0, y, width, minInt(height, y+stripeHeight))
		draw.Draw(img, stripe, &goimage.Uniform{C: accent}, goimage.Point{}, draw.Over)
	}

	diagonal := colorFromSeed(seed, 2)
	for i := 0; i < maxInt(width, height); i += maxInt(16, width/32) {
		for y := 0; y < height; y++ {
			xx := i + y
			if xx >= width {
				break
			}
			img.Set(xx, y, diagonal)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if seed == "" {
		seed = "000000"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.RGBA{
		R: mustParseHexByte(segment[0:2]),
		G: mustParseHexByte(segment[2:4]),
		B: mustParseHexByte(segment[4:6]),
		A: 255,
	}
}

func mustParseHexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
