package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"thumbgen/internal/generation"
	"thumbgen/internal/infra"
	"thumbgen/internal/providers/genai"
	"thumbgen/internal/providers/image"
)

// genthumb renders one prompt straight to image files, no server or database
// involved. Handy for trying a provider before wiring credentials into a
// deployment.
func main() {
	var (
		promptFlag   string
		negativeFlag string
		providerFlag string
		aspectFlag   string
		quantityFlag int
		outFlag      string
	)
	flag.StringVar(&promptFlag, "prompt", "", "Text prompt to render")
	flag.StringVar(&negativeFlag, "negative", "", "Things the image should avoid")
	flag.StringVar(&providerFlag, "provider", "synthetic", "Image provider (synthetic or gemini)")
	flag.StringVar(&aspectFlag, "aspect", "16:9", "Aspect ratio")
	flag.IntVar(&quantityFlag, "n", 1, "Number of images to request")
	flag.StringVar(&outFlag, "out", "thumbnail.png", "Output file path")
	flag.Parse()

	prompt := strings.TrimSpace(promptFlag)
	if prompt == "" {
		fmt.Fprintln(os.Stderr, "a prompt is required via -prompt")
		os.Exit(1)
	}

	logger := infra.NewLogger("cli").With().Str("cmd", "genthumb").Logger()

	geminiModel := strings.TrimSpace(os.Getenv("GEMINI_MODEL"))
	if geminiModel == "" {
		geminiModel = "gemini-2.5-flash-image"
	}
	genaiClient := genai.NewClient(genai.Options{
		APIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		Model:  geminiModel,
		Logger: &logger,
	})

	registry := image.NewRegistry("synthetic")
	registry.Register(image.NewSyntheticAdapter(logger))
	registry.Register(image.NewGeminiAdapter(genaiClient, logger), geminiModel, "nano-banana")

	adapter, err := registry.Resolve(providerFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unsupported provider %q (available: %s)\n", providerFlag, strings.Join(registry.Names(), ", "))
		os.Exit(1)
	}
	if !adapter.Configured() {
		fmt.Fprintf(os.Stderr, "provider %q is missing credentials (set GEMINI_API_KEY)\n", adapter.Name())
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	sub, err := adapter.Submit(ctx, image.Request{
		Prompt:   prompt,
		Negative: strings.TrimSpace(negativeFlag),
		Quantity: quantityFlag,
		Aspect:   aspectFlag,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	output := sub.Output
	if sub.Handle != nil {
		poller, ok := adapter.(image.PollingAdapter)
		if !ok {
			fmt.Fprintf(os.Stderr, "provider %q returned a job it cannot poll\n", adapter.Name())
			os.Exit(1)
		}
		output, err = generation.NewPoller(2*time.Second, 2*time.Minute, logger).Wait(ctx, poller, *sub.Handle)
		if err != nil {
			fmt.Fprintf(os.Stderr, "job did not complete: %v\n", err)
			os.Exit(1)
		}
	}

	images, err := generation.NewMaterializer(&http.Client{Timeout: 30 * time.Second}, logger).Materialize(ctx, output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "no usable image produced: %v\n", err)
		os.Exit(1)
	}

	for i, img := range images {
		path := outFlag
		if i > 0 {
			ext := filepath.Ext(outFlag)
			path = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(outFlag, ext), i, ext)
		}
		if err := os.WriteFile(path, img.Data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s (%s, %d bytes)\n", path, img.MIME, len(img.Data))
	}
}
