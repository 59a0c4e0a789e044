package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"thumbgen/internal/domain"
	"thumbgen/internal/infra"
	"thumbgen/internal/providers/image"
	"thumbgen/internal/providers/prompt"
	"thumbgen/internal/refimage"
	"thumbgen/internal/storage"
)

// Store persists image bytes and returns their public location.
type Store interface {
	Store(ctx context.Context, data []byte, mime, folder string) (string, error)
}

// Normalizer fits image bytes to the thumbnail frame before storage.
type Normalizer interface {
	Normalize(data []byte, mime string) ([]byte, string, error)
}

// ReferenceFetcher resolves a reference image location to bytes.
type ReferenceFetcher interface {
	Fetch(ctx context.Context, ref string) (*refimage.Image, error)
}

// Request is one generation run.
type Request struct {
	OwnerID   string
	Prompt    string
	Negative  string
	Provider  string
	Quantity  int
	Aspect    string
	Seed      int64
	Reference string
	Enhance   bool
	Locale    string
}

// Result is the outcome of a run that persisted at least one thumbnail.
// Partial marks runs where some provider parts were lost along the way.
type Result struct {
	Thumbnails     []domain.Thumbnail
	Provider       string
	EnhancedPrompt string
	Produced       int
	Stored         int
	Partial        bool
}

// Options wires the orchestrator's collaborators. Enhancer, References,
// Usage and Metrics are optional; everything else is required.
type Options struct {
	Registry     *image.Registry
	Poller       *Poller
	Materializer *Materializer
	Store        Store
	Normalizer   Normalizer
	Thumbnails   domain.ThumbnailRepository
	Usage        domain.UsageRepository
	Enhancer     prompt.Enhancer
	References   ReferenceFetcher
	Metrics      *infra.Metrics
	Logger       *infra.Logger
}

// Orchestrator runs the full generate pipeline. It holds no per-request
// state, so one instance serves concurrent requests.
type Orchestrator struct {
	registry     *image.Registry
	poller       *Poller
	materializer *Materializer
	store        Store
	normalizer   Normalizer
	thumbnails   domain.ThumbnailRepository
	usage        domain.UsageRepository
	enhancer     prompt.Enhancer
	references   ReferenceFetcher
	metrics      *infra.Metrics
	logger       infra.Logger
}

// NewOrchestrator builds an orchestrator from options.
func NewOrchestrator(opts Options) *Orchestrator {
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Orchestrator{
		registry:     opts.Registry,
		poller:       opts.Poller,
		materializer: opts.Materializer,
		store:        opts.Store,
		normalizer:   opts.Normalizer,
		thumbnails:   opts.Thumbnails,
		usage:        opts.Usage,
		enhancer:     opts.Enhancer,
		references:   opts.References,
		metrics:      opts.Metrics,
		logger:       logger,
	}
}

// Generate validates the request, submits it to the chosen provider, drives
// any asynchronous job to completion, materializes the output, and stores
// plus persists each image in provider order. Images that fail to store or
// persist are dropped individually; the run fails only when none survive.
// Nothing here retries a submission: a retry could double-charge the caller.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	promptText := strings.TrimSpace(req.Prompt)
	if promptText == "" {
		return nil, fmt.Errorf("generation: prompt must not be empty: %w", domain.ErrInvalidPrompt)
	}

	adapter, err := o.registry.Resolve(req.Provider)
	if err != nil {
		return nil, err
	}

	o.metrics.MarkRequest(adapter.Name())
	logger := o.logger.With().Str("provider", adapter.Name()).Str("owner_id", req.OwnerID).Logger()

	// Enhancement is advisory. A broken enhancer must never block generation.
	enhancedPrompt := ""
	submitPrompt := promptText
	negative := req.Negative
	if req.Enhance && o.enhancer != nil {
		res, err := o.enhancer.Enhance(ctx, prompt.EnhanceRequest{Prompt: promptText, Locale: req.Locale})
		if err != nil || res == nil || strings.TrimSpace(res.Prompt) == "" {
			logger.Warn().Err(err).Msg("prompt enhancement failed; submitting original prompt")
		} else {
			enhancedPrompt = res.Prompt
			submitPrompt = res.Prompt
			if negative == "" {
				negative = res.Negative
			}
		}
	}

	var ref *image.Reference
	if req.Reference != "" {
		if o.references == nil {
			return nil, fmt.Errorf("generation: reference images are not enabled")
		}
		img, err := o.references.Fetch(ctx, req.Reference)
		if err != nil {
			o.recordFailure(ctx, req.OwnerID)
			return nil, fmt.Errorf("generation: fetch reference image: %w", err)
		}
		ref = &image.Reference{Data: img.Data, MIME: img.MIME, URL: req.Reference}
	}

	sub, err := adapter.Submit(ctx, image.Request{
		Prompt:    submitPrompt,
		Negative:  negative,
		Quantity:  req.Quantity,
		Aspect:    req.Aspect,
		Seed:      req.Seed,
		Reference: ref,
	})
	if err != nil {
		o.recordFailure(ctx, req.OwnerID)
		return nil, err
	}

	out := sub.Output
	if sub.Handle != nil {
		polling, ok := adapter.(image.PollingAdapter)
		if !ok {
			o.recordFailure(ctx, req.OwnerID)
			return nil, fmt.Errorf("generation: provider %s returned a job handle but cannot poll", adapter.Name())
		}

		out, err = o.poller.Wait(ctx, polling, *sub.Handle)
		if err != nil {
			var timeoutErr *domain.TimeoutError
			if errors.As(err, &timeoutErr) {
				o.metrics.MarkTimeout()
				o.markUsage(ctx, req.OwnerID, 0, true)
			} else {
				o.recordFailure(ctx, req.OwnerID)
			}
			return nil, err
		}
	}

	images, err := o.materializer.Materialize(ctx, out)
	if err != nil {
		o.recordFailure(ctx, req.OwnerID)
		return nil, err
	}

	if enhancedPrompt == "" && out != nil && out.RevisedPrompt != "" {
		enhancedPrompt = out.RevisedPrompt
	}

	folder := "thumbnails/" + req.OwnerID
	stored := make([]domain.Thumbnail, 0, len(images))
	for i, img := range images {
		data, mime, err := o.normalizer.Normalize(img.Data, img.MIME)
		if err != nil {
			logger.Warn().Err(err).Int("index", i).Msg("normalization failed; storing original bytes")
		}

		location, err := o.store.Store(ctx, data, mime, folder)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn().Err(err).Int("index", i).Msg("dropping image that failed to store")
			continue
		}

		width, height := storage.Dimensions(data)
		record := domain.Thumbnail{
			ID:             uuid.NewString(),
			OwnerID:        req.OwnerID,
			Prompt:         promptText,
			EnhancedPrompt: enhancedPrompt,
			ImageLocation:  location,
			SourceLocation: req.Reference,
			Provider:       adapter.Name(),
			MIME:           mime,
			Width:          width,
			Height:         height,
			CreatedAt:      time.Now().UTC(),
		}

		if err := o.thumbnails.Insert(ctx, &record); err != nil {
			logger.Warn().Err(err).Int("index", i).Msg("dropping image whose record failed to persist")
			continue
		}
		stored = append(stored, record)
	}

	if len(stored) == 0 {
		o.recordFailure(ctx, req.OwnerID)
		return nil, fmt.Errorf("generation: no image could be stored: %w", domain.ErrEmptyResult)
	}

	partial := len(stored) < len(out.Parts)
	if partial {
		o.metrics.MarkPartial(len(stored))
	} else {
		o.metrics.MarkSuccess(len(stored))
	}
	o.metrics.ObserveDuration(time.Since(start))
	o.markUsage(ctx, req.OwnerID, len(stored), false)

	logger.Info().
		Int("produced", len(out.Parts)).
		Int("stored", len(stored)).
		Bool("partial", partial).
		Dur("duration", time.Since(start)).
		Msg("generation complete")

	return &Result{
		Thumbnails:     stored,
		Provider:       adapter.Name(),
		EnhancedPrompt: enhancedPrompt,
		Produced:       len(out.Parts),
		Stored:         len(stored),
		Partial:        partial,
	}, nil
}

func (o *Orchestrator) recordFailure(ctx context.Context, ownerID string) {
	o.metrics.MarkFailure()
	o.markUsage(ctx, ownerID, 0, true)
}

// markUsage bumps the owner's daily counters. Best effort: usage accounting
// never fails a run, and it survives caller cancellation.
func (o *Orchestrator) markUsage(ctx context.Context, ownerID string, images int, failed bool) {
	if o.usage == nil || ownerID == "" {
		return
	}

	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	day := time.Now().UTC().Format("2006-01-02")
	failedCount := 0
	if failed {
		failedCount = 1
	}

	if err := o.usage.Increment(ctx, ownerID, day, 1, failedCount, images); err != nil {
		o.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("usage accounting failed")
	}
}
