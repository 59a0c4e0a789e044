package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"thumbgen/internal/domain"
	"thumbgen/internal/generation"
	"thumbgen/internal/middleware"
	"thumbgen/internal/storage"
	"thumbgen/pkg/zip"
)

type thumbnailGenerateRequest struct {
	Prompt    string `json:"prompt"`
	Negative  string `json:"negative_prompt"`
	Provider  string `json:"provider"`
	Quantity  int    `json:"quantity"`
	Aspect    string `json:"aspect_ratio"`
	Seed      int64  `json:"seed"`
	Reference string `json:"reference_image"`
	Enhance   bool   `json:"enhance_prompt"`
}

type thumbnailDTO struct {
	ID             string    `json:"id"`
	Prompt         string    `json:"prompt"`
	EnhancedPrompt string    `json:"enhanced_prompt,omitempty"`
	ImageURL       string    `json:"image_url"`
	SourceImage    string    `json:"source_image,omitempty"`
	Provider       string    `json:"provider"`
	MIME           string    `json:"mime"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	CreatedAt      time.Time `json:"created_at"`
}

func toThumbnailDTO(t domain.Thumbnail) thumbnailDTO {
	return thumbnailDTO{
		ID:             t.ID,
		Prompt:         t.Prompt,
		EnhancedPrompt: t.EnhancedPrompt,
		ImageURL:       t.ImageLocation,
		SourceImage:    t.SourceLocation,
		Provider:       t.Provider,
		MIME:           t.MIME,
		Width:          t.Width,
		Height:         t.Height,
		CreatedAt:      t.CreatedAt,
	}
}

type thumbnailGenerateResponse struct {
	Items    []thumbnailDTO `json:"items"`
	Provider string         `json:"provider"`
	Produced int            `json:"produced"`
	Stored   int            `json:"stored"`
	Partial  bool           `json:"partial"`
}

func (a *App) ThumbnailsGenerate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing user context")
		return
	}
	var req thumbnailGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload")
		return
	}

	res, err := a.Orchestrator.Generate(r.Context(), generation.Request{
		OwnerID:   userID,
		Prompt:    req.Prompt,
		Negative:  req.Negative,
		Provider:  req.Provider,
		Quantity:  req.Quantity,
		Aspect:    req.Aspect,
		Seed:      req.Seed,
		Reference: req.Reference,
		Enhance:   req.Enhance,
		Locale:    middleware.LocaleFromContext(r.Context()),
	})
	if err != nil {
		a.generationError(w, err)
		return
	}

	items := make([]thumbnailDTO, 0, len(res.Thumbnails))
	for _, t := range res.Thumbnails {
		items = append(items, toThumbnailDTO(t))
	}
	a.json(w, http.StatusCreated, thumbnailGenerateResponse{
		Items:    items,
		Provider: res.Provider,
		Produced: res.Produced,
		Stored:   res.Stored,
		Partial:  res.Partial,
	})
}

// generationError maps pipeline failures onto HTTP statuses. Retryable
// provider trouble reads as a gateway problem; terminal rejections keep the
// provider's complaint so callers can fix their prompt.
func (a *App) generationError(w http.ResponseWriter, err error) {
	var provErr *domain.ProviderError
	var timeoutErr *domain.TimeoutError

	switch {
	case errors.Is(err, domain.ErrInvalidPrompt):
		a.error(w, http.StatusUnprocessableEntity, "INVALID_PROMPT", "prompt must not be empty")
	case errors.Is(err, domain.ErrUnknownProvider):
		a.error(w, http.StatusBadRequest, "UNKNOWN_PROVIDER", "unsupported image provider")
	case errors.Is(err, domain.ErrProviderNotConfigured):
		a.error(w, http.StatusServiceUnavailable, "PROVIDER_NOT_CONFIGURED", "image provider is missing credentials")
	case errors.As(err, &timeoutErr):
		a.error(w, http.StatusGatewayTimeout, "GENERATION_TIMEOUT", timeoutErr.Error())
	case errors.Is(err, domain.ErrEmptyResult):
		a.error(w, http.StatusBadGateway, "EMPTY_RESULT", "provider produced no usable images")
	case errors.As(err, &provErr):
		if provErr.Retryable() {
			a.error(w, http.StatusBadGateway, "PROVIDER_UNAVAILABLE", provErr.Message)
		} else {
			a.error(w, http.StatusUnprocessableEntity, "PROVIDER_REJECTED", provErr.Message)
		}
	default:
		a.Logger.Error().Err(err).Msg("generation failed")
		a.error(w, http.StatusInternalServerError, "INTERNAL", "generation failed")
	}
}

func (a *App) ThumbnailsList(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing user context")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	records, err := a.Thumbnails.ListByOwner(r.Context(), userID, limit, offset)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list thumbnails failed")
		a.error(w, http.StatusInternalServerError, "INTERNAL", "failed to load thumbnails")
		return
	}

	items := make([]thumbnailDTO, 0, len(records))
	for _, t := range records {
		items = append(items, toThumbnailDTO(t))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) ThumbnailGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")

	rec, err := a.Thumbnails.GetByID(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "NOT_FOUND", "thumbnail not found")
			return
		}
		a.Logger.Error().Err(err).Str("thumbnail_id", id).Msg("load thumbnail failed")
		a.error(w, http.StatusInternalServerError, "INTERNAL", "failed to load thumbnail")
		return
	}
	a.json(w, http.StatusOK, toThumbnailDTO(*rec))
}

func (a *App) ThumbnailDelete(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")

	rec, err := a.Thumbnails.GetByID(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "NOT_FOUND", "thumbnail not found")
			return
		}
		a.Logger.Error().Err(err).Str("thumbnail_id", id).Msg("load thumbnail failed")
		a.error(w, http.StatusInternalServerError, "INTERNAL", "failed to load thumbnail")
		return
	}

	if err := a.Thumbnails.Delete(r.Context(), id, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "NOT_FOUND", "thumbnail not found")
			return
		}
		a.Logger.Error().Err(err).Str("thumbnail_id", id).Msg("delete thumbnail failed")
		a.error(w, http.StatusInternalServerError, "INTERNAL", "failed to delete thumbnail")
		return
	}

	// The record is gone; losing the orphaned file is not worth a 5xx.
	if key, ok := a.Store.KeyFromLocation(rec.ImageLocation); ok {
		if err := a.Store.Remove(r.Context(), key); err != nil {
			a.Logger.Warn().Err(err).Str("key", key).Msg("failed to remove stored image")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) ThumbnailDownload(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")

	rec, err := a.Thumbnails.GetByID(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "NOT_FOUND", "thumbnail not found")
			return
		}
		a.Logger.Error().Err(err).Str("thumbnail_id", id).Msg("load thumbnail failed")
		a.error(w, http.StatusInternalServerError, "INTERNAL", "failed to load thumbnail")
		return
	}

	key, ok := a.Store.KeyFromLocation(rec.ImageLocation)
	if !ok {
		a.error(w, http.StatusNotFound, "NOT_FOUND", "image is not stored locally")
		return
	}
	data, err := a.Store.Read(r.Context(), key)
	if err != nil {
		a.Logger.Warn().Err(err).Str("key", key).Msg("stored image unreadable")
		a.error(w, http.StatusNotFound, "NOT_FOUND", "image bytes missing")
		return
	}

	mime := rec.MIME
	if mime == "" {
		mime = storage.MIMEForKey(key)
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=thumbnail-%s%s", rec.ID, path.Ext(key)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *App) ThumbnailsArchive(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing user context")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := a.Thumbnails.ListByOwner(r.Context(), userID, limit, 0)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list thumbnails failed")
		a.error(w, http.StatusInternalServerError, "INTERNAL", "failed to load thumbnails")
		return
	}

	entries := make([]zip.Entry, 0, len(records))
	for _, rec := range records {
		key, ok := a.Store.KeyFromLocation(rec.ImageLocation)
		if !ok {
			continue
		}
		data, err := a.Store.Read(r.Context(), key)
		if err != nil {
			a.Logger.Warn().Err(err).Str("key", key).Msg("skipping unreadable archive entry")
			continue
		}
		entries = append(entries, zip.Entry{Name: rec.ID + path.Ext(key), Data: data})
	}
	if len(entries) == 0 {
		a.error(w, http.StatusNotFound, "NOT_FOUND", "no stored thumbnails to archive")
		return
	}

	archive, err := zip.Archive(entries)
	if err != nil {
		a.Logger.Error().Err(err).Msg("archive build failed")
		a.error(w, http.StatusInternalServerError, "INTERNAL", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename=thumbnails.zip")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}
