package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"thumbgen/internal/middleware"
	"thumbgen/internal/providers/prompt"
)

type promptEnhanceRequest struct {
	Prompt string `json:"prompt"`
}

func (a *App) PromptEnhance(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing user context")
		return
	}
	var req promptEnhanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		a.error(w, http.StatusUnprocessableEntity, "INVALID_PROMPT", "prompt required")
		return
	}

	locale := middleware.LocaleFromContext(r.Context())
	res, err := a.Enhancer.Enhance(r.Context(), prompt.EnhanceRequest{Prompt: req.Prompt, Locale: locale})
	if err != nil {
		a.Logger.Error().Err(err).Msg("prompt enhancement failed")
		a.error(w, http.StatusBadGateway, "ENHANCER_UNAVAILABLE", "prompt enhancer is unavailable")
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"prompt":   res.Prompt,
		"negative": res.Negative,
		"keywords": res.Keywords,
		"provider": res.Provider,
		"metadata": res.Metadata,
	})
}

func (a *App) PromptIdeas(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	list, err := a.Enhancer.Suggest(r.Context(), locale)
	if err != nil {
		a.Logger.Error().Err(err).Msg("prompt suggestions failed")
		a.error(w, http.StatusBadGateway, "ENHANCER_UNAVAILABLE", "failed to fetch prompt ideas")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": list, "generated_at": time.Now()})
}
