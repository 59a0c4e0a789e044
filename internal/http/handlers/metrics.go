package handlers

import (
	"net/http"
	"time"
)

func (a *App) MetricsSummary(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing user context")
		return
	}

	day := time.Now().UTC().Format("2006-01-02")
	summary, err := a.Usage.Summary(r.Context(), userID, day)
	if err != nil {
		a.Logger.Error().Err(err).Msg("usage summary failed")
		a.error(w, http.StatusInternalServerError, "INTERNAL", "failed to load usage")
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"today": map[string]any{
			"day":           summary.Day,
			"generated":     summary.Generated,
			"failed":        summary.Failed,
			"images_stored": summary.ImagesStored,
		},
		"service": a.Metrics.Snapshot(),
	})
}

func (a *App) ProvidersList(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"providers": a.Providers,
		"default":   a.Config.ImageProvider,
	})
}
