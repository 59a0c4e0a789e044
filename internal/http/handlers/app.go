package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"thumbgen/internal/domain"
	"thumbgen/internal/generation"
	"thumbgen/internal/infra"
	"thumbgen/internal/middleware"
	"thumbgen/internal/providers/prompt"
	"thumbgen/internal/storage"
)

// App bundles everything the HTTP handlers need.
type App struct {
	Config       *infra.Config
	Logger       infra.Logger
	DB           *pgxpool.Pool
	Thumbnails   domain.ThumbnailRepository
	Usage        domain.UsageRepository
	Orchestrator *generation.Orchestrator
	Enhancer     prompt.Enhancer
	Store        *storage.FileStore
	Metrics      *infra.Metrics
	Providers    []string
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]any{"code": code, "message": message},
	})
}

func (a *App) currentUserID(r *http.Request) string {
	id, _ := middleware.UserIDFromContext(r.Context())
	return id
}
