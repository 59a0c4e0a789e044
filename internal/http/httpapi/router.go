package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"thumbgen/internal/http/handlers"
	"thumbgen/internal/middleware"
)

// Options wires the router. CountryLookup and RateLimiter may be nil;
// StaticDir empty disables the /files mount.
type Options struct {
	App           *handlers.App
	CountryLookup middleware.CountryLookup
	RateLimiter   *middleware.RateLimiter
	StaticDir     string
}

func NewRouter(opts Options) http.Handler {
	app := opts.App
	r := chi.NewRouter()

	// AccessLog sits inside I18N so the resolved country reaches the log line,
	// and outside Recoverer so recovered panics still log as 500s.
	r.Use(
		middleware.RequestID,
		chimiddleware.RealIP,
		middleware.CORS(app.Config.AllowedOrigins),
		middleware.I18N(opts.CountryLookup),
		middleware.AccessLog(app.Logger),
		chimiddleware.Recoverer,
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/readyz", app.Ready)

	// Stored images are public by URL; the path embeds a UUID per image.
	if opts.StaticDir != "" {
		files := http.StripPrefix("/files/", http.FileServer(http.Dir(opts.StaticDir)))
		r.Get("/files/*", files.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(app.Config.JWTSecret))
		if opts.RateLimiter != nil {
			r.Use(opts.RateLimiter.Handler)
		}

		r.Route("/v1/thumbnails", func(r chi.Router) {
			r.Post("/", app.ThumbnailsGenerate)
			r.Get("/", app.ThumbnailsList)
			r.Get("/archive", app.ThumbnailsArchive)
			r.Get("/{id}", app.ThumbnailGet)
			r.Delete("/{id}", app.ThumbnailDelete)
			r.Get("/{id}/download", app.ThumbnailDownload)
		})

		r.Route("/v1/prompts", func(r chi.Router) {
			r.Post("/enhance", app.PromptEnhance)
			r.Get("/ideas", app.PromptIdeas)
		})

		r.Get("/v1/providers", app.ProvidersList)
		r.Get("/v1/metrics/summary", app.MetricsSummary)
	})

	return r
}
