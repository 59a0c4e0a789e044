package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"thumbgen/internal/adapter/repo"
	"thumbgen/internal/generation"
	"thumbgen/internal/http/handlers"
	"thumbgen/internal/http/httpapi"
	"thumbgen/internal/infra"
	"thumbgen/internal/infra/geoip"
	"thumbgen/internal/middleware"
	"thumbgen/internal/providers/dashscope"
	"thumbgen/internal/providers/genai"
	"thumbgen/internal/providers/image"
	"thumbgen/internal/providers/prompt"
	"thumbgen/internal/refimage"
	"thumbgen/internal/storage"
)

func main() {
	// .env is optional.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	if cfg.LogFile != "" {
		logger = infra.NewRotatingLogger(cfg.AppEnv, cfg.LogFile)
	}

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	storagePath, err := filepath.Abs(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.StoragePath).Msg("invalid storage path")
	}
	store, err := storage.NewFileStore(storagePath, cfg.PublicBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare image storage")
	}

	// Locale detection is optional; without a GeoIP database every request
	// falls back to the default locale.
	var countryLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable; locale detection disabled")
	} else if resolver != nil {
		defer resolver.Close()
		countryLookup = resolver.CountryCode
	}

	metrics := infra.NewMetrics()

	// Provider adapters. Every adapter registers even without credentials so
	// the registry can answer with a clear "not configured" error.
	genaiClient := genai.NewClient(genai.Options{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Logger:  &logger,
	})
	dashClient := dashscope.NewClient(dashscope.Options{
		APIKey:  cfg.DashScopeAPIKey,
		BaseURL: cfg.DashScopeBaseURL,
		Logger:  &logger,
	})

	registry := image.NewRegistry(cfg.ImageProvider)
	registry.Register(image.NewGeminiAdapter(genaiClient, logger), cfg.GeminiModel, "nano-banana")
	registry.Register(image.NewQwenAdapter(dashClient, cfg.QwenImageModel, logger), cfg.QwenImageModel)
	registry.Register(image.NewWanxAdapter(dashClient, cfg.WanxModel, logger), cfg.WanxModel, "wan")
	registry.Register(image.NewOpenAIAdapter(image.OpenAIOptions{
		APIKey:       cfg.OpenAIAPIKey,
		Model:        cfg.OpenAIImageModel,
		BaseURL:      cfg.OpenAIBaseURL,
		Organization: cfg.OpenAIOrg,
	}, logger), "dalle", cfg.OpenAIImageModel)
	registry.Register(image.NewSyntheticAdapter(logger))

	var enhancer prompt.Enhancer = prompt.NewStaticEnhancer()
	if cfg.PromptProvider == "openai" && cfg.OpenAIAPIKey != "" {
		modelEnhancer, err := prompt.NewOpenAIEnhancer(prompt.OpenAIOptions{
			APIKey:       cfg.OpenAIAPIKey,
			Model:        cfg.OpenAIPromptModel,
			BaseURL:      cfg.OpenAIBaseURL,
			Organization: cfg.OpenAIOrg,
			Fallback:     enhancer,
			OnFallback: func(reason string, err error) {
				logger.Warn().Err(err).Str("reason", reason).Msg("prompt enhancer fell back to static rules")
			},
			OnWarning: func(reason, detail string) {
				logger.Warn().Str("reason", reason).Str("detail", detail).Msg("prompt enhancer warning")
			},
		})
		if err != nil {
			logger.Warn().Err(err).Msg("openai prompt enhancer unavailable; using static rules")
		} else {
			enhancer = modelEnhancer
		}
	}

	thumbRepo := repo.NewThumbnailRepository(dbpool)
	usageRepo := repo.NewUsageRepository(dbpool)

	orchestrator := generation.NewOrchestrator(generation.Options{
		Registry:     registry,
		Poller:       generation.NewPoller(cfg.PollInterval, cfg.PollTimeout, logger),
		Materializer: generation.NewMaterializer(&http.Client{Timeout: cfg.FetchTimeout}, logger),
		Store:        store,
		Normalizer:   storage.NewNormalizer(cfg.NormalizeThumbs),
		Thumbnails:   thumbRepo,
		Usage:        usageRepo,
		Enhancer:     enhancer,
		References:   refimage.NewFetcher(refimage.Options{TTL: cfg.RefCacheTTL, Logger: &logger}),
		Metrics:      metrics,
		Logger:       &logger,
	})

	// Periodic sweep of abandoned temp files.
	janitor, err := infra.NewJanitor(logger)
	if err != nil {
		logger.Warn().Err(err).Msg("temp sweeper unavailable")
	} else {
		if err := janitor.ScheduleSweep(cfg.JanitorInterval, store.TempDir(), cfg.TempMaxAge); err != nil {
			logger.Warn().Err(err).Msg("failed to schedule temp sweep")
		}
		janitor.Start()
		defer func() {
			if err := janitor.Shutdown(); err != nil {
				logger.Warn().Err(err).Msg("janitor shutdown failed")
			}
		}()
	}

	app := &handlers.App{
		Config:       cfg,
		Logger:       logger,
		DB:           dbpool,
		Thumbnails:   thumbRepo,
		Usage:        usageRepo,
		Orchestrator: orchestrator,
		Enhancer:     enhancer,
		Store:        store,
		Metrics:      metrics,
		Providers:    registry.Names(),
	}

	router := httpapi.NewRouter(httpapi.Options{
		App:           app,
		CountryLookup: countryLookup,
		RateLimiter:   middleware.NewRateLimiter(cfg.RateLimitPerMin, time.Minute),
		StaticDir:     store.BasePath(),
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
