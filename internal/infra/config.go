package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string

	StoragePath     string
	PublicBaseURL   string
	NormalizeThumbs bool

	GeoIPDBPath string
	LogFile     string

	ImageProvider  string
	PromptProvider string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	DashScopeAPIKey  string
	DashScopeBaseURL string
	QwenImageModel   string
	WanxModel        string

	OpenAIAPIKey      string
	OpenAIImageModel  string
	OpenAIPromptModel string
	OpenAIBaseURL     string
	OpenAIOrg         string

	PollInterval time.Duration
	PollTimeout  time.Duration
	FetchTimeout time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   []string

	JanitorInterval time.Duration
	TempMaxAge      time.Duration
	RefCacheTTL     time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		StoragePath:     getEnv("STORAGE_PATH", "./storage"),
		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", "http://localhost:8080/files"),
		NormalizeThumbs: getEnvBool("THUMBNAIL_NORMALIZE", true),

		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),
		LogFile:     os.Getenv("LOG_FILE"),

		ImageProvider:  getEnv("IMAGE_PROVIDER", "gemini"),
		PromptProvider: getEnv("PROMPT_PROVIDER", "static"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),

		DashScopeAPIKey:  os.Getenv("DASHSCOPE_API_KEY"),
		DashScopeBaseURL: getEnv("DASHSCOPE_BASE_URL", "https://dashscope-intl.aliyuncs.com/api/v1"),
		QwenImageModel:   getEnv("QWEN_IMAGE_MODEL", "qwen-image-plus"),
		WanxModel:        getEnv("WANX_MODEL", "wanx2.1-t2i-turbo"),

		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIImageModel:  getEnv("OPENAI_IMAGE_MODEL", "dall-e-3"),
		OpenAIPromptModel: getEnv("OPENAI_PROMPT_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:         os.Getenv("OPENAI_ORG"),

		PollInterval: time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 2)),
		PollTimeout:  time.Second * time.Duration(getEnvInt("POLL_TIMEOUT_SECONDS", 120)),
		FetchTimeout: time.Second * time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 30)),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 180)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		AllowedOrigins:   splitList(os.Getenv("ALLOWED_ORIGINS")),

		JanitorInterval: time.Minute * time.Duration(getEnvInt("JANITOR_INTERVAL_MINUTES", 60)),
		TempMaxAge:      time.Hour * time.Duration(getEnvInt("TEMP_MAX_AGE_HOURS", 24)),
		RefCacheTTL:     time.Minute * time.Duration(getEnvInt("REF_CACHE_TTL_MINUTES", 15)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}

	if cfg.PollTimeout <= cfg.PollInterval {
		return nil, fmt.Errorf("POLL_TIMEOUT_SECONDS must exceed the poll interval")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
