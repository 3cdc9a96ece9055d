// Package config loads process configuration from environment variables,
// following an env-or-default convention for every setting.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const bytesPerMiB = 1 << 20

// Config is the full set of environment-derived settings for the
// docgen-server command.
type Config struct {
	Addr       string
	Version    string
	OutputRoot string
	CacheRoot  string

	CacheBackend    string // "fs", "redis", "mongo"
	RedisURL        string
	RedisPassword   string
	MongoURI        string
	MongoDatabase   string

	MaxInlinePreviewBytes int64
	MaxRetries            int

	SingleChunkLimit int
	ChunkLimit       int
	MaxSlides        int
	MaxAttempts      int

	EnableInfographics      bool
	EnableDecorativeHeaders bool
	EnableDiagrams          bool

	GeminiFallbackModels     []string
	MindMapFallbackModels    []string
	GeminiImageFallbackModel string

	RateLimitRPS   float64
	RateLimitBurst int

	ProviderTimeout time.Duration

	// GeminiAPIKey/OpenAIAPIKey/AnthropicAPIKey/ImageAPIKey are process-wide
	// fallbacks used when a request omits the corresponding X-*-Key header.
	GeminiAPIKey    string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	ImageAPIKey     string

	DefaultProvider   string
	DefaultModel      string
	DefaultImageModel string

	// CallTraceDir, if non-empty, enables per-call LLM prompt/response
	// tracing to a JSONL file under this directory.
	CallTraceDir string
}

// Load reads Config from the environment, applying the documented defaults.
func Load() Config {
	return Config{
		Addr:       envOr("DOCGEN_ADDR", ":8080"),
		Version:    envOr("DOCGEN_VERSION", "dev"),
		OutputRoot: envOr("DOCGEN_OUTPUT_ROOT", "./data/output"),
		CacheRoot:  envOr("DOCGEN_CACHE_ROOT", "./data/cache"),

		CacheBackend:  strings.ToLower(envOr("DOCGEN_CACHE_BACKEND", "fs")),
		RedisURL:      envOr("DOCGEN_REDIS_URL", "localhost:6379"),
		RedisPassword: os.Getenv("DOCGEN_REDIS_PASSWORD"),
		MongoURI:      envOr("DOCGEN_MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: envOr("DOCGEN_MONGO_DATABASE", "docgen"),

		MaxInlinePreviewBytes: envInt64Or("DOCGEN_MAX_INLINE_PREVIEW_BYTES", 8*bytesPerMiB),
		MaxRetries:            envIntOr("DOCGEN_MAX_RETRIES", 3),

		SingleChunkLimit: envIntOr("DOCGEN_SINGLE_CHUNK_LIMIT", 12000),
		ChunkLimit:       envIntOr("DOCGEN_CHUNK_LIMIT", 8000),
		MaxSlides:        envIntOr("DOCGEN_MAX_SLIDES", 20),
		MaxAttempts:      envIntOr("DOCGEN_MAX_ATTEMPTS", 3),

		EnableInfographics:      envBoolOr("DOCGEN_ENABLE_INFOGRAPHICS", true),
		EnableDecorativeHeaders: envBoolOr("DOCGEN_ENABLE_DECORATIVE_HEADERS", true),
		EnableDiagrams:          envBoolOr("DOCGEN_ENABLE_DIAGRAMS", true),

		GeminiFallbackModels:     envListOr("DOCGEN_GEMINI_FALLBACK_MODELS", []string{"gemini-2.5-flash", "gemini-2.0-flash"}),
		MindMapFallbackModels:    envListOr("DOCGEN_MINDMAP_FALLBACK_MODELS", []string{"gemini-2.5-flash"}),
		GeminiImageFallbackModel: envOr("DOCGEN_IMAGE_FALLBACK_MODEL", "gemini-2.0-flash"),

		RateLimitRPS:   envFloatOr("DOCGEN_RATE_LIMIT_RPS", 5),
		RateLimitBurst: envIntOr("DOCGEN_RATE_LIMIT_BURST", 10),

		ProviderTimeout: envDurationOr("DOCGEN_PROVIDER_TIMEOUT", 60*time.Second),

		GeminiAPIKey:    os.Getenv("DOCGEN_GEMINI_KEY"),
		OpenAIAPIKey:    os.Getenv("DOCGEN_OPENAI_KEY"),
		AnthropicAPIKey: os.Getenv("DOCGEN_ANTHROPIC_KEY"),
		ImageAPIKey:     os.Getenv("DOCGEN_IMAGE_KEY"),

		DefaultProvider:   envOr("DOCGEN_DEFAULT_PROVIDER", "gemini"),
		DefaultModel:      envOr("DOCGEN_DEFAULT_MODEL", "gemini-2.5-pro"),
		DefaultImageModel: envOr("DOCGEN_DEFAULT_IMAGE_MODEL", "gpt-image-1"),

		CallTraceDir: os.Getenv("DOCGEN_CALL_TRACE_DIR"),
	}
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOr(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envInt64Or(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func envFloatOr(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envBoolOr(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDurationOr(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func envListOr(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
