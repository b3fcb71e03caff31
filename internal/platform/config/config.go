package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const hoursPerDay = 24

// Vector index backends.
const (
	VectorBackendPgvector = "pgvector"
	VectorBackendQdrant   = "qdrant"
)

// Validation errors.
var (
	ErrUnknownVectorBackend = errors.New("unknown vector backend")
	ErrNonPositiveSetting   = errors.New("setting must be positive")
	ErrScoreOutOfRange      = errors.New("score must be within [0, 1]")
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`
	HealthPort  int    `env:"HEALTH_PORT" envDefault:"8080"`
	Timezone    string `env:"TIMEZONE" envDefault:"UTC"`

	// Database pool
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"25"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"5"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"1m"`

	// Telegram user client (channel reader)
	TGAPIID       int    `env:"TG_API_ID"`
	TGAPIHash     string `env:"TG_API_HASH"`
	TGPhone       string `env:"TG_PHONE"`
	TG2FAPassword string `env:"TG_2FA_PASSWORD"`
	TGSessionPath string `env:"TG_SESSION_PATH" envDefault:"./tg.session"`
	TGProxyURL    string `env:"TG_PROXY_URL"`

	// Telegram bot (delivery)
	BotToken string `env:"BOT_TOKEN"`

	// Provider credentials
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	GoogleAPIKey    string `env:"GOOGLE_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	RateLimitRPS    int    `env:"RATE_LIMIT_RPS" envDefault:"1"`

	// Embeddings
	EmbeddingProviderOrder string `env:"EMBEDDING_PROVIDER_ORDER" envDefault:"openai,google"`
	EmbeddingModel         string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDimensions    int    `env:"EMBEDDING_DIMENSIONS" envDefault:"1536"`

	// Generation
	LLMProviderOrder string  `env:"LLM_PROVIDER_ORDER" envDefault:"google,openai,anthropic"`
	LLMModel         string  `env:"LLM_MODEL" envDefault:"gemini-2.5-flash"`
	LLMTemperature   float32 `env:"LLM_TEMPERATURE" envDefault:"0.5"`

	// Vector index
	VectorBackend    string        `env:"VECTOR_BACKEND" envDefault:"pgvector"`
	QdrantHost       string        `env:"QDRANT_HOST" envDefault:"localhost"`
	QdrantPort       int           `env:"QDRANT_PORT" envDefault:"6334"`
	QdrantAPIKey     string        `env:"QDRANT_API_KEY"`
	QdrantUseTLS     bool          `env:"QDRANT_USE_TLS" envDefault:"false"`
	QdrantCollection string        `env:"QDRANT_COLLECTION" envDefault:"tg-summarizer"`
	VectorRetention  time.Duration `env:"VECTOR_RETENTION" envDefault:"720h"`

	// Ingestion
	IngestDaysBack  int           `env:"INGEST_DAYS_BACK" envDefault:"1"`
	IngestPageSize  int           `env:"INGEST_PAGE_SIZE" envDefault:"50"`
	InactiveAfter   time.Duration `env:"INACTIVE_AFTER" envDefault:"168h"`
	MaxFloodRetries int           `env:"MAX_FLOOD_RETRIES" envDefault:"3"`

	// Relevance filter
	FilterDaysBack int     `env:"FILTER_DAYS_BACK" envDefault:"1"`
	FilterTopK     int     `env:"FILTER_TOP_K" envDefault:"30"`
	FilterMinScore float32 `env:"FILTER_MIN_SCORE" envDefault:"0.3"`

	// Digest
	DigestDaysBack     int `env:"DIGEST_DAYS_BACK" envDefault:"1"`
	DigestBatchSize    int `env:"DIGEST_BATCH_SIZE" envDefault:"10"`
	DigestMinGroupSize int `env:"DIGEST_MIN_GROUP_SIZE" envDefault:"1"`
	DigestSourceLimit  int `env:"DIGEST_SOURCE_LIMIT" envDefault:"100"`

	// Scheduling
	ScheduleFile    string        `env:"SCHEDULE_FILE"`
	CollectTimes    []string      `env:"COLLECT_TIMES" envSeparator:"," envDefault:"07:30"`
	DigestTimes     []string      `env:"DIGEST_TIMES" envSeparator:"," envDefault:"08:00"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"24h"`
}

// Load reads configuration from the environment, honouring an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	applyLegacyAliases(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	switch c.VectorBackend {
	case VectorBackendPgvector, VectorBackendQdrant:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownVectorBackend, c.VectorBackend)
	}

	positives := map[string]int{
		"INGEST_PAGE_SIZE":      c.IngestPageSize,
		"FILTER_TOP_K":          c.FilterTopK,
		"DIGEST_BATCH_SIZE":     c.DigestBatchSize,
		"DIGEST_MIN_GROUP_SIZE": c.DigestMinGroupSize,
		"EMBEDDING_DIMENSIONS":  c.EmbeddingDimensions,
	}

	for key, val := range positives {
		if val <= 0 {
			return fmt.Errorf("%s: %w", key, ErrNonPositiveSetting)
		}
	}

	if c.FilterMinScore < 0 || c.FilterMinScore > 1 {
		return fmt.Errorf("FILTER_MIN_SCORE: %w", ErrScoreOutOfRange)
	}

	return nil
}

// IsLocal reports whether the process runs in a developer environment.
func (c *Config) IsLocal() bool {
	return c.AppEnv == "local"
}

// Older deployments used different variable names; the new names win when both are set.
func applyLegacyAliases(cfg *Config) {
	if !hasEnv("OPENAI_API_KEY") {
		setStringFromEnv("LLM_API_KEY", &cfg.OpenAIAPIKey)
	}

	if !hasEnv("DIGEST_BATCH_SIZE") {
		setIntFromEnv("WORKER_BATCH_SIZE", &cfg.DigestBatchSize)
	}

	if !hasEnv("FILTER_MIN_SCORE") {
		setFloat32FromEnv("SIMILARITY_THRESHOLD", &cfg.FilterMinScore)
	}

	if !hasEnv("INACTIVE_AFTER") {
		setDaysAsDuration("INACTIVE_DAYS", &cfg.InactiveAfter)
	}

	if !hasEnv("VECTOR_RETENTION") {
		setDaysAsDuration("VECTOR_RETENTION_DAYS", &cfg.VectorRetention)
	}

	if !hasEnv("CLEANUP_INTERVAL") {
		setDurationFromEnv("VECTOR_CLEANUP_INTERVAL", &cfg.CleanupInterval)
	}
}

func hasEnv(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func setStringFromEnv(key string, target *string) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	val = strings.TrimSpace(val)
	if val == "" {
		return
	}

	*target = val
}

func setIntFromEnv(key string, target *int) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return
	}

	*target = parsed
}

func setFloat32FromEnv(key string, target *float32) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 32)
	if err != nil {
		return
	}

	*target = float32(parsed)
}

func setDurationFromEnv(key string, target *time.Duration) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil {
		return
	}

	*target = parsed
}

func setDaysAsDuration(key string, target *time.Duration) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil || parsed <= 0 {
		return
	}

	*target = time.Duration(parsed*hoursPerDay) * time.Hour
}
