package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port      string
	Env       string
	JWTSecret string

	DB         DatabaseConfig
	Redis      RedisConfig
	AliExpress AliExpressConfig
	LLM        LLMConfig
	Telegram   TelegramConfig
	Pipeline   PipelineConfig
	Category   CategoryConfig
	Kafka      KafkaConfig
	Tracing    TracingConfig
	Admin      AdminConfig
	API        APIConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
// Search logs are only persisted when Host is set.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// Enabled reports whether a database is configured.
func (c DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Enabled reports whether Redis is configured.
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

// AliExpressCredential is one affiliate app key pair.
type AliExpressCredential struct {
	AppKey    string
	AppSecret string
}

// AliExpressConfig contains credentials and request defaults for the open platform.
type AliExpressConfig struct {
	BaseURL     string
	Credentials []AliExpressCredential

	DSAppKey      string
	DSAppSecret   string
	DSAccessToken string

	TrackingID     string
	Currency       string
	Language       string
	DetailLanguage string
	ShipToCountry  string

	MaxAttempts        int
	MaxRateLimitRounds int
	RetryDelay         time.Duration
	RateLimitDelay     time.Duration
	Timeout            time.Duration
}

// LLMConfig contains the chat completion endpoint used for translation and relevance.
type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// TelegramConfig contains the bot token and chat surface settings.
type TelegramConfig struct {
	Token             string
	ActivationPhrases []string
	MessagesPath      string
	PollTimeout       int
	Debug             bool
}

// PipelineConfig tunes the search pipeline.
type PipelineConfig struct {
	Candidates      int
	BatchSize       int
	MaxRelevant     int
	PageSize        int
	Workers         int
	RequestSpacing  time.Duration
	RankingPolicy   string
	UseHotProducts  bool
	SessionsPerChat int
	SearchTimeout   time.Duration
	ResultCacheTTL  time.Duration // 0 disables the result cache
}

// CategoryConfig controls the category taxonomy cache.
type CategoryConfig struct {
	Backend         string // file | redis
	Path            string
	TTL             time.Duration
	RefreshInterval time.Duration
}

// KafkaConfig enables search event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// TracingConfig enables Jaeger export when Endpoint is set.
type TracingConfig struct {
	ServiceName string
	Endpoint    string
}

// AdminConfig contains the single admin account for the dashboard API.
type AdminConfig struct {
	Email        string
	PasswordHash string
}

// APIConfig contains keys accepted by the public search API.
type APIConfig struct {
	Keys            []string
	AllowedHosts    []string
	SearchPerMinute int
	JWTTTL          time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; ignore error if file is missing so that production
	// environments relying solely on real environment variables keep working.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", ""),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// AliExpress: primary and alternate affiliate credentials
	cfg.AliExpress = AliExpressConfig{
		BaseURL:        getEnv("ALIEXPRESS_BASE_URL", "https://api-sg.aliexpress.com/sync"),
		DSAppKey:       getEnv("ALIEXPRESS_DS_APP_KEY", ""),
		DSAppSecret:    getEnv("ALIEXPRESS_DS_APP_SECRET", ""),
		DSAccessToken:  getEnv("ALIEXPRESS_DS_ACCESS_TOKEN", ""),
		TrackingID:     getEnv("ALIEXPRESS_TRACKING_ID", "default"),
		Currency:       getEnv("ALIEXPRESS_CURRENCY", "ILS"),
		Language:       getEnv("ALIEXPRESS_LANGUAGE", "EN"),
		DetailLanguage: getEnv("ALIEXPRESS_DETAIL_LANGUAGE", "he"),
		ShipToCountry:  getEnv("ALIEXPRESS_SHIP_TO", "IL"),

		MaxAttempts:        getEnvInt("ALIEXPRESS_MAX_ATTEMPTS", 4),
		MaxRateLimitRounds: getEnvInt("ALIEXPRESS_RATE_LIMIT_ROUNDS", 2),
	}
	for _, suffix := range []string{"", "_2"} {
		key := getEnv("ALIEXPRESS_APP_KEY"+suffix, "")
		secret := getEnv("ALIEXPRESS_APP_SECRET"+suffix, "")
		if key != "" && secret != "" {
			cfg.AliExpress.Credentials = append(cfg.AliExpress.Credentials, AliExpressCredential{AppKey: key, AppSecret: secret})
		}
	}

	// LLM
	cfg.LLM = LLMConfig{
		BaseURL: getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		APIKey:  getEnv("LLM_API_KEY", ""),
		Model:   getEnv("LLM_MODEL", "gpt-4o-mini"),
	}

	// Telegram
	cfg.Telegram = TelegramConfig{
		Token:             getEnv("TELEGRAM_BOT_TOKEN", ""),
		ActivationPhrases: getEnvList("TELEGRAM_ACTIVATION_PHRASES", "חפש לי,מצא לי"),
		MessagesPath:      getEnv("MESSAGES_PATH", ""),
		PollTimeout:       getEnvInt("TELEGRAM_POLL_TIMEOUT", 60),
		Debug:             getEnvBool("TELEGRAM_DEBUG", false),
	}

	// Pipeline
	cfg.Pipeline = PipelineConfig{
		Candidates:      getEnvInt("PIPELINE_CANDIDATES", 49),
		BatchSize:       getEnvInt("PIPELINE_BATCH_SIZE", 10),
		MaxRelevant:     getEnvInt("PIPELINE_MAX_RELEVANT", 4),
		PageSize:        getEnvInt("PIPELINE_PAGE_SIZE", 4),
		Workers:         getEnvInt("PIPELINE_WORKERS", 10),
		RankingPolicy:   getEnv("RANKING_POLICY", "normalized"),
		UseHotProducts:  getEnvBool("PIPELINE_HOT_PRODUCTS", false),
		SessionsPerChat: getEnvInt("SESSIONS_PER_CHAT", 10),
	}

	// Category cache
	cfg.Category = CategoryConfig{
		Backend: getEnv("CATEGORY_CACHE_BACKEND", "file"),
		Path:    getEnv("CATEGORY_CACHE_PATH", "data/category.json"),
	}

	// Kafka
	cfg.Kafka = KafkaConfig{
		Brokers: getEnvList("KAFKA_BROKERS", ""),
		Topic:   getEnv("KAFKA_SEARCH_TOPIC", "dealfinder.search"),
	}

	// Tracing
	cfg.Tracing = TracingConfig{
		ServiceName: getEnv("TRACING_SERVICE_NAME", "dealfinder"),
		Endpoint:    getEnv("JAEGER_ENDPOINT", ""),
	}

	// Admin
	cfg.Admin = AdminConfig{
		Email:        getEnv("ADMIN_EMAIL", ""),
		PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
	}

	// Public API keys
	cfg.API = APIConfig{
		Keys:            getEnvList("API_KEYS", ""),
		AllowedHosts:    getEnvList("CORS_ALLOWED_HOSTS", "localhost:3000,127.0.0.1:3000"),
		SearchPerMinute: getEnvInt("API_SEARCH_PER_MINUTE", 6),
	}

	// Durations
	var err error
	if cfg.AliExpress.RetryDelay, err = parseDurationEnv("ALIEXPRESS_RETRY_DELAY", "1s"); err != nil {
		return nil, fmt.Errorf("invalid ALIEXPRESS_RETRY_DELAY: %w", err)
	}
	if cfg.AliExpress.RateLimitDelay, err = parseDurationEnv("ALIEXPRESS_RATE_LIMIT_DELAY", "3s"); err != nil {
		return nil, fmt.Errorf("invalid ALIEXPRESS_RATE_LIMIT_DELAY: %w", err)
	}
	if cfg.AliExpress.Timeout, err = parseDurationEnv("ALIEXPRESS_TIMEOUT", "30s"); err != nil {
		return nil, fmt.Errorf("invalid ALIEXPRESS_TIMEOUT: %w", err)
	}
	if cfg.LLM.Timeout, err = parseDurationEnv("LLM_TIMEOUT", "30s"); err != nil {
		return nil, fmt.Errorf("invalid LLM_TIMEOUT: %w", err)
	}
	if cfg.Pipeline.RequestSpacing, err = parseDurationEnv("PIPELINE_REQUEST_SPACING", "100ms"); err != nil {
		return nil, fmt.Errorf("invalid PIPELINE_REQUEST_SPACING: %w", err)
	}
	if cfg.Pipeline.SearchTimeout, err = parseDurationEnv("PIPELINE_SEARCH_TIMEOUT", "3m"); err != nil {
		return nil, fmt.Errorf("invalid PIPELINE_SEARCH_TIMEOUT: %w", err)
	}
	if cfg.Pipeline.ResultCacheTTL, err = parseDurationEnv("PIPELINE_RESULT_CACHE_TTL", "10m"); err != nil {
		return nil, fmt.Errorf("invalid PIPELINE_RESULT_CACHE_TTL: %w", err)
	}
	if cfg.Category.TTL, err = parseDurationEnv("CATEGORY_CACHE_TTL", "24h"); err != nil {
		return nil, fmt.Errorf("invalid CATEGORY_CACHE_TTL: %w", err)
	}
	if cfg.API.JWTTTL, err = parseDurationEnv("JWT_TTL", "24h"); err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	if cfg.Category.RefreshInterval, err = parseDurationEnv("CATEGORY_REFRESH_INTERVAL", "1h"); err != nil {
		return nil, fmt.Errorf("invalid CATEGORY_REFRESH_INTERVAL: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.AliExpress.Credentials) == 0 {
		return errors.New("aliexpress configuration incomplete: ensure ALIEXPRESS_APP_KEY and ALIEXPRESS_APP_SECRET are set")
	}
	if c.DB.Enabled() && (c.DB.User == "" || c.DB.Name == "") {
		return errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}
	if c.Admin.Email != "" && c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set when ADMIN_EMAIL is configured")
	}
	if c.Category.Backend != "file" && c.Category.Backend != "redis" {
		return fmt.Errorf("invalid CATEGORY_CACHE_BACKEND %q: expected file or redis", c.Category.Backend)
	}
	if c.Category.Backend == "redis" && !c.Redis.Enabled() {
		return errors.New("CATEGORY_CACHE_BACKEND=redis requires REDIS_HOST")
	}
	if c.Pipeline.PageSize <= 0 || c.Pipeline.MaxRelevant <= 0 {
		return errors.New("PIPELINE_PAGE_SIZE and PIPELINE_MAX_RELEVANT must be positive")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key, def string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, def), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
