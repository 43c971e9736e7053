package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const DefaultGeminiAPIURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Gemini    GeminiConfig
	Storage   StorageConfig
	Worker    WorkerConfig
	Retry     RetryConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	JobFeed   JobFeedConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type GeminiConfig struct {
	APIKey          string
	APIURL          string
	Temperature     float64
	TopK            int
	TopP            float64
	MaxOutputTokens int
	RequestTimeout  time.Duration
	MaxPromptChars  int
}

type StorageConfig struct {
	UploadPath  string
	MaxFileSize int64
}

type WorkerConfig struct {
	Concurrency int
}

type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

type RateLimitConfig struct {
	PerSecond float64
	Burst     int
	IdleTTL   time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JobFeedConfig struct {
	URL      string
	CacheTTL time.Duration
	Timeout  time.Duration
}

type LogConfig struct {
	JSON  bool
	Debug bool
}

// Load reads .env when present and builds the configuration from the environment.
func Load() *Config {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "resume_analyzer"),
		},
		Gemini: GeminiConfig{
			APIKey:          getEnv("GEMINI_API_KEY", ""),
			APIURL:          getEnv("GEMINI_API_URL", DefaultGeminiAPIURL),
			Temperature:     getEnvAsFloat("GEMINI_TEMPERATURE", 0.4),
			TopK:            getEnvAsInt("GEMINI_TOP_K", 40),
			TopP:            getEnvAsFloat("GEMINI_TOP_P", 0.95),
			MaxOutputTokens: getEnvAsInt("GEMINI_MAX_OUTPUT_TOKENS", 8192),
			RequestTimeout:  getEnvAsDuration("GEMINI_REQUEST_TIMEOUT", "60s"),
			MaxPromptChars:  getEnvAsInt("MAX_PROMPT_CHARS", 200000),
		},
		Storage: StorageConfig{
			UploadPath:  getEnv("UPLOAD_PATH", "./uploads"),
			MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 10485760),
		},
		Worker: WorkerConfig{
			Concurrency: getEnvAsInt("WORKER_CONCURRENCY", 3),
		},
		Retry: RetryConfig{
			MaxAttempts:  getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			InitialDelay: getEnvAsDuration("RETRY_INITIAL_DELAY", "2s"),
		},
		RateLimit: RateLimitConfig{
			PerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 1),
			Burst:     getEnvAsInt("RATE_LIMIT_BURST", 5),
			IdleTTL:   getEnvAsDuration("RATE_LIMIT_IDLE_TTL", "10m"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JobFeed: JobFeedConfig{
			URL:      getEnv("JOB_FEED_URL", "https://remoteok.com/api"),
			CacheTTL: getEnvAsDuration("JOB_FEED_CACHE_TTL", "15m"),
			Timeout:  getEnvAsDuration("JOB_FEED_TIMEOUT", "10s"),
		},
		Log: LogConfig{
			JSON:  getEnvAsBool("LOG_JSON", false),
			Debug: getEnvAsBool("LOG_DEBUG", false),
		},
	}
}

// Validate reports settings the analysis pipeline cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.Gemini.APIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is not set"))
	}
	if c.Gemini.APIURL == "" {
		errs = append(errs, errors.New("GEMINI_API_URL is not set"))
	}
	if c.Gemini.MaxPromptChars <= 0 {
		errs = append(errs, fmt.Errorf("MAX_PROMPT_CHARS must be positive, got %d", c.Gemini.MaxPromptChars))
	}
	return errors.Join(errs...)
}

func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
