package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port        string `default:"4000"`
	Environment string `default:"development"`
	LogLevel    string `default:"error" validate:"oneof=debug info warn error"`

	MFAPIURL         string        `default:"https://api.mfapi.in" validate:"required,url"`
	HoldingsAPIURL   string        `validate:"omitempty,url"`
	HTTPTimeout      time.Duration `default:"15s"`
	FetchConcurrency int           `default:"8" validate:"min=1,max=64"`

	RiskFreeRate   float64 `default:"0.06" validate:"gte=0,lt=1"`
	BenchmarkCode  string  `default:"147666" validate:"required,numeric"`
	DefaultYears   int     `default:"3" validate:"min=1,max=30"`
	MaxScreenFunds int     `default:"100" validate:"min=1"`

	UniverseRefreshCron string `default:"0 6 * * *"`
	RescreenCron        string `default:"30 6 * * 1-5"`

	MongoURI         string
	Database         string `default:"mfanalytics"`
	ScreenCollection string `default:"screens"`

	EventBackend string `default:"none" validate:"oneof=none kafka rabbitmq"`
	Kafka        KafkaConfig
	RabbitMQ     RabbitMQConfig

	CloudinaryURL string

	SentryDSN        string
	SentrySampleRate float64 `default:"1.0" validate:"gte=0,lte=1"`
}

type KafkaConfig struct {
	BootstrapServers  string
	Topic             string `default:"mfanalytics.screens"`
	Partitions        int    `default:"1" validate:"min=1"`
	ReplicationFactor int    `default:"1" validate:"min=1"`
}

type RabbitMQConfig struct {
	Server string `default:"localhost"`
	Port   string `default:"5672"`
	User   string `default:"guest"`
	Pass   string `default:"guest"`
	Queue  string `default:"mfanalytics"`
}

// Load reads .env when present, applies defaults and then environment
// overrides, and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	cfg.Port = GetEnv("PORT", cfg.Port)
	cfg.Environment = GetEnv("ENVIRONMENT", cfg.Environment)
	cfg.LogLevel = GetEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.MFAPIURL = GetEnv("MF_API_URL", cfg.MFAPIURL)
	cfg.HoldingsAPIURL = GetEnv("HOLDINGS_API_URL", cfg.HoldingsAPIURL)
	cfg.HTTPTimeout = getEnvAsDuration("HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.FetchConcurrency = getEnvAsInt("FETCH_CONCURRENCY", cfg.FetchConcurrency)

	cfg.RiskFreeRate = getEnvAsFloat("RISK_FREE_RATE", cfg.RiskFreeRate)
	cfg.BenchmarkCode = GetEnv("BENCHMARK_CODE", cfg.BenchmarkCode)
	cfg.DefaultYears = getEnvAsInt("DEFAULT_YEARS", cfg.DefaultYears)
	cfg.MaxScreenFunds = getEnvAsInt("MAX_SCREEN_FUNDS", cfg.MaxScreenFunds)

	cfg.UniverseRefreshCron = GetEnv("UNIVERSE_REFRESH_CRON", cfg.UniverseRefreshCron)
	cfg.RescreenCron = GetEnv("RESCREEN_CRON", cfg.RescreenCron)

	cfg.MongoURI = GetEnv("MONGO_URI", cfg.MongoURI)
	cfg.Database = GetEnv("DATABASE", cfg.Database)
	cfg.ScreenCollection = GetEnv("SCREEN_COLLECTION", cfg.ScreenCollection)

	cfg.EventBackend = GetEnv("EVENT_BACKEND", cfg.EventBackend)
	cfg.Kafka.BootstrapServers = GetEnv("KAFKA_BOOTSTRAPSERVERS", cfg.Kafka.BootstrapServers)
	cfg.Kafka.Topic = GetEnv("KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.Kafka.Partitions = getEnvAsInt("KAFKA_TOPIC_PARTITIONS", cfg.Kafka.Partitions)
	cfg.Kafka.ReplicationFactor = getEnvAsInt("KAFKA_TOPIC_REPL_FACTOR", cfg.Kafka.ReplicationFactor)
	cfg.RabbitMQ.Server = GetEnv("RABBITMQ_SERVER", cfg.RabbitMQ.Server)
	cfg.RabbitMQ.Port = GetEnv("RABBITMQ_PORT", cfg.RabbitMQ.Port)
	cfg.RabbitMQ.User = GetEnv("RABBITMQ_USER", cfg.RabbitMQ.User)
	cfg.RabbitMQ.Pass = GetEnv("RABBITMQ_PASS", cfg.RabbitMQ.Pass)
	cfg.RabbitMQ.Queue = GetEnv("RABBITMQ_QUEUE", cfg.RabbitMQ.Queue)

	cfg.CloudinaryURL = GetEnv("CLOUDINARY_URL", cfg.CloudinaryURL)
	cfg.SentryDSN = GetEnv("SENTRY_DSN", cfg.SentryDSN)
	cfg.SentrySampleRate = getEnvAsFloat("SENTRY_SAMPLE_RATE", cfg.SentrySampleRate)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.EventBackend == "kafka" && c.Kafka.BootstrapServers == "" {
		return fmt.Errorf("invalid config: KAFKA_BOOTSTRAPSERVERS is required when EVENT_BACKEND=kafka")
	}
	return nil
}

// GetEnv retrieves the environment variable with a default value if not set.
func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
