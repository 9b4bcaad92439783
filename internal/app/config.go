package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/proofstake-backend/internal/data/db"
	"github.com/yungbote/proofstake-backend/internal/observability"
	"github.com/yungbote/proofstake-backend/internal/platform/llm"
	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

type Config struct {
	LogMode string `env:"LOG_MODE" envDefault:"development" yaml:"log_mode"`
	Port    string `env:"PORT" envDefault:"8080" yaml:"port"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," yaml:"cors_allowed_origins"`

	DBDriver         string `env:"DB_DRIVER" envDefault:"postgres" yaml:"db_driver"`
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost" yaml:"postgres_host"`
	PostgresPort     string `env:"POSTGRES_PORT" envDefault:"5432" yaml:"postgres_port"`
	PostgresUser     string `env:"POSTGRES_USER" yaml:"postgres_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" yaml:"-"`
	PostgresName     string `env:"POSTGRES_NAME" envDefault:"proofstake" yaml:"postgres_name"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable" yaml:"postgres_sslmode"`
	SQLitePath       string `env:"SQLITE_PATH" envDefault:"proofstake.db" yaml:"sqlite_path"`
	DBLogQueries     bool   `env:"DB_LOG_QUERIES" yaml:"db_log_queries"`

	JWTSecretKey    string `env:"JWT_SECRET_KEY" yaml:"-"`
	JWTIssuer       string `env:"JWT_ISSUER" yaml:"jwt_issuer"`
	AccessTokenTTL  int    `env:"ACCESS_TOKEN_TTL" envDefault:"3600" yaml:"access_token_ttl"`

	LLMBaseURL        string   `env:"LLM_BASE_URL" yaml:"llm_base_url"`
	LLMModel          string   `env:"LLM_MODEL" envDefault:"gpt-4o-mini" yaml:"llm_model"`
	LLMAPIKeys        []string `env:"LLM_API_KEYS" envSeparator:"," yaml:"llm_api_keys"`
	LLMTimeoutSeconds int      `env:"LLM_TIMEOUT_SECONDS" envDefault:"60" yaml:"llm_timeout_seconds"`
	LLMTemperature    *float64 `env:"LLM_TEMPERATURE" yaml:"llm_temperature"`
	LLMRateLimitRPS   float64  `env:"LLM_RATE_LIMIT_RPS" yaml:"llm_rate_limit_rps"`
	LLMRateBurst      int      `env:"LLM_RATE_BURST" envDefault:"1" yaml:"llm_rate_burst"`

	RedisAddr     string `env:"REDIS_ADDR" yaml:"redis_addr"`
	RedisPassword string `env:"REDIS_PASSWORD" yaml:"-"`
	RabbitMQURI   string `env:"RABBITMQ_URI" yaml:"-"`

	ExamQuestionCount    int `env:"EXAM_QUESTION_COUNT" envDefault:"7" yaml:"exam_question_count"`
	GradingConcurrency   int `env:"GRADING_CONCURRENCY" envDefault:"4" yaml:"grading_concurrency"`
	GradeTimeoutSeconds  int `env:"GRADE_TIMEOUT_SECONDS" envDefault:"300" yaml:"grade_timeout_seconds"`
	SweepIntervalSeconds int `env:"SWEEP_INTERVAL_SECONDS" envDefault:"60" yaml:"sweep_interval_seconds"`
	SweepBatchSize       int `env:"SWEEP_BATCH_SIZE" envDefault:"100" yaml:"sweep_batch_size"`
	SweepConcurrency     int `env:"SWEEP_CONCURRENCY" envDefault:"2" yaml:"sweep_concurrency"`

	OtelEnabled     bool    `env:"OTEL_ENABLED" yaml:"otel_enabled"`
	OtelServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"proofstake-backend" yaml:"otel_service_name"`
	OtelEnvironment string  `env:"OTEL_ENVIRONMENT" yaml:"otel_environment"`
	OtelEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" yaml:"otel_endpoint"`
	OtelHeaders     string  `env:"OTEL_EXPORTER_OTLP_HEADERS" yaml:"-"`
	OtelInsecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" yaml:"otel_insecure"`
	OtelSampleRatio float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1" yaml:"otel_sample_ratio"`
}

// LoadConfig reads .env when present, then the environment, then the YAML file named by
// CONFIG_PATH. Keys set in the overlay replace environment values.
func LoadConfig(log *logger.Logger) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("could not load .env", "error", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		if err := loadYAMLOverlay(path, &cfg); err != nil {
			return Config{}, err
		}
		log.Info("config overlay loaded", "path", path)
	}
	return cfg.validate()
}

func loadYAMLOverlay(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config overlay: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config overlay %s: %w", path, err)
	}
	return nil
}

func (c Config) validate() (Config, error) {
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		return c, fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.ExamQuestionCount < 5 || c.ExamQuestionCount > 10 {
		return c, fmt.Errorf("EXAM_QUESTION_COUNT must be 5-10, got %d", c.ExamQuestionCount)
	}
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = 3600
	}
	if c.GradeTimeoutSeconds <= 0 {
		c.GradeTimeoutSeconds = 300
	}
	return c, nil
}

func (c Config) DB() db.Config {
	return db.Config{
		Driver:             c.DBDriver,
		PostgresHost:       c.PostgresHost,
		PostgresPort:       c.PostgresPort,
		PostgresUser:       c.PostgresUser,
		PostgresPassword:   c.PostgresPassword,
		PostgresName:       c.PostgresName,
		PostgresSSLMode:    c.PostgresSSLMode,
		SQLitePath:         c.SQLitePath,
		SlowQueryThreshold: 200 * time.Millisecond,
		LogQueries:         c.DBLogQueries,
	}
}

func (c Config) LLM() llm.Config {
	return llm.Config{
		BaseURL:      c.LLMBaseURL,
		Model:        c.LLMModel,
		APIKeys:      c.LLMAPIKeys,
		Timeout:      time.Duration(c.LLMTimeoutSeconds) * time.Second,
		Temperature:  c.LLMTemperature,
		RateLimitRPS: c.LLMRateLimitRPS,
		RateBurst:    c.LLMRateBurst,
	}
}

func (c Config) Otel() observability.OtelConfig {
	return observability.OtelConfig{
		Enabled:     c.OtelEnabled,
		ServiceName: c.OtelServiceName,
		Environment: c.OtelEnvironment,
		Endpoint:    c.OtelEndpoint,
		Headers:     c.OtelHeaders,
		Insecure:    c.OtelInsecure,
		SampleRatio: c.OtelSampleRatio,
	}
}
