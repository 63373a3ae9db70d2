package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Breaker  BreakerConfig
	Log      LogConfig
}

type ServerConfig struct {
	HTTPPort           string
	GRPCPort           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MigrationsPath string
}

// RedisConfig configures the order read cache. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// KafkaConfig configures outbox publishing. No brokers means events stay in the outbox.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	PollInterval time.Duration
}

type BreakerConfig struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

type LogConfig struct {
	Level string
}

// Load reads configuration from the environment. Values from the given .env files (".env" when
// none are given) are applied first; variables already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	explicit := len(envFiles) > 0
	if !explicit {
		envFiles = []string{".env"}
	}
	if err := godotenv.Load(envFiles...); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env files: %w", err)
		}
	}

	p := &parser{}
	cfg := &Config{
		Server: ServerConfig{
			HTTPPort:           getEnv("HTTP_PORT", "8080"),
			GRPCPort:           getEnv("GRPC_PORT", "50055"),
			RequestTimeout:     p.duration("REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout:    p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxRequestBodySize: int64(p.int("MAX_REQUEST_BODY_SIZE", 1<<20)), // 1MB
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           p.int("DB_PORT", 5432),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			Name:           getEnv("DB_NAME", "backoffice"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "./orders-service/internal/repository/migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       p.int("REDIS_DB", 0),
			CacheTTL: p.duration("ORDER_CACHE_TTL", 15*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:      splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:        getEnv("KAFKA_TOPIC", "orders-outbox"),
			PollInterval: p.duration("OUTBOX_POLL_INTERVAL", time.Second),
		},
		Breaker: BreakerConfig{
			FailureThreshold: uint32(p.int("BREAKER_FAILURE_THRESHOLD", 5)),
			OpenTimeout:      p.duration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT out of range: %d", c.Database.Port))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.Kafka.PollInterval <= 0 {
		errs = append(errs, errors.New("OUTBOX_POLL_INTERVAL must be positive"))
	}
	if c.Breaker.FailureThreshold == 0 {
		errs = append(errs, errors.New("BREAKER_FAILURE_THRESHOLD must be positive"))
	}
	return errors.Join(errs...)
}

// DSN renders the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser collects conversion errors so every bad variable is reported at once.
type parser struct {
	errs []error
}

func (p *parser) int(key string, defaultValue int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return v
}

func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultValue
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
