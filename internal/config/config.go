// Package config loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	CartStoreMemory   = "memory"
	CartStoreFile     = "file"
	CartStoreRedis    = "redis"
	CartStorePostgres = "postgres"

	OrderSinkHTTP  = "http"
	OrderSinkKafka = "kafka"
)

type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CORSOrigins     string        `env:"CORS_ORIGINS" envDefault:"*"`

	CatalogPath  string `env:"CATALOG_PATH" envDefault:"data/products.json" validate:"required"`
	BranchesPath string `env:"BRANCHES_PATH" envDefault:"data/branches.json"`
	AssetsBase   string `env:"ASSETS_BASE_PATH" envDefault:"/"`
	DeliveryFee  int64  `env:"DELIVERY_FEE" envDefault:"100" validate:"gte=0"`

	CartStore   string        `env:"CART_STORE" envDefault:"memory" validate:"oneof=memory file redis postgres"`
	CartDir     string        `env:"CART_DIR" envDefault:"data/carts" validate:"required_if=CartStore file"`
	CartTTL     time.Duration `env:"CART_TTL" envDefault:"168h" validate:"gt=0"`
	AsyncWrites bool          `env:"CART_ASYNC_WRITES" envDefault:"true"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379" validate:"required_if=CartStore redis"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	DatabaseURL string `env:"DATABASE_URL" validate:"required_if=CartStore postgres"`

	OrderSink        string        `env:"ORDER_SINK" envDefault:"http" validate:"oneof=http kafka"`
	OrderSinkURL     string        `env:"ORDER_SINK_URL" validate:"required_if=OrderSink http"`
	OrderSinkTimeout time.Duration `env:"ORDER_SINK_TIMEOUT" envDefault:"10s"`
	RequireAck       bool          `env:"ORDER_REQUIRE_ACK" envDefault:"false"`
	BreakerThreshold uint32        `env:"ORDER_BREAKER_THRESHOLD" envDefault:"5"`
	BreakerCoolDown  time.Duration `env:"ORDER_BREAKER_COOLDOWN" envDefault:"30s"`
	KafkaBrokers     []string      `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:"," validate:"required_if=OrderSink kafka"`
	OrderTopic       string        `env:"ORDER_TOPIC" envDefault:"orders.submitted"`
	ClearDelay       time.Duration `env:"CHECKOUT_CLEAR_DELAY" envDefault:"2s"`

	Log LogConfig `envPrefix:"LOG_"`
}

type LogConfig struct {
	Level      string `env:"LEVEL" envDefault:"info"`
	Format     string `env:"FORMAT" envDefault:"json" validate:"oneof=json text"`
	File       string `env:"FILE"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB" envDefault:"100"`
	MaxBackups int    `env:"MAX_BACKUPS" envDefault:"3"`
	MaxAgeDays int    `env:"MAX_AGE_DAYS" envDefault:"28"`
}

// Load reads the given .env files (or ./.env when none are named and it
// exists), then the process environment, and validates the result.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if len(files) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("invalid config: log level %q: %w", c.Log.Level, err)
	}
	return nil
}
