package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	PayPalLiveBase    = "https://api-m.paypal.com"
	PayPalSandboxBase = "https://api-m.sandbox.paypal.com"
)

type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	APIBase      string
}

type MailConfig struct {
	Host        string
	Port        int
	User        string
	AppPassword string
	Operator    string
}

type RatesConfig struct {
	APIURL   string
	GeoURL   string
	CacheTTL time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

type KafkaConfig struct {
	Broker string
	Topic  string
}

// Config is built once at startup and handed to constructors. Nothing reads
// the environment after Load returns.
type Config struct {
	Port            string
	CatalogPath     string
	StaticDir       string
	JaegerEndpoint  string
	UpstreamTimeout time.Duration

	PayPal PayPalConfig
	Mail   MailConfig
	Rates  RatesConfig
	Redis  RedisConfig
	Kafka  KafkaConfig
}

// LoadENV reads .env when GO_ENV is unset or "development". A missing file is not an error.
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")
	if goEnv == "" || goEnv == "development" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}
	return nil
}

func Load() (*Config, error) {
	if err := LoadENV(); err != nil {
		return nil, err
	}

	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	timeout, err := time.ParseDuration(getEnv("UPSTREAM_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
	}
	cacheTTL, err := time.ParseDuration(getEnv("RATES_CACHE_TTL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATES_CACHE_TTL: %w", err)
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8888"),
		CatalogPath:     getEnv("CATALOG_PATH", "public/data/courses.json"),
		StaticDir:       getEnv("STATIC_DIR", "public"),
		JaegerEndpoint:  os.Getenv("JAEGER_ENDPOINT"),
		UpstreamTimeout: timeout,
		PayPal: PayPalConfig{
			ClientID:     os.Getenv("PAYPAL_CLIENT_ID"),
			ClientSecret: os.Getenv("PAYPAL_CLIENT_SECRET"),
			APIBase:      payPalBase(os.Getenv("PAYPAL_API_BASE"), os.Getenv("PAYPAL_MODE")),
		},
		Mail: MailConfig{
			Host:        getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:        smtpPort,
			User:        os.Getenv("GMAIL_USER"),
			AppPassword: os.Getenv("GMAIL_APP_PASSWORD"),
			Operator:    os.Getenv("OPERATOR_EMAIL"),
		},
		Rates: RatesConfig{
			APIURL:   getEnv("RATES_API_URL", "https://api.frankfurter.app"),
			GeoURL:   getEnv("GEO_API_URL", "http://ip-api.com"),
			CacheTTL: cacheTTL,
		},
		Redis: RedisConfig{
			Host:     os.Getenv("REDIS_HOST"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Kafka: KafkaConfig{
			Broker: os.Getenv("KAFKA_BROKER"),
			Topic:  getEnv("KAFKA_TOPIC", "checkout_events"),
		},
	}

	// The operator inbox defaults to the sending account.
	if cfg.Mail.Operator == "" {
		cfg.Mail.Operator = cfg.Mail.User
	}

	return cfg, nil
}

func payPalBase(explicit, mode string) string {
	if explicit != "" {
		return explicit
	}
	if mode == "sandbox" {
		return PayPalSandboxBase
	}
	return PayPalLiveBase
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
