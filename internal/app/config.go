package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения. Значения читаются из
// переменных окружения CHECKOUT_* поверх DefaultConfig.
type Config struct {
	// HTTPAddr — адрес REST API.
	HTTPAddr string
	// MetricsAddr — адрес ops-сервера (/metrics, /healthz, /livez, /readyz).
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	// SeedDemoData наполняет memory-хранилище демо-каталогом для локальной
	// разработки. Для postgres игнорируется.
	SeedDemoData bool

	// KafkaBrokers — список брокеров; пустой список отключает публикацию
	// событий (outbox продолжает накапливать записи).
	KafkaBrokers []string

	Currency         string
	ShippingFeeMinor int64
	UploadsDir       string
	AdminToken       string
	AllowedOrigins   []string

	// Параметры redirect-шлюза FastPay.
	GatewayBaseURL     string
	GatewayMerchantID  string
	GatewayCallbackURL string
	GatewayTimeout     time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает конфигурацию для локального запуска на memory-хранилище.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		Currency:         "RUB",
		ShippingFeeMinor: 0,
		UploadsDir:       "uploads",

		GatewayTimeout: 10 * time.Second,

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   100 * time.Millisecond,

		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// LoadConfig собирает конфигурацию из окружения поверх дефолтов.
func LoadConfig() Config {
	cfg := DefaultConfig()

	cfg.HTTPAddr = envString("CHECKOUT_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = envString("CHECKOUT_METRICS_ADDR", cfg.MetricsAddr)

	cfg.StorageDriver = envString("CHECKOUT_STORAGE_DRIVER", cfg.StorageDriver)
	cfg.PostgresDSN = envString("CHECKOUT_POSTGRES_DSN", cfg.PostgresDSN)
	cfg.PostgresAutoMigrate = envBool("CHECKOUT_POSTGRES_AUTO_MIGRATE", cfg.PostgresAutoMigrate)
	cfg.SeedDemoData = envBool("CHECKOUT_SEED_DEMO_DATA", cfg.SeedDemoData)

	cfg.KafkaBrokers = envList("CHECKOUT_KAFKA_BROKERS", cfg.KafkaBrokers)

	cfg.Currency = envString("CHECKOUT_CURRENCY", cfg.Currency)
	cfg.ShippingFeeMinor = envInt64("CHECKOUT_SHIPPING_FEE_MINOR", cfg.ShippingFeeMinor)
	cfg.UploadsDir = envString("CHECKOUT_UPLOADS_DIR", cfg.UploadsDir)
	cfg.AdminToken = envString("CHECKOUT_ADMIN_TOKEN", cfg.AdminToken)
	cfg.AllowedOrigins = envList("CHECKOUT_ALLOWED_ORIGINS", cfg.AllowedOrigins)

	cfg.GatewayBaseURL = envString("CHECKOUT_GATEWAY_BASE_URL", cfg.GatewayBaseURL)
	cfg.GatewayMerchantID = envString("CHECKOUT_GATEWAY_MERCHANT_ID", cfg.GatewayMerchantID)
	cfg.GatewayCallbackURL = envString("CHECKOUT_GATEWAY_CALLBACK_URL", cfg.GatewayCallbackURL)
	cfg.GatewayTimeout = envDuration("CHECKOUT_GATEWAY_TIMEOUT", cfg.GatewayTimeout)

	cfg.OutboxPollInterval = envDuration("CHECKOUT_OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("CHECKOUT_OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxMaxAttempts = envInt("CHECKOUT_OUTBOX_MAX_ATTEMPTS", cfg.OutboxMaxAttempts)
	cfg.OutboxRetryDelay = envDuration("CHECKOUT_OUTBOX_RETRY_DELAY", cfg.OutboxRetryDelay)

	cfg.IdempotencyTTL = envDuration("CHECKOUT_IDEMPOTENCY_TTL", cfg.IdempotencyTTL)
	cfg.IdempotencyCleanupInterval = envDuration("CHECKOUT_IDEMPOTENCY_CLEANUP_INTERVAL", cfg.IdempotencyCleanupInterval)
	cfg.IdempotencyCleanupBatchSize = envInt("CHECKOUT_IDEMPOTENCY_CLEANUP_BATCH_SIZE", cfg.IdempotencyCleanupBatchSize)

	return cfg
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt64(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func envList(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
