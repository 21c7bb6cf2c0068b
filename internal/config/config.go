package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends for durable client-side state.
const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
	StorageMemory   = "memory"
)

// Secret backends for the bearer token.
const (
	SecretKeyring = "keyring"
	SecretStorage = "storage"
)

type Config struct {
	Port     int
	LogLevel string
	Env      string

	// Remote platform API
	APIOrigin   string
	APIBasePath string
	APITimeout  time.Duration
	PublicURL   string // where the console itself is reachable, used for OAuth redirects

	// Durable client state
	StorageBackend string
	SQLitePath     string
	SecretBackend  string
	// File keyring fallback when no OS keyring is available
	KeyringDir      string
	KeyringPassword string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis config
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Per-window budgets: RateLimit for reads, the others for mutations
	// and for sign-in plus OAuth starts.
	RateLimit       int
	RateLimitWrite  int
	RateLimitAuth   int
	RateLimitWindow time.Duration

	// Notification UI timings
	ToastDwell        time.Duration
	ToastExit         time.Duration
	ActivityMarksRead bool

	// Relay sinks
	AWSRegion       string
	AWSEndpoint     string // LocalStack or another SDK-compatible endpoint
	RelaySNSTopic   string
	RelaySQSQueue   string
	RelayWebhookURL string
	RelayKinds      string // comma separated notification kinds to relay

	// Digest mail
	SESFromEmail   string
	DigestInterval time.Duration

	// OAuth provider catalogue
	ProvidersFile string
}

// Load reads configuration from the environment (and a .env file when
// present) over sensible defaults.
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		Port:     8080,
		LogLevel: "info",
		Env:      "development",

		APIOrigin:   "http://localhost:8000",
		APIBasePath: "/api/v1",
		APITimeout:  30 * time.Second,
		PublicURL:   "http://localhost:8080",

		StorageBackend: StorageSQLite,
		SQLitePath:     "sentinel-console.db",
		SecretBackend:  SecretStorage,
		KeyringDir:     ".sentinel-keyring",

		DBHost:    "localhost",
		DBPort:    5432,
		DBUser:    "sentinel",
		DBName:    "sentinel_console",
		DBSSLMode: "disable",

		RedisHost: "localhost",
		RedisPort: 6379,

		RateLimit:       300,
		RateLimitWrite:  60,
		RateLimitAuth:   10,
		RateLimitWindow: time.Minute,

		ToastDwell: 8 * time.Second,
		ToastExit:  300 * time.Millisecond,

		AWSRegion:  "us-east-1",
		RelayKinds: "error,warning",

		DigestInterval: time.Hour,

		ProvidersFile: "providers.yaml",
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = p
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if env := os.Getenv("ENV"); env != "" {
		cfg.Env = env
	}

	// Remote API
	if origin := os.Getenv("API_ORIGIN"); origin != "" {
		cfg.APIOrigin = origin
	}

	if base := os.Getenv("API_BASE_PATH"); base != "" {
		cfg.APIBasePath = base
	}

	if timeout := os.Getenv("API_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid API_TIMEOUT: %w", err)
		}
		cfg.APITimeout = d
	}

	if url := os.Getenv("PUBLIC_URL"); url != "" {
		cfg.PublicURL = url
	}

	// Durable state
	if backend := os.Getenv("STORAGE_BACKEND"); backend != "" {
		switch backend {
		case StorageSQLite, StoragePostgres, StorageRedis, StorageMemory:
			cfg.StorageBackend = backend
		default:
			return nil, fmt.Errorf("invalid STORAGE_BACKEND: %q", backend)
		}
	}

	if path := os.Getenv("SQLITE_PATH"); path != "" {
		cfg.SQLitePath = path
	}

	if backend := os.Getenv("SECRET_BACKEND"); backend != "" {
		if backend != SecretKeyring && backend != SecretStorage {
			return nil, fmt.Errorf("invalid SECRET_BACKEND: %q", backend)
		}
		cfg.SecretBackend = backend
	}

	// Database config
	if dir := os.Getenv("KEYRING_DIR"); dir != "" {
		cfg.KeyringDir = dir
	}

	cfg.KeyringPassword = os.Getenv("KEYRING_PASSWORD")

	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DBHost = host
	}

	if port := os.Getenv("DB_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT: %w", err)
		}
		cfg.DBPort = p
	}

	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DBUser = user
	}

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DBPassword = password
	}

	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}

	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.DBSSLMode = sslmode
	}

	// Redis config
	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.RedisHost = host
	}

	if port := os.Getenv("REDIS_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
		}
		cfg.RedisPort = p
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.RedisPassword = password
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		d, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = d
	}

	if limit := os.Getenv("RATE_LIMIT"); limit != "" {
		l, err := strconv.Atoi(limit)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT: %w", err)
		}
		cfg.RateLimit = l
	}

	if limit := os.Getenv("RATE_LIMIT_WRITE"); limit != "" {
		l, err := strconv.Atoi(limit)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_WRITE: %w", err)
		}
		cfg.RateLimitWrite = l
	}

	if limit := os.Getenv("RATE_LIMIT_AUTH"); limit != "" {
		l, err := strconv.Atoi(limit)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_AUTH: %w", err)
		}
		cfg.RateLimitAuth = l
	}

	if window := os.Getenv("RATE_LIMIT_WINDOW"); window != "" {
		d, err := time.ParseDuration(window)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW: %w", err)
		}
		cfg.RateLimitWindow = d
	}

	// Notification UI timings
	if dwell := os.Getenv("TOAST_DWELL"); dwell != "" {
		d, err := time.ParseDuration(dwell)
		if err != nil {
			return nil, fmt.Errorf("invalid TOAST_DWELL: %w", err)
		}
		cfg.ToastDwell = d
	}

	if exit := os.Getenv("TOAST_EXIT"); exit != "" {
		d, err := time.ParseDuration(exit)
		if err != nil {
			return nil, fmt.Errorf("invalid TOAST_EXIT: %w", err)
		}
		cfg.ToastExit = d
	}

	if marks := os.Getenv("ACTIVITY_MARKS_READ"); marks != "" {
		b, err := strconv.ParseBool(marks)
		if err != nil {
			return nil, fmt.Errorf("invalid ACTIVITY_MARKS_READ: %w", err)
		}
		cfg.ActivityMarksRead = b
	}

	// Relay sinks
	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.AWSRegion = region
	}

	if endpoint := os.Getenv("AWS_ENDPOINT_URL"); endpoint != "" {
		cfg.AWSEndpoint = endpoint
	}

	if topic := os.Getenv("RELAY_SNS_TOPIC_ARN"); topic != "" {
		cfg.RelaySNSTopic = topic
	}

	if queue := os.Getenv("RELAY_SQS_QUEUE_URL"); queue != "" {
		cfg.RelaySQSQueue = queue
	}

	if url := os.Getenv("RELAY_WEBHOOK_URL"); url != "" {
		cfg.RelayWebhookURL = url
	}

	if kinds := os.Getenv("RELAY_KINDS"); kinds != "" {
		cfg.RelayKinds = kinds
	}

	// Digest mail
	if from := os.Getenv("SES_FROM_EMAIL"); from != "" {
		cfg.SESFromEmail = from
	}

	if interval := os.Getenv("DIGEST_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("invalid DIGEST_INTERVAL: %w", err)
		}
		cfg.DigestInterval = d
	}

	if path := os.Getenv("PROVIDERS_FILE"); path != "" {
		cfg.ProvidersFile = path
	}

	return cfg, nil
}

// APIBaseURL is the origin plus the versioned path every service call uses.
func (c *Config) APIBaseURL() string {
	return c.APIOrigin + c.APIBasePath
}
