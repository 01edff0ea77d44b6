package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Store        StoreConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Scanner      ScannerConfig
	Notification NotificationConfig
	Seed         SeedConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	BodyLimitBytes        int
}

// StoreConfig selects the local database.
type StoreConfig struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string
	// Path is the sqlite database file.
	Path string
	// DSN is used when Driver is postgres.
	DSN          string
	MaxOpenConns int
	BusyTimeout  int
}

// RedisConfig holds Redis connection values. Redis is optional.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	OrganizerInviteCode   string
	DefaultOrganizerEmail string
	DefaultOrganizerName  string
	DefaultOrganizerPass  string
}

// ScannerConfig tunes the gate scanner.
type ScannerConfig struct {
	PollIntervalMS   int
	DebounceMS       int
	DecodeTimeoutMS  int
	DebounceBackend  string
	DebounceRedisKey string
	CameraPath       string
	MaxFramePixels   int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// SeedConfig controls first-run sample data.
type SeedConfig struct {
	SampleData bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "gate-checkin"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "127.0.0.1"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			BodyLimitBytes:        getEnvAsInt("HTTP_BODY_LIMIT_BYTES", 8*1024*1024),
		},
		Store: StoreConfig{
			Driver:       strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
			Path:         getEnv("STORE_PATH", "data/gate-checkin.db"),
			DSN:          os.Getenv("STORE_DSN"),
			MaxOpenConns: getEnvAsInt("STORE_MAX_OPEN_CONNS", 10),
			BusyTimeout:  getEnvAsInt("STORE_BUSY_TIMEOUT_MS", 5000),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 12*60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			OrganizerInviteCode:   getEnv("AUTH_ORGANIZER_INVITE_CODE", "GATE-ORGANIZER"),
			DefaultOrganizerEmail: getEnv("AUTH_DEFAULT_ORGANIZER_EMAIL", "admin@campus.test"),
			DefaultOrganizerName:  getEnv("AUTH_DEFAULT_ORGANIZER_NAME", "Admin"),
			DefaultOrganizerPass:  getEnv("AUTH_DEFAULT_ORGANIZER_PASSWORD", "Admin@123"),
		},
		Scanner: ScannerConfig{
			PollIntervalMS:   getEnvAsInt("SCANNER_POLL_INTERVAL_MS", 400),
			DebounceMS:       getEnvAsInt("SCANNER_DEBOUNCE_MS", 2000),
			DecodeTimeoutMS:  getEnvAsInt("SCANNER_DECODE_TIMEOUT_MS", 250),
			DebounceBackend:  strings.ToLower(getEnv("SCANNER_DEBOUNCE_BACKEND", "memory")),
			DebounceRedisKey: getEnv("SCANNER_DEBOUNCE_REDIS_KEY", "gate-checkin:scanner:debounce"),
			CameraPath:       os.Getenv("SCANNER_CAMERA_PATH"),
			MaxFramePixels:   getEnvAsInt("SCANNER_MAX_FRAME_PIXELS", 4_000_000),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Seed: SeedConfig{
			SampleData: getEnvAsBool("SEED_SAMPLE_DATA", true),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("STORE_PATH required for sqlite driver")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("STORE_DSN required for postgres driver")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}
	switch c.Scanner.DebounceBackend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR required for redis debounce backend")
		}
	default:
		return fmt.Errorf("unsupported SCANNER_DEBOUNCE_BACKEND %q", c.Scanner.DebounceBackend)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// PollInterval is the delay between two frame decode attempts.
func (s ScannerConfig) PollInterval() time.Duration {
	return millis(s.PollIntervalMS, 400)
}

// DebounceWindow is how long decodes are suppressed after an accepted one.
func (s ScannerConfig) DebounceWindow() time.Duration {
	return millis(s.DebounceMS, 2000)
}

// DecodeTimeout bounds a single frame decode.
func (s ScannerConfig) DecodeTimeout() time.Duration {
	return millis(s.DecodeTimeoutMS, 250)
}

// AccessTokenTTL returns the session token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return millis(a.AccessTokenTTLMinutes*60*1000, 60*60*1000)
}

func millis(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
