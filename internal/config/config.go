// Package config provides application configuration loaded from environment
// variables (optionally layered on top of a local .env file). Use the
// package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/foie0222/baken-autobet/internal/domain"
	"github.com/joho/godotenv"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// RuntimeConfig holds process-level settings.
type RuntimeConfig struct {
	Env          string // "development" | "production"
	HealthPort   string // e.g. "8080", orchestrator liveness server
	KernelConstantsPath string // optional YAML override for kernel constants
}

// DBConfig holds PostgreSQL connection settings for OrderStore/CredentialsStore.
type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis connection settings for PredictionStore/ScheduleStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// BettingConfig holds the auto-bet pipeline's operational parameters.
type BettingConfig struct {
	BankrollYen        int
	OddsAPIURL         string
	GatewayAPIURL      string
	RaceCalendarAPIURL string
	TargetUserID       string
	FireLeadMinutes    int
	OrchWindowMinutes  int
}

// HTTPClientConfig holds shared timeout/retry settings for the odds-feed
// and gateway HTTP clients. Only RequestTimeout and RateLimitRPS are passed
// to the clients; MaxRetries and RetryBaseDelay are loaded but not used, and
// the clients apply their own fixed 3 retries with a 500ms backoff base.
type HTTPClientConfig struct {
	RequestTimeout time.Duration // default 30s, per spec.md §5
	MaxRetries     int           // default 3
	RetryBaseDelay time.Duration // default 500ms, exponential backoff base
	RateLimitRPS   float64       // default 5
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Runtime RuntimeConfig
	DB      DBConfig
	Redis   RedisConfig
	Betting BettingConfig
	HTTP    HTTPClientConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Runtime.Env == "production"
}

// Validate checks that all required configuration values are present and
// valid. Returns every validation error found, joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Betting.OddsAPIURL == "" {
		errs = append(errs, fmt.Errorf("%w: ODDS_API_URL must be set", domain.ErrConfigurationError))
	}
	if c.Betting.GatewayAPIURL == "" {
		errs = append(errs, fmt.Errorf("%w: GATEWAY_API_URL must be set", domain.ErrConfigurationError))
	}
	if c.Betting.TargetUserID == "" {
		errs = append(errs, fmt.Errorf("%w: TARGET_USER_ID must be set", domain.ErrConfigurationError))
	}
	if c.Betting.BankrollYen <= 0 {
		errs = append(errs, fmt.Errorf("%w: BANKROLL_YEN must be positive, got %d", domain.ErrConfigurationError, c.Betting.BankrollYen))
	}
	if c.IsProd() && c.DB.DSN == "" {
		errs = append(errs, fmt.Errorf("%w: DATABASE_DSN must be set in production", domain.ErrConfigurationError))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment
// variables (after loading any local .env file). Panics if loading fails —
// call this early in main() to catch misconfigurations at startup.
func Get() *Config {
	once.Do(func() {
		_ = godotenv.Load() // optional: missing .env is not an error
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	cfg := &Config{}

	cfg.Runtime = RuntimeConfig{
		Env:                 getEnv("ENVIRONMENT", "development"),
		HealthPort:          getEnv("HEALTH_PORT", "8080"),
		KernelConstantsPath: getEnv("KERNEL_CONSTANTS_PATH", ""),
	}

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", ""),
			getEnv("DB_NAME", "autobet"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}
	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}
	cfg.DB = DBConfig{
		DSN:             dsn,
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	cfg.Redis = RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
	}

	bankroll, err := getInt("BANKROLL_YEN", 100_000)
	if err != nil {
		return nil, fmt.Errorf("BANKROLL_YEN: %w", err)
	}
	fireLead, err := getInt("FIRE_LEAD_MINUTES", 5)
	if err != nil {
		return nil, fmt.Errorf("FIRE_LEAD_MINUTES: %w", err)
	}
	orchWindow, err := getInt("ORCH_WINDOW_MINUTES", 20)
	if err != nil {
		return nil, fmt.Errorf("ORCH_WINDOW_MINUTES: %w", err)
	}
	cfg.Betting = BettingConfig{
		BankrollYen:        bankroll,
		OddsAPIURL:         getEnv("ODDS_API_URL", ""),
		GatewayAPIURL:      getEnv("GATEWAY_API_URL", ""),
		RaceCalendarAPIURL: getEnv("RACE_CALENDAR_API_URL", ""),
		TargetUserID:       getEnv("TARGET_USER_ID", ""),
		FireLeadMinutes:    fireLead,
		OrchWindowMinutes:  orchWindow,
	}

	maxRetries, err := getInt("HTTP_MAX_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("HTTP_MAX_RETRIES: %w", err)
	}
	rateLimit, err := getFloat("HTTP_RATE_LIMIT_RPS", 5.0)
	if err != nil {
		return nil, fmt.Errorf("HTTP_RATE_LIMIT_RPS: %w", err)
	}
	cfg.HTTP = HTTPClientConfig{
		RequestTimeout: getDuration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
		MaxRetries:     maxRetries,
		RetryBaseDelay: getDuration("HTTP_RETRY_BASE_DELAY", 500*time.Millisecond),
		RateLimitRPS:   rateLimit,
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float %q", v)
	}
	return f, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or empty.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
