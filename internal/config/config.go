package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Scraper  ScraperConfig
	Sources  []SourceConfig

	MigrationsDir    string
	RefreshRemoteURL string
}

type AppConfig struct {
	AppName     string
	Environment string
	HTTPPort    string
}

type DatabaseConfig struct {
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	ConnectTimeout        time.Duration
	PoolMaxConns          int32
	PoolMinConns          int32
	PoolMaxConnLifetime   time.Duration
	PoolMaxConnIdleTime   time.Duration
	PoolHealthCheckPeriod time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	TTL      time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type ScraperConfig struct {
	UserAgent      string
	MinInterval    time.Duration
	LockMinutes    int
	FetchTimeout   time.Duration
	MaxBodyBytes   int64
	DebugDir       string
	PDFToTextBin   string
	HeadlessLookup bool
	MinYieldRatio  float64
	SourcesFile    string
}

const (
	DefaultUserAgent     = "EstudioMakerPriceWatch/1.0 (+competitor price monitor)"
	DefaultMinInterval   = 6 * time.Hour
	DefaultLockMinutes   = 10
	DefaultFetchTimeout  = 30 * time.Second
	DefaultMaxBodyBytes  = 20 << 20
	DefaultPDFToTextBin  = "pdftotext"
	DefaultMinYieldRatio = 0.5
	DefaultCurrency      = "ARS"
)

var errMissingRequiredEnv = errors.New("missing required environment variables")

var errInvalidEnv = errors.New("invalid environment variables")

func Load() (Config, error) {
	// .env is optional; real deployments inject the environment directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{}

	var missing []string
	var invalid []string
	req := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}
	opt := func(key string) string {
		return strings.TrimSpace(os.Getenv(key))
	}
	optDuration := func(key string, def time.Duration) time.Duration {
		raw := opt(key)
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			invalid = append(invalid, key)
			return def
		}
		return d
	}
	optInt := func(key string, def int) int {
		raw := opt(key)
		if raw == "" {
			return def
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			invalid = append(invalid, key)
			return def
		}
		return v
	}
	optFloat := func(key string, def float64) float64 {
		raw := opt(key)
		if raw == "" {
			return def
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			invalid = append(invalid, key)
			return def
		}
		return v
	}
	optBool := func(key string, def bool) bool {
		raw := opt(key)
		if raw == "" {
			return def
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			invalid = append(invalid, key)
			return def
		}
		return v
	}

	cfg.App = AppConfig{
		AppName:     req("APP_NAME"),
		Environment: req("APP_ENV"),
		HTTPPort:    req("HTTP_PORT"),
	}

	cfg.Database = DatabaseConfig{
		DBHost:     opt("DB_HOST"),
		DBPort:     opt("DB_PORT"),
		DBName:     opt("DB_NAME"),
		DBUser:     opt("DB_USER"),
		DBPassword: opt("DB_PASSWORD"),
		DBSSLMode:  opt("DB_SSL_MODE"),

		ConnectTimeout:        optDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
		PoolMaxConns:          int32(optInt("DB_POOL_MAX_CONNS", 0)),
		PoolMinConns:          int32(optInt("DB_POOL_MIN_CONNS", 0)),
		PoolMaxConnLifetime:   optDuration("DB_POOL_MAX_CONN_LIFETIME", 0),
		PoolMaxConnIdleTime:   optDuration("DB_POOL_MAX_CONN_IDLE_TIME", 0),
		PoolHealthCheckPeriod: optDuration("DB_POOL_HEALTH_CHECK_PERIOD", 0),
	}
	if cfg.Database.DBSSLMode == "" {
		cfg.Database.DBSSLMode = "disable"
	}

	cfg.Redis = RedisConfig{
		Enabled:  optBool("REDIS_ENABLED", true),
		Host:     opt("REDIS_HOST"),
		Port:     opt("REDIS_PORT"),
		Password: opt("REDIS_PASSWORD"),
		TTL:      time.Duration(optInt("REDIS_TTL", 600)) * time.Second,
	}

	cfg.Log = LogConfig{
		Level:  opt("LOG_LEVEL"),
		Format: opt("LOG_FORMAT"),
	}

	cfg.Scraper = ScraperConfig{
		UserAgent:      opt("SCRAPER_USER_AGENT"),
		MinInterval:    optDuration("SCRAPER_MIN_INTERVAL", DefaultMinInterval),
		LockMinutes:    optInt("SCRAPER_LOCK_MINUTES", DefaultLockMinutes),
		FetchTimeout:   optDuration("SCRAPER_FETCH_TIMEOUT", DefaultFetchTimeout),
		MaxBodyBytes:   int64(optInt("SCRAPER_MAX_BODY_BYTES", DefaultMaxBodyBytes)),
		DebugDir:       opt("SCRAPER_DEBUG_DIR"),
		PDFToTextBin:   opt("SCRAPER_PDFTOTEXT_BIN"),
		HeadlessLookup: optBool("SCRAPER_HEADLESS_RESOLVE", false),
		MinYieldRatio:  optFloat("SCRAPER_MIN_YIELD_RATIO", DefaultMinYieldRatio),
		SourcesFile:    opt("SCRAPER_SOURCES_FILE"),
	}
	cfg.Scraper.applyDefaults()

	// Empty means the migrations embedded in the binary.
	cfg.MigrationsDir = opt("MIGRATIONS_DIR")
	cfg.RefreshRemoteURL = opt("REFRESH_REMOTE_URL")

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errMissingRequiredEnv, strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errInvalidEnv, strings.Join(invalid, ", "))
	}

	if cfg.Scraper.SourcesFile != "" {
		sources, err := LoadSources(cfg.Scraper.SourcesFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Sources = sources
	} else {
		cfg.Sources = DefaultSources(opt("SITE_A_CATALOG_URL"), opt("SITE_B_PDF_URL"), opt("SITE_B_LISTING_URL"))
	}

	return cfg, nil
}

func (c *ScraperConfig) applyDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.MinInterval <= 0 {
		c.MinInterval = DefaultMinInterval
	}
	if c.LockMinutes <= 0 {
		c.LockMinutes = DefaultLockMinutes
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.DebugDir == "" {
		c.DebugDir = filepath.Join(os.TempDir(), "pricewatch")
	}
	if c.PDFToTextBin == "" {
		c.PDFToTextBin = DefaultPDFToTextBin
	}
	if c.MinYieldRatio <= 0 {
		c.MinYieldRatio = DefaultMinYieldRatio
	}
}
