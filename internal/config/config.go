// Package config loads and validates release-calendar configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/release-calendar/internal/ratelimit"
)

// EnvPrefix prefixes every environment override, e.g. RELCAL_DB_DSN.
const EnvPrefix = "RELCAL"

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendLocal    = "local"
	BackendGCS      = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	DB        DBConfig        `mapstructure:"db"`
	TMDB      TMDBConfig      `mapstructure:"tmdb"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Export    ExportConfig    `mapstructure:"export"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// DBConfig controls access to the catalog database.
type DBConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// TMDBConfig configures the upstream movie API client.
type TMDBConfig struct {
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Language string        `mapstructure:"language"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// RateLimitConfig throttles upstream calls.
type RateLimitConfig struct {
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	PauseEvery        int           `mapstructure:"pause_every"`
	PauseDuration     time.Duration `mapstructure:"pause_duration"`
}

// IngestConfig governs the ingestion run.
type IngestConfig struct {
	Years     []int `mapstructure:"years"`
	BatchSize int   `mapstructure:"batch_size"`
	// StartPages maps a year (as a string key) to the page to resume from.
	StartPages map[string]int `mapstructure:"start_pages"`
}

// StorageConfig selects where exported calendars are written.
type StorageConfig struct {
	Backend      string `mapstructure:"backend"`
	LocalDir     string `mapstructure:"local_dir"`
	GCSBucket    string `mapstructure:"gcs_bucket"`
	CacheControl string `mapstructure:"cache_control"`
}

// ExportConfig controls calendar export.
type ExportConfig struct {
	Prefix       string   `mapstructure:"prefix"`
	Countries    []string `mapstructure:"countries"`
	Year         int      `mapstructure:"year"`
	ReleaseTypes string   `mapstructure:"release_types"`
}

// PubSubConfig holds metadata for run-summary notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from a .env file, disk and environment, in increasing
// priority. A missing .env file is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("tmdb.api_key", EnvPrefix+"_TMDB_API_KEY", "TMDB_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind tmdb api key: %w", err)
	}
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("db.driver", BackendPostgres)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", "30m")
	v.SetDefault("tmdb.base_url", "https://api.themoviedb.org/3")
	v.SetDefault("tmdb.language", "en-US")
	v.SetDefault("tmdb.timeout", "15s")
	v.SetDefault("ratelimit.requests_per_second", ratelimit.DefaultRequestsPerSecond)
	v.SetDefault("ratelimit.pause_every", ratelimit.DefaultPauseEvery)
	v.SetDefault("ratelimit.pause_duration", ratelimit.DefaultPauseDuration)
	v.SetDefault("ingest.batch_size", 20)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.local_dir", "calendars")
	v.SetDefault("storage.cache_control", "public, max-age=3600")
	v.SetDefault("export.prefix", "calendars")
	v.SetDefault("export.countries", []string{"US"})
	v.SetDefault("export.release_types", "3")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.DB.Driver {
	case BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("db.driver must be %q or %q, got %q", BackendPostgres, BackendMemory, c.DB.Driver)
	}
	if c.TMDB.Timeout <= 0 {
		return fmt.Errorf("tmdb.timeout must be > 0")
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("ratelimit.requests_per_second must be >= 0")
	}
	if c.RateLimit.PauseEvery < 0 || c.RateLimit.PauseDuration < 0 {
		return fmt.Errorf("ratelimit.pause_every and ratelimit.pause_duration must be >= 0")
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest.batch_size must be > 0")
	}
	if _, err := c.Ingest.ResumePages(); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case BackendMemory, BackendLocal:
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when storage.backend is %q", BackendGCS)
		}
	default:
		return fmt.Errorf("storage.backend must be one of memory, local, gcs; got %q", c.Storage.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// ResumePages converts StartPages into year -> page.
func (c IngestConfig) ResumePages() (map[int]int, error) {
	out := make(map[int]int, len(c.StartPages))
	for rawYear, page := range c.StartPages {
		year, err := strconv.Atoi(strings.TrimSpace(rawYear))
		if err != nil || year <= 0 {
			return nil, fmt.Errorf("ingest.start_pages: invalid year %q", rawYear)
		}
		if page < 1 {
			return nil, fmt.Errorf("ingest.start_pages: page for %d must be >= 1", year)
		}
		out[year] = page
	}
	return out, nil
}

// ParseStartPage parses a YEAR=PAGE flag value.
func ParseStartPage(raw string) (year, page int, err error) {
	y, p, ok := strings.Cut(strings.TrimSpace(raw), "=")
	if !ok {
		return 0, 0, fmt.Errorf("start page %q: want YEAR=PAGE", raw)
	}
	year, err = strconv.Atoi(strings.TrimSpace(y))
	if err != nil || year <= 0 {
		return 0, 0, fmt.Errorf("start page %q: invalid year", raw)
	}
	page, err = strconv.Atoi(strings.TrimSpace(p))
	if err != nil || page < 1 {
		return 0, 0, fmt.Errorf("start page %q: invalid page", raw)
	}
	return year, page, nil
}

// SortedYears returns the keys of a resume map in ascending order.
func SortedYears(pages map[int]int) []int {
	years := make([]int, 0, len(pages))
	for y := range pages {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
