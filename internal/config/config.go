package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// APIKeyEnv is consulted when the config file leaves tmdb.api_key empty.
const APIKeyEnv = "TMDB_API_KEY"

// ErrMissingAPIKey is returned by Load when no usable credential is configured.
var ErrMissingAPIKey = errors.New("TMDB API key is required. Set tmdb.api_key or " + APIKeyEnv + "; get one from https://www.themoviedb.org/settings/api")

// Config represents the application configuration
type Config struct {
	TMDB    TMDBConfig    `yaml:"tmdb"`
	Cache   CacheConfig   `yaml:"cache"`
	Server  ServerConfig  `yaml:"server"`
	Refresh RefreshConfig `yaml:"refresh"`
	Logging LoggingConfig `yaml:"logging"`
	Watch   WatchConfig   `yaml:"watch"`
}

// TMDBConfig holds TMDB API configuration
type TMDBConfig struct {
	APIKey           string `yaml:"api_key" validate:"required"`
	BaseURL          string `yaml:"base_url" validate:"omitempty,url"`
	TimeoutSeconds   int    `yaml:"timeout_seconds" validate:"gte=0"`
	MaxAttempts      int    `yaml:"max_attempts" validate:"gte=0,lte=10"`
	InitialBackoffMs int    `yaml:"initial_backoff_ms" validate:"gte=0"`
	RateLimitDelayMs int    `yaml:"rate_limit_delay_ms" validate:"gte=0"`
}

// CacheConfig selects the response cache backend
type CacheConfig struct {
	Backend       string `yaml:"backend" validate:"oneof=memory sqlite redis"`
	TTLMinutes    int    `yaml:"ttl_minutes" validate:"gt=0"`
	MaxEntries    int    `yaml:"max_entries" validate:"gte=0"`
	SQLitePath    string `yaml:"sqlite_path" validate:"required_if=Backend sqlite"`
	RedisAddr     string `yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db" validate:"gte=0"`
	RedisPrefix   string `yaml:"redis_prefix"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr                string `yaml:"addr" validate:"required"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds" validate:"gte=0"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds" validate:"gte=0"`
}

// RefreshConfig controls periodic re-fetching of frequently used listings
type RefreshConfig struct {
	Enabled         bool     `yaml:"enabled"`
	IntervalMinutes int      `yaml:"interval_minutes" validate:"required_if=Enabled true,gte=0"`
	RunOnStartup    *bool    `yaml:"run_on_startup"`
	Workers         int      `yaml:"workers" validate:"gte=0"`
	Pages           int      `yaml:"pages" validate:"gte=0,lte=500"`
	Categories      []string `yaml:"categories" validate:"dive,required"`
}

// LoggingConfig selects slog level and handler
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// WatchConfig controls reloading on config file changes
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMs int  `yaml:"debounce_ms" validate:"gte=0"`
}

// Default returns a configuration with every optional field filled in.
func Default() *Config {
	runOnStartup := true
	return &Config{
		TMDB: TMDBConfig{
			TimeoutSeconds:   30,
			MaxAttempts:      3,
			InitialBackoffMs: 1000,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			TTLMinutes: 10,
			MaxEntries: 10000,
		},
		Server: ServerConfig{
			Addr:                ":8080",
			ReadTimeoutSeconds:  10,
			WriteTimeoutSeconds: 60,
		},
		Refresh: RefreshConfig{
			IntervalMinutes: 30,
			RunOnStartup:    &runOnStartup,
			Workers:         4,
			Pages:           1,
			Categories:      []string{"top_rated", "upcoming", "now_playing"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Watch: WatchConfig{
			DebounceMs: 500,
		},
	}
}

// Load reads and parses the configuration file. An empty path skips the file
// and uses defaults plus the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		path, err := ExpandHome(path)
		if err != nil {
			return nil, err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in the YAML content
		expandedData := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish applies environment fallbacks and defaults, then validates.
func (c *Config) finish() error {
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	if c.TMDB.APIKey == "" {
		c.TMDB.APIKey = strings.TrimSpace(os.Getenv(APIKeyEnv))
	}
	if c.TMDB.APIKey == "" || c.TMDB.APIKey == "your_api_key_here" {
		return ErrMissingAPIKey
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.SQLitePath != "" {
		p, err := ExpandHome(c.Cache.SQLitePath)
		if err != nil {
			return err
		}
		c.Cache.SQLitePath = p
	}
	if c.Refresh.RunOnStartup == nil {
		runOnStartup := true
		c.Refresh.RunOnStartup = &runOnStartup
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)

	return Validate(c)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their YAML names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks c against its struct rules and reports every violation.
func Validate(c *Config) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s %s", yamlPath(fe.Namespace()), validationMessage(fe)))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// validationMessage converts validator errors into readable messages
func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a valid URL"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// yamlPath drops the root struct name from a validator namespace.
func yamlPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// Durations

func (c TMDBConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c TMDBConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMs) * time.Millisecond
}

func (c TMDBConfig) RateLimitDelay() time.Duration {
	return time.Duration(c.RateLimitDelayMs) * time.Millisecond
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

func (c RefreshConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

func (c WatchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}
