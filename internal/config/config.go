// Package config loads the recipe-forge configuration from config.yaml, .env and the
// RECIPE_FORGE_ environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/lepinkainen/recipe-forge/pkg/ai"
	"github.com/lepinkainen/recipe-forge/pkg/database"
	"github.com/lepinkainen/recipe-forge/pkg/fetch"
	"github.com/lepinkainen/recipe-forge/pkg/filesystem"
	"github.com/lepinkainen/recipe-forge/pkg/images"
	"github.com/lepinkainen/recipe-forge/pkg/pipeline"
	"github.com/lepinkainen/recipe-forge/pkg/ratelimit"
	"github.com/lepinkainen/recipe-forge/pkg/validate"
)

// EnvPrefix prefixes every environment override, e.g. RECIPE_FORGE_AI_API_KEY
const EnvPrefix = "RECIPE_FORGE"

// Storage backends
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// Config holds the central application configuration
type Config struct {
	Environment string `mapstructure:"environment"` // development, staging or production
	SitesFile   string `mapstructure:"sites_file"`  // Optional path or URL overriding the embedded site table

	Database struct {
		Path        string        `mapstructure:"path"`
		BusyTimeout time.Duration `mapstructure:"busy_timeout"`
	} `mapstructure:"database"`

	// Recipe cache backend
	Cache struct {
		Backend       string        `mapstructure:"backend"` // sqlite or redis
		TTL           time.Duration `mapstructure:"ttl"`
		RedisAddr     string        `mapstructure:"redis_addr"`
		RedisPassword string        `mapstructure:"redis_password"`
		RedisDB       int           `mapstructure:"redis_db"`
	} `mapstructure:"cache"`

	// Rate limit record store
	Store struct {
		Backend         string `mapstructure:"backend"` // sqlite, mongo or memory
		MongoURI        string `mapstructure:"mongo_uri"`
		MongoDB         string `mapstructure:"mongo_db"`
		MongoCollection string `mapstructure:"mongo_collection"`
	} `mapstructure:"store"`

	Fetch struct {
		Timeout      time.Duration `mapstructure:"timeout"`
		MaxRetries   int           `mapstructure:"max_retries"`
		LightTimeout time.Duration `mapstructure:"light_timeout"`
		PoliteDelay  time.Duration `mapstructure:"polite_delay"`
		MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
		UserAgents   []string      `mapstructure:"user_agents"`
	} `mapstructure:"fetch"`

	Images struct {
		Timeout     time.Duration `mapstructure:"timeout"`
		MinBytes    int64         `mapstructure:"min_bytes"`
		Concurrency int           `mapstructure:"concurrency"`
	} `mapstructure:"images"`

	AI struct {
		APIKey   string        `mapstructure:"api_key"`
		BaseURL  string        `mapstructure:"base_url"`
		Model    string        `mapstructure:"model"`
		Timeout  time.Duration `mapstructure:"timeout"`
		MaxChars int           `mapstructure:"max_chars"`
		// Enabled is derived from the API key, never read from configuration
		Enabled bool `mapstructure:"-"`
	} `mapstructure:"ai"`

	Thresholds struct {
		AIFallback           float64 `mapstructure:"ai_fallback"`
		PrefetchedAIFallback float64 `mapstructure:"prefetched_ai_fallback"`
		FastLevel            float64 `mapstructure:"fast_level"`
		AggressiveLevel      float64 `mapstructure:"aggressive_level"`
		ValidationPenalty    float64 `mapstructure:"validation_penalty"`
	} `mapstructure:"thresholds"`

	Weights validate.Weights `mapstructure:"weights"`

	// Limits overrides the built-in ceilings per environment and action
	Limits map[string]map[string]ratelimit.Limit `mapstructure:"limits"`

	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("sites_file", "")

	v.SetDefault("database.path", database.DefaultConfig().Path)
	v.SetDefault("database.busy_timeout", database.DefaultConfig().BusyTimeout)

	v.SetDefault("cache.backend", BackendSQLite)
	v.SetDefault("cache.ttl", 30*24*time.Hour)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)

	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.mongo_uri", "mongodb://localhost:27017")
	v.SetDefault("store.mongo_db", "recipe_forge")
	v.SetDefault("store.mongo_collection", "rate_limits")

	mainProfile, light := fetch.MainProfile(), fetch.LightProfile()
	v.SetDefault("fetch.timeout", mainProfile.Timeout)
	v.SetDefault("fetch.max_retries", mainProfile.Retry.MaxAttempts-1)
	v.SetDefault("fetch.light_timeout", light.Timeout)
	v.SetDefault("fetch.polite_delay", fetch.DefaultConfig().PoliteDelay)
	v.SetDefault("fetch.max_body_bytes", int64(fetch.DefaultMaxBodyBytes))
	v.SetDefault("fetch.user_agents", []string{})

	probe := images.DefaultProberConfig()
	v.SetDefault("images.timeout", probe.Timeout)
	v.SetDefault("images.min_bytes", probe.MinBytes)
	v.SetDefault("images.concurrency", probe.Concurrency)

	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.timeout", ai.DefaultTimeout)
	v.SetDefault("ai.max_chars", ai.DefaultMaxChars)

	pc, th := pipeline.DefaultConfig(), ai.DefaultThresholds()
	v.SetDefault("thresholds.ai_fallback", pc.AIFallback)
	v.SetDefault("thresholds.prefetched_ai_fallback", pc.PrefetchedAIFallback)
	v.SetDefault("thresholds.fast_level", th.Fast)
	v.SetDefault("thresholds.aggressive_level", th.Aggressive)
	v.SetDefault("thresholds.validation_penalty", pc.ValidationPenalty)

	w := validate.DefaultWeights()
	v.SetDefault("weights.title", w.Title)
	v.SetDefault("weights.ingredients", w.Ingredients)
	v.SetDefault("weights.instructions", w.Instructions)
	v.SetDefault("weights.image", w.Image)
	v.SetDefault("weights.timing", w.Timing)
	v.SetDefault("weights.servings", w.Servings)
	v.SetDefault("weights.jsonld_bonus", w.JSONLDBonus)
	v.SetDefault("weights.css_penalty", w.CSSPenalty)
	v.SetDefault("weights.site_bonus", w.SiteBonus)

	v.SetDefault("server.addr", ":8080")
}

// LoadConfig loads the configuration from path. A missing file is not an error; defaults,
// .env and RECIPE_FORGE_* variables still apply.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}
	path = filesystem.ResolvePath(path)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		slog.Debug("Loaded config file", "path", path)
	} else {
		slog.Debug("No config file, using defaults", "path", path)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.AI.Enabled = strings.TrimSpace(config.AI.APIKey) != ""

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks backend names and threshold ranges
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	switch c.Store.Backend {
	case BackendSQLite, BackendMongo, BackendMemory:
	default:
		return fmt.Errorf("unknown rate limit store backend %q", c.Store.Backend)
	}

	thresholds := map[string]float64{
		"ai_fallback":            c.Thresholds.AIFallback,
		"prefetched_ai_fallback": c.Thresholds.PrefetchedAIFallback,
		"fast_level":             c.Thresholds.FastLevel,
		"aggressive_level":       c.Thresholds.AggressiveLevel,
		"validation_penalty":     c.Thresholds.ValidationPenalty,
	}
	for name, value := range thresholds {
		if value < 0 || value > 1 {
			return fmt.Errorf("threshold %s must be between 0 and 1, got %v", name, value)
		}
	}
	return nil
}

// DatabaseConfig returns the SQLite settings
func (c *Config) DatabaseConfig() database.Config {
	return database.Config{Path: c.Database.Path, BusyTimeout: c.Database.BusyTimeout}
}

// FetchConfig builds the page fetcher settings
func (c *Config) FetchConfig() fetch.Config {
	cfg := fetch.DefaultConfig()
	cfg.MaxBodyBytes = c.Fetch.MaxBodyBytes
	cfg.PoliteDelay = c.Fetch.PoliteDelay
	if len(c.Fetch.UserAgents) > 0 {
		cfg.UserAgents = c.Fetch.UserAgents
	}
	if c.Fetch.Timeout > 0 {
		cfg.Main.Timeout = c.Fetch.Timeout
	}
	if c.Fetch.MaxRetries >= 0 {
		cfg.Main.Retry.MaxAttempts = c.Fetch.MaxRetries + 1
	}
	if c.Fetch.LightTimeout > 0 {
		cfg.Light.Timeout = c.Fetch.LightTimeout
	}
	return cfg
}

// ProberConfig builds the image probe settings
func (c *Config) ProberConfig() images.ProberConfig {
	cfg := images.DefaultProberConfig()
	if c.Images.Timeout > 0 {
		cfg.Timeout = c.Images.Timeout
	}
	if c.Images.MinBytes > 0 {
		cfg.MinBytes = c.Images.MinBytes
	}
	if c.Images.Concurrency > 0 {
		cfg.Concurrency = c.Images.Concurrency
	}
	return cfg
}

// PipelineConfig builds the import thresholds
func (c *Config) PipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.AIFallback = c.Thresholds.AIFallback
	cfg.PrefetchedAIFallback = c.Thresholds.PrefetchedAIFallback
	cfg.ValidationPenalty = c.Thresholds.ValidationPenalty
	return cfg
}

// CascadeConfig builds the AI fallback settings
func (c *Config) CascadeConfig() ai.Config {
	return ai.Config{
		Thresholds: ai.Thresholds{Fast: c.Thresholds.FastLevel, Aggressive: c.Thresholds.AggressiveLevel},
		Weights:    c.Weights,
		MaxChars:   c.AI.MaxChars,
	}
}

// OpenAIConfig builds the completion client settings
func (c *Config) OpenAIConfig() ai.OpenAIConfig {
	return ai.OpenAIConfig{
		APIKey:  c.AI.APIKey,
		BaseURL: c.AI.BaseURL,
		Model:   c.AI.Model,
		Timeout: c.AI.Timeout,
	}
}

// RateLimits returns the environment's built-in ceilings with configured overrides applied
func (c *Config) RateLimits() ratelimit.Limits {
	limits := ratelimit.DefaultLimits(c.Environment)
	for action, limit := range c.Limits[c.Environment] {
		limits[ratelimit.Action(action)] = limit
	}
	return limits
}
