package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Overpass  OverpassConfig  `yaml:"overpass" mapstructure:"overpass"`
	Nominatim NominatimConfig `yaml:"nominatim" mapstructure:"nominatim"`
	Weather   WeatherConfig   `yaml:"weather" mapstructure:"weather"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the document store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// OverpassConfig configures the OSM Overpass collector.
type OverpassConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// NominatimConfig configures the reverse-geocoding collector.
type NominatimConfig struct {
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent string  `yaml:"user_agent" mapstructure:"user_agent"`
	DelaySecs float64 `yaml:"delay_secs" mapstructure:"delay_secs"`
}

// WeatherConfig configures the optional climate-enrichment source.
// Climate lookups are disabled when no API key is set.
type WeatherConfig struct {
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey    string  `yaml:"api_key" mapstructure:"api_key"`
	DelaySecs float64 `yaml:"delay_secs" mapstructure:"delay_secs"`
}

// PipelineConfig configures batching and pacing of the collection run.
type PipelineConfig struct {
	BatchSize             int     `yaml:"batch_size" mapstructure:"batch_size"`
	RateLimitPerMinute    int     `yaml:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	RegionDelaySecs       float64 `yaml:"region_delay_secs" mapstructure:"region_delay_secs"`
	RegionsFile           string  `yaml:"regions_file" mapstructure:"regions_file"`
	SplitOversizedRegions bool    `yaml:"split_oversized_regions" mapstructure:"split_oversized_regions"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// NominatimDelay returns the courtesy delay as a duration.
func (c NominatimConfig) NominatimDelay() time.Duration {
	return time.Duration(c.DelaySecs * float64(time.Second))
}

// WeatherDelay returns the minimum interval between climate lookups.
func (c WeatherConfig) WeatherDelay() time.Duration {
	return time.Duration(c.DelaySecs * float64(time.Second))
}

// Enabled reports whether climate enrichment is configured.
func (c WeatherConfig) Enabled() bool {
	return c.APIKey != ""
}

// RegionDelay returns the inter-region pause as a duration.
func (c PipelineConfig) RegionDelay() time.Duration {
	return time.Duration(c.RegionDelaySecs * float64(time.Second))
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BEACHSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "beachsync.db")
	v.SetDefault("overpass.base_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.timeout_secs", 60)
	v.SetDefault("nominatim.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("nominatim.user_agent", "beachsync/1.0 (beach data collector)")
	v.SetDefault("nominatim.delay_secs", 1.0)
	v.SetDefault("weather.base_url", "https://api.openweathermap.org/data/2.5/weather")
	v.SetDefault("weather.api_key", "")
	v.SetDefault("weather.delay_secs", 1.0)
	v.SetDefault("pipeline.batch_size", 50)
	v.SetDefault("pipeline.rate_limit_per_minute", 30)
	v.SetDefault("pipeline.region_delay_secs", 2.0)
	v.SetDefault("pipeline.regions_file", "")
	v.SetDefault("pipeline.split_oversized_regions", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks startup invariants. A failure here is fatal before any
// work begins.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for the postgres driver")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return eris.New("config: store.sqlite_path is required for the sqlite driver")
		}
	default:
		return eris.Errorf("config: unknown store driver %q (valid: postgres, sqlite)", c.Store.Driver)
	}

	if c.Pipeline.BatchSize <= 0 {
		return eris.New("config: pipeline.batch_size must be positive")
	}
	if c.Pipeline.RateLimitPerMinute <= 0 {
		return eris.New("config: pipeline.rate_limit_per_minute must be positive")
	}
	if c.Nominatim.DelaySecs < 0 {
		return eris.New("config: nominatim.delay_secs must not be negative")
	}
	if c.Weather.DelaySecs < 0 {
		return eris.New("config: weather.delay_secs must not be negative")
	}

	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
