package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Cluster   ClusterConfig   `yaml:"cluster" mapstructure:"cluster"`
	Scorer    ScorerConfig    `yaml:"scorer" mapstructure:"scorer"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the raw inputs. Each location is a file path or an
// http(s) URL. The ward table comes from WardsURL when it is set. Otherwise
// the WardsJSONL feed is read, falling back to WardsCSV when the feed is
// unavailable.
type DataConfig struct {
	WardsURL   string `yaml:"wards_url" mapstructure:"wards_url"`
	WardsJSONL string `yaml:"wards_jsonl" mapstructure:"wards_jsonl"`
	WardsCSV   string `yaml:"wards_csv" mapstructure:"wards_csv"`
	Districts  string `yaml:"districts" mapstructure:"districts"`
	Facilities string `yaml:"facilities" mapstructure:"facilities"`
	Parcels    string `yaml:"parcels" mapstructure:"parcels"`
}

// FetchConfig configures remote input downloads.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// ClusterConfig configures district clustering. A zero Seed means the
// generator is seeded from the clock.
type ClusterConfig struct {
	K             int   `yaml:"k" mapstructure:"k"`
	MaxIterations int   `yaml:"max_iterations" mapstructure:"max_iterations"`
	Seed          int64 `yaml:"seed" mapstructure:"seed"`
}

// ScorerConfig configures parcel suitability scoring.
type ScorerConfig struct {
	PriorityWeight   float64 `yaml:"priority_weight" mapstructure:"priority_weight"`
	PopulationWeight float64 `yaml:"population_weight" mapstructure:"population_weight"`
	DistanceWeight   float64 `yaml:"distance_weight" mapstructure:"distance_weight"`
	Concurrency      int     `yaml:"concurrency" mapstructure:"concurrency"`
}

// AnthropicConfig holds Anthropic API settings for the ward Q&A endpoint.
// After FailureThreshold consecutive failures the endpoint answers from the
// ward summary alone for CooldownSecs.
type AnthropicConfig struct {
	Key              string `yaml:"key" mapstructure:"key"`
	Model            string `yaml:"model" mapstructure:"model"`
	MaxTokens        int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	FailureThreshold int    `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownSecs     int    `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from ./config.yaml, if present, and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path and environment. An empty path
// searches the working directory for config.yaml, which may be absent; an
// explicit path must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("GREENWARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("data.wards_url", "")
	v.SetDefault("data.wards_jsonl", "data/live_wards.jsonl")
	v.SetDefault("data.wards_csv", "data/ward_priority.csv")
	v.SetDefault("data.districts", "data/delhi_wards.geojson")
	v.SetDefault("data.facilities", "data/parks.geojson")
	v.SetDefault("data.parcels", "data/open_potential_land.geojson")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "greenward/1.0")
	v.SetDefault("fetch.rate_per_sec", 5.0)
	v.SetDefault("cluster.k", 3)
	v.SetDefault("cluster.max_iterations", 100)
	v.SetDefault("cluster.seed", 0)
	v.SetDefault("scorer.priority_weight", 0.5)
	v.SetDefault("scorer.population_weight", 0.3)
	v.SetDefault("scorer.distance_weight", 0.2)
	v.SetDefault("scorer.concurrency", 4)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 200)
	v.SetDefault("anthropic.failure_threshold", 3)
	v.SetDefault("anthropic.cooldown_secs", 60)

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

	return &cfg, nil
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
