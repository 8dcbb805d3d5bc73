// Package config loads the invoice workflow service's startup
// configuration: defaults, overridden by an optional YAML file, overridden
// in turn by environment variables.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config carries every startup-time value spec.md §9 calls out, plus the
// HTTP and queueing knobs needed to actually run the service.
type Config struct {
	// Workflow tuning.
	MatchThreshold float64 `yaml:"match_threshold"`
	TolerancePct   float64 `yaml:"tolerance_pct"`
	MockFallback   bool    `yaml:"mock_fallback"`

	// Capability servers.
	CommonURL string `yaml:"common_url"`
	AtlasURL  string `yaml:"atlas_url"`

	// HTTP surface.
	ListenAddr string `yaml:"listen_addr"`

	// Event bus.
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`
	BusHistoryDepth    int           `yaml:"bus_history_depth"`
	BusSubscriberDepth int           `yaml:"bus_subscriber_depth"`

	// Persistence.
	StorePath     string `yaml:"store_path"`
	ReviewBackend string `yaml:"review_backend"` // "memory" or "redis"
	RedisAddr     string `yaml:"redis_addr"`

	// Bigtool dynamic picker.
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	AnthropicModel  string `yaml:"anthropic_model"`
}

// Defaults returns the hard-coded baseline every other source layers on
// top of.
func Defaults() Config {
	return Config{
		MatchThreshold:     0.85,
		TolerancePct:       0.02,
		MockFallback:       true,
		CommonURL:          "http://localhost:8081",
		AtlasURL:           "http://localhost:8082",
		ListenAddr:         ":8080",
		HeartbeatInterval:  15 * time.Second,
		BusHistoryDepth:    256,
		BusSubscriberDepth: 64,
		StorePath:          "invoiced.db",
		ReviewBackend:      "memory",
		RedisAddr:          "localhost:6379",
		AnthropicModel:     "claude-3-5-sonnet-latest",
	}
}

// Load builds a Config from defaults, then path (if non-empty and
// present), then environment variable overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, errors.Wrapf(err, "reading config file %s", path)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parsing config file %s", path)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("INVOICED_MATCH_THRESHOLD"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.MatchThreshold = f
		}
	}
	if v, ok := os.LookupEnv("INVOICED_TOLERANCE_PCT"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.TolerancePct = f
		}
	}
	if v, ok := os.LookupEnv("INVOICED_MOCK_FALLBACK"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MockFallback = b
		}
	}
	if v, ok := os.LookupEnv("INVOICED_COMMON_URL"); ok {
		cfg.CommonURL = v
	}
	if v, ok := os.LookupEnv("INVOICED_ATLAS_URL"); ok {
		cfg.AtlasURL = v
	}
	if v, ok := os.LookupEnv("INVOICED_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("INVOICED_HEARTBEAT_INTERVAL"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HeartbeatInterval = d
		}
	}
	if v, ok := os.LookupEnv("INVOICED_STORE_PATH"); ok {
		cfg.StorePath = v
	}
	if v, ok := os.LookupEnv("INVOICED_REVIEW_BACKEND"); ok {
		cfg.ReviewBackend = v
	}
	if v, ok := os.LookupEnv("INVOICED_REDIS_ADDR"); ok {
		cfg.RedisAddr = v
	}
	if v, ok := os.LookupEnv("INVOICED_ANTHROPIC_API_KEY"); ok {
		cfg.AnthropicAPIKey = v
	}
	if v, ok := os.LookupEnv("INVOICED_ANTHROPIC_MODEL"); ok {
		cfg.AnthropicModel = v
	}
}

// Validate checks the invariants the workflow engine and HTTP layer rely
// on at startup.
func (c Config) Validate() error {
	if c.MatchThreshold < 0 || c.MatchThreshold > 1 {
		return errors.Errorf("match_threshold must be in [0,1], got %f", c.MatchThreshold)
	}
	if c.TolerancePct < 0 {
		return errors.Errorf("tolerance_pct must be >= 0, got %f", c.TolerancePct)
	}
	if c.ListenAddr == "" {
		return errors.New("listen_addr must not be empty")
	}
	if c.ReviewBackend != "memory" && c.ReviewBackend != "redis" {
		return errors.Errorf("review_backend must be \"memory\" or \"redis\", got %q", c.ReviewBackend)
	}
	return nil
}
