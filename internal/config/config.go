// Package config loads and validates warmer configuration via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
	Warmer  WarmerConfig  `mapstructure:"warmer"`
	Stores  []StoreConfig `mapstructure:"stores"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// PubSubConfig holds metadata for the entity-change subscription.
type PubSubConfig struct {
	ProjectID      string `mapstructure:"project_id"`
	SubscriptionID string `mapstructure:"subscription_id"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// WarmerConfig governs warming behavior. Values here are the deployment-wide
// defaults; stores may override a subset of them.
type WarmerConfig struct {
	Enabled           bool     `mapstructure:"enabled"`
	Concurrency       int      `mapstructure:"concurrency"`
	Instances         []string `mapstructure:"instances"`
	CustomerUsernames []string `mapstructure:"customer_usernames"`
	CustomerPasswords []string `mapstructure:"customer_passwords"`
	BasicAuthUsername string   `mapstructure:"basic_auth_username"`
	BasicAuthPassword string   `mapstructure:"basic_auth_password"`
	SwitchStore       bool     `mapstructure:"switch_store"`
	DisableGuestCrawl bool     `mapstructure:"disable_guest_crawl"`
	WebhookEnabled    bool     `mapstructure:"webhook_enabled"`
	WebhookURL        string   `mapstructure:"webhook_url"`
	DefaultCollector  string   `mapstructure:"default_collector"`
	RequestsPerSecond float64  `mapstructure:"requests_per_second"`
	BatchSize         int      `mapstructure:"batch_size"`
}

// StoreConfig declares one storefront. The warmer fields are optional
// per-store overrides of the global WarmerConfig.
type StoreConfig struct {
	ID      int    `mapstructure:"id"`
	Code    string `mapstructure:"code"`
	BaseURL string `mapstructure:"base_url"`

	Concurrency       int      `mapstructure:"concurrency"`
	Instances         []string `mapstructure:"instances"`
	SwitchStore       *bool    `mapstructure:"switch_store"`
	DisableGuestCrawl *bool    `mapstructure:"disable_guest_crawl"`
	WebhookURL        string   `mapstructure:"webhook_url"`
	DefaultCollector  string   `mapstructure:"default_collector"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WARMFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

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
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("logging.development", false)
	v.SetDefault("warmer.enabled", true)
	v.SetDefault("warmer.concurrency", 10)
	v.SetDefault("warmer.switch_store", false)
	v.SetDefault("warmer.disable_guest_crawl", false)
	v.SetDefault("warmer.webhook_enabled", false)
	v.SetDefault("warmer.default_collector", "sitemap")
	v.SetDefault("warmer.requests_per_second", 0)
	v.SetDefault("warmer.batch_size", 500)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Warmer.Concurrency <= 0 {
		return fmt.Errorf("warmer.concurrency must be > 0")
	}
	if c.Warmer.BatchSize <= 0 {
		return fmt.Errorf("warmer.batch_size must be > 0")
	}
	if len(c.Warmer.CustomerUsernames) != len(c.Warmer.CustomerPasswords) {
		return fmt.Errorf("warmer.customer_usernames and warmer.customer_passwords must have the same length")
	}
	if c.Warmer.WebhookEnabled && c.Warmer.WebhookURL == "" {
		return fmt.Errorf("warmer.webhook_url must be set when warmer.webhook_enabled is true")
	}
	seen := make(map[int]bool, len(c.Stores))
	for _, s := range c.Stores {
		if s.ID <= 0 {
			return fmt.Errorf("store %q: id must be > 0", s.Code)
		}
		if seen[s.ID] {
			return fmt.Errorf("store id %d declared twice", s.ID)
		}
		seen[s.ID] = true
		if s.Code == "" {
			return fmt.Errorf("store %d: code must be set", s.ID)
		}
		if !strings.HasPrefix(s.BaseURL, "http://") && !strings.HasPrefix(s.BaseURL, "https://") {
			return fmt.Errorf("store %q: base_url must be an absolute http(s) URL", s.Code)
		}
	}
	return nil
}

// StoreByID returns the StoreConfig with the given id.
func (c Config) StoreByID(id int) (StoreConfig, bool) {
	for _, s := range c.Stores {
		if s.ID == id {
			return s, true
		}
	}
	return StoreConfig{}, false
}
