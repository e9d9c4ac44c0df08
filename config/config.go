// Package config provides YAML-based configuration loading for p2plink.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	Link    LinkConfig    `mapstructure:"link" yaml:"link"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Etcd    EtcdConfig    `mapstructure:"etcd" yaml:"etcd"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Limits  LimitsConfig  `mapstructure:"limits" yaml:"limits"`
}

// LinkConfig describes the local end of the link.
type LinkConfig struct {
	// Name is the link name advertised in and looked up from the registry
	Name string `mapstructure:"name" yaml:"name"`
	// Listen is the address the listening end binds
	Listen string `mapstructure:"listen" yaml:"listen"`
	// Advertise is the routable address registered for Listen
	Advertise string `mapstructure:"advertise" yaml:"advertise"`
	// Dial is the peer address; empty means discover Name through etcd
	Dial string `mapstructure:"dial" yaml:"dial"`

	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	MaxMessageSize    int           `mapstructure:"max_message_size" yaml:"max_message_size"`
	// Balancer: round_robin or weighted
	Balancer string `mapstructure:"balancer" yaml:"balancer"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
	// Format: console or json
	Format string `mapstructure:"format" yaml:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs" yaml:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development" yaml:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable" yaml:"enable"`
	Filename   string `mapstructure:"filename" yaml:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// EtcdConfig enables endpoint discovery.
type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints" yaml:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	TTL         int64         `mapstructure:"ttl" yaml:"ttl"`
}

// Enabled reports whether any etcd endpoint is configured.
func (e EtcdConfig) Enabled() bool {
	return len(e.Endpoints) > 0
}

type MetricsConfig struct {
	Enable bool   `mapstructure:"enable" yaml:"enable"`
	Addr   string `mapstructure:"addr" yaml:"addr"`
}

// LimitsConfig bounds inbound handling. Zero disables a limit.
type LimitsConfig struct {
	RateLimit   float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // frames per second
	Burst       int           `mapstructure:"burst" yaml:"burst"`
	SlowHandler time.Duration `mapstructure:"slow_handler" yaml:"slow_handler"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Link: LinkConfig{
			Name:              "default",
			Listen:            ":7000",
			PollInterval:      5 * time.Millisecond,
			ReadTimeout:       5 * time.Millisecond,
			HeartbeatInterval: time.Second,
			MaxMessageSize:    255,
			Balancer:          "round_robin",
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stderr"},
			Development: false,
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/p2plink.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Etcd: EtcdConfig{
			DialTimeout: 5 * time.Second,
			TTL:         10,
		},
		Metrics: MetricsConfig{
			Enable: false,
			Addr:   ":9100",
		},
		Limits: LimitsConfig{
			SlowHandler: 50 * time.Millisecond,
		},
	}
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix P2PLINK and `.`/`-` are replaced with `_`.
// Example: P2PLINK_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("P2PLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("link.name", cfg.Link.Name)
	v.SetDefault("link.listen", cfg.Link.Listen)
	v.SetDefault("link.advertise", cfg.Link.Advertise)
	v.SetDefault("link.dial", cfg.Link.Dial)
	v.SetDefault("link.poll_interval", cfg.Link.PollInterval)
	v.SetDefault("link.read_timeout", cfg.Link.ReadTimeout)
	v.SetDefault("link.heartbeat_interval", cfg.Link.HeartbeatInterval)
	v.SetDefault("link.max_message_size", cfg.Link.MaxMessageSize)
	v.SetDefault("link.balancer", cfg.Link.Balancer)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	v.SetDefault("etcd.endpoints", cfg.Etcd.Endpoints)
	v.SetDefault("etcd.dial_timeout", cfg.Etcd.DialTimeout)
	v.SetDefault("etcd.ttl", cfg.Etcd.TTL)
	v.SetDefault("metrics.enable", cfg.Metrics.Enable)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)
	v.SetDefault("limits.rate_limit", cfg.Limits.RateLimit)
	v.SetDefault("limits.burst", cfg.Limits.Burst)
	v.SetDefault("limits.slow_handler", cfg.Limits.SlowHandler)

	if path == "" {
		if envPath := os.Getenv("P2PLINK_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("p2plink")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".p2plink"))
		}
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// a comma-separated env value arrives as a single element
	if len(cfg.Etcd.Endpoints) == 1 && strings.Contains(cfg.Etcd.Endpoints[0], ",") {
		cfg.Etcd.Endpoints = strings.Split(cfg.Etcd.Endpoints[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes empty fields and rejects invalid values.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}
	if strings.TrimSpace(c.Link.Name) == "" {
		return errors.New("link.name must not be empty")
	}
	if c.Link.MaxMessageSize <= 0 || c.Link.MaxMessageSize > 255 {
		return fmt.Errorf("invalid link.max_message_size: %d (want 1..255)", c.Link.MaxMessageSize)
	}
	if c.Link.PollInterval <= 0 {
		return fmt.Errorf("invalid link.poll_interval: %s", c.Link.PollInterval)
	}
	if c.Limits.RateLimit < 0 || c.Limits.Burst < 0 {
		return errors.New("limits.rate_limit and limits.burst must not be negative")
	}
	if c.Limits.RateLimit > 0 && c.Limits.Burst == 0 {
		c.Limits.Burst = 1
	}
	return nil
}
