// Package config loads settings for the dashboard, the CLI and the reference
// backend from configs/config.yml, an optional .env file and IRRIGATION_*
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. IRRIGATION_LOG_LEVEL.
const EnvPrefix = "IRRIGATION"

// Session store kinds.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Session   SessionConfig   `mapstructure:"session"`
}

// SimulatorConfig configures the reference backend.
type SimulatorConfig struct {
	Port            string           `mapstructure:"port"`
	DBPath          string           `mapstructure:"db_path"`
	SigningKey      string           `mapstructure:"signing_key"`
	TokenTTL        time.Duration    `mapstructure:"token_ttl"`
	Tick            time.Duration    `mapstructure:"tick"`
	CooldownSeconds int              `mapstructure:"cooldown_seconds"`
	Retention       time.Duration    `mapstructure:"retention"`
	HistoryLimit    int              `mapstructure:"history_limit"`
	City            string           `mapstructure:"city"`
	Automation      AutomationConfig `mapstructure:"automation"`
	Users           []UserSeed       `mapstructure:"users"`
}

// AutomationConfig drives the simulated moisture-based pump automation.
// Moisture values follow the probe convention: lower means wetter.
type AutomationConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	DryThreshold float64 `mapstructure:"dry_threshold"`
	WetThreshold float64 `mapstructure:"wet_threshold"`
}

// UserSeed is an account created on backend start if missing.
type UserSeed struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// DashboardConfig configures the operator dashboard and the CLI.
type DashboardConfig struct {
	Listen          string        `mapstructure:"listen"`
	BackendURL      string        `mapstructure:"backend_url"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	WeatherInterval time.Duration `mapstructure:"weather_interval"`
	CooldownTick    time.Duration `mapstructure:"cooldown_tick"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// SessionConfig selects the durable credential store.
type SessionConfig struct {
	Store         string `mapstructure:"store"` // sqlite | redis | memory
	Path          string `mapstructure:"path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("simulator.port", "8080")
	v.SetDefault("simulator.db_path", "irrigation.db")
	v.SetDefault("simulator.signing_key", "change-me")
	v.SetDefault("simulator.token_ttl", time.Hour)
	v.SetDefault("simulator.tick", 5*time.Second)
	v.SetDefault("simulator.cooldown_seconds", 30)
	v.SetDefault("simulator.retention", 24*time.Hour)
	v.SetDefault("simulator.history_limit", 50)
	v.SetDefault("simulator.city", "Nairobi")
	v.SetDefault("simulator.automation.enabled", false)
	v.SetDefault("simulator.automation.dry_threshold", 700.0)
	v.SetDefault("simulator.automation.wet_threshold", 400.0)
	v.SetDefault("simulator.users", []map[string]any{})

	v.SetDefault("dashboard.listen", "127.0.0.1:3000")
	v.SetDefault("dashboard.backend_url", "http://localhost:8080")
	v.SetDefault("dashboard.poll_interval", 5*time.Second)
	v.SetDefault("dashboard.weather_interval", 5*time.Second)
	v.SetDefault("dashboard.cooldown_tick", time.Second)
	v.SetDefault("dashboard.request_timeout", 10*time.Second)

	v.SetDefault("session.store", StoreSQLite)
	v.SetDefault("session.path", "session.db")
	v.SetDefault("session.redis_addr", "localhost:6379")
	v.SetDefault("session.redis_password", "")
	v.SetDefault("session.redis_db", 0)
	v.SetDefault("session.redis_prefix", "irrigation")
}

// Load reads the configuration. An empty path searches ./configs/config.yml
// and falls back to defaults when it does not exist; an explicit path must exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Dashboard.PollInterval <= 0 {
		errs = append(errs, errors.New("dashboard.poll_interval must be positive"))
	}
	if c.Dashboard.WeatherInterval <= 0 {
		errs = append(errs, errors.New("dashboard.weather_interval must be positive"))
	}
	if c.Dashboard.CooldownTick <= 0 {
		errs = append(errs, errors.New("dashboard.cooldown_tick must be positive"))
	}
	if u, err := url.Parse(c.Dashboard.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("dashboard.backend_url %q is not an absolute URL", c.Dashboard.BackendURL))
	}
	if c.Simulator.Tick <= 0 {
		errs = append(errs, errors.New("simulator.tick must be positive"))
	}
	if c.Simulator.CooldownSeconds < 0 {
		errs = append(errs, errors.New("simulator.cooldown_seconds must not be negative"))
	}
	if c.Simulator.TokenTTL <= 0 {
		errs = append(errs, errors.New("simulator.token_ttl must be positive"))
	}
	switch c.Session.Store {
	case StoreSQLite, StoreRedis, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("session.store %q must be one of sqlite, redis, memory", c.Session.Store))
	}
	return errors.Join(errs...)
}
