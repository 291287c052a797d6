package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Matrack   MatrackConfig   `mapstructure:"matrack"`
	API       APIConfig       `mapstructure:"api"`
	Media     MediaConfig     `mapstructure:"media"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	MetricsPort     int           `mapstructure:"metrics_port"`
	ExposedDomain   string        `mapstructure:"exposed_domain"` // origin allowed to open dashboard websockets
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// TrustedProxies lists the CIDRs whose CF-Connecting-IP and X-Forwarded-For
	// headers are believed. It must cover the peer address of the dashboard's
	// own API calls.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite"
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

type RedisConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// MatrackConfig configures the upstream Matrack API used by the ingest workers
type MatrackConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// APIConfig configures the dashboard REST API
type APIConfig struct {
	// Key is compared against the X-API-Key header. Empty disables the check.
	Key            string        `mapstructure:"key"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`

	// SignedURLRateLimit caps signed URL requests per client per minute.
	// Zero disables the limit.
	SignedURLRateLimit int `mapstructure:"signed_url_rate_limit"`
}

type MediaConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Root       string        `mapstructure:"root"`
	SigningKey string        `mapstructure:"signing_key"`
	URLTTL     time.Duration `mapstructure:"url_ttl"`
}

type IngestConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	RealtimeInterval   time.Duration `mapstructure:"realtime_interval"`
	HistoricalInterval time.Duration `mapstructure:"historical_interval"`
	LockTTL            time.Duration `mapstructure:"lock_ttl"`
}

// DashboardConfig configures the server-rendered views
type DashboardConfig struct {
	// APIBaseURL is where the views fetch from. Defaults to this server.
	APIBaseURL     string        `mapstructure:"api_base_url"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Load initializes configuration from environment variables and an optional config file
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Dashboard.APIBaseURL == "" {
		cfg.Dashboard.APIBaseURL = fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &cfg, nil
}

// LoadMinimal loads only what the maintenance commands need (database).
func LoadMinimal() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database.url is required")
	}
	return &cfg, nil
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("FLEETDASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	// Every key needs a default so AutomaticEnv can bind it during Unmarshal.
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.exposed_domain", "")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.trusted_proxies", []string{"127.0.0.1/32", "::1/128"})

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "")

	v.SetDefault("redis.url", "redis://localhost:6379")
	v.SetDefault("redis.key_prefix", "fleetdash:")

	v.SetDefault("matrack.base_url", "https://api.matrack.live/v1")
	v.SetDefault("matrack.client_id", "")
	v.SetDefault("matrack.client_secret", "")
	v.SetDefault("matrack.timeout", "10s")

	v.SetDefault("api.key", "")
	v.SetDefault("api.allowed_origins", []string{"*"})
	v.SetDefault("api.cache_ttl", "10s")
	v.SetDefault("api.signed_url_rate_limit", 60)

	v.SetDefault("media.base_url", "http://localhost:8080/media")
	v.SetDefault("media.root", "./media")
	v.SetDefault("media.signing_key", "")
	v.SetDefault("media.url_ttl", "15m")

	v.SetDefault("ingest.enabled", true)
	v.SetDefault("ingest.realtime_interval", "1m")
	v.SetDefault("ingest.historical_interval", "24h")
	v.SetDefault("ingest.lock_ttl", "5m")

	v.SetDefault("dashboard.api_base_url", "")
	v.SetDefault("dashboard.poll_interval", "30s")
	v.SetDefault("dashboard.request_timeout", "10s")
}

func validate(cfg *Config) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if cfg.Database.Driver != "postgres" && cfg.Database.Driver != "sqlite" {
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", cfg.Database.Driver)
	}
	if cfg.Media.SigningKey == "" {
		return fmt.Errorf("media.signing_key is required")
	}
	if cfg.Ingest.Enabled {
		if cfg.Matrack.ClientID == "" {
			return fmt.Errorf("matrack.client_id is required when ingest is enabled")
		}
		if cfg.Matrack.ClientSecret == "" {
			return fmt.Errorf("matrack.client_secret is required when ingest is enabled")
		}
	}
	if cfg.Ingest.RealtimeInterval <= 0 {
		return fmt.Errorf("ingest.realtime_interval must be positive")
	}
	if cfg.Ingest.HistoricalInterval <= 0 {
		return fmt.Errorf("ingest.historical_interval must be positive")
	}
	if cfg.Ingest.LockTTL <= 0 {
		return fmt.Errorf("ingest.lock_ttl must be positive")
	}
	if cfg.Dashboard.PollInterval <= 0 {
		return fmt.Errorf("dashboard.poll_interval must be positive")
	}
	return nil
}
