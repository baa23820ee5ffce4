package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// RegistryConfig selects the ambulance store: "postgres" or "memory".
type RegistryConfig struct {
	Driver string `mapstructure:"driver"`
}

type DispatchConfig struct {
	DefaultRadiusKm float64       `mapstructure:"default_radius_km"`
	MaxRadiusKm     float64       `mapstructure:"max_radius_km"`
	MaxConcurrent   int           `mapstructure:"max_concurrent"`
	NotifyTimeout   time.Duration `mapstructure:"notify_timeout"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
}

// NotifyConfig selects the notification gateway: "log", "twilio" or "temporal".
type NotifyConfig struct {
	Driver string       `mapstructure:"driver"`
	Twilio TwilioConfig `mapstructure:"twilio"`
}

type TwilioConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	FromNumber string `mapstructure:"from_number"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 15)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "rescuelink")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "rescuelink")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "rescuelink-notify")
	v.SetDefault("registry.driver", "postgres")
	v.SetDefault("dispatch.default_radius_km", 5.0)
	v.SetDefault("dispatch.max_radius_km", 50.0)
	v.SetDefault("dispatch.max_concurrent", 10)
	v.SetDefault("dispatch.notify_timeout", "8s")
	v.SetDefault("dispatch.query_timeout", "5s")
	v.SetDefault("notify.driver", "log")
	v.SetDefault("notify.twilio.base_url", "https://api.twilio.com")
	v.SetDefault("notify.twilio.account_sid", "")
	v.SetDefault("notify.twilio.auth_token", "")
	v.SetDefault("notify.twilio.from_number", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: RESCUELINK_DISPATCH_MAX_CONCURRENT → dispatch.max_concurrent
	v.SetEnvPrefix("RESCUELINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	switch c.Registry.Driver {
	case "postgres":
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("registry.driver must be postgres or memory, got %q", c.Registry.Driver))
	}

	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}

	if c.Dispatch.DefaultRadiusKm <= 0 {
		errs = append(errs, "dispatch.default_radius_km must be positive")
	}
	if c.Dispatch.MaxRadiusKm < c.Dispatch.DefaultRadiusKm {
		errs = append(errs, "dispatch.max_radius_km must be >= dispatch.default_radius_km")
	}
	if c.Dispatch.MaxConcurrent <= 0 {
		errs = append(errs, "dispatch.max_concurrent must be positive")
	}
	if c.Dispatch.NotifyTimeout <= 0 {
		errs = append(errs, "dispatch.notify_timeout must be positive")
	}
	if c.Dispatch.QueryTimeout <= 0 {
		errs = append(errs, "dispatch.query_timeout must be positive")
	}

	switch c.Notify.Driver {
	case "log":
	case "twilio":
		if c.Notify.Twilio.AccountSID == "" || c.Notify.Twilio.AuthToken == "" {
			errs = append(errs, "notify.twilio.account_sid and notify.twilio.auth_token are required")
		}
		if c.Notify.Twilio.FromNumber == "" {
			errs = append(errs, "notify.twilio.from_number is required")
		}
	case "temporal":
		if c.Temporal.HostPort == "" {
			errs = append(errs, "temporal.host_port is required")
		}
		if c.Temporal.TaskQueue == "" {
			errs = append(errs, "temporal.task_queue is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("notify.driver must be log, twilio or temporal, got %q", c.Notify.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
