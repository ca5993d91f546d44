package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Tiles     TilesConfig     `mapstructure:"tiles"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
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

// TilesConfig configures the offline tile cache and its upstream server.
type TilesConfig struct {
	StorePath    string `mapstructure:"store_path"`
	URLTemplate  string `mapstructure:"url_template"`
	ZoomMin      int    `mapstructure:"zoom_min"`
	ZoomMax      int    `mapstructure:"zoom_max"`
	Concurrency  int    `mapstructure:"concurrency"`
	DelayMs      int    `mapstructure:"delay_ms"`
	FetchTimeout int    `mapstructure:"fetch_timeout"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "velotrek")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "velotrek")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("tiles.store_path", "tiles.db")
	v.SetDefault("tiles.url_template", "https://tile.openstreetmap.org/{z}/{x}/{y}.png")
	v.SetDefault("tiles.zoom_min", 8)
	v.SetDefault("tiles.zoom_max", 15)
	v.SetDefault("tiles.concurrency", 4)
	v.SetDefault("tiles.delay_ms", 100)
	v.SetDefault("tiles.fetch_timeout", 15)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: VELOTREK_TILES_ZOOM_MAX → tiles.zoom_max
	v.SetEnvPrefix("VELOTREK")
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
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.Tiles.StorePath == "" {
		errs = append(errs, "tiles.store_path is required")
	}
	if !strings.Contains(c.Tiles.URLTemplate, "{z}") ||
		!strings.Contains(c.Tiles.URLTemplate, "{x}") ||
		!strings.Contains(c.Tiles.URLTemplate, "{y}") {
		errs = append(errs, "tiles.url_template must contain {z}, {x}, and {y} placeholders")
	}
	if c.Tiles.ZoomMin < 0 || c.Tiles.ZoomMax > 20 || c.Tiles.ZoomMin > c.Tiles.ZoomMax {
		errs = append(errs, fmt.Sprintf("tiles zoom range %d-%d is invalid", c.Tiles.ZoomMin, c.Tiles.ZoomMax))
	}
	if c.Tiles.Concurrency <= 0 {
		errs = append(errs, "tiles.concurrency must be positive")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
