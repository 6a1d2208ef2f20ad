package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Pool connection recycling.
	DBMaxConnLifetime time.Duration `mapstructure:"DB_MAX_CONN_LIFETIME"`
	DBMaxConnIdleTime time.Duration `mapstructure:"DB_MAX_CONN_IDLE_TIME"`

	// Route worker runtime.
	RoutePollInterval  time.Duration `mapstructure:"ROUTE_POLL_INTERVAL"`
	RouteQueueCapacity int           `mapstructure:"ROUTE_QUEUE_CAPACITY"`

	// Server registry monitoring and outbound delivery.
	HealthCheckInterval time.Duration `mapstructure:"HEALTH_CHECK_INTERVAL"`
	HealthCheckTimeout  time.Duration `mapstructure:"HEALTH_CHECK_TIMEOUT"`
	DeliveryTimeout     time.Duration `mapstructure:"DELIVERY_TIMEOUT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DB_MAX_CONN_LIFETIME", "1h")
	v.SetDefault("DB_MAX_CONN_IDLE_TIME", "30m")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("ROUTE_POLL_INTERVAL", "5s")
	v.SetDefault("ROUTE_QUEUE_CAPACITY", 64)
	v.SetDefault("HEALTH_CHECK_INTERVAL", "60s")
	v.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")
	v.SetDefault("DELIVERY_TIMEOUT", "30s")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("DB_MAX_CONN_LIFETIME")
	v.BindEnv("DB_MAX_CONN_IDLE_TIME")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("ROUTE_POLL_INTERVAL")
	v.BindEnv("ROUTE_QUEUE_CAPACITY")
	v.BindEnv("HEALTH_CHECK_INTERVAL")
	v.BindEnv("HEALTH_CHECK_TIMEOUT")
	v.BindEnv("DELIVERY_TIMEOUT")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the runtime tunables are usable before wiring
// anything to them.
func (c *Config) Validate() error {
	if c.RoutePollInterval <= 0 {
		return fmt.Errorf("ROUTE_POLL_INTERVAL must be positive, got %s", c.RoutePollInterval)
	}
	if c.RouteQueueCapacity <= 0 {
		return fmt.Errorf("ROUTE_QUEUE_CAPACITY must be positive, got %d", c.RouteQueueCapacity)
	}
	if c.HealthCheckInterval <= 0 {
		return fmt.Errorf("HEALTH_CHECK_INTERVAL must be positive, got %s", c.HealthCheckInterval)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be positive, got %s", c.HealthCheckTimeout)
	}
	if c.DeliveryTimeout <= 0 {
		return fmt.Errorf("DELIVERY_TIMEOUT must be positive, got %s", c.DeliveryTimeout)
	}
	return nil
}
