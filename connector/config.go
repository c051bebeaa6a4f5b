package connector

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents database connection configuration. When URL is set it
// takes precedence over the discrete host fields.
type Config struct {
	Driver         string            `json:"driver" yaml:"driver"`
	URL            string            `json:"url" yaml:"url"`
	Host           string            `json:"host" yaml:"host"`
	Port           int               `json:"port" yaml:"port"`
	Database       string            `json:"database" yaml:"database"`
	Username       string            `json:"username" yaml:"username"`
	Password       string            `json:"password" yaml:"password"`
	SSLMode        string            `json:"ssl_mode" yaml:"ssl_mode"`
	Params         map[string]string `json:"params" yaml:"params"`
	Pool           PoolConfig        `json:"pool" yaml:"pool"`
	ConnectTimeout time.Duration     `json:"connect_timeout" yaml:"connect_timeout"`
	QueryTimeout   time.Duration     `json:"query_timeout" yaml:"query_timeout"`
	Retry          *RetryConfig      `json:"retry,omitempty" yaml:"retry,omitempty"`
}

// PoolConfig defines connection pool settings.
type PoolConfig struct {
	MaxOpen         int           `json:"max_open" yaml:"max_open"`
	MaxIdle         int           `json:"max_idle" yaml:"max_idle"`
	MaxLifetime     time.Duration `json:"max_lifetime" yaml:"max_lifetime"`
	MaxIdleTime     time.Duration `json:"max_idle_time" yaml:"max_idle_time"`
	HealthCheckFreq time.Duration `json:"health_check_freq" yaml:"health_check_freq"`
}

// RetryConfig defines connection retry behavior.
type RetryConfig struct {
	MaxRetries int           `json:"max_retries" yaml:"max_retries"`
	BaseDelay  time.Duration `json:"base_delay" yaml:"base_delay"`
	MaxDelay   time.Duration `json:"max_delay" yaml:"max_delay"`
	Backoff    float64       `json:"backoff" yaml:"backoff"`
}

// WithDefaults fills unset pool settings.
func (p PoolConfig) WithDefaults() PoolConfig {
	if p.MaxOpen <= 0 {
		p.MaxOpen = 10
	}
	if p.MaxIdle <= 0 {
		p.MaxIdle = min(5, p.MaxOpen)
	}
	if p.MaxLifetime == 0 {
		p.MaxLifetime = time.Hour
	}
	if p.MaxIdleTime == 0 {
		p.MaxIdleTime = 30 * time.Minute
	}
	return p
}

// Validate checks that the configuration names a driver and a target.
func (c Config) Validate() error {
	if c.Driver == "" {
		return errors.New("driver is required")
	}
	if c.URL != "" {
		return nil
	}
	if c.Driver == "sqlite" || c.Driver == "sqlite3" {
		if c.Database == "" {
			return errors.New("database path is required")
		}
		return nil
	}
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// DSN returns URL when set, otherwise a URL-form DSN built from the discrete
// fields with the given scheme.
func (c Config) DSN(scheme string) string {
	if c.URL != "" {
		return c.URL
	}
	b := NewDSNBuilder(scheme).
		Auth(c.Username, c.Password).
		Host(c.Host, c.Port).
		Database(c.Database).
		Params(c.Params)
	if c.SSLMode != "" {
		b.Param("sslmode", c.SSLMode)
	}
	return b.Build()
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv loads the given dotenv files (".env" when none are given; missing
// files are ignored) and reads DATABASE_URL and DATABASE_DRIVER. The driver
// defaults to the URL scheme.
func FromEnv(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	cfg := Config{
		URL:    os.Getenv("DATABASE_URL"),
		Driver: os.Getenv("DATABASE_DRIVER"),
	}
	if cfg.URL == "" {
		return Config{}, errors.New("DATABASE_URL is not set")
	}
	if cfg.Driver == "" {
		cfg.Driver = schemeOf(cfg.URL)
	}
	if cfg.Driver == "" {
		return Config{}, errors.New("DATABASE_DRIVER is not set and DATABASE_URL has no scheme")
	}
	return cfg, nil
}

func schemeOf(raw string) string {
	if !strings.Contains(raw, "://") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "postgresql":
		return "postgres"
	case "file":
		return "sqlite"
	}
	return u.Scheme
}
