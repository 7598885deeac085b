// Package config loads the configuration of the goauthclient binaries from a
// YAML file, an optional .env file and GOAUTHCLIENT_* environment variables,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/transport"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GOAUTHCLIENT_"

// Store backends.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Duration accepts "30s"-style strings or plain seconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var text string
	if err := value.Decode(&text); err == nil {
		if seconds, convErr := strconv.ParseInt(text, 10, 64); convErr == nil {
			d.Duration = time.Duration(seconds) * time.Second
			return nil
		}
		parsed, err := time.ParseDuration(text)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	}
	var seconds int64
	if err := value.Decode(&seconds); err == nil {
		d.Duration = time.Duration(seconds) * time.Second
		return nil
	}
	return errors.New("invalid duration format")
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

type ServerConfig struct {
	BaseURL      string   `yaml:"base_url"`
	LoginPath    string   `yaml:"login_path"`
	RefreshPath  string   `yaml:"refresh_path"`
	RegisterPath string   `yaml:"register_path"`
	UserAgent    string   `yaml:"user_agent"`
	Timeout      Duration `yaml:"timeout"`
}

type RedisConfig struct {
	Addr     string   `yaml:"addr"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
	Prefix   string   `yaml:"prefix"`
	TTL      Duration `yaml:"ttl"`
}

type PostgresConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

type StoreConfig struct {
	Backend    string         `yaml:"backend"`
	Path       string         `yaml:"path"`
	AccessKey  string         `yaml:"access_key"`
	RefreshKey string         `yaml:"refresh_key"`
	Redis      RedisConfig    `yaml:"redis"`
	Postgres   PostgresConfig `yaml:"postgres"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	// File enables rotating file output; empty logs to stderr.
	File      string `yaml:"file"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	// AuditFile receives lifecycle audit events as JSON lines.
	AuditFile string `yaml:"audit_file"`
}

type RefreshConfig struct {
	Timeout Duration `yaml:"timeout"`
	Leeway  Duration `yaml:"leeway"`
}

// Config is the binary configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
	Refresh RefreshConfig `yaml:"refresh"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			BaseURL:   "http://localhost:8080",
			UserAgent: "goauthclient",
			Timeout:   Duration{15 * time.Second},
		},
		Store: StoreConfig{
			Backend:    BackendFile,
			Path:       defaultStorePath(),
			AccessKey:  goAuthClient.DefaultAccessKey,
			RefreshKey: goAuthClient.DefaultRefreshKey,
			Redis:      RedisConfig{Addr: "localhost:6379", Prefix: "goauthclient"},
			Postgres:   PostgresConfig{Table: "auth_credentials"},
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
		Refresh: RefreshConfig{
			Timeout: Duration{30 * time.Second},
		},
	}
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "credentials.json"
	}
	return filepath.Join(dir, "goauthclient", "credentials.json")
}

// Load reads path (optional when it does not exist), then a .env file next to
// it, then the environment. envFile may be empty to skip the .env step.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if envFile != "" {
		// godotenv never overrides variables that are already set.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			if v = strings.TrimSpace(v); v != "" {
				*dst = v
			}
		}
	}
	dur := func(name string, dst *Duration) error {
		var raw string
		str(name, &raw)
		if raw == "" {
			return nil
		}
		node := yaml.Node{Kind: yaml.ScalarNode, Value: raw}
		if err := dst.UnmarshalYAML(&node); err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, name, err)
		}
		return nil
	}
	num := func(name string, dst *int) error {
		var raw string
		str(name, &raw)
		if raw == "" {
			return nil
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	str("BASE_URL", &cfg.Server.BaseURL)
	str("USER_AGENT", &cfg.Server.UserAgent)
	str("STORE", &cfg.Store.Backend)
	str("STORE_PATH", &cfg.Store.Path)
	str("REDIS_ADDR", &cfg.Store.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Store.Redis.Password)
	str("REDIS_PREFIX", &cfg.Store.Redis.Prefix)
	str("DATABASE_URL", &cfg.Store.Postgres.DSN)
	str("POSTGRES_TABLE", &cfg.Store.Postgres.Table)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FILE", &cfg.Logging.File)
	str("AUDIT_FILE", &cfg.Logging.AuditFile)

	for _, err := range []error{
		num("REDIS_DB", &cfg.Store.Redis.DB),
		num("LOG_MAX_SIZE_MB", &cfg.Logging.MaxSizeMB),
		dur("TIMEOUT", &cfg.Server.Timeout),
		dur("REFRESH_TIMEOUT", &cfg.Refresh.Timeout),
		dur("LEEWAY", &cfg.Refresh.Leeway),
		dur("REDIS_TTL", &cfg.Store.Redis.TTL),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the fields the binaries depend on. Manager-level limits
// are checked again by goAuthClient.Config.Validate.
func (c *Config) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.Server.BaseURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: server.base_url %q must be an absolute http(s) URL", c.Server.BaseURL)
	}
	if c.Server.Timeout.Duration < 0 {
		return errors.New("config: server.timeout must be >= 0")
	}

	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	switch c.Store.Backend {
	case BackendFile:
		if strings.TrimSpace(c.Store.Path) == "" {
			return errors.New("config: store.path is required for the file backend")
		}
	case BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(c.Store.Redis.Addr) == "" {
			return errors.New("config: store.redis.addr is required for the redis backend")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.Store.Postgres.DSN) == "" {
			return errors.New("config: store.postgres.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown store.backend %q", c.Store.Backend)
	}

	if c.Logging.MaxSizeMB < 0 {
		return errors.New("config: logging.max_size_mb must be >= 0")
	}
	return nil
}

// Manager converts c into a manager configuration.
func (c *Config) Manager() goAuthClient.Config {
	cfg := goAuthClient.DefaultConfig()
	if c.Store.AccessKey != "" {
		cfg.Storage.AccessKey = c.Store.AccessKey
	}
	if c.Store.RefreshKey != "" {
		cfg.Storage.RefreshKey = c.Store.RefreshKey
	}
	cfg.Token.Leeway = c.Refresh.Leeway.Duration
	cfg.Refresh.Timeout = c.Refresh.Timeout.Duration
	return cfg
}

// Transport converts c into an HTTP transport configuration.
func (c *Config) Transport() transport.Config {
	return transport.Config{
		BaseURL:      c.Server.BaseURL,
		LoginPath:    c.Server.LoginPath,
		RefreshPath:  c.Server.RefreshPath,
		RegisterPath: c.Server.RegisterPath,
		UserAgent:    c.Server.UserAgent,
		Timeout:      c.Server.Timeout.Duration,
	}
}
