package goAuthClient

import (
	"errors"
	"strings"
	"time"
)

// Config holds every tunable of a [Manager]. Start from [DefaultConfig] and
// override fields; the zero Config does not validate.
type Config struct {
	Storage StorageConfig
	Token   TokenConfig
	Refresh RefreshConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig names the two keys the pair is persisted under.
type StorageConfig struct {
	AccessKey  string
	RefreshKey string
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls how credential expiry is judged.
type TokenConfig struct {
	// Leeway treats a token as expired this long before its exp claim, so a
	// token is not sent with only milliseconds of validity left. At most 2m.
	Leeway time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls the single-flight refresh.
type RefreshConfig struct {
	// Timeout bounds one refresh flight (network call plus persist),
	// independently of any caller's context. Zero means unbounded.
	Timeout time.Duration
	// SkipExpiredRefresh fails a refresh locally, without a network call,
	// when the refresh token is already expired.
	SkipExpiredRefresh bool
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled     bool
	BufferSize  int
	DropIfFull  bool
	SinkTimeout time.Duration
}

// MetricsConfig controls in-process counters and histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Default storage keys.
const (
	DefaultAccessKey  = "auth.access_token"
	DefaultRefreshKey = "auth.refresh_token"
)

const maxLeeway = 2 * time.Minute

// DefaultConfig returns the configuration used when [Builder.WithConfig] is
// never called.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			AccessKey:  DefaultAccessKey,
			RefreshKey: DefaultRefreshKey,
		},
		Token: TokenConfig{
			Leeway: 0,
		},
		Refresh: RefreshConfig{
			Timeout:            30 * time.Second,
			SkipExpiredRefresh: true,
		},
		Audit: AuditConfig{
			Enabled:     false,
			BufferSize:  256,
			DropIfFull:  true,
			SinkTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field, or nil.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	// Storage
	access := strings.TrimSpace(c.Storage.AccessKey)
	refresh := strings.TrimSpace(c.Storage.RefreshKey)
	if access == "" {
		return errors.New("Storage AccessKey must not be empty")
	}
	if refresh == "" {
		return errors.New("Storage RefreshKey must not be empty")
	}
	if access == refresh {
		return errors.New("Storage AccessKey and RefreshKey must differ")
	}

	// Token
	if c.Token.Leeway < 0 {
		return errors.New("Token Leeway must be >= 0")
	}
	if c.Token.Leeway > maxLeeway {
		return errors.New("Token Leeway must be <= 2m")
	}

	// Refresh
	if c.Refresh.Timeout < 0 {
		return errors.New("Refresh Timeout must be >= 0")
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
		if c.Audit.SinkTimeout < 0 {
			return errors.New("Audit SinkTimeout must be >= 0")
		}
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
