package goAuthClient

import (
	"context"
	"io"

	internalaudit "github.com/MrEthical07/goAuthClient/internal/audit"
	internalmetrics "github.com/MrEthical07/goAuthClient/internal/metrics"
)

// CredentialPair is an access/refresh token pair as issued by the server.
//
// Both values are opaque signed strings. Only their exp claim is ever read
// on the client.
type CredentialPair struct {
	AccessToken  string
	RefreshToken string
}

// IsZero reports whether both tokens are empty.
func (p CredentialPair) IsZero() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// Complete reports whether both tokens are present.
func (p CredentialPair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// CredentialStore is the persistent string key/value store the [Manager]
// keeps the pair in.
//
// Get reports an absent key as ok == false with a nil error. Delete on an
// absent key is not an error. Implementations must be safe for concurrent use.
type CredentialStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// BatchStore is an optional [CredentialStore] capability. When present, the
// pair is written and deleted in one atomic operation.
type BatchStore interface {
	SetMany(ctx context.Context, values map[string]string) error
	DeleteMany(ctx context.Context, keys ...string) error
}

// Transport performs the two network operations the [Manager] depends on.
//
// Failures should be returned as *AuthError; anything else is classified by
// the Manager (context and net errors as network, the rest as server).
type Transport interface {
	Login(ctx context.Context, username, password string) (CredentialPair, error)
	// Refresh presents refreshToken as a bearer credential and returns a new pair.
	Refresh(ctx context.Context, refreshToken string) (CredentialPair, error)
}

// Registrar is an optional [Transport] capability used by [Manager.Register].
type Registrar interface {
	Register(ctx context.Context, req RegisterRequest) error
}

// RegisterRequest carries the fields the account registration endpoint accepts.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
	Role     string
}

// AuditEvent is a structured audit record emitted by the manager.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the manager's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// Audit event types.
const (
	AuditLoginSuccess     = "login_success"
	AuditLoginFailure     = "login_failure"
	AuditLogout           = "logout"
	AuditRefreshSuccess   = "refresh_success"
	AuditRefreshFailure   = "refresh_failure"
	AuditRefreshDiscarded = "refresh_discarded"
	AuditRestore          = "restore"
	AuditStoreFailure     = "store_failure"
	AuditRegister         = "register"
)

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess           = MetricID(internalmetrics.MetricLoginSuccess)
	MetricLoginFailure           = MetricID(internalmetrics.MetricLoginFailure)
	MetricLogout                 = MetricID(internalmetrics.MetricLogout)
	MetricRefreshStarted         = MetricID(internalmetrics.MetricRefreshStarted)
	MetricRefreshJoined          = MetricID(internalmetrics.MetricRefreshJoined)
	MetricRefreshSuccess         = MetricID(internalmetrics.MetricRefreshSuccess)
	MetricRefreshFailure         = MetricID(internalmetrics.MetricRefreshFailure)
	MetricRefreshDiscarded       = MetricID(internalmetrics.MetricRefreshDiscarded)
	MetricRestoreAuthenticated   = MetricID(internalmetrics.MetricRestoreAuthenticated)
	MetricRestoreUnauthenticated = MetricID(internalmetrics.MetricRestoreUnauthenticated)
	MetricFreshTokenHit          = MetricID(internalmetrics.MetricFreshTokenHit)
	MetricStoreFailure           = MetricID(internalmetrics.MetricStoreFailure)
	MetricRegisterSuccess        = MetricID(internalmetrics.MetricRegisterSuccess)
	MetricRegisterFailure        = MetricID(internalmetrics.MetricRegisterFailure)
	MetricLoginLatency           = MetricID(internalmetrics.MetricLoginLatency)
	MetricRefreshLatency         = MetricID(internalmetrics.MetricRefreshLatency)

	// MetricIDCount is one past the last valid MetricID.
	MetricIDCount = MetricID(internalmetrics.MetricIDCount)
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a new [Metrics] instance configured by cfg. When
// Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
