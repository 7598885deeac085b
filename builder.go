package goAuthClient

import (
	"errors"
	"time"

	internalaudit "github.com/MrEthical07/goAuthClient/internal/audit"
	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/sirupsen/logrus"
)

// Builder assembles a [Manager]. A Builder is single-use: the second call to
// Build fails.
type Builder struct {
	config    Config
	store     CredentialStore
	transport Transport

	logger    logrus.FieldLogger
	now       func() time.Time
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the credential store. Required.
//
// If the store also implements [BatchStore], the pair is written and deleted
// atomically through it.
func (b *Builder) WithStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithTransport sets the auth transport. Required.
func (b *Builder) WithTransport(transport Transport) *Builder {
	b.transport = transport
	return b
}

// WithLogger sets the logger. Defaults to logrus.StandardLogger().
func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for expiry checks and audit timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithAuditSink sets the audit sink and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	if !enabled {
		b.config.Metrics.EnableLatencyHistograms = false
	}
	return b
}

// WithLatencyHistograms toggles the login and refresh latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a Manager in StateUnknown.
// Build performs no I/O; call [Manager.Restore] to consult the store.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if b.transport == nil {
		return nil, errors.New("auth transport required")
	}

	codec, err := jwt.NewCodec(jwt.Config{Leeway: cfg.Token.Leeway})
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	m := &Manager{
		cfg:       cfg,
		store:     b.store,
		transport: b.transport,
		codec:     codec,
		log:       logger.WithField("component", "goauthclient"),
		now:       now,
		refresher: refresh.New[CredentialPair](refresh.Config{Timeout: cfg.Refresh.Timeout}),
		metrics:   NewMetrics(cfg.Metrics),
		hub:       newStateHub(),
		state:     AuthState{Kind: StateUnknown},
	}
	if batch, ok := b.store.(BatchStore); ok {
		m.batch = batch
	}
	m.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		DropIfFull:  cfg.Audit.DropIfFull,
		SinkTimeout: cfg.Audit.SinkTimeout,
	}, b.auditSink, now)

	b.built = true
	return m, nil
}
