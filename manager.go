package goAuthClient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	internalaudit "github.com/MrEthical07/goAuthClient/internal/audit"
	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/sirupsen/logrus"
)

// Manager owns the credential pair of one client session: it restores it
// from a [CredentialStore], obtains it through a [Transport], keeps the
// access token fresh, and publishes every state change to watchers.
//
// All methods are safe for concurrent use. Construct with [Builder.Build].
//
// Locking: mu guards state and epoch and is never held across I/O. writeMu
// serializes store mutations; holders re-check the epoch after acquiring it
// so a refresh that started before a logout or login cannot write the store
// afterwards.
type Manager struct {
	cfg       Config
	store     CredentialStore
	batch     BatchStore
	transport Transport
	codec     *jwt.Codec
	log       logrus.FieldLogger
	now       func() time.Time
	refresher *refresh.Coordinator[CredentialPair]
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	hub       *stateHub

	mu    sync.RWMutex
	state AuthState
	// epoch advances on every login and logout.
	epoch uint64

	writeMu   sync.Mutex
	restoreMu sync.Mutex
	closed    atomic.Bool
}

// State returns the current authentication state.
func (m *Manager) State() AuthState {
	if m == nil {
		return AuthState{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Watch returns a channel that receives the current state immediately and
// then every subsequent transition. The channel holds at most one pending
// value; a slow reader skips intermediate states and always sees the latest.
// It is closed when ctx is done or the manager is closed.
func (m *Manager) Watch(ctx context.Context) <-chan AuthState {
	if ctx == nil {
		ctx = context.Background()
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hub.subscribe(ctx, m.state)
}

// CurrentAccessToken returns the cached access token without checking its
// expiry. ok is false unless the manager is authenticated.
func (m *Manager) CurrentAccessToken() (string, bool) {
	s := m.State()
	if s.Kind != StateAuthenticated {
		return "", false
	}
	return s.Pair.AccessToken, true
}

// Restore consults the store once and leaves StateUnknown:
//
//   - access token unexpired: Authenticated with the stored pair, no network call;
//   - access expired, refresh unexpired: one refresh, Authenticated on success;
//   - otherwise: Unauthenticated and the store is cleared.
//
// A store read failure yields Unauthenticated without touching the store and
// an error matching ErrStorage. Once the manager has left StateUnknown,
// Restore returns the current state without I/O.
func (m *Manager) Restore(ctx context.Context) (AuthState, error) {
	if err := m.ready(); err != nil {
		return AuthState{}, err
	}
	m.restoreMu.Lock()
	defer m.restoreMu.Unlock()

	state, epoch := m.snapshot()
	if state.Kind != StateUnknown {
		return state, nil
	}
	log := m.log.WithField("op", "restore")

	pair, err := m.readPair(ctx)
	if err != nil {
		m.storeFailed(ctx, "restore", err)
		m.metrics.Inc(MetricRestoreUnauthenticated)
		m.leaveUnknown(epoch, unauthenticatedState())
		log.WithError(err).Warn("credential store unreadable; starting unauthenticated")
		ae := storageError(err)
		m.emitAudit(ctx, AuditRestore, false, "", "", ae, nil)
		return m.State(), ae
	}

	now := m.now()
	if pair.AccessToken != "" && !m.codec.IsExpired(pair.AccessToken, now) {
		m.leaveUnknown(epoch, authenticatedState(pair))
		m.metrics.Inc(MetricRestoreAuthenticated)
		log.Debug("restored session from store")
		m.emitAudit(ctx, AuditRestore, true, pair.AccessToken, "", nil, func() map[string]string {
			return map[string]string{"source": "store"}
		})
		return m.State(), nil
	}

	if m.codec.IsExpired(pair.RefreshToken, now) {
		m.writeMu.Lock()
		if m.epochIs(epoch) {
			if err := m.clearStore(ctx); err != nil {
				m.storeFailed(ctx, "restore", err)
				log.WithError(err).Warn("clearing expired credentials failed")
			}
		}
		m.writeMu.Unlock()
		m.leaveUnknown(epoch, unauthenticatedState())
		m.metrics.Inc(MetricRestoreUnauthenticated)
		m.emitAudit(ctx, AuditRestore, false, "", "", nil, func() map[string]string {
			return map[string]string{"reason": "expired"}
		})
		return m.State(), nil
	}

	_, err = m.refreshPair(ctx, epoch, pair.RefreshToken)
	state = m.State()
	if errors.Is(err, ErrLoggedOut) {
		// A concurrent Login or Logout already decided the state.
		return state, nil
	}
	if state.Kind == StateAuthenticated {
		m.metrics.Inc(MetricRestoreAuthenticated)
	} else {
		m.metrics.Inc(MetricRestoreUnauthenticated)
	}
	m.emitAudit(ctx, AuditRestore, err == nil, state.Pair.AccessToken, "", err, func() map[string]string {
		return map[string]string{"source": "refresh"}
	})
	return state, err
}

// Login exchanges username and password for a credential pair. On success
// the pair is persisted, then the manager becomes Authenticated, then the
// pair is returned. Any in-flight refresh is superseded and its waiters
// receive ErrLoggedOut.
//
// On failure the state and the store are left as they were. When a store
// without BatchStore fails halfway through the write, the previous pair is
// written back; if even that fails the store is cleared and the session ends,
// so memory never claims a session the store no longer holds.
func (m *Manager) Login(ctx context.Context, username, password string) (CredentialPair, error) {
	if err := m.ready(); err != nil {
		return CredentialPair{}, err
	}
	log := m.log.WithField("op", "login")

	started := time.Now()
	pair, err := m.transport.Login(ctx, username, password)
	m.metrics.Observe(MetricLoginLatency, time.Since(started))
	if err == nil && !pair.Complete() {
		err = NewAuthError(KindServer, 0, "login response is missing credentials", nil)
	}
	if err != nil {
		ae := classifyTransportError(err)
		m.metrics.Inc(MetricLoginFailure)
		log.WithField("kind", ae.Kind.String()).Info("login failed")
		m.emitAudit(ctx, AuditLoginFailure, false, "", "", ae, nil)
		return CredentialPair{}, ae
	}

	m.writeMu.Lock()
	if err := m.persistPair(ctx, pair); err != nil {
		discarded := m.rollbackLoginWrite(ctx, log)
		m.writeMu.Unlock()
		if discarded {
			m.metrics.Inc(MetricRefreshDiscarded)
		}
		m.storeFailed(ctx, "login", err)
		m.metrics.Inc(MetricLoginFailure)
		ae := persistError(err)
		log.WithError(err).Warn("login succeeded but credentials could not be persisted")
		m.emitAudit(ctx, AuditLoginFailure, false, pair.AccessToken, "", ae, nil)
		return CredentialPair{}, ae
	}
	m.mu.Lock()
	m.epoch++
	superseded := m.refresher.Invalidate(loggedOutError())
	m.setStateLocked(authenticatedState(pair))
	m.mu.Unlock()
	m.writeMu.Unlock()

	if superseded {
		m.metrics.Inc(MetricRefreshDiscarded)
		log.Debug("in-flight refresh superseded by login")
	}

	m.metrics.Inc(MetricLoginSuccess)
	log.WithField("subject", m.subject(pair.AccessToken)).Info("logged in")
	m.emitAudit(ctx, AuditLoginSuccess, true, pair.AccessToken, "", nil, nil)
	return pair, nil
}

// Logout ends the session: the manager becomes Unauthenticated, any
// in-flight refresh is invalidated (its waiters receive ErrLoggedOut and its
// late result is discarded), and both keys are deleted from the store.
//
// Logout is idempotent. The returned error only reports a failed delete; the
// in-memory state is Unauthenticated regardless.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.ready(); err != nil {
		return err
	}
	log := m.log.WithField("op", "logout")

	m.mu.Lock()
	subjectToken := m.state.Pair.AccessToken
	m.epoch++
	invalidated := m.refresher.Invalidate(loggedOutError())
	m.setStateLocked(unauthenticatedState())
	m.mu.Unlock()

	if invalidated {
		m.metrics.Inc(MetricRefreshDiscarded)
		log.Debug("in-flight refresh invalidated")
	}

	m.writeMu.Lock()
	err := m.clearStore(ctx)
	m.writeMu.Unlock()

	m.metrics.Inc(MetricLogout)
	if err != nil {
		m.storeFailed(ctx, "logout", err)
		log.WithError(err).Warn("logout could not clear the credential store")
		ae := storageError(err)
		m.emitAudit(ctx, AuditLogout, false, subjectToken, "", ae, nil)
		return ae
	}
	m.emitAudit(ctx, AuditLogout, true, subjectToken, "", nil, nil)
	return nil
}

// EnsureFreshAccessToken returns an access token that is not expired.
//
// An unexpired cached token is returned without touching the transport or
// the store. Otherwise the caller joins the single in-flight refresh (or
// starts it); every concurrent caller receives the same token or the same
// error. A failed refresh leaves the manager Unauthenticated with an empty
// store.
func (m *Manager) EnsureFreshAccessToken(ctx context.Context) (string, error) {
	if err := m.ready(); err != nil {
		return "", err
	}

	state, epoch := m.snapshot()
	if state.Kind != StateAuthenticated {
		return "", NewAuthError(KindNotAuthenticated, 0, "", nil)
	}
	if !m.codec.IsExpired(state.Pair.AccessToken, m.now()) {
		m.metrics.Inc(MetricFreshTokenHit)
		return state.Pair.AccessToken, nil
	}

	pair, err := m.refreshPair(ctx, epoch, state.Pair.RefreshToken)
	if err != nil {
		return "", err
	}
	return pair.AccessToken, nil
}

// Register creates an account through the transport. It never changes the
// authentication state; call Login afterwards.
func (m *Manager) Register(ctx context.Context, req RegisterRequest) error {
	if err := m.ready(); err != nil {
		return err
	}
	registrar, ok := m.transport.(Registrar)
	if !ok {
		return ErrRegistrationUnsupported
	}

	if err := registrar.Register(ctx, req); err != nil {
		ae := classifyTransportError(err)
		m.metrics.Inc(MetricRegisterFailure)
		m.emitAudit(ctx, AuditRegister, false, "", "", ae, nil)
		return ae
	}
	m.metrics.Inc(MetricRegisterSuccess)
	m.emitAudit(ctx, AuditRegister, true, "", "", nil, func() map[string]string {
		return map[string]string{"role": req.Role}
	})
	return nil
}

// Close stops the audit dispatcher and closes every watcher channel. An
// in-flight refresh is invalidated. Close is safe to call more than once.
func (m *Manager) Close() {
	if m == nil || !m.closed.CompareAndSwap(false, true) {
		return
	}
	m.refresher.Invalidate(ErrManagerNotReady)
	m.hub.close()
	m.audit.Close()
}

// AuditDropped returns the number of audit events dropped by backpressure.
func (m *Manager) AuditDropped() uint64 {
	if m == nil {
		return 0
	}
	return m.audit.Dropped()
}

// MetricsSnapshot returns a copy of all counters and histograms.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	if m == nil || m.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return m.metrics.Snapshot()
}

// RefreshStats exposes the coordinator counters.
func (m *Manager) RefreshStats() refresh.Stats {
	if m == nil {
		return refresh.Stats{}
	}
	return m.refresher.Stats()
}

func (m *Manager) ready() error {
	if m == nil || m.closed.Load() {
		return ErrManagerNotReady
	}
	return nil
}

func (m *Manager) snapshot() (AuthState, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.epoch
}

func (m *Manager) epochIs(epoch uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.epoch == epoch
}

// setStateLocked must be called with mu held; publishing under mu keeps
// watchers in transition order.
func (m *Manager) setStateLocked(s AuthState) {
	if m.state == s {
		return
	}
	m.state = s
	m.hub.publish(s)
}

// leaveUnknown applies s only if nothing else has moved the manager out of
// StateUnknown since epoch was read.
func (m *Manager) leaveUnknown(epoch uint64, s AuthState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch || m.state.Kind != StateUnknown {
		return
	}
	m.setStateLocked(s)
}

func loggedOutError() *AuthError {
	return NewAuthError(KindLoggedOut, 0, "", nil)
}
