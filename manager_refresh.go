package goAuthClient

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/sirupsen/logrus"
)

// refreshPair starts or joins the single refresh flight. epoch and
// refreshToken describe the session the caller observed.
func (m *Manager) refreshPair(ctx context.Context, epoch uint64, refreshToken string) (CredentialPair, error) {
	pair, joined, err := m.refresher.Do(ctx, func(flightCtx context.Context, info refresh.TicketInfo) (CredentialPair, error) {
		return m.runRefresh(flightCtx, info, epoch, refreshToken)
	})
	if joined {
		m.metrics.Inc(MetricRefreshJoined)
	}
	if err == nil {
		return pair, nil
	}

	var ae *AuthError
	if errors.As(err, &ae) {
		return CredentialPair{}, ae
	}
	if errors.Is(err, ErrManagerNotReady) {
		return CredentialPair{}, err
	}
	// Only this caller's ctx can end the wait without an *AuthError.
	return CredentialPair{}, classifyTransportError(err)
}

// runRefresh is the flight body. It runs at most once per ticket and
// persists the new pair before returning it, so no waiter can receive a
// token the store never recorded.
func (m *Manager) runRefresh(ctx context.Context, info refresh.TicketInfo, epoch uint64, fallback string) (CredentialPair, error) {
	log := m.log.WithFields(logrus.Fields{"op": "refresh", "ticket": info.ID})

	current, currentEpoch := m.snapshot()
	if current.Kind == StateAuthenticated && !m.codec.IsExpired(current.Pair.AccessToken, m.now()) {
		// An earlier flight or a login already replaced the pair.
		log.Debug("access token already renewed; skipping network refresh")
		return current.Pair, nil
	}
	if currentEpoch != epoch {
		m.metrics.Inc(MetricRefreshDiscarded)
		return CredentialPair{}, loggedOutError()
	}
	refreshToken := fallback
	if current.Kind == StateAuthenticated {
		refreshToken = current.Pair.RefreshToken
	}

	m.metrics.Inc(MetricRefreshStarted)
	if m.cfg.Refresh.SkipExpiredRefresh && m.codec.IsExpired(refreshToken, m.now()) {
		ae := NewAuthError(KindInvalidCredentials, 0, "session expired", nil)
		m.failRefresh(ctx, log, info, epoch, ae)
		return CredentialPair{}, ae
	}

	started := time.Now()
	pair, err := m.transport.Refresh(ctx, refreshToken)
	m.metrics.Observe(MetricRefreshLatency, time.Since(started))
	if err == nil && !pair.Complete() {
		err = NewAuthError(KindServer, 0, "refresh response is missing credentials", nil)
	}
	if err != nil {
		ae := classifyTransportError(err)
		m.failRefresh(ctx, log, info, epoch, ae)
		return CredentialPair{}, ae
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if !m.epochIs(epoch) {
		m.discardRefresh(ctx, log, info)
		return CredentialPair{}, loggedOutError()
	}

	if err := m.persistPair(ctx, pair); err != nil {
		ae := persistError(err)
		if clearErr := m.clearStore(ctx); clearErr != nil {
			log.WithError(clearErr).Warn("clearing credentials after failed persist failed")
		}
		m.demote(epoch)
		m.storeFailed(ctx, "refresh", err)
		m.metrics.Inc(MetricRefreshFailure)
		log.WithError(err).Warn("refreshed credentials could not be persisted; session ended")
		m.emitAudit(ctx, AuditRefreshFailure, false, pair.AccessToken, info.ID, ae, nil)
		return CredentialPair{}, ae
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		// The logout that moved the epoch is waiting on writeMu and will
		// delete what was just written.
		m.discardRefresh(ctx, log, info)
		return CredentialPair{}, loggedOutError()
	}
	m.setStateLocked(authenticatedState(pair))
	m.mu.Unlock()

	m.metrics.Inc(MetricRefreshSuccess)
	log.WithField("subject", m.subject(pair.AccessToken)).Debug("credentials refreshed")
	m.emitAudit(ctx, AuditRefreshSuccess, true, pair.AccessToken, info.ID, nil, nil)
	return pair, nil
}

// failRefresh ends the session after a failed refresh: the store is cleared
// and the manager becomes Unauthenticated, unless a login or logout already
// moved on.
func (m *Manager) failRefresh(ctx context.Context, log logrus.FieldLogger, info refresh.TicketInfo, epoch uint64, ae *AuthError) {
	m.metrics.Inc(MetricRefreshFailure)

	m.writeMu.Lock()
	if m.epochIs(epoch) {
		if err := m.clearStore(ctx); err != nil {
			m.storeFailed(ctx, "refresh", err)
			log.WithError(err).Warn("clearing credentials after failed refresh failed")
		}
		m.demote(epoch)
	}
	m.writeMu.Unlock()

	log.WithField("kind", ae.Kind.String()).Warn("refresh failed; session ended")
	m.emitAudit(ctx, AuditRefreshFailure, false, "", info.ID, ae, func() map[string]string {
		return map[string]string{"kind": ae.Kind.String()}
	})
}

func (m *Manager) discardRefresh(ctx context.Context, log logrus.FieldLogger, info refresh.TicketInfo) {
	m.metrics.Inc(MetricRefreshDiscarded)
	log.Debug("refresh result discarded; session ended while in flight")
	m.emitAudit(ctx, AuditRefreshDiscarded, false, "", info.ID, loggedOutError(), nil)
}

func (m *Manager) demote(epoch uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return
	}
	m.setStateLocked(unauthenticatedState())
}

// rollbackLoginWrite runs under writeMu after a failed login persist and
// reports whether ending the session discarded an in-flight refresh. A BatchStore write is atomic, so
// there is nothing to undo. Otherwise part of the new pair may be on disk: the
// previous pair is written back, or, when that fails or there was none, the
// store is cleared.
func (m *Manager) rollbackLoginWrite(ctx context.Context, log logrus.FieldLogger) bool {
	if m.batch != nil {
		return false
	}
	prev, _ := m.snapshot()
	if prev.Kind == StateAuthenticated {
		err := m.persistPair(ctx, prev.Pair)
		if err == nil {
			return false
		}
		log.WithError(err).Warn("restoring the previous credentials failed")
	}
	if err := m.clearStore(ctx); err != nil {
		log.WithError(err).Warn("rollback of partial credential write failed")
	}
	if prev.Kind != StateAuthenticated {
		return false
	}

	m.mu.Lock()
	m.epoch++
	invalidated := m.refresher.Invalidate(loggedOutError())
	m.setStateLocked(unauthenticatedState())
	m.mu.Unlock()
	log.Warn("previous session ended; its credentials could not be kept in the store")
	return invalidated
}

func (m *Manager) storeFailed(ctx context.Context, op string, err error) {
	m.metrics.Inc(MetricStoreFailure)
	m.emitAudit(ctx, AuditStoreFailure, false, "", "", storageError(err), func() map[string]string {
		return map[string]string{"op": op}
	})
}

// persistPair writes both tokens. Without a BatchStore the refresh token is
// written first: a crash in between leaves a stale access token, which only
// costs one extra refresh on the next start.
func (m *Manager) persistPair(ctx context.Context, pair CredentialPair) error {
	if m.batch != nil {
		return m.batch.SetMany(ctx, map[string]string{
			m.cfg.Storage.AccessKey:  pair.AccessToken,
			m.cfg.Storage.RefreshKey: pair.RefreshToken,
		})
	}
	if err := m.store.Set(ctx, m.cfg.Storage.RefreshKey, pair.RefreshToken); err != nil {
		return err
	}
	return m.store.Set(ctx, m.cfg.Storage.AccessKey, pair.AccessToken)
}

// clearStore deletes both keys, attempting each even if the first fails.
func (m *Manager) clearStore(ctx context.Context) error {
	if m.batch != nil {
		return m.batch.DeleteMany(ctx, m.cfg.Storage.AccessKey, m.cfg.Storage.RefreshKey)
	}
	accessErr := m.store.Delete(ctx, m.cfg.Storage.AccessKey)
	refreshErr := m.store.Delete(ctx, m.cfg.Storage.RefreshKey)
	return errors.Join(accessErr, refreshErr)
}

func (m *Manager) readPair(ctx context.Context) (CredentialPair, error) {
	access, _, err := m.store.Get(ctx, m.cfg.Storage.AccessKey)
	if err != nil {
		return CredentialPair{}, err
	}
	refreshToken, _, err := m.store.Get(ctx, m.cfg.Storage.RefreshKey)
	if err != nil {
		return CredentialPair{}, err
	}
	return CredentialPair{AccessToken: access, RefreshToken: refreshToken}, nil
}
